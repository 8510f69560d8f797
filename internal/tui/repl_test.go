package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"scrapechat/internal/session"
)

type stubBackend struct {
	pages   map[string]string
	models  []string
	listErr error
	queries []string
}

func (b *stubBackend) Scrape(ctx context.Context, pageURL string) (string, error) {
	content, ok := b.pages[pageURL]
	if !ok {
		return "", errors.New("Failed to access URL: 404")
	}
	return content, nil
}

func (b *stubBackend) Query(ctx context.Context, model, content, prompt string) (string, error) {
	b.queries = append(b.queries, model+"|"+prompt)
	return "reply from " + model, nil
}

func (b *stubBackend) Models(ctx context.Context) ([]string, error) {
	return b.models, b.listErr
}

func newTestREPL(backend *stubBackend, input string) (*REPL, *session.Store, *bytes.Buffer) {
	out := &bytes.Buffer{}
	var repl *REPL
	store := session.NewStore(session.Options{
		Scraper:  backend,
		Querier:  backend,
		OnStatus: func(s string) { repl.Status(s) },
	})
	repl = New(store, backend, strings.NewReader(input), out, Options{})
	return repl, store, out
}

func TestRunScrapeThenAsk(t *testing.T) {
	backend := &stubBackend{
		pages:  map[string]string{"https://example.com": "Example text"},
		models: []string{"llama3", "mistral"},
	}
	input := "https://example.com\nwhat is it?\n/quit\nnever reached\n"
	repl, store, out := newTestREPL(backend, input)

	if err := repl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.Model() != "llama3" {
		t.Fatalf("expected first model selected, got %q", store.Model())
	}
	active := store.Active()
	if active == nil || len(active.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %+v", active)
	}
	if active.Title != "Scraped: example.com" {
		t.Fatalf("unexpected title %q", active.Title)
	}
	text := out.String()
	for _, want := range []string{"Scraping website content...", "Processing with llama3...", "reply from llama3"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if len(backend.queries) != 2 || backend.queries[1] != "llama3|what is it?" {
		t.Fatalf("unexpected queries %v", backend.queries)
	}
}

func TestQuestionBeforeScrape(t *testing.T) {
	repl, _, out := newTestREPL(&stubBackend{}, "")
	if _, err := repl.Handle(context.Background(), "hello there"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(out.String(), session.ScrapeFirstMessage) {
		t.Fatalf("expected scrape-first reply, got:\n%s", out.String())
	}
}

func TestScrapeFailureIsShown(t *testing.T) {
	repl, _, out := newTestREPL(&stubBackend{}, "")
	if _, err := repl.Handle(context.Background(), "/scrape https://missing.example"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(out.String(), "Error: Could not process the URL. Failed to access URL: 404") {
		t.Fatalf("expected error message, got:\n%s", out.String())
	}
}

func TestConversationCommands(t *testing.T) {
	repl, store, out := newTestREPL(&stubBackend{}, "")
	ctx := context.Background()

	for _, line := range []string{"/new", "/new", "/list"} {
		if _, err := repl.Handle(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	if !strings.Contains(out.String(), "New Conversation 2") {
		t.Fatalf("list output missing conversation:\n%s", out.String())
	}

	convs := store.Conversations()
	if _, err := repl.Handle(ctx, "/open 2"); err != nil {
		t.Fatalf("/open: %v", err)
	}
	if store.Active().ID != convs[1].ID {
		t.Fatalf("expected second listed conversation active")
	}
	if _, err := repl.Handle(ctx, "/delete "+convs[1].ID); err != nil {
		t.Fatalf("/delete: %v", err)
	}
	if got := store.Conversations(); len(got) != 1 || store.Active().ID != convs[0].ID {
		t.Fatalf("unexpected state after delete: %d conversations", len(got))
	}
	if _, err := repl.Handle(ctx, "/open 5"); err == nil {
		t.Fatalf("expected error for out of range index")
	}
	if _, err := repl.Handle(ctx, "/reset"); err != nil {
		t.Fatalf("/reset: %v", err)
	}
	if len(store.Conversations()) != 0 || store.Active() != nil {
		t.Fatalf("reset left conversations behind")
	}
}

func TestModelCommands(t *testing.T) {
	repl, store, out := newTestREPL(&stubBackend{models: []string{"llama3", "mistral"}}, "")
	ctx := context.Background()

	if _, err := repl.Handle(ctx, "/model mistral"); err != nil {
		t.Fatalf("/model: %v", err)
	}
	if store.Model() != "mistral" {
		t.Fatalf("model not set")
	}
	if _, err := repl.Handle(ctx, "/models"); err != nil {
		t.Fatalf("/models: %v", err)
	}
	if !strings.Contains(out.String(), "* mistral") {
		t.Fatalf("selected model not marked:\n%s", out.String())
	}

	failing, _, _ := newTestREPL(&stubBackend{listErr: errors.New("Failed to get Ollama models")}, "")
	if _, err := failing.Handle(ctx, "/models"); err == nil {
		t.Fatalf("expected listing error")
	}
}

func TestUnknownCommand(t *testing.T) {
	repl, _, _ := newTestREPL(&stubBackend{}, "")
	if _, err := repl.Handle(context.Background(), "/bogus"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
	quit, err := repl.Handle(context.Background(), "/exit")
	if err != nil || !quit {
		t.Fatalf("expected quit, got %v %v", quit, err)
	}
}

func TestLooksLikeURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com":          true,
		"HTTP://Example.com/path?q=1":  true,
		"example.com":                  false,
		"https://":                     false,
		"what is https://example.com?": false,
		"ftp://example.com":            false,
	}
	for in, want := range cases {
		if got := looksLikeURL(in); got != want {
			t.Fatalf("looksLikeURL(%q) = %v, want %v", in, got, want)
		}
	}
}
