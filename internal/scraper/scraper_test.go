package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"scrapechat/internal/config"
)

func newPageServer(t *testing.T, contentType, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() config.ScraperConfig {
	return config.ScraperConfig{
		Format:           FormatText,
		UserAgent:        "scrapechat-test",
		TimeoutSeconds:   5,
		MaxBodyBytes:     1 << 20,
		MaxContentLength: 12000,
	}
}

const noisyPage = `<html>
<head>
<title>Example Domain</title>
<style>p { color: red; }</style>
</head>
<body>
<nav>Menu</nav>
<header>Site header</header>
<div>
<p>First line</p>
<p>Alpha  Beta</p>
</div>
<script>var x = 1;</script>
<footer>Copyright</footer>
</body>
</html>`

func TestScrapeStripsNoiseAndSplitsPhrases(t *testing.T) {
	srv := newPageServer(t, "text/html; charset=utf-8", noisyPage, nil)
	page, err := New(testConfig(), nil).Scrape(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if page.Title != "Example Domain" {
		t.Fatalf("unexpected title %q", page.Title)
	}
	if want := "Example Domain\nFirst line\nAlpha\nBeta"; page.Content != want {
		t.Fatalf("content mismatch:\nwant %q\ngot  %q", want, page.Content)
	}
	if page.URL != srv.URL+"/page" {
		t.Fatalf("unexpected url %q", page.URL)
	}
}

func TestScrapePrefersMainContent(t *testing.T) {
	body := `<html>
<head><title>Post</title></head>
<body>
<article><h1>Title</h1>
<p>Body text</p></article>
</body>
</html>`
	srv := newPageServer(t, "text/html", body, nil)
	page, err := New(testConfig(), nil).Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if want := "TitleBody text\n\nPost\nTitle\nBody text"; page.Content != want {
		t.Fatalf("content mismatch:\nwant %q\ngot  %q", want, page.Content)
	}
}

func TestScrapeDefaultTitle(t *testing.T) {
	srv := newPageServer(t, "text/html", "<html><body><p>No title here</p></body></html>", nil)
	page, err := New(testConfig(), nil).Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if page.Title != "Scraped Content" {
		t.Fatalf("unexpected title %q", page.Title)
	}
}

func TestScrapeTruncatesLongContent(t *testing.T) {
	cfg := testConfig()
	cfg.MaxContentLength = 10
	srv := newPageServer(t, "text/plain", "abcdefghijklmnop", nil)
	page, err := New(cfg, nil).Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if want := "abcdefghij\n...(content truncated)"; page.Content != want {
		t.Fatalf("want %q got %q", want, page.Content)
	}
}

func TestScrapeNonOKStatus(t *testing.T) {
	srv := newPageServer(t, "text/html", "", nil)
	_, err := New(testConfig(), nil).Scrape(context.Background(), srv.URL+"/missing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if err.Error() != "Failed to access URL: 404" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestScrapeRejectsInvalidURL(t *testing.T) {
	s := New(testConfig(), nil)
	for _, raw := range []string{"", "example.com", "ftp://example.com/file", "http://"} {
		if _, err := s.Scrape(context.Background(), raw); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("%q: expected ErrInvalidURL, got %v", raw, err)
		}
	}
}

func TestScrapeRejectsBinary(t *testing.T) {
	srv := newPageServer(t, "application/octet-stream", "\x00\x01\x02binary", nil)
	if _, err := New(testConfig(), nil).Scrape(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error for binary body")
	}
}

func TestScrapeMarkdownFormat(t *testing.T) {
	cfg := testConfig()
	cfg.Format = FormatMarkdown
	body := `<html><head><title>Doc</title></head><body><h1>Hello</h1><p>World</p><script>x()</script></body></html>`
	srv := newPageServer(t, "text/html", body, nil)
	page, err := New(cfg, nil).Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if !strings.Contains(page.Content, "# Hello") || !strings.Contains(page.Content, "World") {
		t.Fatalf("expected markdown, got %q", page.Content)
	}
	if strings.Contains(page.Content, "x()") {
		t.Fatalf("script leaked into markdown: %q", page.Content)
	}
}

func TestScrapeUsesCache(t *testing.T) {
	var hits int32
	srv := newPageServer(t, "text/plain", "cached body", &hits)
	s := New(testConfig(), NewMemoryCache(time.Minute))
	for i := 0; i < 3; i++ {
		page, err := s.Scrape(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Scrape: %v", err)
		}
		if page.Content != "cached body" {
			t.Fatalf("unexpected content %q", page.Content)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", got)
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "k", &Page{Content: "v"})
	if p, ok := c.Get(ctx, "k"); !ok || p.Content != "v" {
		t.Fatalf("expected hit, got %v %v", p, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected expired entry")
	}
}

func TestCleanText(t *testing.T) {
	in := "  Title  \r\n\n   one  two \t\n\n three"
	if got, want := cleanText(in), "Title\none\ntwo\nthree"; got != want {
		t.Fatalf("want %q got %q", want, got)
	}
}

func TestLimitContentCountsCharacters(t *testing.T) {
	if got := limitContent("héllo", 5); got != "héllo" {
		t.Fatalf("content at limit must not be cut: %q", got)
	}
	if got, want := limitContent("日本語テキスト", 3), "日本語"+truncatedSuffix; got != want {
		t.Fatalf("want %q got %q", want, got)
	}
}
