package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"scrapechat/internal/llm"
	"scrapechat/internal/scraper"
	"scrapechat/internal/worker"
)

type mockScraper struct {
	pages map[string]*scraper.Page
	err   error
}

func (m *mockScraper) Scrape(ctx context.Context, pageURL string) (*scraper.Page, error) {
	if m.err != nil {
		return nil, m.err
	}
	page, ok := m.pages[pageURL]
	if !ok {
		return nil, &scraper.StatusError{Code: http.StatusNotFound}
	}
	return page, nil
}

type mockModels struct {
	models  []string
	listErr error
	err     error
	last    queryRequest
}

func (m *mockModels) Query(ctx context.Context, model, content, prompt string) (string, error) {
	m.last = queryRequest{Model: model, Content: content, Prompt: prompt}
	if m.err != nil {
		return "", m.err
	}
	if model == "" {
		return "", llm.ErrModelRequired
	}
	return "answer about: " + content, nil
}

func (m *mockModels) ListModels(ctx context.Context) ([]string, error) {
	return m.models, m.listErr
}

// busyRunner rejects every job as if the queue were full.
type busyRunner struct{}

func (busyRunner) Submit(context.Context, string, string, func(context.Context) error) error {
	return worker.ErrPoolBusy
}

func newTestServer(t *testing.T, s PageScraper, m ModelService, jobs JobRunner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if jobs == nil {
		d := worker.NewDispatcher(worker.Config{MinWorkers: 1, MaxWorkers: 2, QueueSize: 8})
		t.Cleanup(d.Close)
		jobs = d
	}
	router := gin.New()
	NewHandler(s, m, jobs).RegisterRoutes(router, []string{"http://localhost:5173"})
	return router
}

func TestScrapeEndpoint(t *testing.T) {
	s := &mockScraper{pages: map[string]*scraper.Page{
		"https://example.com": {Content: "Example text", Title: "Example Domain", URL: "https://example.com"},
	}}
	router := newTestServer(t, s, &mockModels{}, nil)

	resp := doJSONRequest(t, router, http.MethodPost, "/api/scrape", map[string]string{"url": "https://example.com"}, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Content string `json:"content"`
		Title   string `json:"title"`
		URL     string `json:"url"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Content != "Example text" || body.Title != "Example Domain" || body.URL != "https://example.com" {
		t.Fatalf("unexpected scrape body: %+v", body)
	}
}

func TestScrapeEndpointErrors(t *testing.T) {
	router := newTestServer(t, &mockScraper{}, &mockModels{}, nil)

	resp := doJSONRequest(t, router, http.MethodPost, "/api/scrape", map[string]string{"url": "https://missing.example"}, nil)
	assertStatus(t, resp, http.StatusInternalServerError)
	if got := errorMessage(t, resp); got != "Error scraping website: Failed to access URL: 404" {
		t.Fatalf("unexpected error %q", got)
	}

	resp = doJSONRequest(t, router, http.MethodPost, "/api/scrape", map[string]string{"url": "  "}, nil)
	assertStatus(t, resp, http.StatusBadRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/scrape", bytes.NewBufferString("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusBadRequest)

	invalid := newTestServer(t, &mockScraper{err: scraper.ErrInvalidURL}, &mockModels{}, nil)
	resp = doJSONRequest(t, invalid, http.MethodPost, "/api/scrape", map[string]string{"url": "ftp://x"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestOllamaEndpoint(t *testing.T) {
	models := &mockModels{}
	router := newTestServer(t, &mockScraper{}, models, nil)

	resp := doJSONRequest(t, router, http.MethodPost, "/api/ollama", map[string]string{
		"model":   "llama3",
		"content": "Example text",
		"prompt":  "Summarize",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Response string `json:"response"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Response != "answer about: Example text" {
		t.Fatalf("unexpected response %q", body.Response)
	}
	if models.last.Model != "llama3" || models.last.Prompt != "Summarize" {
		t.Fatalf("unexpected query: %+v", models.last)
	}
}

func TestOllamaEndpointErrors(t *testing.T) {
	models := &mockModels{err: errors.New("connection refused")}
	router := newTestServer(t, &mockScraper{}, models, nil)

	resp := doJSONRequest(t, router, http.MethodPost, "/api/ollama", map[string]string{
		"model": "llama3", "content": "c", "prompt": "p",
	}, nil)
	assertStatus(t, resp, http.StatusInternalServerError)
	if got := errorMessage(t, resp); got != "Error processing with Ollama: connection refused" {
		t.Fatalf("unexpected error %q", got)
	}

	resp = doJSONRequest(t, router, http.MethodPost, "/api/ollama", map[string]string{"model": "llama3", "content": "c"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)

	noModel := newTestServer(t, &mockScraper{}, &mockModels{}, nil)
	resp = doJSONRequest(t, noModel, http.MethodPost, "/api/ollama", map[string]string{"content": "c", "prompt": "p"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestModelsEndpoint(t *testing.T) {
	router := newTestServer(t, &mockScraper{}, &mockModels{models: []string{"llama3", "mistral"}}, nil)
	resp := doJSONRequest(t, router, http.MethodGet, "/api/models", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Models []string `json:"models"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if len(body.Models) != 2 || body.Models[0] != "llama3" {
		t.Fatalf("unexpected models %v", body.Models)
	}

	empty := newTestServer(t, &mockScraper{}, &mockModels{}, nil)
	resp = doJSONRequest(t, empty, http.MethodGet, "/api/models", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	if resp.Body.String() != `{"models":[]}` {
		t.Fatalf("expected empty array, got %s", resp.Body.String())
	}

	failing := newTestServer(t, &mockScraper{}, &mockModels{listErr: errors.New("ollama down")}, nil)
	resp = doJSONRequest(t, failing, http.MethodGet, "/api/models", nil, nil)
	assertStatus(t, resp, http.StatusInternalServerError)
	if got := errorMessage(t, resp); got != "Error fetching models: ollama down" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestBusyPoolReturns429(t *testing.T) {
	router := newTestServer(t, &mockScraper{}, &mockModels{}, busyRunner{})
	resp := doJSONRequest(t, router, http.MethodPost, "/api/scrape", map[string]string{"url": "https://example.com"}, nil)
	assertStatus(t, resp, http.StatusTooManyRequests)
	if got := errorMessage(t, resp); got != "server is busy, please retry" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestCORS(t *testing.T) {
	router := newTestServer(t, &mockScraper{}, &mockModels{}, nil)

	resp := doJSONRequest(t, router, http.MethodOptions, "/api/scrape", nil, map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": "POST",
	})
	assertStatus(t, resp, http.StatusNoContent)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	resp = doJSONRequest(t, router, http.MethodGet, "/api/models", nil, map[string]string{"Origin": "http://evil.example"})
	assertStatus(t, resp, http.StatusOK)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("origin should not be allowed, got %q", got)
	}
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, rec.Body.Bytes(), &body)
	return body.Error
}
