package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	fallbackScrapeError = "Failed to scrape website"
	fallbackQueryError  = "Failed to get model response"
	fallbackModelsError = "Failed to get Ollama models"
)

// APIError is a non-2xx answer from the backend. Message is what the user sees.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Page mirrors the /api/scrape response.
type Page struct {
	Content string `json:"content"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// Client talks to the scrapechat backend under baseURL (for example http://localhost:8000/api).
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client. A zero timeout leaves requests bounded only by their context.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout < 0 {
		timeout = 0
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Scrape returns the extracted text of pageURL.
func (c *Client) Scrape(ctx context.Context, pageURL string) (string, error) {
	page, err := c.ScrapePage(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return page.Content, nil
}

// ScrapePage returns the full scrape result.
func (c *Client) ScrapePage(ctx context.Context, pageURL string) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodPost, "/scrape", map[string]string{"url": pageURL}, &page, fallbackScrapeError); err != nil {
		return nil, err
	}
	return &page, nil
}

// Query asks model about content.
func (c *Client) Query(ctx context.Context, model, content, prompt string) (string, error) {
	req := map[string]string{"model": model, "content": content, "prompt": prompt}
	var resp struct {
		Response string `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/ollama", req, &resp, fallbackQueryError); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Models lists the model names the backend can serve.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var resp struct {
		Models []string `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/models", nil, &resp, fallbackModelsError); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, fallback string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data, fallback)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage reads the "error" field, or "detail" as written by older backends.
func errorMessage(data []byte, fallback string) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fallback
	}
	if body.Error != "" {
		return body.Error
	}
	if body.Detail != "" {
		return body.Detail
	}
	return fallback
}
