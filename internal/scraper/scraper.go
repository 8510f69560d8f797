package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scrapechat/internal/config"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// ErrInvalidURL is returned for anything but an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid url")

// StatusError reports a non-200 response from the scraped site.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Failed to access URL: %d", e.Code)
}

// Page is the extracted content of one URL.
type Page struct {
	Content string `json:"content"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// Scraper fetches pages and reduces them to plain text or markdown.
type Scraper struct {
	client *http.Client
	cfg    config.ScraperConfig
	cache  Cache
}

// New builds a Scraper. cache may be nil.
func New(cfg config.ScraperConfig, cache Cache) *Scraper {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scraper{
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
		cache:  cache,
	}
}

// Scrape fetches rawURL and extracts its content.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	pageURL := u.String()

	cacheKey := s.format() + ":" + pageURL
	if s.cache != nil {
		if page, ok := s.cache.Get(ctx, cacheKey); ok {
			return page, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,text/plain,text/markdown,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	maxBody := s.cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 5 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	page, err := s.extract(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, err
	}
	page.URL = pageURL
	page.Content = limitContent(page.Content, s.cfg.MaxContentLength)

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, page)
	}
	return page, nil
}

func (s *Scraper) extract(contentType string, body []byte) (*Page, error) {
	switch {
	case strings.Contains(contentType, "text/markdown"),
		strings.Contains(contentType, "text/plain"):
		return &Page{Content: string(body), Title: defaultTitle}, nil
	case !isLikelyText(body):
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}

	doc, err := parseHTML(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	page := &Page{Title: pageTitle(doc)}
	if s.format() == FormatMarkdown {
		markup, err := doc.Html()
		if err == nil {
			if md, err := htmltomarkdown.ConvertString(markup); err == nil {
				page.Content = strings.TrimSpace(md)
				return page, nil
			}
		}
		// fall back to plain text extraction
	}
	page.Content = extractText(doc)
	return page, nil
}

func (s *Scraper) format() string {
	if strings.EqualFold(s.cfg.Format, FormatMarkdown) {
		return FormatMarkdown
	}
	return FormatText
}
