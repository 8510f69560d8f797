package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"scrapechat/internal/llm"
	"scrapechat/internal/scraper"
	"scrapechat/internal/worker"
)

// PageScraper fetches and extracts a page.
type PageScraper interface {
	Scrape(ctx context.Context, pageURL string) (*scraper.Page, error)
}

// ModelService answers prompts about content and lists models.
type ModelService interface {
	Query(ctx context.Context, model, content, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// JobRunner runs fn on the worker pool and waits for it.
type JobRunner interface {
	Submit(ctx context.Context, key, name string, fn func(ctx context.Context) error) error
}

// Handler wires HTTP routes to the scraper and the model service. Every
// upstream call runs on the worker pool.
type Handler struct {
	scraper PageScraper
	models  ModelService
	jobs    JobRunner
}

// NewHandler constructs a Handler instance.
func NewHandler(s PageScraper, m ModelService, jobs JobRunner) *Handler {
	return &Handler{scraper: s, models: m, jobs: jobs}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine, allowedOrigins []string) {
	api := router.Group("/api")
	api.Use(CORSMiddleware(allowedOrigins))
	api.GET("/models", h.listModels)
	api.POST("/scrape", h.scrape)
	api.POST("/ollama", h.query)
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func (h *Handler) listModels(c *gin.Context) {
	var names []string
	err := h.jobs.Submit(c.Request.Context(), c.ClientIP(), "models", func(ctx context.Context) error {
		var err error
		names, err = h.models.ListModels(ctx)
		return err
	})
	if err != nil {
		h.fail(c, "Error fetching models: ", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"models": names})
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (h *Handler) scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	var page *scraper.Page
	err := h.jobs.Submit(c.Request.Context(), c.ClientIP(), "scrape", func(ctx context.Context) error {
		var err error
		page, err = h.scraper.Scrape(ctx, req.URL)
		return err
	})
	if err != nil {
		if errors.Is(err, scraper.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, "Error scraping website: ", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"content": page.Content,
		"title":   page.Title,
		"url":     page.URL,
	})
}

type queryRequest struct {
	Model   string `json:"model"`
	Content string `json:"content"`
	Prompt  string `json:"prompt"`
}

func (h *Handler) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	var answer string
	err := h.jobs.Submit(c.Request.Context(), c.ClientIP(), "ollama", func(ctx context.Context) error {
		var err error
		answer, err = h.models.Query(ctx, req.Model, req.Content, req.Prompt)
		return err
	})
	if err != nil {
		if errors.Is(err, llm.ErrModelRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, "Error processing with Ollama: ", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": answer})
}

func (h *Handler) fail(c *gin.Context, prefix string, err error) {
	if errors.Is(err, worker.ErrPoolBusy) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
		return
	}
	if errors.Is(err, worker.ErrPoolClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": prefix + err.Error()})
}
