package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	"scrapechat/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// ErrModelRequired is returned when neither the request nor the config names a model.
var ErrModelRequired = errors.New("model is required")

// chatModelFactory builds the chat model for one model name. Tests replace it.
var chatModelFactory = newChatModel

// modelLister lists the models served by an OpenAI compatible endpoint. Tests replace it.
var modelLister = listOpenAIModels

// Service answers questions about scraped content using the configured provider.
type Service struct {
	provider config.ProviderConfig

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

func NewService(cfg config.ProviderConfig) (*Service, error) {
	switch strings.ToLower(cfg.Name) {
	case "ollama", "openai", "claude", "gemini":
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Name)
	}
	cfg.Name = strings.ToLower(cfg.Name)
	return &Service{provider: cfg, models: make(map[string]model.BaseChatModel)}, nil
}

// DefaultModel is the model used when a request does not name one.
func (s *Service) DefaultModel() string {
	if s.provider.Model != "" {
		return s.provider.Model
	}
	if len(s.provider.Models) > 0 {
		return s.provider.Models[0]
	}
	return ""
}

// Query sends content and prompt to modelName and returns the full reply.
func (s *Service) Query(ctx context.Context, modelName, content, prompt string) (string, error) {
	if modelName == "" {
		modelName = s.DefaultModel()
	}
	if modelName == "" {
		return "", ErrModelRequired
	}
	chatModel, err := s.chatModel(ctx, modelName)
	if err != nil {
		return "", err
	}

	reader, err := chatModel.Stream(ctx, buildMessages(content, prompt))
	if err != nil {
		return "", fmt.Errorf("generate stream failed: %w", err)
	}
	defer reader.Close()

	var full strings.Builder
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("receive stream: %w", err)
		}
		full.WriteString(chunk.Content)
	}
	return full.String(), nil
}

// ListModels returns the available model names, sorted.
func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	switch s.provider.Name {
	case "ollama", "openai":
		listed, err := modelLister(ctx, s.openAIBaseURL(), s.apiKey())
		if err != nil {
			return nil, err
		}
		names = listed
	default:
		names = append(names, s.provider.Models...)
		if len(names) == 0 && s.provider.Model != "" {
			names = append(names, s.provider.Model)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Service) chatModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.models[modelName]; ok {
		return m, nil
	}
	m, err := chatModelFactory(ctx, s.provider, modelName)
	if err != nil {
		return nil, fmt.Errorf("init %s model %s: %w", s.provider.Name, modelName, err)
	}
	log.Printf("initialized %s chat model %s", s.provider.Name, modelName)
	s.models[modelName] = m
	return m, nil
}

// openAIBaseURL points at the OpenAI compatible API root. For Ollama that is <base>/v1.
func (s *Service) openAIBaseURL() string {
	base := strings.TrimRight(s.provider.BaseURL, "/")
	if s.provider.Name == "ollama" && !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

func (s *Service) apiKey() string {
	if s.provider.APIKey == "" && s.provider.Name == "ollama" {
		// ollama ignores the key but the OpenAI clients require one
		return "ollama"
	}
	return s.provider.APIKey
}

func newChatModel(ctx context.Context, provider config.ProviderConfig, modelName string) (model.BaseChatModel, error) {
	svc := &Service{provider: provider}
	switch provider.Name {
	case "ollama", "openai":
		return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			BaseURL: svc.openAIBaseURL(),
			Model:   modelName,
			APIKey:  svc.apiKey(),
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provider.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provider.BaseURL != "" {
			baseURLPtr = &provider.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provider.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider.Name)
	}
}

func listOpenAIModels(ctx context.Context, baseURL, apiKey string) ([]string, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL+"/"))
	}
	client := openai.NewClient(opts...)
	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names, nil
}
