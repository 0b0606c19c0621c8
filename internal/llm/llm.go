package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TobiSchelling/bizscout/internal/httpx"
)

// Groq defaults for the OpenAI-compatible provider.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
	DefaultKeyEnv  = "GROQ_API_KEY"
)

// Request is a single chat exchange: one system message and one user
// message.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

func (r Request) messages() []map[string]string {
	msgs := make([]map[string]string, 0, 2)
	if r.System != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": r.System})
	}
	return append(msgs, map[string]string{"role": "user", "content": r.Prompt})
}

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	IsConfigured() bool
}

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client

	checkOnce  sync.Once
	configured bool
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, timeout time.Duration) *OllamaProvider {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks once whether Ollama is running and the model is
// available.
func (o *OllamaProvider) IsConfigured() bool {
	o.checkOnce.Do(func() {
		o.configured = o.probe()
	})
	return o.configured
}

func (o *OllamaProvider) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	err := httpx.DoJSON(ctx, o.client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	}, &result, httpx.RetryConfig{MaxAttempts: 1})
	if err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	zap.L().Warn("ollama model not found", zap.String("model", o.Model))
	return false
}

// Generate sends a chat request to Ollama and returns the reply.
func (o *OllamaProvider) Generate(ctx context.Context, r Request) (string, error) {
	body := map[string]any{
		"model":    o.Model,
		"messages": r.messages(),
		"stream":   false,
		"options": map[string]any{
			"num_predict": r.MaxTokens,
			"temperature": r.Temperature,
		},
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/api/chat", "", body, &result); err != nil {
		return "", eris.Wrap(err, "ollama chat")
	}
	return result.Message.Content, nil
}

// OpenAIProvider speaks the OpenAI chat completions protocol. Groq is the
// default endpoint.
type OpenAIProvider struct {
	Model   string
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewOpenAIProvider creates a provider whose key is read from apiKeyEnv.
func NewOpenAIProvider(model, baseURL, apiKeyEnv string, timeout time.Duration) *OpenAIProvider {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiKeyEnv == "" {
		apiKeyEnv = DefaultKeyEnv
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  strings.TrimSpace(os.Getenv(apiKeyEnv)),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Generate sends a chat completion request and returns the first choice.
func (o *OpenAIProvider) Generate(ctx context.Context, r Request) (string, error) {
	if o.APIKey == "" {
		return "", eris.New("api key not configured")
	}

	body := map[string]any{
		"model":       o.Model,
		"messages":    r.messages(),
		"max_tokens":  r.MaxTokens,
		"temperature": r.Temperature,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/chat/completions", o.APIKey, body, &result); err != nil {
		return "", eris.Wrap(err, "chat completion")
	}
	if len(result.Choices) == 0 {
		return "", eris.New("no choices in chat completion response")
	}
	return result.Choices[0].Message.Content, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint, apiKey string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshaling request")
	}
	// 429 and timeouts are retried once; 5xx is not.
	retry := httpx.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.Retry5xx = false

	return httpx.DoJSON(ctx, client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
		return req, nil
	}, out, retry)
}

// Settings selects and configures a provider.
type Settings struct {
	Provider  string
	Model     string
	BaseURL   string
	OllamaURL string
	APIKeyEnv string
	Timeout   time.Duration
}

// CreateProvider creates an LLM provider based on configuration. It
// returns nil when no provider is usable.
func CreateProvider(s Settings) Provider {
	if strings.ToLower(s.Provider) == "ollama" {
		p := NewOllamaProvider(s.Model, s.OllamaURL, s.Timeout)
		if p.IsConfigured() {
			zap.L().Info("using ollama", zap.String("model", s.Model))
			return p
		}
		zap.L().Warn("ollama not available, trying chat completions fallback")
	}

	model := s.Model
	if strings.ToLower(s.Provider) == "ollama" {
		model = DefaultModel
	}
	p := NewOpenAIProvider(model, s.BaseURL, s.APIKeyEnv, s.Timeout)
	if p.IsConfigured() {
		zap.L().Info("using chat completions", zap.String("model", p.Model), zap.String("base_url", p.BaseURL))
		return p
	}

	keyEnv := s.APIKeyEnv
	if keyEnv == "" {
		keyEnv = DefaultKeyEnv
	}
	zap.L().Warn("no LLM provider available; scoring disabled", zap.String("key_env", keyEnv))
	return nil
}
