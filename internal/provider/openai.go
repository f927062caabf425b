package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"linkforge/internal/logging"
	"linkforge/internal/retry"
)

// OpenAIProvider generates content through the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 120 * time.Second,
	}
}

// NewOpenAIProvider creates an OpenAI provider with default config.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return NewOpenAIProviderWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIProviderWithConfig creates an OpenAI provider with custom config.
func NewOpenAIProviderWithConfig(config OpenAIConfig) *OpenAIProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	return &OpenAIProvider{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) IsConfigured() bool { return p.apiKey != "" }

// openAIRequest represents the API request structure.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

// openAIMessage represents a message in the conversation.
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse represents the API response structure.
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate produces article content for the prompt. Retrying is the
// executor's job; one call here is exactly one API request.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if p.apiKey == "" {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAuth, Err: fmt.Errorf("API key not configured")}
	}

	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}
	reqBody := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindUnknown, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Provider: p.Name(),
			Kind:     kindForStatus(resp.StatusCode),
			Err:      fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 300)),
		}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAPI, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if parsed.Error != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAPI, Err: fmt.Errorf("API error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAPI, Err: fmt.Errorf("no choices in response")}
	}
	if parsed.Choices[0].FinishReason == "content_filter" {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindContent, Err: fmt.Errorf("generation blocked by content filter")}
	}

	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAPI, Err: fmt.Errorf("empty completion")}
	}

	result := &Result{
		Provider: p.Name(),
		Content:  content,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}
	logging.ProviderDebug("openai generated %d words (model=%s)", result.WordCount(), model)
	return result, nil
}

// kindForStatus maps an HTTP status onto the retry taxonomy.
func kindForStatus(status int) retry.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return retry.KindAuth
	case status == http.StatusTooManyRequests:
		return retry.KindRateLimit
	case status == http.StatusNotFound:
		return retry.KindNotFound
	case status == http.StatusPaymentRequired:
		return retry.KindQuota
	case status >= 500:
		return retry.KindAPI
	default:
		return retry.KindUnknown
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
