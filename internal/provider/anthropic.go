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

// AnthropicProvider generates content through the Anthropic messages API.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// AnthropicConfig holds configuration for the Anthropic provider.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.anthropic.com/v1",
		Model:   "claude-3-5-haiku-20241022",
		Timeout: 120 * time.Second,
	}
}

// NewAnthropicProvider creates an Anthropic provider with default config.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return NewAnthropicProviderWithConfig(DefaultAnthropicConfig(apiKey))
}

// NewAnthropicProviderWithConfig creates an Anthropic provider with custom config.
func NewAnthropicProviderWithConfig(config AnthropicConfig) *AnthropicProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-20241022"
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	return &AnthropicProvider{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) IsConfigured() bool { return p.apiKey != "" }

// anthropicRequest represents the API request structure.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

// anthropicMessage represents a message in the conversation.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse represents the API response structure.
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate produces article content for the prompt.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if p.apiKey == "" {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAuth, Err: fmt.Errorf("API key not configured")}
	}

	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096 // The messages API requires max_tokens
	}
	reqBody := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: opts.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindUnknown, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

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

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAPI, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if parsed.Error != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAPI, Err: fmt.Errorf("API error: %s", parsed.Error.Message)}
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAPI, Err: fmt.Errorf("empty completion")}
	}

	result := &Result{
		Provider: p.Name(),
		Content:  content,
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
		},
	}
	logging.ProviderDebug("anthropic generated %d words (model=%s)", result.WordCount(), model)
	return result, nil
}
