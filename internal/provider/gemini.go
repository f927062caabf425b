package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"linkforge/internal/logging"
	"linkforge/internal/retry"
)

// GeminiProvider generates content through the Google Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini provider. A missing API key yields an
// unconfigured provider, not an error; the chain skips it.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	p := &GeminiProvider{model: model}
	if apiKey == "" {
		return p
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logging.Get(logging.CategoryProvider).Error("gemini client init failed: %v", err)
		return p
	}
	p.client = client
	return p
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) IsConfigured() bool { return p.client != nil }

// Generate produces article content for the prompt.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if p.client == nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.KindAuth, Err: fmt.Errorf("API key not configured")}
	}

	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}

	cfg := &genai.GenerateContentConfig{}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: retry.Classify(err), Err: err}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		// Empty candidates usually mean the safety filters ate the output.
		return nil, &Error{Provider: p.Name(), Kind: retry.KindContent, Err: fmt.Errorf("empty response")}
	}

	result := &Result{Provider: p.Name(), Content: text}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	logging.ProviderDebug("gemini generated %d words (model=%s)", result.WordCount(), model)
	return result, nil
}
