package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"linkforge/internal/retry"
)

type stubProvider struct {
	name       string
	configured bool
	err        error
	content    string
	calls      int
}

func (s *stubProvider) Name() string       { return s.name }
func (s *stubProvider) IsConfigured() bool { return s.configured }

func (s *stubProvider) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	content := s.content
	if content == "" {
		content = "stub article body"
	}
	return &Result{Provider: s.name, Content: content}, nil
}

func fastChainConfig(defaultName string) ChainConfig {
	return ChainConfig{
		Default:     defaultName,
		DefaultBias: 0.7,
		Policy: retry.Policy{
			MaxRetries:     1,
			BaseDelay:      time.Millisecond,
			MaxDelay:       2 * time.Millisecond,
			AttemptTimeout: time.Second,
		},
		InterDelay: 2 * time.Millisecond,
	}
}

func authErr(name string) error {
	return &Error{Provider: name, Kind: retry.KindAuth, Err: errors.New("invalid api key")}
}

func TestChainSkipsUnconfiguredProvider(t *testing.T) {
	a := &stubProvider{name: "gemini", configured: false}
	b := &stubProvider{name: "openai", configured: true}
	chain := NewChain([]Provider{a, b}, nil, fastChainConfig("gemini"))

	result, attempts, err := chain.Generate(context.Background(), `Write about "espresso"`, Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Provider != "openai" {
		t.Errorf("expected result from openai, got %s", result.Provider)
	}
	if a.calls != 0 {
		t.Errorf("unconfigured provider was called %d times", a.calls)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts in the log, got %d", len(attempts))
	}
	byName := map[string]Attempt{}
	for _, at := range attempts {
		byName[at.Provider] = at
	}
	if at := byName["gemini"]; at.Success || at.Err != "not configured" {
		t.Errorf("gemini attempt = %+v, want failed/not configured", at)
	}
	if at := byName["openai"]; !at.Success {
		t.Errorf("openai attempt = %+v, want success", at)
	}
}

func TestChainFailsOverAfterTerminalError(t *testing.T) {
	a := &stubProvider{name: "gemini", configured: true, err: authErr("gemini")}
	b := &stubProvider{name: "openai", configured: true}
	cfg := fastChainConfig("gemini")
	cfg.DefaultBias = 1 // deterministic order for the assertion below
	chain := NewChain([]Provider{a, b}, nil, cfg)

	result, attempts, err := chain.Generate(context.Background(), "prompt", Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Provider != "openai" {
		t.Errorf("expected failover to openai, got %s", result.Provider)
	}
	// Terminal errors must not consume the retry budget.
	if a.calls != 1 {
		t.Errorf("terminal failure retried: %d calls", a.calls)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0].Provider != "gemini" || attempts[0].Success {
		t.Errorf("first attempt = %+v, want failed gemini", attempts[0])
	}
}

func TestChainRetriesTransientErrorWithinBudget(t *testing.T) {
	a := &stubProvider{name: "gemini", configured: true,
		err: &Error{Provider: "gemini", Kind: retry.KindNetwork, Err: errors.New("connection reset")}}
	b := &stubProvider{name: "openai", configured: true}
	cfg := fastChainConfig("gemini")
	cfg.DefaultBias = 1
	chain := NewChain([]Provider{a, b}, nil, cfg)

	_, _, err := chain.Generate(context.Background(), "prompt", Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// MaxRetries 1 means two attempts against the flaky provider.
	if a.calls != 2 {
		t.Errorf("expected 2 calls against flaky provider, got %d", a.calls)
	}
}

func TestChainEscalatesToFallback(t *testing.T) {
	a := &stubProvider{name: "gemini", configured: true, err: authErr("gemini")}
	b := &stubProvider{name: "openai", configured: true, err: authErr("openai")}
	fb := &stubProvider{name: "template", configured: true, content: "fallback article"}
	chain := NewChain([]Provider{a, b}, fb, fastChainConfig("gemini"))

	result, attempts, err := chain.Generate(context.Background(), "prompt", Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Provider != "template" {
		t.Errorf("expected fallback result, got %s", result.Provider)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	last := attempts[len(attempts)-1]
	if last.Provider != "template" || !last.Success {
		t.Errorf("last attempt = %+v, want template success", last)
	}
}

func TestChainTotalFailureReturnsChainError(t *testing.T) {
	a := &stubProvider{name: "gemini", configured: true, err: authErr("gemini")}
	fb := &stubProvider{name: "template", configured: true, err: errors.New("template exploded")}
	chain := NewChain([]Provider{a}, fb, fastChainConfig("gemini"))

	_, attempts, err := chain.Generate(context.Background(), "prompt", Options{})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected *ChainError, got %T: %v", err, err)
	}
	if len(chainErr.Attempts) != len(attempts) {
		t.Errorf("ChainError carries %d attempts, return carries %d", len(chainErr.Attempts), len(attempts))
	}
	if len(attempts) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(attempts))
	}
	for _, at := range attempts {
		if at.Success {
			t.Errorf("attempt %+v marked success on total failure", at)
		}
	}
}

func TestChainDefaultBiasOrdersDefaultFirst(t *testing.T) {
	// With bias 1 the default provider must always lead the order.
	for i := 0; i < 20; i++ {
		a := &stubProvider{name: "gemini", configured: true, err: authErr("gemini")}
		b := &stubProvider{name: "openai", configured: true, err: authErr("openai")}
		c := &stubProvider{name: "anthropic", configured: true, err: authErr("anthropic")}
		cfg := fastChainConfig("anthropic")
		cfg.DefaultBias = 1
		chain := NewChain([]Provider{a, b, c}, nil, cfg)

		_, attempts, err := chain.Generate(context.Background(), "prompt", Options{})
		if err == nil {
			t.Fatalf("run %d: expected failure", i)
		}
		if len(attempts) == 0 || attempts[0].Provider != "anthropic" {
			t.Fatalf("run %d: default provider not tried first: %+v", i, attempts)
		}
	}
}

func TestChainHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &stubProvider{name: "gemini", configured: true}
	chain := NewChain([]Provider{a}, nil, fastChainConfig("gemini"))

	_, _, err := chain.Generate(ctx, "prompt", Options{})
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected *ChainError, got %T", err)
	}
}

func TestProviderErrorClassification(t *testing.T) {
	cases := []struct {
		kind      retry.Kind
		retryable bool
	}{
		{retry.KindNetwork, true},
		{retry.KindTimeout, true},
		{retry.KindRateLimit, true},
		{retry.KindAPI, true},
		{retry.KindAuth, false},
		{retry.KindQuota, false},
		{retry.KindNotFound, false},
		{retry.KindContent, false},
	}
	for _, tc := range cases {
		err := &Error{Provider: "x", Kind: tc.kind, Err: fmt.Errorf("boom")}
		if got := retry.Classify(err); got != tc.kind {
			t.Errorf("Classify(%s error) = %s", tc.kind, got)
		}
		if got := tc.kind.Retryable(); got != tc.retryable {
			t.Errorf("%s.Retryable() = %v, want %v", tc.kind, got, tc.retryable)
		}
	}
}
