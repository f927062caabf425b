package provider

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"linkforge/internal/logging"
	"linkforge/internal/retry"
)

// ChainConfig configures the failover chain.
type ChainConfig struct {
	// Default names the provider that gets first-try bias.
	Default string
	// DefaultBias is the probability the default provider is tried first
	// (default: 0.7).
	DefaultBias float64
	// Policy is the per-provider retry budget, smaller than a standalone
	// call's so the chain fails over instead of exhausting one provider.
	Policy retry.Policy
	// InterDelay caps the backoff between providers (default: 5s).
	InterDelay time.Duration
}

// Chain tries providers in a randomized, default-biased order until one
// succeeds, then escalates to the out-of-band fallback.
type Chain struct {
	providers []Provider
	fallback  Provider
	cfg       ChainConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// DefaultChainPolicy is the per-provider retry budget.
func DefaultChainPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:     2,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		AttemptTimeout: 60 * time.Second,
		JitterFactor:   0.2,
	}
}

// NewChain creates a provider chain. The fallback is tried only after
// every listed provider fails; it may be nil.
func NewChain(providers []Provider, fallback Provider, cfg ChainConfig) *Chain {
	if cfg.DefaultBias <= 0 || cfg.DefaultBias > 1 {
		cfg.DefaultBias = 0.7
	}
	if cfg.InterDelay <= 0 {
		cfg.InterDelay = 5 * time.Second
	}
	if cfg.Policy.MaxRetries == 0 && cfg.Policy.BaseDelay == 0 {
		cfg.Policy = DefaultChainPolicy()
	}
	return &Chain{
		providers: providers,
		fallback:  fallback,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate runs the failover chain for one prompt. It always returns the
// full attempt log; on total failure the error is a *ChainError carrying
// that log, never a raw provider error.
func (c *Chain) Generate(ctx context.Context, prompt string, opts Options) (*Result, []Attempt, error) {
	order := c.order()
	attempts := make([]Attempt, 0, len(order)+1)
	var lastErr error

	interDelay := c.cfg.Policy.BaseDelay
	for i, p := range order {
		if !p.IsConfigured() {
			logging.ProviderDebug("provider %s unconfigured, skipping", p.Name())
			attempts = append(attempts, Attempt{
				Provider:  p.Name(),
				Success:   false,
				Err:       "not configured",
				Timestamp: time.Now(),
			})
			continue
		}

		result, err := retry.Do(ctx, "generate/"+p.Name(), c.cfg.Policy, func(ctx context.Context) (*Result, error) {
			return p.Generate(ctx, prompt, opts)
		})
		if err == nil {
			attempts = append(attempts, Attempt{Provider: p.Name(), Success: true, Timestamp: time.Now()})
			logging.Provider("provider %s succeeded (%d words)", p.Name(), result.WordCount())
			return result, attempts, nil
		}

		lastErr = err
		attempts = append(attempts, Attempt{
			Provider:  p.Name(),
			Success:   false,
			Err:       err.Error(),
			Timestamp: time.Now(),
		})
		logging.Get(logging.CategoryProvider).Warn("provider %s failed: %v", p.Name(), err)

		// Exponential backoff between providers, capped.
		if i < len(order)-1 && interDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, attempts, &ChainError{Attempts: attempts, Last: ctx.Err()}
			case <-time.After(interDelay):
			}
			interDelay *= 2
			if interDelay > c.cfg.InterDelay {
				interDelay = c.cfg.InterDelay
			}
		}
	}

	// Out-of-band fallback: tried once, no retry budget.
	if c.fallback != nil && c.fallback.IsConfigured() {
		logging.Provider("escalating to fallback provider %s", c.fallback.Name())
		result, err := c.fallback.Generate(ctx, prompt, opts)
		if err == nil {
			attempts = append(attempts, Attempt{Provider: c.fallback.Name(), Success: true, Timestamp: time.Now()})
			return result, attempts, nil
		}
		lastErr = err
		attempts = append(attempts, Attempt{
			Provider:  c.fallback.Name(),
			Success:   false,
			Err:       err.Error(),
			Timestamp: time.Now(),
		})
	}

	if lastErr == nil {
		lastErr = &Error{Provider: "chain", Kind: retry.KindUnknown, Err: context.Canceled}
	}
	return nil, attempts, &ChainError{Attempts: attempts, Last: lastErr}
}

// order returns the providers shuffled, with the configured default put
// first 70% of the time.
func (c *Chain) order() []Provider {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	c.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})

	if c.cfg.Default == "" {
		return out
	}
	if c.rng.Float64() >= c.cfg.DefaultBias {
		return out
	}
	for i, p := range out {
		if p.Name() == c.cfg.Default {
			out[0], out[i] = out[i], out[0]
			break
		}
	}
	return out
}
