package platform

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"linkforge/internal/logging"
)

// ProbeFunc checks whether one platform's adapter endpoint is reachable.
type ProbeFunc func(ctx context.Context) error

// ProbeResult is the outcome of probing one platform.
type ProbeResult struct {
	ID      string
	Latency time.Duration
	Err     error
}

// Probe checks all given adapter endpoints concurrently and returns one
// result per probe in registration order. Probes are advisory; they do not
// touch health counters.
func (r *Registry) Probe(ctx context.Context, probes map[string]ProbeFunc) []ProbeResult {
	r.mu.Lock()
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if _, ok := probes[id]; ok {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	results := make([]ProbeResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			start := time.Now()
			err := probes[id](gctx)
			results[i] = ProbeResult{ID: id, Latency: time.Since(start), Err: err}
			if err != nil {
				logging.Get(logging.CategoryHealth).Warn("probe %s failed after %v: %v", id, results[i].Latency, err)
			} else {
				logging.HealthDebug("probe %s ok in %v", id, results[i].Latency)
			}
			return nil // Probe failures are reported, not fatal
		})
	}
	_ = g.Wait()

	return results
}
