package campaign

import (
	"context"

	"linkforge/internal/logging"
	"linkforge/internal/publisher"
)

// VerificationResult is the outcome of re-checking one published article
// for its backlink.
type VerificationResult struct {
	Platform   string
	ArticleURL string
	Found      bool
	AnchorText string
	Err        error
}

// VerifyBacklinks re-fetches every article a campaign has published and
// confirms the backlink to the campaign's target URL is still live. Fetch
// failures land in the per-article result, not the returned error, so one
// dead page never hides the rest of the report.
func (o *Orchestrator) VerifyBacklinks(ctx context.Context, id string) ([]VerificationResult, error) {
	c, err := o.Get(id)
	if err != nil {
		return nil, err
	}

	results := make([]VerificationResult, 0, len(c.Articles))
	for _, a := range c.Articles {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		found, anchor, err := publisher.VerifyBacklink(ctx, a.URL, c.TargetURL)
		results = append(results, VerificationResult{
			Platform:   a.Platform,
			ArticleURL: a.URL,
			Found:      found,
			AnchorText: anchor,
			Err:        err,
		})
		logging.AuditBacklink(c.ID, a.Platform, a.URL, found, err)
	}

	live := 0
	for _, r := range results {
		if r.Found {
			live++
		}
	}
	logging.Publish("campaign %s: %d/%d backlinks verified live", c.ID, live, len(results))
	return results, nil
}
