package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"linkforge/internal/config"
	"linkforge/internal/logging"
	"linkforge/internal/retry"
)

// REST publishes to a self-hosted endpoint that accepts a JSON article
// POST and answers with the published URL. It covers the catalog entries
// that are not one of the hosted platforms.
type REST struct {
	platform   string
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewREST creates a generic REST adapter from a catalog entry. BaseURL is
// the full endpoint that receives the POST.
func NewREST(entry config.CatalogEntry) *REST {
	return &REST{
		platform:   entry.ID,
		token:      entry.AccessToken,
		baseURL:    entry.BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (r *REST) Platform() string { return r.platform }

type restRequest struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	TargetURL  string   `json:"target_url,omitempty"`
	AnchorText string   `json:"anchor_text,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type restResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// Publish POSTs the draft and expects {"url": ...} back.
func (r *REST) Publish(ctx context.Context, d Draft) (*Receipt, error) {
	if r.baseURL == "" {
		return nil, &PlatformError{Platform: r.platform, Kind: retry.KindNotFound, Err: fmt.Errorf("base_url not configured")}
	}

	jsonData, err := json.Marshal(restRequest{
		Title:      d.Title,
		Body:       d.Body,
		TargetURL:  d.TargetURL,
		AnchorText: d.AnchorText,
		Tags:       d.Tags,
	})
	if err != nil {
		return nil, &PlatformError{Platform: r.platform, Kind: retry.KindUnknown, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &PlatformError{Platform: r.platform, Kind: retry.KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &PlatformError{Platform: r.platform, Kind: retry.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PlatformError{Platform: r.platform, Kind: retry.KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &PlatformError{
			Platform:   r.platform,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("publish failed: %s", truncateBody(respBody)),
		}
	}

	var parsed restResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &PlatformError{Platform: r.platform, Kind: retry.KindAPI, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if parsed.URL == "" {
		return nil, &PlatformError{Platform: r.platform, Kind: retry.KindAPI, Err: fmt.Errorf("response carried no article URL")}
	}

	logging.Publish("article published to %s: %s", r.platform, parsed.URL)
	return &Receipt{URL: parsed.URL, PublishedAt: time.Now().UTC()}, nil
}
