package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"linkforge/internal/config"
	"linkforge/internal/logging"
	"linkforge/internal/retry"
)

// DevTo publishes markdown articles through the Forem (dev.to) API.
type DevTo struct {
	platform   string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewDevTo creates a dev.to adapter from a catalog entry.
func NewDevTo(entry config.CatalogEntry) *DevTo {
	baseURL := entry.BaseURL
	if baseURL == "" {
		baseURL = "https://dev.to/api"
	}
	return &DevTo{
		platform:   entry.ID,
		apiKey:     entry.AccessToken,
		baseURL:    baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (d *DevTo) Platform() string { return d.platform }

type devToRequest struct {
	Article devToArticle `json:"article"`
}

type devToArticle struct {
	Title        string   `json:"title"`
	BodyMarkdown string   `json:"body_markdown"`
	Published    bool     `json:"published"`
	Tags         []string `json:"tags,omitempty"`
}

type devToResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// Publish creates a published dev.to article from the draft. The backlink
// is appended as a markdown link when the body does not already carry it.
func (d *DevTo) Publish(ctx context.Context, draft Draft) (*Receipt, error) {
	if d.apiKey == "" {
		return nil, &PlatformError{Platform: d.platform, Kind: retry.KindAuth, Err: fmt.Errorf("API key not configured")}
	}

	body := draft.Body
	if draft.TargetURL != "" && !strings.Contains(body, draft.TargetURL) {
		anchor := draft.AnchorText
		if anchor == "" {
			anchor = draft.TargetURL
		}
		body += fmt.Sprintf("\n\nLearn more: [%s](%s)\n", anchor, draft.TargetURL)
	}

	reqBody := devToRequest{Article: devToArticle{
		Title:        draft.Title,
		BodyMarkdown: body,
		Published:    true,
		Tags:         draft.Tags,
	}}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &PlatformError{Platform: d.platform, Kind: retry.KindUnknown, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"/articles", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &PlatformError{Platform: d.platform, Kind: retry.KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &PlatformError{Platform: d.platform, Kind: retry.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PlatformError{Platform: d.platform, Kind: retry.KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, &PlatformError{
			Platform:   d.platform,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("article create failed: %s", truncateBody(respBody)),
		}
	}

	var parsed devToResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &PlatformError{Platform: d.platform, Kind: retry.KindAPI, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if parsed.URL == "" {
		return nil, &PlatformError{Platform: d.platform, Kind: retry.KindAPI, Err: fmt.Errorf("response carried no article URL")}
	}

	logging.Publish("dev.to article created: %s", parsed.URL)
	return &Receipt{URL: parsed.URL, PublishedAt: time.Now().UTC()}, nil
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
