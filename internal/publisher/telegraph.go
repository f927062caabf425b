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

// Telegraph publishes through the telegra.ph page API. Telegraph wants
// structured content nodes rather than markdown, so the draft body is
// converted before the call.
type Telegraph struct {
	platform    string
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

// NewTelegraph creates a Telegraph adapter from a catalog entry.
func NewTelegraph(entry config.CatalogEntry) *Telegraph {
	baseURL := entry.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegra.ph"
	}
	return &Telegraph{
		platform:    entry.ID,
		accessToken: entry.AccessToken,
		baseURL:     baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegraph) Platform() string { return t.platform }

// telegraphNode is one element of Telegraph's content tree. Children are
// either strings or nested nodes.
type telegraphNode struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []any             `json:"children,omitempty"`
}

type telegraphRequest struct {
	AccessToken string          `json:"access_token"`
	Title       string          `json:"title"`
	Content     []telegraphNode `json:"content"`
}

type telegraphResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Result struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	} `json:"result"`
}

// Publish creates a Telegraph page for the draft.
func (t *Telegraph) Publish(ctx context.Context, d Draft) (*Receipt, error) {
	if t.accessToken == "" {
		return nil, &PlatformError{Platform: t.platform, Kind: retry.KindAuth, Err: fmt.Errorf("access token not configured")}
	}

	reqBody := telegraphRequest{
		AccessToken: t.accessToken,
		Title:       d.Title,
		Content:     bodyToNodes(d),
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &PlatformError{Platform: t.platform, Kind: retry.KindUnknown, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+"/createPage", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &PlatformError{Platform: t.platform, Kind: retry.KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &PlatformError{Platform: t.platform, Kind: retry.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PlatformError{Platform: t.platform, Kind: retry.KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &PlatformError{
			Platform:   t.platform,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("createPage failed: %s", strings.TrimSpace(string(body))),
		}
	}

	var parsed telegraphResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &PlatformError{Platform: t.platform, Kind: retry.KindAPI, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if !parsed.OK {
		kind := retry.KindAPI
		if strings.Contains(parsed.Error, "ACCESS_TOKEN") {
			kind = retry.KindAuth
		}
		return nil, &PlatformError{Platform: t.platform, Kind: kind, Err: fmt.Errorf("telegraph error: %s", parsed.Error)}
	}
	if parsed.Result.URL == "" {
		return nil, &PlatformError{Platform: t.platform, Kind: retry.KindAPI, Err: fmt.Errorf("response carried no page URL")}
	}

	logging.Publish("telegraph page created: %s", parsed.Result.URL)
	return &Receipt{URL: parsed.Result.URL, PublishedAt: time.Now().UTC()}, nil
}

// bodyToNodes converts the markdown draft into Telegraph content nodes.
// Headings become h4, everything else a paragraph; the backlink is
// appended as its own paragraph so it survives the conversion regardless
// of how the generator formatted it.
func bodyToNodes(d Draft) []telegraphNode {
	var nodes []telegraphNode
	for _, block := range strings.Split(d.Body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if heading, ok := strings.CutPrefix(block, "## "); ok {
			nodes = append(nodes, telegraphNode{Tag: "h4", Children: []any{heading}})
			continue
		}
		nodes = append(nodes, telegraphNode{Tag: "p", Children: []any{block}})
	}

	if d.TargetURL != "" {
		anchor := d.AnchorText
		if anchor == "" {
			anchor = d.TargetURL
		}
		nodes = append(nodes, telegraphNode{
			Tag: "p",
			Children: []any{
				"Learn more: ",
				telegraphNode{
					Tag:      "a",
					Attrs:    map[string]string{"href": d.TargetURL},
					Children: []any{anchor},
				},
			},
		})
	}
	return nodes
}
