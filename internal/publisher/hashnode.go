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

// Hashnode publishes through the Hashnode GraphQL API. The catalog entry's
// domain doubles as the publication host.
type Hashnode struct {
	platform    string
	token       string
	publication string
	baseURL     string
	httpClient  *http.Client
}

// NewHashnode creates a Hashnode adapter from a catalog entry.
func NewHashnode(entry config.CatalogEntry) *Hashnode {
	baseURL := entry.BaseURL
	if baseURL == "" {
		baseURL = "https://gql.hashnode.com"
	}
	return &Hashnode{
		platform:    entry.ID,
		token:       entry.AccessToken,
		publication: entry.PublicationID,
		baseURL:     baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (h *Hashnode) Platform() string { return h.platform }

const hashnodePublishMutation = `mutation PublishPost($input: PublishPostInput!) {
  publishPost(input: $input) {
    post { url }
  }
}`

type hashnodeRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type hashnodeResponse struct {
	Data struct {
		PublishPost struct {
			Post struct {
				URL string `json:"url"`
			} `json:"post"`
		} `json:"publishPost"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// Publish runs the publishPost mutation for the draft.
func (h *Hashnode) Publish(ctx context.Context, d Draft) (*Receipt, error) {
	if h.token == "" {
		return nil, &PlatformError{Platform: h.platform, Kind: retry.KindAuth, Err: fmt.Errorf("access token not configured")}
	}
	if h.publication == "" {
		return nil, &PlatformError{Platform: h.platform, Kind: retry.KindAuth, Err: fmt.Errorf("publication id not configured")}
	}

	body := d.Body
	if d.TargetURL != "" && !strings.Contains(body, d.TargetURL) {
		anchor := d.AnchorText
		if anchor == "" {
			anchor = d.TargetURL
		}
		body += fmt.Sprintf("\n\nLearn more: [%s](%s)\n", anchor, d.TargetURL)
	}

	reqBody := hashnodeRequest{
		Query: hashnodePublishMutation,
		Variables: map[string]any{
			"input": map[string]any{
				"publicationId":   h.publication,
				"title":           d.Title,
				"contentMarkdown": body,
			},
		},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &PlatformError{Platform: h.platform, Kind: retry.KindUnknown, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &PlatformError{Platform: h.platform, Kind: retry.KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", h.token)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, &PlatformError{Platform: h.platform, Kind: retry.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PlatformError{Platform: h.platform, Kind: retry.KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &PlatformError{
			Platform:   h.platform,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("publishPost failed: %s", truncateBody(respBody)),
		}
	}

	var parsed hashnodeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &PlatformError{Platform: h.platform, Kind: retry.KindAPI, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(parsed.Errors) > 0 {
		msg := parsed.Errors[0].Message
		kind := retry.KindAPI
		if strings.Contains(strings.ToLower(msg), "unauthorized") || strings.Contains(strings.ToLower(msg), "unauthenticated") {
			kind = retry.KindAuth
		}
		return nil, &PlatformError{Platform: h.platform, Kind: kind, Err: fmt.Errorf("graphql error: %s", msg)}
	}
	url := parsed.Data.PublishPost.Post.URL
	if url == "" {
		return nil, &PlatformError{Platform: h.platform, Kind: retry.KindAPI, Err: fmt.Errorf("response carried no post URL")}
	}

	logging.Publish("hashnode post created: %s", url)
	return &Receipt{URL: url, PublishedAt: time.Now().UTC()}, nil
}
