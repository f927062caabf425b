package publisher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"linkforge/internal/logging"
	"linkforge/internal/retry"
)

var verifyClient = &http.Client{Timeout: 20 * time.Second}

// VerifyBacklink fetches a published page and walks its HTML looking for
// an anchor that points at targetURL. It returns whether the link exists
// and the anchor text it carries. Trailing slashes are ignored when
// comparing URLs.
func VerifyBacklink(ctx context.Context, pageURL, targetURL string) (bool, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return false, "", err
	}
	req.Header.Set("User-Agent", "linkforge/1.0")

	resp, err := verifyClient.Do(req)
	if err != nil {
		return false, "", &PlatformError{Platform: pageURL, Kind: retry.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, "", &PlatformError{
			Platform:   pageURL,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("fetch returned status %d", resp.StatusCode),
		}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return false, "", fmt.Errorf("failed to parse page: %w", err)
	}

	want := strings.TrimSuffix(targetURL, "/")
	found, anchor := findAnchor(doc, want)
	if found {
		logging.PublishDebug("backlink verified on %s (anchor %q)", pageURL, anchor)
	} else {
		logging.Get(logging.CategoryPublish).Warn("backlink to %s not found on %s", targetURL, pageURL)
	}
	return found, anchor, nil
}

// findAnchor walks the parse tree for the first <a href=want>.
func findAnchor(n *html.Node, want string) (bool, string) {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key != "href" {
				continue
			}
			if strings.TrimSuffix(attr.Val, "/") == want {
				return true, strings.TrimSpace(textContent(n))
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found, anchor := findAnchor(c, want); found {
			return true, anchor
		}
	}
	return false, ""
}

// textContent concatenates the text nodes under n.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
