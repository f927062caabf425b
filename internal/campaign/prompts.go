package campaign

import (
	"fmt"
	"strings"
)

// buildPrompt assembles the generation prompt for one publish attempt.
// The keyword is quoted so the template fallback can recover the topic.
func buildPrompt(c *Campaign, keyword, anchor string, wordCount int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write an original, helpful article of about %d words about %q.\n", wordCount, keyword))
	sb.WriteString("Start with the article title alone on the first line, then a blank line, then the body.\n")
	sb.WriteString("Use ## for section headings. Plain, practical language; no filler.\n")
	sb.WriteString(fmt.Sprintf("Work in one natural mention of %s linked with the anchor text %q.\n", c.TargetURL, anchor))
	return sb.String()
}

// splitArticle separates the generated content into title and body. The
// first non-empty line is the title by convention; a leading markdown
// heading marker is tolerated and stripped.
func splitArticle(content string) (title, body string) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		title = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		return title, body
	}
	return "", ""
}
