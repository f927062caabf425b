package provider

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// TemplateProvider is the out-of-band fallback: a deterministic local
// article assembler that needs no credentials and cannot fail over the
// network. Articles are thin but structurally valid, which keeps a
// campaign moving through a total API outage.
type TemplateProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTemplateProvider creates the fallback provider.
func NewTemplateProvider() *TemplateProvider {
	return &TemplateProvider{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *TemplateProvider) Name() string { return "template" }

// IsConfigured always returns true; the fallback needs nothing.
func (p *TemplateProvider) IsConfigured() bool { return true }

var templateSections = []string{
	"Why %s Matters",
	"Getting Started with %s",
	"Common Mistakes Around %s",
	"Practical Tips for %s",
	"What the Future Holds for %s",
	"How Professionals Approach %s",
}

var templateParagraphs = []string{
	"Anyone who has spent time researching %s knows how quickly the landscape shifts. What worked a year ago is often outdated today, and keeping up requires both patience and good sources.",
	"The fundamentals of %s are easier to grasp than most guides suggest. Start with the basics, practice consistently, and resist the urge to chase every new trend that appears.",
	"Experts disagree about many aspects of %s, but they converge on one point: consistency beats intensity. Small, regular efforts compound into results that sporadic bursts never match.",
	"One overlooked aspect of %s is measurement. Without a baseline, improvement is guesswork. Define what success looks like before investing serious time or money.",
	"Beginners often overcomplicate %s. The most effective practitioners strip their approach down to a handful of proven techniques and execute them well.",
}

// Generate assembles a templated article. The topic is lifted from the
// prompt's quoted keyword when present, otherwise the prompt's first words.
func (p *TemplateProvider) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topic := extractTopic(prompt)

	p.mu.Lock()
	sectionOrder := p.rng.Perm(len(templateSections))
	paraOrder := p.rng.Perm(len(templateParagraphs))
	p.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: A Practical Guide\n\n", topic))

	for i := 0; i < 3; i++ {
		section := templateSections[sectionOrder[i]]
		para := templateParagraphs[paraOrder[i%len(paraOrder)]]
		sb.WriteString(fmt.Sprintf("## %s\n\n", fmt.Sprintf(section, topic)))
		sb.WriteString(fmt.Sprintf(para, topic))
		sb.WriteString("\n\n")
	}

	return &Result{Provider: p.Name(), Content: sb.String()}, nil
}

// extractTopic pulls the article topic out of a generation prompt. Prompts
// quote the keyword; fall back to the first few words.
func extractTopic(prompt string) string {
	if start := strings.Index(prompt, `"`); start >= 0 {
		if end := strings.Index(prompt[start+1:], `"`); end > 0 {
			return prompt[start+1 : start+1+end]
		}
	}
	words := strings.Fields(prompt)
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Join(words, " ")
}
