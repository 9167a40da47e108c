package links

import (
	"errors"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
)

const defaultLoopLimit = 30

var (
	urlPattern       = regexp.MustCompile(`https?://[^\s<>"']+`)
	trailingURLChars = ".,;:!?)]}"
)

// Config selects where origin rules come from and how links are labelled.
type Config struct {
	// RulesPath is an optional rules file. A missing file means no rules.
	RulesPath string
	// Origins are extra rule lines, usually `http://old => https://new`.
	Origins   []string
	Label     string
	LoopLimit int
}

// Rewriter renders bot text as safe rich text and maps link origins.
type Rewriter struct {
	rules     []urlRule
	label     string
	loopLimit int
}

func NewRewriter(cfg Config) (*Rewriter, error) {
	return NewRewriterWithParsers(cfg, DefaultRuleParsers())
}

// NewRewriterWithParsers allows additional rule grammars.
func NewRewriterWithParsers(cfg Config, parsers []RuleParser) (*Rewriter, error) {
	if len(parsers) == 0 {
		parsers = DefaultRuleParsers()
	}
	loopLimit := cfg.LoopLimit
	if loopLimit <= 0 {
		loopLimit = defaultLoopLimit
	}

	var rules []urlRule
	if path := strings.TrimSpace(cfg.RulesPath); path != "" {
		contents, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read link rules %q: %w", path, err)
		default:
			fileRules, err := parseRuleLines(strings.Split(string(contents), "\n"), parsers)
			if err != nil {
				return nil, fmt.Errorf("failed to parse link rules %q: %w", path, err)
			}
			rules = append(rules, fileRules...)
		}
	}

	originRules, err := parseRuleLines(cfg.Origins, parsers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse link origins: %w", err)
	}
	rules = append(rules, originRules...)

	return &Rewriter{
		rules:     rules,
		label:     strings.TrimSpace(cfg.Label),
		loopLimit: loopLimit,
	}, nil
}

// RewriteURL applies the rules until the URL stops changing or the loop
// limit is reached.
func (r *Rewriter) RewriteURL(rawURL string) string {
	result := rawURL
	for i := 0; i < r.loopLimit && len(r.rules) > 0; i++ {
		changed := false
		for _, rule := range r.rules {
			next, ruleChanged := rule.Rewrite(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result
}

// Format escapes text for HTML and turns bare http(s) URLs into anchors
// opening in a new tab.
func (r *Rewriter) Format(text string) string {
	matches := urlPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return html.EscapeString(text)
	}

	var b strings.Builder
	last := 0
	for _, loc := range matches {
		start, end := loc[0], loc[1]
		for end > start && strings.IndexByte(trailingURLChars, text[end-1]) >= 0 {
			end--
		}
		if strings.Index(text[start:end], "://")+len("://") >= end-start {
			continue
		}

		b.WriteString(html.EscapeString(text[last:start]))
		b.WriteString(r.anchor(text[start:end]))
		last = end
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

func (r *Rewriter) anchor(rawURL string) string {
	target := r.RewriteURL(rawURL)
	label := r.label
	if label == "" {
		label = target
	}
	return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`,
		html.EscapeString(target), html.EscapeString(label))
}
