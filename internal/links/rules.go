package links

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type urlRule interface {
	Rewrite(rawURL string) (output string, changed bool)
}

// RuleParser turns one rule line into a URL rule.
type RuleParser interface {
	CanParse(line string) bool
	Parse(line string) (urlRule, error)
}

// DefaultRuleParsers understands `from => to` and `s/re/replacement/flags` lines.
func DefaultRuleParsers() []RuleParser {
	return []RuleParser{regexRuleParser{}, originRuleParser{}}
}

func parseRuleLines(lines []string, parsers []RuleParser) ([]urlRule, error) {
	rules := make([]urlRule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseRuleLine(line, parsers)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func parseRuleLine(line string, parsers []RuleParser) (urlRule, error) {
	for _, parser := range parsers {
		if parser.CanParse(line) {
			return parser.Parse(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}

// originRuleParser maps one origin (or any literal URL fragment) onto another.
type originRuleParser struct{}

func (originRuleParser) CanParse(line string) bool {
	return strings.Contains(line, "=>")
}

func (originRuleParser) Parse(line string) (urlRule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("origin rule source cannot be empty")
	}

	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid origin source: %w", err)
	}
	return originRule{from: re, to: to}, nil
}

type originRule struct {
	from *regexp.Regexp
	to   string
}

func (r originRule) Rewrite(rawURL string) (string, bool) {
	output := r.from.ReplaceAllLiteralString(rawURL, r.to)
	return output, output != rawURL
}

type regexRuleParser struct{}

func (regexRuleParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isAlphaNumericOrSpace(line[1])
}

func (regexRuleParser) Parse(line string) (urlRule, error) {
	return parseRegexRule(line)
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func parseRegexRule(line string) (urlRule, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid regex rule")
	}
	delim := line[1]
	if isAlphaNumericOrSpace(delim) {
		return nil, errors.New("regex delimiter must be non-alphanumeric")
	}

	pattern, pos, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := readDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	// URLs are matched case-insensitively unless a flag says otherwise.
	ignoreCase, global := true, false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
			ignoreCase = true
		case 'c':
			ignoreCase = false
		case 'g':
			global = true
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}
	if ignoreCase {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexRule{re: re, replacement: replacement, global: global}, nil
}

func (r regexRule) Rewrite(rawURL string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(rawURL, r.replacement)
		return output, output != rawURL
	}

	loc := r.re.FindStringSubmatchIndex(rawURL)
	if loc == nil {
		return rawURL, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, rawURL, loc)
	output := rawURL[:loc[0]] + string(expanded) + rawURL[loc[1]:]
	return output, output != rawURL
}

func readDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		switch {
		case escaped:
			// An escaped delimiter is taken literally.
			if char != delim {
				builder.WriteByte('\\')
			}
			builder.WriteByte(char)
			escaped = false
		case char == '\\':
			escaped = true
		case char == delim:
			return builder.String(), index + 1, nil
		default:
			builder.WriteByte(char)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func isAlphaNumericOrSpace(char byte) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == ' ' || char == '\t'
}
