package links

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRewriterRulesFileAndOrigins(t *testing.T) {
	t.Parallel()

	rulesPath := filepath.Join(t.TempDir(), "links.rules")
	rules := `
# deployment origin
http://192.168.1.20:5001 => https://api.example.org
# drop tracking parameter
s/\?utm_[a-z]+=[^&]*$//
`
	if err := os.WriteFile(rulesPath, []byte(rules), 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	rewriter, err := NewRewriter(Config{
		RulesPath: rulesPath,
		Origins:   []string{"https://api.example.org/files => https://cdn.example.org/files"},
	})
	if err != nil {
		t.Fatalf("failed to create rewriter: %v", err)
	}

	got := rewriter.RewriteURL("HTTP://192.168.1.20:5001/files/c1.pdf?utm_source=bot")
	if got != "https://cdn.example.org/files/c1.pdf" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestRewriterMissingRulesFileIsEmpty(t *testing.T) {
	t.Parallel()

	rewriter, err := NewRewriter(Config{RulesPath: filepath.Join(t.TempDir(), "missing.rules")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rewriter.RewriteURL("http://a.test/x"); got != "http://a.test/x" {
		t.Fatalf("expected unchanged url, got %q", got)
	}
}

func TestRewriterIteratesUntilStable(t *testing.T) {
	t.Parallel()

	rewriter, err := NewRewriter(Config{
		Origins:   []string{"http://a.test => http://b.test", "http://b.test => http://c.test"},
		LoopLimit: 5,
	})
	if err != nil {
		t.Fatalf("failed to create rewriter: %v", err)
	}
	if got := rewriter.RewriteURL("http://a.test/x"); got != "http://c.test/x" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestRewriterLoopLimitStopsCycles(t *testing.T) {
	t.Parallel()

	rewriter, err := NewRewriter(Config{
		Origins:   []string{"http://a.test => http://b.test", "http://b.test => http://a.test"},
		LoopLimit: 3,
	})
	if err != nil {
		t.Fatalf("failed to create rewriter: %v", err)
	}
	if got := rewriter.RewriteURL("http://a.test/"); got != "http://a.test/" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestRewriterInvalidOrigin(t *testing.T) {
	t.Parallel()

	if _, err := NewRewriter(Config{Origins: []string{"not-a-rule"}}); err == nil {
		t.Fatalf("expected unsupported rule format error")
	}
}

func TestRewriterSupportsParserExtension(t *testing.T) {
	t.Parallel()

	parsers := append([]RuleParser{hostRuleParser{}}, DefaultRuleParsers()...)
	rewriter, err := NewRewriterWithParsers(Config{Origins: []string{"host:old.test=new.test"}}, parsers)
	if err != nil {
		t.Fatalf("failed to create rewriter: %v", err)
	}
	if got := rewriter.RewriteURL("https://old.test/a"); got != "https://new.test/a" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestFormatEscapesAndLinkifies(t *testing.T) {
	t.Parallel()

	rewriter, err := NewRewriter(Config{Origins: []string{"http://10.0.0.1:5001 => https://app.example.org"}})
	if err != nil {
		t.Fatalf("failed to create rewriter: %v", err)
	}

	got := rewriter.Format("Voir http://10.0.0.1:5001/doc?a=1&b=2. <b>Merci</b>")
	want := `Voir <a href="https://app.example.org/doc?a=1&amp;b=2" target="_blank" rel="noopener noreferrer">` +
		`https://app.example.org/doc?a=1&amp;b=2</a>. &lt;b&gt;Merci&lt;/b&gt;`
	if got != want {
		t.Fatalf("unexpected rich text:\n got: %s\nwant: %s", got, want)
	}
}

func TestFormatUsesConfiguredLabel(t *testing.T) {
	t.Parallel()

	rewriter, err := NewRewriter(Config{Label: "ici"})
	if err != nil {
		t.Fatalf("failed to create rewriter: %v", err)
	}

	got := rewriter.Format("Cliquez (https://x.test/a) !")
	if !strings.Contains(got, `<a href="https://x.test/a" target="_blank" rel="noopener noreferrer">ici</a>) !`) {
		t.Fatalf("unexpected rich text: %s", got)
	}
}

func TestFormatPlainText(t *testing.T) {
	t.Parallel()

	rewriter, err := NewRewriter(Config{})
	if err != nil {
		t.Fatalf("failed to create rewriter: %v", err)
	}
	if got := rewriter.Format("l'équipe & https://"); got != "l&#39;équipe &amp; https://" {
		t.Fatalf("unexpected rich text: %q", got)
	}
}

func TestRegexRuleWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	rule, err := parseRegexRule(`s/foo/bar/`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	output, changed := rule.Rewrite("http://foo.test/foo")
	if !changed || output != "http://bar.test/foo" {
		t.Fatalf("unexpected output: %q changed=%v", output, changed)
	}
}

func TestRegexRuleCaptureGroupsAndEscapedDelimiter(t *testing.T) {
	t.Parallel()

	rule, err := parseRegexRule(`s/^http:\/\/([^\/]+)/https:\/\/$1/`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	output, _ := rule.Rewrite("http://a.test/x")
	if output != "https://a.test/x" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestParseRegexRuleUnsupportedFlag(t *testing.T) {
	t.Parallel()

	if _, err := parseRegexRule(`s/foo/bar/x`); err == nil {
		t.Fatalf("expected unsupported flag error")
	}
}

type hostRuleParser struct{}

func (hostRuleParser) CanParse(line string) bool {
	return strings.HasPrefix(line, "host:")
}

func (hostRuleParser) Parse(line string) (urlRule, error) {
	from, to, ok := strings.Cut(strings.TrimPrefix(line, "host:"), "=")
	if !ok {
		return nil, fmt.Errorf("invalid host rule")
	}
	return originRuleParser{}.Parse("://" + from + " => ://" + to)
}
