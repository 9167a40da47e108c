package narration

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	emojiRegex          = regexp.MustCompile(`[\p{So}\p{Sk}\x{200D}\x{20E3}\x{FE0E}\x{FE0F}\x{E0020}-\x{E007F}]`)
	underscoreRunRegex  = regexp.MustCompile(`_{2,}`)
	multipleSpacesRegex = regexp.MustCompile(`[\s\p{Zs}]+`)

	markdownReplacer = strings.NewReplacer("*", "", "`", "", "~", "")
	bracketReplacer  = strings.NewReplacer("<", " ", ">", " ")
	ampersandSpacer  = strings.NewReplacer("&", " & ")
)

// Normalize turns displayed bot text into speakable text: markup and
// emoji are removed and whitespace is collapsed. Normalize(Normalize(s))
// equals Normalize(s).
func Normalize(text string) string {
	text = extractText(text)
	text = bracketReplacer.Replace(text)
	// Keeps decoded entities from decoding again on a later pass.
	text = ampersandSpacer.Replace(text)
	// Emoji go first so removing them cannot join markdown markers.
	text = emojiRegex.ReplaceAllString(text, "")
	text = markdownReplacer.Replace(text)
	text = underscoreRunRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func extractText(markup string) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() != io.EOF {
				return markup
			}
			return b.String()
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := atom.Lookup(name)
			if tag == atom.Script || tag == atom.Style {
				skipDepth++
			}
			if breaksText(tag) {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := atom.Lookup(name)
			if (tag == atom.Script || tag == atom.Style) && skipDepth > 0 {
				skipDepth--
			}
			if breaksText(tag) {
				b.WriteByte(' ')
			}
		}
	}
}

func breaksText(tag atom.Atom) bool {
	switch tag {
	case atom.Br, atom.P, atom.Div, atom.Script, atom.Style, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Td, atom.H1, atom.H2, atom.H3, atom.H4:
		return true
	}
	return false
}
