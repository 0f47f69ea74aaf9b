package docs

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// LinkSpan is one URL found in a text, with half-open rune offsets into the
// original text. The URL is the normalized form, not the raw match.
type LinkSpan struct {
	URL   string
	Start int
	End   int
}

var (
	// Markup-style span: [text](url). The lazy target group stops at the
	// first closing parenthesis.
	markupLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+?)\)`)

	// Bare URL token. Deliberately greedy; trailing punctuation is handled
	// by normalization, not the pattern.
	bareURLRe = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")
)

// trailingJunk is punctuation and whitespace stripped from URL tails.
const trailingJunk = ".,;!? \t\n\r"

// ExtractLinks returns every URL-like span in text, left to right. Markup
// spans win over bare-URL matches at overlapping positions, so a URL inside
// a markup target is never double-reported. Malformed candidates degrade to
// no match; the function has no failure modes.
func ExtractLinks(text string) []LinkSpan {
	if text == "" {
		return nil
	}

	var spans []LinkSpan
	for _, m := range markupLinkRe.FindAllStringSubmatchIndex(text, -1) {
		url := NormalizeURL(text[m[4]:m[5]])
		if url == "" {
			continue
		}
		spans = append(spans, LinkSpan{
			URL:   url,
			Start: runeOffset(text, m[0]),
			End:   runeOffset(text, m[1]),
		})
	}

	markupCount := len(spans)
	for _, m := range bareURLRe.FindAllStringIndex(text, -1) {
		url := NormalizeURL(text[m[0]:m[1]])
		if url == "" {
			continue
		}
		span := LinkSpan{
			URL:   url,
			Start: runeOffset(text, m[0]),
			End:   runeOffset(text, m[1]),
		}
		if overlapsAny(span, spans[:markupCount]) {
			continue
		}
		spans = append(spans, span)
	}

	// Bare matches were appended after markup ones; restore document order.
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].Start < spans[j-1].Start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	return spans
}

func overlapsAny(s LinkSpan, others []LinkSpan) bool {
	for _, o := range others {
		if s.Start < o.End && s.End > o.Start {
			return true
		}
	}
	return false
}

// NormalizeURL cleans a raw URL token: strips trailing punctuation, strips a
// single unbalanced closing parenthesis, collapses the doubled-scheme defect
// ("http https://"), and prefixes scheme-relative or schemeless tokens with
// https. Returns "" when nothing usable remains.
func NormalizeURL(raw string) string {
	u := strings.TrimRight(raw, trailingJunk)

	if strings.HasSuffix(u, ")") && !strings.ContainsAny(u[:len(u)-1], "()") {
		u = u[:len(u)-1]
	}

	if rest, ok := strings.CutPrefix(u, "http https://"); ok {
		u = "https://" + rest
	}

	u = strings.TrimRight(u, trailingJunk)
	if u == "" {
		return ""
	}

	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		if strings.HasPrefix(u, "//") {
			u = "https:" + u
		} else {
			u = "https://" + u
		}
	}
	return u
}

// runeOffset converts a byte offset into text to a rune offset.
func runeOffset(text string, byteOff int) int {
	return utf8.RuneCountInString(text[:byteOff])
}

// runeLen is the document length of s: one unit per rune.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
