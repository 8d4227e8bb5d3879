package source

import (
	"html"
	"strings"
)

// Clean normalizes one raw provider unit: markup stripped, entities decoded,
// cantillation removed, whitespace collapsed.
func Clean(s string) string {
	s = stripTags(s)
	s = html.UnescapeString(s)
	s = stripCantillation(s)
	return collapseWhitespace(s)
}

// CleanUnits cleans every unit and drops the ones that end up empty.
func CleanUnits(units []string) []string {
	var out []string
	for _, u := range units {
		if c := Clean(u); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// stripTags removes anything between '<' and '>'. Provider markup is simple
// span/sup/i tags; unterminated tags drop the tail.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripCantillation drops the Hebrew accent marks (te'amim, U+0591..U+05AF)
// and the meteg, keeping vowel points so pointed texts stay readable.
func stripCantillation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x0591 && r <= 0x05AF {
			continue
		}
		if r == 0x05BD { // meteg
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
