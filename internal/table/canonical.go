package table

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CanonicalName turns a display header into a column key:
// trim, spaces to underscores, lowercase, then NFKD with every non-ASCII rune
// removed. "Preço Atual (R$)" becomes "preco_atual_(r$)".
func CanonicalName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ToLower(s)
	return FoldASCII(s)
}

// FoldASCII decomposes s (NFKD) and drops every rune outside ASCII, so
// accented letters lose their marks and anything else non-ASCII disappears.
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Canonicalize returns a copy of t with CanonicalName applied to every header.
func Canonicalize(t Table) Table {
	return t.RenameHeaders(CanonicalName)
}
