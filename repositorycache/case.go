package repositorycache

import (
	"strings"
	"unicode"
)

// toSnake converts s to snake_case. Punctuation from reflected type names
// (pointer stars, package dots, generic brackets) collapses into single
// underscores so namespaces stay safe to use as store names and key prefixes.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	pendingSep := false
	sep := func() {
		if b.Len() > 0 {
			pendingSep = true
		}
	}
	write := func(r rune) {
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sep()
				}
			}
			write(unicode.ToLower(r))
		case unicode.IsDigit(r):
			if i > 0 && unicode.IsLetter(runes[i-1]) {
				sep()
			}
			write(r)
		case unicode.IsLower(r):
			write(r)
		default:
			sep()
		}
	}

	return b.String()
}
