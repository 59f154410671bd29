package taxonomy

import "strings"

// NormalizeToken lowercases, trims, collapses internal whitespace and
// strips one layer of surrounding quote/bracket punctuation. Total and
// pure: any input produces a usable token.
func NormalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")

	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if wrapped(first, last) {
			s = strings.TrimSpace(s[1 : len(s)-1])
			s = strings.Join(strings.Fields(s), " ")
		}
	}
	return s
}

func wrapped(first, last byte) bool {
	switch first {
	case '"':
		return last == '"'
	case '\'':
		return last == '\''
	case '(':
		return last == ')'
	case '[':
		return last == ']'
	case '{':
		return last == '}'
	}
	return false
}

// Singularize strips one naive trailing "s". It deliberately does nothing
// clever: "mangos" becomes "mango", short or double-s words are left
// alone, and irregular plurals like "mangoes" are the alias table's job.
func Singularize(s string) string {
	if len(s) > 3 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		return s[:len(s)-1]
	}
	return s
}
