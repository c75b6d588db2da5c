package match

import (
	"strings"
	"unicode"
)

// NormalizeIdent folds an identifier for fuzzy comparison: words are joined,
// lower-cased, and separators are dropped, so "created_at", "CreatedAt" and
// "createdAt" all become "createdat".
func NormalizeIdent(s string) string {
	return strings.ToLower(strings.Join(Tokens(s), ""))
}

// Tokens splits an identifier into words, keeping their original case.
// Examples:
//   - "OrderID" -> ["Order", "ID"]
//   - "customerName" -> ["customer", "Name"]
//   - "XMLParser" -> ["XML", "Parser"]
//   - "created_at" -> ["created", "at"]
func Tokens(s string) []string {
	if s == "" {
		return nil
	}

	var (
		tokens  []string
		current strings.Builder
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}

		if i > 0 && startsToken(runes, i) {
			flush()
		}

		current.WriteRune(r)
	}

	flush()

	return tokens
}

// TokenizeIdent splits an identifier into lower-cased words.
func TokenizeIdent(s string) []string {
	tokens := Tokens(s)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}

	return tokens
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' ' || r == '.'
}

// startsToken reports whether a new word begins at runes[i].
func startsToken(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	if !unicode.IsUpper(r) || isSeparator(prev) {
		return false
	}

	// "orderID": lower to upper
	if !unicode.IsUpper(prev) {
		return true
	}

	// "XMLParser": last upper of an acronym followed by lower
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
