package pack

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Token is one normalized term at its 0-based ordinal position within the
// sequence of kept tokens (whitespace runs collapse and never consume a
// position of their own).
type Token struct {
	Term     string
	Position uint32
}

// Normalize applies the tokenizer's character-level transform: compatibility
// decomposition, combining-mark removal, lowercasing, and replacement of
// every character that is not a letter, digit, whitespace, or hyphen with a
// single space. It is pure and has no locale dependence.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s). That
// idempotence is what makes Tokenize(s) equal to Tokenize(Normalize(s)).
func Normalize(s string) string {
	decomposed := norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToLower(r)
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r), r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// Tokenize normalizes s and splits it into kept tokens, assigning each a
// 0-based position in emission order.
func Tokenize(s string) []Token {
	fields := strings.Fields(Normalize(s))
	tokens := make([]Token, len(fields))
	for i, f := range fields {
		tokens[i] = Token{Term: f, Position: uint32(i)}
	}
	return tokens
}

// TermsOf returns just the normalized terms of Tokenize(s), in order.
func TermsOf(s string) []string {
	tokens := Tokenize(s)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

var quotePairs = []struct {
	open, close rune
}{
	{'"', '"'},
	{'“', '”'},
}

// ExtractPhrases scans s for quoted spans delimited by straight double quotes
// or the curly quote pair, and returns the normalized token sequence of each
// span that has at least one surviving token. Phrases with zero surviving
// tokens are discarded, per the tokenizer contract.
func ExtractPhrases(s string) [][]string {
	var phrases [][]string
	runes := []rune(s)

	for i := 0; i < len(runes); i++ {
		open := runes[i]
		var closeRune rune
		matched := false
		for _, pair := range quotePairs {
			if open == pair.open {
				closeRune = pair.close
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		end := -1
		for j := i + 1; j < len(runes); j++ {
			if runes[j] == closeRune {
				end = j
				break
			}
		}
		if end == -1 {
			continue
		}

		content := string(runes[i+1 : end])
		terms := TermsOf(content)
		if len(terms) > 0 {
			phrases = append(phrases, terms)
		}
		i = end
	}

	return phrases
}
