package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_LowercasesAndSplitsOnNonWordRunes(t *testing.T) {
	// Given a mixed-case string with punctuation
	tokens := Tokenize("React Native: Bridge, Throttling!")

	// Then terms are lowercased and positions are 0-based and sequential
	require.Len(t, tokens, 4)
	assert.Equal(t, []Token{
		{Term: "react", Position: 0},
		{Term: "native", Position: 1},
		{Term: "bridge", Position: 2},
		{Term: "throttling", Position: 3},
	}, tokens)
}

func TestTokenize_CollapsesWhitespaceRunsWithoutConsumingPositions(t *testing.T) {
	tokens := Tokenize("alpha    beta\t\tgamma\n\ndelta")
	require.Len(t, tokens, 4)
	for i, term := range []string{"alpha", "beta", "gamma", "delta"} {
		assert.Equal(t, uint32(i), tokens[i].Position)
		assert.Equal(t, term, tokens[i].Term)
	}
}

func TestTokenize_IsStableUnderNormalize(t *testing.T) {
	// Property: tokenize(s) == tokenize(normalize(s))
	s := "Café RÉSUMÉ — naïve façade"
	assert.Equal(t, Tokenize(s), Tokenize(Normalize(s)))
}

func TestNormalize_StripsCombiningMarksAfterDecomposition(t *testing.T) {
	assert.Equal(t, "cafe", Normalize("café"))
}

func TestNormalize_KeepsHyphens(t *testing.T) {
	assert.Equal(t, "well-known term", Normalize("well-known term"))
}

func TestExtractPhrases_StraightAndCurlyQuotes(t *testing.T) {
	phrases := ExtractPhrases(`“react native bridge” and "event loop" together`)
	require.Len(t, phrases, 2)
	assert.Equal(t, []string{"react", "native", "bridge"}, phrases[0])
	assert.Equal(t, []string{"event", "loop"}, phrases[1])
}

func TestExtractPhrases_DiscardsPhrasesWithNoSurvivingTokens(t *testing.T) {
	phrases := ExtractPhrases(`"!!!" and "react"`)
	require.Len(t, phrases, 1)
	assert.Equal(t, []string{"react"}, phrases[0])
}

func TestExtractPhrases_UnterminatedQuoteIsIgnored(t *testing.T) {
	phrases := ExtractPhrases(`react "native bridge without a closing quote`)
	assert.Empty(t, phrases)
}
