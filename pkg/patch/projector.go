// Package patch implements the patch projector (C10): pure, budgeted
// assembly of ranked query hits into a snippet structure sized for an LLM
// prompt window. Project never touches a pack or performs I/O; it only
// shapes the Hit slice Query already returned.
package patch

import (
	"strings"

	"github.com/knowpack-dev/knowpack/pkg/query"
)

// Budget names a preset snippet-size tier.
type Budget string

const (
	// BudgetMini keeps only headings and a one-line background summary.
	BudgetMini Budget = "mini"
	// BudgetSmall adds short, truncated snippets per hit.
	BudgetSmall Budget = "small"
	// BudgetFull includes each hit's full block text.
	BudgetFull Budget = "full"
)

// budgetCharLimits bounds how many characters of block text each tier keeps
// per snippet. BudgetFull uses 0 to mean unbounded.
var budgetCharLimits = map[Budget]int{
	BudgetMini:  0,
	BudgetSmall: 240,
	BudgetFull:  0,
}

// Snippet is one projected hit.
type Snippet struct {
	Source  string
	Heading string
	Text    string
	Score   float64
}

// ContextPatch is the assembled projection handed to a prompt template.
type ContextPatch struct {
	Background  string
	Snippets    []Snippet
	Definitions []string
	Facts       []string
}

// Project shapes hits into a ContextPatch sized for budget. Definitions are
// drawn from any hit whose heading looks like a defining term (a short
// heading with no sentence punctuation); every other hit becomes a snippet.
// Facts are single-sentence hits short enough to stand alone without
// truncation.
func Project(hits []query.Hit, budget Budget) ContextPatch {
	patch := ContextPatch{
		Background: background(hits),
	}

	limit, knownBudget := budgetCharLimits[budget]
	if !knownBudget {
		limit = budgetCharLimits[BudgetSmall]
	}

	if budget == BudgetMini {
		return patch
	}

	for _, h := range hits {
		text := h.Text
		if limit > 0 && len(text) > limit {
			text = truncate(text, limit)
		}

		switch {
		case isDefinitionHeading(h.Heading):
			patch.Definitions = append(patch.Definitions, formatDefinition(h.Heading, text))
		case isStandaloneFact(h.Text):
			patch.Facts = append(patch.Facts, text)
		default:
			patch.Snippets = append(patch.Snippets, Snippet{
				Source:  h.Source,
				Heading: h.Heading,
				Text:    text,
				Score:   h.Score,
			})
		}
	}

	return patch
}

func background(hits []query.Hit) string {
	if len(hits) == 0 {
		return ""
	}
	headings := make([]string, 0, len(hits))
	seen := make(map[string]struct{})
	for _, h := range hits {
		if h.Heading == "" {
			continue
		}
		if _, ok := seen[h.Heading]; ok {
			continue
		}
		seen[h.Heading] = struct{}{}
		headings = append(headings, h.Heading)
	}
	if len(headings) == 0 {
		return ""
	}
	return "Relevant sections: " + strings.Join(headings, "; ")
}

func isDefinitionHeading(heading string) bool {
	if heading == "" || len(heading) > 60 {
		return false
	}
	return !strings.ContainsAny(heading, ".!?")
}

func isStandaloneFact(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) > 160 {
		return false
	}
	sentenceEnds := strings.Count(trimmed, ".") + strings.Count(trimmed, "!") + strings.Count(trimmed, "?")
	return sentenceEnds <= 1
}

func formatDefinition(heading, text string) string {
	return heading + ": " + text
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
