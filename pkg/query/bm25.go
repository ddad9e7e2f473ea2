package query

import (
	"math"
	"sort"

	"github.com/knowpack-dev/knowpack/pkg/pack"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75

	proximityFactor = 0.15
	phraseBoostAmt  = 0.6
	headingBoostAmt = 0.3
)

// idf is the query-time BM25 inverse document frequency for a term that
// occurs in df of N total blocks.
func idf(n, df uint32) float64 {
	if df == 0 || df > n {
		return 0
	}
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

// bm25lComponent is the length-normalized term-frequency component of
// BM25L for one query term against one block.
func bm25lComponent(tf float64, blockLen, avgLen float64) float64 {
	if avgLen <= 0 {
		avgLen = blockLen
	}
	norm := (1 - bm25B) + bm25B*(blockLen/avgLen)
	return ((bm25K1 + 1) * tf) / (bm25K1*norm + tf)
}

// posTerm pairs one occurrence position with the term that occurred there,
// used by minCoverSpan to find the smallest window containing every term.
type posTerm struct {
	pos  uint32
	term uint32
}

// minCoverSpan finds the smallest window of token positions containing at
// least one occurrence of every term in byTerm. It returns (0, false) if
// byTerm is empty.
func minCoverSpan(byTerm map[uint32][]uint32) (uint32, bool) {
	total := len(byTerm)
	if total == 0 {
		return 0, false
	}

	var pairs []posTerm
	for term, positions := range byTerm {
		for _, p := range positions {
			pairs = append(pairs, posTerm{pos: p, term: term})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	counts := make(map[uint32]int, total)
	distinct := 0
	best := uint32(math.MaxUint32)
	left := 0

	for right := range pairs {
		t := pairs[right].term
		counts[t]++
		if counts[t] == 1 {
			distinct++
		}
		for distinct == total {
			span := pairs[right].pos - pairs[left].pos
			if span < best {
				best = span
			}
			lt := pairs[left].term
			counts[lt]--
			if counts[lt] == 0 {
				distinct--
			}
			left++
		}
	}

	return best, true
}

// proximityMultiplier rewards query terms that occur close together.
func proximityMultiplier(span uint32, found bool) float64 {
	if !found {
		return 1
	}
	return 1 + proximityFactor/(1+float64(span))
}

// phraseMultiplier rewards a candidate that satisfied every required phrase.
func phraseMultiplier(hasPhrase bool) float64 {
	if hasPhrase {
		return 1 + phraseBoostAmt
	}
	return 1
}

// headingMultiplier rewards overlap between the query's free terms and a
// block's heading.
func headingMultiplier(headingScore float64) float64 {
	return 1 + headingBoostAmt*headingScore
}

// headingOverlap is |unique(queryTerms) ∩ unique(headingTerms)| /
// |unique(queryTerms)|, both sides deduplicated so a query that repeats a
// term doesn't inflate the boost.
func headingOverlap(queryTerms []string, heading string) float64 {
	if len(queryTerms) == 0 || heading == "" {
		return 0
	}
	querySet := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		querySet[t] = struct{}{}
	}
	if len(querySet) == 0 {
		return 0
	}
	headingSet := make(map[string]struct{})
	for _, t := range pack.TermsOf(heading) {
		headingSet[t] = struct{}{}
	}
	if len(headingSet) == 0 {
		return 0
	}
	hits := 0
	for t := range querySet {
		if _, ok := headingSet[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(querySet))
}
