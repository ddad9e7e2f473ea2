package query

import (
	"sort"

	"github.com/knowpack-dev/knowpack/pkg/pack"
)

// semanticRerank reorders the top topN of hits (already sorted by lexical
// score descending) using either a min-max-normalized blend of lexical score
// and quantized dot-product similarity (wLex/wSem, when blend is true) or
// similarity alone (when blend is false). The query embedding is quantized
// through the same path as corpus rows before comparison (§4.6 Step 9). Hits
// beyond that window are left in their lexical order: this is a bounded
// rerank, never an approximate nearest-neighbor search over the whole pack.
func semanticRerank(p *pack.Pack, queryVec []float32, hits []scoredHit, topN int, blend bool, wLex, wSem float64) []scoredHit {
	n := len(hits)
	if topN > 0 && n > topN {
		n = topN
	}
	window := hits[:n]
	rest := hits[n:]

	queryRow := pack.QuantizeRow(queryVec)

	lexScores := make([]float64, n)
	simScores := make([]float64, n)
	for i, h := range window {
		lexScores[i] = h.score
		row, ok := p.SemanticRow(h.blockID)
		if !ok {
			simScores[i] = 0
			continue
		}
		simScores[i] = dotProductSimilarity(queryRow, row)
	}

	simNorm := minMaxNormalize(simScores)
	if blend {
		lexNorm := minMaxNormalize(lexScores)
		for i := range window {
			window[i].score = wLex*lexNorm[i] + wSem*simNorm[i]
		}
	} else {
		for i := range window {
			window[i].score = simNorm[i]
		}
	}

	sort.SliceStable(window, func(i, j int) bool { return window[i].score > window[j].score })

	return append(window, rest...)
}

// dotProductSimilarity computes the dequantized dot-product similarity
// between two quantized rows of equal dimensionality, per §4.6 Step 9:
// (⟨q_i8, c_i8⟩) · q_scale · c_scale. Both rows must come from QuantizeRow or
// a pack's stored semantic section so their int8 components share a scale
// convention.
func dotProductSimilarity(a, b pack.SemanticRow) float64 {
	if len(a.Values) != len(b.Values) || len(a.Values) == 0 {
		return 0
	}
	var dot float64
	for i := range a.Values {
		dot += float64(a.Values[i]) * float64(b.Values[i])
	}
	return dot * float64(a.Scale) * float64(b.Scale)
}

// minMaxNormalize rescales vals into [0, 1]. A constant input normalizes to
// all zeros, per the min-max convention used throughout the rerank: a flat
// score distribution contributes nothing to the blend either way.
func minMaxNormalize(vals []float64) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	min, max := vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		return out
	}
	for i, v := range vals {
		out[i] = (v - min) / (max - min)
	}
	return out
}
