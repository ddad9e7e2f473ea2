package query

import (
	"sort"

	"github.com/knowpack-dev/knowpack/pkg/pack"
)

const (
	expansionMinContribution = 0.2
	expansionMinRate         = 0.5
	expansionMaxRate         = 1.5
)

// expansionWeights implements §4.6 Step 7: retokenize the top-ranked
// candidate blocks (topBlocks, already truncated to docs by the caller),
// weight each candidate term's contribution per block by
// max(0.2, block_score/best_score), accumulate across blocks, keep the top
// maxTerms by accumulated weight, and scale each into a per-term rescan
// weight w = weight * clamp(score, 0.5, 1.5).
func expansionWeights(p *pack.Pack, topBlocks []uint32, scores map[uint32]float64, queryTermIDs map[uint32]struct{}, maxTerms, minTermLength int, weight float64) map[uint32]float64 {
	if len(topBlocks) == 0 {
		return nil
	}

	bestScore := scores[topBlocks[0]]
	for _, bid := range topBlocks {
		if s := scores[bid]; s > bestScore {
			bestScore = s
		}
	}

	accum := make(map[uint32]float64)
	for _, bid := range topBlocks {
		blk := p.Block(bid)
		contribution := expansionMinContribution
		if bestScore > 0 {
			if c := scores[bid] / bestScore; c > contribution {
				contribution = c
			}
		}
		for _, tok := range pack.Tokenize(blk.Text) {
			if len(tok.Term) < minTermLength {
				continue
			}
			id, ok := p.Lexicon.ID(tok.Term)
			if !ok {
				continue
			}
			if _, isQuery := queryTermIDs[id]; isQuery {
				continue
			}
			accum[id] += contribution
		}
	}
	if len(accum) == 0 {
		return nil
	}

	ids := make([]uint32, 0, len(accum))
	for id := range accum {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if accum[ids[i]] != accum[ids[j]] {
			return accum[ids[i]] > accum[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > maxTerms {
		ids = ids[:maxTerms]
	}

	weights := make(map[uint32]float64, len(ids))
	for _, id := range ids {
		score := accum[id]
		switch {
		case score < expansionMinRate:
			score = expansionMinRate
		case score > expansionMaxRate:
			score = expansionMaxRate
		}
		weights[id] = weight * score
	}
	return weights
}
