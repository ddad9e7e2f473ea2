package query

import "github.com/knowpack-dev/knowpack/pkg/pack"

// mmrDiversify selects up to topK hits from candidates (already sorted by
// score descending) using maximal marginal relevance: at each step it picks
// the remaining candidate maximizing lambda*score - (1-lambda)*maxSimilarity
// to anything already selected, and permanently skips any candidate whose
// similarity to an already-selected hit exceeds simThreshold rather than
// merely penalizing it.
func mmrDiversify(candidates []scoredHit, topK int, lambda, simThreshold float64) []scoredHit {
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	shingleSets := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		shingleSets[i] = shingles5(c.text)
	}

	selected := make([]int, 0, topK)
	excluded := make([]bool, len(candidates))

	for len(selected) < topK {
		bestIdx := -1
		bestMMR := 0.0
		bestSet := false

		for i, c := range candidates {
			if excluded[i] {
				continue
			}
			skip := false
			maxSim := 0.0
			for _, s := range selected {
				sim := jaccard(shingleSets[i], shingleSets[s])
				if sim > simThreshold {
					skip = true
					break
				}
				if sim > maxSim {
					maxSim = sim
				}
			}
			if skip {
				excluded[i] = true
				continue
			}

			mmr := lambda*c.score - (1-lambda)*maxSim
			if !bestSet || mmr > bestMMR {
				bestMMR = mmr
				bestIdx = i
				bestSet = true
			}
		}

		if bestIdx == -1 {
			break // every remaining candidate was a near-duplicate of a selected hit
		}
		selected = append(selected, bestIdx)
		excluded[bestIdx] = true
	}

	out := make([]scoredHit, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx]
	}
	return out
}

// shingles5 returns the set of 5-character shingles of s after normalization
// (§4.7's jaccard5 compares normalized text so near-duplicates differing only
// in case or punctuation are still caught), used as the basis for jaccard5
// near-duplicate similarity.
func shingles5(s string) map[string]struct{} {
	const k = 5
	runes := []rune(pack.Normalize(s))
	set := make(map[string]struct{})
	if len(runes) < k {
		if len(runes) > 0 {
			set[string(runes)] = struct{}{}
		}
		return set
	}
	for i := 0; i+k <= len(runes); i++ {
		set[string(runes[i:i+k])] = struct{}{}
	}
	return set
}

// jaccard is the Jaccard similarity of two shingle sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for s := range a {
		if _, ok := b[s]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
