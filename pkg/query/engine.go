package query

import (
	"context"
	"sort"

	pkgerrors "github.com/knowpack-dev/knowpack/internal/errors"
	"github.com/knowpack-dev/knowpack/pkg/pack"
)

// scoredHit is the engine's working representation of a candidate block,
// carrying everything later pipeline stages need without re-touching the
// pack.
type scoredHit struct {
	blockID   uint32
	score     float64
	text      string
	heading   string
	source    string
	namespace string
	hasPhrase bool
	expanded  bool
}

// candidateBuild accumulates per-block term occurrences while scanning
// postings, keyed by term id.
type candidateBuild struct {
	positions map[uint32][]uint32
}

// Query runs the full ranking pipeline against pk and returns hits sorted by
// descending relevance, bounded to opts.TopK. ctx is honored cooperatively:
// Query checks it between scan phases but never requires cancellation.
func Query(ctx context.Context, pk *pack.Pack, text string, opts Options) ([]Hit, error) {
	opts = opts.withDefaults()
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	if opts.Semantic == SemanticForce && !pk.HasSemantic() {
		return nil, pkgerrors.New(pkgerrors.KindSemanticMissing, "semantic rerank was forced but the mounted pack has no semantic section")
	}

	freeTerms := pack.TermsOf(text)
	quotedPhrases := pack.ExtractPhrases(text)
	requiredPhrases := quotedPhrases
	for _, p := range opts.RequirePhrases {
		terms := pack.TermsOf(p)
		if len(terms) > 0 {
			requiredPhrases = append(requiredPhrases, terms)
		}
	}

	freeTermIDs := resolveTermIDs(pk, freeTerms)
	phraseTermIDs := resolvePhraseTermIDs(pk, requiredPhrases)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	df, candidates := scanCandidates(pk, freeTermIDs)
	if len(candidates) == 0 && len(phraseTermIDs) > 0 {
		df, candidates = scanCandidates(pk, phraseTermIDs)
	}

	if len(opts.Namespaces) > 0 {
		wanted := normalizedSet(opts.Namespaces)
		for id := range candidates {
			if _, ok := wanted[pack.Normalize(pk.Block(id).Namespace)]; !ok {
				delete(candidates, id)
			}
		}
	}
	if len(opts.Source) > 0 {
		wanted := normalizedSet(opts.Source)
		for id := range candidates {
			if _, ok := wanted[pack.Normalize(pk.Block(id).DocID)]; !ok {
				delete(candidates, id)
			}
		}
	}

	hasPhraseByBlock := make(map[uint32]bool, len(candidates))
	if len(requiredPhrases) > 0 {
		for id := range candidates {
			blk := pk.Block(id)
			ok := true
			for _, phrase := range requiredPhrases {
				if !containsContiguous(pack.TermsOf(blk.Text), phrase) {
					ok = false
					break
				}
			}
			if !ok {
				delete(candidates, id)
				continue
			}
			hasPhraseByBlock[id] = true
		}
	}

	if len(candidates) == 0 {
		return []Hit{}, nil
	}

	n := uint32(pk.BlockCount())
	avgLen := pk.Meta.AvgBlockLen
	headingQueryTerms := freeTerms

	bm25 := make(map[uint32]float64, len(candidates))
	boost := make(map[uint32]float64, len(candidates)) // proximity * phrase * heading, unaffected by expansion
	for id, cb := range candidates {
		blk := pk.Block(id)
		var sum float64
		for term, positions := range cb.positions {
			tf := float64(len(positions))
			sum += idf(n, df[term]) * bm25lComponent(tf, float64(blk.TokenLen), avgLen)
		}
		bm25[id] = sum

		span, found := minCoverSpan(cb.positions)
		boost[id] = proximityMultiplier(span, found) *
			phraseMultiplier(hasPhraseByBlock[id]) *
			headingMultiplier(headingOverlap(headingQueryTerms, blk.Heading))
	}

	if opts.Expand {
		queryTermSet := make(map[uint32]struct{}, len(freeTermIDs)+len(phraseTermIDs))
		for _, id := range freeTermIDs {
			queryTermSet[id] = struct{}{}
		}
		for _, id := range phraseTermIDs {
			queryTermSet[id] = struct{}{}
		}

		// Step 7 ranks and weights candidate blocks by the first ranking's
		// fully-boosted score (BM25L with proximity/phrase/heading applied),
		// not the raw pre-multiplier BM25L sum.
		firstRanking := make(map[uint32]float64, len(bm25))
		for id, s := range bm25 {
			firstRanking[id] = s * boost[id]
		}

		topBlocks := topScoredBlocks(firstRanking, opts.ExpansionDocs)
		weights := expansionWeights(pk, topBlocks, firstRanking, queryTermSet, opts.ExpansionTerms, opts.ExpansionMinTermLength, opts.ExpansionWeight)
		if len(weights) > 0 {
			expTermIDs := make([]uint32, 0, len(weights))
			for id := range weights {
				expTermIDs = append(expTermIDs, id)
			}
			_, expCandidates := scanCandidates(pk, expTermIDs)
			for id, cb := range expCandidates {
				if _, ok := candidates[id]; !ok {
					continue // expansion only augments existing candidates, never introduces new ones
				}
				blk := pk.Block(id)
				var add float64
				for term, positions := range cb.positions {
					w := weights[term]
					tf := float64(len(positions)) * w
					add += idf(n, df[term]) * bm25lComponent(tf, float64(blk.TokenLen), avgLen)
				}
				bm25[id] += add
			}
		}
	}

	querySig := pack.Sign(pack.Normalize(text))

	hits := make([]scoredHit, 0, len(candidates))
	for id := range candidates {
		blk := pk.Block(id)
		hasPhrase := hasPhraseByBlock[id]

		score := bm25[id] * boost[id]
		score *= pack.Stabilize(querySig, pack.Sign(blk.Text))

		hits = append(hits, scoredHit{
			blockID:   id,
			score:     score,
			text:      blk.Text,
			heading:   blk.Heading,
			source:    blk.DocID,
			namespace: blk.Namespace,
			hasPhrase: hasPhrase,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].blockID < hits[j].blockID
	})

	semanticTriggered := pk.HasSemantic() && opts.Semantic != SemanticOff &&
		(opts.Semantic == SemanticForce || rawLexConfidence(hits) < opts.MinLexConfidence)
	if semanticTriggered {
		if len(opts.QueryEmbedding) == 0 {
			return nil, pkgerrors.Invalid("query_embedding", "semantic rerank was requested but no query embedding was supplied")
		}
		hits = semanticRerank(pk, opts.QueryEmbedding, hits, opts.SemanticTopN, opts.blendEnabled(), opts.BlendWLex, opts.BlendWSem)
	}

	if opts.MinScore > 0 {
		filtered := hits[:0:0]
		for _, h := range hits {
			if h.score >= opts.MinScore {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}

	var final []scoredHit
	if opts.Diversify {
		final = mmrDiversify(hits, opts.TopK, opts.MMRLambda, opts.SimThreshold)
	} else {
		if opts.TopK < len(hits) {
			hits = hits[:opts.TopK]
		}
		final = hits
	}

	out := make([]Hit, len(final))
	for i, h := range final {
		out[i] = Hit{
			BlockID:   h.blockID,
			Score:     h.score,
			Text:      h.text,
			Heading:   h.heading,
			Source:    h.source,
			Namespace: h.namespace,
			HasPhrase: h.hasPhrase,
			Expanded:  h.expanded,
		}
	}
	return out, nil
}

// rawLexConfidence computes the lexical confidence gate used internally by
// Step 9's semantic-rerank decision: (score1-score2)/score1 over the top two
// hits, 1 if there is only one hit, 0 if there are none. This is distinct
// from the exported LexConfidence, which summarizes a finished result set
// for telemetry rather than gating a rerank decision mid-pipeline.
func rawLexConfidence(hits []scoredHit) float64 {
	switch len(hits) {
	case 0:
		return 0
	case 1:
		return 1
	default:
		if hits[0].score <= 0 {
			return 0
		}
		return (hits[0].score - hits[1].score) / hits[0].score
	}
}

// LexConfidence summarizes how strongly a result set matched on pure lexical
// grounds, independent of any semantic rerank: the top hit's score relative
// to the sum of the top three, clamped to [0, 1]. A single strong hit above
// weaker noise yields a value near 1; a flat score distribution near 1/3.
func LexConfidence(hits []Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	n := len(hits)
	if n > 3 {
		n = 3
	}
	var total float64
	for i := 0; i < n; i++ {
		total += hits[i].Score
	}
	if total <= 0 {
		return 0
	}
	conf := hits[0].Score / total
	if conf > 1 {
		conf = 1
	}
	return conf
}

// normalizedSet builds a lookup set of normalized strings, used to compare
// caller-supplied namespace/source filters against stored labels the same
// way the tokenizer would.
func normalizedSet(vals []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[pack.Normalize(v)] = struct{}{}
	}
	return set
}

func resolveTermIDs(pk *pack.Pack, terms []string) []uint32 {
	seen := make(map[uint32]struct{}, len(terms))
	var ids []uint32
	for _, t := range terms {
		id, ok := pk.Lexicon.ID(t)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func resolvePhraseTermIDs(pk *pack.Pack, phrases [][]string) []uint32 {
	seen := make(map[uint32]struct{})
	var ids []uint32
	for _, phrase := range phrases {
		for _, t := range phrase {
			id, ok := pk.Lexicon.ID(t)
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// scanCandidates performs one full pass over pk's posting stream, computing
// document frequency for every term it encounters and collecting per-block
// occurrence positions for the terms in relevant.
func scanCandidates(pk *pack.Pack, relevant []uint32) (map[uint32]uint32, map[uint32]*candidateBuild) {
	relevantSet := make(map[uint32]struct{}, len(relevant))
	for _, id := range relevant {
		relevantSet[id] = struct{}{}
	}

	df := make(map[uint32]uint32)
	candidates := make(map[uint32]*candidateBuild)

	pk.ScanPostings(func(termID, blockID uint32, positions []uint32) {
		df[termID]++
		if _, ok := relevantSet[termID]; !ok {
			return
		}
		cb, ok := candidates[blockID]
		if !ok {
			cb = &candidateBuild{positions: make(map[uint32][]uint32)}
			candidates[blockID] = cb
		}
		cb.positions[termID] = positions
	})

	return df, candidates
}

// containsContiguous reports whether needle occurs as a contiguous,
// order-preserving subsequence of haystack.
func containsContiguous(haystack, needle []string) bool {
	if len(needle) == 0 {
		return true
	}
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, term := range needle {
			if haystack[i+j] != term {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// topScoredBlocks returns up to n block ids from scores, sorted descending.
func topScoredBlocks(scores map[uint32]float64, n int) []uint32 {
	ids := make([]uint32, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}
