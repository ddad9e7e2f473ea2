// Package query implements the ranking pipeline (C6) and diversification
// pass (C7) run against a mounted *pack.Pack: candidate gathering, phrase
// enforcement, BM25L scoring with proximity and heading boosts, optional
// pseudo-relevance expansion, KNS tie-break stabilization, optional semantic
// rerank, and MMR diversification.
package query

import "github.com/knowpack-dev/knowpack/pkg/pack"

// Hit is one ranked result.
type Hit struct {
	BlockID   uint32
	Score     float64
	Text      string
	Heading   string
	Source    string // Block.DocID
	Namespace string

	// HasPhrase reports whether this block satisfied every required phrase.
	HasPhrase bool

	// Expanded reports whether this hit was only found via pseudo-relevance
	// query expansion rather than a literal query term.
	Expanded bool
}

func hitFromBlock(b pack.Block, score float64, hasPhrase bool) Hit {
	return Hit{
		BlockID:   b.BlockID,
		Score:     score,
		Text:      b.Text,
		Heading:   b.Heading,
		Source:    b.DocID,
		Namespace: b.Namespace,
		HasPhrase: hasPhrase,
	}
}
