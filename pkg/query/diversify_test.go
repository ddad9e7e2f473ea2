package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMMRDiversify_SkipsNearDuplicates(t *testing.T) {
	candidates := []scoredHit{
		{blockID: 0, score: 1.0, text: "the quick brown fox jumps over the lazy dog"},
		{blockID: 1, score: 0.9, text: "the quick brown fox jumps over the lazy doge"},
		{blockID: 2, score: 0.5, text: "something completely unrelated about oceans"},
	}

	out := mmrDiversify(candidates, 3, 0.8, 0.5)
	ids := map[uint32]bool{}
	for _, h := range out {
		ids[h.blockID] = true
	}
	assert.False(t, ids[0] && ids[1], "near-duplicate blocks 0 and 1 should not both be selected")
	assert.True(t, ids[2])
}

func TestMMRDiversify_RespectsTopK(t *testing.T) {
	candidates := []scoredHit{
		{blockID: 0, score: 3, text: "aaaaa bbbbb ccccc"},
		{blockID: 1, score: 2, text: "ddddd eeeee fffff"},
		{blockID: 2, score: 1, text: "ggggg hhhhh iiiii"},
	}
	out := mmrDiversify(candidates, 2, 0.8, 0.92)
	require.Len(t, out, 2)
}

func TestJaccard_IdenticalSetsIsOne(t *testing.T) {
	a := shingles5("hello world")
	assert.Equal(t, 1.0, jaccard(a, a))
}

func TestJaccard_DisjointSetsIsZero(t *testing.T) {
	a := shingles5("aaaaa")
	b := shingles5("zzzzz")
	assert.Equal(t, 0.0, jaccard(a, b))
}

func TestShingles5_ShortStringBecomesSingleShingle(t *testing.T) {
	set := shingles5("ab")
	assert.Len(t, set, 1)
}

func TestShingles5_NormalizesBeforeShingling(t *testing.T) {
	a := shingles5("Bridge Throttling")
	b := shingles5("bridge throttling")
	assert.Equal(t, 1.0, jaccard(a, b))
}
