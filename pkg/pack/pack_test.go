package pack

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/knowpack-dev/knowpack/internal/errors"
)

func sampleDocs() []Document {
	return []Document{
		{ID: "a", Heading: "Bridge throttling", Text: "React native bridge event throttling reduces call volume."},
		{ID: "b", Heading: "Unrelated", Text: "The weather today is sunny with a light breeze."},
		{ID: "c", Heading: "Bridge internals", Text: "The native bridge serializes every call across the boundary."},
	}
}

func TestBuildAndMount_RoundTrips(t *testing.T) {
	ctx := context.Background()
	data, err := Build(ctx, sampleDocs(), BuildOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	pk, err := Mount(ctx, FromBytes(data))
	require.NoError(t, err)

	assert.Equal(t, uint32(3), pk.Meta.BlockCount)
	assert.Equal(t, uint32(CurrentVersion), pk.Meta.Version)
	assert.False(t, pk.HasSemantic())
	assert.Greater(t, pk.Meta.TermCount, uint32(0))
	assert.Greater(t, pk.Meta.AvgBlockLen, 0.0)

	assert.Equal(t, "Bridge throttling", pk.Block(0).Heading)
	assert.Equal(t, "a", pk.Block(0).DocID)
}

func TestBuild_RejectsEmptyDocuments(t *testing.T) {
	_, err := Build(context.Background(), nil, BuildOptions{})
	assert.Error(t, err)
}

func TestBuild_RejectsBlankText(t *testing.T) {
	_, err := Build(context.Background(), []Document{{ID: "x", Text: "   "}}, BuildOptions{})
	assert.Error(t, err)
}

func TestBuild_ReportsStageTimings(t *testing.T) {
	ctx := context.Background()
	docs := sampleDocs()
	embeddings := make([][]float32, len(docs))
	for i := range embeddings {
		embeddings[i] = []float32{0.1, 0.2, 0.3}
	}

	seen := map[string]time.Duration{}
	_, err := Build(ctx, docs, BuildOptions{
		Embeddings: embeddings,
		OnStage: func(stage string, elapsed time.Duration) {
			seen[stage] = elapsed
		},
	})
	require.NoError(t, err)

	for _, stage := range []string{"tokenize", "index", "quantize", "write"} {
		_, ok := seen[stage]
		assert.True(t, ok, "expected stage %q to be reported", stage)
	}
}

func TestBuild_OmitsQuantizeStageWithoutEmbeddings(t *testing.T) {
	var stages []string
	_, err := Build(context.Background(), sampleDocs(), BuildOptions{
		OnStage: func(stage string, _ time.Duration) {
			stages = append(stages, stage)
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, stages, "quantize")
	assert.Contains(t, stages, "tokenize")
	assert.Contains(t, stages, "write")
}

func TestBuildAndMount_WithSemanticSection(t *testing.T) {
	ctx := context.Background()
	docs := sampleDocs()
	embeddings := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.7, 0.7, 0, 0},
	}
	data, err := Build(ctx, docs, BuildOptions{Embeddings: embeddings})
	require.NoError(t, err)

	pk, err := Mount(ctx, FromBytes(data))
	require.NoError(t, err)

	require.True(t, pk.HasSemantic())
	assert.Equal(t, uint32(4), pk.SemanticDims())

	row, ok := pk.SemanticRow(0)
	require.True(t, ok)
	assert.Len(t, row.Values, 4)

	dequant := Dequantize(row)
	require.Len(t, dequant, 4)
	assert.InDelta(t, 1.0, float64(dequant[0]), 0.05)
}

func TestBuild_RejectsMismatchedEmbeddingDimensions(t *testing.T) {
	docs := sampleDocs()
	embeddings := [][]float32{
		{1, 0},
		{0, 1, 0, 0},
		{0.7, 0.7, 0, 0},
	}
	_, err := Build(context.Background(), docs, BuildOptions{Embeddings: embeddings})
	assert.Error(t, err)
}

func TestMount_RejectsTruncatedContainer(t *testing.T) {
	_, err := Mount(context.Background(), FromBytes([]byte("not a pack")))
	assert.Error(t, err)
}

func TestMount_RejectsFutureVersion(t *testing.T) {
	var buf bytes.Buffer

	metaJSON, err := json.Marshal(Metadata{Version: CurrentVersion + 1, BlockCount: 0})
	require.NoError(t, err)
	require.NoError(t, writeSection(&buf, metaJSON))

	lexJSON, err := json.Marshal(lexiconJSON{})
	require.NoError(t, err)
	require.NoError(t, writeSection(&buf, lexJSON))
	require.NoError(t, writePostingsSection(&buf, nil))
	blocksJSON, err := json.Marshal([]blockPayload{})
	require.NoError(t, err)
	require.NoError(t, writeSection(&buf, blocksJSON))

	_, err = Mount(context.Background(), FromBytes(buf.Bytes()))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindVersionUnsupported, pkgerrors.KindOf(err))
}

func TestMount_AcceptsV1StringArrayBlocks(t *testing.T) {
	var buf bytes.Buffer

	metaJSON, err := json.Marshal(Metadata{Version: Version1, BlockCount: 2})
	require.NoError(t, err)
	require.NoError(t, writeSection(&buf, metaJSON))

	lex := newLexicon()
	lex.getOrAssign("alpha")
	lex.getOrAssign("beta")
	lexJSON, err := json.Marshal(lex.toJSON())
	require.NoError(t, err)
	require.NoError(t, writeSection(&buf, lexJSON))
	require.NoError(t, writePostingsSection(&buf, nil))

	blocksJSON, err := json.Marshal([]string{"alpha one", "beta two"})
	require.NoError(t, err)
	require.NoError(t, writeSection(&buf, blocksJSON))

	pk, err := Mount(context.Background(), FromBytes(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 2, pk.BlockCount())
	assert.Equal(t, "alpha one", pk.Block(0).Text)
	assert.Equal(t, "", pk.Block(0).Heading)
	assert.Equal(t, "", pk.Block(0).DocID)
	assert.Equal(t, uint32(2), pk.Block(0).TokenLen)
}

func TestQuantizeVectors_RejectsNonFiniteComponent(t *testing.T) {
	_, err := quantizeVectors(context.Background(), [][]float32{{1, float32(math.NaN()), 0, 0}}, 4)
	assert.Error(t, err)
}

func TestBuild_ContainerLayoutMatchesSpec(t *testing.T) {
	ctx := context.Background()
	data, err := Build(ctx, sampleDocs(), BuildOptions{})
	require.NoError(t, err)

	r := newByteReader(data)
	metaPayload, err := readSection(r)
	require.NoError(t, err)
	var meta Metadata
	require.NoError(t, json.Unmarshal(metaPayload, &meta))
	assert.Equal(t, uint32(3), meta.BlockCount)

	_, err = readSection(r) // lexicon
	require.NoError(t, err)
	postings, err := readPostingsSection(r)
	require.NoError(t, err)
	assert.NotNil(t, postings)
	_, err = readSection(r) // blocks
	require.NoError(t, err)
	assert.Equal(t, 0, r.remaining(), "no semantic section expected")
}

func TestScanPostings_FindsKnownTerm(t *testing.T) {
	ctx := context.Background()
	data, err := Build(ctx, sampleDocs(), BuildOptions{})
	require.NoError(t, err)
	pk, err := Mount(ctx, FromBytes(data))
	require.NoError(t, err)

	bridgeID, ok := pk.Lexicon.ID("bridge")
	require.True(t, ok)

	found := map[uint32]bool{}
	pk.ScanPostings(func(termID, blockID uint32, positions []uint32) {
		if termID == bridgeID {
			found[blockID] = true
			assert.NotEmpty(t, positions)
		}
	})

	assert.True(t, found[0])
	assert.True(t, found[2])
	assert.False(t, found[1])
}

func TestBuildIndex_IsDeterministicAcrossRuns(t *testing.T) {
	ctx := context.Background()
	docs := sampleDocs()
	a, err := Build(ctx, docs, BuildOptions{})
	require.NoError(t, err)
	b, err := Build(ctx, docs, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
