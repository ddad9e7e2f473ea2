package pack

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/knowpack-dev/knowpack/internal/errors"
)

// BuildOptions configures Build.
type BuildOptions struct {
	// Embeddings is one optional raw float32 vector per document, in the
	// same order as docs. If non-empty, Build quantizes each row and emits
	// a semantic section. All rows must share the same dimensionality.
	Embeddings [][]float32

	// BuildTag is an opaque caller-supplied label persisted in Metadata.
	BuildTag string

	// ModelID identifies the embedding model that produced Embeddings, and
	// is persisted verbatim in the semantic section header for callers that
	// need to confirm a query embedding came from a matching model.
	ModelID string

	// SinkPath, if set, also writes the built pack to this path under an
	// exclusive file lock, so concurrent builds targeting the same output
	// path never interleave writes.
	SinkPath string

	// OnStage, if set, is called after each build stage finishes with its
	// name ("tokenize", "index", "quantize", "write") and elapsed duration.
	// "quantize" is only reported when Embeddings is non-empty. This lets a
	// caller like the CLI populate a per-stage timing breakdown without
	// Build depending on any renderer type.
	OnStage func(stage string, elapsed time.Duration)
}

func (o BuildOptions) reportStage(stage string, since time.Time) {
	if o.OnStage != nil {
		o.OnStage(stage, time.Since(since))
	}
}

// Build assembles docs into a single pack and returns its bytes. Build does
// not mutate or retain docs after returning.
func Build(ctx context.Context, docs []Document, opts BuildOptions) ([]byte, error) {
	if len(docs) == 0 {
		return nil, pkgerrors.Invalid("docs", "at least one document is required")
	}
	if len(opts.Embeddings) > 0 && len(opts.Embeddings) != len(docs) {
		return nil, pkgerrors.Invalidf("embeddings", "must have one row per document (%d docs, %d rows)", len(docs), len(opts.Embeddings))
	}

	// Stripping markdown and tokenizing are
	// per-document and share no state, so they fan out across goroutines
	// ahead of index assembly, which is inherently sequential (lexicon
	// term IDs must be assigned in a stable order). Results are scattered
	// into pre-sized slices by index so goroutine completion order never
	// affects the pack's bytes.
	tokenizeStart := time.Now()
	blocks := make([]Block, len(docs))
	tokensPerBlock := make([][]Token, len(docs))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, d := range docs {
		i, d := i, d
		g.Go(func() error {
			text := strings.TrimSpace(d.Text)
			if text == "" {
				return pkgerrors.Invalid(fmt.Sprintf("docs[%d].text", i), "document text must be non-empty")
			}
			stripped := stripMarkdown(text)
			tokens := Tokenize(stripped)
			blocks[i] = Block{
				BlockID:   uint32(i),
				Text:      stripped,
				Heading:   d.Heading,
				DocID:     d.ID,
				Namespace: d.Namespace,
				TokenLen:  uint32(len(tokens)),
			}
			tokensPerBlock[i] = tokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	opts.reportStage("tokenize", tokenizeStart)

	indexStart := time.Now()
	lex, postingsList := buildIndex(blocks, tokensPerBlock)
	postings := encodePostings(postingsList)

	var totalLen uint64
	for _, b := range blocks {
		totalLen += uint64(b.TokenLen)
	}
	avgLen := float64(totalLen) / float64(len(blocks))

	meta := Metadata{
		Version:     CurrentVersion,
		BlockCount:  uint32(len(blocks)),
		TermCount:   uint32(lex.Len()),
		AvgBlockLen: avgLen,
		BuildTag:    opts.BuildTag,
	}
	opts.reportStage("index", indexStart)

	var semanticJSON, semanticBlob []byte
	if len(opts.Embeddings) > 0 {
		quantizeStart := time.Now()
		dims := uint32(len(opts.Embeddings[0]))
		rows, err := quantizeVectors(ctx, opts.Embeddings, dims)
		if err != nil {
			return nil, err
		}
		header, blob, err := encodeSemanticSection(opts.ModelID, dims, rows)
		if err != nil {
			return nil, err
		}
		meta.HasSemantic = true
		meta.SemanticDims = dims
		semanticJSON = header
		semanticBlob = blob
		opts.reportStage("quantize", quantizeStart)
	}

	writeStart := time.Now()
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindInternal, err)
	}

	lexJSON, err := json.Marshal(lex.toJSON())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindInternal, err)
	}

	blockPayloads := make([]blockPayload, len(blocks))
	for i, b := range blocks {
		blockPayloads[i] = blockPayload{Text: b.Text, Len: b.TokenLen}
		if b.Heading != "" {
			h := b.Heading
			blockPayloads[i].Heading = &h
		}
		if b.DocID != "" {
			d := b.DocID
			blockPayloads[i].DocID = &d
		}
		if b.Namespace != "" {
			n := b.Namespace
			blockPayloads[i].Namespace = &n
		}
	}
	blocksJSON, err := json.Marshal(blockPayloads)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindInternal, err)
	}

	var buf bytes.Buffer
	if err := writeSection(&buf, metaJSON); err != nil {
		return nil, err
	}
	if err := writeSection(&buf, lexJSON); err != nil {
		return nil, err
	}
	if err := writePostingsSection(&buf, postings); err != nil {
		return nil, err
	}
	if err := writeSection(&buf, blocksJSON); err != nil {
		return nil, err
	}
	if semanticJSON != nil {
		if err := writeSection(&buf, semanticJSON); err != nil {
			return nil, err
		}
		if err := writeSection(&buf, semanticBlob); err != nil {
			return nil, err
		}
	}

	out := buf.Bytes()

	if opts.SinkPath != "" {
		if err := writeSinkLocked(opts.SinkPath, out); err != nil {
			return nil, err
		}
	}
	opts.reportStage("write", writeStart)

	return out, nil
}

// encodeSemanticSection builds the semantic JSON header and its blob: the
// int8 vector matrix (row-major, N·dims bytes) followed by N little-endian
// float16 per-row scales (§3, §4.4). The header's byteOffset/length fields
// describe exactly where each region sits inside the returned blob.
func encodeSemanticSection(modelID string, dims uint32, rows []SemanticRow) (header, blob []byte, err error) {
	vectorsLen := uint32(dims) * uint32(len(rows))
	scalesLen := uint32(len(rows)) * 2

	desc := semanticDescriptor{
		Version:        1,
		ModelID:        modelID,
		Dims:           dims,
		Encoding:       "int8_l2norm",
		PerVectorScale: true,
		Blocks: semanticBlockLayout{
			Vectors: semanticRegion{ByteOffset: 0, Length: vectorsLen},
			Scales:  semanticRegion{ByteOffset: vectorsLen, Length: scalesLen, Encoding: "float16"},
		},
	}
	header, err = json.Marshal(desc)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.KindInternal, err)
	}

	var buf bytes.Buffer
	for _, r := range rows {
		for _, v := range r.Values {
			buf.WriteByte(byte(v))
		}
	}
	var scaleBuf [2]byte
	for _, r := range rows {
		binary.LittleEndian.PutUint16(scaleBuf[:], float32ToFloat16(r.Scale))
		buf.Write(scaleBuf[:])
	}
	return header, buf.Bytes(), nil
}

// writeSinkLocked writes data to path under an exclusive file lock on a
// sibling .lock file, so two concurrent builds targeting the same output
// path never interleave writes.
func writeSinkLocked(path string, data []byte) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.KindInternal, err).WithField("sinkPath")
	}
	if !locked {
		return pkgerrors.Invalid("sinkPath", "another build holds the lock for this path")
	}
	defer lock.Unlock()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return pkgerrors.Wrap(pkgerrors.KindInternal, err).WithField("sinkPath")
	}
	return nil
}
