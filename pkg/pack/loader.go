package pack

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"os"

	pkgerrors "github.com/knowpack-dev/knowpack/internal/errors"
)

// Pack is a mounted, read-only view over a pack's bytes. All fields are
// populated once by Mount and never mutated afterward, so a *Pack may be
// queried concurrently by any number of callers without synchronization.
type Pack struct {
	Meta    Metadata
	Lexicon *Lexicon

	postings     []uint32
	idOffset     uint32
	blocks       []Block
	semanticDims uint32
	semanticRows []SemanticRow
}

// HasSemantic reports whether the pack carries a semantic section and can
// satisfy a forced semantic rerank.
func (p *Pack) HasSemantic() bool {
	return p.Meta.HasSemantic
}

// BlockCount returns the number of blocks in the pack.
func (p *Pack) BlockCount() int {
	return len(p.blocks)
}

// Block returns the block with the given id, or the zero Block if out of range.
func (p *Pack) Block(id uint32) Block {
	if int(id) >= len(p.blocks) {
		return Block{}
	}
	return p.blocks[id]
}

// Blocks returns the full block table. Callers must not mutate it.
func (p *Pack) Blocks() []Block {
	return p.blocks
}

// SemanticRow returns the quantized semantic row for block id, and whether
// the pack has one.
func (p *Pack) SemanticRow(id uint32) (SemanticRow, bool) {
	if !p.Meta.HasSemantic || int(id) >= len(p.semanticRows) {
		return SemanticRow{}, false
	}
	return p.semanticRows[id], true
}

// SemanticDims returns the dimensionality of the semantic section, or 0.
func (p *Pack) SemanticDims() uint32 {
	return p.semanticDims
}

// PostingVisitor is called once per (term, block) entry found while scanning
// the posting stream. positions are 0-based and already debiased.
type PostingVisitor func(termID uint32, blockID uint32, positions []uint32)

// ScanPostings walks the entire posting stream once, in term-id order,
// invoking visit for every term/block pair it contains. This is the single
// primitive the query engine's candidate-gathering step is built on; it does
// not itself know about query relevance, document frequency, or scoring.
func (p *Pack) ScanPostings(visit PostingVisitor) {
	s := p.postings
	i := 0
	for i < len(s) {
		termID := s[i]
		i++
		for {
			raw := s[i]
			i++
			if raw == 0 {
				break // end of term_entry
			}
			blockID := raw - p.idOffset

			var positions []uint32
			for {
				rawPos := s[i]
				i++
				if rawPos == 0 {
					break // end of block_entry
				}
				positions = append(positions, rawPos-1)
			}
			visit(termID, blockID, positions)
		}
	}
}

// Source is where Mount reads pack bytes from.
type Source struct {
	// Exactly one of Bytes, Path, or URL must be set.
	Bytes []byte
	Path  string
	URL   string
}

// FromBytes wraps an in-memory pack.
func FromBytes(b []byte) Source { return Source{Bytes: b} }

// FromPath wraps a pack on the local filesystem.
func FromPath(path string) Source { return Source{Path: path} }

// FromURL wraps a pack fetched over HTTP(S). The fetch happens synchronously
// inside Mount and is the only I/O this package performs outside of Build's
// optional sink write.
func FromURL(url string) Source { return Source{URL: url} }

// Mount parses a byte source into a read-only *Pack. It performs at most one
// I/O operation (reading Path or fetching URL) and otherwise only touches
// memory; everything it returns is safe for concurrent read access.
func Mount(ctx context.Context, src Source) (*Pack, error) {
	buf, err := acquireBytes(ctx, src)
	if err != nil {
		return nil, err
	}
	return parsePack(buf)
}

func acquireBytes(ctx context.Context, src Source) ([]byte, error) {
	switch {
	case src.Bytes != nil:
		return src.Bytes, nil
	case src.Path != "":
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.KindInvalidInput, err).WithField("path")
		}
		return b, nil
	case src.URL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.KindInvalidInput, err).WithField("url")
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.KindInvalidInput, err).WithField("url")
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, pkgerrors.Invalidf("url", "fetch returned status %d", resp.StatusCode)
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.KindInvalidInput, err).WithField("url")
		}
		return b, nil
	default:
		return nil, pkgerrors.Invalid("source", "exactly one of Bytes, Path, or URL must be set")
	}
}

func parsePack(buf []byte) (*Pack, error) {
	r := newByteReader(buf)

	metaPayload, err := readSection(r)
	if err != nil {
		return nil, pkgerrors.Malformed("pack is missing its metadata section").WithCause(err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaPayload, &meta); err != nil {
		return nil, pkgerrors.Malformed("metadata section is not valid JSON").WithCause(err)
	}
	if meta.Version > CurrentVersion {
		return nil, pkgerrors.Newf(pkgerrors.KindVersionUnsupported,
			"pack format version %d is newer than the highest version this loader supports (%d)",
			meta.Version, CurrentVersion)
	}

	lexPayload, err := readSection(r)
	if err != nil {
		return nil, pkgerrors.Malformed("pack is missing its lexicon section").WithCause(err)
	}
	var lj lexiconJSON
	if err := json.Unmarshal(lexPayload, &lj); err != nil {
		return nil, pkgerrors.Malformed("lexicon section is not valid JSON").WithCause(err)
	}
	lex := lexiconFromJSON(lj)

	postings, err := readPostingsSection(r)
	if err != nil {
		return nil, pkgerrors.Malformed("pack is missing its postings section").WithCause(err)
	}

	blocksPayload, err := readSection(r)
	if err != nil {
		return nil, pkgerrors.Malformed("pack is missing its blocks section").WithCause(err)
	}
	blocks, err := parseBlocksSection(blocksPayload)
	if err != nil {
		return nil, err
	}
	if uint32(len(blocks)) != meta.BlockCount {
		return nil, pkgerrors.Malformedf("metadata declares %d blocks but %d were found", meta.BlockCount, len(blocks))
	}

	p := &Pack{
		Meta:     meta,
		Lexicon:  lex,
		postings: postings,
		idOffset: blockIDOffset(meta.Version),
		blocks:   blocks,
	}

	if meta.HasSemantic {
		if r.remaining() == 0 {
			return nil, pkgerrors.Malformed("metadata declares a semantic section but none was found")
		}
		semJSON, err := readSection(r)
		if err != nil {
			return nil, pkgerrors.Malformed("truncated semantic header section").WithCause(err)
		}
		semBlob, err := readSection(r)
		if err != nil {
			return nil, pkgerrors.Malformed("truncated semantic blob section").WithCause(err)
		}
		var desc semanticDescriptor
		if err := json.Unmarshal(semJSON, &desc); err != nil {
			return nil, pkgerrors.Malformed("semantic section header is not valid JSON").WithCause(err)
		}
		rows, err := decodeSemanticBlob(desc, semBlob, len(blocks))
		if err != nil {
			return nil, err
		}
		p.semanticDims = desc.Dims
		p.semanticRows = rows
	}

	return p, nil
}

// parseBlocksSection parses the blocks JSON section, handling both the v1
// layout (a plain array of strings, heading/doc_id/namespace all absent) and
// the v2+ layout (an array of block-payload objects) per §4.5.
func parseBlocksSection(payload []byte) ([]Block, error) {
	var texts []string
	if err := json.Unmarshal(payload, &texts); err == nil {
		blocks := make([]Block, len(texts))
		for i, text := range texts {
			blocks[i] = Block{
				BlockID:  uint32(i),
				Text:     text,
				TokenLen: uint32(len(Tokenize(text))),
			}
		}
		return blocks, nil
	}

	var blockPayloads []blockPayload
	if err := json.Unmarshal(payload, &blockPayloads); err != nil {
		return nil, pkgerrors.Malformed("blocks section is not valid JSON").WithCause(err)
	}
	blocks := make([]Block, len(blockPayloads))
	for i, bp := range blockPayloads {
		blocks[i] = Block{
			BlockID:  uint32(i),
			Text:     bp.Text,
			TokenLen: bp.Len,
		}
		if bp.Heading != nil {
			blocks[i].Heading = *bp.Heading
		}
		if bp.DocID != nil {
			blocks[i].DocID = *bp.DocID
		}
		if bp.Namespace != nil {
			blocks[i].Namespace = *bp.Namespace
		}
	}
	return blocks, nil
}

// decodeSemanticBlob slices the vectors and scales regions out of the
// semantic blob per the descriptor's byteOffset/length fields and decodes
// the float16 scales back to float32.
func decodeSemanticBlob(desc semanticDescriptor, blob []byte, blockCount int) ([]SemanticRow, error) {
	vr, sr := desc.Blocks.Vectors, desc.Blocks.Scales
	if int(vr.ByteOffset+vr.Length) > len(blob) || int(sr.ByteOffset+sr.Length) > len(blob) {
		return nil, pkgerrors.Malformed("semantic blob is shorter than its descriptor's regions")
	}
	if vr.Length != desc.Dims*uint32(blockCount) {
		return nil, pkgerrors.Malformedf("semantic vectors region has %d bytes, expected %d", vr.Length, desc.Dims*uint32(blockCount))
	}
	if sr.Length != uint32(blockCount)*2 {
		return nil, pkgerrors.Malformedf("semantic scales region has %d bytes, expected %d", sr.Length, uint32(blockCount)*2)
	}

	vectors := blob[vr.ByteOffset : vr.ByteOffset+vr.Length]
	scales := blob[sr.ByteOffset : sr.ByteOffset+sr.Length]

	rows := make([]SemanticRow, blockCount)
	for i := 0; i < blockCount; i++ {
		start := i * int(desc.Dims)
		raw := vectors[start : start+int(desc.Dims)]
		values := make([]int8, len(raw))
		for j, b := range raw {
			values[j] = int8(b)
		}
		scale := float16ToFloat32(binary.LittleEndian.Uint16(scales[i*2 : i*2+2]))
		rows[i] = SemanticRow{Values: values, Scale: scale}
	}
	return rows, nil
}
