package pack

import (
	"encoding/binary"
	"io"

	pkgerrors "github.com/knowpack-dev/knowpack/internal/errors"
)

// FormatVersion identifies the wire layout of a pack.
const (
	// Version1 and Version2 are historical layouts this loader can still
	// mount; their posting streams store block ids unbiased.
	Version1 = 1
	Version2 = 2
	// CurrentVersion is the layout Build emits.
	CurrentVersion = 3
)

// blockIDOffset returns the bias applied to block ids in the posting stream
// for the given format version. Versions below 3 wrote raw block ids, which
// made a block_id of 0 indistinguishable from the block_entry terminator in
// sparse corners of the stream; version 3 fixed this with a uniform +1 bias.
func blockIDOffset(version uint32) uint32 {
	if version >= CurrentVersion {
		return 1
	}
	return 0
}

// writeSection writes one length-prefixed section: a little-endian u32 byte
// length, then the raw payload. This is the framing used for every JSON
// section (metadata, lexicon, blocks, semantic header) in the container (§6).
func writeSection(w io.Writer, payload []byte) error {
	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return pkgerrors.Wrap(pkgerrors.KindInternal, err)
	}
	if _, err := w.Write(payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.KindInternal, err)
	}
	return nil
}

// readSection reads one length-prefixed section and returns its payload.
func readSection(r *byteReader) ([]byte, error) {
	lenPrefix, err := r.take(4)
	if err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(lenPrefix)
	payload, err := r.take(int(length))
	if err != nil {
		return nil, pkgerrors.Malformed("truncated section payload").WithCause(err)
	}
	return payload, nil
}

// writePostingsSection writes the postings section: postCnt (u32, a count of
// u32 entries, not a byte length) followed by postCnt little-endian u32s.
func writePostingsSection(w io.Writer, postings []uint32) error {
	var countPrefix [4]byte
	binary.LittleEndian.PutUint32(countPrefix[:], uint32(len(postings)))
	if _, err := w.Write(countPrefix[:]); err != nil {
		return pkgerrors.Wrap(pkgerrors.KindInternal, err)
	}
	if _, err := w.Write(putU32Slice(postings)); err != nil {
		return pkgerrors.Wrap(pkgerrors.KindInternal, err)
	}
	return nil
}

// readPostingsSection reads postCnt (u32 entry count) followed by postCnt
// little-endian u32 values.
func readPostingsSection(r *byteReader) ([]uint32, error) {
	countPrefix, err := r.take(4)
	if err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(countPrefix)
	raw, err := r.take(int(count) * 4)
	if err != nil {
		return nil, pkgerrors.Malformed("truncated postings section").WithCause(err)
	}
	return parseU32Slice(raw)
}

// byteReader is a minimal cursor over an in-memory byte slice, used instead
// of bufio.Reader because sections must be read as exact-length slices
// without an intermediate copy.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.pos
}

// putU32Slice serializes a []uint32 to little-endian bytes.
func putU32Slice(vals []uint32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], v)
	}
	return out
}

// parseU32Slice deserializes little-endian bytes back to []uint32.
func parseU32Slice(buf []byte) ([]uint32, error) {
	if len(buf)%4 != 0 {
		return nil, pkgerrors.Malformed("posting section length is not a multiple of 4")
	}
	out := make([]uint32, len(buf)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return out, nil
}
