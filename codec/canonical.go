// Package codec implements the canonical deterministic byte encoding used
// both for content hashing (tx hash, block hash, state root, claim id,
// ns_id, token_id, pool_id) and for the single opaque state
// snapshot blob persisted to disk. Encoding is fixed-field,
// little-endian, length-prefixed for variable data; maps are always written
// in ascending byte-order of their keys so two nodes that applied the same
// transactions in the same order produce byte-identical output.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrBadEncoding is returned when a decoded length or tag is structurally
// invalid.
var ErrBadEncoding = errors.New("codec: malformed encoding")

// Writer accumulates canonical bytes. The zero value is ready to use.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated canonical encoding.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// U8 writes a single byte.
func (w *Writer) U8(v uint8) { w.buf.WriteByte(v) }

// U64 writes a fixed 8-byte little-endian unsigned integer.
func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// Bool writes a single-byte boolean.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

// Fixed writes raw bytes with no length prefix; used for fixed-size fields
// such as 32-byte identifiers and 64-byte signatures.
func (w *Writer) Fixed(b []byte) { w.buf.Write(b) }

// VarBytes writes a 4-byte little-endian length prefix followed by the data.
func (w *Writer) VarBytes(b []byte) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	w.buf.Write(l[:])
	w.buf.Write(b)
}

// String writes a length-prefixed UTF-8 string.
func (w *Writer) String(s string) { w.VarBytes([]byte(s)) }

// Reader consumes canonical bytes produced by Writer.
type Reader struct {
	r   *bytes.Reader
	err error
}

// NewReader wraps data for sequential decoding.
func NewReader(data []byte) *Reader { return &Reader{r: bytes.NewReader(data)} }

// Err returns the first error encountered during decoding, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// U8 reads a single byte.
func (r *Reader) U8() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail(ErrBadEncoding)
		return 0
	}
	return b
}

// U64 reads a fixed 8-byte little-endian unsigned integer.
func (r *Reader) U64() uint64 {
	if r.err != nil {
		return 0
	}
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail(ErrBadEncoding)
		return 0
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Bool reads a single-byte boolean.
func (r *Reader) Bool() bool { return r.U8() != 0 }

// Fixed reads exactly n raw bytes.
func (r *Reader) Fixed(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.fail(ErrBadEncoding)
	}
	return b
}

// VarBytes reads a 4-byte length-prefixed byte slice.
func (r *Reader) VarBytes() []byte {
	if r.err != nil {
		return nil
	}
	var l [4]byte
	if _, err := io.ReadFull(r.r, l[:]); err != nil {
		r.fail(ErrBadEncoding)
		return nil
	}
	n := binary.LittleEndian.Uint32(l[:])
	// 64 MiB safety ceiling: nothing in the data model approaches this, so
	// a larger value means the stream is corrupt or hostile.
	if n > 64<<20 {
		r.fail(ErrBadEncoding)
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.fail(ErrBadEncoding)
		return nil
	}
	return b
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() string { return string(r.VarBytes()) }

// Done reports whether every byte of the input was consumed, which catches
// trailing garbage appended after a structurally valid encoding.
func (r *Reader) Done() bool {
	return r.err == nil && r.r.Len() == 0
}
