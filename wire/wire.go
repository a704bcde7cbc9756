// Package wire implements the little-endian, length-prefixed binary layout
// shared by instructions, account records and ledger transactions.
//
// Text and byte strings are a 4-byte little-endian length followed by the
// bytes. Booleans are a single byte that must be 0 or 1.
package wire

import (
	"encoding/binary"
	"errors"
	"unicode/utf8"
)

var (
	ErrShortBuffer   = errors.New("wire: short buffer")
	ErrTrailingBytes = errors.New("wire: trailing bytes")
	ErrInvalidBool   = errors.New("wire: invalid bool")
	ErrInvalidUTF8   = errors.New("wire: invalid utf-8")
)

// StringLen is the encoded length of a length-prefixed string of n bytes.
func StringLen(n int) int { return 4 + n }

// Encoder appends values to an internal buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with capacity for n bytes.
func NewEncoder(n int) *Encoder {
	return &Encoder{buf: make([]byte, 0, n)}
}

func (e *Encoder) U8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) U32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

func (e *Encoder) U64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
		return
	}
	e.U8(0)
}

// Fixed appends b without a length prefix.
func (e *Encoder) Fixed(b []byte) { e.buf = append(e.buf, b...) }

// Bytes appends a length-prefixed byte string.
func (e *Encoder) Bytes(b []byte) {
	e.U32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// String appends a length-prefixed string.
func (e *Encoder) String(s string) {
	e.U32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Result returns the encoded bytes.
func (e *Encoder) Result() []byte { return e.buf }

// Decoder reads values from a byte slice. It never panics on malformed input.
type Decoder struct {
	data []byte
	off  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.off < n {
		return nil, ErrShortBuffer
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) U8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) U32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) U64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.U8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

// Fixed reads exactly n bytes. The returned slice is a copy.
func (d *Decoder) Fixed(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// Bytes reads a length-prefixed byte string. The returned slice is a copy.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.U32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(d.Remaining()) {
		return nil, ErrShortBuffer
	}
	return d.Fixed(int(n))
}

// String reads a length-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	n, err := d.U32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(d.Remaining()) {
		return "", ErrShortBuffer
	}
	b, _ := d.take(int(n))
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.data) - d.off }

// Finish fails with ErrTrailingBytes unless the input was fully consumed.
func (d *Decoder) Finish() error {
	if d.Remaining() != 0 {
		return ErrTrailingBytes
	}
	return nil
}
