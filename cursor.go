package pgcopy

import (
	"encoding/binary"
	"math"
)

// Cursor is a non-owning view over COPY binary data. It advances forward only
// and tracks the absolute byte offset from the start of the stream so that
// decode errors can report where in the stream they occurred.
//
// The caller is responsible for aggregating bytes before handing them to a
// Cursor; a read past the end of the data is a decode error, not a request
// for more input.
type Cursor struct {
	data []byte
	pos  int
	base int64 // absolute offset of data[0] within the stream
}

// NewCursor creates a cursor over data, positioned at stream offset 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Offset returns the absolute offset of the next unread byte.
func (c *Cursor) Offset() int64 {
	return c.base + int64(c.pos)
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// Take consumes and returns exactly n bytes. The returned slice aliases the
// underlying data and stays valid for the lifetime of the input buffer.
func (c *Cursor) Take(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, &CopyError{Offset: c.Offset(), Err: ErrShortRead}
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Peek returns the next n bytes without advancing.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, &CopyError{Offset: c.Offset(), Err: ErrShortRead}
	}
	return c.data[c.pos : c.pos+n], nil
}

// Skip advances past n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.Take(n)
	return err
}

// Slice consumes n bytes and returns a child cursor scoped to exactly those
// bytes. The child reports absolute stream offsets, so errors raised while
// decoding a field payload still point into the original stream.
func (c *Cursor) Slice(n int) (*Cursor, error) {
	start := c.Offset()
	b, err := c.Take(n)
	if err != nil {
		return nil, err
	}
	return &Cursor{data: b, base: start}, nil
}

func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.Take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.Take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.Take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *Cursor) ReadInt64() (int64, error) {
	v, err := c.ReadUint64()
	return int64(v), err
}

func (c *Cursor) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	return math.Float32frombits(v), err
}

func (c *Cursor) ReadFloat64() (float64, error) {
	v, err := c.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadLength reads a 4-byte field length. -1 denotes SQL NULL.
func (c *Cursor) ReadLength() (int32, error) {
	n, err := c.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < -1 {
		return 0, &CopyError{Offset: c.Offset() - 4, Err: ErrLengthMismatch}
	}
	return n, nil
}

// WriteBuffer is a growable append-only output buffer for COPY binary data.
// It supports reserving space for a length prefix and backfilling it once the
// payload size is known.
type WriteBuffer struct {
	buf []byte
}

// NewWriteBuffer creates a buffer with the given initial capacity.
func NewWriteBuffer(capacity int) *WriteBuffer {
	return &WriteBuffer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the accumulated output. The slice aliases the buffer and is
// invalidated by further writes.
func (w *WriteBuffer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *WriteBuffer) Len() int {
	return len(w.buf)
}

// Reset truncates the buffer for reuse.
func (w *WriteBuffer) Reset() {
	w.buf = w.buf[:0]
}

func (w *WriteBuffer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *WriteBuffer) WriteUint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *WriteBuffer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

func (w *WriteBuffer) WriteUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *WriteBuffer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *WriteBuffer) WriteUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *WriteBuffer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

func (w *WriteBuffer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *WriteBuffer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// ReserveInt32 appends 4 placeholder bytes and returns their position for a
// later PutInt32At. Used for field length prefixes that are only known after
// the payload has been written.
func (w *WriteBuffer) ReserveInt32() int {
	pos := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return pos
}

// PutInt32At backfills a value at a position previously returned by
// ReserveInt32.
func (w *WriteBuffer) PutInt32At(pos int, v int32) {
	binary.BigEndian.PutUint32(w.buf[pos:pos+4], uint32(v))
}
