package pgcopy

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// copySignature is the 11-byte header that starts every COPY binary stream.
var copySignature = []byte{'P', 'G', 'C', 'O', 'P', 'Y', '\n', '\377', '\r', '\n', '\000'}

// StreamReader decodes a PostgreSQL COPY binary stream into Arrow columns.
//
// A reader is single-use: NewStreamReader → ReadHeader → ReadRecord until
// io.EOF → NewRecord. Any decode error is sticky; subsequent calls return the
// same error. StreamReader is not safe for concurrent use.
type StreamReader struct {
	typ    *Type
	schema *arrow.Schema

	builder *array.RecordBuilder
	codecs  []*fieldCodec

	headerRead bool
	done       bool
	finished   bool
	rows       int64
	err        error
}

// NewStreamReader builds the reader for a root record type describing the
// columns of the stream.
func NewStreamReader(rootType *Type, mem memory.Allocator) (*StreamReader, error) {
	if rootType == nil || rootType.ID() != TypeRecord {
		return nil, fmt.Errorf("%w: root type must be a record", ErrUnsupportedType)
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	schema, err := InferSchema(rootType)
	if err != nil {
		return nil, err
	}

	builder := array.NewRecordBuilder(mem, schema)
	codecs := make([]*fieldCodec, len(rootType.Children()))
	for i, child := range rootType.Children() {
		codec, err := newFieldReader(child.Type, builder.Field(i), child.Name)
		if err != nil {
			builder.Release()
			return nil, err
		}
		codecs[i] = codec
	}

	return &StreamReader{
		typ:     rootType,
		schema:  schema,
		builder: builder,
		codecs:  codecs,
	}, nil
}

// Schema returns the Arrow schema inferred from the root type.
func (r *StreamReader) Schema() *arrow.Schema {
	return r.schema
}

// Type returns the root record descriptor the reader was built with.
func (r *StreamReader) Type() *Type {
	return r.typ
}

// ReadHeader verifies the signature, rejects unsupported flags and skips the
// header extension area.
func (r *StreamReader) ReadHeader(cur *Cursor) error {
	if r.err != nil {
		return r.err
	}
	if r.headerRead {
		return r.fail(&CopyError{Offset: cur.Offset(), Err: fmt.Errorf("header already consumed")})
	}

	start := cur.Offset()
	sig, err := cur.Take(len(copySignature))
	if err != nil {
		return r.fail(err)
	}
	if !bytes.Equal(sig, copySignature) {
		return r.fail(&CopyError{Offset: start, Err: ErrBadSignature})
	}

	flags, err := cur.ReadUint32()
	if err != nil {
		return r.fail(err)
	}
	if flags != 0 {
		return r.fail(&CopyError{Offset: start + 11, Err: fmt.Errorf("%w: 0x%08x", ErrUnsupportedFlag, flags)})
	}

	extLen, err := cur.ReadUint32()
	if err != nil {
		return r.fail(err)
	}
	if err := cur.Skip(int(extLen)); err != nil {
		return r.fail(err)
	}

	r.headerRead = true
	return nil
}

// ReadRecord decodes one tuple into the column builders. It returns io.EOF
// when the end-of-stream trailer is encountered.
func (r *StreamReader) ReadRecord(cur *Cursor) error {
	if r.err != nil {
		return r.err
	}
	if !r.headerRead {
		return r.fail(&CopyError{Offset: cur.Offset(), Err: fmt.Errorf("header not consumed")})
	}
	if r.done {
		return io.EOF
	}

	countOffset := cur.Offset()
	nfields, err := cur.ReadInt16()
	if err != nil {
		return r.fail(err)
	}
	if nfields == -1 {
		r.done = true
		return io.EOF
	}
	if int(nfields) != len(r.codecs) {
		return r.fail(&CopyError{
			Offset: countOffset,
			Err:    fmt.Errorf("%w: got %d fields, expected %d", ErrFieldCountMismatch, nfields, len(r.codecs)),
		})
	}

	for _, codec := range r.codecs {
		length, err := cur.ReadLength()
		if err != nil {
			return r.fail(pathError(codec.path, cur.Offset(), err))
		}
		if length == -1 {
			codec.appendNull()
			continue
		}
		payload, err := cur.Slice(int(length))
		if err != nil {
			return r.fail(pathError(codec.path, cur.Offset(), err))
		}
		if err := codec.read(payload); err != nil {
			return r.fail(pathError(codec.path, payload.Offset(), err))
		}
	}

	r.rows++
	return nil
}

// NumRows returns the number of tuples decoded so far.
func (r *StreamReader) NumRows() int64 {
	return r.rows
}

// NewRecord hands over the decoded columns as an Arrow record. It is only
// valid after the trailer has been read, and only once; the caller owns the
// returned record and must Release it.
func (r *StreamReader) NewRecord() (arrow.Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	if !r.done {
		return nil, fmt.Errorf("pgcopy: stream not fully consumed")
	}
	if r.finished {
		return nil, fmt.Errorf("pgcopy: record already taken")
	}
	r.finished = true
	rec := r.builder.NewRecord()
	return rec, nil
}

// Release frees the column builders. Safe to call multiple times.
func (r *StreamReader) Release() {
	if r.builder != nil {
		r.builder.Release()
		r.builder = nil
	}
}

func (r *StreamReader) fail(err error) error {
	r.err = err
	return err
}

// ReadAll decodes a complete in-memory COPY binary stream. It is a
// convenience wrapper over the header/record loop.
func ReadAll(data []byte, rootType *Type, mem memory.Allocator) (arrow.Record, error) {
	reader, err := NewStreamReader(rootType, mem)
	if err != nil {
		return nil, err
	}
	defer reader.Release()

	cur := NewCursor(data)
	if err := reader.ReadHeader(cur); err != nil {
		return nil, err
	}
	for {
		err := reader.ReadRecord(cur)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return reader.NewRecord()
}
