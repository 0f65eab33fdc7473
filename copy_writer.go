package pgcopy

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
)

// StreamWriter encodes an Arrow record batch as a PostgreSQL COPY binary
// stream.
//
// A writer is single-use: NewStreamWriter → WriteHeader → WriteRecord until
// io.EOF. WriteRecord emits one tuple per call and appends the end-of-stream
// trailer after the last row. StreamWriter is not safe for concurrent use.
type StreamWriter struct {
	typ    *Type
	record arrow.Record
	codecs []*fieldCodec

	headerWritten bool
	row           int64
	done          bool
	err           error
}

// NewStreamWriter builds a writer for a record batch. The PostgreSQL types
// are derived from the Arrow schema; String columns encode as text. Use
// NewStreamWriterWithType to declare numeric (or other) wire types
// explicitly.
func NewStreamWriter(record arrow.Record) (*StreamWriter, error) {
	rootType, err := TypeForSchema(record.Schema())
	if err != nil {
		return nil, err
	}
	return NewStreamWriterWithType(rootType, record)
}

// NewStreamWriterWithType builds a writer that encodes record using the given
// root descriptor. Every column's Arrow type must match the descriptor's
// inferred Arrow type; this is how a String column is declared numeric so it
// round-trips through PostgreSQL's base-10000 representation.
func NewStreamWriterWithType(rootType *Type, record arrow.Record) (*StreamWriter, error) {
	if rootType == nil || rootType.ID() != TypeRecord {
		return nil, fmt.Errorf("%w: root type must be a record", ErrUnsupportedType)
	}
	children := rootType.Children()
	if len(children) != int(record.NumCols()) {
		return nil, fmt.Errorf("%w: %d columns, %d declared fields", ErrFieldCountMismatch, record.NumCols(), len(children))
	}

	codecs := make([]*fieldCodec, len(children))
	for i, child := range children {
		col := record.Column(i)
		if col.Len() != int(record.NumRows()) {
			return nil, fmt.Errorf("column %s: length %d does not match row count %d", child.Name, col.Len(), record.NumRows())
		}
		codec, err := newFieldWriter(child.Type, col, child.Name)
		if err != nil {
			return nil, err
		}
		codecs[i] = codec
	}

	return &StreamWriter{
		typ:    rootType,
		record: record,
		codecs: codecs,
	}, nil
}

// Type returns the root record descriptor the writer encodes with.
func (w *StreamWriter) Type() *Type {
	return w.typ
}

// WriteHeader appends the signature, zero flags and an empty header
// extension.
func (w *StreamWriter) WriteHeader(buf *WriteBuffer) error {
	if w.err != nil {
		return w.err
	}
	if w.headerWritten {
		return w.fail(fmt.Errorf("pgcopy: header already written"))
	}
	buf.WriteBytes(copySignature)
	buf.WriteUint32(0) // flags
	buf.WriteUint32(0) // header extension length
	w.headerWritten = true
	return nil
}

// WriteRecord appends one tuple. After the last row it appends the trailer
// and returns io.EOF; the final two bytes belong to the transport and may be
// stripped by callers that send the trailer themselves.
func (w *StreamWriter) WriteRecord(buf *WriteBuffer) error {
	if w.err != nil {
		return w.err
	}
	if !w.headerWritten {
		return w.fail(fmt.Errorf("pgcopy: header not written"))
	}
	if w.done {
		return io.EOF
	}
	if w.row == w.record.NumRows() {
		buf.WriteInt16(-1)
		w.done = true
		return io.EOF
	}

	row := int(w.row)
	buf.WriteInt16(int16(len(w.codecs)))
	for _, codec := range w.codecs {
		if codec.arr.IsNull(row) {
			buf.WriteInt32(-1)
			continue
		}
		lenPos := buf.ReserveInt32()
		if err := codec.write(buf, row); err != nil {
			return w.fail(err)
		}
		if err := backfillLength(buf, lenPos, codec.path); err != nil {
			return w.fail(err)
		}
	}

	w.row++
	return nil
}

func (w *StreamWriter) fail(err error) error {
	w.err = err
	return err
}

// WriteAll encodes a complete record batch, header through trailer, into a
// fresh buffer.
func WriteAll(record arrow.Record) ([]byte, error) {
	writer, err := NewStreamWriter(record)
	if err != nil {
		return nil, err
	}
	return writeAll(writer)
}

// WriteAllWithType is WriteAll with an explicit root descriptor.
func WriteAllWithType(rootType *Type, record arrow.Record) ([]byte, error) {
	writer, err := NewStreamWriterWithType(rootType, record)
	if err != nil {
		return nil, err
	}
	return writeAll(writer)
}

func writeAll(writer *StreamWriter) ([]byte, error) {
	buf := NewWriteBuffer(4096)
	if err := writer.WriteHeader(buf); err != nil {
		return nil, err
	}
	for {
		err := writer.WriteRecord(buf)
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
