package pgcopy

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// maxArrayDims mirrors PostgreSQL's MAXDIM.
const maxArrayDims = 6

// fieldCodec decodes and encodes one field of a COPY tuple. A codec is bound
// either to an Arrow builder (read side) or to an Arrow array (write side);
// Array and Record codecs recurse through elem and children.
//
// The read methods operate on a cursor scoped to exactly the field payload,
// so a fixed-width type can validate its length against Remaining and a
// variable-width type consumes everything.
type fieldCodec struct {
	typ  *Type
	path string

	// read side
	builder  array.Builder
	elem     *fieldCodec
	children []*fieldCodec

	// write side
	arr arrow.Array
}

// newFieldReader binds a codec tree for typ to builder. The builder must have
// been created from the Arrow type inferred for typ.
func newFieldReader(typ *Type, builder array.Builder, path string) (*fieldCodec, error) {
	f := &fieldCodec{typ: typ, path: path, builder: builder}
	switch typ.id {
	case TypeArray:
		lb, ok := builder.(*array.ListBuilder)
		if !ok {
			return nil, fmt.Errorf("field %s: expected *array.ListBuilder, got %T", path, builder)
		}
		elem, err := newFieldReader(typ.elem, lb.ValueBuilder(), path+".elem")
		if err != nil {
			return nil, err
		}
		f.elem = elem
	case TypeRecord:
		sb, ok := builder.(*array.StructBuilder)
		if !ok {
			return nil, fmt.Errorf("field %s: expected *array.StructBuilder, got %T", path, builder)
		}
		if sb.NumField() != len(typ.children) {
			return nil, fmt.Errorf("field %s: struct builder has %d fields, record type has %d", path, sb.NumField(), len(typ.children))
		}
		f.children = make([]*fieldCodec, len(typ.children))
		for i, child := range typ.children {
			c, err := newFieldReader(child.Type, sb.FieldBuilder(i), path+"."+child.Name)
			if err != nil {
				return nil, err
			}
			f.children[i] = c
		}
	default:
		if err := checkReaderBuilder(typ.id, builder, path); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func checkReaderBuilder(id TypeID, builder array.Builder, path string) error {
	ok := false
	switch id {
	case TypeBool:
		_, ok = builder.(*array.BooleanBuilder)
	case TypeInt2:
		_, ok = builder.(*array.Int16Builder)
	case TypeInt4:
		_, ok = builder.(*array.Int32Builder)
	case TypeInt8:
		_, ok = builder.(*array.Int64Builder)
	case TypeFloat4:
		_, ok = builder.(*array.Float32Builder)
	case TypeFloat8:
		_, ok = builder.(*array.Float64Builder)
	case TypeText, TypeVarchar, TypeBpchar, TypeName, TypeChar, TypeJSON, TypeNumeric:
		_, ok = builder.(*array.StringBuilder)
	case TypeBytea:
		_, ok = builder.(*array.BinaryBuilder)
	case TypeDate:
		_, ok = builder.(*array.Date32Builder)
	case TypeTime:
		_, ok = builder.(*array.Time64Builder)
	case TypeTimestamp, TypeTimestamptz:
		_, ok = builder.(*array.TimestampBuilder)
	case TypeInterval:
		_, ok = builder.(*array.MonthDayNanoIntervalBuilder)
	case TypeUUID:
		_, ok = builder.(*array.FixedSizeBinaryBuilder)
	default:
		return fmt.Errorf("field %s: %w: %s", path, ErrUnsupportedType, id)
	}
	if !ok {
		return fmt.Errorf("field %s: builder %T does not match type %s", path, builder, id)
	}
	return nil
}

// newFieldWriter binds a codec tree for typ to a column array.
func newFieldWriter(typ *Type, arr arrow.Array, path string) (*fieldCodec, error) {
	f := &fieldCodec{typ: typ, path: path, arr: arr}
	switch typ.id {
	case TypeArray:
		la, ok := arr.(*array.List)
		if !ok {
			return nil, fmt.Errorf("field %s: expected *array.List, got %T", path, arr)
		}
		elem, err := newFieldWriter(typ.elem, la.ListValues(), path+".elem")
		if err != nil {
			return nil, err
		}
		f.elem = elem
	case TypeRecord:
		sa, ok := arr.(*array.Struct)
		if !ok {
			return nil, fmt.Errorf("field %s: expected *array.Struct, got %T", path, arr)
		}
		if sa.NumField() != len(typ.children) {
			return nil, fmt.Errorf("field %s: struct array has %d fields, record type has %d", path, sa.NumField(), len(typ.children))
		}
		f.children = make([]*fieldCodec, len(typ.children))
		for i, child := range typ.children {
			c, err := newFieldWriter(child.Type, sa.Field(i), path+"."+child.Name)
			if err != nil {
				return nil, err
			}
			f.children[i] = c
		}
	default:
		want, err := typ.ArrowType()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", path, err)
		}
		if !arrow.TypeEqual(want, arr.DataType()) {
			return nil, fmt.Errorf("field %s: array type %s does not match %s (%s)", path, arr.DataType(), typ.id, want)
		}
	}
	return f, nil
}

// appendNull records a SQL NULL for this field. Struct nulls propagate to the
// child builders so sibling columns keep equal lengths.
func (f *fieldCodec) appendNull() {
	f.builder.AppendNull()
}

// read decodes one field payload. The cursor covers exactly the payload
// bytes; anything left unconsumed (or missing) is a decode error.
func (f *fieldCodec) read(cur *Cursor) error {
	switch f.typ.id {
	case TypeBool:
		if cur.Remaining() != 1 {
			return f.lengthError(cur, 1)
		}
		b, err := cur.Take(1)
		if err != nil {
			return err
		}
		switch b[0] {
		case 0:
			f.builder.(*array.BooleanBuilder).Append(false)
		case 1:
			f.builder.(*array.BooleanBuilder).Append(true)
		default:
			return &CopyError{Offset: cur.Offset() - 1, Path: f.path, Err: fmt.Errorf("invalid bool value: 0x%02x", b[0])}
		}

	case TypeInt2:
		if cur.Remaining() != 2 {
			return f.lengthError(cur, 2)
		}
		v, err := cur.ReadInt16()
		if err != nil {
			return err
		}
		f.builder.(*array.Int16Builder).Append(v)

	case TypeInt4:
		if cur.Remaining() != 4 {
			return f.lengthError(cur, 4)
		}
		v, err := cur.ReadInt32()
		if err != nil {
			return err
		}
		f.builder.(*array.Int32Builder).Append(v)

	case TypeInt8:
		if cur.Remaining() != 8 {
			return f.lengthError(cur, 8)
		}
		v, err := cur.ReadInt64()
		if err != nil {
			return err
		}
		f.builder.(*array.Int64Builder).Append(v)

	case TypeFloat4:
		if cur.Remaining() != 4 {
			return f.lengthError(cur, 4)
		}
		v, err := cur.ReadFloat32()
		if err != nil {
			return err
		}
		f.builder.(*array.Float32Builder).Append(v)

	case TypeFloat8:
		if cur.Remaining() != 8 {
			return f.lengthError(cur, 8)
		}
		v, err := cur.ReadFloat64()
		if err != nil {
			return err
		}
		f.builder.(*array.Float64Builder).Append(v)

	case TypeText, TypeVarchar, TypeBpchar, TypeName, TypeChar, TypeJSON:
		data, err := cur.Take(cur.Remaining())
		if err != nil {
			return err
		}
		// Append the bytes directly, skipping a []byte-to-string conversion
		f.builder.(*array.StringBuilder).BinaryBuilder.Append(data)

	case TypeNumeric:
		s, err := decodeNumeric(cur)
		if err != nil {
			return pathError(f.path, cur.Offset(), err)
		}
		if cur.Remaining() != 0 {
			return &CopyError{Offset: cur.Offset(), Path: f.path, Err: fmt.Errorf("%w: %d trailing bytes", ErrNumericFormat, cur.Remaining())}
		}
		f.builder.(*array.StringBuilder).Append(s)

	case TypeBytea:
		data, err := cur.Take(cur.Remaining())
		if err != nil {
			return err
		}
		f.builder.(*array.BinaryBuilder).Append(data)

	case TypeDate:
		if cur.Remaining() != 4 {
			return f.lengthError(cur, 4)
		}
		pgDays, err := cur.ReadInt32()
		if err != nil {
			return err
		}
		f.builder.(*array.Date32Builder).Append(arrow.Date32(pgDays + PostgresDateEpochDays))

	case TypeTime:
		if cur.Remaining() != 8 {
			return f.lengthError(cur, 8)
		}
		micros, err := cur.ReadInt64()
		if err != nil {
			return err
		}
		f.builder.(*array.Time64Builder).Append(arrow.Time64(micros))

	case TypeTimestamp, TypeTimestamptz:
		if cur.Remaining() != 8 {
			return f.lengthError(cur, 8)
		}
		pgMicros, err := cur.ReadInt64()
		if err != nil {
			return err
		}
		f.builder.(*array.TimestampBuilder).Append(arrow.Timestamp(pgMicros + PostgresTimestampEpochMicros))

	case TypeInterval:
		if cur.Remaining() != 16 {
			return f.lengthError(cur, 16)
		}
		micros, err := cur.ReadInt64()
		if err != nil {
			return err
		}
		days, err := cur.ReadInt32()
		if err != nil {
			return err
		}
		months, err := cur.ReadInt32()
		if err != nil {
			return err
		}
		if micros > math.MaxInt64/1000 || micros < math.MinInt64/1000 {
			return &CopyError{Offset: cur.Offset() - 16, Path: f.path, Err: fmt.Errorf("interval microseconds overflow: %d", micros)}
		}
		f.builder.(*array.MonthDayNanoIntervalBuilder).Append(arrow.MonthDayNanoInterval{
			Months:      months,
			Days:        days,
			Nanoseconds: micros * 1000,
		})

	case TypeUUID:
		if cur.Remaining() != 16 {
			return f.lengthError(cur, 16)
		}
		data, err := cur.Take(16)
		if err != nil {
			return err
		}
		f.builder.(*array.FixedSizeBinaryBuilder).Append(data)

	case TypeArray:
		return f.readArray(cur)

	case TypeRecord:
		return f.readRecord(cur)

	default:
		return &CopyError{Offset: cur.Offset(), Path: f.path, Err: fmt.Errorf("%w: %s", ErrUnsupportedType, f.typ.id)}
	}
	return nil
}

// write appends the field payload for one row. The caller frames the payload
// with its 4-byte length and handles NULL rows.
func (f *fieldCodec) write(buf *WriteBuffer, row int) error {
	switch f.typ.id {
	case TypeBool:
		if f.arr.(*array.Boolean).Value(row) {
			buf.WriteBytes([]byte{1})
		} else {
			buf.WriteBytes([]byte{0})
		}

	case TypeInt2:
		buf.WriteInt16(f.arr.(*array.Int16).Value(row))

	case TypeInt4:
		buf.WriteInt32(f.arr.(*array.Int32).Value(row))

	case TypeInt8:
		buf.WriteInt64(f.arr.(*array.Int64).Value(row))

	case TypeFloat4:
		buf.WriteFloat32(f.arr.(*array.Float32).Value(row))

	case TypeFloat8:
		buf.WriteFloat64(f.arr.(*array.Float64).Value(row))

	case TypeText, TypeVarchar, TypeBpchar, TypeName, TypeChar, TypeJSON:
		buf.WriteBytes([]byte(f.arr.(*array.String).Value(row)))

	case TypeNumeric:
		if err := encodeNumeric(buf, f.arr.(*array.String).Value(row)); err != nil {
			return fmt.Errorf("field %s: %w", f.path, err)
		}

	case TypeBytea:
		buf.WriteBytes(f.arr.(*array.Binary).Value(row))

	case TypeDate:
		buf.WriteInt32(int32(f.arr.(*array.Date32).Value(row)) - PostgresDateEpochDays)

	case TypeTime:
		buf.WriteInt64(int64(f.arr.(*array.Time64).Value(row)))

	case TypeTimestamp, TypeTimestamptz:
		buf.WriteInt64(int64(f.arr.(*array.Timestamp).Value(row)) - PostgresTimestampEpochMicros)

	case TypeInterval:
		v := f.arr.(*array.MonthDayNanoInterval).Value(row)
		if v.Nanoseconds%1000 != 0 {
			return fmt.Errorf("field %s: interval nanoseconds %d not representable in microseconds", f.path, v.Nanoseconds)
		}
		buf.WriteInt64(v.Nanoseconds / 1000)
		buf.WriteInt32(v.Days)
		buf.WriteInt32(v.Months)

	case TypeUUID:
		buf.WriteBytes(f.arr.(*array.FixedSizeBinary).Value(row))

	case TypeArray:
		return f.writeArray(buf, row)

	case TypeRecord:
		return f.writeRecord(buf, row)

	default:
		return fmt.Errorf("field %s: %w: %s", f.path, ErrUnsupportedType, f.typ.id)
	}
	return nil
}

// readArray decodes the array payload: {ndim, has-nulls flag, element OID},
// ndim {size, lower bound} pairs, then length-prefixed elements in row-major
// order. Multi-dimensional input flattens to a single list of
// product(dim sizes) elements.
func (f *fieldCodec) readArray(cur *Cursor) error {
	start := cur.Offset()
	ndim, err := cur.ReadInt32()
	if err != nil {
		return err
	}
	flags, err := cur.ReadInt32()
	if err != nil {
		return err
	}
	elemOID, err := cur.ReadUint32()
	if err != nil {
		return err
	}
	if ndim < 0 || ndim > maxArrayDims {
		return &CopyError{Offset: start, Path: f.path, Err: fmt.Errorf("%w: ndim %d", ErrArrayShape, ndim)}
	}
	if flags != 0 && flags != 1 {
		return &CopyError{Offset: start, Path: f.path, Err: fmt.Errorf("%w: flags %d", ErrArrayShape, flags)}
	}
	if elemOID != f.elem.typ.OID() {
		return &CopyError{Offset: start, Path: f.path, Err: fmt.Errorf("%w: element OID %d, declared %s (%d)", ErrOIDMismatch, elemOID, f.elem.typ.id, f.elem.typ.OID())}
	}

	nitems := int64(1)
	for d := int32(0); d < ndim; d++ {
		size, err := cur.ReadInt32()
		if err != nil {
			return err
		}
		if _, err := cur.ReadInt32(); err != nil { // lower bound, ignored
			return err
		}
		if size < 0 {
			return &CopyError{Offset: start, Path: f.path, Err: fmt.Errorf("%w: dimension size %d", ErrArrayShape, size)}
		}
		nitems *= int64(size)
	}
	if ndim == 0 {
		nitems = 0
	}
	// Every element carries at least its 4-byte length prefix.
	if nitems*4 > int64(cur.Remaining()) {
		return &CopyError{Offset: start, Path: f.path, Err: fmt.Errorf("%w: %d elements in %d payload bytes", ErrArrayShape, nitems, cur.Remaining())}
	}

	f.builder.(*array.ListBuilder).Append(true)
	for i := int64(0); i < nitems; i++ {
		elen, err := cur.ReadLength()
		if err != nil {
			return err
		}
		if elen == -1 {
			f.elem.appendNull()
			continue
		}
		sub, err := cur.Slice(int(elen))
		if err != nil {
			return err
		}
		if err := f.elem.read(sub); err != nil {
			return pathError(f.elem.path, sub.Offset(), err)
		}
	}
	if cur.Remaining() != 0 {
		return &CopyError{Offset: cur.Offset(), Path: f.path, Err: fmt.Errorf("%w: %d trailing bytes", ErrArrayShape, cur.Remaining())}
	}
	return nil
}

// writeArray encodes one list row. Empty lists use PostgreSQL's zero-dimension
// form; everything else is a one-dimensional array with lower bound 1.
func (f *fieldCodec) writeArray(buf *WriteBuffer, row int) error {
	la := f.arr.(*array.List)
	start, end := la.ValueOffsets(row)
	n := end - start

	if n == 0 {
		buf.WriteInt32(0) // ndim
		buf.WriteInt32(0) // has-nulls flag
		buf.WriteUint32(f.elem.typ.OID())
		return nil
	}

	hasNulls := int32(0)
	for i := start; i < end; i++ {
		if f.elem.arr.IsNull(int(i)) {
			hasNulls = 1
			break
		}
	}

	buf.WriteInt32(1) // ndim
	buf.WriteInt32(hasNulls)
	buf.WriteUint32(f.elem.typ.OID())
	buf.WriteInt32(int32(n))
	buf.WriteInt32(1) // lower bound

	for i := start; i < end; i++ {
		if f.elem.arr.IsNull(int(i)) {
			buf.WriteInt32(-1)
			continue
		}
		lenPos := buf.ReserveInt32()
		if err := f.elem.write(buf, int(i)); err != nil {
			return err
		}
		if err := backfillLength(buf, lenPos, f.elem.path); err != nil {
			return err
		}
	}
	return nil
}

// readRecord decodes a composite payload: {nfields}, then per child
// {OID, length, payload}. Child handlers are chosen by position; the embedded
// OID must agree with the declared child type.
func (f *fieldCodec) readRecord(cur *Cursor) error {
	start := cur.Offset()
	nfields, err := cur.ReadInt32()
	if err != nil {
		return err
	}
	if int(nfields) != len(f.children) {
		return &CopyError{Offset: start, Path: f.path, Err: fmt.Errorf("%w: record has %d fields, declared %d", ErrFieldCountMismatch, nfields, len(f.children))}
	}

	f.builder.(*array.StructBuilder).Append(true)
	for _, child := range f.children {
		oid, err := cur.ReadUint32()
		if err != nil {
			return err
		}
		if oid != child.typ.OID() {
			return &CopyError{Offset: cur.Offset() - 4, Path: child.path, Err: fmt.Errorf("%w: embedded OID %d, declared %s (%d)", ErrOIDMismatch, oid, child.typ.id, child.typ.OID())}
		}
		clen, err := cur.ReadLength()
		if err != nil {
			return err
		}
		if clen == -1 {
			child.appendNull()
			continue
		}
		sub, err := cur.Slice(int(clen))
		if err != nil {
			return err
		}
		if err := child.read(sub); err != nil {
			return pathError(child.path, sub.Offset(), err)
		}
	}
	if cur.Remaining() != 0 {
		return &CopyError{Offset: cur.Offset(), Path: f.path, Err: fmt.Errorf("%w: %d trailing bytes after record", ErrLengthMismatch, cur.Remaining())}
	}
	return nil
}

// writeRecord encodes one composite row with embedded child OIDs.
func (f *fieldCodec) writeRecord(buf *WriteBuffer, row int) error {
	buf.WriteInt32(int32(len(f.children)))
	for _, child := range f.children {
		buf.WriteUint32(child.typ.OID())
		if child.arr.IsNull(row) {
			buf.WriteInt32(-1)
			continue
		}
		lenPos := buf.ReserveInt32()
		if err := child.write(buf, row); err != nil {
			return err
		}
		if err := backfillLength(buf, lenPos, child.path); err != nil {
			return err
		}
	}
	return nil
}

func (f *fieldCodec) lengthError(cur *Cursor, want int) error {
	return &CopyError{
		Offset: cur.Offset(),
		Path:   f.path,
		Err:    fmt.Errorf("%w: %s expects %d bytes, got %d", ErrLengthMismatch, f.typ.id, want, cur.Remaining()),
	}
}

// backfillLength fills a reserved length prefix once the payload size is
// known. Payloads past MaxInt32 cannot be framed.
func backfillLength(buf *WriteBuffer, lenPos int, path string) error {
	payload := buf.Len() - lenPos - 4
	if payload > math.MaxInt32 {
		return fmt.Errorf("field %s: payload of %d bytes exceeds maximum field length", path, payload)
	}
	buf.PutInt32At(lenPos, int32(payload))
	return nil
}
