package pgcopy_test

import (
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fwojciec/pgcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test streams captured from PostgreSQL:
// COPY (SELECT ...) TO STDOUT WITH (FORMAT binary)

// VALUES (TRUE), (FALSE), (NULL)
var testCopyBoolean = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x01,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// VALUES (-123), (-1), (1), (123), (NULL) as smallint
var testCopySmallInt = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
	0x02, 0xff, 0x85, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0xff, 0xff, 0x00,
	0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x7b, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// VALUES (-123), (-1), (1), (123), (NULL) as integer
var testCopyInteger = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0xff, 0xff, 0xff,
	0x85, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0xff, 0xff, 0xff, 0xff, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0x00,
	0x00, 0x00, 0x7b, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// VALUES (-123), (-1), (1), (123), (NULL) as bigint
var testCopyBigInt = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0x85, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x7b, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// VALUES (-123.456), (-1), (1), (123.456), (NULL) as real
var testCopyReal = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0xc2, 0xf6, 0xe9,
	0x79, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0xbf, 0x80, 0x00, 0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x04, 0x3f, 0x80, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0x42,
	0xf6, 0xe9, 0x79, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// VALUES (-123.456), (-1), (1), (123.456), (NULL) as double precision
var testCopyDoublePrecision = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0xc0, 0x5e, 0xdd,
	0x2f, 0x1a, 0x9f, 0xbe, 0x77, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0xbf, 0xf0, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0x3f, 0xf0, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0x40, 0x5e, 0xdd,
	0x2f, 0x1a, 0x9f, 0xbe, 0x77, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// VALUES (1000000), ('0.00001234'), ('1.0000'), (-123.456), (123.456),
// ('nan'), ('-inf'), ('inf'), (NULL) as numeric
var testCopyNumeric = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x01, 0x00,
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x64, 0x00, 0x01, 0x00, 0x00, 0x00, 0x0a, 0x00,
	0x01, 0xff, 0xfe, 0x00, 0x00, 0x00, 0x08, 0x04, 0xd2, 0x00, 0x01, 0x00, 0x00, 0x00,
	0x0a, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x0c, 0x00, 0x02, 0x00, 0x00, 0x40, 0x00, 0x00, 0x03, 0x00, 0x7b, 0x11,
	0xd0, 0x00, 0x01, 0x00, 0x00, 0x00, 0x0c, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x03, 0x00, 0x7b, 0x11, 0xd0, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x00, 0xc0, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x00, 0xf0, 0x00, 0x00, 0x20, 0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x00, 0xd0, 0x00, 0x00, 0x20, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// VALUES ('abc'), ('1234'), (NULL) as text
var testCopyText = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
	0x03, 0x61, 0x62, 0x63, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0x31, 0x32,
	0x33, 0x34, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// VALUES ('{-123, -1}'), ('{0, 1, 123}'), (NULL) as integer array
var testCopyIntegerArray = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x24, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x17, 0x00, 0x00, 0x00, 0x02, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0xff, 0xff, 0xff, 0x85, 0x00, 0x00, 0x00,
	0x04, 0xff, 0xff, 0xff, 0xff, 0x00, 0x01, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x17, 0x00, 0x00, 0x00, 0x03, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x04, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x7b, 0x00,
	0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// CREATE TYPE custom_record AS (nested1 integer, nested2 double precision);
// VALUES ('(123, 456.789)'), ('(12, 345.678)'), (NULL)
var testCopyCustomRecord = []byte{
	0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x20, 0x00,
	0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x17, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00,
	0x00, 0x7b, 0x00, 0x00, 0x02, 0xbd, 0x00, 0x00, 0x00, 0x08, 0x40, 0x7c, 0x8c,
	0x9f, 0xbe, 0x76, 0xc8, 0xb4, 0x00, 0x01, 0x00, 0x00, 0x00, 0x20, 0x00, 0x00,
	0x00, 0x02, 0x00, 0x00, 0x00, 0x17, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00,
	0x0c, 0x00, 0x00, 0x02, 0xbd, 0x00, 0x00, 0x00, 0x08, 0x40, 0x75, 0x9a, 0xd9,
	0x16, 0x87, 0x2b, 0x02, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// singleColumn builds a root record type with one column named "col".
func singleColumn(t *pgcopy.Type) *pgcopy.Type {
	return pgcopy.NewRecordType(pgcopy.TypeField{Name: "col", Type: t})
}

func TestStreamReader_Boolean(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	record, err := pgcopy.ReadAll(testCopyBoolean, singleColumn(pgcopy.NewType(pgcopy.TypeBool)), alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(3), record.NumRows())
	col, ok := record.Column(0).(*array.Boolean)
	require.True(t, ok)

	assert.True(t, col.Value(0))
	assert.False(t, col.Value(1))
	assert.True(t, col.IsNull(2))
}

func TestStreamReader_SmallInt(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	record, err := pgcopy.ReadAll(testCopySmallInt, singleColumn(pgcopy.NewType(pgcopy.TypeInt2)), alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(5), record.NumRows())
	col, ok := record.Column(0).(*array.Int16)
	require.True(t, ok)

	assert.Equal(t, int16(-123), col.Value(0))
	assert.Equal(t, int16(-1), col.Value(1))
	assert.Equal(t, int16(1), col.Value(2))
	assert.Equal(t, int16(123), col.Value(3))
	assert.True(t, col.IsNull(4))
}

func TestStreamReader_Integer(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	record, err := pgcopy.ReadAll(testCopyInteger, singleColumn(pgcopy.NewType(pgcopy.TypeInt4)), alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(5), record.NumRows())
	col, ok := record.Column(0).(*array.Int32)
	require.True(t, ok)

	assert.Equal(t, int32(-123), col.Value(0))
	assert.Equal(t, int32(-1), col.Value(1))
	assert.Equal(t, int32(1), col.Value(2))
	assert.Equal(t, int32(123), col.Value(3))
	assert.True(t, col.IsNull(4))
}

func TestStreamReader_BigInt(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	record, err := pgcopy.ReadAll(testCopyBigInt, singleColumn(pgcopy.NewType(pgcopy.TypeInt8)), alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(5), record.NumRows())
	col, ok := record.Column(0).(*array.Int64)
	require.True(t, ok)

	assert.Equal(t, int64(-123), col.Value(0))
	assert.Equal(t, int64(-1), col.Value(1))
	assert.Equal(t, int64(1), col.Value(2))
	assert.Equal(t, int64(123), col.Value(3))
	assert.True(t, col.IsNull(4))
}

func TestStreamReader_Real(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	record, err := pgcopy.ReadAll(testCopyReal, singleColumn(pgcopy.NewType(pgcopy.TypeFloat4)), alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(5), record.NumRows())
	col, ok := record.Column(0).(*array.Float32)
	require.True(t, ok)

	assert.InEpsilon(t, float32(-123.456), col.Value(0), 0.0001)
	assert.Equal(t, float32(-1), col.Value(1))
	assert.Equal(t, float32(1), col.Value(2))
	assert.InEpsilon(t, float32(123.456), col.Value(3), 0.0001)
	assert.True(t, col.IsNull(4))
}

func TestStreamReader_DoublePrecision(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	record, err := pgcopy.ReadAll(testCopyDoublePrecision, singleColumn(pgcopy.NewType(pgcopy.TypeFloat8)), alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(5), record.NumRows())
	col, ok := record.Column(0).(*array.Float64)
	require.True(t, ok)

	assert.InDelta(t, -123.456, col.Value(0), 1e-12)
	assert.Equal(t, float64(-1), col.Value(1))
	assert.Equal(t, float64(1), col.Value(2))
	assert.InDelta(t, 123.456, col.Value(3), 1e-12)
	assert.True(t, col.IsNull(4))
}

func TestStreamReader_Numeric(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	record, err := pgcopy.ReadAll(testCopyNumeric, singleColumn(pgcopy.NewType(pgcopy.TypeNumeric)), alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(9), record.NumRows())
	col, ok := record.Column(0).(*array.String)
	require.True(t, ok)

	want := []string{"1000000", "0.00001234", "1.0000", "-123.456", "123.456", "nan", "-inf", "inf"}
	for i, expected := range want {
		assert.Equal(t, expected, col.Value(i), "row %d", i)
	}
	assert.True(t, col.IsNull(8))
}

func TestStreamReader_Text(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	record, err := pgcopy.ReadAll(testCopyText, singleColumn(pgcopy.NewType(pgcopy.TypeText)), alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(3), record.NumRows())
	col, ok := record.Column(0).(*array.String)
	require.True(t, ok)

	assert.Equal(t, "abc", col.Value(0))
	assert.Equal(t, "1234", col.Value(1))
	assert.True(t, col.IsNull(2))

	// offsets: [0, 3, 7, 7]
	offsets := col.ValueOffsets()
	require.Len(t, offsets, 4)
	assert.Equal(t, int32(0), offsets[0])
	assert.Equal(t, int32(3), offsets[1])
	assert.Equal(t, int32(7), offsets[2])
	assert.Equal(t, int32(7), offsets[3])
}

func TestStreamReader_IntegerArray(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	rootType := singleColumn(pgcopy.NewType(pgcopy.TypeInt4).Array())
	record, err := pgcopy.ReadAll(testCopyIntegerArray, rootType, alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(3), record.NumRows())
	col, ok := record.Column(0).(*array.List)
	require.True(t, ok)

	assert.False(t, col.IsNull(0))
	assert.False(t, col.IsNull(1))
	assert.True(t, col.IsNull(2))

	start0, end0 := col.ValueOffsets(0)
	start1, end1 := col.ValueOffsets(1)
	start2, end2 := col.ValueOffsets(2)
	assert.Equal(t, int64(0), start0)
	assert.Equal(t, int64(2), end0)
	assert.Equal(t, int64(2), start1)
	assert.Equal(t, int64(5), end1)
	assert.Equal(t, int64(5), start2)
	assert.Equal(t, int64(5), end2)

	values, ok := col.ListValues().(*array.Int32)
	require.True(t, ok)
	require.Equal(t, 5, values.Len())
	assert.Equal(t, int32(-123), values.Value(0))
	assert.Equal(t, int32(-1), values.Value(1))
	assert.Equal(t, int32(0), values.Value(2))
	assert.Equal(t, int32(1), values.Value(3))
	assert.Equal(t, int32(123), values.Value(4))
}

func TestStreamReader_CustomRecord(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	colType := pgcopy.NewRecordType(
		pgcopy.TypeField{Name: "nested1", Type: pgcopy.NewType(pgcopy.TypeInt4)},
		pgcopy.TypeField{Name: "nested2", Type: pgcopy.NewType(pgcopy.TypeFloat8)},
	)
	record, err := pgcopy.ReadAll(testCopyCustomRecord, singleColumn(colType), alloc)
	require.NoError(t, err)
	defer record.Release()

	require.Equal(t, int64(3), record.NumRows())
	col, ok := record.Column(0).(*array.Struct)
	require.True(t, ok)

	assert.False(t, col.IsNull(0))
	assert.False(t, col.IsNull(1))
	assert.True(t, col.IsNull(2))

	nested1, ok := col.Field(0).(*array.Int32)
	require.True(t, ok)
	nested2, ok := col.Field(1).(*array.Float64)
	require.True(t, ok)
	require.Equal(t, 3, nested1.Len())
	require.Equal(t, 3, nested2.Len())

	assert.Equal(t, int32(123), nested1.Value(0))
	assert.Equal(t, int32(12), nested1.Value(1))
	assert.True(t, nested1.IsNull(2))

	assert.InDelta(t, 456.789, nested2.Value(0), 1e-12)
	assert.InDelta(t, 345.678, nested2.Value(1), 1e-12)
	assert.True(t, nested2.IsNull(2))
}

func TestStreamReader_Lifecycle(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	reader, err := pgcopy.NewStreamReader(singleColumn(pgcopy.NewType(pgcopy.TypeInt4)), alloc)
	require.NoError(t, err)
	defer reader.Release()

	cur := pgcopy.NewCursor(testCopyInteger)
	require.NoError(t, reader.ReadHeader(cur))

	rows := 0
	for {
		err := reader.ReadRecord(cur)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows++
	}

	// The cursor ends exactly at the end of the stream.
	assert.Equal(t, 0, cur.Remaining())
	assert.Equal(t, int64(len(testCopyInteger)), cur.Offset())
	assert.Equal(t, 5, rows)
	assert.Equal(t, int64(5), reader.NumRows())

	record, err := reader.NewRecord()
	require.NoError(t, err)
	defer record.Release()
	assert.Equal(t, int64(5), record.NumRows())

	// The record can only be taken once.
	_, err = reader.NewRecord()
	require.Error(t, err)
}

func TestStreamReader_EmptyStream(t *testing.T) {
	t.Parallel()
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	data := append(copyHeader(), 0xff, 0xff)
	record, err := pgcopy.ReadAll(data, singleColumn(pgcopy.NewType(pgcopy.TypeInt4)), alloc)
	require.NoError(t, err)
	defer record.Release()

	assert.Equal(t, int64(0), record.NumRows())
	assert.Equal(t, int64(1), record.NumCols())
}

// copyHeader returns a valid 19-byte COPY binary header.
func copyHeader() []byte {
	return []byte{
		0x50, 0x47, 0x43, 0x4f, 0x50, 0x59, 0x0a, 0xff, 0x0d, 0x0a, 0x00,
		0x00, 0x00, 0x00, 0x00, // flags
		0x00, 0x00, 0x00, 0x00, // header extension length
	}
}
