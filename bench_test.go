package pgcopy_test

import (
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fwojciec/pgcopy"
)

func benchmarkStream(b *testing.B, rows int) []byte {
	b.Helper()

	buf := pgcopy.NewWriteBuffer(rows * 32)
	buf.WriteBytes(copyHeader())
	for i := 0; i < rows; i++ {
		buf.WriteInt16(3)
		buf.WriteInt32(4)
		buf.WriteInt32(int32(i))
		buf.WriteInt32(8)
		buf.WriteFloat64(float64(i) * 3.14159)
		text := "benchmark_row_payload"
		buf.WriteInt32(int32(len(text)))
		buf.WriteBytes([]byte(text))
	}
	buf.WriteInt16(-1)
	return buf.Bytes()
}

func benchmarkRootType() *pgcopy.Type {
	return pgcopy.NewRecordType(
		pgcopy.TypeField{Name: "id", Type: pgcopy.NewType(pgcopy.TypeInt4)},
		pgcopy.TypeField{Name: "value", Type: pgcopy.NewType(pgcopy.TypeFloat8)},
		pgcopy.TypeField{Name: "label", Type: pgcopy.NewType(pgcopy.TypeText)},
	)
}

func BenchmarkStreamReader(b *testing.B) {
	data := benchmarkStream(b, 10000)
	rootType := benchmarkRootType()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		record, err := pgcopy.ReadAll(data, rootType, memory.DefaultAllocator)
		if err != nil {
			b.Fatal(err)
		}
		if record.NumRows() != 10000 {
			b.Fatalf("expected 10000 rows, got %d", record.NumRows())
		}
		record.Release()
	}
}

func BenchmarkStreamWriter(b *testing.B) {
	data := benchmarkStream(b, 10000)
	rootType := benchmarkRootType()
	record, err := pgcopy.ReadAll(data, rootType, memory.DefaultAllocator)
	if err != nil {
		b.Fatal(err)
	}
	defer record.Release()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		writer, err := pgcopy.NewStreamWriterWithType(rootType, record)
		if err != nil {
			b.Fatal(err)
		}
		buf := pgcopy.NewWriteBuffer(len(data))
		if err := writer.WriteHeader(buf); err != nil {
			b.Fatal(err)
		}
		for {
			err := writer.WriteRecord(buf)
			if err == io.EOF {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
		}
		if buf.Len() != len(data) {
			b.Fatalf("expected %d bytes, got %d", len(data), buf.Len())
		}
	}
}

func BenchmarkReadRecord(b *testing.B) {
	data := benchmarkStream(b, 1)
	rootType := benchmarkRootType()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		record, err := pgcopy.ReadAll(data, rootType, memory.DefaultAllocator)
		if err != nil {
			b.Fatal(err)
		}
		record.Release()
	}
}
