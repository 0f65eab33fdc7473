package pgcopy

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for COPY stream failures. Match with errors.Is; the
// CopyError wrapper adds the stream offset and field path.
var (
	ErrBadSignature       = errors.New("invalid PGCOPY signature")
	ErrUnsupportedFlag    = errors.New("unsupported COPY header flag")
	ErrShortRead          = errors.New("unexpected end of COPY data")
	ErrFieldCountMismatch = errors.New("tuple field count mismatch")
	ErrLengthMismatch     = errors.New("invalid field length")
	ErrUnsupportedType    = errors.New("unsupported PostgreSQL type")
	ErrOIDMismatch        = errors.New("embedded type OID mismatch")
	ErrNumericFormat      = errors.New("malformed numeric value")
	ErrArrayShape         = errors.New("inconsistent array header")
)

// CopyError is a decode or encode failure annotated with the byte offset from
// the start of the stream and, when available, the path of the field being
// processed (e.g. "col.nested1").
type CopyError struct {
	Offset int64  // byte offset from stream start
	Path   string // field path, empty when the failure is not field-scoped
	Err    error  // underlying error, usually one of the sentinels above
}

func (e *CopyError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("pgcopy: offset %d: field %s: %v", e.Offset, e.Path, e.Err)
	}
	return fmt.Sprintf("pgcopy: offset %d: %v", e.Offset, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// pathError attaches a field path to err, preserving offset and path details
// already present on an inner CopyError.
func pathError(path string, offset int64, err error) error {
	var ce *CopyError
	if errors.As(err, &ce) {
		if ce.Path == "" {
			ce.Path = path
		}
		return err
	}
	return &CopyError{Offset: offset, Path: path, Err: err}
}

// SchemaError reports a failure to derive an Arrow schema from PostgreSQL
// column metadata.
type SchemaError struct {
	Columns []ColumnInfo
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("failed to create Arrow schema from %d columns: %v", len(e.Columns), e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// QueryError provides context about query execution failures in the Pool.
type QueryError struct {
	SQL       string
	Operation string // which stage failed, e.g. "metadata_discovery", "copy_execution"
	Err       error
}

func (e *QueryError) Error() string {
	sql := e.SQL
	if len(sql) > 100 {
		sql = sql[:100] + "..."
	}
	return fmt.Sprintf("query failed during %s: %v (SQL: %s)", e.Operation, e.Err, sql)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
