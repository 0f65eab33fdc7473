package pgcopy

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

const (
	// PostgreSQL epoch adjustment: days from 1970-01-01 to 2000-01-01
	PostgresDateEpochDays = 10957
	// PostgreSQL timestamp epoch adjustment: microseconds from 1970-01-01 to 2000-01-01
	PostgresTimestampEpochMicros = 946684800000000
)

// PostgreSQL type OIDs for supported data types
const (
	TypeOIDBool        = 16
	TypeOIDBytea       = 17
	TypeOIDChar        = 18
	TypeOIDName        = 19
	TypeOIDInt8        = 20
	TypeOIDInt2        = 21
	TypeOIDInt4        = 23
	TypeOIDText        = 25
	TypeOIDJSON        = 114
	TypeOIDFloat4      = 700
	TypeOIDFloat8      = 701
	TypeOIDBpchar      = 1042
	TypeOIDVarchar     = 1043
	TypeOIDDate        = 1082
	TypeOIDTime        = 1083
	TypeOIDTimestamp   = 1114
	TypeOIDTimestamptz = 1184
	TypeOIDInterval    = 1186
	TypeOIDNumeric     = 1700
	TypeOIDRecord      = 2249
	TypeOIDUUID        = 2950
)

// TypeID identifies a PostgreSQL type in the closed set this codec supports.
type TypeID int

const (
	TypeBool TypeID = iota
	TypeBytea
	TypeChar
	TypeName
	TypeInt8
	TypeInt2
	TypeInt4
	TypeText
	TypeJSON
	TypeFloat4
	TypeFloat8
	TypeBpchar
	TypeVarchar
	TypeDate
	TypeTime
	TypeTimestamp
	TypeTimestamptz
	TypeInterval
	TypeNumeric
	TypeUUID
	TypeArray
	TypeRecord
)

var typeIDNames = map[TypeID]string{
	TypeBool:        "bool",
	TypeBytea:       "bytea",
	TypeChar:        "char",
	TypeName:        "name",
	TypeInt8:        "int8",
	TypeInt2:        "int2",
	TypeInt4:        "int4",
	TypeText:        "text",
	TypeJSON:        "json",
	TypeFloat4:      "float4",
	TypeFloat8:      "float8",
	TypeBpchar:      "bpchar",
	TypeVarchar:     "varchar",
	TypeDate:        "date",
	TypeTime:        "time",
	TypeTimestamp:   "timestamp",
	TypeTimestamptz: "timestamptz",
	TypeInterval:    "interval",
	TypeNumeric:     "numeric",
	TypeUUID:        "uuid",
	TypeArray:       "array",
	TypeRecord:      "record",
}

func (id TypeID) String() string {
	if name, ok := typeIDNames[id]; ok {
		return name
	}
	return fmt.Sprintf("TypeID(%d)", int(id))
}

var typeIDOIDs = map[TypeID]uint32{
	TypeBool:        TypeOIDBool,
	TypeBytea:       TypeOIDBytea,
	TypeChar:        TypeOIDChar,
	TypeName:        TypeOIDName,
	TypeInt8:        TypeOIDInt8,
	TypeInt2:        TypeOIDInt2,
	TypeInt4:        TypeOIDInt4,
	TypeText:        TypeOIDText,
	TypeJSON:        TypeOIDJSON,
	TypeFloat4:      TypeOIDFloat4,
	TypeFloat8:      TypeOIDFloat8,
	TypeBpchar:      TypeOIDBpchar,
	TypeVarchar:     TypeOIDVarchar,
	TypeDate:        TypeOIDDate,
	TypeTime:        TypeOIDTime,
	TypeTimestamp:   TypeOIDTimestamp,
	TypeTimestamptz: TypeOIDTimestamptz,
	TypeInterval:    TypeOIDInterval,
	TypeNumeric:     TypeOIDNumeric,
	TypeUUID:        TypeOIDUUID,
	TypeRecord:      TypeOIDRecord,
}

// arrayOIDs maps an element type OID to the OID of its array type, as listed
// in pg_type.typarray.
var arrayOIDs = map[uint32]uint32{
	TypeOIDBool:        1000,
	TypeOIDBytea:       1001,
	TypeOIDChar:        1002,
	TypeOIDName:        1003,
	TypeOIDInt8:        1016,
	TypeOIDInt2:        1005,
	TypeOIDInt4:        1007,
	TypeOIDText:        1009,
	TypeOIDJSON:        199,
	TypeOIDFloat4:      1021,
	TypeOIDFloat8:      1022,
	TypeOIDBpchar:      1014,
	TypeOIDVarchar:     1015,
	TypeOIDDate:        1182,
	TypeOIDTime:        1183,
	TypeOIDTimestamp:   1115,
	TypeOIDTimestamptz: 1185,
	TypeOIDInterval:    1187,
	TypeOIDNumeric:     1231,
	TypeOIDUUID:        2951,
	TypeOIDRecord:      2287,
}

// Type describes a PostgreSQL type as a tree: scalars are leaves, Array nodes
// carry an element type, Record nodes carry an ordered list of named children.
// A Type is immutable once handed to a reader or writer.
type Type struct {
	id       TypeID
	oid      uint32
	elem     *Type
	children []TypeField
}

// TypeField is a named child of a Record type.
type TypeField struct {
	Name string
	Type *Type
}

// NewType creates a scalar type descriptor with its canonical OID. Array and
// Record descriptors are built with Array and NewRecordType.
func NewType(id TypeID) *Type {
	return &Type{id: id, oid: typeIDOIDs[id]}
}

// Array wraps t as its PostgreSQL array type.
func (t *Type) Array() *Type {
	return &Type{id: TypeArray, oid: arrayOIDs[t.oid], elem: t}
}

// NewRecordType creates a composite record descriptor from ordered named
// fields.
func NewRecordType(fields ...TypeField) *Type {
	return &Type{id: TypeRecord, oid: TypeOIDRecord, children: fields}
}

// ID returns the type identifier.
func (t *Type) ID() TypeID { return t.id }

// OID returns the PostgreSQL type OID.
func (t *Type) OID() uint32 { return t.oid }

// Elem returns the element type of an Array, nil otherwise.
func (t *Type) Elem() *Type { return t.elem }

// Children returns the named fields of a Record, nil otherwise.
func (t *Type) Children() []TypeField { return t.children }

// ArrowType returns the Arrow data type this PostgreSQL type decodes to.
func (t *Type) ArrowType() (arrow.DataType, error) {
	switch t.id {
	case TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case TypeBytea:
		return arrow.BinaryTypes.Binary, nil
	case TypeInt2:
		return arrow.PrimitiveTypes.Int16, nil
	case TypeInt4:
		return arrow.PrimitiveTypes.Int32, nil
	case TypeInt8:
		return arrow.PrimitiveTypes.Int64, nil
	case TypeFloat4:
		return arrow.PrimitiveTypes.Float32, nil
	case TypeFloat8:
		return arrow.PrimitiveTypes.Float64, nil
	case TypeText, TypeVarchar, TypeBpchar, TypeName, TypeChar, TypeJSON, TypeNumeric:
		return arrow.BinaryTypes.String, nil
	case TypeDate:
		return arrow.PrimitiveTypes.Date32, nil
	case TypeTime:
		return arrow.FixedWidthTypes.Time64us, nil
	case TypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: ""}, nil
	case TypeTimestamptz:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
	case TypeInterval:
		return arrow.FixedWidthTypes.MonthDayNanoInterval, nil
	case TypeUUID:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}, nil
	case TypeArray:
		elemType, err := t.elem.ArrowType()
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elemType), nil
	case TypeRecord:
		fields := make([]arrow.Field, len(t.children))
		for i, child := range t.children {
			childType, err := child.Type.ArrowType()
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", child.Name, err)
			}
			fields[i] = arrow.Field{Name: child.Name, Type: childType, Nullable: true}
		}
		return arrow.StructOf(fields...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t.id)
	}
}

// InferSchema walks a root Record descriptor and produces the Arrow schema of
// the decoded stream. Each column is nullable, matching COPY semantics.
func InferSchema(root *Type) (*arrow.Schema, error) {
	if root == nil || root.id != TypeRecord {
		return nil, fmt.Errorf("%w: root type must be a record", ErrUnsupportedType)
	}
	fields := make([]arrow.Field, len(root.children))
	for i, child := range root.children {
		dt, err := child.Type.ArrowType()
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", child.Name, err)
		}
		fields[i] = arrow.Field{Name: child.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// typeForArrow derives the PostgreSQL type descriptor for an Arrow data type.
// It is the inverse of ArrowType and drives StreamWriter initialization.
// String columns map to text; numeric values round-trip through their decimal
// string form only when the caller declared the column as numeric via a
// descriptor, so writers derived from a bare schema treat strings as text.
func typeForArrow(dt arrow.DataType) (*Type, error) {
	switch dt := dt.(type) {
	case *arrow.BooleanType:
		return NewType(TypeBool), nil
	case *arrow.Int16Type:
		return NewType(TypeInt2), nil
	case *arrow.Int32Type:
		return NewType(TypeInt4), nil
	case *arrow.Int64Type:
		return NewType(TypeInt8), nil
	case *arrow.Float32Type:
		return NewType(TypeFloat4), nil
	case *arrow.Float64Type:
		return NewType(TypeFloat8), nil
	case *arrow.StringType:
		return NewType(TypeText), nil
	case *arrow.BinaryType:
		return NewType(TypeBytea), nil
	case *arrow.Date32Type:
		return NewType(TypeDate), nil
	case *arrow.Time64Type:
		if dt.Unit != arrow.Microsecond {
			return nil, fmt.Errorf("%w: time64 unit %s", ErrUnsupportedType, dt.Unit)
		}
		return NewType(TypeTime), nil
	case *arrow.TimestampType:
		if dt.Unit != arrow.Microsecond {
			return nil, fmt.Errorf("%w: timestamp unit %s", ErrUnsupportedType, dt.Unit)
		}
		if dt.TimeZone != "" {
			return NewType(TypeTimestamptz), nil
		}
		return NewType(TypeTimestamp), nil
	case *arrow.MonthDayNanoIntervalType:
		return NewType(TypeInterval), nil
	case *arrow.FixedSizeBinaryType:
		if dt.ByteWidth != 16 {
			return nil, fmt.Errorf("%w: fixed size binary width %d", ErrUnsupportedType, dt.ByteWidth)
		}
		return NewType(TypeUUID), nil
	case *arrow.ListType:
		elem, err := typeForArrow(dt.Elem())
		if err != nil {
			return nil, err
		}
		return elem.Array(), nil
	case *arrow.StructType:
		fields := make([]TypeField, dt.NumFields())
		for i, f := range dt.Fields() {
			child, err := typeForArrow(f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			fields[i] = TypeField{Name: f.Name, Type: child}
		}
		return NewRecordType(fields...), nil
	default:
		return nil, fmt.Errorf("%w: Arrow type %s", ErrUnsupportedType, dt)
	}
}

// TypeForSchema derives the root Record descriptor for an Arrow schema.
func TypeForSchema(schema *arrow.Schema) (*Type, error) {
	fields := make([]TypeField, schema.NumFields())
	for i, f := range schema.Fields() {
		t, err := typeForArrow(f.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		fields[i] = TypeField{Name: f.Name, Type: t}
	}
	return NewRecordType(fields...), nil
}

var oidTypeIDs = func() map[uint32]TypeID {
	m := make(map[uint32]TypeID, len(typeIDOIDs))
	for id, oid := range typeIDOIDs {
		m[oid] = id
	}
	return m
}()

// TypeForOID returns the descriptor for a PostgreSQL type OID, including the
// known array OIDs. Used when the column types come from query metadata
// rather than from a caller-built descriptor.
func TypeForOID(oid uint32) (*Type, error) {
	if id, ok := oidTypeIDs[oid]; ok {
		return NewType(id), nil
	}
	for elemOID, arrOID := range arrayOIDs {
		if arrOID != oid {
			continue
		}
		elem, err := TypeForOID(elemOID)
		if err != nil {
			return nil, err
		}
		return elem.Array(), nil
	}
	return nil, fmt.Errorf("%w: OID %d", ErrUnsupportedType, oid)
}

// ColumnInfo represents PostgreSQL column metadata for Arrow schema generation
type ColumnInfo struct {
	Name string
	OID  uint32
}

// TypeForColumns builds the root Record descriptor from column metadata.
func TypeForColumns(columns []ColumnInfo) (*Type, error) {
	fields := make([]TypeField, len(columns))
	for i, col := range columns {
		t, err := TypeForOID(col.OID)
		if err != nil {
			return nil, &SchemaError{Columns: columns, Err: err}
		}
		fields[i] = TypeField{Name: col.Name, Type: t}
	}
	return NewRecordType(fields...), nil
}
