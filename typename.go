package pgcopy

import (
	"fmt"
	"strings"
)

var typeNames = map[string]TypeID{
	"bool":             TypeBool,
	"boolean":          TypeBool,
	"bytea":            TypeBytea,
	"char":             TypeChar,
	"name":             TypeName,
	"int8":             TypeInt8,
	"bigint":           TypeInt8,
	"int2":             TypeInt2,
	"smallint":         TypeInt2,
	"int4":             TypeInt4,
	"int":              TypeInt4,
	"integer":          TypeInt4,
	"text":             TypeText,
	"json":             TypeJSON,
	"float4":           TypeFloat4,
	"real":             TypeFloat4,
	"float8":           TypeFloat8,
	"double precision": TypeFloat8,
	"bpchar":           TypeBpchar,
	"varchar":          TypeVarchar,
	"date":             TypeDate,
	"time":             TypeTime,
	"timestamp":        TypeTimestamp,
	"timestamptz":      TypeTimestamptz,
	"interval":         TypeInterval,
	"numeric":          TypeNumeric,
	"decimal":          TypeNumeric,
	"uuid":             TypeUUID,
}

// ParseTypeName resolves a PostgreSQL type name such as "int4", "numeric" or
// "text[]" to its descriptor. Array syntax nests: "int4[][]" is an array of
// int4 arrays.
func ParseTypeName(name string) (*Type, error) {
	trimmed := strings.TrimSpace(strings.ToLower(name))
	dims := 0
	for strings.HasSuffix(trimmed, "[]") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "[]"))
		dims++
	}
	id, ok := typeNames[trimmed]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
	}
	t := NewType(id)
	for i := 0; i < dims; i++ {
		t = t.Array()
	}
	return t, nil
}

// ParseColumnTypes resolves a comma-separated list of type names, e.g.
// "int4, text, numeric[]", into a root record descriptor with columns named
// col0..colN.
func ParseColumnTypes(list string) (*Type, error) {
	parts := strings.Split(list, ",")
	fields := make([]TypeField, 0, len(parts))
	for i, part := range parts {
		t, err := ParseTypeName(part)
		if err != nil {
			return nil, err
		}
		fields = append(fields, TypeField{Name: fmt.Sprintf("col%d", i), Type: t})
	}
	return NewRecordType(fields...), nil
}
