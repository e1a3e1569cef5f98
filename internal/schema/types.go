// Package schema describes tabular column layouts and maps file-inferred
// column types onto ClickHouse column types.
package schema

import "strings"

// Type is a column type inferred from flat-file data or declared by the
// database.
type Type int

const (
	TypeText Type = iota
	TypeInt64
	TypeInt32
	TypeFloat64
	TypeFloat32
	TypeBool
	TypeTimestamp
)

func (t Type) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeInt32:
		return "int32"
	case TypeFloat64:
		return "float64"
	case TypeFloat32:
		return "float32"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// Column is a single named, typed column.
type Column struct {
	Name     string
	Type     Type
	Nullable bool
}

// ClickHouseType returns the DDL type for the column. Nullable non-text
// columns are wrapped in Nullable(...); text columns store empty strings.
func (c Column) ClickHouseType() string {
	base := ClickHouseType(c.Type)
	if c.Nullable && base != "String" {
		return "Nullable(" + base + ")"
	}
	return base
}

// Schema is an ordered column list.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a column by case-sensitive name.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// String renders the schema as "name Type, ..." for logging.
func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.Name + " " + c.ClickHouseType()
	}
	return strings.Join(parts, ", ")
}
