package schema

// ClickHouseType maps an inferred column type to a ClickHouse type name.
// Unknown types fall back to String.
func ClickHouseType(t Type) string {
	switch t {
	case TypeInt64:
		return "Int64"
	case TypeInt32:
		return "Int32"
	case TypeFloat64:
		return "Float64"
	case TypeFloat32:
		return "Float32"
	case TypeText:
		return "String"
	case TypeBool:
		return "UInt8"
	case TypeTimestamp:
		return "DateTime"
	default:
		return "String"
	}
}
