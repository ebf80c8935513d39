package types

// ColumnType is the declared scalar type of a result column.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt
	TypeFloat
)

// String returns the lowercase name of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	default:
		return "unknown"
	}
}

// ValueType reports the ColumnType of a runtime value. The second return
// is false for values outside the engine's scalar domain.
func ValueType(v interface{}) (ColumnType, bool) {
	switch v.(type) {
	case string:
		return TypeString, true
	case int64:
		return TypeInt, true
	case float64:
		return TypeFloat, true
	}
	return 0, false
}

// Matches reports whether a runtime value conforms to the declared type.
// NULL (nil) conforms to every type.
func (t ColumnType) Matches(v interface{}) bool {
	if v == nil {
		return true
	}
	vt, ok := ValueType(v)
	return ok && vt == t
}
