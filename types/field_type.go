package types

// FieldType is the type code stored for a field in the catalog block
type FieldType int32

const (
	Str    FieldType = 0
	VarStr FieldType = 1
	Int    FieldType = 2
	Bool   FieldType = 3
)

func (t FieldType) IsValid() bool {
	return t >= Str && t <= Bool
}

// RuntimeType returns the type values of a field of this type take in memory
func (t FieldType) RuntimeType() TypeID {
	switch t {
	case Str, VarStr:
		return Varchar
	case Int:
		return Integer
	case Bool:
		return Boolean
	}
	return Invalid
}

func (t FieldType) String() string {
	switch t {
	case Str:
		return "str"
	case VarStr:
		return "varstr"
	case Int:
		return "int"
	case Bool:
		return "bool"
	}
	return "unknown"
}

// ParseFieldType accepts the names printed by String and the numeric codes
func ParseFieldType(name string) (FieldType, bool) {
	switch name {
	case "str", "0":
		return Str, true
	case "varstr", "1":
		return VarStr, true
	case "int", "2":
		return Int, true
	case "bool", "3":
		return Bool, true
	}
	return Str, false
}
