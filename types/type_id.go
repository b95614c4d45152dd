package types

// TypeID is the runtime type of a Value
type TypeID int

const (
	Invalid TypeID = iota
	Boolean
	Integer
	Varchar
)

func (t TypeID) String() string {
	switch t {
	case Boolean:
		return "bool"
	case Integer:
		return "int"
	case Varchar:
		return "varchar"
	}
	return "invalid"
}
