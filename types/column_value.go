package types

import (
	"strconv"
	"strings"

	"github.com/minirel/MinirelDB/errors"
)

const ErrValueParse = errors.Error("value can not be parsed as the field type")

// A value is an class that represents a view over a field of a record.
// All values have a type and comparison functions.
type Value struct {
	valueType TypeID
	integer   int64
	boolean   bool
	varchar   string
}

func NewInteger(value int64) Value {
	return Value{valueType: Integer, integer: value}
}

func NewBoolean(value bool) Value {
	return Value{valueType: Boolean, boolean: value}
}

func NewVarchar(value string) Value {
	return Value{valueType: Varchar, varchar: value}
}

// ParseValue converts the textual form of a value into a Value of typeID.
// surrounding spaces are ignored.
func ParseValue(typeID TypeID, text string) (Value, error) {
	text = strings.TrimSpace(text)
	switch typeID {
	case Integer:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, errors.Validation(errors.Wrapf(ErrValueParse, "%q is not an int", text))
		}
		return NewInteger(v), nil
	case Boolean:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, errors.Validation(errors.Wrapf(ErrValueParse, "%q is not a bool", text))
		}
		return NewBoolean(v), nil
	case Varchar:
		return NewVarchar(text), nil
	}
	return Value{}, errors.Validation(errors.Wrapf(ErrValueParse, "invalid type %d", typeID))
}

func (v Value) ValueType() TypeID {
	return v.valueType
}

func (v Value) ToInteger() int64 {
	return v.integer
}

func (v Value) ToBoolean() bool {
	return v.boolean
}

func (v Value) ToVarchar() string {
	return v.varchar
}

func (v Value) CompareEquals(right Value) bool {
	if v.valueType != right.valueType {
		return false
	}
	switch v.valueType {
	case Integer:
		return v.integer == right.integer
	case Boolean:
		return v.boolean == right.boolean
	case Varchar:
		return v.varchar == right.varchar
	}
	return false
}

func (v Value) ToString() string {
	switch v.valueType {
	case Integer:
		return strconv.FormatInt(v.integer, 10)
	case Boolean:
		return strconv.FormatBool(v.boolean)
	case Varchar:
		return v.varchar
	}
	return ""
}

// ToFixedWidth renders the value the way it is stored in a record content:
// right aligned and padded with spaces up to width.
// ok is false when the textual form does not fit.
func (v Value) ToFixedWidth(width int) (ret string, ok bool) {
	text := v.ToString()
	if v.valueType == Boolean && width < len(text) {
		if v.boolean {
			text = "1"
		} else {
			text = "0"
		}
	}
	if len(text) > width {
		return "", false
	}
	return strings.Repeat(" ", width-len(text)) + text, true
}
