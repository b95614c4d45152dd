package tuple

import (
	"strings"

	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/storage/page"
	"github.com/minirel/MinirelDB/types"
)

const ErrFieldCountMismatch = errors.Error("number of values does not match the number of fields")
const ErrValueTooLong = errors.Error("value does not fit the field length")
const ErrContentSize = errors.Error("record content has an unexpected size")

// Tuple is the decoded form of one record content
type Tuple struct {
	rid    *page.RID
	values []types.Value
}

func NewTuple(rid *page.RID, values []types.Value) *Tuple {
	return &Tuple{rid, values}
}

// NewTupleFromContent decodes the fixed width content of a record
func NewTupleFromContent(rid *page.RID, content []byte, fields []page.FieldDef) (*Tuple, error) {
	size := 0
	for _, field := range fields {
		size += int(field.Length)
	}
	if len(content) != size {
		return nil, errors.Wrapf(ErrContentSize, "got %d bytes, want %d", len(content), size)
	}

	values := make([]types.Value, 0, len(fields))
	offset := 0
	for _, field := range fields {
		text := string(content[offset : offset+int(field.Length)])
		value, err := types.ParseValue(field.Type.RuntimeType(), text)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", field.Name)
		}
		values = append(values, value)
		offset += int(field.Length)
	}
	return &Tuple{rid, values}, nil
}

// EncodeContent validates textual values against fields and renders the
// fixed width, space padded content of a record. every failure is a
// validation failure.
func EncodeContent(values []string, fields []page.FieldDef) ([]byte, *Tuple, error) {
	if len(values) != len(fields) {
		return nil, nil, errors.Validation(errors.Wrapf(ErrFieldCountMismatch, "got %d values for %d fields", len(values), len(fields)))
	}

	var sb strings.Builder
	parsed := make([]types.Value, 0, len(fields))
	for i, field := range fields {
		text := strings.TrimSpace(values[i])
		value, err := types.ParseValue(field.Type.RuntimeType(), text)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "field %s", field.Name)
		}
		fixed, ok := value.ToFixedWidth(int(field.Length))
		if !ok {
			return nil, nil, errors.Validation(errors.Wrapf(ErrValueTooLong, "field %s accepts %d bytes, got %q", field.Name, field.Length, text))
		}
		sb.WriteString(fixed)
		parsed = append(parsed, value)
	}
	return []byte(sb.String()), &Tuple{nil, parsed}, nil
}

// ParsePreImage decodes the comma joined form produced by String
func ParsePreImage(text string, fields []page.FieldDef) (*Tuple, error) {
	parts := strings.Split(text, ",")
	if len(parts) != len(fields) {
		return nil, errors.Wrapf(ErrFieldCountMismatch, "pre-image %q has %d parts for %d fields", text, len(parts), len(fields))
	}
	values := make([]types.Value, 0, len(fields))
	for i, field := range fields {
		value, err := types.ParseValue(field.Type.RuntimeType(), parts[i])
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", field.Name)
		}
		values = append(values, value)
	}
	return &Tuple{nil, values}, nil
}

func (t *Tuple) GetRID() *page.RID {
	return t.rid
}

func (t *Tuple) SetRID(rid *page.RID) {
	t.rid = rid
}

func (t *Tuple) GetValue(colIndex int) types.Value {
	return t.values[colIndex]
}

func (t *Tuple) Values() []types.Value {
	ret := make([]types.Value, len(t.values))
	copy(ret, t.values)
	return ret
}

func (t *Tuple) Len() int {
	return len(t.values)
}

// Strings returns the textual form of every value
func (t *Tuple) Strings() []string {
	ret := make([]string, 0, len(t.values))
	for _, value := range t.values {
		ret = append(ret, value.ToString())
	}
	return ret
}

// String is the comma joined textual form, used as the pre-image of DELETE log records
func (t *Tuple) String() string {
	return strings.Join(t.Strings(), ",")
}
