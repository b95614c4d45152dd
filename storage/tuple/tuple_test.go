package tuple

import (
	"testing"

	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/storage/page"
	testingpkg "github.com/minirel/MinirelDB/testing/testing_assert"
	"github.com/minirel/MinirelDB/types"
)

func fields() []page.FieldDef {
	return []page.FieldDef{
		page.NewFieldDef("name", types.VarStr, 8),
		page.NewFieldDef("age", types.Int, 3),
		page.NewFieldDef("member", types.Bool, 5),
	}
}

func TestEncodeAndDecodeContent(t *testing.T) {
	content, encoded, err := EncodeContent([]string{"alice", "30", "true"}, fields())
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, "   alice 30 true", string(content))
	testingpkg.Equals(t, "alice,30,true", encoded.String())

	rid := page.NewRID(1, 0)
	decoded, err := NewTupleFromContent(&rid, content, fields())
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, 3, decoded.Len())
	testingpkg.Equals(t, "alice", decoded.GetValue(0).ToVarchar())
	testingpkg.Equals(t, int64(30), decoded.GetValue(1).ToInteger())
	testingpkg.SimpleAssert(t, decoded.GetValue(2).ToBoolean())
	testingpkg.Equals(t, &rid, decoded.GetRID())
}

func TestEncodeContentValidation(t *testing.T) {
	_, _, err := EncodeContent([]string{"alexandrina", "30", "true"}, fields())
	testingpkg.Assert(t, errors.Is(err, ErrValueTooLong), "expected ErrValueTooLong, got %v", err)
	testingpkg.SimpleAssert(t, errors.IsValidation(err))

	_, _, err = EncodeContent([]string{"bob", "thirty", "true"}, fields())
	testingpkg.Assert(t, errors.Is(err, types.ErrValueParse), "expected ErrValueParse, got %v", err)
	testingpkg.SimpleAssert(t, errors.IsValidation(err))

	_, _, err = EncodeContent([]string{"bob", "1000", "true"}, fields())
	testingpkg.Assert(t, errors.Is(err, ErrValueTooLong), "4 digit int in a 3 byte field, got %v", err)

	_, _, err = EncodeContent([]string{"bob", "1"}, fields())
	testingpkg.Assert(t, errors.Is(err, ErrFieldCountMismatch), "expected ErrFieldCountMismatch, got %v", err)
	testingpkg.SimpleAssert(t, errors.IsValidation(err))
}

func TestParsePreImage(t *testing.T) {
	restored, err := ParsePreImage("alice,30,false", fields())
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, []string{"alice", "30", "false"}, restored.Strings())

	_, err = ParsePreImage("a,lice,30,false", fields())
	testingpkg.Nok(t, err)
}
