package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/minirel"
	"github.com/minirel/MinirelDB/recovery"
	"github.com/minirel/MinirelDB/storage/access"
	"github.com/minirel/MinirelDB/storage/disk"
	"github.com/minirel/MinirelDB/storage/page"
	testingpkg "github.com/minirel/MinirelDB/testing/testing_assert"
	"github.com/minirel/MinirelDB/types"
)

func newTestDB(t *testing.T) *minirel.MinirelDB {
	db, err := minirel.NewMinirelDBOnFileSystem(disk.NewVirtualFileSystem(), "/cli")
	testingpkg.Ok(t, err)
	t.Cleanup(func() { db.Shutdown() })
	return db
}

func TestParseFieldDef(t *testing.T) {
	field, err := parseFieldDef("name:varstr:10")
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, page.NewFieldDef("name", types.VarStr, 10), field)

	field, err = parseFieldDef(" age : INT : 4 ")
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, page.NewFieldDef("age", types.Int, 4), field)

	for _, bad := range []string{"name", "name:varstr", "name:float:4", "name:int:x", "a:int:1:2"} {
		_, err = parseFieldDef(bad)
		testingpkg.Assert(t, errors.Is(err, ErrMalformedFieldDef), "%q accepted", bad)
	}
}

func TestPromptFieldDefs(t *testing.T) {
	in := strings.NewReader("name\nvarstr\n10\nage\nfloat\n4\nage\nint\n4\n\n")
	var out bytes.Buffer
	fields, err := promptFieldDefs(in, &out)
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, []page.FieldDef{
		page.NewFieldDef("name", types.VarStr, 10),
		page.NewFieldDef("age", types.Int, 4),
	}, fields)
	testingpkg.Assert(t, strings.Contains(out.String(), "unknown type"), "bad type not reported: %s", out.String())

	fields, err = promptFieldDefs(strings.NewReader(""), &out)
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, 0, len(fields))
}

func TestAutoCommit(t *testing.T) {
	db := newTestDB(t)
	_, err := db.CreateTable("users", []page.FieldDef{
		page.NewFieldDef("name", types.VarStr, 10),
		page.NewFieldDef("age", types.Int, 4),
	})
	testingpkg.Ok(t, err)

	insert := func(values ...string) error {
		return autoCommit(db, "users", func(ps *access.PageStore, txn_id types.TxnID) error {
			_, err := ps.InsertRecord(values, txn_id)
			return err
		})
	}
	testingpkg.Ok(t, insert("alice", "30"))
	testingpkg.Nok(t, insert("bob"))
	testingpkg.Nok(t, autoCommit(db, "nope", nil))

	records, _, err := db.GetInstance().GetLogManager().GetLogRecords()
	testingpkg.Ok(t, err)
	kinds := make([]recovery.LogRecordType, 0)
	for _, record := range records {
		kinds = append(kinds, record.GetLogRecordType())
	}
	testingpkg.Equals(t, []recovery.LogRecordType{
		recovery.BEGIN, recovery.INSERT, recovery.COMMIT,
		recovery.BEGIN, recovery.ABORT,
	}, kinds)
}

func TestShell(t *testing.T) {
	db := newTestDB(t)
	script := strings.Join([]string{
		"create table users (name varchar(10), age int);",
		"insert into users values ('alice', 30),",
		"  ('bob', 25);",
		"select name from users where age = 25;",
		"select * from missing;",
		".schema users",
		".tables",
		".bogus",
		"begin;",
		"delete from users where name = 'alice';",
		".quit",
		"select * from users;",
	}, "\n")

	var out bytes.Buffer
	testingpkg.Ok(t, runShell(db, strings.NewReader(script), &out))
	output := out.String()
	for _, want := range []string{
		"table users created",
		"2 row(s) inserted",
		"bob",
		"1 row(s)",
		"error: ",
		"varstr",
		"unknown command .bogus",
		"started",
		"1 row(s) deleted",
		"left open",
	} {
		testingpkg.Assert(t, strings.Contains(output, want), "%q missing from output:\n%s", want, output)
	}
	// nothing after .quit runs
	testingpkg.Equals(t, 1, strings.Count(output, "1 row(s)\n"))
	testingpkg.Equals(t, 1, len(db.GetInstance().GetTransactionManager().GetActiveTxns()))
}
