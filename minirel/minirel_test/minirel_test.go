package minirel_test

import (
	"testing"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/minirel"
	"github.com/minirel/MinirelDB/minirel/minirel_util"
	"github.com/minirel/MinirelDB/recovery"
	"github.com/minirel/MinirelDB/storage/access"
	"github.com/minirel/MinirelDB/storage/disk"
	"github.com/minirel/MinirelDB/storage/page"
	testingpkg "github.com/minirel/MinirelDB/testing/testing_assert"
	"github.com/minirel/MinirelDB/types"
)

const dataDir = "/data"

func openDB(t *testing.T, fs disk.FileSystem) *minirel.MinirelDB {
	db, err := minirel.NewMinirelDBOnFileSystem(fs, dataDir)
	testingpkg.Ok(t, err)
	return db
}

func exec(t *testing.T, session *minirel.Session, sqlStr string) *minirel.ResultSet {
	results, err := session.ExecuteSQL(sqlStr)
	testingpkg.Ok(t, err)
	testingpkg.Assert(t, len(results) > 0, "%s returned no result", sqlStr)
	return results[len(results)-1]
}

func rowsOf(result *minirel.ResultSet) [][]string {
	ret := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		vals := make([]string, 0, len(row))
		for _, val := range row {
			vals = append(vals, val.ToString())
		}
		ret = append(ret, vals)
	}
	return ret
}

func selectAll(t *testing.T, db *minirel.MinirelDB, table string) [][]string {
	return rowsOf(exec(t, db.NewSession(), "SELECT * FROM "+table))
}

func userFields() []page.FieldDef {
	return []page.FieldDef{
		page.NewFieldDef("name", types.VarStr, 10),
		page.NewFieldDef("age", types.Int, 4),
	}
}

func lastLogRecord(t *testing.T, fs disk.FileSystem) *recovery.LogRecord {
	log_manager, err := recovery.NewLogManager(fs, dataDir+"/"+common.LogFileName)
	testingpkg.Ok(t, err)
	defer log_manager.Close()
	records, _, err := log_manager.GetLogRecords()
	testingpkg.Ok(t, err)
	return records[len(records)-1]
}

func TestSQLSessionRoundTrip(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	db := openDB(t, fs)
	session := db.NewSession()

	exec(t, session, "CREATE TABLE name_age_list(name VARCHAR(10), age INT(4), active BOOL);")
	exec(t, session, "INSERT INTO name_age_list(name, age, active) VALUES ('suzuki', 20, TRUE), ('aoki', 22, FALSE);")
	exec(t, session, "INSERT INTO name_age_list(age, active, name) VALUES (25, TRUE, 'yamada');")
	exec(t, session, "INSERT INTO name_age_list VALUES ('kato', 18, FALSE);")

	result := exec(t, session, "SELECT name FROM name_age_list WHERE age = 22;")
	testingpkg.Equals(t, []string{"name"}, result.Columns)
	testingpkg.Equals(t, [][]string{{"aoki"}}, rowsOf(result))

	exec(t, session, "UPDATE name_age_list SET age = 23 WHERE name = 'aoki';")
	exec(t, session, "DELETE FROM name_age_list WHERE active = TRUE;")
	// only the first match is deleted; the updated row moved to the end
	result = exec(t, session, "SELECT name, age FROM name_age_list;")
	testingpkg.Equals(t, [][]string{{"yamada", "25"}, {"kato", "18"}, {"aoki", "23"}}, rowsOf(result))

	testingpkg.Ok(t, db.Shutdown())

	reopened := openDB(t, fs)
	defer reopened.Shutdown()
	testingpkg.Equals(t, 0, len(reopened.GetRecoveryReport().UndoneTxns))
	testingpkg.Equals(t, [][]string{{"yamada", "25", "true"}, {"kato", "18", "false"}, {"aoki", "23", "false"}},
		selectAll(t, reopened, "name_age_list"))
}

func TestSQLValidationFailures(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	db := openDB(t, fs)
	defer db.Shutdown()
	session := db.NewSession()
	exec(t, session, "CREATE TABLE users (name VARCHAR(10), age INT(4))")
	exec(t, session, "INSERT INTO users VALUES ('alice', 30)")

	for _, sqlStr := range []string{
		"CREATE TABLE users (x INT)",
		"INSERT INTO users VALUES ('bartholomew', 1)",
		"INSERT INTO users VALUES ('bob', 2), ('bob', 'old')",
		"INSERT INTO users (name) VALUES ('bob')",
		"INSERT INTO users (name, salary) VALUES ('bob', 1)",
		"INSERT INTO missing VALUES ('bob', 1)",
		"DELETE FROM users WHERE salary = 1",
		"UPDATE users SET age = 123456 WHERE name = 'alice'",
		"SELECT salary FROM users",
		"COMMIT",
		"ROLLBACK",
	} {
		_, err := session.ExecuteSQL(sqlStr)
		testingpkg.Assert(t, errors.IsValidation(err), "%s: expected a validation error, got %v", sqlStr, err)
	}
	// none of the rejected statements left a row behind
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, selectAll(t, db, "users"))
	testingpkg.Equals(t, 0, len(db.GetInstance().GetTransactionManager().GetActiveTxns()))

	exec(t, session, "BEGIN")
	_, err := session.ExecuteSQL("BEGIN")
	testingpkg.Assert(t, errors.Is(err, minirel.ErrTxnInProgress), "expected ErrTxnInProgress, got %v", err)
	exec(t, session, "COMMIT")
}

func TestCrashAfterCommit(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	db := openDB(t, fs)
	session := db.NewSession()
	exec(t, session, "CREATE TABLE users (name VARCHAR(10), age INT(4))")
	exec(t, session, "BEGIN; INSERT INTO users VALUES ('alice', 30); COMMIT;")
	db.CrashForTesting()

	reopened := openDB(t, fs)
	defer reopened.Shutdown()
	testingpkg.Equals(t, 1, len(reopened.GetRecoveryReport().CommittedTxns))
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, selectAll(t, reopened, "users"))
}

func TestRedoRestoresLostHeapWrites(t *testing.T) {
	base := disk.NewVirtualFileSystem()
	crashing := disk.NewCrashingFileSystem(base, common.TableFileSuffix, 1<<30)
	db := openDB(t, crashing)
	session := db.NewSession()
	exec(t, session, "CREATE TABLE users (name VARCHAR(10), age INT(4))")
	exec(t, session, "BEGIN")

	crashing.SetBudget(0)
	_, err := session.ExecuteSQL("INSERT INTO users VALUES ('alice', 30)")
	testingpkg.Assert(t, errors.Is(err, disk.ErrInjectedCrash), "expected ErrInjectedCrash, got %v", err)
	exec(t, session, "COMMIT")
	db.CrashForTesting()

	reopened := openDB(t, base)
	defer reopened.Shutdown()
	report := reopened.GetRecoveryReport()
	testingpkg.Equals(t, 1, report.RedoCount)
	testingpkg.Equals(t, 0, len(report.Errors))
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, selectAll(t, reopened, "users"))
}

func TestCrashBeforeCommit(t *testing.T) {
	base := disk.NewVirtualFileSystem()
	crashing := disk.NewCrashingFileSystem(base, common.TableFileSuffix, 1<<30)
	db := openDB(t, crashing)
	session := db.NewSession()
	exec(t, session, "CREATE TABLE users (name VARCHAR(10), age INT(4))")
	exec(t, session, "INSERT INTO users VALUES ('alice', 30)")

	exec(t, session, "BEGIN; INSERT INTO users VALUES ('bob', 25);")
	txn_id := session.GetTxnId()
	// the heap dies halfway through the next insert
	crashing.SetBudget(3)
	_, err := session.ExecuteSQL("INSERT INTO users VALUES ('carol', 41)")
	testingpkg.Assert(t, errors.Is(err, disk.ErrInjectedCrash), "expected ErrInjectedCrash, got %v", err)
	db.CrashForTesting()

	reopened := openDB(t, base)
	defer reopened.Shutdown()
	report := reopened.GetRecoveryReport()
	testingpkg.Equals(t, []types.TxnID{txn_id}, report.UndoneTxns)
	testingpkg.Equals(t, 0, len(report.Errors))
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, selectAll(t, reopened, "users"))

	last := lastLogRecord(t, base)
	testingpkg.Equals(t, recovery.ABORT, last.GetLogRecordType())
	testingpkg.Equals(t, txn_id, last.GetTxnId())

	// new ids never reuse the ones found in the log
	next, err := reopened.Begin()
	testingpkg.Ok(t, err)
	testingpkg.Assert(t, next > txn_id, "txn id %d reused after restart (last was %d)", next, txn_id)
}

func TestUncommittedDeleteIsUndone(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	db := openDB(t, fs)
	ps, err := db.CreateTable("users", userFields())
	testingpkg.Ok(t, err)

	t1, err := db.Begin()
	testingpkg.Ok(t, err)
	ok, err := ps.InsertRecord([]string{"alice", "30"}, t1)
	testingpkg.Ok(t, err)
	testingpkg.SimpleAssert(t, ok)
	_, err = db.Commit(t1)
	testingpkg.Ok(t, err)

	t2, err := db.Begin()
	testingpkg.Ok(t, err)
	ok, err = ps.DeleteRecord("name:alice", t2)
	testingpkg.Ok(t, err)
	testingpkg.SimpleAssert(t, ok)
	testingpkg.Equals(t, 0, len(ps.GetLiveRecords()))
	db.CrashForTesting()

	reopened := openDB(t, fs)
	defer reopened.Shutdown()
	testingpkg.Equals(t, []types.TxnID{t2}, reopened.GetRecoveryReport().UndoneTxns)
	restored, err := reopened.OpenTable("users")
	testingpkg.Ok(t, err)
	records := restored.GetLiveRecords()
	testingpkg.Equals(t, 1, len(records))
	testingpkg.Equals(t, []string{"alice", "30"}, records[0].Strings())

	last := lastLogRecord(t, fs)
	testingpkg.Equals(t, recovery.ABORT, last.GetLogRecordType())
	testingpkg.Equals(t, t2, last.GetTxnId())
}

func TestRecoveryIsIdempotent(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	db := openDB(t, fs)
	session := db.NewSession()
	exec(t, session, "CREATE TABLE users (name VARCHAR(10), age INT(4))")
	exec(t, session, "INSERT INTO users VALUES ('alice', 30), ('bob', 25)")
	exec(t, session, "BEGIN; DELETE FROM users WHERE name = 'bob'; INSERT INTO users VALUES ('carol', 41);")
	db.CrashForTesting()

	heap := access.TableFileName(dataDir, "users")
	first := openDB(t, fs)
	first.CrashForTesting()
	once, err := minirel_util.FileDigest(fs, heap)
	testingpkg.Ok(t, err)

	second := openDB(t, fs)
	testingpkg.Equals(t, 0, len(second.GetRecoveryReport().UndoneTxns))
	second.CrashForTesting()
	twice, err := minirel_util.FileDigest(fs, heap)
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, once, twice)

	last := openDB(t, fs)
	defer last.Shutdown()
	testingpkg.Equals(t, [][]string{{"alice", "30"}, {"bob", "25"}}, selectAll(t, last, "users"))
}

func TestDropTable(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	db := openDB(t, fs)
	session := db.NewSession()
	exec(t, session, "CREATE TABLE a (x INT); CREATE TABLE b (y CHAR(2));")
	exec(t, session, "INSERT INTO a VALUES (1)")

	names, err := db.TableNames()
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, []string{"a", "b"}, names)

	exec(t, session, "DROP TABLE a")
	names, _ = db.TableNames()
	testingpkg.Equals(t, []string{"b"}, names)
	_, err = db.OpenTable("a")
	testingpkg.Assert(t, errors.Is(err, access.ErrTableNotFound), "expected ErrTableNotFound, got %v", err)

	// the log still holds the insert into a, b never logged anything
	_, err = session.ExecuteSQL("CREATE TABLE a (x INT)")
	testingpkg.Assert(t, errors.Is(err, minirel.ErrTableNameInLog), "expected ErrTableNameInLog, got %v", err)
	testingpkg.SimpleAssert(t, errors.IsValidation(err))
	exec(t, session, "DROP TABLE b")
	exec(t, session, "CREATE TABLE b (y CHAR(2))")
	testingpkg.Ok(t, db.Shutdown())

	// the insert into the dropped table is reported, not applied
	reopened := openDB(t, fs)
	defer reopened.Shutdown()
	testingpkg.Equals(t, 1, len(reopened.GetRecoveryReport().Errors))
	names, _ = reopened.TableNames()
	testingpkg.Equals(t, []string{"b"}, names)
	_, err = reopened.CreateTable("a", []page.FieldDef{page.NewFieldDef("x", types.Int, 11)})
	testingpkg.Assert(t, errors.Is(err, minirel.ErrTableNameInLog), "expected ErrTableNameInLog, got %v", err)
}

func TestDroppedRowsStayDropped(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	db := openDB(t, fs)
	session := db.NewSession()
	exec(t, session, "CREATE TABLE users (name VARCHAR(10), age INT(4))")
	exec(t, session, "BEGIN; INSERT INTO users VALUES ('old1', 1), ('old2', 2); COMMIT;")
	exec(t, session, "DROP TABLE users")

	_, err := session.ExecuteSQL("CREATE TABLE users (name VARCHAR(10), age INT(4))")
	testingpkg.Nok(t, err)
	exec(t, session, "CREATE TABLE members (name VARCHAR(10), age INT(4))")
	exec(t, session, "INSERT INTO members VALUES ('new', 1)")
	testingpkg.Ok(t, db.Shutdown())

	reopened := openDB(t, fs)
	defer reopened.Shutdown()
	testingpkg.Equals(t, [][]string{{"new", "1"}}, selectAll(t, reopened, "members"))
	_, err = reopened.OpenTable("users")
	testingpkg.Assert(t, errors.Is(err, access.ErrTableNotFound), "expected ErrTableNotFound, got %v", err)
}

func TestMetricsCountLogAndHeapWrites(t *testing.T) {
	before, err := common.MetricSamples()
	testingpkg.Ok(t, err)

	db := openDB(t, disk.NewVirtualFileSystem())
	defer db.Shutdown()
	session := db.NewSession()
	exec(t, session, "CREATE TABLE users (name VARCHAR(10), age INT(4))")
	exec(t, session, "INSERT INTO users VALUES ('alice', 30)")

	after, err := common.MetricSamples()
	testingpkg.Ok(t, err)
	delta := func(key string) float64 { return after[key] - before[key] }
	testingpkg.Equals(t, 1.0, delta(`minirel_wal_records_total{type="BEGIN"}`))
	testingpkg.Equals(t, 1.0, delta(`minirel_wal_records_total{type="INSERT"}`))
	testingpkg.Equals(t, 1.0, delta(`minirel_wal_records_total{type="COMMIT"}`))
	testingpkg.Equals(t, 3.0, delta("minirel_wal_syncs_total"))
	testingpkg.Equals(t, 1.0, delta(`minirel_heap_writes_total{kind="record"}`))
}
