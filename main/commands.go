package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/minirel"
	"github.com/minirel/MinirelDB/minirel/minirel_util"
	"github.com/minirel/MinirelDB/storage/access"
	"github.com/minirel/MinirelDB/storage/page"
	"github.com/minirel/MinirelDB/types"
)

const ErrMalformedFieldDef = errors.Error("field definition must look like name:type:length")

var createFields []string

var createCmd = &cobra.Command{
	Use:   "create <table>",
	Short: "create a table",
	Long: `Create a table. Fields are given with --field name:type:length or,
when no --field is given, prompted for one by one until an empty name.
Types are str, varstr, int and bool.`,
	Args: cobra.ExactArgs(1),
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		var fields []page.FieldDef
		var err error
		if len(createFields) > 0 {
			fields, err = parseFieldDefs(createFields)
		} else {
			fields, err = promptFieldDefs(os.Stdin, os.Stdout)
		}
		if err != nil {
			return err
		}
		if _, err = db.CreateTable(args[0], fields); err != nil {
			return err
		}
		fmt.Printf("table %s created\n", args[0])
		return nil
	}),
}

var insertCmd = &cobra.Command{
	Use:   "insert <table> <value>...",
	Short: "insert one record in a transaction of its own",
	Args:  cobra.MinimumNArgs(2),
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		return autoCommit(db, args[0], func(ps *access.PageStore, txn_id types.TxnID) error {
			_, err := ps.InsertRecord(args[1:], txn_id)
			if err == nil {
				fmt.Println("1 record inserted")
			}
			return err
		})
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <table> <field:keyword>",
	Short: "delete the first record whose field equals keyword",
	Args:  cobra.ExactArgs(2),
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		return autoCommit(db, args[0], func(ps *access.PageStore, txn_id types.TxnID) error {
			deleted, err := ps.DeleteRecord(args[1], txn_id)
			if err != nil {
				return err
			}
			if deleted {
				fmt.Println("1 record deleted")
			} else {
				fmt.Println("no matching record")
			}
			return nil
		})
	}),
}

var showCmd = &cobra.Command{
	Use:   "show <table>",
	Short: "print the live records of a table",
	Args:  cobra.ExactArgs(1),
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		ps, err := db.OpenTable(args[0])
		if err != nil {
			return err
		}
		ps.ShowTableData(os.Stdout)
		return nil
	}),
}

var dropCmd = &cobra.Command{
	Use:   "drop <table>",
	Short: "remove the heap file of a table",
	Args:  cobra.ExactArgs(1),
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		return db.DropTable(args[0])
	}),
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "list the tables of the data directory",
	Args:  cobra.NoArgs,
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		return printTables(db, os.Stdout)
	}),
}

var logdumpCmd = &cobra.Command{
	Use:   "logdump",
	Short: "print every record of the transaction log",
	Args:  cobra.NoArgs,
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		records, end, err := db.GetInstance().GetLogManager().GetLogRecords()
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"LSN", "Txn", "Type", "Table", "Block", "Slot", "Data"})
		for _, record := range records {
			row := []string{
				strconv.FormatInt(int64(record.GetLSN()), 10),
				strconv.FormatUint(uint64(record.GetTxnId()), 10),
				record.GetLogRecordType().String(),
				"", "", "", "",
			}
			if record.IsDataRecord() {
				row[3] = record.Table_name
				row[4] = strconv.FormatUint(uint64(record.Block_id), 10)
				row[5] = strconv.FormatUint(uint64(record.Slot_id), 10)
				row[6] = strconv.Quote(string(record.Record_data))
			}
			table.Append(row)
		}
		table.Render()
		fmt.Printf("%d records, %d bytes\n", len(records), end)
		return nil
	}),
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "run crash recovery and print what it did",
	Args:  cobra.NoArgs,
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		report := db.GetRecoveryReport()
		fmt.Printf("scanned records:   %d\n", report.ScannedRecords)
		fmt.Printf("committed txns:    %v\n", report.CommittedTxns)
		fmt.Printf("rolled back txns:  %v\n", report.UndoneTxns)
		fmt.Printf("redone operations: %d\n", report.RedoCount)
		fmt.Printf("undone operations: %d\n", report.UndoCount)
		fmt.Printf("greatest txn id:   %d\n", report.GreatestTxnID)
		fmt.Printf("torn tail bytes:   %d\n", report.TruncatedBytes)
		for _, err := range report.Errors {
			fmt.Printf("error: %v\n", err)
		}
		return nil
	}),
}

var digestCmd = &cobra.Command{
	Use:   "digest <table>",
	Short: "print a murmur3 digest of the heap file of a table",
	Args:  cobra.ExactArgs(1),
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		mi := db.GetInstance()
		digest, err := minirel_util.FileDigest(mi.GetFileSystem(), access.TableFileName(mi.GetDataDir(), args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", digest, args[0])
		return nil
	}),
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print the counters of this process",
	Long: `Print the write counters of this process. Counters start at zero, so
outside of the shell they only cover what opening the database did.`,
	Args: cobra.NoArgs,
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		return printStats(os.Stdout)
	}),
}

// autoCommit runs fn inside a transaction that commits when fn succeeds
// and aborts otherwise
func autoCommit(db *minirel.MinirelDB, table_name string, fn func(*access.PageStore, types.TxnID) error) error {
	ps, err := db.OpenTable(table_name)
	if err != nil {
		return err
	}
	txn_id, err := db.Begin()
	if err != nil {
		return err
	}
	if err = fn(ps, txn_id); err != nil {
		if _, aerr := db.Abort(txn_id); aerr != nil {
			return errors.CombineErrors(err, aerr)
		}
		return err
	}
	_, err = db.Commit(txn_id)
	return err
}

func parseFieldDef(def string) (page.FieldDef, error) {
	parts := strings.Split(def, ":")
	if len(parts) != 3 {
		return page.FieldDef{}, errors.Wrapf(ErrMalformedFieldDef, "%q", def)
	}
	fieldType, ok := types.ParseFieldType(strings.ToLower(strings.TrimSpace(parts[1])))
	if !ok {
		return page.FieldDef{}, errors.Wrapf(ErrMalformedFieldDef, "unknown type in %q", def)
	}
	length, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 32)
	if err != nil {
		return page.FieldDef{}, errors.Wrapf(ErrMalformedFieldDef, "bad length in %q", def)
	}
	return page.NewFieldDef(strings.TrimSpace(parts[0]), fieldType, int32(length)), nil
}

func parseFieldDefs(defs []string) ([]page.FieldDef, error) {
	ret := make([]page.FieldDef, 0, len(defs))
	for _, def := range defs {
		field, err := parseFieldDef(def)
		if err != nil {
			return nil, err
		}
		ret = append(ret, field)
	}
	return ret, nil
}

// promptFieldDefs asks for name, type and length until an empty name
func promptFieldDefs(in io.Reader, out io.Writer) ([]page.FieldDef, error) {
	scanner := bufio.NewScanner(in)
	ask := func(prompt string) (string, bool) {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	ret := make([]page.FieldDef, 0)
	for {
		name, ok := ask("field name (empty to finish): ")
		if !ok || name == "" {
			break
		}
		typeName, ok := ask("type (str, varstr, int, bool): ")
		if !ok {
			break
		}
		length, ok := ask("length: ")
		if !ok {
			break
		}
		field, err := parseFieldDef(name + ":" + typeName + ":" + length)
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			continue
		}
		ret = append(ret, field)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func printTables(db *minirel.MinirelDB, w io.Writer) error {
	names, err := db.TableNames()
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Fields", "Data Blocks", "Live Records"})
	for _, name := range names {
		ps, err := db.OpenTable(name)
		if err != nil {
			// unreadable heap files are listed without details
			table.Append([]string{name, err.Error(), "", ""})
			continue
		}
		fields := make([]string, 0)
		for _, field := range ps.GetFieldList() {
			fields = append(fields, fmt.Sprintf("%s %s(%d)", strings.TrimSpace(field.Name), field.Type, field.Length))
		}
		table.Append([]string{
			name,
			strings.Join(fields, ", "),
			strconv.Itoa(int(ps.GetDataBlockCount())),
			strconv.Itoa(len(ps.GetLiveRecords())),
		})
	}
	table.Render()
	return nil
}

func printStats(w io.Writer) error {
	samples, err := common.MetricSamples()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(samples))
	for key := range samples {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAutoFormatHeaders(false)
	for _, key := range keys {
		table.Append([]string{key, strconv.FormatFloat(samples[key], 'f', -1, 64)})
	}
	table.Render()
	return nil
}
