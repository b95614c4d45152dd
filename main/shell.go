package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/minirel"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "interactive SQL shell",
	Long: `Read SQL statements terminated by ';' and run them in one session.
Lines starting with '.' are shell commands: .tables, .schema <table>,
.stats and .quit.`,
	Args: cobra.NoArgs,
	RunE: withDB(func(db *minirel.MinirelDB, args []string) error {
		return runShell(db, os.Stdin, os.Stdout)
	}),
}

// runShell reads statements from in until EOF or .quit. statement errors
// are printed and the loop goes on.
func runShell(db *minirel.MinirelDB, in io.Reader, out io.Writer) error {
	session := db.NewSession()
	scanner := bufio.NewScanner(in)
	var pending strings.Builder

	prompt := func() {
		switch {
		case pending.Len() > 0:
			fmt.Fprint(out, "   ...> ")
		case session.InTransaction():
			fmt.Fprintf(out, "minirel(txn %d)> ", session.GetTxnId())
		default:
			fmt.Fprint(out, "minirel> ")
		}
	}

	for prompt(); scanner.Scan(); prompt() {
		line := strings.TrimSpace(scanner.Text())
		if pending.Len() == 0 && strings.HasPrefix(line, ".") {
			quit, err := runDotCommand(db, line, out)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				break
			}
			continue
		}
		if line == "" {
			continue
		}
		pending.WriteString(line)
		pending.WriteString("\n")
		if !strings.HasSuffix(line, ";") {
			continue
		}

		results, err := session.ExecuteSQL(pending.String())
		pending.Reset()
		for _, result := range results {
			printResult(result, out)
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	if session.InTransaction() {
		fmt.Fprintf(out, "txn %d left open; it is rolled back when the database is next opened\n", session.GetTxnId())
	}
	return scanner.Err()
}

func runDotCommand(db *minirel.MinirelDB, line string, out io.Writer) (bool, error) {
	words := strings.Fields(line)
	switch words[0] {
	case ".quit", ".exit":
		return true, nil
	case ".tables":
		return false, printTables(db, out)
	case ".stats":
		return false, printStats(out)
	case ".schema":
		if len(words) != 2 {
			return false, errors.New("usage: .schema <table>")
		}
		ps, err := db.OpenTable(words[1])
		if err != nil {
			return false, err
		}
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Field", "Type", "Length"})
		table.SetAutoFormatHeaders(false)
		for _, field := range ps.GetFieldList() {
			table.Append([]string{strings.TrimSpace(field.Name), field.Type.String(), fmt.Sprint(field.Length)})
		}
		table.Render()
		return false, nil
	}
	return false, errors.Newf("unknown command %s", words[0])
}

func printResult(result *minirel.ResultSet, out io.Writer) {
	if result.Columns != nil {
		table := tablewriter.NewWriter(out)
		table.SetHeader(result.Columns)
		table.SetAutoFormatHeaders(false)
		for _, row := range result.Rows {
			cells := make([]string, 0, len(row))
			for _, val := range row {
				cells = append(cells, val.ToString())
			}
			table.Append(cells)
		}
		table.Render()
	}
	fmt.Fprintln(out, result.Message)
}
