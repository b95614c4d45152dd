package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/minirel"
)

var (
	dataDir    string
	logKinds   string
	useVirtual bool
)

var rootCmd = &cobra.Command{
	Use:   "minirel [command] (flags)",
	Short: "single directory heap file database with write ahead logging",
	Long: `Every command opens the data directory first. Opening replays the
transaction log: committed changes are redone and transactions that never
finished are rolled back before the command runs.`,
	SilenceUsage: true,
}

// openDB opens the data directory selected by the global flags, running
// recovery on the way
func openDB() (*minirel.MinirelDB, error) {
	cfg := common.NewConfig()
	cfg.DataDir = dataDir
	cfg.UseVirtualStorage = useVirtual
	kinds, err := common.ParseLogKinds(logKinds)
	if err != nil {
		return nil, err
	}
	cfg.LogKinds = kinds

	db, err := minirel.NewMinirelDB(cfg)
	if err != nil {
		return nil, err
	}
	report := db.GetRecoveryReport()
	if len(report.UndoneTxns) > 0 || len(report.Errors) > 0 || report.TruncatedBytes > 0 {
		common.ShPrintf(common.INFO, "recovery: %d txns rolled back, %d errors, %d torn log bytes dropped\n",
			len(report.UndoneTxns), len(report.Errors), report.TruncatedBytes)
	}
	return db, nil
}

// withDB runs fn on an opened database and shuts it down afterwards
func withDB(fn func(db *minirel.MinirelDB, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer func() {
			if serr := db.Shutdown(); err == nil {
				err = serr
			}
		}()
		return fn(db, args)
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n", r)
			common.RuntimeStack()
			os.Exit(2)
		}
	}()

	cobra.EnableCommandSorting = false
	rootCmd.PersistentFlags().StringVarP(
		&dataDir, "data-dir", "d", common.DefaultDataDir, "directory holding the heap files and transaction.log")
	rootCmd.PersistentFlags().StringVar(
		&logKinds, "log-kinds", "info,warn,error,fatal",
		"comma separated log kinds: detail, debug, call, debugging, info, warn, error, fatal, recovery or none")
	rootCmd.PersistentFlags().BoolVar(
		&useVirtual, "virtual", false, "keep every file in memory; nothing survives the process")

	createCmd.Flags().StringSliceVarP(
		&createFields, "field", "f", nil, "field definition name:type:length, repeatable; prompts when omitted")

	rootCmd.AddCommand(
		shellCmd,
		createCmd,
		insertCmd,
		deleteCmd,
		showCmd,
		dropCmd,
		tablesCmd,
		logdumpCmd,
		recoverCmd,
		digestCmd,
		statsCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
