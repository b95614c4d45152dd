package common

const (
	// size of a heap file block in byte
	BlockSize = 4096
	// catalog block id
	CatalogBlockID = 0
	// bytes of a field name in the catalog block
	FieldNameSize = 10
	// bytes of the record timestamp
	TimestampSize = 10
	// invalid transaction id. operations carrying it are not logged
	InvalidTxnID = 0
	// invalid log sequence number
	InvalidLSN = -1
	// name of the write ahead log file inside the data directory
	LogFileName = "transaction.log"
	// suffix of heap files
	TableFileSuffix = ".dat"
	// timestamp layout of records
	TimestampLayout = "2006-01-02"
	// timestamp written by forced inserts during recovery
	RecoveryTimestamp = "1970-01-01"
	// default data directory of the CLI
	DefaultDataDir = "."

	DefaultLogKinds = INFO | WARN | ERROR | FATAL
)

// Config holds the settings of one database instance
type Config struct {
	// directory holding the heap files and the log file
	DataDir string
	// log file name relative to DataDir
	LogFileName string
	// keep every file in memory (memfile backed)
	UseVirtualStorage bool
	// mask for ShPrintf
	LogKinds LogLevel
}

func NewConfig() *Config {
	return &Config{
		DataDir:           DefaultDataDir,
		LogFileName:       LogFileName,
		UseVirtualStorage: false,
		LogKinds:          DefaultLogKinds,
	}
}
