package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

type LogLevel int32

const (
	DEBUG_INFO_DETAIL LogLevel = 1
	DEBUG_INFO        LogLevel = 2
	RDB_OP_FUNC_CALL  LogLevel = 4
	DEBUGGING         LogLevel = 8
	INFO              LogLevel = 16
	WARN              LogLevel = 32
	ERROR             LogLevel = 64
	FATAL             LogLevel = 128
	RECOVERY          LogLevel = 256
)

var logLevelNames = map[string]LogLevel{
	"detail":    DEBUG_INFO_DETAIL,
	"debug":     DEBUG_INFO,
	"call":      RDB_OP_FUNC_CALL,
	"debugging": DEBUGGING,
	"info":      INFO,
	"warn":      WARN,
	"error":     ERROR,
	"fatal":     FATAL,
	"recovery":  RECOVERY,
}

// ActiveLogKindSetting is the mask checked by ShPrintf
var ActiveLogKindSetting = DefaultLogKinds

// LogOutput is where ShPrintf writes. tests swap it to capture warnings.
var LogOutput io.Writer = os.Stdout

func ShPrintf(logLevel LogLevel, fmtStl string, a ...interface{}) {
	if logLevel&ActiveLogKindSetting > 0 {
		fmt.Fprintf(LogOutput, fmtStl, a...)
	}
}

// ParseLogKinds converts a comma separated list such as "info,warn,recovery"
// into a mask. "none" disables all output.
func ParseLogKinds(kinds string) (LogLevel, error) {
	var mask LogLevel
	for _, name := range strings.Split(kinds, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name == "none" {
			return 0, nil
		}
		level, ok := logLevelNames[name]
		if !ok {
			return 0, errors.Newf("unknown log kind %q", name)
		}
		mask |= level
	}
	return mask, nil
}
