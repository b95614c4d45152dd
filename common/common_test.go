package common

import (
	"bytes"
	"testing"

	testingpkg "github.com/minirel/MinirelDB/testing/testing_assert"
)

func TestParseLogKinds(t *testing.T) {
	mask, err := ParseLogKinds("info, WARN,recovery")
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, INFO|WARN|RECOVERY, mask)

	mask, err = ParseLogKinds("info,none")
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, LogLevel(0), mask)

	_, err = ParseLogKinds("info,verbose")
	testingpkg.Nok(t, err)
}

func TestShPrintfHonorsMask(t *testing.T) {
	saved, savedOutput := ActiveLogKindSetting, LogOutput
	defer func() { ActiveLogKindSetting, LogOutput = saved, savedOutput }()

	var buf bytes.Buffer
	LogOutput = &buf
	ActiveLogKindSetting = WARN
	ShPrintf(INFO, "hidden\n")
	ShPrintf(WARN, "shown %d\n", 1)
	testingpkg.Equals(t, "shown 1\n", buf.String())
}

func TestMetricSamples(t *testing.T) {
	before, err := MetricSamples()
	testingpkg.Ok(t, err)

	WALRecordsTotal.WithLabelValues("BEGIN").Inc()
	HeapWritesTotal.WithLabelValues("slot").Add(2)
	RecoveryRedoTotal.Inc()

	after, err := MetricSamples()
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, before[`minirel_wal_records_total{type="BEGIN"}`]+1, after[`minirel_wal_records_total{type="BEGIN"}`])
	testingpkg.Equals(t, before[`minirel_heap_writes_total{kind="slot"}`]+2, after[`minirel_heap_writes_total{kind="slot"}`])
	testingpkg.Equals(t, before["minirel_recovery_redo_total"]+1, after["minirel_recovery_redo_total"])
}
