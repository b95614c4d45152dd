package common

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// MetricsRegistry is private to the process so tests and the CLI can read
// the counters without touching the global default registry.
var MetricsRegistry = prometheus.NewRegistry()

var (
	WALRecordsTotal = promauto.With(MetricsRegistry).NewCounterVec(prometheus.CounterOpts{
		Name: "minirel_wal_records_total",
		Help: "Log records appended to the write ahead log.",
	}, []string{"type"})
	WALBytesTotal = promauto.With(MetricsRegistry).NewCounter(prometheus.CounterOpts{
		Name: "minirel_wal_bytes_total",
		Help: "Bytes appended to the write ahead log.",
	})
	WALSyncsTotal = promauto.With(MetricsRegistry).NewCounter(prometheus.CounterOpts{
		Name: "minirel_wal_syncs_total",
		Help: "fsync calls issued on the write ahead log.",
	})
	HeapWritesTotal = promauto.With(MetricsRegistry).NewCounterVec(prometheus.CounterOpts{
		Name: "minirel_heap_writes_total",
		Help: "Synced writes to heap files.",
	}, []string{"kind"})
	RecoveryRedoTotal = promauto.With(MetricsRegistry).NewCounter(prometheus.CounterOpts{
		Name: "minirel_recovery_redo_total",
		Help: "Log records re-applied by the redo phase.",
	})
	RecoveryUndoTotal = promauto.With(MetricsRegistry).NewCounter(prometheus.CounterOpts{
		Name: "minirel_recovery_undo_total",
		Help: "Log records reverted by the undo phase.",
	})
	RecoveryErrorsTotal = promauto.With(MetricsRegistry).NewCounter(prometheus.CounterOpts{
		Name: "minirel_recovery_errors_total",
		Help: "Forced apply failures reported during recovery.",
	})
)

// MetricSamples flattens the registry into `name{label="value"}` keys
func MetricSamples() (map[string]float64, error) {
	families, err := MetricsRegistry.Gather()
	if err != nil {
		return nil, err
	}
	ret := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			if labels := metric.GetLabel(); len(labels) > 0 {
				parts := make([]string, 0, len(labels))
				for _, label := range labels {
					parts = append(parts, fmt.Sprintf("%s=%q", label.GetName(), label.GetValue()))
				}
				key += "{" + strings.Join(parts, ",") + "}"
			}
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				ret[key] = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				ret[key] = metric.GetGauge().GetValue()
			}
		}
	}
	return ret, nil
}
