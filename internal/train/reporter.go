package train

import (
	"sort"

	"go.uber.org/zap"
)

// Reporter forwards scalar training metrics to a structured logging sink at
// batch granularity instead of only at epoch end. It is a pure observer:
// it keeps a batch counter and makes no decisions.
type Reporter struct {
	log       *zap.Logger
	batchSize int
	batch     int
}

// NewReporter wraps a zap logger. batchSize is only used to derive the
// global step for epoch-end entries.
func NewReporter(log *zap.Logger, batchSize int) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{log: log, batchSize: batchSize}
}

// OnBatchEnd logs every scalar metric for the batch that just finished.
// The bookkeeping keys "batch" and "size" are skipped.
func (r *Reporter) OnBatchEnd(metrics map[string]float64) {
	r.batch++
	r.log.Info("batch", metricFields(metrics, zap.Int("batch", r.batch))...)
}

// OnEpochEnd logs epoch-level metrics with the global step derived from the
// batch size.
func (r *Reporter) OnEpochEnd(epoch int, metrics map[string]float64) {
	r.log.Info("epoch", metricFields(metrics,
		zap.Int("epoch", epoch),
		zap.Int("step", epoch*r.batchSize))...)
}

func metricFields(metrics map[string]float64, head ...zap.Field) []zap.Field {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		if name == "batch" || name == "size" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	fields := append([]zap.Field{}, head...)
	for _, name := range names {
		fields = append(fields, zap.Float64(name, metrics[name]))
	}
	return fields
}
