package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// metricNamespace prefixes every harvest instrument name.
const metricNamespace = "repairharvest."

// metricBuilder creates namespaced instruments and keeps the first creation
// error so NewHarvestMetrics checks once at the end.
type metricBuilder struct {
	meter metric.Meter
	names map[string]bool
	err   error
}

var errDuplicateInstrument = errors.New("instrument declared twice")

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt, names: make(map[string]bool)}
}

// name returns the namespaced instrument name, flagging duplicates.
func (b *metricBuilder) name(short string) string {
	full := metricNamespace + short
	if b.names[full] {
		b.setErr(full, errDuplicateInstrument)
	}

	b.names[full] = true

	return full
}

func (b *metricBuilder) counter(short, desc, unit string) metric.Int64Counter {
	full := b.name(short)

	c, err := b.meter.Int64Counter(full, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(full, err)

	return c
}

// histogram uses explicit bucket bounds when given, the SDK defaults otherwise.
func (b *metricBuilder) histogram(short, desc, unit string, bounds ...float64) metric.Float64Histogram {
	full := b.name(short)

	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(full, opts...)
	b.setErr(full, err)

	return h
}

func (b *metricBuilder) setErr(name string, err error) {
	if err == nil || b.err != nil {
		return
	}

	b.err = fmt.Errorf("create metric %s: %w", name, err)
}
