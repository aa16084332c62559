package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/repairharvest/internal/observability"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestHarvestMetrics_Records(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	hm, err := observability.NewHarvestMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()

	hm.RecordRequest(ctx, "search", "ok", 120*time.Millisecond)
	hm.RecordRequest(ctx, "raw", "empty", 10*time.Millisecond)
	hm.RecordRotation(ctx, false)
	hm.RecordRotation(ctx, true)
	hm.RecordCache(ctx, true)
	hm.RecordPage(ctx)
	hm.RecordWindow(ctx)
	hm.RecordCommit(ctx)
	hm.RecordSample(ctx, 4)
	hm.RecordSkip(ctx, "extension")
	hm.RecordSkip(ctx, "binary")

	got := collect(t, reader)

	assert.Equal(t, int64(2), sumValue(t, got["repairharvest.github.requests.total"]))
	assert.Equal(t, int64(2), sumValue(t, got["repairharvest.credential.rotations.total"]))
	assert.Equal(t, int64(1), sumValue(t, got["repairharvest.snapshot.cache.total"]))
	assert.Equal(t, int64(1), sumValue(t, got["repairharvest.search.pages.total"]))
	assert.Equal(t, int64(1), sumValue(t, got["repairharvest.search.windows.total"]))
	assert.Equal(t, int64(1), sumValue(t, got["repairharvest.commits.total"]))
	assert.Equal(t, int64(1), sumValue(t, got["repairharvest.samples.total"]))
	assert.Equal(t, int64(2), sumValue(t, got["repairharvest.files.skipped.total"]))

	hist, ok := got["repairharvest.sample.changed.lines"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestHarvestMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var hm *observability.HarvestMetrics

	ctx := context.Background()

	assert.NotPanics(t, func() {
		hm.RecordRequest(ctx, "search", "ok", time.Second)
		hm.RecordRotation(ctx, true)
		hm.RecordCache(ctx, false)
		hm.RecordPage(ctx)
		hm.RecordWindow(ctx)
		hm.RecordCommit(ctx)
		hm.RecordSample(ctx, 1)
		hm.RecordSkip(ctx, "binary")
	})
}
