package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal   = "github.requests.total"
	metricRequestDuration = "github.request.duration.seconds"
	metricRotationsTotal  = "credential.rotations.total"
	metricCacheTotal      = "snapshot.cache.total"
	metricPagesTotal      = "search.pages.total"
	metricWindowsTotal    = "search.windows.total"
	metricCommitsTotal    = "commits.total"
	metricSamplesTotal    = "samples.total"
	metricSkipsTotal      = "files.skipped.total"
	metricChangedLines    = "sample.changed.lines"

	attrEndpoint = "endpoint"
	attrOutcome  = "outcome"
	attrWrapped  = "wrapped"
	attrResult   = "result"
	attrReason   = "reason"
)

// requestBucketBoundaries covers fast API answers to slow raw downloads.
var requestBucketBoundaries = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// changedLineBoundaries buckets the size of the fix in changed lines.
var changedLineBoundaries = []float64{1, 2, 5, 10, 20, 50, 100, 250, 500}

// HarvestMetrics holds OTel instruments for a collection run.
// Every method is safe to call on a nil receiver (no-op).
type HarvestMetrics struct {
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	rotations    metric.Int64Counter
	cache        metric.Int64Counter
	pages        metric.Int64Counter
	windows      metric.Int64Counter
	commits      metric.Int64Counter
	samples      metric.Int64Counter
	skips        metric.Int64Counter
	changedLines metric.Float64Histogram
}

// NewHarvestMetrics creates harvest metric instruments from the given meter.
func NewHarvestMetrics(mt metric.Meter) (*HarvestMetrics, error) {
	b := newMetricBuilder(mt)

	hm := &HarvestMetrics{
		requests:     b.counter(metricRequestsTotal, "GitHub requests by endpoint and outcome", "{request}"),
		duration:     b.histogram(metricRequestDuration, "GitHub request duration in seconds", "s", requestBucketBoundaries...),
		rotations:    b.counter(metricRotationsTotal, "Credential rotations", "{rotation}"),
		cache:        b.counter(metricCacheTotal, "Snapshot cache lookups by result", "{lookup}"),
		pages:        b.counter(metricPagesTotal, "Search pages processed", "{page}"),
		windows:      b.counter(metricWindowsTotal, "Date windows exhausted", "{window}"),
		commits:      b.counter(metricCommitsTotal, "Commits examined", "{commit}"),
		samples:      b.counter(metricSamplesTotal, "Training pairs written", "{sample}"),
		skips:        b.counter(metricSkipsTotal, "Files skipped by reason", "{file}"),
		changedLines: b.histogram(metricChangedLines, "Changed lines per written pair", "{line}", changedLineBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return hm, nil
}

// RecordRequest records one request attempt.
func (hm *HarvestMetrics) RecordRequest(ctx context.Context, endpoint, outcome string, d time.Duration) {
	if hm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrEndpoint, endpoint),
		attribute.String(attrOutcome, outcome),
	)

	hm.requests.Add(ctx, 1, attrs)
	hm.duration.Record(ctx, d.Seconds(), attrs)
}

// RecordRotation records a credential switch; wrapped marks a full cycle.
func (hm *HarvestMetrics) RecordRotation(ctx context.Context, wrapped bool) {
	if hm == nil {
		return
	}

	hm.rotations.Add(ctx, 1, metric.WithAttributes(attribute.String(attrWrapped, strconv.FormatBool(wrapped))))
}

// RecordCache records a snapshot cache lookup.
func (hm *HarvestMetrics) RecordCache(ctx context.Context, hit bool) {
	if hm == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	hm.cache.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordPage records a processed search page.
func (hm *HarvestMetrics) RecordPage(ctx context.Context) {
	if hm == nil {
		return
	}

	hm.pages.Add(ctx, 1)
}

// RecordWindow records an exhausted date window.
func (hm *HarvestMetrics) RecordWindow(ctx context.Context) {
	if hm == nil {
		return
	}

	hm.windows.Add(ctx, 1)
}

// RecordCommit records an examined commit.
func (hm *HarvestMetrics) RecordCommit(ctx context.Context) {
	if hm == nil {
		return
	}

	hm.commits.Add(ctx, 1)
}

// RecordSample records a written pair and the size of its fix.
func (hm *HarvestMetrics) RecordSample(ctx context.Context, changedLines int) {
	if hm == nil {
		return
	}

	hm.samples.Add(ctx, 1)
	hm.changedLines.Record(ctx, float64(changedLines))
}

// RecordSkip records a skipped file.
func (hm *HarvestMetrics) RecordSkip(ctx context.Context, reason string) {
	if hm == nil {
		return
	}

	hm.skips.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}
