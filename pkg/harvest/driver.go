package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/repairharvest/internal/observability"
	"github.com/Sumatoshi-tech/repairharvest/pkg/checkpoint"
	"github.com/Sumatoshi-tech/repairharvest/pkg/ghapi"
)

// Driver validation errors.
var (
	ErrNoKeywords  = errors.New("harvest: at least one keyword is required")
	ErrWindowWidth = errors.New("harvest: window width must be positive")
	ErrMaxPages    = errors.New("harvest: max pages must be positive")
)

// progressEvery is the sample interval between progress log lines.
const progressEvery = 100

// Searcher runs one page of a commit search.
type Searcher interface {
	SearchCommits(ctx context.Context, query string, page int) (ghapi.SearchPage, error)
}

// Window is an inclusive range of committer dates.
type Window struct {
	Start checkpoint.Day
	End   checkpoint.Day
}

// WindowFor returns the window of width days ending on end.
func WindowFor(end checkpoint.Day, width int) Window {
	return Window{Start: end.AddDays(-(width - 1)), End: end}
}

// String renders the window in search qualifier form, "start..end".
func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}

// DriverOptions configures a Driver.
type DriverOptions struct {
	Search   Searcher
	Pipeline *Pipeline
	Store    *checkpoint.Store

	Keywords   []string
	Language   string
	WindowDays int
	// MaxPages is the highest page fetched per window.
	MaxPages int
	// MaxSamples stops the run once this many rows were written.
	MaxSamples int
	// Oldest stops the run once a window ends before this day. Zero disables it.
	Oldest checkpoint.Day

	// Now returns the current time; nil means time.Now.
	Now func() time.Time

	Logger  *slog.Logger
	Metrics *observability.HarvestMetrics
	Tracer  trace.Tracer
}

// Summary reports what a run did.
type Summary struct {
	// Collected is the number of rows written.
	Collected int
	// Pages is the number of search pages fully processed.
	Pages int
	// Windows is the number of windows exhausted.
	Windows int
	// TargetReached is set when the run stopped at MaxSamples.
	TargetReached bool
	// State is the last persisted crawl state.
	State checkpoint.CrawlState
}

// Driver walks (keyword, window, page) states and feeds search hits to the pipeline.
type Driver struct {
	opts DriverOptions
}

// NewDriver validates opts and creates a driver.
func NewDriver(opts DriverOptions) (*Driver, error) {
	switch {
	case len(opts.Keywords) == 0:
		return nil, ErrNoKeywords
	case opts.WindowDays <= 0:
		return nil, ErrWindowWidth
	case opts.MaxPages <= 0:
		return nil, ErrMaxPages
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &Driver{opts: opts}, nil
}

// pageResult is how a page ended.
type pageResult int

const (
	// pageDone means every hit was processed.
	pageDone pageResult = iota
	// pageEmpty means the search returned nothing usable; the window is exhausted.
	pageEmpty
	// pageInterrupted means the target was reached before the last hit.
	pageInterrupted
)

// Run resumes from the checkpoint and collects until MaxSamples rows were
// written. The checkpoint is saved after every processed page and every
// window advance. Reaching the target is a clean stop; the returned error is
// a context, storage or checkpoint failure.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	o := d.opts

	state, err := o.Store.LoadOrDefault(checkpoint.Today(o.Now()))
	if err != nil {
		return Summary{}, fmt.Errorf("load checkpoint: %w", err)
	}

	summary := Summary{State: state}

	o.Logger.InfoContext(ctx, "collection started",
		"keyword_index", state.KeywordIndex, "date_end", state.DateEnd.String(), "page", state.Page,
		"target", o.MaxSamples)

	for summary.Collected < o.MaxSamples {
		window := WindowFor(state.DateEnd, o.WindowDays)

		if !o.Oldest.IsZero() && window.End.Before(o.Oldest) {
			o.Logger.InfoContext(ctx, "date range exhausted", "oldest", o.Oldest.String())

			break
		}

		keyword := state.Keyword(o.Keywords)
		query := ghapi.Query(keyword, o.Language, window.String())

		o.Logger.InfoContext(ctx, "searching window",
			"keyword", keyword, "window", window.String(), "page", state.Page)

		for state.Page <= o.MaxPages && summary.Collected < o.MaxSamples {
			ctxErr := ctx.Err()
			if ctxErr != nil {
				return summary, ctxErr
			}

			written, result, pageErr := d.runPage(ctx, query, keyword, window, state.Page, &summary)
			summary.Collected += written

			if pageErr != nil {
				return summary, pageErr
			}

			if result == pageEmpty {
				break
			}

			if result == pageInterrupted {
				summary.TargetReached = true

				return summary, nil
			}

			state = state.NextPage()

			err = o.Store.Save(state)
			if err != nil {
				return summary, fmt.Errorf("save checkpoint: %w", err)
			}

			summary.State = state
			summary.Pages++
			o.Metrics.RecordPage(ctx)
		}

		if summary.Collected >= o.MaxSamples {
			break
		}

		state = state.Advance(o.WindowDays)

		err = o.Store.Save(state)
		if err != nil {
			return summary, fmt.Errorf("save checkpoint: %w", err)
		}

		summary.State = state
		summary.Windows++
		o.Metrics.RecordWindow(ctx)
	}

	summary.TargetReached = summary.Collected >= o.MaxSamples

	o.Logger.InfoContext(ctx, "collection finished",
		"collected", summary.Collected, "pages", summary.Pages, "windows", summary.Windows)

	return summary, nil
}

// runPage fetches one search page and processes its hits. Before-total
// collected is read from summary for progress reporting.
func (d *Driver) runPage(
	ctx context.Context, query, keyword string, window Window, page int, summary *Summary,
) (int, pageResult, error) {
	o := d.opts

	ctx, span := o.Tracer.Start(ctx, "repairharvest.page", trace.WithAttributes(
		attribute.String("harvest.keyword", keyword),
		attribute.String("harvest.window", window.String()),
		attribute.Int("github.page", page),
	))
	defer span.End()

	res, err := o.Search.SearchCommits(ctx, query, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return 0, pageEmpty, err
	}

	switch res.Outcome {
	case ghapi.OK:
	case ghapi.TransientFailure:
		o.Logger.WarnContext(ctx, "search page failed, advancing window", "query", query, "page", page)

		return 0, pageEmpty, nil
	default:
		o.Logger.InfoContext(ctx, "no results, advancing window", "query", query, "page", page)

		return 0, pageEmpty, nil
	}

	repos := make(map[string]struct{}, len(res.Hits))
	for _, hit := range res.Hits {
		repos[hit.Repo] = struct{}{}
	}

	written := 0

	for i, hit := range res.Hits {
		total := summary.Collected + written
		if total >= o.MaxSamples {
			span.SetAttributes(attribute.Int("harvest.processed", i))

			return written, pageInterrupted, nil
		}

		n, processErr := o.Pipeline.Process(ctx, hit, o.MaxSamples-total)
		written += n

		if processErr != nil {
			span.RecordError(processErr)
			span.SetStatus(codes.Error, processErr.Error())

			return written, pageDone, processErr
		}

		after := total + n
		if n > 0 && after/progressEvery > total/progressEvery {
			o.Logger.InfoContext(ctx, "progress",
				"collected", humanize.Comma(int64(after)), "target", humanize.Comma(int64(o.MaxSamples)),
				"page_repos", len(repos))
		}
	}

	span.SetAttributes(attribute.Int("harvest.written", written))

	return written, pageDone, nil
}
