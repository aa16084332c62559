// Package harvest drives the crawl: it walks keyword and date windows page by
// page, turns each matching commit into training pairs and checkpoints
// progress so an interrupted run resumes where it stopped.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/src-d/enry/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/repairharvest/internal/observability"
	"github.com/Sumatoshi-tech/repairharvest/pkg/dataset"
	"github.com/Sumatoshi-tech/repairharvest/pkg/ghapi"
	"github.com/Sumatoshi-tech/repairharvest/pkg/hunk"
	"github.com/Sumatoshi-tech/repairharvest/pkg/pair"
	"github.com/Sumatoshi-tech/repairharvest/pkg/textutil"
)

const tracerName = "repairharvest"

// Skip reasons reported in logs and metrics.
const (
	SkipCommitUnavailable = "commit_unavailable"
	SkipNoParent          = "no_parent"
	SkipNoFiles           = "no_files"
	SkipTooManyFiles      = "too_many_files"
	SkipExtension         = "extension"
	SkipVendored          = "vendored"
	SkipNoPatch           = "no_patch"
	SkipSnapshot          = "snapshot_unavailable"
	SkipBinary            = "binary"
	SkipUnchanged         = "unchanged"
	SkipNotBuildable      = "not_buildable"
	SkipTooLarge          = "too_large"
)

// CommitSource fetches commit details and file snapshots.
type CommitSource interface {
	GetCommit(ctx context.Context, repo, sha string) (ghapi.Commit, error)
	FetchFile(ctx context.Context, repo, sha, path string) (ghapi.Snapshot, error)
}

// Filter holds the per-commit and per-file acceptance rules.
type Filter struct {
	// FilesLimit skips commits touching more files than this.
	FilesLimit int
	// Extensions are the accepted path suffixes, e.g. ".py".
	Extensions []string
	// SkipVendored drops vendored and third-party paths.
	SkipVendored bool
	// MaxChangedLines drops pairs whose fix changes more lines. Zero disables it.
	MaxChangedLines int
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Source  CommitSource
	Sink    *dataset.Sink
	Builder *pair.Builder
	Filter  Filter

	Logger  *slog.Logger
	Metrics *observability.HarvestMetrics
	Tracer  trace.Tracer
}

// Pipeline converts one search hit into dataset rows.
type Pipeline struct {
	source  CommitSource
	sink    *dataset.Sink
	builder *pair.Builder
	filter  Filter
	logger  *slog.Logger
	metrics *observability.HarvestMetrics
	tracer  trace.Tracer
}

// NewPipeline creates a pipeline. Nil builder, logger and tracer take defaults.
func NewPipeline(opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		source:  opts.Source,
		sink:    opts.Sink,
		builder: opts.Builder,
		filter:  opts.Filter,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}

	if p.builder == nil {
		p.builder = pair.NewBuilder(pair.Options{})
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}

	return p
}

// Process examines the commit behind hit and writes at most remaining rows.
// Seen commits are skipped without any request. A commit whose detail was
// retrieved is marked seen once its files were attempted, so it is never
// fetched again. The returned error is a context or storage failure.
func (p *Pipeline) Process(ctx context.Context, hit ghapi.Hit, remaining int) (int, error) {
	if remaining <= 0 || p.sink.IsSeen(hit.SHA) {
		return 0, nil
	}

	ctx, span := p.tracer.Start(ctx, "repairharvest.commit",
		trace.WithAttributes(attribute.String("github.repo", hit.Repo), attribute.String("github.sha", hit.SHA)))
	defer span.End()

	commit, err := p.source.GetCommit(ctx, hit.Repo, hit.SHA)
	if err != nil {
		return 0, err
	}

	if commit.Outcome != ghapi.OK {
		p.skip(ctx, hit.Repo, hit.SHA, "", SkipCommitUnavailable)

		return 0, nil
	}

	p.metrics.RecordCommit(ctx)

	written := 0

	if reason := p.commitSkip(commit); reason != "" {
		p.skip(ctx, commit.Repo, commit.SHA, "", reason)
	} else {
		for _, f := range commit.Files {
			if written >= remaining {
				break
			}

			ok, fileErr := p.processFile(ctx, commit, f)
			if fileErr != nil {
				return written, fileErr
			}

			if ok {
				written++
			}
		}
	}

	span.SetAttributes(attribute.Int("harvest.written", written))

	err = p.sink.MarkSeen(commit.SHA)
	if err != nil {
		return written, err
	}

	return written, nil
}

func (p *Pipeline) commitSkip(c ghapi.Commit) string {
	switch {
	case len(c.Parents) == 0:
		return SkipNoParent
	case len(c.Files) == 0:
		return SkipNoFiles
	case p.filter.FilesLimit > 0 && len(c.Files) > p.filter.FilesLimit:
		return SkipTooManyFiles
	default:
		return ""
	}
}

func (p *Pipeline) fileSkip(f ghapi.ChangedFile) string {
	switch {
	case !p.hasExtension(f.Path):
		return SkipExtension
	case p.filter.SkipVendored && enry.IsVendor(f.Path):
		return SkipVendored
	case !f.HasPatch:
		return SkipNoPatch
	default:
		return ""
	}
}

func (p *Pipeline) hasExtension(path string) bool {
	if len(p.filter.Extensions) == 0 {
		return true
	}

	for _, ext := range p.filter.Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	return false
}

// processFile builds and writes the pair for one changed file. It reports
// whether a row was written.
func (p *Pipeline) processFile(ctx context.Context, c ghapi.Commit, f ghapi.ChangedFile) (bool, error) {
	ctx, span := p.tracer.Start(ctx, "repairharvest.file", trace.WithAttributes(attribute.String("github.path", f.Path)))
	defer span.End()

	if reason := p.fileSkip(f); reason != "" {
		p.skip(ctx, c.Repo, c.SHA, f.Path, reason)

		return false, nil
	}

	buggy, err := p.source.FetchFile(ctx, c.Repo, c.Parents[0], f.Path)
	if err != nil {
		return false, err
	}

	if buggy.Outcome != ghapi.OK || buggy.Text == "" {
		p.skip(ctx, c.Repo, c.SHA, f.Path, SkipSnapshot)

		return false, nil
	}

	fixed, err := p.source.FetchFile(ctx, c.Repo, c.SHA, f.Path)
	if err != nil {
		return false, err
	}

	reason := snapshotSkip(buggy.Text, fixed)
	if reason != "" {
		p.skip(ctx, c.Repo, c.SHA, f.Path, reason)

		return false, nil
	}

	pr, err := p.builder.Build(buggy.Text, hunk.Parse(f.Patch))
	if errors.Is(err, pair.ErrNotBuildable) {
		p.logger.DebugContext(ctx, "file skipped", "repo", c.Repo, "sha", c.SHA, "path", f.Path,
			"reason", SkipNotBuildable, "detail", err)
		p.metrics.RecordSkip(ctx, SkipNotBuildable)

		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("build pair for %s: %w", f.Path, err)
	}

	stats := pair.Stats(buggy.Text, fixed.Text)
	if p.filter.MaxChangedLines > 0 && stats.Changed() > p.filter.MaxChangedLines {
		p.skip(ctx, c.Repo, c.SHA, f.Path, SkipTooLarge)

		return false, nil
	}

	err = p.sink.Append(dataset.Record{
		Repo:                 c.Repo,
		FilePath:             f.Path,
		CommitSHA:            c.SHA,
		CommitMessage:        c.Message,
		InputRepresentation:  pr.Input,
		OutputRepresentation: pr.Output,
		BuggyCode:            buggy.Text,
		FixedCode:            fixed.Text,
	})
	if err != nil {
		return false, err
	}

	p.metrics.RecordSample(ctx, stats.Changed())
	p.logger.DebugContext(ctx, "pair written", "repo", c.Repo, "sha", c.SHA, "path", f.Path,
		"inserted", stats.Inserted, "deleted", stats.Deleted)

	return true, nil
}

func snapshotSkip(buggy string, fixed ghapi.Snapshot) string {
	switch {
	case fixed.Outcome != ghapi.OK || fixed.Text == "":
		return SkipSnapshot
	case textutil.IsBinary([]byte(buggy)) || textutil.IsBinary([]byte(fixed.Text)):
		return SkipBinary
	case strings.TrimSpace(buggy) == strings.TrimSpace(fixed.Text):
		return SkipUnchanged
	default:
		return ""
	}
}

func (p *Pipeline) skip(ctx context.Context, repo, sha, path, reason string) {
	p.metrics.RecordSkip(ctx, reason)

	if path == "" {
		p.logger.DebugContext(ctx, "commit skipped", "repo", repo, "sha", sha, "reason", reason)

		return
	}

	p.logger.DebugContext(ctx, "file skipped", "repo", repo, "sha", sha, "path", path, "reason", reason)
}
