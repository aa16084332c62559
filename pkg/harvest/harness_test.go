package harvest_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repairharvest/pkg/checkpoint"
	"github.com/Sumatoshi-tech/repairharvest/pkg/credential"
	"github.com/Sumatoshi-tech/repairharvest/pkg/dataset"
	"github.com/Sumatoshi-tech/repairharvest/pkg/ghapi"
	"github.com/Sumatoshi-tech/repairharvest/pkg/ghapi/ghapitest"
	"github.com/Sumatoshi-tech/repairharvest/pkg/harvest"
)

const (
	buggyText = "a\nb\nc\nd\ne\n"
	fixedText = "a\nB2\nd\ne\n"
	fixPatch  = "@@ -2,2 +2,1 @@\n-b\n-c\n+B2\n"

	// Window queries for a run starting on 2024-01-14 with keywords fix, bug.
	firstQuery  = "fix language:Python committer-date:2024-01-08..2024-01-14"
	secondQuery = "bug language:Python committer-date:2024-01-01..2024-01-07"
)

var runDay = time.Date(2024, 1, 14, 9, 30, 0, 0, time.UTC)

type recordedSleeps struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()

	return ctx.Err()
}

func (r *recordedSleeps) get() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Duration(nil), r.sleeps...)
}

// harness wires a fake GitHub, a real client, sink and checkpoint store.
type harness struct {
	srv     *ghapitest.Server
	rotator *credential.Rotator
	client  *ghapi.Client
	sleeps  *recordedSleeps
	dir     string
}

func newHarness(t *testing.T, tokens ...string) *harness {
	t.Helper()

	if len(tokens) == 0 {
		tokens = []string{"tok-a"}
	}

	srv := ghapitest.NewServer()
	t.Cleanup(srv.Close)

	rotator, err := credential.NewRotator(tokens)
	require.NoError(t, err)

	sleeps := &recordedSleeps{}

	client, err := ghapi.New(ghapi.Options{
		Rotator:    rotator,
		APIURL:     srv.APIURL(),
		RawURL:     srv.RawURL(),
		HTTPClient: srv.Client(),
		CacheSize:  64,
		Sleep:      sleeps.sleep,
	})
	require.NoError(t, err)

	return &harness{srv: srv, rotator: rotator, client: client, sleeps: sleeps, dir: t.TempDir()}
}

func (h *harness) datasetPath() string { return filepath.Join(h.dir, "dataset.csv") }

func (h *harness) seenPath() string { return filepath.Join(h.dir, "seen.txt") }

func (h *harness) statePath() string { return filepath.Join(h.dir, "state.json") }

func (h *harness) openSink(t *testing.T) *dataset.Sink {
	t.Helper()

	sink, err := dataset.Open(h.datasetPath(), h.seenPath())
	require.NoError(t, err)

	t.Cleanup(func() { _ = sink.Close() })

	return sink
}

func (h *harness) pipeline(sink *dataset.Sink) *harvest.Pipeline {
	return harvest.NewPipeline(harvest.PipelineOptions{
		Source: h.client,
		Sink:   sink,
		Filter: harvest.Filter{FilesLimit: 3, Extensions: []string{".py"}},
	})
}

// driver builds a driver whose date range ends before oldest.
func (h *harness) driver(t *testing.T, sink *dataset.Sink, maxSamples int, oldest checkpoint.Day) *harvest.Driver {
	t.Helper()

	d, err := harvest.NewDriver(harvest.DriverOptions{
		Search:     h.client,
		Pipeline:   h.pipeline(sink),
		Store:      checkpoint.NewStore(h.statePath()),
		Keywords:   []string{"fix", "bug"},
		Language:   "Python",
		WindowDays: 7,
		MaxPages:   2,
		MaxSamples: maxSamples,
		Oldest:     oldest,
		Now:        func() time.Time { return runDay },
	})
	require.NoError(t, err)

	return d
}

// addFix registers a one-file fixing commit with its two snapshots.
func (h *harness) addFix(repo, sha, path string) {
	parent := "parent-" + sha

	h.srv.AddCommit(repo, sha, ghapitest.Commit{
		Message: "Fix " + path + "\n\nlonger body",
		Parents: []string{parent},
		Files:   []ghapitest.File{{Name: path, Patch: ghapitest.Patch(fixPatch)}},
	})
	h.srv.AddFile(repo, parent, path, buggyText)
	h.srv.AddFile(repo, sha, path, fixedText)
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)

	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	return rows
}

func loadState(t *testing.T, h *harness) checkpoint.CrawlState {
	t.Helper()

	state, err := checkpoint.NewStore(h.statePath()).Load()
	require.NoError(t, err)

	return state
}
