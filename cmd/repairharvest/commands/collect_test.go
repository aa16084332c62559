package commands

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repairharvest/pkg/checkpoint"
	"github.com/Sumatoshi-tech/repairharvest/pkg/config"
	"github.com/Sumatoshi-tech/repairharvest/pkg/dataset"
	"github.com/Sumatoshi-tech/repairharvest/pkg/ghapi"
	"github.com/Sumatoshi-tech/repairharvest/pkg/ghapi/ghapitest"
	"github.com/Sumatoshi-tech/repairharvest/pkg/harvest"
)

const (
	buggyText = "a\nb\nc\nd\ne\n"
	fixedText = "a\nB2\nd\ne\n"
	fixPatch  = "@@ -2,2 +2,1 @@\n-b\n-c\n+B2\n"
)

func collectConfig(srv *ghapitest.Server, oldest string) string {
	return fmt.Sprintf(`github:
  tokens: [tok-a]
  api_url: %s
  raw_url: %s
  requests_per_second: 0
search:
  keywords: [fix]
  language: Python
  max_pages: 2
  oldest: %q
retry:
  delay: 1ms
  rotate_delay: 1ms
  cooldown: 1ms
`, srv.APIURL(), srv.RawURL(), oldest)
}

func TestCollectWritesPairs(t *testing.T) {
	srv := ghapitest.NewServer()
	t.Cleanup(srv.Close)

	today := checkpoint.Today(time.Now())
	query := ghapi.Query("fix", "Python", harvest.WindowFor(today, 7).String())

	srv.AddPage(query, 1, ghapitest.Hit{Repo: "octo/app", SHA: "fix1"})
	srv.AddCommit("octo/app", "fix1", ghapitest.Commit{
		Message: "Fix crash",
		Parents: []string{"base1"},
		Files:   []ghapitest.File{{Name: "app.py", Patch: ghapitest.Patch(fixPatch)}},
	})
	srv.AddFile("octo/app", "base1", "app.py", buggyText)
	srv.AddFile("octo/app", "fix1", "app.py", fixedText)

	ws := newWorkspace(t, collectConfig(srv, today.String()))

	out, err := execute(t, NewCollectCommand(), "", "--config", ws.config, "--max-samples", "1", "--no-color", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Collected 1 samples (target reached)")

	rows, err := dataset.CountRows(ws.path("dataset.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	seen, err := dataset.ReadSeenCount(ws.path("seen.txt"))
	require.NoError(t, err)
	assert.Equal(t, 1, seen)

	assert.FileExists(t, ws.path("state.json"))
}

func TestCollectStopsAtOldestDay(t *testing.T) {
	srv := ghapitest.NewServer()
	t.Cleanup(srv.Close)

	today := checkpoint.Today(time.Now())
	ws := newWorkspace(t, collectConfig(srv, today.AddDays(-10).String()))

	out, err := execute(t, NewCollectCommand(), "", "--config", ws.config, "--no-color", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Collected 0 samples (crawl range exhausted)")
	assert.Equal(t, 2, srv.Count(ghapitest.EndpointSearch))
}

func TestCollectRequiresCredentials(t *testing.T) {
	t.Setenv("GITHUB_TOKENS", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("REPAIRHARVEST_GITHUB_TOKENS", "")

	ws := newWorkspace(t, "")

	_, err := execute(t, NewCollectCommand(), "", "--config", ws.config)
	require.ErrorIs(t, err, config.ErrNoCredentials)
}

func TestCollectRejectsNonPositiveMaxSamples(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "github:\n  tokens: [tok-a]\n")

	_, err := execute(t, NewCollectCommand(), "", "--config", ws.config, "--max-samples", "0")
	require.ErrorIs(t, err, ErrInvalidMaxSamples)
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printSummary(&out, harvest.Summary{
		Collected:     1234,
		Pages:         3,
		Windows:       1,
		TargetReached: true,
		State:         checkpoint.CrawlState{KeywordIndex: 1, DateEnd: checkpoint.NewDay(2024, time.January, 7), Page: 2},
	}, []string{"fix", "bug"}, 7, true, false)

	assert.Equal(t, "Collected 1,234 samples (target reached)\n"+
		"  pages: 3, windows: 1\n"+
		"  next: keyword \"bug\", window 2024-01-01..2024-01-07, page 2\n", out.String())
}

func TestPrintSummaryInterrupted(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printSummary(&out, harvest.Summary{TargetReached: true}, []string{"fix"}, 7, true, true)

	assert.Equal(t, "Collected 0 samples (interrupted)\n  pages: 0, windows: 0\n", out.String())
}
