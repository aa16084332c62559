package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/repairharvest/pkg/checkpoint"
	"github.com/Sumatoshi-tech/repairharvest/pkg/config"
	"github.com/Sumatoshi-tech/repairharvest/pkg/dataset"
	"github.com/Sumatoshi-tech/repairharvest/pkg/harvest"
)

// Status output formats.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

// StatusReport describes crawl progress and the dataset on disk.
type StatusReport struct {
	Checkpoint   string `yaml:"checkpoint"`
	Started      bool   `yaml:"started"`
	Keyword      string `yaml:"keyword"`
	KeywordIndex int    `yaml:"keyword_index"`
	Window       string `yaml:"window"`
	Page         int    `yaml:"page"`
	SeenCommits  int    `yaml:"seen_commits"`
	Dataset      string `yaml:"dataset"`
	Rows         int    `yaml:"rows"`
	SizeBytes    int64  `yaml:"size_bytes"`
	Modified     string `yaml:"modified,omitempty"`

	modTime time.Time
}

// StatusCommand holds the flags of the status command.
type StatusCommand struct {
	configPath string
	format     string
	now        func() time.Time
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	sc := &StatusCommand{now: time.Now}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show crawl progress and dataset size",
		Args:  cobra.NoArgs,
		RunE:  sc.run,
	}

	cmd.Flags().StringVarP(&sc.configPath, "config", "c", "", "Config file (default: repairharvest.yaml in ., ./config, /etc/repairharvest)")
	cmd.Flags().StringVarP(&sc.format, "format", "f", FormatTable, "Output format: table, yaml")

	return cmd
}

func (sc *StatusCommand) run(cmd *cobra.Command, _ []string) error {
	if sc.format != FormatTable && sc.format != FormatYAML {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, sc.format)
	}

	cfg, err := config.LoadConfig(sc.configPath)
	if err != nil {
		return err
	}

	report, err := buildStatus(cfg, sc.now())
	if err != nil {
		return err
	}

	if sc.format == FormatYAML {
		return writeStatusYAML(cmd.OutOrStdout(), report)
	}

	writeStatusTable(cmd.OutOrStdout(), report, sc.now())

	return nil
}

// buildStatus reads the checkpoint, seen file and dataset without modifying them.
// Before the first run the report shows where a run would start.
func buildStatus(cfg *config.Config, now time.Time) (StatusReport, error) {
	report := StatusReport{
		Checkpoint: cfg.Storage.Checkpoint,
		Dataset:    cfg.Storage.Dataset,
	}

	store := checkpoint.NewStore(cfg.Storage.Checkpoint)
	state := checkpoint.Default(checkpoint.Today(now))

	if store.Exists() {
		loaded, err := store.Load()
		if err != nil {
			return StatusReport{}, err
		}

		state = loaded
		report.Started = true
	}

	report.Keyword = state.Keyword(cfg.Search.Keywords)
	report.KeywordIndex = state.KeywordIndex
	report.Window = harvest.WindowFor(state.DateEnd, cfg.Search.WindowDays).String()
	report.Page = state.Page

	seen, err := dataset.ReadSeenCount(cfg.Storage.Seen)
	if err != nil {
		return StatusReport{}, err
	}

	report.SeenCommits = seen

	rows, err := dataset.CountRows(cfg.Storage.Dataset)
	if err != nil {
		return StatusReport{}, err
	}

	report.Rows = rows

	info, err := os.Stat(cfg.Storage.Dataset)
	switch {
	case err == nil:
		report.SizeBytes = info.Size()
		report.modTime = info.ModTime()
		report.Modified = info.ModTime().UTC().Format(time.RFC3339)
	case !errors.Is(err, os.ErrNotExist):
		return StatusReport{}, fmt.Errorf("stat dataset: %w", err)
	}

	return report, nil
}

func writeStatusYAML(w io.Writer, report StatusReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(report)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	return enc.Close()
}

func writeStatusTable(w io.Writer, report StatusReport, now time.Time) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("repairharvest status")
	tw.AppendHeader(table.Row{"Field", "Value"})

	started := "no (default shown)"
	if report.Started {
		started = "yes"
	}

	modified := "-"
	if !report.modTime.IsZero() {
		modified = humanize.RelTime(report.modTime, now, "ago", "from now")
	}

	tw.AppendRows([]table.Row{
		{"Checkpoint", report.Checkpoint},
		{"Started", started},
		{"Keyword", fmt.Sprintf("%s (#%d)", report.Keyword, report.KeywordIndex)},
		{"Window", report.Window},
		{"Page", strconv.Itoa(report.Page)},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"Seen commits", humanize.Comma(int64(report.SeenCommits))},
		{"Dataset", report.Dataset},
		{"Rows", humanize.Comma(int64(report.Rows))},
		{"Size", humanize.IBytes(uint64(max(report.SizeBytes, 0)))},
		{"Modified", modified},
	})

	tw.Render()
}
