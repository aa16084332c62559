package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repairharvest/internal/observability"
	"github.com/Sumatoshi-tech/repairharvest/pkg/checkpoint"
	"github.com/Sumatoshi-tech/repairharvest/pkg/config"
	"github.com/Sumatoshi-tech/repairharvest/pkg/credential"
	"github.com/Sumatoshi-tech/repairharvest/pkg/dataset"
	"github.com/Sumatoshi-tech/repairharvest/pkg/ghapi"
	"github.com/Sumatoshi-tech/repairharvest/pkg/harvest"
	"github.com/Sumatoshi-tech/repairharvest/pkg/pair"
)

// ErrInvalidMaxSamples is returned when --max-samples is not positive.
var ErrInvalidMaxSamples = errors.New("--max-samples must be positive")

// CollectCommand holds the flags of the collect command.
type CollectCommand struct {
	configPath string
	maxSamples int
	noColor    bool
	telemetry  telemetryOverrides
}

// NewCollectCommand creates the collect command.
func NewCollectCommand() *cobra.Command {
	cc := &CollectCommand{}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Crawl commit search and append training pairs to the dataset",
		Long: `Resume the crawl from the checkpoint and collect pairs until the sample
target is reached or the date range is exhausted. Interrupting the run keeps every
completed page; the next run picks up where it stopped.`,
		Args: cobra.NoArgs,
		RunE: cc.run,
	}

	cmd.Flags().StringVarP(&cc.configPath, "config", "c", "", "Config file (default: repairharvest.yaml in ., ./config, /etc/repairharvest)")
	cmd.Flags().IntVarP(&cc.maxSamples, "max-samples", "n", 0, "Sample target for this run (0 = collect.max_samples)")
	cmd.Flags().StringVar(&cc.telemetry.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&cc.telemetry.logJSON, "log-json", false, "Emit JSON logs")
	cmd.Flags().StringVar(&cc.telemetry.diagnosticsAddr, "diagnostics-addr", "", "Serve /healthz, /readyz and /metrics on this address")
	cmd.Flags().StringVar(&cc.telemetry.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address")
	cmd.Flags().BoolVar(&cc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (cc *CollectCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(cc.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("max-samples") {
		if cc.maxSamples <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidMaxSamples, cc.maxSamples)
		}

		cfg.Collect.MaxSamples = cc.maxSamples
	}

	err = cfg.RequireCredentials()
	if err != nil {
		return err
	}

	obsCfg, err := observabilityConfig(cfg, observability.ModeCollect, cc.telemetry)
	if err != nil {
		return err
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cooling := observability.NewCooldownTracker(nil)

	if addr := diagnosticsAddr(cfg, cc.telemetry); addr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(addr, providers.MetricsHandler,
			func(context.Context) error { return context.Cause(ctx) }, cooling.Check)
		if diagErr != nil {
			return diagErr
		}

		defer func() {
			closeErr := diag.Close()
			if closeErr != nil {
				providers.Logger.Warn("diagnostics server close failed", "error", closeErr)
			}
		}()

		providers.Logger.Info("diagnostics server listening", "addr", diag.Addr())
	}

	metrics, err := observability.NewHarvestMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	summary, err := collect(ctx, cfg, providers, metrics, cooling)
	if errors.Is(err, context.Canceled) {
		providers.Logger.Warn("collection interrupted", "collected", summary.Collected)
		printSummary(cmd.OutOrStdout(), summary, cfg.Search.Keywords, cfg.Search.WindowDays, cc.noColor, true)

		return nil
	}

	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), summary, cfg.Search.Keywords, cfg.Search.WindowDays, cc.noColor, false)

	return nil
}

// collect builds the harvesting stack from cfg and runs the driver once.
func collect(
	ctx context.Context,
	cfg *config.Config,
	providers observability.Providers,
	metrics *observability.HarvestMetrics,
	cooling *observability.CooldownTracker,
) (harvest.Summary, error) {
	rotator, err := credential.NewRotator(cfg.GitHub.Tokens)
	if err != nil {
		return harvest.Summary{}, fmt.Errorf("create rotator: %w", err)
	}

	client, err := ghapi.New(ghapi.Options{
		Rotator:           rotator,
		APIURL:            cfg.GitHub.APIURL,
		RawURL:            cfg.GitHub.RawURL,
		PerPage:           cfg.GitHub.PerPage,
		Timeout:           cfg.GitHub.Timeout,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		CacheSize:         cfg.GitHub.CacheSize,
		Retry: ghapi.RetryPolicy{
			MaxRetries:  cfg.Retry.MaxRetries,
			Delay:       cfg.Retry.Delay,
			RotateDelay: cfg.Retry.RotateDelay,
			Cooldown:    cfg.Retry.Cooldown,
		},
		Logger:   providers.Logger,
		Metrics:  metrics,
		Tracer:   providers.Tracer,
		Cooldown: cooling,
	})
	if err != nil {
		return harvest.Summary{}, err
	}

	sink, err := dataset.Open(cfg.Storage.Dataset, cfg.Storage.Seen)
	if err != nil {
		return harvest.Summary{}, err
	}

	defer func() {
		closeErr := sink.Close()
		if closeErr != nil {
			providers.Logger.Error("close dataset", "error", closeErr)
		}
	}()

	providers.Logger.Info("dataset opened",
		"dataset", cfg.Storage.Dataset, "seen_commits", sink.SeenCount(), "credentials", rotator.Size())

	pipeline := harvest.NewPipeline(harvest.PipelineOptions{
		Source:  client,
		Sink:    sink,
		Builder: pair.NewBuilder(pair.Options{}),
		Filter: harvest.Filter{
			FilesLimit:      cfg.Collect.FilesLimit,
			Extensions:      cfg.Collect.Extensions,
			SkipVendored:    cfg.Collect.SkipVendored,
			MaxChangedLines: cfg.Collect.MaxChangedLines,
		},
		Logger:  providers.Logger,
		Metrics: metrics,
		Tracer:  providers.Tracer,
	})

	driver, err := harvest.NewDriver(harvest.DriverOptions{
		Search:     client,
		Pipeline:   pipeline,
		Store:      checkpoint.NewStore(cfg.Storage.Checkpoint),
		Keywords:   cfg.Search.Keywords,
		Language:   cfg.Search.Language,
		WindowDays: cfg.Search.WindowDays,
		MaxPages:   cfg.Search.MaxPages,
		MaxSamples: cfg.Collect.MaxSamples,
		Oldest:     cfg.OldestDay(),
		Logger:     providers.Logger,
		Metrics:    metrics,
		Tracer:     providers.Tracer,
	})
	if err != nil {
		return harvest.Summary{}, err
	}

	return driver.Run(ctx)
}

func printSummary(w io.Writer, summary harvest.Summary, keywords []string, windowDays int, noColor, interrupted bool) {
	headline := paint(noColor, color.FgGreen, color.Bold)
	status := "crawl range exhausted"

	switch {
	case interrupted:
		headline = paint(noColor, color.FgYellow, color.Bold)
		status = "interrupted"
	case summary.TargetReached:
		status = "target reached"
	}

	headline.Fprintf(w, "Collected %s samples (%s)\n", humanize.Comma(int64(summary.Collected)), status)

	fmt.Fprintf(w, "  pages: %s, windows: %s\n",
		humanize.Comma(int64(summary.Pages)), humanize.Comma(int64(summary.Windows)))

	state := summary.State
	if state.DateEnd.IsZero() {
		return
	}

	paint(noColor, color.FgCyan).Fprintf(w, "  next: keyword %q, window %s, page %d\n",
		state.Keyword(keywords), harvest.WindowFor(state.DateEnd, windowDays).String(), state.Page)
}
