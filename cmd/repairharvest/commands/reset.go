package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repairharvest/pkg/checkpoint"
	"github.com/Sumatoshi-tech/repairharvest/pkg/config"
)

// ErrResetDeclined is returned when the confirmation prompt is not answered with "yes".
var ErrResetDeclined = errors.New("reset declined")

const confirmAnswer = "yes"

// ResetCommand holds the flags of the reset command.
type ResetCommand struct {
	configPath string
	yes        bool
	noColor    bool
	now        func() time.Time
}

// NewResetCommand creates the reset command.
func NewResetCommand() *cobra.Command {
	rc := &ResetCommand{now: time.Now}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Back up and clear the crawl checkpoint and seen commits",
		Long: `Move the checkpoint and the seen-commit list into a timestamped backup
directory so the next collect starts from today. The dataset is left untouched.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.configPath, "config", "c", "", "Config file (default: repairharvest.yaml in ., ./config, /etc/repairharvest)")
	cmd.Flags().BoolVarP(&rc.yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (rc *ResetCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	paths := []string{cfg.Storage.Checkpoint, cfg.Storage.Seen}

	if !rc.yes {
		confirmed, promptErr := rc.confirm(cmd.InOrStdin(), out, paths)
		if promptErr != nil {
			return promptErr
		}

		if !confirmed {
			return ErrResetDeclined
		}
	}

	res, err := checkpoint.Archive(cfg.Storage.BackupDir, rc.now(), paths...)
	if err != nil {
		return fmt.Errorf("archive state: %w", err)
	}

	for _, path := range res.Moved {
		paint(rc.noColor, color.FgGreen).Fprintf(out, "backed up %s\n", path)
	}

	for _, path := range res.Missing {
		paint(rc.noColor, color.FgYellow).Fprintf(out, "skipped %s (not found)\n", path)
	}

	fmt.Fprintf(out, "Backup directory: %s\n", res.Dir)
	fmt.Fprintf(out, "Dataset %s was not modified.\n", cfg.Storage.Dataset)

	return nil
}

func (rc *ResetCommand) confirm(in io.Reader, out io.Writer, paths []string) (bool, error) {
	warn := paint(rc.noColor, color.FgRed, color.Bold)

	warn.Fprintln(out, "This clears the crawl position and the seen-commit list:")

	for _, path := range paths {
		fmt.Fprintf(out, "  %s\n", path)
	}

	fmt.Fprintf(out, "Type %q to continue: ", confirmAnswer)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}

	fmt.Fprintln(out)

	return strings.EqualFold(strings.TrimSpace(answer), confirmAnswer), nil
}
