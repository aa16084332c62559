package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// workspace is a temporary directory with a config file pointing all storage into it.
type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T, extra string) workspace {
	t.Helper()

	dir := t.TempDir()
	ws := workspace{dir: dir, config: filepath.Join(dir, "repairharvest.yaml")}

	content := fmt.Sprintf(`storage:
  dataset: %s
  seen: %s
  checkpoint: %s
  backup_dir: %s
%s`, ws.path("dataset.csv"), ws.path("seen.txt"), ws.path("state.json"), ws.path("backups"), extra)

	require.NoError(t, os.WriteFile(ws.config, []byte(content), 0o600))

	return ws
}

func (ws workspace) path(name string) string {
	return filepath.Join(ws.dir, name)
}

// execute runs cmd with args and stdin, returning its stdout.
func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}
