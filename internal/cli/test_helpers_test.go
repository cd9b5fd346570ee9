package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"
)

// captureOutput returns what fn writes to stdout.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	return captureFile(t, &os.Stdout, fn)
}

// captureFile swaps *target for a pipe while fn runs.
func captureFile(t *testing.T, target **os.File, fn func()) string {
	t.Helper()
	old := *target
	r, w, err := os.Pipe()
	require.NoError(t, err)
	*target = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	defer func() { *target = old }()
	fn()
	w.Close()
	return <-done
}

// parseOnly returns a parser whose subcommands are recognised but not run.
func parseOnly(t *testing.T) (*goflags.Parser, *GlobalFlags, *commands) {
	t.Helper()
	parser, g, cmds := buildParser("test")
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	return parser, g, cmds
}

// testConfig writes a config file pointing at a fresh archive and
// locations file, and returns the global flags selecting them.
func testConfig(t *testing.T) (args []string, archiveDir string) {
	t.Helper()
	root := t.TempDir()
	archiveDir = filepath.Join(root, "archive")
	cfgPath := filepath.Join(root, "config.yaml")
	cfg := "archive:\n" +
		"  default_path: " + archiveDir + "\n" +
		"  locations_file: " + filepath.Join(root, "locations.txt") + "\n" +
		"installer:\n" +
		"  launcher_dir: " + filepath.Join(root, "launcher") + "\n" +
		"logging:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))
	return []string{"--config", cfgPath}, archiveDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var err error
	out := captureOutput(t, func() {
		err = RunWithArgs("1.2.3", args)
	})
	return out, err
}
