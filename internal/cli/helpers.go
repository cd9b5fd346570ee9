package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/runnerr0/browsinglab/internal/config"
	"github.com/runnerr0/browsinglab/internal/query"
	"github.com/runnerr0/browsinglab/internal/storage"
)

// env is what most commands need: configuration, a logger and the open
// archive with a reader over it.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	archive *storage.Archive
	reader  *query.Reader
	exclude *query.Exclusions
}

func (e *env) Close() error {
	if e.archive == nil {
		return nil
	}
	return e.archive.Close()
}

// loadConfig reads --config, or the default config file which is created
// on first use.
func loadConfig(g *GlobalFlags) (*config.Config, error) {
	if g == nil || g.Config == "" {
		return config.LoadOrCreate()
	}
	path, err := config.ExpandPath(g.Config)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// newLogger writes to stderr; stdout may be carrying the protocol.
func newLogger(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

// archivePath is --archive, else the configured default.
func archivePath(g *GlobalFlags, cfg *config.Config) (string, error) {
	if g != nil && g.Archive != "" {
		return config.ExpandPath(g.Archive)
	}
	return cfg.ArchivePath()
}

func storageOptions(cfg *config.Config) (storage.Options, error) {
	loc, err := cfg.LocationsFile()
	if err != nil {
		return storage.Options{}, err
	}
	return storage.Options{LocationsFile: loc}, nil
}

// openEnv loads the config and opens the archive. Callers must Close it.
func openEnv(ctx context.Context, g *GlobalFlags) (*env, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, g != nil && g.Verbose)
	if err != nil {
		return nil, err
	}
	path, err := archivePath(g, cfg)
	if err != nil {
		return nil, err
	}
	opts, err := storageOptions(cfg)
	if err != nil {
		return nil, err
	}
	a, err := storage.Open(ctx, path, opts)
	if err != nil {
		return nil, err
	}

	exclude, err := query.NewExclusions(cfg.ExcludeDomains(), cfg.Index.ExcludePatterns)
	if err != nil {
		a.Close()
		return nil, err
	}
	r, err := query.NewReader(a, query.Options{
		Exclude:       exclude,
		BlobCacheSize: cfg.Archive.BlobCacheSize,
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, archive: a, reader: r, exclude: exclude}, nil
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func wantJSON(g *GlobalFlags) bool {
	return g != nil && g.JSON
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// formatMillis renders an epoch-milliseconds timestamp as a local date.
func formatMillis(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return time.UnixMilli(*ms).Local().Format("2006-01-02 15:04")
}
