// Package storage owns an archive directory: the SQLite database, the
// per-page JSON files beside it, the archive title and its addon log.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const (
	DatabaseFile = "history.sqlite"
	PagesDir     = "pages"
	TitleFile    = "title.txt"
	LogFile      = "addon.log"
)

var (
	// ErrArchiveOpen is returned when an archive is opened while another one
	// is still open in this process.
	ErrArchiveOpen = errors.New("two archives can't coexist")
	// ErrClosed is returned by operations on a closed archive.
	ErrClosed = errors.New("archive is closed")
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
)

// openGuard enforces a single open archive per process.
var openGuard struct {
	mu   sync.Mutex
	path string
}

// Options configures Open.
type Options struct {
	// LocationsFile is the known-archives list. Empty means
	// DefaultLocationsFile().
	LocationsFile string
}

// DefaultLocationsFile returns ~/.browsinglab/locations.txt.
func DefaultLocationsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".browsinglab", "locations.txt")
	}
	return filepath.Join(home, ".browsinglab", "locations.txt")
}

// Archive is one open archive directory.
type Archive struct {
	path     string
	pagesDir string
	db       *sql.DB
	counters Counters

	closeOnce sync.Once

	// Prepared statements
	activityIDByVisit *sql.Stmt
	activityExists    *sql.Stmt
	pageRowExists     *sql.Stmt
}

// Open prepares the archive at path: it creates the directory and pages/,
// applies the schema, records the location and computes the counters.
func Open(ctx context.Context, path string, opts Options) (*Archive, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}

	openGuard.mu.Lock()
	defer openGuard.mu.Unlock()
	if openGuard.path != "" {
		return nil, fmt.Errorf("open %s while %s is open: %w", abs, openGuard.path, ErrArchiveOpen)
	}

	pagesDir := filepath.Join(abs, PagesDir)
	if err := os.MkdirAll(pagesDir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := openDB(filepath.Join(abs, DatabaseFile))
	if err != nil {
		return nil, err
	}

	a := &Archive{path: abs, pagesDir: pagesDir, db: db}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := a.prepareStatements(ctx); err != nil {
		a.closeStatements()
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	locationsFile := opts.LocationsFile
	if locationsFile == "" {
		locationsFile = DefaultLocationsFile()
	}
	if err := NewLocations(locationsFile).Add(abs); err != nil {
		a.closeStatements()
		db.Close()
		return nil, err
	}

	if err := a.RefreshCounters(ctx); err != nil {
		a.closeStatements()
		db.Close()
		return nil, err
	}

	openGuard.path = abs
	return a, nil
}

// openDB opens the SQLite file with a single connection: the archive is the
// only reader and writer.
func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (a *Archive) prepareStatements(ctx context.Context) error {
	var err error

	a.activityIDByVisit, err = a.db.PrepareContext(ctx, `
		SELECT id FROM activity WHERE browserId = ? AND browserVisitId = ? ORDER BY loadTime DESC LIMIT 1
	`)
	if err != nil {
		return err
	}

	a.activityExists, err = a.db.PrepareContext(ctx, `SELECT COUNT(*) FROM activity WHERE id = ?`)
	if err != nil {
		return err
	}

	a.pageRowExists, err = a.db.PrepareContext(ctx, `SELECT COUNT(*) FROM page WHERE url = ?`)
	if err != nil {
		return err
	}

	return nil
}

func (a *Archive) closeStatements() {
	stmts := []*sql.Stmt{a.activityIDByVisit, a.activityExists, a.pageRowExists}
	for _, s := range stmts {
		if s != nil {
			s.Close()
		}
	}
}

// Close flushes and closes the database and releases the process-wide
// open slot. Calling it more than once is harmless.
func (a *Archive) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closeStatements()
		err = a.db.Close()

		openGuard.mu.Lock()
		if openGuard.path == a.path {
			openGuard.path = ""
		}
		openGuard.mu.Unlock()
	})
	return err
}

// Path returns the archive's absolute directory.
func (a *Archive) Path() string { return a.path }

// PagesDir returns the directory holding page and annotation JSON files.
func (a *Archive) PagesDir() string { return a.pagesDir }

// LogPath returns the archive's addon log file.
func (a *Archive) LogPath() string { return filepath.Join(a.path, LogFile) }

// DB exposes the connection to the read-side query layer.
func (a *Archive) DB() *sql.DB { return a.db }

// Counters returns the counters computed by the last RefreshCounters.
func (a *Archive) Counters() Counters { return a.counters }

// RefreshCounters recomputes the activity, page and fetch error counts.
func (a *Archive) RefreshCounters(ctx context.Context) error {
	err := a.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM activity),
			(SELECT COUNT(*) FROM page),
			(SELECT COUNT(*) FROM fetch_error)
	`).Scan(&a.counters.Activities, &a.counters.FetchedPages, &a.counters.FetchErrors)
	if err != nil {
		return fmt.Errorf("count archive rows: %w", err)
	}
	return nil
}

// Title returns the archive title, or "" when none is set.
func (a *Archive) Title() (string, error) {
	data, err := os.ReadFile(filepath.Join(a.path, TitleFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read archive title: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetTitle writes the archive title. An empty title removes the file.
func (a *Archive) SetTitle(title string) error {
	p := filepath.Join(a.path, TitleFile)
	if title == "" {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove archive title: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(p, []byte(title), 0644); err != nil {
		return fmt.Errorf("write archive title: %w", err)
	}
	return nil
}

// AppendLog appends already formatted text to the archive's addon log.
func (a *Archive) AppendLog(text string) error {
	f, err := os.OpenFile(a.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open addon log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("append addon log: %w", err)
	}
	return nil
}
