package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Locations is the process-wide list of archive directories that have been
// opened before. The file holds one absolute path per line; blank lines and
// lines starting with # are ignored.
type Locations struct {
	path string
}

// NewLocations returns a Locations backed by the file at path.
func NewLocations(path string) *Locations {
	return &Locations{path: path}
}

// Path returns the backing file path.
func (l *Locations) Path() string {
	return l.path
}

// List returns the recorded locations that still exist as directories.
func (l *Locations) List() ([]string, error) {
	all, err := l.read()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, loc := range all {
		if info, err := os.Stat(loc); err == nil && info.IsDir() {
			out = append(out, loc)
		}
	}
	return out, nil
}

// Add records dir (made absolute) unless it is already present.
func (l *Locations) Add(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve archive location: %w", err)
	}

	existing, err := l.read()
	if err != nil {
		return err
	}
	for _, loc := range existing {
		if loc == abs {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create locations directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open locations file: %w", err)
	}
	defer f.Close()

	line := abs + "\n"
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat locations file: %w", err)
	}
	if size := info.Size(); size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			return fmt.Errorf("read locations file: %w", err)
		}
		if last[0] != '\n' {
			line = "\n" + line
		}
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append location: %w", err)
	}
	return nil
}

func (l *Locations) read() ([]string, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open locations file: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}
	return out, nil
}
