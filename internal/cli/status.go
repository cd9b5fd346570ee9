package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/runnerr0/browsinglab/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string `json:"version"`
	ArchivePath       string `json:"archive_path"`
	Title             string `json:"title,omitempty"`
	DatabaseSizeBytes int64  `json:"database_size_bytes"`
	Activities        int64  `json:"activities"`
	FetchedPages      int64  `json:"fetched_pages"`
	FetchErrors       int64  `json:"fetch_errors"`
	SearchIndexed     int64  `json:"search_indexed"`
	EntityIndexed     int64  `json:"entity_indexed"`
	NewestHistory     *int64 `json:"newest_history,omitempty"`
	OldestHistory     *int64 `json:"oldest_history,omitempty"`

	Browser *browserJSON `json:"browser,omitempty"`
}

type browserJSON struct {
	ID        string `json:"id"`
	UserAgent string `json:"user_agent"`
	Connected bool   `json:"connected"`
	Testing   bool   `json:"testing"`
	Autofetch bool   `json:"autofetch"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e)
}

func (c *StatusCommand) run(ctx context.Context, e *env) error {
	st, err := e.archive.Status(ctx, c.Browser)
	if err != nil {
		return err
	}
	counts, err := e.reader.IndexCounts(ctx)
	if err != nil {
		return err
	}
	title, err := e.archive.Title()
	if err != nil {
		return err
	}

	out := statusJSON{
		Version:           c.version,
		ArchivePath:       e.archive.Path(),
		Title:             title,
		DatabaseSizeBytes: fileSize(filepath.Join(e.archive.Path(), storage.DatabaseFile)),
		Activities:        st.ActivityCount,
		FetchedPages:      st.FetchedCount,
		FetchErrors:       st.FetchErrorCount,
		SearchIndexed:     counts.SearchPages,
		EntityIndexed:     counts.EntityPages,
		NewestHistory:     st.Latest,
		OldestHistory:     st.Oldest,
	}
	if c.Browser != "" {
		b, err := e.archive.GetBrowser(ctx, c.Browser)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return err
		default:
			out.Browser = &browserJSON{
				ID:        b.ID,
				UserAgent: b.UserAgent,
				Connected: b.Connected,
				Testing:   b.Testing,
				Autofetch: b.Autofetch,
			}
		}
	}
	if wantJSON(c.globals) {
		return printJSON(out)
	}
	c.printHuman(out)
	return nil
}

func (c *StatusCommand) printHuman(s statusJSON) {
	fmt.Println("Browsing Lab Status")
	fmt.Println("===================")
	fmt.Printf("Version:       %s\n", s.Version)
	fmt.Printf("Archive:       %s\n", s.ArchivePath)
	if s.Title != "" {
		fmt.Printf("Title:         %s\n", s.Title)
	}
	fmt.Printf("Database:      %s\n", formatBytes(s.DatabaseSizeBytes))
	fmt.Printf("Activities:    %s\n", formatNumber(s.Activities))

	if s.Activities > 0 {
		pct := float64(s.FetchedPages) / float64(s.Activities) * 100
		fmt.Printf("Pages:         %s (%.1f%% of activities)\n", formatNumber(s.FetchedPages), pct)
	} else {
		fmt.Printf("Pages:         %s\n", formatNumber(s.FetchedPages))
	}
	fmt.Printf("Fetch errors:  %s\n", formatNumber(s.FetchErrors))

	if c.Browser != "" {
		fmt.Println()
		fmt.Printf("History of %s:\n", c.Browser)
		if s.Browser != nil {
			fmt.Printf("  User agent:  %s\n", s.Browser.UserAgent)
			fmt.Printf("  Connected:   %t\n", s.Browser.Connected)
		}
		fmt.Printf("  Oldest:      %s\n", formatMillis(s.OldestHistory))
		fmt.Printf("  Newest:      %s\n", formatMillis(s.NewestHistory))
	}

	fmt.Println()
	fmt.Printf("Search index:  %s pages\n", formatNumber(s.SearchIndexed))
	fmt.Printf("Entity index:  %s pages\n", formatNumber(s.EntityIndexed))
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
