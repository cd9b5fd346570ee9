package cli

import (
	"context"
	"fmt"
	"time"
)

// queryJSON is one web search in JSON output.
type queryJSON struct {
	Query      string `json:"query"`
	URL        string `json:"url"`
	LoadTime   *int64 `json:"load_time,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	ActivityID string `json:"activity_id"`
}

// Execute implements the go-flags Commander interface for QueriesCommand.
func (c *QueriesCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e, time.Now())
}

func (c *QueriesCommand) run(ctx context.Context, e *env, now time.Time) error {
	var since int64
	if c.Since != "" {
		dur, err := parseDuration(c.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		since = now.Add(-dur).UnixMilli()
	}

	found, err := e.reader.FindQueries(ctx)
	if err != nil {
		return err
	}

	var out []queryJSON
	for _, q := range found {
		if c.Limit > 0 && len(out) >= c.Limit {
			break
		}
		lt := q.Activity.LoadTime
		if since > 0 && (lt == nil || *lt < since) {
			continue
		}
		item := queryJSON{
			Query:      q.Query,
			URL:        q.Activity.URL,
			LoadTime:   lt,
			ActivityID: q.Activity.ID,
		}
		if q.Source != nil {
			item.SourceURL = q.Source.URL
		}
		out = append(out, item)
	}

	if wantJSON(c.globals) {
		if out == nil {
			out = []queryJSON{}
		}
		return printJSON(out)
	}
	if len(out) == 0 {
		fmt.Println("No searches found.")
		return nil
	}
	for _, q := range out {
		fmt.Printf("%s  %s\n", formatMillis(q.LoadTime), q.Query)
	}
	return nil
}

// feedJSON is one feed in JSON output.
type feedJSON struct {
	URL     string   `json:"url"`
	Title   string   `json:"title,omitempty"`
	Type    string   `json:"type,omitempty"`
	Pages   []string `json:"pages"`
	Fetched bool     `json:"fetched"`
}

// Execute implements the go-flags Commander interface for FeedsCommand.
func (c *FeedsCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e)
}

func (c *FeedsCommand) run(ctx context.Context, e *env) error {
	feeds, err := e.reader.Feeds(ctx)
	if err != nil {
		return err
	}

	out := make([]feedJSON, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, feedJSON{
			URL:     f.URL,
			Title:   f.Title,
			Type:    f.Type,
			Pages:   f.Pages,
			Fetched: f.Body != "",
		})
	}

	if wantJSON(c.globals) {
		return printJSON(out)
	}
	if len(out) == 0 {
		fmt.Println("No feeds found.")
		return nil
	}
	for _, f := range out {
		title := f.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s\n  %s  [%s, linked from %d pages]\n", title, f.URL, f.Type, len(f.Pages))
	}
	return nil
}
