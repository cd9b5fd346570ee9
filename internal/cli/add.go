package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"os"

	"github.com/google/uuid"

	"github.com/runnerr0/browsinglab/internal/storage"
)

// manualPage is the page blob written for a page stored by hand.
type manualPage struct {
	URL      string `json:"url"`
	DocTitle string `json:"docTitle"`
	Head     string `json:"head"`
	Body     string `json:"body"`
}

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for add command")
	}
	if c.Title == "" {
		return fmt.Errorf("--title is required for add command")
	}

	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e)
}

func (c *AddCommand) run(ctx context.Context, e *env) error {
	// Validate URL format
	parsed, err := url.ParseRequestURI(c.URL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s", c.URL)
	}

	// Body and body-file are mutually exclusive
	if c.Body != "" && c.BodyFile != "" {
		return fmt.Errorf("--body and --body-file are mutually exclusive")
	}

	body := c.Body
	if c.BodyFile != "" {
		data, err := os.ReadFile(c.BodyFile)
		if err != nil {
			return fmt.Errorf("reading body file: %w", err)
		}
		body = string(data)
	}

	if e.exclude.Excluded(c.URL) {
		return fmt.Errorf("%s is excluded by exclusion rules", c.URL)
	}

	content, err := json.Marshal(manualPage{
		URL:      c.URL,
		DocTitle: c.Title,
		Head:     "<title>" + html.EscapeString(c.Title) + "</title>",
		Body:     body,
	})
	if err != nil {
		return err
	}
	id := uuid.NewString()
	if err := e.archive.AddFetchedPage(ctx, storage.FetchedPage{ID: id, URL: c.URL, Content: content}); err != nil {
		return fmt.Errorf("storing page: %w", err)
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"id":    id,
			"url":   c.URL,
			"title": c.Title,
			"body":  body != "",
			"path":  e.archive.PagePath(c.URL),
		})
	}

	hasBody := "no"
	if body != "" {
		hasBody = "yes"
	}
	fmt.Printf("Added page %s\n", id)
	fmt.Printf("  URL: %s\n", c.URL)
	fmt.Printf("  Title: %s\n", c.Title)
	fmt.Printf("  Body: %s\n", hasBody)
	return nil
}
