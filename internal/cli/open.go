package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/runnerr0/browsinglab/internal/htmltext"
	"github.com/runnerr0/browsinglab/internal/query"
)

// Execute implements the go-flags Commander interface for OpenCommand.
func (c *OpenCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e, args)
}

func (c *OpenCommand) run(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("open requires exactly one URL")
	}
	url := args[0]

	p, ok, err := e.reader.Page(ctx, url)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no stored page for %s", url)
	}
	blob, err := p.LoadContent()
	if err != nil {
		return err
	}
	annotations, err := p.LoadAnnotations()
	if err != nil {
		return err
	}

	format := c.Format
	if wantJSON(c.globals) {
		format = "json"
	}
	switch format {
	case "json":
		return c.outputJSON(p, blob, annotations)
	case "html":
		fmt.Println(blob.HTML())
		return nil
	case "text", "":
		return c.outputText(p, blob, annotations)
	default:
		return fmt.Errorf("unknown --format %q (use text, html or json)", c.Format)
	}
}

func (c *OpenCommand) outputText(p *query.Page, blob *htmltext.Blob, annotations map[string]any) error {
	doc, err := blob.Document()
	if err != nil {
		return err
	}
	fmt.Printf("Title:     %s\n", blob.Title())
	fmt.Printf("URL:       %s\n", p.URL)
	if p.RedirectURL != nil {
		fmt.Printf("Redirect:  %s\n", *p.RedirectURL)
	}
	fmt.Printf("Fetched:   %s\n", p.Fetched.Local().Format("2006-01-02 15:04:05"))
	if len(annotations) > 0 {
		keys := make([]string, 0, len(annotations))
		for k := range annotations {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("Annotated: %s\n", strings.Join(keys, ", "))
	}
	fmt.Println()
	fmt.Println("--- Content ---")
	text := htmltext.FullText(doc)
	if text == "" {
		fmt.Println("No text content")
	} else {
		fmt.Println(text)
	}
	return nil
}

func (c *OpenCommand) outputJSON(p *query.Page, blob *htmltext.Blob, annotations map[string]any) error {
	out := map[string]any{
		"id":      p.ID,
		"url":     p.URL,
		"title":   blob.Title(),
		"fetched": p.Fetched.UTC().Format("2006-01-02T15:04:05Z"),
		"page":    blob,
	}
	if len(annotations) > 0 {
		out["annotations"] = annotations
	}
	if p.RedirectURL != nil {
		out["redirect_url"] = *p.RedirectURL
	}
	if p.TimeToFetch != nil {
		out["time_to_fetch"] = *p.TimeToFetch
	}
	return printJSON(out)
}
