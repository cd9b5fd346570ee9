package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/runnerr0/browsinglab/internal/nlp"
	"github.com/runnerr0/browsinglab/internal/query"
)

// Execute implements the go-flags Commander interface for IndexCommand.
func (c *IndexCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e)
}

func (c *IndexCommand) run(ctx context.Context, e *env) error {
	n, err := e.reader.CreateIndex(ctx, c.Purge)
	if err != nil {
		return fmt.Errorf("build search index: %w", err)
	}
	counts, err := e.reader.IndexCounts(ctx)
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"indexed": n,
			"total":   counts.SearchPages,
		})
	}
	fmt.Printf("Indexed %s pages (%s in index).\n", formatNumber(int64(n)), formatNumber(counts.SearchPages))
	return nil
}

// Execute implements the go-flags Commander interface for EntitiesCommand.
func (c *EntitiesCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e, nlp.NewProseRecognizer())
}

func (c *EntitiesCommand) run(ctx context.Context, e *env, rec nlp.Recognizer) error {
	var progress func(query.IndexProgress)
	if c.globals.Verbose {
		progress = func(p query.IndexProgress) {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s: %d entities in %d elements\n",
				p.Done, p.Total, p.URL, p.Entities, p.Elements)
		}
	}

	n, err := e.reader.CreateEntityIndex(ctx, rec, c.Purge, progress)
	if err != nil {
		return fmt.Errorf("build entity index: %w", err)
	}
	counts, err := e.reader.IndexCounts(ctx)
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"indexed": n,
			"total":   counts.EntityPages,
		})
	}
	fmt.Printf("Indexed entities of %s pages (%s in index).\n", formatNumber(int64(n)), formatNumber(counts.EntityPages))
	return nil
}
