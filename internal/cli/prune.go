package cli

import (
	"context"
	"fmt"
	"time"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e, time.Now())
}

func (c *PruneCommand) run(ctx context.Context, e *env, now time.Time) error {
	dur, err := parseDuration(c.OlderThan)
	if err != nil {
		return fmt.Errorf("invalid --older-than value %q: %w", c.OlderThan, err)
	}
	cutoff := now.Add(-dur)

	n, err := e.archive.PruneFetchErrors(ctx, cutoff, c.DryRun)
	if err != nil {
		return err
	}
	if !c.DryRun && n > 0 {
		e.logger.Info("pruned fetch errors", "count", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"pruned":  n,
			"dry_run": c.DryRun,
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
		})
	}
	if c.DryRun {
		fmt.Printf("Would forget %s fetch failures older than %s.\n", formatNumber(n), c.OlderThan)
		return nil
	}
	fmt.Printf("Forgot %s fetch failures older than %s.\n", formatNumber(n), c.OlderThan)
	return nil
}
