package cli

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/runnerr0/browsinglab/internal/query"
)

// Execute implements the go-flags Commander interface for SampleCommand.
func (c *SampleCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e, args)
}

func (c *SampleCommand) run(ctx context.Context, e *env, args []string) error {
	n := 10
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid sample size %q", args[0])
		}
		n = v
	}

	opts := query.SampleOptions{
		UniquePattern: c.UniquePattern,
		UniqueDomain:  c.UniqueDomain,
	}
	if c.Seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(uint64(c.Seed), uint64(c.Seed)))
	}

	histories, err := e.reader.Sample(ctx, n, opts)
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		out := make([]searchResultJSON, 0, len(histories))
		for _, h := range histories {
			out = append(out, searchResultJSON{URL: h.URL, Title: h.Title, Domain: h.Domain()})
		}
		return printJSON(out)
	}
	for _, h := range histories {
		fmt.Printf("%s\t%s\n", h.URL, h.Title)
	}
	return nil
}
