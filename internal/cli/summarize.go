package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/browsinglab/internal/nlp"
	"github.com/runnerr0/browsinglab/internal/query"
)

// Execute implements the go-flags Commander interface for SummarizeCommand.
func (c *SummarizeCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	detector, err := nlp.NewLinguaDetector(e.cfg.Entities.Languages)
	if err != nil {
		return err
	}
	return c.run(ctx, e, nlp.NewFrequencySummarizer(detector), args)
}

func (c *SummarizeCommand) run(ctx context.Context, e *env, s nlp.Summarizer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("summarize requires exactly one URL")
	}
	url := args[0]

	p, ok, err := e.reader.Page(ctx, url)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no stored page for %s", url)
	}

	n := c.Sentences
	if n <= 0 {
		n = e.cfg.Summary.Sentences
	}
	sentences, err := query.Summarize(p, s, n)
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"url":       url,
			"sentences": sentences,
			"summary":   nlp.JoinSentences(sentences),
		})
	}
	if c.Paragraph {
		fmt.Println(nlp.JoinSentences(sentences))
		return nil
	}
	for _, line := range sentences {
		fmt.Println(line)
	}
	return nil
}
