package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/runnerr0/browsinglab/internal/query"
)

// searchResultJSON is one search hit in JSON output.
type searchResultJSON struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
}

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e, args)
}

func (c *SearchCommand) run(ctx context.Context, e *env, args []string) error {
	input := strings.TrimSpace(strings.Join(args, " "))
	if input == "" {
		return fmt.Errorf("search requires a query")
	}

	q := input
	if !c.Raw {
		q = query.PrefixQuery(input)
	}
	limit := c.Limit
	if limit == 0 {
		limit = e.cfg.Search.DefaultLimit
	}

	res, err := e.reader.Search(ctx, q, limit)
	if err != nil {
		return err
	}

	results := make([]searchResultJSON, 0, res.Len())
	for i := 0; i < res.Len(); i++ {
		h, err := res.History(ctx, i)
		if err != nil {
			return err
		}
		results = append(results, searchResultJSON{URL: h.URL, Title: h.Title, Domain: h.Domain()})
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"query":   res.Query,
			"count":   len(results),
			"results": results,
		})
	}

	if len(results) == 0 {
		fmt.Printf("No results for %q\n", input)
		return nil
	}
	fmt.Printf("%d results for %q\n\n", len(results), input)
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%3d. %s\n     %s\n", i+1, title, r.URL)
	}
	return nil
}

// entityHitJSON is one entity search hit in JSON output.
type entityHitJSON struct {
	Entity   string `json:"entity"`
	Label    string `json:"label"`
	URL      string `json:"url"`
	Selector string `json:"selector"`
}

// Execute implements the go-flags Commander interface for EntitySearchCommand.
func (c *EntitySearchCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e, args)
}

func (c *EntitySearchCommand) run(ctx context.Context, e *env, args []string) error {
	entity := strings.TrimSpace(strings.Join(args, " "))
	if entity == "" {
		return fmt.Errorf("entity-search requires an entity")
	}
	label := strings.ToUpper(c.Label)
	switch label {
	case "", "PER", "LOC", "ORG", "MISC":
	default:
		return fmt.Errorf("invalid --label %q (use PER, LOC, ORG or MISC)", c.Label)
	}

	hits, err := e.reader.SearchEntities(ctx, entity, label, c.Wildcard)
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		out := make([]entityHitJSON, 0, len(hits))
		for _, h := range hits {
			out = append(out, entityHitJSON(h))
		}
		return printJSON(map[string]any{
			"entity":  entity,
			"count":   len(out),
			"results": out,
		})
	}

	if len(hits) == 0 {
		fmt.Printf("No pages mention %q\n", entity)
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%-4s %s\n     %s  %s\n", h.Label, h.Entity, h.URL, h.Selector)
	}
	return nil
}

// Execute implements the go-flags Commander interface for EntityStatsCommand.
func (c *EntityStatsCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.run(ctx, e)
}

func (c *EntityStatsCommand) run(ctx context.Context, e *env) error {
	s, err := e.reader.SummarizeEntities(ctx, c.MostCommon)
	if err != nil {
		return err
	}
	if wantJSON(c.globals) {
		return printJSON(s)
	}

	fmt.Printf("Distinct entities: %s\n", formatNumber(s.DistinctEntities))
	fmt.Printf("Total entities:    %s\n", formatNumber(s.TotalEntities))
	fmt.Printf("Pages:             %s\n", formatNumber(s.DistinctURLs))
	fmt.Println()
	fmt.Printf("  PER   %s\n", formatNumber(s.TotalLabels.Per))
	fmt.Printf("  LOC   %s\n", formatNumber(s.TotalLabels.Loc))
	fmt.Printf("  ORG   %s\n", formatNumber(s.TotalLabels.Org))
	fmt.Printf("  MISC  %s\n", formatNumber(s.TotalLabels.Misc))
	if s.TotalLabels.Unknown > 0 {
		fmt.Printf("  ?     %s\n", formatNumber(s.TotalLabels.Unknown))
	}
	if len(s.MostCommon) > 0 {
		fmt.Println()
		fmt.Println("Most common:")
		for _, ec := range s.MostCommon {
			fmt.Printf("  %6s  %s\n", formatNumber(ec.Count), ec.Entity)
		}
	}
	return nil
}
