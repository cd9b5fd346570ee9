package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/runnerr0/browsinglab/internal/query"
)

// SearchTool handles search_pages.
type SearchTool struct {
	reader *query.Reader
	limit  int
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(r *query.Reader, limit int) *SearchTool {
	return &SearchTool{reader: r, limit: limit}
}

// Definition returns the search_pages tool schema.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search over the fetched pages in the archive. Matches titles, "+
			"URL words, readable text, bylines, descriptions and the full page text."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Words to search for. Each word matches as a prefix."),
		),
		mcp.WithBoolean("raw",
			mcp.Description("Treat query as raw FTS5 syntax (column filters, NEAR, AND/OR)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default 10)"),
		),
	)
}

// Handle runs the search.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := req.GetString("query", "")
	if strings.TrimSpace(q) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	if !boolArg(req, "raw", false) {
		q = query.PrefixQuery(q)
	}

	res, err := t.reader.Search(ctx, q, intArg(req, "limit", t.limit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if res.Len() == 0 {
		return mcp.NewToolResultText("No pages found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d pages:\n\n", res.Len())
	for i := range res.URLs {
		h, err := res.History(ctx, i)
		if err != nil {
			fmt.Fprintf(&b, "[%d] %s\n\n", i+1, res.URLs[i])
			continue
		}
		fmt.Fprintf(&b, "[%d] %s\n    %s\n", i+1, h.Title, h.URL)
		if len(h.Activities) > 0 && h.Activities[0].LoadTime != nil {
			fmt.Fprintf(&b, "    last visited %s\n", h.Activities[0].LoadTimeAt().UTC().Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// EntitySearchTool handles search_entities.
type EntitySearchTool struct {
	reader *query.Reader
	limit  int
}

// NewEntitySearchTool creates an EntitySearchTool.
func NewEntitySearchTool(r *query.Reader, limit int) *EntitySearchTool {
	return &EntitySearchTool{reader: r, limit: limit}
}

// Definition returns the search_entities tool schema.
func (t *EntitySearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_entities",
		mcp.WithDescription("Find pages mentioning a named entity from the entity index."),
		mcp.WithString("entity",
			mcp.Required(),
			mcp.Description("Entity text, e.g. a person or place name"),
		),
		mcp.WithString("label",
			mcp.Description("Restrict to a label: PER, LOC, ORG or MISC"),
		),
		mcp.WithBoolean("wildcard",
			mcp.Description("Case-insensitive substring match instead of exact match"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default 10)"),
		),
	)
}

// Handle runs the entity search.
func (t *EntitySearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity := req.GetString("entity", "")
	if entity == "" {
		return mcp.NewToolResultError("'entity' is required"), nil
	}
	hits, err := t.reader.SearchEntities(ctx, entity, req.GetString("label", ""), boolArg(req, "wildcard", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("entity search failed: %v", err)), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No pages mention %q.", entity)), nil
	}

	limit := intArg(req, "limit", t.limit)
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d mentions:\n\n", len(hits))
	for i, h := range hits {
		if i >= limit {
			fmt.Fprintf(&b, "... %d more\n", len(hits)-limit)
			break
		}
		label := h.Label
		if label == "" {
			label = "?"
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n    %s\n    at %s\n\n", i+1, h.Entity, label, h.URL, h.Selector)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// EntityStatsTool handles entity_stats.
type EntityStatsTool struct {
	reader *query.Reader
}

// NewEntityStatsTool creates an EntityStatsTool.
func NewEntityStatsTool(r *query.Reader) *EntityStatsTool {
	return &EntityStatsTool{reader: r}
}

// Definition returns the entity_stats tool schema.
func (t *EntityStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("entity_stats",
		mcp.WithDescription("Counts of the entity index, optionally with the most common entities."),
		mcp.WithNumber("most_common",
			mcp.Description("Also list this many of the most frequent entities"),
		),
	)
}

// Handle summarises the entity index as JSON.
func (t *EntityStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := t.reader.SummarizeEntities(ctx, intArg(req, "most_common", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("entity stats failed: %v", err)), nil
	}
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// QueriesTool handles search_queries.
type QueriesTool struct {
	reader *query.Reader
	limit  int
}

// NewQueriesTool creates a QueriesTool.
func NewQueriesTool(r *query.Reader, limit int) *QueriesTool {
	return &QueriesTool{reader: r, limit: limit}
}

// Definition returns the search_queries tool schema.
func (t *QueriesTool) Definition() mcp.Tool {
	return mcp.NewTool("search_queries",
		mcp.WithDescription("Recent web searches found in the browsing history, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default 10)"),
		),
	)
}

// Handle lists the queries.
func (t *QueriesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	qs, err := t.reader.FindQueries(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("finding queries failed: %v", err)), nil
	}
	if len(qs) == 0 {
		return mcp.NewToolResultText("No search queries recorded."), nil
	}
	limit := intArg(req, "limit", t.limit)
	var b strings.Builder
	for i, q := range qs {
		if i >= limit {
			break
		}
		fmt.Fprintf(&b, "[%d] %s\n    %s\n", i+1, q.Query, truncate(q.Activity.URL, 200))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// StatusTool handles archive_status.
type StatusTool struct {
	reader *query.Reader
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(r *query.Reader) *StatusTool {
	return &StatusTool{reader: r}
}

// Definition returns the archive_status tool schema.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("archive_status",
		mcp.WithDescription("Archive location, title and record counts."),
	)
}

// Handle reports counts.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := t.reader.Archive()
	st, err := a.Status(ctx, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}
	title, _ := a.Title()

	var b strings.Builder
	fmt.Fprintf(&b, "Archive: %s\n", a.Path())
	if title != "" {
		fmt.Fprintf(&b, "Title:   %s\n", title)
	}
	fmt.Fprintf(&b, "Activities:   %d\n", st.ActivityCount)
	fmt.Fprintf(&b, "Pages:        %d\n", st.FetchedCount)
	fmt.Fprintf(&b, "Fetch errors: %d\n", st.FetchErrorCount)
	return mcp.NewToolResultText(b.String()), nil
}
