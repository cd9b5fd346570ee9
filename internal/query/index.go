package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/runnerr0/browsinglab/internal/htmltext"
)

// IndexFields is one search_index row.
type IndexFields struct {
	URL             string
	URLWords        string
	Title           string
	Readable        string
	ReadableByline  string
	ReadableExcerpt string
	MetaDescription string
	FullText        string
}

// PageFields extracts the searchable text of a page.
func PageFields(p *Page) (IndexFields, error) {
	blob, err := p.LoadContent()
	if err != nil {
		return IndexFields{}, err
	}
	doc, err := blob.Document()
	if err != nil {
		return IndexFields{}, err
	}
	readable, err := htmltext.ReadableText(blob)
	if err != nil {
		return IndexFields{}, err
	}
	f := IndexFields{
		URL:             p.URL,
		URLWords:        strings.Join(htmltext.URLWords(p.URL), " "),
		Title:           blob.Title(),
		Readable:        readable,
		MetaDescription: htmltext.MetaDescription(doc),
		FullText:        htmltext.FullText(doc),
	}
	if blob.Readable != nil {
		f.ReadableByline = blob.Readable.Byline
		f.ReadableExcerpt = blob.Readable.Excerpt
	}
	return f, nil
}

// CreateIndex fills search_index from every stored page and returns the
// number of pages added. With purge the index is emptied first; otherwise
// URLs already indexed are skipped. Rows are committed one at a time so an
// interrupted run keeps its progress.
func (r *Reader) CreateIndex(ctx context.Context, purge bool) (int, error) {
	existing, err := r.indexedURLs(ctx, `SELECT url FROM search_index`, purge, `DELETE FROM search_index`)
	if err != nil {
		return 0, err
	}
	histories, err := r.HistoriesWithPage(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, h := range histories {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if existing[h.URL] || r.exclude.Excluded(h.URL) {
			continue
		}
		f, err := PageFields(h.Page)
		if err != nil {
			r.logger.Warn("skipping page", "url", h.URL, "error", err)
			continue
		}
		if f.Title == "" {
			f.Title = h.Title
		}
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO search_index
				(url, url_words, title, readable, readable_byline, readable_excerpt, meta_description, full_text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, f.URL, f.URLWords, f.Title, f.Readable, f.ReadableByline, f.ReadableExcerpt, f.MetaDescription, f.FullText)
		if err != nil {
			return count, fmt.Errorf("index %s: %w", h.URL, err)
		}
		count++
		r.logger.Debug("indexed page", "url", h.URL)
	}
	return count, nil
}

// indexedURLs either purges a derived table or lists the URLs it already holds.
func (r *Reader) indexedURLs(ctx context.Context, listSQL string, purge bool, purgeSQL string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if purge {
		if _, err := r.db.ExecContext(ctx, purgeSQL); err != nil {
			return nil, fmt.Errorf("purge index: %w", err)
		}
		return existing, nil
	}
	rows, err := r.db.QueryContext(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("list indexed urls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan indexed url: %w", err)
		}
		existing[url] = true
	}
	return existing, rows.Err()
}

// PrefixQuery turns plain words into an FTS5 query where each word is a
// quoted prefix term and the terms are OR'ed.
func PrefixQuery(input string) string {
	words := strings.Fields(input)
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, `"`+strings.ReplaceAll(w, `"`, `""`)+`"*`)
	}
	return strings.Join(parts, " OR ")
}

// SearchResult is the ordered list of URLs matching a query. Histories are
// loaded on request with History.
type SearchResult struct {
	Query string
	URLs  []string

	reader    *Reader
	histories map[string]*History
}

// Len is the number of matching URLs.
func (s *SearchResult) Len() int { return len(s.URLs) }

// History loads the history of the i-th result, caching it.
func (s *SearchResult) History(ctx context.Context, i int) (*History, error) {
	if i < 0 || i >= len(s.URLs) {
		return nil, fmt.Errorf("search result index %d out of range [0,%d)", i, len(s.URLs))
	}
	url := s.URLs[i]
	if h, ok := s.histories[url]; ok {
		return h, nil
	}
	h, err := s.reader.History(ctx, url)
	if err != nil {
		return nil, err
	}
	s.histories[url] = h
	return h, nil
}

// Search runs an FTS5 MATCH query over search_index, best match first.
// limit <= 0 returns every match.
func (r *Reader) Search(ctx context.Context, q string, limit int) (*SearchResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT url FROM search_index WHERE search_index MATCH ? ORDER BY rank LIMIT ?
	`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	defer rows.Close()

	res := &SearchResult{Query: q, reader: r, histories: make(map[string]*History)}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		res.URLs = append(res.URLs, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	return res, nil
}

// IndexCounts is the number of pages in each derived index.
type IndexCounts struct {
	SearchPages int64 `json:"search_pages"`
	EntityPages int64 `json:"entity_pages"`
}

// IndexCounts counts the pages held by search_index and entity_index.
func (r *Reader) IndexCounts(ctx context.Context) (IndexCounts, error) {
	var c IndexCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM search_index),
			(SELECT COUNT(DISTINCT url) FROM entity_index)
	`).Scan(&c.SearchPages, &c.EntityPages)
	if err != nil {
		return c, fmt.Errorf("count indexes: %w", err)
	}
	return c, nil
}

// PurgeIndexes empties search_index and entity_index. Both are rebuilt by
// CreateIndex and CreateEntityIndex.
func (r *Reader) PurgeIndexes(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin purge: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{`DELETE FROM search_index`, `DELETE FROM entity_index`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge indexes: %w", err)
		}
	}
	return tx.Commit()
}
