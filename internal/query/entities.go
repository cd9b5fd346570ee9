package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/runnerr0/browsinglab/internal/htmltext"
	"github.com/runnerr0/browsinglab/internal/nlp"
)

// NoEntity is stored for a page in which the recognizer found nothing, so
// incremental runs do not revisit it.
const NoEntity = "no-entity"

// EntityHit is one recognised entity located in a page.
type EntityHit struct {
	Entity   string
	Label    string
	URL      string
	Selector string
}

// IndexProgress is reported after each page of CreateEntityIndex.
type IndexProgress struct {
	Done     int
	Total    int
	URL      string
	Entities int
	Elements int
}

// PageEntities runs the recognizer over every block of the page body.
// Entities are de-duplicated within a block and those without a letter are
// dropped. A page with no entity gives a single NoEntity hit on body.
func PageEntities(p *Page, rec nlp.Recognizer) ([]EntityHit, error) {
	blob, err := p.LoadContent()
	if err != nil {
		return nil, err
	}
	doc, err := blob.Document()
	if err != nil {
		return nil, err
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return []EntityHit{{Entity: NoEntity, URL: p.URL, Selector: "body"}}, nil
	}

	var hits []EntityHit
	for _, block := range htmltext.BlockLevelText(body.Get(0)) {
		ents, err := rec.Entities(htmltext.NormalizeSpace(block.Text))
		if err != nil {
			return nil, fmt.Errorf("recognize entities in %s: %w", p.URL, err)
		}
		seen := make(map[string]bool)
		selector := ""
		for _, e := range ents {
			if seen[e.Text] {
				continue
			}
			seen[e.Text] = true
			if !nlp.IsGoodEntity(e.Text) {
				continue
			}
			if selector == "" {
				selector = htmltext.ElementToCSS(block.Node)
			}
			hits = append(hits, EntityHit{Entity: e.Text, Label: e.Label, URL: p.URL, Selector: selector})
		}
	}
	if len(hits) == 0 {
		hits = append(hits, EntityHit{Entity: NoEntity, URL: p.URL, Selector: "body"})
	}
	return hits, nil
}

// CreateEntityIndex fills entity_index and returns the number of pages
// indexed. Each page is written in its own transaction. With purge the
// index is emptied first; otherwise pages already present are skipped.
// progress may be nil.
func (r *Reader) CreateEntityIndex(ctx context.Context, rec nlp.Recognizer, purge bool, progress func(IndexProgress)) (int, error) {
	existing, err := r.indexedURLs(ctx, `SELECT DISTINCT url FROM entity_index`, purge, `DELETE FROM entity_index`)
	if err != nil {
		return 0, err
	}
	all, err := r.HistoriesWithPage(ctx)
	if err != nil {
		return 0, err
	}
	var todo []*History
	for _, h := range all {
		if !existing[h.URL] && !r.exclude.Excluded(h.URL) {
			todo = append(todo, h)
		}
	}

	count := 0
	for i, h := range todo {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		hits, err := PageEntities(h.Page, rec)
		if err != nil {
			r.logger.Warn("skipping page", "url", h.URL, "error", err)
			continue
		}
		if err := r.insertEntities(ctx, hits); err != nil {
			return count, err
		}
		count++
		if progress != nil {
			progress(IndexProgress{
				Done:     i + 1,
				Total:    len(todo),
				URL:      h.URL,
				Entities: len(hits),
				Elements: distinctSelectors(hits),
			})
		}
	}
	return count, nil
}

func (r *Reader) insertEntities(ctx context.Context, hits []EntityHit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entity transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entity_index (entity, entity_label, url, selector) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare entity insert: %w", err)
	}
	defer stmt.Close()

	for _, h := range hits {
		if _, err := stmt.ExecContext(ctx, h.Entity, emptyToNil(h.Label), h.URL, h.Selector); err != nil {
			return fmt.Errorf("insert entity %q: %w", h.Entity, err)
		}
	}
	return tx.Commit()
}

func distinctSelectors(hits []EntityHit) int {
	seen := make(map[string]bool)
	for _, h := range hits {
		seen[h.Selector] = true
	}
	return len(seen)
}

// EntityCount is an entity and the number of rows naming it.
type EntityCount struct {
	Entity string `json:"entity"`
	Count  int64  `json:"count"`
}

// LabelTotals counts entity rows per label.
type LabelTotals struct {
	Per     int64 `json:"per"`
	Loc     int64 `json:"loc"`
	Org     int64 `json:"org"`
	Misc    int64 `json:"misc"`
	Unknown int64 `json:"unknown"`
}

// EntitySummary describes the contents of entity_index.
type EntitySummary struct {
	DistinctEntities int64         `json:"distinct_entities"`
	TotalEntities    int64         `json:"total_entities"`
	DistinctURLs     int64         `json:"distinct_urls"`
	TotalLabels      LabelTotals   `json:"total_labels"`
	MostCommon       []EntityCount `json:"most_common_entities,omitempty"`
}

// SummarizeEntities counts the entity index. When mostCommon > 0 the most
// frequent entities are listed as well.
func (r *Reader) SummarizeEntities(ctx context.Context, mostCommon int) (*EntitySummary, error) {
	s := &EntitySummary{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT entity) FROM entity_index),
			(SELECT COUNT(*) FROM entity_index),
			(SELECT COUNT(DISTINCT url) FROM entity_index),
			(SELECT COUNT(*) FROM entity_index WHERE entity_label = 'PER'),
			(SELECT COUNT(*) FROM entity_index WHERE entity_label = 'LOC'),
			(SELECT COUNT(*) FROM entity_index WHERE entity_label = 'ORG'),
			(SELECT COUNT(*) FROM entity_index WHERE entity_label = 'MISC'),
			(SELECT COUNT(*) FROM entity_index
				WHERE entity_label IS NULL OR entity_label NOT IN ('PER', 'LOC', 'ORG', 'MISC'))
	`).Scan(&s.DistinctEntities, &s.TotalEntities, &s.DistinctURLs,
		&s.TotalLabels.Per, &s.TotalLabels.Loc, &s.TotalLabels.Org, &s.TotalLabels.Misc, &s.TotalLabels.Unknown)
	if err != nil {
		return nil, fmt.Errorf("summarize entities: %w", err)
	}
	if mostCommon <= 0 {
		return s, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT entity, COUNT(url) FROM entity_index
		GROUP BY entity
		ORDER BY COUNT(url) DESC, entity ASC
		LIMIT ?
	`, mostCommon)
	if err != nil {
		return nil, fmt.Errorf("most common entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c EntityCount
		if err := rows.Scan(&c.Entity, &c.Count); err != nil {
			return nil, fmt.Errorf("scan entity count: %w", err)
		}
		s.MostCommon = append(s.MostCommon, c)
	}
	return s, rows.Err()
}

// SearchEntities finds index rows for entity. With wildcard the match is a
// case-insensitive substring match; label, when set, must match exactly.
func (r *Reader) SearchEntities(ctx context.Context, entity, label string, wildcard bool) ([]EntityHit, error) {
	where := "entity = ?"
	args := []any{entity}
	if wildcard {
		where = "LOWER(entity) LIKE ?"
		args = []any{"%" + strings.ToLower(entity) + "%"}
	}
	if label != "" {
		where += " AND entity_label = ?"
		args = append(args, label)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity, COALESCE(entity_label, ''), url, selector FROM entity_index WHERE `+where+` ORDER BY rowid`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}
	defer rows.Close()

	var out []EntityHit
	for rows.Next() {
		var h EntityHit
		if err := rows.Scan(&h.Entity, &h.Label, &h.URL, &h.Selector); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Domain is the normalised domain of the hit's URL.
func (h EntityHit) Domain() string { return Domain(h.URL) }

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
