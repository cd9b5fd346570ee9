package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// activityColumns is the full, fixed column list written by AddActivityList.
var activityColumns = []string{
	"id", "browserId", "sessionId", "url", "title", "ogTitle",
	"loadTime", "unloadTime", "transitionType", "sourceClickText", "sourceClickHref",
	"clientRedirect", "serverRedirect", "forwardBack", "fromAddressBar",
	"sourceId", "initialLoadId", "newTab", "activeCount", "activeTime",
	"closedReason", "method", "statusCode", "contentType", "hasSetCookie",
	"hasCookie", "copyEvents", "formControlInteraction", "formTextInteraction",
	"isHashChange", "maxScroll", "documentHeight", "hashPointsToElement",
	"zoomLevel", "canonicalUrl", "mainFeedUrl", "allFeeds",
}

// historyColumns is the subset written by AddHistoryList.
var historyColumns = []string{
	"id", "title", "browserId", "sessionId", "url", "browserHistoryId",
	"browserVisitId", "loadTime", "transitionType", "browserReferringVisitId",
	"sourceId",
}

var (
	activityUpsertSQL = upsertSQL("activity", activityColumns)
	historyUpsertSQL  = upsertSQL("activity", historyColumns)
)

// upsertSQL builds an INSERT that updates every listed column in place when
// the id already exists.
func upsertSQL(table string, columns []string) string {
	marks := make([]string, len(columns))
	var sets []string
	for i, c := range columns {
		marks[i] = "?"
		if c != "id" {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), strings.Join(marks, ", "), strings.Join(sets, ", "))
}

// AddHistoryList stores a batch of browser history visits as activities and
// returns the activity id assigned to each visit id. A visit already stored
// for the browser keeps its activity id. Referring visits are resolved within
// the batch first and then against stored activities; unresolved references
// are stored as NULL.
func (a *Archive) AddHistoryList(ctx context.Context, batch HistoryBatch) (map[string]string, error) {
	if batch.BrowserID == "" {
		return nil, fmt.Errorf("add history list: browserId is required")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	byVisit := tx.StmtContext(ctx, a.activityIDByVisit)
	defer byVisit.Close()

	historyIDs := sortedKeys(batch.HistoryItems)

	visitToID := make(map[string]string)
	for _, historyID := range historyIDs {
		for visitID := range batch.HistoryItems[historyID].Visits {
			id, err := lookupVisit(ctx, byVisit, batch.BrowserID, visitID)
			if err != nil {
				return nil, err
			}
			if id == "" {
				id = newActivityID()
			}
			visitToID[visitID] = id
		}
	}

	for _, historyID := range historyIDs {
		item := batch.HistoryItems[historyID]
		if item.URL == "" {
			return nil, fmt.Errorf("history item %s: url is required", historyID)
		}
		for _, visitID := range sortedKeys(item.Visits) {
			visit := item.Visits[visitID]

			var sourceID *string
			if ref := deref(visit.ReferringVisitID); ref != "" {
				if id, ok := visitToID[ref]; ok {
					sourceID = &id
				} else {
					id, err := lookupVisit(ctx, byVisit, batch.BrowserID, ref)
					if err != nil {
						return nil, err
					}
					if id != "" {
						sourceID = &id
					}
				}
			}

			_, err := tx.ExecContext(ctx, historyUpsertSQL,
				visitToID[visitID], item.Title, batch.BrowserID, emptyToNil(batch.SessionID),
				item.URL, historyID, visitID, visit.VisitTime, visit.Transition,
				visit.ReferringVisitID, sourceID,
			)
			if err != nil {
				return nil, fmt.Errorf("upsert history visit %s: %w", visitID, err)
			}
		}
	}

	if err := refreshHistoryBounds(ctx, tx, batch.BrowserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit history list: %w", err)
	}
	return visitToID, nil
}

// AddActivityList upserts a batch of activities with their outbound links.
// sourceId and initialLoadId must name an activity in the same batch or one
// already stored; anything else is stored as NULL.
func (a *Archive) AddActivityList(ctx context.Context, batch ActivityBatch) error {
	if batch.BrowserID == "" {
		return fmt.Errorf("add activity list: browserId is required")
	}

	inBatch := make(map[string]bool, len(batch.ActivityItems))
	for i, rec := range batch.ActivityItems {
		if rec.ID == "" {
			return fmt.Errorf("activity %d: id is required", i)
		}
		if rec.URL == "" {
			return fmt.Errorf("activity %s: url is required", rec.ID)
		}
		inBatch[rec.ID] = true
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	exists := tx.StmtContext(ctx, a.activityExists)
	defer exists.Close()

	resolve := func(ref *string) (*string, error) {
		id := deref(ref)
		if id == "" {
			return nil, nil
		}
		if inBatch[id] {
			return &id, nil
		}
		var n int
		if err := exists.QueryRowContext(ctx, id).Scan(&n); err != nil {
			return nil, fmt.Errorf("look up activity %s: %w", id, err)
		}
		if n == 0 {
			return nil, nil
		}
		return &id, nil
	}

	for _, rec := range batch.ActivityItems {
		sourceID, err := resolve(rec.SourceID)
		if err != nil {
			return err
		}
		initialLoadID, err := resolve(rec.InitialLoadID)
		if err != nil {
			return err
		}

		sessionID := batch.SessionID
		if sessionID == "" {
			sessionID = deref(rec.SessionID)
		}

		values := []any{
			rec.ID, batch.BrowserID, emptyToNil(sessionID), rec.URL, rec.Title, rec.OgTitle,
			rec.LoadTime, rec.UnloadTime, rec.TransitionType, rec.SourceClickText, rec.SourceClickHref,
			rec.ClientRedirect, rec.ServerRedirect, rec.ForwardBack, rec.FromAddressBar,
			sourceID, initialLoadID, rec.NewTab, rec.ActiveCount, rec.ActiveTime,
			rec.ClosedReason, rec.Method, rec.StatusCode, rec.ContentType, rec.HasSetCookie,
			rec.HasCookie, jsonColumn(rec.CopyEvents), rec.FormControlInteraction, rec.FormTextInteraction,
			rec.IsHashChange, rec.MaxScroll, rec.DocumentHeight, rec.HashPointsToElement,
			rec.ZoomLevel, rec.CanonicalURL, rec.MainFeedURL, jsonColumn(rec.AllFeeds),
		}
		if _, err := tx.ExecContext(ctx, activityUpsertSQL, values...); err != nil {
			return fmt.Errorf("upsert activity %s: %w", rec.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM activity_link WHERE activityId = ?`, rec.ID); err != nil {
			return fmt.Errorf("clear links of %s: %w", rec.ID, err)
		}
		for _, link := range rec.LinkInformation {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO activity_link (activityId, url, text, rel, target, elementId)
				VALUES (?, ?, ?, ?, ?, ?)
			`, rec.ID, link.URL, link.Text, link.Rel, link.Target, link.ElementID)
			if err != nil {
				return fmt.Errorf("insert link of %s: %w", rec.ID, err)
			}
		}
	}

	if err := refreshHistoryBounds(ctx, tx, batch.BrowserID); err != nil {
		return err
	}

	return tx.Commit()
}

func lookupVisit(ctx context.Context, stmt *sql.Stmt, browserID, visitID string) (string, error) {
	var id string
	err := stmt.QueryRowContext(ctx, browserID, visitID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up visit %s: %w", visitID, err)
	}
	return id, nil
}

// newActivityID returns a time-based UUID, falling back to a random one.
func newActivityID() string {
	if id, err := uuid.NewUUID(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// jsonColumn stores a JSON attribute as text, or NULL when it is absent or
// an empty value.
func jsonColumn(raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "[]", "{}", `""`, "false", "0":
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
