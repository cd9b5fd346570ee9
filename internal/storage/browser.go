package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RegisterBrowser inserts or updates the browser keyed by its id and marks
// it connected.
func (a *Archive) RegisterBrowser(ctx context.Context, reg BrowserRegistration) error {
	if reg.BrowserID == "" {
		return fmt.Errorf("register browser: browserId is required")
	}
	ratio := 1.0
	if reg.DevicePixelRatio != nil {
		ratio = *reg.DevicePixelRatio
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO browser (id, userAgent, devicePixelRatio, connected, testing, autofetch)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			userAgent        = excluded.userAgent,
			devicePixelRatio = excluded.devicePixelRatio,
			connected        = 1,
			testing          = excluded.testing,
			autofetch        = excluded.autofetch
	`, reg.BrowserID, reg.UserAgent, ratio, reg.Testing, reg.Autofetch)
	if err != nil {
		return fmt.Errorf("upsert browser: %w", err)
	}

	if err := refreshHistoryBounds(ctx, tx, reg.BrowserID); err != nil {
		return err
	}

	return tx.Commit()
}

// SetBrowserConnected updates the connected flag of a known browser.
func (a *Archive) SetBrowserConnected(ctx context.Context, browserID string, connected bool) error {
	_, err := a.db.ExecContext(ctx, `UPDATE browser SET connected = ? WHERE id = ?`, connected, browserID)
	if err != nil {
		return fmt.Errorf("update browser connected: %w", err)
	}
	return nil
}

// GetBrowser loads one browser row.
func (a *Archive) GetBrowser(ctx context.Context, browserID string) (*Browser, error) {
	var b Browser
	var created string
	var newest, oldest sql.NullInt64
	err := a.db.QueryRowContext(ctx, `
		SELECT id, created, userAgent, devicePixelRatio, connected, testing, autofetch,
		       newestHistory, oldestHistory
		FROM browser WHERE id = ?
	`, browserID).Scan(
		&b.ID, &created, &b.UserAgent, &b.DevicePixelRatio, &b.Connected,
		&b.Testing, &b.Autofetch, &newest, &oldest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("browser %s: %w", browserID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get browser: %w", err)
	}
	b.Created, _ = parseTimestamp(created)
	b.NewestHistory = nullInt(newest)
	b.OldestHistory = nullInt(oldest)
	return &b, nil
}

// RegisterSession inserts or updates a browser session keyed by its id.
func (a *Archive) RegisterSession(ctx context.Context, reg SessionRegistration) error {
	if reg.SessionID == "" {
		return fmt.Errorf("register session: sessionId is required")
	}
	start := time.Now().UnixMilli()
	if reg.StartTime != nil {
		start = int64(*reg.StartTime)
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO browser_session (id, browserId, startTime, timezoneOffset)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			browserId      = excluded.browserId,
			startTime      = excluded.startTime,
			timezoneOffset = excluded.timezoneOffset
	`, reg.SessionID, reg.BrowserID, start, reg.TimezoneOffset)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// EndSession stamps the end time of a session.
func (a *Archive) EndSession(ctx context.Context, sessionID string, end time.Time) error {
	_, err := a.db.ExecContext(ctx, `UPDATE browser_session SET endTime = ? WHERE id = ?`,
		end.UnixMilli(), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// refreshHistoryBounds recomputes newestHistory/oldestHistory from the
// activity table instead of tracking them incrementally.
func refreshHistoryBounds(ctx context.Context, tx *sql.Tx, browserID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE browser
		SET
			newestHistory = (SELECT MAX(loadTime) FROM activity
			                 WHERE browserId = ? AND browserHistoryId IS NOT NULL),
			oldestHistory = (SELECT MIN(loadTime) FROM activity
			                 WHERE browserId = ? AND browserHistoryId IS NOT NULL)
		WHERE id = ?
	`, browserID, browserID, browserID)
	if err != nil {
		return fmt.Errorf("refresh history bounds: %w", err)
	}
	return nil
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999-07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}
