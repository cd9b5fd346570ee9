package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	pageSuffix       = "-page.json"
	annotationSuffix = "-annotation.json"

	maxNameLength   = 200
	keptNamePrefix  = 100
	startTimeMarker = "&start=86400"

	// DefaultNeededLimit is used when NeededPages is called without a limit.
	DefaultNeededLimit = 100
)

// PageFilename maps a URL to the base name of its files under pages/. Every
// byte outside [A-Za-z0-9_.~-] is percent-encoded; names longer than 200
// characters keep their first 100 and gain the SHA-1 of the full name.
func PageFilename(url string) string {
	name := quoteAll(url)
	if len(name) > maxNameLength {
		sum := sha1.Sum([]byte(name))
		name = name[:keptNamePrefix] + hex.EncodeToString(sum[:])
	}
	return name
}

func quoteAll(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '_', c == '.', c == '-', c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

// PagePath returns the path of the stored page blob for url.
func (a *Archive) PagePath(url string) string {
	return filepath.Join(a.pagesDir, PageFilename(url)+pageSuffix)
}

// AnnotationPath returns the path of the optional annotation blob for url.
func (a *Archive) AnnotationPath(url string) string {
	return filepath.Join(a.pagesDir, PageFilename(url)+annotationSuffix)
}

// AddFetchedPage stores a scraped page: the metadata row replaces any earlier
// row for the same URL, the fetch error for the URL is cleared and the blob
// is written under pages/. The blob is staged in a temporary file and only
// renamed over the previous one after the transaction commits.
func (a *Archive) AddFetchedPage(ctx context.Context, fp FetchedPage) error {
	if fp.ID == "" {
		return fmt.Errorf("add fetched page: id is required")
	}
	if fp.URL == "" {
		return fmt.Errorf("add fetched page: url is required")
	}

	var blob map[string]json.RawMessage
	if err := json.Unmarshal(fp.Content, &blob); err != nil || blob == nil {
		return fmt.Errorf("add fetched page %s: page must be a JSON object", fp.URL)
	}
	var header pageHeader
	if err := json.Unmarshal(fp.Content, &header); err != nil {
		return fmt.Errorf("add fetched page %s: %w", fp.URL, err)
	}

	original, _ := json.Marshal(fp.URL)
	blob["originalUrl"] = original

	redirect := redirectURL(fp.URL, header.URL)

	staged, err := a.stagePageFile(blob)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			os.Remove(staged)
		}
	}()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var activityID *string
	if id := deref(header.ActivityID); id != "" {
		var n int
		if err := tx.StmtContext(ctx, a.activityExists).QueryRowContext(ctx, id).Scan(&n); err != nil {
			return fmt.Errorf("look up activity %s: %w", id, err)
		}
		if n > 0 {
			activityID = &id
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM page WHERE url = ? AND id != ?`, fp.URL, fp.ID); err != nil {
		return fmt.Errorf("replace page row: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO page (id, url, fetched, activityId, timeToFetch, redirectUrl)
		VALUES (?, ?, CURRENT_TIMESTAMP, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			fetched = CURRENT_TIMESTAMP,
			activityId = excluded.activityId,
			timeToFetch = excluded.timeToFetch,
			redirectUrl = excluded.redirectUrl
	`, fp.ID, fp.URL, activityID, header.TimeToFetch, redirect)
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", fp.URL, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fetch_error WHERE url = ?`, fp.URL); err != nil {
		return fmt.Errorf("clear fetch error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit page %s: %w", fp.URL, err)
	}
	committed = true
	if err := os.Rename(staged, a.PagePath(fp.URL)); err != nil {
		os.Remove(staged)
		return fmt.Errorf("move page file into place: %w", err)
	}
	return nil
}

// stagePageFile writes the blob to a temporary file under pages/ and returns
// its name.
func (a *Archive) stagePageFile(blob map[string]json.RawMessage) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(blob); err != nil {
		return "", fmt.Errorf("encode page blob: %w", err)
	}

	tmp, err := os.CreateTemp(a.pagesDir, ".page-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create page file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(bytes.TrimRight(buf.Bytes(), "\n")); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write page file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("write page file: %w", err)
	}
	return tmpName, nil
}

// redirectURL returns the final URL of a fetch when it differs from the
// requested one (fragments ignored), or nil.
func redirectURL(requested, final string) *string {
	if final == "" || stripFragment(final) == stripFragment(requested) {
		return nil
	}
	r := strings.ReplaceAll(final, startTimeMarker, "")
	return &r
}

func stripFragment(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}

// AddFetchFailure records why fetching url failed, replacing any earlier
// failure for it.
func (a *Archive) AddFetchFailure(ctx context.Context, url, errorMessage string) error {
	if url == "" {
		return fmt.Errorf("add fetch failure: url is required")
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO fetch_error (url, errorMessage, attempted)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(url) DO UPDATE SET
			errorMessage = excluded.errorMessage,
			attempted = CURRENT_TIMESTAMP
	`, url, errorMessage)
	if err != nil {
		return fmt.Errorf("add fetch failure %s: %w", url, err)
	}
	return nil
}

// PruneFetchErrors removes fetch failures recorded before cutoff so that
// get_needed_pages offers those URLs again. With dryRun nothing is deleted.
// It returns the number of affected rows.
func (a *Archive) PruneFetchErrors(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	ts := cutoff.UTC().Format(time.DateTime)
	if dryRun {
		var n int64
		if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fetch_error WHERE attempted < ?`, ts).Scan(&n); err != nil {
			return 0, fmt.Errorf("count stale fetch errors: %w", err)
		}
		return n, nil
	}
	res, err := a.db.ExecContext(ctx, `DELETE FROM fetch_error WHERE attempted < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("prune fetch errors: %w", err)
	}
	return res.RowsAffected()
}

// HasPage reports whether url has both a page row and a page file.
func (a *Archive) HasPage(ctx context.Context, url string) (bool, error) {
	var n int
	if err := a.pageRowExists.QueryRowContext(ctx, url).Scan(&n); err != nil {
		return false, fmt.Errorf("look up page %s: %w", url, err)
	}
	if n == 0 {
		return false, nil
	}
	return fileExists(a.PagePath(url)), nil
}

// CheckPageNeeded reports whether url still needs to be fetched.
func (a *Archive) CheckPageNeeded(ctx context.Context, url string) (bool, error) {
	has, err := a.HasPage(ctx, url)
	if err != nil {
		return false, err
	}
	return !has, nil
}

// NeededPages lists visited URLs without a stored page. URLs that never
// failed to fetch come first, then the most recently loaded.
func (a *Archive) NeededPages(ctx context.Context, limit int) ([]NeededPage, error) {
	if limit <= 0 {
		limit = DefaultNeededLimit
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT activity.url, fetch_error.errorMessage, page.url IS NOT NULL AS hasRow,
			MAX(COALESCE(activity.loadTime, 0)) AS lastLoad
		FROM activity
		LEFT JOIN page ON page.url = activity.url
		LEFT JOIN fetch_error ON fetch_error.url = activity.url
		GROUP BY activity.url
		ORDER BY fetch_error.url IS NULL DESC, lastLoad DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query needed pages: %w", err)
	}

	type candidate struct {
		page   NeededPage
		hasRow bool
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var lastError *string
		var lastLoad int64
		if err := rows.Scan(&c.page.URL, &lastError, &c.hasRow, &lastLoad); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan needed page: %w", err)
		}
		c.page.LastError = lastError
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate needed pages: %w", err)
	}
	rows.Close()

	needed := []NeededPage{}
	for _, c := range candidates {
		if len(needed) >= limit {
			break
		}
		if c.hasRow && fileExists(a.PagePath(c.page.URL)) {
			continue
		}
		needed = append(needed, c.page)
	}
	return needed, nil
}

// Status summarises the archive for one browser.
func (a *Archive) Status(ctx context.Context, browserID string) (*Status, error) {
	var s Status
	err := a.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM activity),
			(SELECT newestHistory FROM browser WHERE id = ?),
			(SELECT oldestHistory FROM browser WHERE id = ?),
			(SELECT COUNT(*) FROM page),
			(SELECT COUNT(*) FROM fetch_error)
	`, browserID, browserID).Scan(&s.ActivityCount, &s.Latest, &s.Oldest, &s.FetchedCount, &s.FetchErrorCount)
	if err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}
	return &s, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
