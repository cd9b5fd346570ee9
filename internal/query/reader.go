// Package query is the read side of an archive: History, Activity, Page and
// Feed views built from the archive tables, URL pattern helpers, sampling,
// the full-text and entity indexes and page summaries.
package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	neturl "net/url"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/runnerr0/browsinglab/internal/htmltext"
	"github.com/runnerr0/browsinglab/internal/storage"
)

const defaultBlobCacheSize = 64

// Options configures a Reader.
type Options struct {
	// Exclude keeps matching URLs out of indexes and samples.
	Exclude *Exclusions
	// BlobCacheSize bounds the number of decoded page blobs kept in memory.
	BlobCacheSize int
	Logger        *slog.Logger
}

// Reader builds read models over one open archive. It also maintains the
// derived search_index and entity_index tables.
type Reader struct {
	archive *storage.Archive
	db      *sql.DB
	exclude *Exclusions
	blobs   *lru.Cache[string, *htmltext.Blob]
	logger  *slog.Logger
}

// NewReader returns a Reader over a.
func NewReader(a *storage.Archive, opts Options) (*Reader, error) {
	size := opts.BlobCacheSize
	if size <= 0 {
		size = defaultBlobCacheSize
	}
	cache, err := lru.New[string, *htmltext.Blob](size)
	if err != nil {
		return nil, fmt.Errorf("create blob cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		archive: a,
		db:      a.DB(),
		exclude: opts.Exclude,
		blobs:   cache,
		logger:  logger,
	}, nil
}

// Archive returns the archive the reader was built on.
func (r *Reader) Archive() *storage.Archive { return r.archive }

// --- Page ---

// Page is the metadata of a fetched page. Its content is read separately
// with LoadContent.
type Page struct {
	ID          string
	URL         string
	Fetched     time.Time
	ActivityID  *string
	TimeToFetch *int64
	RedirectURL *string
	RedirectOK  bool

	reader *Reader
}

// LoadContent reads and decodes the page blob.
func (p *Page) LoadContent() (*htmltext.Blob, error) {
	if b, ok := p.reader.blobs.Get(p.URL); ok {
		return b, nil
	}
	data, err := os.ReadFile(p.reader.archive.PagePath(p.URL))
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", p.URL, err)
	}
	b, err := htmltext.DecodeBlob(data)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", p.URL, err)
	}
	if b.OriginalURL == "" {
		b.OriginalURL = p.URL
	}
	p.reader.blobs.Add(p.URL, b)
	return b, nil
}

// LoadAnnotations reads the optional annotation blob. A missing file gives
// an empty map.
func (p *Page) LoadAnnotations() (map[string]any, error) {
	data, err := os.ReadFile(p.reader.archive.AnnotationPath(p.URL))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read annotations of %s: %w", p.URL, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode annotations of %s: %w", p.URL, err)
	}
	return out, nil
}

const pageColumns = `page.id, page.url, CAST(page.fetched AS TEXT), page.activityId,
	page.timeToFetch, page.redirectUrl, page.redirectOk`

func (r *Reader) scanPage(sc interface{ Scan(...any) error }) (*Page, error) {
	p := &Page{reader: r}
	var fetched sql.NullString
	if err := sc.Scan(&p.ID, &p.URL, &fetched, &p.ActivityID, &p.TimeToFetch, &p.RedirectURL, &p.RedirectOK); err != nil {
		return nil, err
	}
	if fetched.Valid {
		p.Fetched, _ = time.Parse(time.DateTime, fetched.String)
	}
	return p, nil
}

// Page returns the page stored for url. The second result is false when
// there is no row or the row's file is missing.
func (r *Reader) Page(ctx context.Context, url string) (*Page, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM page WHERE url = ?`, url)
	p, err := r.scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get page %s: %w", url, err)
	}
	if !fileExists(r.archive.PagePath(url)) {
		return nil, false, nil
	}
	return p, true, nil
}

// pages lists every page row whose file exists, ordered by URL.
func (r *Reader) pages(ctx context.Context) ([]*Page, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM page ORDER BY page.url`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var out []*Page
	for rows.Next() {
		p, err := r.scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}

	present := out[:0]
	for _, p := range out {
		if fileExists(r.archive.PagePath(p.URL)) {
			present = append(present, p)
		}
	}
	return present, nil
}

// --- Activity ---

// Activity is one page visit.
type Activity struct {
	ID              string
	BrowserID       *string
	SessionID       *string
	URL             string
	Title           *string
	OgTitle         *string
	LoadTime        *int64
	UnloadTime      *int64
	TransitionType  *string
	SourceID        *string
	InitialLoadID   *string
	SourceClickText *string
	SourceClickHref *string
	NewTab          *bool
	ActiveTime      *int64
	MaxScroll       *int64
	DocumentHeight  *int64
	CanonicalURL    *string
	MainFeedURL     *string
	AllFeeds        *string
	BrowserVisitID  *string
	Links           []storage.ActivityLink
}

// LoadTimeAt converts LoadTime from epoch milliseconds.
func (a *Activity) LoadTimeAt() time.Time {
	if a.LoadTime == nil {
		return time.Time{}
	}
	return time.UnixMilli(*a.LoadTime)
}

// QueryParams parses the activity URL's query string.
func (a *Activity) QueryParams() neturl.Values {
	u, err := neturl.Parse(a.URL)
	if err != nil {
		return neturl.Values{}
	}
	return u.Query()
}

const activityColumns = `id, browserId, sessionId, url, title, ogTitle, loadTime, unloadTime,
	transitionType, sourceId, initialLoadId, sourceClickText, sourceClickHref, newTab,
	activeTime, maxScroll, documentHeight, canonicalUrl, mainFeedUrl, allFeeds, browserVisitId`

func scanActivity(sc interface{ Scan(...any) error }) (*Activity, error) {
	a := &Activity{}
	err := sc.Scan(&a.ID, &a.BrowserID, &a.SessionID, &a.URL, &a.Title, &a.OgTitle,
		&a.LoadTime, &a.UnloadTime, &a.TransitionType, &a.SourceID, &a.InitialLoadID,
		&a.SourceClickText, &a.SourceClickHref, &a.NewTab, &a.ActiveTime, &a.MaxScroll,
		&a.DocumentHeight, &a.CanonicalURL, &a.MainFeedURL, &a.AllFeeds, &a.BrowserVisitID)
	return a, err
}

func (r *Reader) queryActivities(ctx context.Context, where string, args ...any) ([]*Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activity WHERE `+where+` ORDER BY loadTime DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	var out []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}

	for _, a := range out {
		if a.Links, err = r.links(ctx, a.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Reader) links(ctx context.Context, activityID string) ([]storage.ActivityLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT url, text, rel, target, elementId FROM activity_link
		WHERE activityId = ? ORDER BY id
	`, activityID)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var out []storage.ActivityLink
	for rows.Next() {
		var l storage.ActivityLink
		if err := rows.Scan(&l.URL, &l.Text, &l.Rel, &l.Target, &l.ElementID); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Activity loads one activity by id.
func (r *Reader) Activity(ctx context.Context, id string) (*Activity, error) {
	acts, err := r.queryActivities(ctx, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(acts) == 0 {
		return nil, fmt.Errorf("activity %s: %w", id, storage.ErrNotFound)
	}
	return acts[0], nil
}

// Source follows an activity's sourceId. It returns nil when the activity
// has no source.
func (r *Reader) Source(ctx context.Context, a *Activity) (*Activity, error) {
	if a.SourceID == nil {
		return nil, nil
	}
	return r.Activity(ctx, *a.SourceID)
}

// ActivitiesLike returns activities whose URL matches a SQL LIKE pattern,
// newest first.
func (r *Reader) ActivitiesLike(ctx context.Context, pattern string) ([]*Activity, error) {
	return r.queryActivities(ctx, `url LIKE ?`, pattern)
}

// --- History ---

// History groups everything known about one URL.
type History struct {
	URL   string
	Title string
	// Page is nil when the URL has no stored page.
	Page *Page
	// Activities is only filled by Reader.History.
	Activities []*Activity
}

// Domain is the normalised domain of the URL.
func (h *History) Domain() string { return Domain(h.URL) }

// History loads the history of url with all of its activities.
func (r *Reader) History(ctx context.Context, url string) (*History, error) {
	acts, err := r.queryActivities(ctx, `url = ?`, url)
	if err != nil {
		return nil, err
	}
	page, _, err := r.Page(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(acts) == 0 && page == nil {
		return nil, fmt.Errorf("history %s: %w", url, storage.ErrNotFound)
	}
	h := &History{URL: url, Page: page, Activities: acts}
	h.Title = historyTitle(acts, page)
	return h, nil
}

// HistoriesWithPage returns one History per URL that has a stored page.
// Activities are not loaded.
func (r *Reader) HistoriesWithPage(ctx context.Context) ([]*History, error) {
	pages, err := r.pages(ctx)
	if err != nil {
		return nil, err
	}
	titles, err := r.latestTitles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*History, 0, len(pages))
	for _, p := range pages {
		out = append(out, &History{URL: p.URL, Title: titles[p.URL], Page: p})
	}
	return out, nil
}

// latestTitles maps each URL to the title of its most recent titled visit.
func (r *Reader) latestTitles(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT url, title FROM activity
		WHERE title IS NOT NULL AND title != ''
		ORDER BY loadTime ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query titles: %w", err)
	}
	defer rows.Close()

	titles := make(map[string]string)
	for rows.Next() {
		var url, title string
		if err := rows.Scan(&url, &title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles[url] = title
	}
	return titles, rows.Err()
}

func historyTitle(acts []*Activity, page *Page) string {
	for _, a := range acts {
		if a.Title != nil && *a.Title != "" {
			return *a.Title
		}
	}
	if page != nil {
		if b, err := page.LoadContent(); err == nil {
			return b.Title()
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
