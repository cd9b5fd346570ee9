package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchedPage(id, url, finalURL string) FetchedPage {
	blob, _ := json.Marshal(map[string]any{
		"url":         finalURL,
		"docTitle":    "Title of " + url,
		"body":        "<body><p>Hello</p></body>",
		"timeToFetch": 42,
	})
	return FetchedPage{ID: id, URL: url, Content: blob}
}

// --- PageFilename ---

func TestPageFilename_Quotes(t *testing.T) {
	assert.Equal(t, "https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc~d_e-f.g",
		PageFilename("https://example.com/a?b=c~d_e-f.g"))
	assert.Equal(t, "%C3%A9", PageFilename("é"))
}

func TestPageFilename_LongNamesAreHashed(t *testing.T) {
	url := "https://example.com/" + strings.Repeat("x", 300)
	name := PageFilename(url)
	assert.Len(t, name, 100+40)
	assert.True(t, strings.HasPrefix(name, "https%3A%2F%2Fexample.com%2Fxxx"))
	assert.NotEqual(t, name, PageFilename(url+"y"))
}

// --- AddFetchedPage / HasPage ---

func TestAddFetchedPage_WritesRowAndFile(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	url := "https://example.com/article"

	require.NoError(t, a.AddFetchFailure(ctx, url, "timeout"))
	require.NoError(t, a.AddFetchedPage(ctx, fetchedPage("p1", url, url+"#top")))

	has, err := a.HasPage(ctx, url)
	require.NoError(t, err)
	assert.True(t, has)

	data, err := os.ReadFile(a.PagePath(url))
	require.NoError(t, err)
	var blob map[string]any
	require.NoError(t, json.Unmarshal(data, &blob))
	assert.Equal(t, url, blob["originalUrl"])
	assert.Equal(t, "<body><p>Hello</p></body>", blob["body"])

	var redirect sql.NullString
	var timeToFetch int64
	require.NoError(t, a.DB().QueryRowContext(ctx,
		`SELECT redirectUrl, timeToFetch FROM page WHERE url = ?`, url).Scan(&redirect, &timeToFetch))
	assert.False(t, redirect.Valid, "fragment-only difference is not a redirect")
	assert.Equal(t, int64(42), timeToFetch)

	assert.Equal(t, 0, countRows(t, a, `SELECT COUNT(*) FROM fetch_error`), "success clears the fetch error")
}

func TestAddFetchedPage_RecordsRedirect(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	url := "https://youtube.com/watch?v=1"

	require.NoError(t, a.AddFetchedPage(ctx, fetchedPage("p1", url, "https://m.youtube.com/watch?v=1&start=86400")))

	var redirect string
	require.NoError(t, a.DB().QueryRowContext(ctx, `SELECT redirectUrl FROM page WHERE url = ?`, url).Scan(&redirect))
	assert.Equal(t, "https://m.youtube.com/watch?v=1", redirect)
}

func TestAddFetchedPage_ReplacesEarlierRow(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	url := "https://example.com/"

	require.NoError(t, a.AddFetchedPage(ctx, fetchedPage("p1", url, url)))
	require.NoError(t, a.AddFetchedPage(ctx, fetchedPage("p2", url, url)))

	var id string
	require.NoError(t, a.DB().QueryRowContext(ctx, `SELECT id FROM page WHERE url = ?`, url).Scan(&id))
	assert.Equal(t, "p2", id)
	assert.Equal(t, 1, countRows(t, a, `SELECT COUNT(*) FROM page`))
}

func TestAddFetchedPage_FailedRefetchKeepsOldFile(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	url := "https://example.com/kept"

	require.NoError(t, a.AddFetchedPage(ctx, fetchedPage("p1", url, url)))
	before, err := os.ReadFile(a.PagePath(url))
	require.NoError(t, err)

	_, err = a.DB().ExecContext(ctx, `DROP TABLE fetch_error`)
	require.NoError(t, err)
	refetch := FetchedPage{ID: "p2", URL: url, Content: json.RawMessage(`{"url": "https://example.com/kept", "body": "new"}`)}
	require.Error(t, a.AddFetchedPage(ctx, refetch))

	after, err := os.ReadFile(a.PagePath(url))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	leftovers, err := filepath.Glob(filepath.Join(a.PagesDir(), ".page-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestAddFetchedPage_UnknownActivityIsDropped(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	blob := json.RawMessage(`{"url": "https://example.com/", "timeToFetch": 1, "activityId": "nope"}`)
	require.NoError(t, a.AddFetchedPage(ctx, FetchedPage{ID: "p1", URL: "https://example.com/", Content: blob}))

	var activity sql.NullString
	require.NoError(t, a.DB().QueryRowContext(ctx, `SELECT activityId FROM page WHERE id = 'p1'`).Scan(&activity))
	assert.False(t, activity.Valid)
}

func TestAddFetchedPage_RejectsNonObject(t *testing.T) {
	a := openTestArchive(t)
	err := a.AddFetchedPage(context.Background(), FetchedPage{ID: "p1", URL: "https://x/", Content: json.RawMessage(`[1]`)})
	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, a, `SELECT COUNT(*) FROM page`))
}

func TestHasPage_FalseWhenFileDeleted(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	url := "https://example.com/gone"

	require.NoError(t, a.AddFetchedPage(ctx, fetchedPage("p1", url, url)))
	require.NoError(t, os.Remove(a.PagePath(url)))

	has, err := a.HasPage(ctx, url)
	require.NoError(t, err)
	assert.False(t, has)

	needed, err := a.CheckPageNeeded(ctx, url)
	require.NoError(t, err)
	assert.True(t, needed)
}

// --- NeededPages ---

func TestNeededPages_Order(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.AddActivityList(ctx, ActivityBatch{
		BrowserID: "b1",
		ActivityItems: []ActivityRecord{
			{ID: "1", URL: "https://a.com/", LoadTime: msPtr(100)},
			{ID: "2", URL: "https://b.com/", LoadTime: msPtr(300)},
			{ID: "3", URL: "https://c.com/", LoadTime: msPtr(200)},
			{ID: "4", URL: "https://d.com/", LoadTime: msPtr(400)},
			{ID: "5", URL: "https://a.com/", LoadTime: msPtr(500)},
			{ID: "6", URL: "https://e.com/", LoadTime: msPtr(50)},
		},
	}))
	require.NoError(t, a.AddFetchFailure(ctx, "https://d.com/", "refused"))
	require.NoError(t, a.AddFetchedPage(ctx, fetchedPage("p1", "https://c.com/", "https://c.com/")))
	require.NoError(t, a.AddFetchedPage(ctx, fetchedPage("p2", "https://e.com/", "https://e.com/")))
	require.NoError(t, os.Remove(a.PagePath("https://e.com/")))

	pages, err := a.NeededPages(ctx, 0)
	require.NoError(t, err)

	var urls []string
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	assert.Equal(t, []string{"https://a.com/", "https://b.com/", "https://e.com/", "https://d.com/"}, urls)
	require.NotNil(t, pages[3].LastError)
	assert.Equal(t, "refused", *pages[3].LastError)
	assert.Nil(t, pages[0].LastError)

	limited, err := a.NeededPages(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

// --- Status ---

func TestStatus(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	require.NoError(t, a.RegisterBrowser(ctx, BrowserRegistration{BrowserID: "b1"}))
	_, err := a.AddHistoryList(ctx, historyBatch())
	require.NoError(t, err)
	require.NoError(t, a.AddFetchedPage(ctx, fetchedPage("p1", "https://example.com/a", "https://example.com/a")))
	require.NoError(t, a.AddFetchFailure(ctx, "https://example.com/b", "404"))

	s, err := a.Status(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.ActivityCount)
	assert.Equal(t, int64(1), s.FetchedCount)
	assert.Equal(t, int64(1), s.FetchErrorCount)
	require.NotNil(t, s.Latest)
	assert.Equal(t, int64(3000), *s.Latest)
	require.NotNil(t, s.Oldest)
	assert.Equal(t, int64(1000), *s.Oldest)

	unknown, err := a.Status(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, unknown.Latest)
}

func TestPruneFetchErrors(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	require.NoError(t, a.AddFetchFailure(ctx, "https://example.com/down", "502"))

	n, err := a.PruneFetchErrors(ctx, time.Now().Add(-time.Hour), false)
	require.NoError(t, err)
	assert.Zero(t, n, "recent failures are kept")

	n, err = a.PruneFetchErrors(ctx, time.Now().Add(time.Hour), true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	st, err := a.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.FetchErrorCount, "dry run deletes nothing")

	n, err = a.PruneFetchErrors(ctx, time.Now().Add(time.Hour), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	st, err = a.Status(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, st.FetchErrorCount)
}
