package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestArchive opens a fresh archive in a temp dir with its own
// locations file and closes it on cleanup.
func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	root := t.TempDir()
	a, err := Open(context.Background(), filepath.Join(root, "archive"), Options{
		LocationsFile: filepath.Join(root, "locations.txt"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func strPtr(s string) *string { return &s }

func msPtr(n int64) *Millis {
	m := Millis(n)
	return &m
}

// --- Open / Close ---

func TestOpen_CreatesLayout(t *testing.T) {
	a := openTestArchive(t)

	info, err := os.Stat(a.PagesDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(a.Path(), DatabaseFile))
	require.NoError(t, err, "database file should exist")

	assert.Equal(t, Counters{}, a.Counters())
}

func TestOpen_SecondArchiveFails(t *testing.T) {
	a := openTestArchive(t)
	root := t.TempDir()

	_, err := Open(context.Background(), filepath.Join(root, "other"), Options{
		LocationsFile: filepath.Join(root, "locations.txt"),
	})
	require.ErrorIs(t, err, ErrArchiveOpen)

	// Same path is refused too.
	_, err = Open(context.Background(), a.Path(), Options{
		LocationsFile: filepath.Join(root, "locations.txt"),
	})
	require.ErrorIs(t, err, ErrArchiveOpen)
}

func TestClose_ReleasesGuard(t *testing.T) {
	root := t.TempDir()
	opts := Options{LocationsFile: filepath.Join(root, "locations.txt")}
	ctx := context.Background()

	a, err := Open(ctx, filepath.Join(root, "one"), opts)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "second close is harmless")

	b, err := Open(ctx, filepath.Join(root, "two"), opts)
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	root := t.TempDir()
	opts := Options{LocationsFile: filepath.Join(root, "locations.txt")}
	ctx := context.Background()
	dir := filepath.Join(root, "archive")

	a, err := Open(ctx, dir, opts)
	require.NoError(t, err)
	require.NoError(t, a.RegisterBrowser(ctx, BrowserRegistration{BrowserID: "b1", UserAgent: "ua"}))
	require.NoError(t, a.AddActivityList(ctx, ActivityBatch{
		BrowserID:     "b1",
		ActivityItems: []ActivityRecord{{ID: "a1", URL: "https://example.com/"}},
	}))
	require.NoError(t, a.Close())

	b, err := Open(ctx, dir, opts)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(1), b.Counters().Activities)
}

func TestOpen_RecordsLocation(t *testing.T) {
	a := openTestArchive(t)

	locs := NewLocations(filepath.Join(filepath.Dir(a.Path()), "locations.txt"))
	list, err := locs.List()
	require.NoError(t, err)
	assert.Equal(t, []string{a.Path()}, list)
}

// --- Title ---

func TestTitle_SetAndClear(t *testing.T) {
	a := openTestArchive(t)

	title, err := a.Title()
	require.NoError(t, err)
	assert.Empty(t, title)

	require.NoError(t, a.SetTitle("Research"))
	title, err = a.Title()
	require.NoError(t, err)
	assert.Equal(t, "Research", title)

	require.NoError(t, a.SetTitle(""))
	_, err = os.Stat(filepath.Join(a.Path(), TitleFile))
	assert.True(t, os.IsNotExist(err), "empty title removes the file")
}

func TestTitle_TrimsWhitespace(t *testing.T) {
	a := openTestArchive(t)
	require.NoError(t, os.WriteFile(filepath.Join(a.Path(), TitleFile), []byte("  Work\n"), 0644))

	title, err := a.Title()
	require.NoError(t, err)
	assert.Equal(t, "Work", title)
}

// --- Browser / Session ---

func TestRegisterBrowser_Upsert(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	ratio := 2.0
	require.NoError(t, a.RegisterBrowser(ctx, BrowserRegistration{BrowserID: "b1", UserAgent: "old"}))
	require.NoError(t, a.RegisterBrowser(ctx, BrowserRegistration{
		BrowserID: "b1", UserAgent: "new", DevicePixelRatio: &ratio, Autofetch: true,
	}))

	b, err := a.GetBrowser(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "new", b.UserAgent)
	assert.Equal(t, 2.0, b.DevicePixelRatio)
	assert.True(t, b.Connected)
	assert.True(t, b.Autofetch)
	assert.False(t, b.Created.IsZero())

	require.NoError(t, a.SetBrowserConnected(ctx, "b1", false))
	b, err = a.GetBrowser(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, b.Connected)
}

func TestGetBrowser_NotFound(t *testing.T) {
	a := openTestArchive(t)
	_, err := a.GetBrowser(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterSession_DefaultsStartTime(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.RegisterSession(ctx, SessionRegistration{
		SessionID: "s1", BrowserID: "b1", TimezoneOffset: 120,
	}))

	var start int64
	var offset int
	require.NoError(t, a.DB().QueryRowContext(ctx,
		`SELECT startTime, timezoneOffset FROM browser_session WHERE id = ?`, "s1").Scan(&start, &offset))
	assert.Greater(t, start, int64(0))
	assert.Equal(t, 120, offset)
}
