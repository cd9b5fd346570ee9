package host

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/browsinglab/internal/nativemsg"
	"github.com/runnerr0/browsinglab/internal/storage"
)

// dispatchRaw decodes body as a message exactly as it would arrive from the
// extension and dispatches it.
func dispatchRaw(t *testing.T, s *Session, body string) reply {
	t.Helper()
	msg, err := nativemsg.DecodeMessage([]byte(body))
	require.NoError(t, err)
	data, err := json.Marshal(s.Dispatch(context.Background(), msg))
	require.NoError(t, err)
	var r reply
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func newBrowserSession(t *testing.T) *Session {
	t.Helper()
	s, root := newTestSession(t)
	require.Empty(t, dispatch(t, s, "set_active_archive", []any{filepath.Join(root, "archive")}, nil).Error)
	require.Empty(t, dispatch(t, s, "register_browser", []any{"b1", "Mozilla/5.0"}, nil).Error)
	return s
}

// historySaverBatch is an add_history_list call as the extension's history
// saver sends it: items keyed by history id, visits keyed by visit id and
// visit times with a fractional millisecond part.
const historySaverBatch = `{
	"id": 7,
	"name": "add_history_list",
	"args": [],
	"kwargs": {
		"browserId": "b1",
		"sessionId": "s1",
		"historyItems": {
			"Ue7oEtYbapEF": {
				"url": "https://www.mozilla.org/en-US/firefox/",
				"title": "Firefox",
				"lastVisitTime": 1525089875373.158,
				"visitCount": 2,
				"typedCount": 0,
				"visits": {
					"11": {"visitTime": 1525089875373.158, "referringVisitId": "-1", "transition": "link"},
					"12": {"visitTime": 1525089900512.4, "referringVisitId": "11", "transition": "reload"}
				}
			}
		}
	}
}`

func TestDispatch_AddHistoryListFromHistorySaver(t *testing.T) {
	s := newBrowserSession(t)
	require.Empty(t, dispatch(t, s, "register_session", []any{"s1", "b1", -120}, nil).Error)

	r := dispatchRaw(t, s, historySaverBatch)
	require.Empty(t, r.Error)
	assert.Equal(t, "7", string(r.ID))

	db := s.Archive().DB()
	var loadTime int64
	var transition string
	require.NoError(t, db.QueryRow(
		`SELECT loadTime, transitionType FROM activity WHERE browserVisitId = '11'`).Scan(&loadTime, &transition))
	assert.Equal(t, int64(1525089875373), loadTime)
	assert.Equal(t, "link", transition)

	var first string
	var source sql.NullString
	require.NoError(t, db.QueryRow(`SELECT id FROM activity WHERE browserVisitId = '11'`).Scan(&first))
	require.NoError(t, db.QueryRow(`SELECT sourceId FROM activity WHERE browserVisitId = '12'`).Scan(&source))
	assert.Equal(t, first, source.String)
}

func TestDispatch_AddHistoryListRejectsUnknownItemField(t *testing.T) {
	s := newBrowserSession(t)

	r := dispatchRaw(t, s, `{"id": 1, "name": "add_history_list", "kwargs": {
		"browserId": "b1",
		"historyItems": {"h1": {"url": "https://example.com/", "frecency": 100, "visits": {}}}
	}}`)
	assert.Contains(t, r.Error, "bad arguments")
	assert.Contains(t, r.Error, "frecency")
}

// activityTrackerBatch is an add_activity_list flush: Page objects with the
// transition qualifiers as snake_case booleans, a fractional webNavigation
// timestamp and the in-memory active flag.
const activityTrackerBatch = `{
	"id": 8,
	"name": "add_activity_list",
	"args": [],
	"kwargs": {
		"browserId": "b1",
		"activityItems": [
			{
				"id": "4f1c6a5e-0d7b-4bb8-9a3e-2f0d5a8c1e01",
				"url": "https://news.example.com/",
				"loadTime": 1525090001234.567,
				"unloadTime": 1525090061000,
				"transitionType": "typed",
				"client_redirect": false,
				"server_redirect": true,
				"forward_back": false,
				"from_address_bar": true,
				"newTab": false,
				"isHashChange": false,
				"initialLoadId": null,
				"active": false,
				"activeCount": 1,
				"closedReason": "navigation",
				"method": "GET",
				"statusCode": 200,
				"contentType": "text/html",
				"hasSetCookie": true,
				"sessionId": "s1",
				"activeTime": 52000
			},
			{
				"id": "4f1c6a5e-0d7b-4bb8-9a3e-2f0d5a8c1e02",
				"url": "https://news.example.com/story",
				"loadTime": 1525090061001.25,
				"unloadTime": null,
				"transitionType": "link",
				"client_redirect": true,
				"server_redirect": false,
				"forward_back": false,
				"from_address_bar": false,
				"sourceId": "4f1c6a5e-0d7b-4bb8-9a3e-2f0d5a8c1e01",
				"newTab": false,
				"isHashChange": false,
				"initialLoadId": "4f1c6a5e-0d7b-4bb8-9a3e-2f0d5a8c1e01",
				"active": true,
				"activeCount": 1,
				"closedReason": null,
				"method": null,
				"statusCode": null,
				"contentType": null,
				"hasSetCookie": null,
				"sessionId": "s1",
				"activeTime": 3000
			}
		]
	}
}`

func TestDispatch_AddActivityListFromActivityTracker(t *testing.T) {
	s := newBrowserSession(t)
	require.Empty(t, dispatch(t, s, "register_session", []any{"s1", "b1", 0}, nil).Error)

	r := dispatchRaw(t, s, activityTrackerBatch)
	require.Empty(t, r.Error)

	db := s.Archive().DB()
	var loadTime int64
	var clientRedirect, serverRedirect, fromAddressBar bool
	require.NoError(t, db.QueryRow(`
		SELECT loadTime, clientRedirect, serverRedirect, fromAddressBar
		FROM activity WHERE id = '4f1c6a5e-0d7b-4bb8-9a3e-2f0d5a8c1e01'`).
		Scan(&loadTime, &clientRedirect, &serverRedirect, &fromAddressBar))
	assert.Equal(t, int64(1525090001234), loadTime)
	assert.False(t, clientRedirect)
	assert.True(t, serverRedirect)
	assert.True(t, fromAddressBar)

	var source sql.NullString
	var status sql.NullInt64
	require.NoError(t, db.QueryRow(`
		SELECT clientRedirect, sourceId, statusCode
		FROM activity WHERE id = '4f1c6a5e-0d7b-4bb8-9a3e-2f0d5a8c1e02'`).
		Scan(&clientRedirect, &source, &status))
	assert.True(t, clientRedirect)
	assert.Equal(t, "4f1c6a5e-0d7b-4bb8-9a3e-2f0d5a8c1e01", source.String)
	assert.False(t, status.Valid)
}

func TestUnsetActiveArchive_EndsRegisteredSession(t *testing.T) {
	s := newBrowserSession(t)
	path := s.Archive().Path()
	end := time.UnixMilli(1525099999000)
	s.now = func() time.Time { return end }

	require.Empty(t, dispatch(t, s, "register_session", []any{"s1", "b1", 0}, nil).Error)
	require.Empty(t, dispatch(t, s, "unset_active_archive", nil, nil).Error)

	a, err := storage.Open(context.Background(), path, storage.Options{LocationsFile: filepath.Join(t.TempDir(), "locations.txt")})
	require.NoError(t, err)
	defer a.Close()
	var endTime sql.NullInt64
	require.NoError(t, a.DB().QueryRow(`SELECT endTime FROM browser_session WHERE id = 's1'`).Scan(&endTime))
	require.True(t, endTime.Valid)
	assert.Equal(t, end.UnixMilli(), endTime.Int64)
}
