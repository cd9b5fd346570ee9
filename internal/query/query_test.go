package query

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/browsinglab/internal/nlp"
	"github.com/runnerr0/browsinglab/internal/storage"
)

func newTestReader(t *testing.T, exclude *Exclusions) (*Reader, *storage.Archive) {
	t.Helper()
	root := t.TempDir()
	a, err := storage.Open(context.Background(), filepath.Join(root, "archive"), storage.Options{
		LocationsFile: filepath.Join(root, "locations.txt"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	r, err := NewReader(a, Options{Exclude: exclude})
	require.NoError(t, err)
	return r, a
}

func addPage(t *testing.T, a *storage.Archive, url, title, body string, extra map[string]any) {
	t.Helper()
	blob := map[string]any{
		"url":      url,
		"docTitle": title,
		"head":     "<title>" + title + "</title>",
		"body":     body,
	}
	for k, v := range extra {
		blob[k] = v
	}
	data, err := json.Marshal(blob)
	require.NoError(t, err)
	require.NoError(t, a.AddFetchedPage(context.Background(), storage.FetchedPage{
		ID: "page-" + url, URL: url, Content: data,
	}))
}

func addActivities(t *testing.T, a *storage.Archive, recs ...storage.ActivityRecord) {
	t.Helper()
	require.NoError(t, a.AddActivityList(context.Background(), storage.ActivityBatch{
		BrowserID: "b1", SessionID: "s1", ActivityItems: recs,
	}))
}

func strPtr(s string) *string { return &s }

func msPtr(n int64) *storage.Millis {
	m := storage.Millis(n)
	return &m
}

// --- URL helpers ---

func TestStripURLToPattern(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www2.foo.com/article/1/view", "foo.com/C/#/C"},
		{"https://example.com/", "example.com"},
		{"https://example.com//a//22", "example.com/C/#"},
		{"http://www.news.org/2020/05/some-slug?x=1", "news.org/#/#/C"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, StripURLToPattern(tt.url))
		})
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://WWW3.Example.com/x"))
	assert.Equal(t, "sub.example.com", Domain("https://sub.example.com"))
	assert.Equal(t, "", Domain("::not a url"))
}

func TestExclusions(t *testing.T) {
	e, err := NewExclusions([]string{"Bank.com", " "}, []string{"*://*/private/*"})
	require.NoError(t, err)

	assert.True(t, e.Excluded("https://bank.com/login"))
	assert.True(t, e.Excluded("https://www.online.bank.com/"))
	assert.False(t, e.Excluded("https://notbank.com/"))
	assert.True(t, e.Excluded("https://example.com/private/notes"))
	assert.False(t, e.Excluded("https://example.com/public"))

	var none *Exclusions
	assert.False(t, none.Excluded("https://bank.com/"))

	_, err = NewExclusions(nil, []string{"[unterminated"})
	require.Error(t, err)
}

// --- Pages and histories ---

func TestPage_MissingFileIsAbsent(t *testing.T) {
	r, a := newTestReader(t, nil)
	ctx := context.Background()
	url := "https://example.com/a"
	addPage(t, a, url, "A", "<p>Hello</p>", nil)

	p, ok, err := r.Page(ctx, url)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, url, p.URL)
	assert.False(t, p.Fetched.IsZero())

	blob, err := p.LoadContent()
	require.NoError(t, err)
	assert.Equal(t, "A", blob.Title())
	assert.Equal(t, url, blob.OriginalURL)

	ann, err := p.LoadAnnotations()
	require.NoError(t, err)
	assert.Empty(t, ann)

	require.NoError(t, os.Remove(a.PagePath(url)))
	_, ok, err = r.Page(ctx, url)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.Page(ctx, "https://example.com/never")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistory_LoadsActivitiesAndLinks(t *testing.T) {
	r, a := newTestReader(t, nil)
	ctx := context.Background()
	url := "https://example.com/post"

	addActivities(t, a,
		storage.ActivityRecord{ID: "a1", URL: url, Title: strPtr("Old title"), LoadTime: msPtr(1000)},
		storage.ActivityRecord{
			ID: "a2", URL: url, Title: strPtr("New title"), LoadTime: msPtr(2000), SourceID: strPtr("a1"),
			LinkInformation: []storage.ActivityLink{{URL: "https://example.com/next", Text: "next"}},
		},
	)

	h, err := r.History(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "New title", h.Title)
	assert.Nil(t, h.Page)
	require.Len(t, h.Activities, 2)
	assert.Equal(t, "a2", h.Activities[0].ID)
	require.Len(t, h.Activities[0].Links, 1)
	assert.Equal(t, "next", h.Activities[0].Links[0].Text)

	src, err := r.Source(ctx, h.Activities[0])
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, "a1", src.ID)

	_, err = r.History(ctx, "https://example.com/unknown")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHistoriesWithPage_UsesLatestTitle(t *testing.T) {
	r, a := newTestReader(t, nil)
	ctx := context.Background()

	addActivities(t, a,
		storage.ActivityRecord{ID: "a1", URL: "https://a.com/", Title: strPtr("first"), LoadTime: msPtr(1)},
		storage.ActivityRecord{ID: "a2", URL: "https://a.com/", Title: strPtr("second"), LoadTime: msPtr(2)},
	)
	addPage(t, a, "https://a.com/", "page A", "<p>a</p>", nil)
	addPage(t, a, "https://b.com/", "page B", "<p>b</p>", nil)

	hs, err := r.HistoriesWithPage(ctx)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "https://a.com/", hs[0].URL)
	assert.Equal(t, "second", hs[0].Title)
	assert.NotNil(t, hs[1].Page)
}

func TestActivitiesLike(t *testing.T) {
	r, a := newTestReader(t, nil)
	addActivities(t, a,
		storage.ActivityRecord{ID: "a1", URL: "https://www.google.com/search?q=go+generics", LoadTime: msPtr(5)},
		storage.ActivityRecord{ID: "a2", URL: "https://example.com/", LoadTime: msPtr(6)},
	)

	acts, err := r.ActivitiesLike(context.Background(), "%google.com%")
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "go generics", acts[0].QueryParams().Get("q"))
}

func TestFindQueries(t *testing.T) {
	r, a := newTestReader(t, nil)
	addActivities(t, a,
		storage.ActivityRecord{ID: "home", URL: "https://example.com/", LoadTime: msPtr(1)},
		storage.ActivityRecord{ID: "g1", URL: "https://www.google.com/search?q=sqlite+fts5", LoadTime: msPtr(2), SourceID: strPtr("home")},
		storage.ActivityRecord{ID: "d1", URL: "https://duckduckgo.com/?q=go+slog", LoadTime: msPtr(3)},
		storage.ActivityRecord{ID: "g2", URL: "https://www.google.com/maps", LoadTime: msPtr(4)},
		storage.ActivityRecord{ID: "x", URL: "https://notgoogle.com.evil.net/?q=nope", LoadTime: msPtr(5)},
	)

	qs, err := r.FindQueries(context.Background())
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "go slog", qs[0].Query)
	assert.Nil(t, qs[0].Source)
	assert.Equal(t, "sqlite fts5", qs[1].Query)
	require.NotNil(t, qs[1].Source)
	assert.Equal(t, "home", qs[1].Source.ID)
}

func TestFeeds(t *testing.T) {
	r, a := newTestReader(t, nil)
	feeds := json.RawMessage(`[{"type":"application/rss+xml","href":"https://blog.com/feed.xml","title":"Blog"}]`)
	addActivities(t, a,
		storage.ActivityRecord{ID: "a1", URL: "https://blog.com/one", LoadTime: msPtr(1), AllFeeds: feeds},
		storage.ActivityRecord{ID: "a2", URL: "https://blog.com/two", LoadTime: msPtr(2), AllFeeds: feeds},
	)
	addPage(t, a, "https://blog.com/one", "One", "<p>one</p>", map[string]any{
		"feeds": []map[string]any{{"url": "https://blog.com/feed.xml", "body": "<rss/>", "contentType": "text/xml", "fetchTime": 10}},
	})

	got, err := r.Feeds(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	f := got[0]
	assert.Equal(t, "https://blog.com/feed.xml", f.URL)
	assert.Equal(t, "Blog", f.Title)
	assert.Equal(t, []string{"https://blog.com/one", "https://blog.com/two"}, f.Pages)
	assert.Equal(t, "<rss/>", f.Body)
}

// --- Sample ---

func TestSample_UniqueDomainAndExclusions(t *testing.T) {
	ex, err := NewExclusions([]string{"secret.com"}, nil)
	require.NoError(t, err)
	r, a := newTestReader(t, ex)

	for _, u := range []string{
		"https://a.com/1", "https://a.com/2", "https://www.a.com/3",
		"https://b.com/x", "https://secret.com/inbox",
	} {
		addPage(t, a, u, u, "<p>x</p>", nil)
	}
	ctx := context.Background()

	all, err := r.Sample(ctx, 0, SampleOptions{Rand: rand.New(rand.NewPCG(1, 2))})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	uniq, err := r.Sample(ctx, 10, SampleOptions{UniqueDomain: true, Rand: rand.New(rand.NewPCG(3, 4))})
	require.NoError(t, err)
	require.Len(t, uniq, 2)
	assert.NotEqual(t, uniq[0].Domain(), uniq[1].Domain())

	pat, err := r.Sample(ctx, 10, SampleOptions{UniquePattern: true})
	require.NoError(t, err)
	assert.Len(t, pat, 2, "a.com/# and b.com/C")

	two, err := r.Sample(ctx, 1, SampleOptions{})
	require.NoError(t, err)
	assert.Len(t, two, 1)
}

// --- Full-text index ---

func TestCreateIndexAndSearch(t *testing.T) {
	ex, err := NewExclusions([]string{"bank.com"}, nil)
	require.NoError(t, err)
	r, a := newTestReader(t, ex)
	ctx := context.Background()

	addPage(t, a, "https://example.com/gophers", "Gophers", "<p>The gopher burrows underground.</p>", map[string]any{
		"readable": map[string]any{"textContent": "The gopher burrows.", "byline": "Ann Writer", "excerpt": "About gophers"},
		"head":     `<title>Gophers</title><meta name="description" content="All about rodents">`,
	})
	addPage(t, a, "https://example.com/cats", "Cats", "<p>Cats sleep a lot.</p>", map[string]any{
		"readable": map[string]any{"textContent": "Cats sleep."},
	})
	addPage(t, a, "https://bank.com/account", "Account", "<p>gopher balance</p>", map[string]any{
		"readable": map[string]any{"textContent": "gopher balance"},
	})

	n, err := r.CreateIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.CreateIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "incremental run skips indexed urls")

	res, err := r.Search(ctx, "gopher", 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "https://example.com/gophers", res.URLs[0])

	h, err := res.History(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/gophers", h.URL)
	_, err = res.History(ctx, 1)
	require.Error(t, err)

	for _, q := range []string{"rodents", "readable_byline:Writer", "url_words:cats"} {
		res, err := r.Search(ctx, q, 10)
		require.NoError(t, err, q)
		assert.Equal(t, 1, res.Len(), q)
	}

	n, err = r.CreateIndex(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "purge rebuilds everything")

	counts, err := r.IndexCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, IndexCounts{SearchPages: 2}, counts)

	require.NoError(t, r.PurgeIndexes(ctx))
	counts, err = r.IndexCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.SearchPages)
}

func TestPrefixQuery(t *testing.T) {
	assert.Equal(t, `"go"* OR "sql"*`, PrefixQuery("go  sql"))
	assert.Equal(t, `"say"* OR """hi"""*`, PrefixQuery(`say "hi"`))
	assert.Equal(t, "", PrefixQuery("   "))
}

// --- Entity index ---

// wordRecognizer tags every configured word found in the text.
type wordRecognizer map[string]string

func (w wordRecognizer) Entities(text string) ([]nlp.Entity, error) {
	var out []nlp.Entity
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, ".,")
		if label, ok := w[tok]; ok {
			out = append(out, nlp.Entity{Text: tok, Label: label})
		}
	}
	return out, nil
}

func TestCreateEntityIndex(t *testing.T) {
	r, a := newTestReader(t, nil)
	ctx := context.Background()
	rec := wordRecognizer{"Alice": nlp.LabelPerson, "Paris": nlp.LabelLocation, "--": nlp.LabelMisc}

	addPage(t, a, "https://news.com/1", "One", "<p>Alice met Alice in Paris -- twice.</p><div><span>Alice</span></div>", nil)
	addPage(t, a, "https://news.com/2", "Two", "<p>nothing to see</p>", nil)

	var progress []IndexProgress
	n, err := r.CreateEntityIndex(ctx, rec, false, func(p IndexProgress) { progress = append(progress, p) })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, progress, 2)
	assert.Equal(t, 2, progress[1].Total)

	hits, err := r.SearchEntities(ctx, "Alice", "", false)
	require.NoError(t, err)
	require.Len(t, hits, 2, "once per block")
	assert.Equal(t, "body > *:nth-child(1)", hits[0].Selector)
	assert.Equal(t, "body > *:nth-child(2)", hits[1].Selector)
	assert.Equal(t, nlp.LabelPerson, hits[0].Label)

	none, err := r.SearchEntities(ctx, NoEntity, "", false)
	require.NoError(t, err)
	require.Len(t, none, 1)
	assert.Equal(t, "https://news.com/2", none[0].URL)
	assert.Equal(t, "body", none[0].Selector)

	like, err := r.SearchEntities(ctx, "ari", nlp.LabelLocation, true)
	require.NoError(t, err)
	require.Len(t, like, 1)
	assert.Equal(t, "Paris", like[0].Entity)

	dashes, err := r.SearchEntities(ctx, "--", "", false)
	require.NoError(t, err)
	assert.Empty(t, dashes, "entities without letters are dropped")

	n, err = r.CreateEntityIndex(ctx, rec, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	sum, err := r.SummarizeEntities(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.DistinctEntities)
	assert.Equal(t, int64(4), sum.TotalEntities)
	assert.Equal(t, int64(2), sum.DistinctURLs)
	assert.Equal(t, LabelTotals{Per: 2, Loc: 1, Unknown: 1}, sum.TotalLabels)
	require.Len(t, sum.MostCommon, 1)
	assert.Equal(t, EntityCount{Entity: "Alice", Count: 2}, sum.MostCommon[0])
}

// --- Summaries ---

type recordingSummarizer struct {
	title, text string
	n           int
}

func (s *recordingSummarizer) Summarize(title, text string, n int) ([]string, error) {
	s.title, s.text, s.n = title, text, n
	return []string{"summary"}, nil
}

func TestSummarize_PrefersReadableText(t *testing.T) {
	r, a := newTestReader(t, nil)
	ctx := context.Background()
	addPage(t, a, "https://x.com/r", "Readable", "<p>full body text</p>", map[string]any{
		"readable": map[string]any{"textContent": "just the article"},
	})

	p, ok, err := r.Page(ctx, "https://x.com/r")
	require.NoError(t, err)
	require.True(t, ok)

	s := &recordingSummarizer{}
	out, err := Summarize(p, s, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"summary"}, out)
	assert.Equal(t, "Readable", s.title)
	assert.Equal(t, "just the article", s.text)
	assert.Equal(t, DefaultSummarySentences, s.n)
}
