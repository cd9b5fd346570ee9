package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/browsinglab/internal/nativemsg"
	"github.com/runnerr0/browsinglab/internal/nlp"
	"github.com/runnerr0/browsinglab/internal/storage"
)

func TestVersionOutputFormat(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "browsinglab 1.2.3", strings.TrimSpace(out))
}

func TestHelpReturnsNil(t *testing.T) {
	_, err := run(t, "--help")
	assert.NoError(t, err)
}

func TestUnknownSubcommand(t *testing.T) {
	parser, _, _ := parseOnly(t)
	_, err := parser.ParseArgs([]string{"frobnicate"})
	assert.Error(t, err)
}

func TestSubcommandsRecognized(t *testing.T) {
	cases := [][]string{
		{"connect"},
		{"install", "--manifest-dir", "/tmp/m"},
		{"status", "--browser", "b1"},
		{"archives"},
		{"index", "--purge"},
		{"entities"},
		{"search", "hello", "world"},
		{"entity-search", "--label", "PER", "Ada"},
		{"entity-stats", "--most-common", "5"},
		{"sample", "--unique-domain", "3"},
		{"summarize", "--paragraph", "https://example.org/"},
		{"queries", "--since", "7d"},
		{"feeds"},
		{"open", "--format", "html", "https://example.org/"},
		{"add", "--url", "https://example.org/", "--title", "Example"},
		{"prune", "--dry-run"},
		{"purge", "--all", "--force"},
		{"mcp"},
	}
	for _, args := range cases {
		t.Run(args[0], func(t *testing.T) {
			parser, _, _ := parseOnly(t)
			_, err := parser.ParseArgs(args)
			assert.NoError(t, err)
		})
	}
}

func TestFlagDefaults(t *testing.T) {
	parser, g, cmds := parseOnly(t)
	_, err := parser.ParseArgs([]string{"--json", "queries"})
	require.NoError(t, err)
	assert.True(t, g.JSON)
	assert.Equal(t, 20, cmds.Queries.Limit)

	parser, _, cmds = parseOnly(t)
	_, err = parser.ParseArgs([]string{"prune"})
	require.NoError(t, err)
	assert.Equal(t, "30d", cmds.Prune.OlderThan)
	assert.False(t, cmds.Prune.DryRun)

	parser, _, cmds = parseOnly(t)
	_, err = parser.ParseArgs([]string{"open", "https://example.org/"})
	require.NoError(t, err)
	assert.Equal(t, "text", cmds.Open.Format)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30d": 30 * 24 * time.Hour,
		"24h": 24 * time.Hour,
		"2w":  14 * 24 * time.Hour,
		"15m": 15 * time.Minute,
	}
	for in, want := range cases {
		got, err := parseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "d", "10x", "abc"} {
		_, err := parseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "-", formatMillis(nil))
}

func TestAddStatusSearchOpen(t *testing.T) {
	globals, archiveDir := testConfig(t)
	cmd := func(args ...string) []string { return append(append([]string{}, globals...), args...) }

	out, err := run(t, cmd("--json", "add", "--url", "https://example.org/post", "--title", "Hand Added",
		"--body", "<p>Hello gopher world</p>")...)
	require.NoError(t, err)
	var added struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.NotEmpty(t, added.ID)
	assert.FileExists(t, added.Path)
	assert.Equal(t, filepath.Join(archiveDir, storage.PagesDir), filepath.Dir(added.Path))

	out, err = run(t, cmd("--json", "status")...)
	require.NoError(t, err)
	var st statusJSON
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, int64(1), st.FetchedPages)
	assert.Equal(t, int64(0), st.SearchIndexed)
	assert.Equal(t, "1.2.3", st.Version)

	out, err = run(t, cmd("index")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 1 pages")

	out, err = run(t, cmd("--json", "search", "gopher")...)
	require.NoError(t, err)
	var res struct {
		Count   int                `json:"count"`
		Results []searchResultJSON `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "https://example.org/post", res.Results[0].URL)
	assert.Equal(t, "Hand Added", res.Results[0].Title)

	out, err = run(t, cmd("search", "nothingmatches")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No results")

	out, err = run(t, cmd("open", "https://example.org/post")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Title:     Hand Added")
	assert.Contains(t, out, "Hello gopher world")

	_, err = run(t, cmd("open", "https://example.org/missing")...)
	assert.ErrorContains(t, err, "no stored page")

	out, err = run(t, cmd("archives")...)
	require.NoError(t, err)
	assert.Contains(t, out, archiveDir)
}

func TestOpenStatusSummarizeDetails(t *testing.T) {
	globals, archiveDir := testConfig(t)
	cmd := func(args ...string) []string { return append(append([]string{}, globals...), args...) }
	url := "https://example.org/notes"

	_, err := run(t, cmd("add", "--url", url, "--title", "Notes",
		"--body", "<p>Gophers write Go code every day. Gophers enjoy writing small Go programs.</p>")...)
	require.NoError(t, err)

	ctx := context.Background()
	a, err := storage.Open(ctx, archiveDir, storage.Options{LocationsFile: filepath.Join(t.TempDir(), "locations.txt")})
	require.NoError(t, err)
	require.NoError(t, a.RegisterBrowser(ctx, storage.BrowserRegistration{BrowserID: "b1", UserAgent: "Firefox/99"}))
	require.NoError(t, os.WriteFile(a.AnnotationPath(url), []byte(`{"reviewed": true}`), 0644))
	require.NoError(t, a.Close())

	out, err := run(t, cmd("open", "--format", "json", url)...)
	require.NoError(t, err)
	var opened struct {
		Annotations map[string]any `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &opened))
	assert.Equal(t, map[string]any{"reviewed": true}, opened.Annotations)

	out, err = run(t, cmd("open", url)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Annotated: reviewed")

	out, err = run(t, cmd("--json", "status", "--browser", "b1")...)
	require.NoError(t, err)
	var st statusJSON
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.NotNil(t, st.Browser)
	assert.Equal(t, "Firefox/99", st.Browser.UserAgent)
	assert.True(t, st.Browser.Connected)

	out, err = run(t, cmd("--json", "status", "--browser", "nobody")...)
	require.NoError(t, err)
	st = statusJSON{}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Nil(t, st.Browser)

	out, err = run(t, cmd("--json", "summarize", "--sentences", "2", url)...)
	require.NoError(t, err)
	var sum struct {
		Sentences []string `json:"sentences"`
		Summary   string   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, nlp.JoinSentences(sum.Sentences), sum.Summary)
}

func TestAddValidation(t *testing.T) {
	globals, _ := testConfig(t)
	cmd := func(args ...string) []string { return append(append([]string{}, globals...), args...) }

	_, err := run(t, cmd("add", "--url", "https://example.org/")...)
	assert.ErrorContains(t, err, "--title is required")

	_, err = run(t, cmd("add", "--url", "not a url", "--title", "x")...)
	assert.ErrorContains(t, err, "invalid URL")

	_, err = run(t, cmd("add", "--url", "https://example.org/", "--title", "x", "--body", "a", "--body-file", "b")...)
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestPruneDryRun(t *testing.T) {
	globals, _ := testConfig(t)
	out, err := run(t, append(globals, "prune", "--dry-run", "--older-than", "7d")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Would forget 0 fetch failures older than 7d")

	_, err = run(t, append(globals, "prune", "--older-than", "soon")...)
	assert.ErrorContains(t, err, "invalid --older-than")
}

func TestPurge(t *testing.T) {
	globals, _ := testConfig(t)

	_, err := run(t, append(globals, "purge")...)
	assert.ErrorContains(t, err, "--all")

	parser, _, cmds := buildParser("test")
	cmds.Purge.stdin = strings.NewReader("nope\n")
	captureOutput(t, func() {
		_, err = parser.ParseArgs(append(globals, "purge", "--all"))
	})
	assert.ErrorContains(t, err, "confirmation text did not match")

	parser, _, cmds = buildParser("test")
	cmds.Purge.stdin = strings.NewReader("PURGE\n")
	out := captureOutput(t, func() {
		_, err = parser.ParseArgs(append(globals, "purge", "--all"))
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Purged the search and entity indexes.")
}

func TestQueriesAndFeedsEmptyArchive(t *testing.T) {
	globals, _ := testConfig(t)

	out, err := run(t, append(globals, "queries")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No searches found.")

	out, err = run(t, append(globals, "--json", "feeds")...)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestEntitySearchRejectsBadLabel(t *testing.T) {
	globals, _ := testConfig(t)
	_, err := run(t, append(globals, "entity-search", "--label", "CAT", "Ada")...)
	assert.ErrorContains(t, err, "invalid --label")
}

func TestConnectServesFrames(t *testing.T) {
	globals, archiveDir := testConfig(t)

	var in bytes.Buffer
	for i, name := range []string{"get_active_archive", "no_such_message"} {
		frame, err := nativemsg.Encode(map[string]any{"id": i + 1, "name": name, "args": []any{}, "kwargs": map[string]any{}})
		require.NoError(t, err)
		in.Write(frame)
	}
	var out bytes.Buffer

	parser, _, cmds := buildParser("test")
	cmds.Connect.stdin = &in
	cmds.Connect.stdout = &out
	_, err := parser.ParseArgs(append(globals, "--archive", archiveDir, "connect"))
	require.NoError(t, err)

	r := nativemsg.NewReader(&out)
	var replies []map[string]any
	for {
		body, err := r.ReadFrame()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		var rep map[string]any
		require.NoError(t, json.Unmarshal(body, &rep))
		replies = append(replies, rep)
	}
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0]["result"], "archive")
	assert.Contains(t, replies[1]["error"], "unknown message")
}

func TestInstallWritesManifest(t *testing.T) {
	globals, archiveDir := testConfig(t)
	manifestDir := t.TempDir()

	out, err := run(t, append(globals, "--json", "install", "--manifest-dir", manifestDir, "--binary", "/usr/local/bin/browsinglab")...)
	require.NoError(t, err)

	var res struct {
		ManifestPath string `json:"manifest_path"`
		LauncherPath string `json:"launcher_path"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, manifestDir, filepath.Dir(res.ManifestPath))

	script, err := os.ReadFile(res.LauncherPath)
	require.NoError(t, err)
	assert.Contains(t, string(script), "'/usr/local/bin/browsinglab' connect --archive '"+archiveDir+"'")
}
