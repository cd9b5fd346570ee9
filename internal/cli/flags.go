package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	Archive string `long:"archive" description:"Archive directory (default from config)"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ConnectCommand: run the native messaging host on stdin/stdout.
type ConnectCommand struct {
	globals *GlobalFlags
	version string
	stdin   io.Reader // injectable for testing; nil means os.Stdin
	stdout  io.Writer // injectable for testing; nil means os.Stdout
}

// InstallCommand: register the host manifest and launcher with Firefox.
type InstallCommand struct {
	ManifestDir string `long:"manifest-dir" description:"Override the browser's manifest directory"`
	Binary      string `long:"binary" description:"Executable the launcher runs (default: this binary)"`

	globals *GlobalFlags
	version string
}

// StatusCommand: show archive counts and index coverage.
type StatusCommand struct {
	Browser string `long:"browser" description:"Browser id whose history bounds to report"`

	globals *GlobalFlags
	version string
}

// ArchivesCommand: list the archive directories opened before.
type ArchivesCommand struct {
	globals *GlobalFlags
	version string
}

// IndexCommand: build the full-text search index.
type IndexCommand struct {
	Purge bool `long:"purge" description:"Rebuild the index from scratch"`

	globals *GlobalFlags
	version string
}

// EntitiesCommand: build the named-entity index.
type EntitiesCommand struct {
	Purge bool `long:"purge" description:"Rebuild the index from scratch"`

	globals *GlobalFlags
	version string
}

// SearchCommand: full-text search over fetched pages.
type SearchCommand struct {
	Limit int  `long:"limit" description:"Maximum results (default from config)"`
	Raw   bool `long:"raw" description:"Pass the query to FTS5 unchanged"`

	globals *GlobalFlags
	version string
}

// EntitySearchCommand: find pages mentioning an entity.
type EntitySearchCommand struct {
	Label    string `long:"label" description:"Restrict to PER, LOC, ORG or MISC"`
	Wildcard bool   `long:"wildcard" description:"Case-insensitive substring match"`

	globals *GlobalFlags
	version string
}

// EntityStatsCommand: summarise the entity index.
type EntityStatsCommand struct {
	MostCommon int `long:"most-common" description:"List the N most common entities" default:"0"`

	globals *GlobalFlags
	version string
}

// SampleCommand: print a random sample of fetched pages.
type SampleCommand struct {
	UniquePattern bool  `long:"unique-pattern" description:"At most one page per URL pattern"`
	UniqueDomain  bool  `long:"unique-domain" description:"At most one page per domain"`
	Seed          int64 `long:"seed" description:"Random seed for a repeatable sample"`

	globals *GlobalFlags
	version string
}

// SummarizeCommand: print an extractive summary of a page.
type SummarizeCommand struct {
	Sentences int  `long:"sentences" description:"Number of sentences (default from config)"`
	Paragraph bool `long:"paragraph" description:"Print the summary as one paragraph"`

	globals *GlobalFlags
	version string
}

// QueriesCommand: list web searches found in the history.
type QueriesCommand struct {
	Since string `long:"since" description:"Only searches newer than duration (e.g., 7d, 24h, 2w)"`
	Limit int    `long:"limit" description:"Maximum results" default:"20"`

	globals *GlobalFlags
	version string
}

// FeedsCommand: list feeds advertised by visited pages.
type FeedsCommand struct {
	globals *GlobalFlags
	version string
}

// OpenCommand: print the stored content of a page.
type OpenCommand struct {
	Format string `long:"format" description:"Output format: text | html | json" default:"text"`

	globals *GlobalFlags
	version string
}

// AddCommand: store a page by hand, as if the extension had fetched it.
type AddCommand struct {
	URL      string `long:"url" description:"URL of the page (required)"`
	Title    string `long:"title" description:"Page title (required)"`
	BodyFile string `long:"body-file" description:"Path to an HTML file for the page body"`
	Body     string `long:"body" description:"Inline HTML body"`

	globals *GlobalFlags
	version string
}

// PruneCommand: forget old fetch failures so the pages are retried.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Age of failures to forget (e.g., 30d)" default:"30d"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// PurgeCommand: empty the derived search and entity indexes.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	stdin   io.Reader // injectable for testing; nil means os.Stdin
}

// MCPCommand: serve read-only MCP tools over stdio.
type MCPCommand struct {
	globals *GlobalFlags
	version string
}
