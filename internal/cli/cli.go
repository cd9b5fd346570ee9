package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Connect      *ConnectCommand
	Install      *InstallCommand
	Status       *StatusCommand
	Archives     *ArchivesCommand
	Index        *IndexCommand
	Entities     *EntitiesCommand
	Search       *SearchCommand
	EntitySearch *EntitySearchCommand
	EntityStats  *EntityStatsCommand
	Sample       *SampleCommand
	Summarize    *SummarizeCommand
	Queries      *QueriesCommand
	Feeds        *FeedsCommand
	Open         *OpenCommand
	Add          *AddCommand
	Prune        *PruneCommand
	Purge        *PurgeCommand
	MCP          *MCPCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "browsinglab"
	parser.LongDescription = "Archive browsing activity and fetched pages from Firefox, then search and analyse them locally."

	g := &globals
	cmds := &commands{
		Connect:      &ConnectCommand{globals: g, version: version},
		Install:      &InstallCommand{globals: g, version: version},
		Status:       &StatusCommand{globals: g, version: version},
		Archives:     &ArchivesCommand{globals: g, version: version},
		Index:        &IndexCommand{globals: g, version: version},
		Entities:     &EntitiesCommand{globals: g, version: version},
		Search:       &SearchCommand{globals: g, version: version},
		EntitySearch: &EntitySearchCommand{globals: g, version: version},
		EntityStats:  &EntityStatsCommand{globals: g, version: version},
		Sample:       &SampleCommand{globals: g, version: version},
		Summarize:    &SummarizeCommand{globals: g, version: version},
		Queries:      &QueriesCommand{globals: g, version: version},
		Feeds:        &FeedsCommand{globals: g, version: version},
		Open:         &OpenCommand{globals: g, version: version},
		Add:          &AddCommand{globals: g, version: version},
		Prune:        &PruneCommand{globals: g, version: version},
		Purge:        &PurgeCommand{globals: g, version: version},
		MCP:          &MCPCommand{globals: g, version: version},
	}

	parser.AddCommand("connect", "Run the native messaging host", "Run the native messaging host on stdin/stdout. Firefox starts this through the installed launcher.", cmds.Connect)
	parser.AddCommand("install", "Install the native messaging host", "Write the Firefox host manifest and a launcher script bound to the archive.", cmds.Install)
	parser.AddCommand("status", "Show archive statistics", "Show archive location, record counts and index coverage.", cmds.Status)
	parser.AddCommand("archives", "List known archives", "List the archive directories that have been opened before.", cmds.Archives)
	parser.AddCommand("index", "Build the full-text index", "Index every fetched page for full-text search. Already indexed pages are skipped unless --purge is given.", cmds.Index)
	parser.AddCommand("entities", "Build the entity index", "Find named entities in every fetched page. Already indexed pages are skipped unless --purge is given.", cmds.Entities)
	parser.AddCommand("search", "Search fetched pages", "Full-text search over fetched pages.", cmds.Search)
	parser.AddCommand("entity-search", "Search the entity index", "Find pages mentioning an entity.", cmds.EntitySearch)
	parser.AddCommand("entity-stats", "Summarise the entity index", "Count entities, pages and labels in the entity index.", cmds.EntityStats)
	parser.AddCommand("sample", "Print random pages", "Print a random sample of N fetched pages.", cmds.Sample)
	parser.AddCommand("summarize", "Summarise a page", "Print the sentences that best summarise a fetched page.", cmds.Summarize)
	parser.AddCommand("queries", "List web searches", "List search-engine queries found in the browsing history.", cmds.Queries)
	parser.AddCommand("feeds", "List feeds", "List RSS and Atom feeds advertised by visited pages.", cmds.Feeds)
	parser.AddCommand("open", "Print a stored page", "Print the stored content of a fetched page.", cmds.Open)
	parser.AddCommand("add", "Store a page by hand", "Store a URL, title and HTML body as a fetched page.", cmds.Add)
	parser.AddCommand("prune", "Forget old fetch failures", "Remove fetch failures older than a duration so the extension retries those pages.", cmds.Prune)
	parser.AddCommand("purge", "Empty the derived indexes", "Delete the full-text and entity indexes. Destructive operation with safety prompt.", cmds.Purge)
	parser.AddCommand("mcp", "Serve MCP tools on stdio", "Serve read-only archive tools over the Model Context Protocol on stdin/stdout.", cmds.MCP)

	return parser, &globals, cmds
}

// Run is the main entry point for the browsinglab CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("browsinglab %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
