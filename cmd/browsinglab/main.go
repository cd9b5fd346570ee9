// Command browsinglab archives Firefox browsing activity and fetched pages,
// and searches and analyses the archive.
package main

import (
	"fmt"
	"os"

	"github.com/runnerr0/browsinglab/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		fmt.Fprintln(os.Stderr, "browsinglab:", err)
		os.Exit(1)
	}
}
