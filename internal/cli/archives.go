package cli

import (
	"fmt"

	"github.com/runnerr0/browsinglab/internal/storage"
)

// Execute implements the go-flags Commander interface for ArchivesCommand.
func (c *ArchivesCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	path, err := cfg.LocationsFile()
	if err != nil {
		return err
	}

	locations, err := storage.NewLocations(path).List()
	if err != nil {
		return err
	}
	if wantJSON(c.globals) {
		return printJSON(struct {
			Archives []string `json:"archives"`
		}{Archives: locations})
	}
	if len(locations) == 0 {
		fmt.Println("No archives recorded yet.")
		return nil
	}
	for _, loc := range locations {
		fmt.Println(loc)
	}
	return nil
}
