package config

import (
	"github.com/runnerr0/browsinglab/internal/installer"
	"github.com/runnerr0/browsinglab/internal/nlp"
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			DefaultPath:   "~/.browsinglab/archive",
			LocationsFile: "~/.browsinglab/locations.txt",
			BlobCacheSize: 64,
		},
		Host: HostConfig{
			NativeName:     installer.DefaultNativeName,
			ExtensionID:    installer.DefaultExtensionID,
			MaxMessageSize: 64 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Search: SearchConfig{
			DefaultLimit: 20,
		},
		Index: IndexConfig{
			UseDefaultExclusions: true,
			ExcludeDomains:       []string{},
			ExcludePatterns:      []string{},
		},
		Entities: EntitiesConfig{
			Languages: append([]string(nil), nlp.DefaultLanguages...),
		},
		Summary: SummaryConfig{
			Sentences: 5,
		},
		Installer: InstallerConfig{
			ManifestDir: "",
			LauncherDir: "",
		},
	}
}
