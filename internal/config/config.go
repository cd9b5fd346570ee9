package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/browsinglab/config.yaml"

// Config holds all browsinglab configuration.
type Config struct {
	Archive   ArchiveConfig   `yaml:"archive"`
	Host      HostConfig      `yaml:"host"`
	Logging   LoggingConfig   `yaml:"logging"`
	Search    SearchConfig    `yaml:"search"`
	Index     IndexConfig     `yaml:"index"`
	Entities  EntitiesConfig  `yaml:"entities"`
	Summary   SummaryConfig   `yaml:"summary"`
	Installer InstallerConfig `yaml:"installer"`
}

type ArchiveConfig struct {
	DefaultPath   string `yaml:"default_path"`
	LocationsFile string `yaml:"locations_file"`
	BlobCacheSize int    `yaml:"blob_cache_size"`
}

type HostConfig struct {
	NativeName     string `yaml:"native_name"`
	ExtensionID    string `yaml:"extension_id"`
	MaxMessageSize uint32 `yaml:"max_message_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
}

// IndexConfig keeps pages out of the search and entity indexes and out of
// samples. The built-in sensitive-domain list applies unless
// UseDefaultExclusions is false.
type IndexConfig struct {
	UseDefaultExclusions bool     `yaml:"use_default_exclusions"`
	ExcludeDomains       []string `yaml:"exclude_domains"`
	ExcludePatterns      []string `yaml:"exclude_patterns"`
}

type EntitiesConfig struct {
	Languages []string `yaml:"languages"`
}

type SummaryConfig struct {
	Sentences int `yaml:"sentences"`
}

type InstallerConfig struct {
	ManifestDir string `yaml:"manifest_dir"`
	LauncherDir string `yaml:"launcher_dir"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// ArchivePath is the expanded default archive directory.
func (c *Config) ArchivePath() (string, error) {
	return ExpandPath(c.Archive.DefaultPath)
}

// LocationsFile is the expanded known-archives list path.
func (c *Config) LocationsFile() (string, error) {
	return ExpandPath(c.Archive.LocationsFile)
}

// ExcludeDomains is the configured domain list, preceded by the built-in
// sensitive domains when those are enabled.
func (c *Config) ExcludeDomains() []string {
	var out []string
	if c.Index.UseDefaultExclusions {
		out = append(out, DefaultExcludeDomains()...)
	}
	return append(out, c.Index.ExcludeDomains...)
}

// SlogLevel maps logging.level to a slog level. Unknown names give an error.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.Logging.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return lvl, nil
}
