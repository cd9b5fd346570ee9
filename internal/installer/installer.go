// Package installer registers the native messaging host with Firefox: a
// host manifest in the browser's lookup directory and a launcher script
// that runs "browsinglab connect" against a fixed archive.
package installer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Default host identity.
const (
	DefaultNativeName  = "browsinglab.connector"
	DefaultExtensionID = "browsinglab@mozilla.org"
	description        = "Saves information from the Browsing Lab extension"
)

// ErrUnsupportedPlatform is returned for operating systems without a known
// manifest location.
var ErrUnsupportedPlatform = errors.New("native messaging install not supported on this platform")

// Options controls Install. Empty fields take defaults.
type Options struct {
	NativeName  string
	ExtensionID string
	// Binary is the browsinglab executable the launcher runs.
	Binary string
	// ArchiveDir is passed to connect --archive.
	ArchiveDir string
	// ManifestDir overrides the platform manifest directory.
	ManifestDir string
	// LauncherDir holds the launcher script. Defaults to
	// ~/.config/browsinglab.
	LauncherDir string
	// GOOS and Home default to the running system.
	GOOS string
	Home string
}

// Manifest is the native messaging host manifest Firefox reads.
type Manifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

// Result reports where Install wrote its files.
type Result struct {
	ManifestPath string
	LauncherPath string
	Manifest     Manifest
}

// ManifestDir returns Firefox's per-user manifest directory for goos.
func ManifestDir(goos, home string) (string, error) {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Mozilla", "NativeMessagingHosts"), nil
	case "linux":
		return filepath.Join(home, ".mozilla", "native-messaging-hosts"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

// Install writes the launcher script and the host manifest pointing at it.
func Install(opts Options) (*Result, error) {
	opts, err := withDefaults(opts)
	if err != nil {
		return nil, err
	}
	manifestDir := opts.ManifestDir
	if manifestDir == "" {
		if manifestDir, err = ManifestDir(opts.GOOS, opts.Home); err != nil {
			return nil, err
		}
	}

	for _, dir := range []string{manifestDir, opts.LauncherDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	launcher := filepath.Join(opts.LauncherDir, opts.NativeName+".sh")
	if err := os.WriteFile(launcher, []byte(LauncherScript(opts.Binary, opts.ArchiveDir)), 0o755); err != nil {
		return nil, fmt.Errorf("write launcher: %w", err)
	}

	m := Manifest{
		Name:              opts.NativeName,
		Description:       description,
		Path:              launcher,
		Type:              "stdio",
		AllowedExtensions: []string{opts.ExtensionID},
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	manifestPath := filepath.Join(manifestDir, opts.NativeName+".json")
	if err := os.WriteFile(manifestPath, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return &Result{ManifestPath: manifestPath, LauncherPath: launcher, Manifest: m}, nil
}

// LauncherScript is the shell script Firefox runs to start the host.
func LauncherScript(binary, archiveDir string) string {
	return fmt.Sprintf("#!/bin/sh\nexec %s connect --archive %s\n", shellQuote(binary), shellQuote(archiveDir))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func withDefaults(opts Options) (Options, error) {
	if opts.NativeName == "" {
		opts.NativeName = DefaultNativeName
	}
	if opts.ExtensionID == "" {
		opts.ExtensionID = DefaultExtensionID
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return opts, fmt.Errorf("find home directory: %w", err)
		}
		opts.Home = home
	}
	if opts.LauncherDir == "" {
		opts.LauncherDir = filepath.Join(opts.Home, ".config", "browsinglab")
	}
	if opts.Binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return opts, fmt.Errorf("find executable: %w", err)
		}
		opts.Binary = exe
	}
	if opts.ArchiveDir == "" {
		return opts, errors.New("install: archive directory is required")
	}
	abs, err := filepath.Abs(opts.ArchiveDir)
	if err != nil {
		return opts, fmt.Errorf("resolve archive directory: %w", err)
	}
	opts.ArchiveDir = abs
	return opts, nil
}
