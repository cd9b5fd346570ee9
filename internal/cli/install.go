package cli

import (
	"fmt"

	"github.com/runnerr0/browsinglab/internal/config"
	"github.com/runnerr0/browsinglab/internal/installer"
)

// Execute implements the go-flags Commander interface for InstallCommand.
func (c *InstallCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	archive, err := archivePath(c.globals, cfg)
	if err != nil {
		return err
	}

	manifestDir := c.ManifestDir
	if manifestDir == "" {
		manifestDir = cfg.Installer.ManifestDir
	}
	if manifestDir, err = config.ExpandPath(manifestDir); err != nil {
		return err
	}
	launcherDir, err := config.ExpandPath(cfg.Installer.LauncherDir)
	if err != nil {
		return err
	}

	res, err := installer.Install(installer.Options{
		NativeName:  cfg.Host.NativeName,
		ExtensionID: cfg.Host.ExtensionID,
		Binary:      c.Binary,
		ArchiveDir:  archive,
		ManifestDir: manifestDir,
		LauncherDir: launcherDir,
	})
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{
			"manifest_path": res.ManifestPath,
			"launcher_path": res.LauncherPath,
			"manifest":      res.Manifest,
		})
	}
	fmt.Printf("Manifest: %s\n", res.ManifestPath)
	fmt.Printf("Launcher: %s\n", res.LauncherPath)
	fmt.Printf("Archive:  %s\n", archive)
	return nil
}
