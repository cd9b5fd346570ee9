package cli

import (
	"io"
	"os"

	"github.com/runnerr0/browsinglab/internal/host"
)

// Execute implements the go-flags Commander interface for ConnectCommand.
func (c *ConnectCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, c.globals.Verbose)
	if err != nil {
		return err
	}
	opts, err := storageOptions(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s := host.NewSession(host.Options{
		Storage:        opts,
		MaxMessageSize: cfg.Host.MaxMessageSize,
		Logger:         logger,
	})
	defer s.Close(ctx)

	// An archive given on the command line (the installed launcher passes
	// one) is active before the extension says anything.
	if c.globals.Archive != "" {
		path, err := archivePath(c.globals, cfg)
		if err != nil {
			return err
		}
		opened, err := s.OpenArchive(ctx, path)
		if err != nil {
			return err
		}
		logger.Info("archive opened", "path", opened)
	}

	var r io.Reader = os.Stdin
	if c.stdin != nil {
		r = c.stdin
	}
	var w io.Writer = os.Stdout
	if c.stdout != nil {
		w = c.stdout
	}
	return s.Run(ctx, r, w)
}
