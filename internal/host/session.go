// Package host runs the native messaging side of the extension: it reads
// framed requests from stdin, dispatches them against the active archive and
// writes one reply per request.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/runnerr0/browsinglab/internal/nativemsg"
	"github.com/runnerr0/browsinglab/internal/storage"
)

var (
	// ErrNoArchive is returned for messages that need an archive when none
	// has been set.
	ErrNoArchive = errors.New("attempted to send message before setting archive")
	// ErrUnknownMessage is returned for message names with no handler.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrBadArguments is returned when a message's arguments do not match
	// its handler.
	ErrBadArguments = errors.New("bad arguments")
)

// Options configures a Session.
type Options struct {
	Storage        storage.Options
	MaxMessageSize uint32
	Logger         *slog.Logger
}

// Session is the state of one connection: the active archive, the browser
// and browser session that registered on it and log text waiting for an
// archive.
type Session struct {
	archive   *storage.Archive
	browserID string
	sessionID string
	withheld  []string

	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewSession returns a Session with no archive.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{opts: opts, logger: logger, now: time.Now}
}

// Archive returns the active archive or nil.
func (s *Session) Archive() *storage.Archive { return s.archive }

// OpenArchive makes the archive at location active, closing any previous
// one first. Log text written while no archive was open is appended to the
// new archive's log. It returns the resolved path.
func (s *Session) OpenArchive(ctx context.Context, location string) (string, error) {
	path, err := ResolveLocation(location)
	if err != nil {
		return "", err
	}

	if err := s.closeArchive(ctx); err != nil {
		return "", err
	}

	a, err := storage.Open(ctx, path, s.opts.Storage)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", path, err)
	}
	s.archive = a
	s.logger.Info("archive opened", "path", a.Path(), "activities", a.Counters().Activities)

	if len(s.withheld) > 0 {
		if err := a.AppendLog(strings.Join(s.withheld, "")); err != nil {
			s.logger.Warn("flush withheld log", "error", err)
		} else {
			s.withheld = nil
		}
	}
	return a.Path(), nil
}

// closeArchive stamps the end of the registered browser session, marks the
// browser disconnected and closes the active archive.
func (s *Session) closeArchive(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	if s.sessionID != "" {
		if err := s.archive.EndSession(ctx, s.sessionID, s.now()); err != nil {
			s.logger.Warn("end browser session", "session", s.sessionID, "error", err)
		}
		s.sessionID = ""
	}
	if s.browserID != "" {
		if err := s.archive.SetBrowserConnected(ctx, s.browserID, false); err != nil {
			s.logger.Warn("mark browser disconnected", "browser", s.browserID, "error", err)
		}
	}
	err := s.archive.Close()
	s.archive = nil
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// Close ends the session.
func (s *Session) Close(ctx context.Context) error {
	if len(s.withheld) > 0 {
		s.logger.Debug("dropping log text with no archive", "entries", len(s.withheld))
	}
	return s.closeArchive(ctx)
}

// writeLog appends a formatted entry to the archive log, or holds it until
// an archive is set.
func (s *Session) writeLog(entry string) {
	if s.archive == nil {
		s.withheld = append(s.withheld, entry)
		return
	}
	if err := s.archive.AppendLog(entry); err != nil {
		s.logger.Warn("append addon log", "error", err)
	}
}

// Run serves messages from r until EOF, writing each reply to w before the
// next message is read. A clean EOF closes the session and returns nil;
// framing errors are returned.
func (s *Session) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := nativemsg.NewReader(r)
	if s.opts.MaxMessageSize > 0 {
		reader.SetMaxSize(s.opts.MaxMessageSize)
	}
	writer := nativemsg.NewWriter(w)
	defer func() {
		if err := s.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("close session", "error", err)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := reader.ReadMessage()
		if errors.Is(err, io.EOF) {
			s.logger.Debug("connection closed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		resp := s.Dispatch(ctx, msg)
		if err := writer.WriteMessage(resp); err != nil {
			return fmt.Errorf("write reply to %s: %w", msg.Name, err)
		}
	}
}

// ResolveLocation expands an archive location sent by the extension:
// __prefix__ becomes the directory of the running executable, a leading ~
// the home directory, and the result is made absolute.
func ResolveLocation(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("archive location is empty")
	}
	if strings.Contains(location, "__prefix__") {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("resolve __prefix__: %w", err)
		}
		location = strings.ReplaceAll(location, "__prefix__", filepath.Dir(exe))
	}
	if location == "~" || strings.HasPrefix(location, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		location = filepath.Join(home, location[1:])
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", fmt.Errorf("resolve archive location: %w", err)
	}
	return abs, nil
}
