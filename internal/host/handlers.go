package host

import (
	"context"
	"encoding/json"

	"github.com/runnerr0/browsinglab/internal/storage"
)

type handlerFunc func(ctx context.Context, s *Session, params json.RawMessage) (any, error)

// handler describes one message: its positional parameter names, which of
// them must be present and whether it can run without an archive. When rest
// is set every positional argument is collected into that parameter.
type handler struct {
	params          []string
	required        []string
	rest            string
	archiveOptional bool
	call            handlerFunc
}

// typed wraps fn so it receives its parameters strictly decoded into P.
func typed[P any](fn func(ctx context.Context, s *Session, p P) (any, error)) handlerFunc {
	return func(ctx context.Context, s *Session, raw json.RawMessage) (any, error) {
		var p P
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		return fn(ctx, s, p)
	}
}

type noParams struct{}

var handlers = map[string]handler{
	"set_active_archive": {
		params:          []string{"archiveLocation"},
		required:        []string{"archiveLocation"},
		archiveOptional: true,
		call:            typed(setActiveArchive),
	},
	"unset_active_archive": {
		call: typed(unsetActiveArchive),
	},
	"get_active_archive": {
		archiveOptional: true,
		call:            typed(getActiveArchive),
	},
	"get_archive_info": {
		archiveOptional: true,
		call:            typed(getArchiveInfo),
	},
	"set_archive_title": {
		params:   []string{"title"},
		required: []string{"title"},
		call:     typed(setArchiveTitle),
	},
	"list_archives": {
		archiveOptional: true,
		call:            typed(listArchives),
	},
	"register_browser": {
		params:   []string{"browserId", "userAgent", "devicePixelRatio", "testing", "autofetch"},
		required: []string{"browserId", "userAgent"},
		call:     typed(registerBrowser),
	},
	"register_session": {
		params:   []string{"sessionId", "browserId", "timezoneOffset"},
		required: []string{"sessionId", "browserId", "timezoneOffset"},
		call:     typed(registerSession),
	},
	"add_history_list": {
		params:   []string{"browserId", "sessionId", "historyItems"},
		required: []string{"browserId", "historyItems"},
		call:     typed(addHistoryList),
	},
	"add_activity_list": {
		params:   []string{"browserId", "sessionId", "activityItems"},
		required: []string{"browserId", "activityItems"},
		call:     typed(addActivityList),
	},
	"check_page_needed": {
		params:   []string{"url"},
		required: []string{"url"},
		call:     typed(checkPageNeeded),
	},
	"get_needed_pages": {
		params: []string{"limit"},
		call:   typed(getNeededPages),
	},
	"add_fetched_page": {
		params:   []string{"id", "url", "page"},
		required: []string{"id", "url", "page"},
		call:     typed(addFetchedPage),
	},
	"add_fetch_failure": {
		params:   []string{"url", "errorMessage"},
		required: []string{"url", "errorMessage"},
		call:     typed(addFetchFailure),
	},
	"status": {
		params:   []string{"browserId"},
		required: []string{"browserId"},
		call:     typed(status),
	},
	"log": {
		rest:            "args",
		archiveOptional: true,
		call:            typed(logMessage),
	},
}

// --- Archive selection ---

type archiveLocationParams struct {
	ArchiveLocation string `json:"archiveLocation"`
}

func setActiveArchive(ctx context.Context, s *Session, p archiveLocationParams) (any, error) {
	return s.OpenArchive(ctx, p.ArchiveLocation)
}

func unsetActiveArchive(ctx context.Context, s *Session, _ noParams) (any, error) {
	return nil, s.closeArchive(ctx)
}

func getActiveArchive(_ context.Context, s *Session, _ noParams) (any, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.Path(), nil
}

// ArchiveInfo is the reply to get_archive_info.
type ArchiveInfo struct {
	Path  string  `json:"path"`
	Title *string `json:"title"`
}

func getArchiveInfo(_ context.Context, s *Session, _ noParams) (any, error) {
	if s.archive == nil {
		return nil, nil
	}
	info := ArchiveInfo{Path: s.archive.Path()}
	title, err := s.archive.Title()
	if err != nil {
		return nil, err
	}
	if title != "" {
		info.Title = &title
	}
	return info, nil
}

type titleParams struct {
	Title string `json:"title"`
}

func setArchiveTitle(_ context.Context, s *Session, p titleParams) (any, error) {
	return nil, s.archive.SetTitle(p.Title)
}

func listArchives(_ context.Context, s *Session, _ noParams) (any, error) {
	file := s.opts.Storage.LocationsFile
	if file == "" {
		file = storage.DefaultLocationsFile()
	}
	return storage.NewLocations(file).List()
}

// --- Browser state ---

func registerBrowser(ctx context.Context, s *Session, p storage.BrowserRegistration) (any, error) {
	if err := s.archive.RegisterBrowser(ctx, p); err != nil {
		return nil, err
	}
	s.browserID = p.BrowserID
	return nil, nil
}

func registerSession(ctx context.Context, s *Session, p storage.SessionRegistration) (any, error) {
	if err := s.archive.RegisterSession(ctx, p); err != nil {
		return nil, err
	}
	s.sessionID = p.SessionID
	return nil, nil
}

func addHistoryList(ctx context.Context, s *Session, p storage.HistoryBatch) (any, error) {
	if _, err := s.archive.AddHistoryList(ctx, p); err != nil {
		return nil, err
	}
	return nil, nil
}

func addActivityList(ctx context.Context, s *Session, p storage.ActivityBatch) (any, error) {
	return nil, s.archive.AddActivityList(ctx, p)
}

// --- Pages ---

type urlParams struct {
	URL string `json:"url"`
}

func checkPageNeeded(ctx context.Context, s *Session, p urlParams) (any, error) {
	return s.archive.CheckPageNeeded(ctx, p.URL)
}

type limitParams struct {
	Limit *int `json:"limit"`
}

func getNeededPages(ctx context.Context, s *Session, p limitParams) (any, error) {
	limit := storage.DefaultNeededLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	return s.archive.NeededPages(ctx, limit)
}

func addFetchedPage(ctx context.Context, s *Session, p storage.FetchedPage) (any, error) {
	return nil, s.archive.AddFetchedPage(ctx, p)
}

type fetchFailureParams struct {
	URL          string `json:"url"`
	ErrorMessage string `json:"errorMessage"`
}

func addFetchFailure(ctx context.Context, s *Session, p fetchFailureParams) (any, error) {
	return nil, s.archive.AddFetchFailure(ctx, p.URL, p.ErrorMessage)
}

type statusParams struct {
	BrowserID string `json:"browserId"`
}

func status(ctx context.Context, s *Session, p statusParams) (any, error) {
	return s.archive.Status(ctx, p.BrowserID)
}

// --- Log ---

type logParams struct {
	Args  []json.RawMessage `json:"args"`
	Level string            `json:"level"`
	Stack *string           `json:"stack"`
}

func logMessage(_ context.Context, s *Session, p logParams) (any, error) {
	level := p.Level
	if level == "" {
		level = "log"
	}
	stack := ""
	if p.Stack != nil {
		stack = *p.Stack
	}
	s.writeLog(storage.FormatLogEntry(level, stack, p.Args, s.now()))
	return nil, nil
}
