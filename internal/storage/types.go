package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Millis is an epoch-milliseconds timestamp. Firefox reports navigation and
// visit times with a fractional part, which is truncated.
type Millis int64

// UnmarshalJSON accepts integral and fractional numbers.
func (m *Millis) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	*m = Millis(f)
	return nil
}

// Value implements driver.Valuer.
func (m Millis) Value() (driver.Value, error) {
	return int64(m), nil
}

// Browser is one browser instance that has connected to the archive.
type Browser struct {
	ID               string
	Created          time.Time
	UserAgent        string
	DevicePixelRatio float64
	Connected        bool
	Testing          bool
	Autofetch        bool
	NewestHistory    *int64
	OldestHistory    *int64
}

// BrowserRegistration is the payload of register_browser.
type BrowserRegistration struct {
	BrowserID        string   `json:"browserId"`
	UserAgent        string   `json:"userAgent"`
	DevicePixelRatio *float64 `json:"devicePixelRatio,omitempty"`
	Testing          bool     `json:"testing,omitempty"`
	Autofetch        bool     `json:"autofetch,omitempty"`
}

// SessionRegistration is the payload of register_session. StartTime defaults
// to the current time in milliseconds.
type SessionRegistration struct {
	SessionID      string  `json:"sessionId"`
	BrowserID      string  `json:"browserId"`
	TimezoneOffset int     `json:"timezoneOffset"`
	StartTime      *Millis `json:"startTime,omitempty"`
}

// HistoryItem is one entry of the browser's own history, keyed by the
// browser's history id in HistoryBatch. LastVisitTime, VisitCount and
// TypedCount come with every history.HistoryItem; the visits carry the same
// information, so they are accepted but not stored.
type HistoryItem struct {
	URL           string                  `json:"url"`
	Title         string                  `json:"title"`
	LastVisitTime *Millis                 `json:"lastVisitTime,omitempty"`
	VisitCount    *int64                  `json:"visitCount,omitempty"`
	TypedCount    *int64                  `json:"typedCount,omitempty"`
	Visits        map[string]HistoryVisit `json:"visits"`
}

// HistoryVisit is one visit of a HistoryItem, keyed by the browser's visit id.
type HistoryVisit struct {
	VisitTime        Millis  `json:"visitTime"`
	Transition       *string `json:"transition"`
	ReferringVisitID *string `json:"referringVisitId"`
}

// HistoryBatch is the payload of add_history_list.
type HistoryBatch struct {
	BrowserID    string                 `json:"browserId"`
	SessionID    string                 `json:"sessionId"`
	HistoryItems map[string]HistoryItem `json:"historyItems"`
}

// ActivityLink is an outbound link seen on the page of an activity.
type ActivityLink struct {
	URL       string  `json:"url"`
	Text      string  `json:"text"`
	Rel       *string `json:"rel,omitempty"`
	Target    *string `json:"target,omitempty"`
	ElementID *string `json:"elementId,omitempty"`
}

// ActivityRecord is one page-visit event as sent by the extension. Every
// column is enumerated; submissions carrying other keys are rejected by the
// strict decoder in the host. The transition qualifiers keep the snake_case
// names webNavigation gives them. Active is the tab state at flush time and
// is not stored.
type ActivityRecord struct {
	ID                     string          `json:"id"`
	SessionID              *string         `json:"sessionId,omitempty"`
	URL                    string          `json:"url"`
	Title                  *string         `json:"title,omitempty"`
	OgTitle                *string         `json:"ogTitle,omitempty"`
	LoadTime               *Millis         `json:"loadTime,omitempty"`
	UnloadTime             *Millis         `json:"unloadTime,omitempty"`
	TransitionType         *string         `json:"transitionType,omitempty"`
	SourceClickText        *string         `json:"sourceClickText,omitempty"`
	SourceClickHref        *string         `json:"sourceClickHref,omitempty"`
	ClientRedirect         bool            `json:"client_redirect,omitempty"`
	ServerRedirect         bool            `json:"server_redirect,omitempty"`
	ForwardBack            bool            `json:"forward_back,omitempty"`
	FromAddressBar         bool            `json:"from_address_bar,omitempty"`
	SourceID               *string         `json:"sourceId,omitempty"`
	InitialLoadID          *string         `json:"initialLoadId,omitempty"`
	NewTab                 *bool           `json:"newTab,omitempty"`
	Active                 *bool           `json:"active,omitempty"`
	ActiveCount            *int64          `json:"activeCount,omitempty"`
	ActiveTime             *Millis         `json:"activeTime,omitempty"`
	ClosedReason           *string         `json:"closedReason,omitempty"`
	Method                 *string         `json:"method,omitempty"`
	StatusCode             *int64          `json:"statusCode,omitempty"`
	ContentType            *string         `json:"contentType,omitempty"`
	HasSetCookie           *bool           `json:"hasSetCookie,omitempty"`
	HasCookie              *bool           `json:"hasCookie,omitempty"`
	CopyEvents             json.RawMessage `json:"copyEvents,omitempty"`
	FormControlInteraction *int64          `json:"formControlInteraction,omitempty"`
	FormTextInteraction    *int64          `json:"formTextInteraction,omitempty"`
	IsHashChange           *bool           `json:"isHashChange,omitempty"`
	MaxScroll              *int64          `json:"maxScroll,omitempty"`
	DocumentHeight         *int64          `json:"documentHeight,omitempty"`
	HashPointsToElement    *bool           `json:"hashPointsToElement,omitempty"`
	ZoomLevel              *float64        `json:"zoomLevel,omitempty"`
	CanonicalURL           *string         `json:"canonicalUrl,omitempty"`
	MainFeedURL            *string         `json:"mainFeedUrl,omitempty"`
	AllFeeds               json.RawMessage `json:"allFeeds,omitempty"`
	LinkInformation        []ActivityLink  `json:"linkInformation,omitempty"`
}

// ActivityBatch is the payload of add_activity_list.
type ActivityBatch struct {
	BrowserID     string           `json:"browserId"`
	SessionID     string           `json:"sessionId"`
	ActivityItems []ActivityRecord `json:"activityItems"`
}

// FetchedPage is the payload of add_fetched_page. Content is the scraped page
// blob, stored verbatim apart from an added originalUrl key.
type FetchedPage struct {
	ID      string          `json:"id"`
	URL     string          `json:"url"`
	Content json.RawMessage `json:"page"`
}

// pageHeader holds the parts of a page blob the metadata row needs.
type pageHeader struct {
	URL         string  `json:"url"`
	TimeToFetch *int64  `json:"timeToFetch"`
	ActivityID  *string `json:"activityId"`
}

// NeededPage is a URL that has been visited but has no stored page.
type NeededPage struct {
	URL       string  `json:"url"`
	LastError *string `json:"lastError"`
}

// Counters are computed when an archive opens.
type Counters struct {
	Activities   int64 `json:"activities"`
	FetchedPages int64 `json:"fetchedPages"`
	FetchErrors  int64 `json:"fetchErrors"`
}

// Status is the reply to the status message.
type Status struct {
	ActivityCount   int64  `json:"activity_count"`
	Latest          *int64 `json:"latest"`
	Oldest          *int64 `json:"oldest"`
	FetchedCount    int64  `json:"fetched_count"`
	FetchErrorCount int64  `json:"fetch_error_count"`
}
