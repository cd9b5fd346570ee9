package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// FeedLink is one entry of activity.allFeeds: a <link rel="alternate">
// advertised by a visited page.
type FeedLink struct {
	Type  string `json:"type"`
	Href  string `json:"href"`
	Title string `json:"title"`
}

// Feed is a feed URL together with the pages that advertised it and, when
// the fetcher downloaded it with a page, the feed body.
type Feed struct {
	URL   string
	Title string
	Type  string
	// Pages lists the page URLs that linked to the feed, sorted.
	Pages []string
	// Body is empty when no stored page carries the fetched feed.
	Body        string
	ContentType string
	Error       *string
}

// Feeds collects every feed advertised in the recorded activity, ordered
// by feed URL.
func (r *Reader) Feeds(ctx context.Context) ([]*Feed, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT url, allFeeds FROM activity
		WHERE allFeeds IS NOT NULL
		ORDER BY loadTime ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	byURL := make(map[string]*Feed)
	seen := make(map[string]map[string]bool)
	for rows.Next() {
		var pageURL, raw string
		if err := rows.Scan(&pageURL, &raw); err != nil {
			return nil, fmt.Errorf("scan feeds: %w", err)
		}
		var links []FeedLink
		if err := json.Unmarshal([]byte(raw), &links); err != nil {
			r.logger.Warn("skipping malformed allFeeds", "url", pageURL, "error", err)
			continue
		}
		for _, l := range links {
			if l.Href == "" {
				continue
			}
			f, ok := byURL[l.Href]
			if !ok {
				f = &Feed{URL: l.Href}
				byURL[l.Href] = f
				seen[l.Href] = make(map[string]bool)
			}
			if l.Title != "" {
				f.Title = l.Title
			}
			if l.Type != "" {
				f.Type = l.Type
			}
			if !seen[l.Href][pageURL] {
				seen[l.Href][pageURL] = true
				f.Pages = append(f.Pages, pageURL)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}
	rows.Close()

	if err := r.attachFeedBodies(ctx, byURL); err != nil {
		return nil, err
	}

	out := make([]*Feed, 0, len(byURL))
	for _, f := range byURL {
		sort.Strings(f.Pages)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

// attachFeedBodies fills Body from the feeds fetched alongside pages. A feed
// fetched by several pages keeps the most recent fetch.
func (r *Reader) attachFeedBodies(ctx context.Context, byURL map[string]*Feed) error {
	pages, err := r.pages(ctx)
	if err != nil {
		return err
	}
	latest := make(map[string]int64)
	for _, p := range pages {
		blob, err := p.LoadContent()
		if err != nil {
			r.logger.Warn("skipping unreadable page", "url", p.URL, "error", err)
			continue
		}
		for _, fetched := range blob.Feeds {
			f, ok := byURL[fetched.URL]
			if !ok {
				f = &Feed{URL: fetched.URL, Pages: []string{p.URL}}
				byURL[fetched.URL] = f
			}
			if prev, ok := latest[fetched.URL]; ok && prev > fetched.FetchTime {
				continue
			}
			latest[fetched.URL] = fetched.FetchTime
			f.Body = fetched.Body
			f.ContentType = fetched.ContentType
			f.Error = fetched.Error
		}
	}
	return nil
}
