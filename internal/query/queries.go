package query

import (
	"context"
	"errors"
	"sort"

	"github.com/runnerr0/browsinglab/internal/storage"
)

// searchEngines maps a search engine domain to the query parameter that
// carries the user's terms.
var searchEngines = map[string]string{
	"google.com":       "q",
	"bing.com":         "q",
	"duckduckgo.com":   "q",
	"search.yahoo.com": "p",
}

// SearchQuery is one search the user ran, with the activity that loaded the
// results page and the activity it was reached from, if known.
type SearchQuery struct {
	Query    string
	Activity *Activity
	Source   *Activity
}

// FindQueries lists search-engine result visits, newest first.
func (r *Reader) FindQueries(ctx context.Context) ([]SearchQuery, error) {
	var out []SearchQuery
	for domain, param := range searchEngines {
		acts, err := r.ActivitiesLike(ctx, "%"+domain+"%")
		if err != nil {
			return nil, err
		}
		for _, a := range acts {
			if Domain(a.URL) != domain {
				continue
			}
			q := a.QueryParams().Get(param)
			if q == "" {
				continue
			}
			src, err := r.Source(ctx, a)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
			out = append(out, SearchQuery{Query: q, Activity: a, Source: src})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return loadTime(out[i].Activity) > loadTime(out[j].Activity)
	})
	return out, nil
}

func loadTime(a *Activity) int64 {
	if a.LoadTime == nil {
		return 0
	}
	return *a.LoadTime
}
