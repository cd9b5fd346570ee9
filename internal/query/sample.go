package query

import (
	"context"
	"math/rand/v2"
)

// SampleOptions narrows Sample.
type SampleOptions struct {
	// UniquePattern keeps at most one history per StripURLToPattern value.
	UniquePattern bool
	// UniqueDomain keeps at most one history per Domain value.
	UniqueDomain bool
	// Rand shuffles the candidates. Nil uses the global source.
	Rand *rand.Rand
}

// Sample returns up to n random histories that have a stored page.
// Excluded URLs never appear. n <= 0 returns every candidate in random order.
func (r *Reader) Sample(ctx context.Context, n int, opts SampleOptions) ([]*History, error) {
	all, err := r.HistoriesWithPage(ctx)
	if err != nil {
		return nil, err
	}

	shuffle := rand.Shuffle
	if opts.Rand != nil {
		shuffle = opts.Rand.Shuffle
	}
	shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	patterns := make(map[string]bool)
	domains := make(map[string]bool)
	var out []*History
	for _, h := range all {
		if n > 0 && len(out) >= n {
			break
		}
		if r.exclude.Excluded(h.URL) {
			continue
		}
		if opts.UniquePattern {
			p := StripURLToPattern(h.URL)
			if patterns[p] {
				continue
			}
			patterns[p] = true
		}
		if opts.UniqueDomain {
			d := Domain(h.URL)
			if domains[d] {
				continue
			}
			domains[d] = true
		}
		out = append(out, h)
	}
	return out, nil
}
