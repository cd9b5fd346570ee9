package query

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Exclusions keeps sensitive pages out of the derived indexes and samples.
// A URL is excluded when its domain equals or is a subdomain of a listed
// domain, or when the whole URL matches one of the glob patterns.
type Exclusions struct {
	domains  []string
	patterns []glob.Glob
}

// NewExclusions compiles the given domains and URL glob patterns.
func NewExclusions(domains, patterns []string) (*Exclusions, error) {
	e := &Exclusions{}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			e.domains = append(e.domains, d)
		}
	}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, g)
	}
	return e, nil
}

// Excluded reports whether url should be skipped. A nil Exclusions
// excludes nothing.
func (e *Exclusions) Excluded(url string) bool {
	if e == nil {
		return false
	}
	if host := Domain(url); host != "" {
		for _, d := range e.domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return true
			}
		}
	}
	for _, g := range e.patterns {
		if g.Match(url) {
			return true
		}
	}
	return false
}
