package query

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/runnerr0/browsinglab/internal/htmltext"
)

var (
	slashRuns  = regexp.MustCompile(`/+`)
	numericSeg = regexp.MustCompile(`^[0-9]+$`)
)

// Domain returns the lower-cased host of a URL without a www, www2, ...
// prefix. Unparseable URLs give "".
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return htmltext.StripWWW(strings.ToLower(u.Hostname()))
}

// StripURLToPattern reduces a URL to its domain followed by one marker per
// path segment: /# for a numeric segment and /C for anything else. URLs
// that only differ in article ids or slugs share a pattern.
func StripURLToPattern(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(htmltext.StripWWW(strings.ToLower(u.Hostname())))
	for _, seg := range slashRuns.Split(u.Path, -1) {
		switch {
		case seg == "":
		case numericSeg.MatchString(seg):
			b.WriteString("/#")
		default:
			b.WriteString("/C")
		}
	}
	return b.String()
}
