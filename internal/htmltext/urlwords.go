package htmltext

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	wwwPrefix  = regexp.MustCompile(`^www[0-9]*\.`)
	numberOnly = regexp.MustCompile(`^[0-9]+$`)
	hexOnly    = regexp.MustCompile(`(?i)^[a-f0-9]+$`)
)

// StripWWW removes a www, www2, www3... prefix from a lower-cased host.
func StripWWW(host string) string {
	return wwwPrefix.ReplaceAllString(host, "")
}

func ignoredURLWord(w string) bool {
	w = strings.TrimSpace(w)
	if w == "" {
		return true
	}
	return numberOnly.MatchString(w) || (len(w) > 10 && hexOnly.MatchString(w))
}

// URLWords reduces a URL to the words that describe it for indexing: the
// host without www or TLD, the path segments, the fragment and the query
// names and values. Numbers and long hex tokens are left out.
func URLWords(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	var words []string

	host := StripWWW(strings.ToLower(u.Hostname()))
	if host != "" {
		parts := strings.Split(host, ".")
		if len(parts) > 1 {
			parts = parts[:len(parts)-1]
		}
		words = append(words, parts...)
	}

	for _, seg := range strings.Split(u.Path, "/") {
		if !ignoredURLWord(seg) {
			words = append(words, seg)
		}
	}

	if !ignoredURLWord(u.Fragment) {
		words = append(words, u.Fragment)
	}

	for _, pair := range strings.Split(u.RawQuery, "&") {
		name, value, _ := strings.Cut(pair, "=")
		name, _ = url.QueryUnescape(name)
		value, _ = url.QueryUnescape(value)
		if value == "" || ignoredURLWord(value) {
			continue
		}
		words = append(words, name, value)
	}
	return words
}
