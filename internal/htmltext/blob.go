// Package htmltext turns stored page blobs back into HTML documents and
// pulls text out of them: full text, readable text, block-level text with a
// selector for each block, URL words and normalised class names.
package htmltext

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Attr is one [name, value] attribute pair as the extension serialises it.
type Attr [2]string

// Resource is a sub-resource the scraper replaced with a placeholder name.
type Resource struct {
	URL string `json:"url"`
}

// Readable is the readability output computed in the browser.
type Readable struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	TextContent string `json:"textContent"`
	Byline      string `json:"byline"`
	Excerpt     string `json:"excerpt"`
	Length      int    `json:"length"`
	SiteName    string `json:"siteName"`
}

// FetchedFeed is a feed document fetched alongside a page.
type FetchedFeed struct {
	URL          string  `json:"url"`
	Body         string  `json:"body"`
	ContentType  string  `json:"contentType"`
	LastModified string  `json:"lastModified"`
	FetchTime    int64   `json:"fetchTime"`
	RedirectURL  string  `json:"redirectUrl"`
	Error        *string `json:"error"`
	Status       int     `json:"status"`
}

// Blob is the JSON stored in pages/<name>-page.json.
type Blob struct {
	URL         string              `json:"url"`
	OriginalURL string              `json:"originalUrl"`
	DocTitle    string              `json:"docTitle"`
	Head        string              `json:"head"`
	Body        string              `json:"body"`
	HTMLAttrs   []Attr              `json:"htmlAttrs"`
	HeadAttrs   []Attr              `json:"headAttrs"`
	BodyAttrs   []Attr              `json:"bodyAttrs"`
	Resources   map[string]Resource `json:"resources"`
	Readable    *Readable           `json:"readable"`
	Feeds       []FetchedFeed       `json:"feeds"`
	OpenGraph   json.RawMessage     `json:"openGraph"`
	TimeToFetch int64               `json:"timeToFetch"`
	ActivityID  string              `json:"activityId"`
}

// DecodeBlob parses a stored page blob. Keys it does not know are ignored.
func DecodeBlob(data []byte) (*Blob, error) {
	var b Blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode page blob: %w", err)
	}
	return &b, nil
}

// BaseURL is the URL the page was requested with.
func (b *Blob) BaseURL() string {
	if b.OriginalURL != "" {
		return b.OriginalURL
	}
	return b.URL
}

// Title is the document title, falling back to the readable title.
func (b *Blob) Title() string {
	if b.DocTitle != "" {
		return b.DocTitle
	}
	if b.Readable != nil {
		return b.Readable.Title
	}
	return ""
}

// HTML rebuilds a standalone document: the stored head and body with their
// attributes, a <base> pointing at the page URL and resource placeholders
// replaced by their URLs.
func (b *Blob) HTML() string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString(makeTag("html", b.HTMLAttrs))
	sb.WriteString(makeTag("head", b.HeadAttrs))
	fmt.Fprintf(&sb, `<base href="%s"><meta charset="UTF-8">`, html.EscapeString(b.BaseURL()))
	sb.WriteString(b.substituteResources(b.Head))
	sb.WriteString("</head>")
	sb.WriteString(makeTag("body", b.BodyAttrs))
	sb.WriteString(b.substituteResources(b.Body))
	sb.WriteString("</body></html>")
	return sb.String()
}

// Document parses HTML() with goquery.
func (b *Blob) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.HTML()))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", b.BaseURL(), err)
	}
	return doc, nil
}

func makeTag(name string, attrs []Attr) string {
	var sb strings.Builder
	sb.WriteString("<" + name)
	for _, a := range attrs {
		fmt.Fprintf(&sb, ` %s="%s"`, a[0], html.EscapeString(a[1]))
	}
	sb.WriteString(">")
	return sb.String()
}

// substituteResources replaces longer placeholder names first so that one
// name being a prefix of another cannot corrupt it.
func (b *Blob) substituteResources(s string) string {
	if len(b.Resources) == 0 {
		return s
	}
	names := make([]string, 0, len(b.Resources))
	for name := range b.Resources {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, name, b.Resources[name].URL)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
