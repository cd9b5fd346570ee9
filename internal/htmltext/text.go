package htmltext

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const invisibleSelector = "script, style, noscript, template"

// NormalizeSpace collapses runs of whitespace into single spaces.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FullText returns the visible text of the document body, one space
// between blocks.
func FullText(doc *goquery.Document) string {
	return selectionText(doc.Find("body"))
}

func selectionText(sel *goquery.Selection) string {
	sel = sel.Clone()
	sel.Find(invisibleSelector).Remove()
	var parts []string
	for _, n := range sel.Nodes {
		for _, b := range BlockLevelText(n) {
			parts = append(parts, b.Text)
		}
	}
	return NormalizeSpace(strings.Join(parts, " "))
}

// MetaDescription returns the content of <meta name="description">, or the
// og:description property when that is absent.
func MetaDescription(doc *goquery.Document) string {
	if d, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && strings.TrimSpace(d) != "" {
		return NormalizeSpace(d)
	}
	if d, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		return NormalizeSpace(d)
	}
	return ""
}

// ReadableText returns the article text of a page. The readability output
// saved by the browser is used when present; otherwise readability is run
// over the rebuilt document.
func ReadableText(b *Blob) (string, error) {
	if b.Readable != nil {
		if b.Readable.TextContent != "" {
			return NormalizeSpace(b.Readable.TextContent), nil
		}
		if b.Readable.Content != "" {
			return htmlToText(b.Readable.Content)
		}
	}

	pageURL, err := url.Parse(b.BaseURL())
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(b.HTML()), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract readable text of %s: %w", b.BaseURL(), err)
	}
	return htmlToText(article.Content)
}

func htmlToText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse readable content: %w", err)
	}
	return selectionText(doc.Find("body")), nil
}
