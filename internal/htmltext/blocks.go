package htmltext

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// defaultDisplay is the CSS display value browsers give each element by
// default. Elements not listed count as block.
var defaultDisplay = map[string]string{
	"a": "inline", "applet": "inline", "article": "block", "area": "none",
	"audio": "none", "base": "none", "basefont": "none", "bgsound": "inline",
	"blockquote": "block", "body": "flex", "br": "inline", "button": "inline-block",
	"canvas": "inline", "col": "table-column", "colgroup": "table-column-group",
	"del": "inline", "details": "block", "dir": "block", "div": "block", "dl": "block",
	"embed": "inline", "fieldset": "block", "footer": "block", "font": "inline",
	"form": "block", "frame": "inline", "frameset": "block",
	"h1": "block", "h2": "block", "h3": "block", "h4": "block", "h5": "block", "h6": "block",
	"head": "none", "hr": "block", "iframe": "inline", "img": "inline", "input": "inline",
	"ins": "inline", "isindex": "inline", "label": "inline", "li": "list-item",
	"link": "none", "nav": "block", "map": "inline", "marquee": "inline-block",
	"menu": "block", "meta": "none", "meter": "inline-block", "object": "inline",
	"ol": "block", "optgroup": "block", "option": "block", "output": "inline",
	"p": "block", "param": "none", "pre": "block", "progress": "inline-block",
	"q": "inline", "script": "none", "select": "inline-block", "source": "inline",
	"span": "inline", "style": "none", "table": "table", "tbody": "table-row-group",
	"td": "table-cell", "textarea": "inline", "tfoot": "table-footer-group",
	"title": "none", "th": "table-cell", "thead": "table-header-group",
	"time": "inline", "tr": "table-row", "track": "inline", "ul": "block",
	"video": "inline",
}

var blockishDisplay = map[string]bool{
	"block": true, "table-cell": true, "table": true, "flex": true, "list-item": true,
}

// IsBlockish reports whether n is an element laid out as a block. A
// data-display attribute recorded by the scraper overrides the default.
func IsBlockish(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	return blockishDisplay[displayOf(n)]
}

func displayOf(n *html.Node) string {
	if d := attr(n, "data-display"); d != "" {
		return d
	}
	if d, ok := defaultDisplay[n.Data]; ok {
		return d
	}
	return "block"
}

// Block is the text directly owned by one block-level element.
type Block struct {
	Text string
	Node *html.Node
}

// BlockLevelText walks root in document order and returns, for every
// block-level element, the text that is not inside a nested block-level
// element. Blocks with only whitespace are omitted, as is the text of
// elements that are not displayed.
func BlockLevelText(root *html.Node) []Block {
	var blocks []Block
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if IsBlockish(n) {
			var chunks []string
			for _, c := range unblockishText(n) {
				if c = strings.TrimSpace(c); c != "" {
					chunks = append(chunks, c)
				}
			}
			if len(chunks) > 0 {
				blocks = append(blocks, Block{Text: strings.Join(chunks, " "), Node: n})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return blocks
}

func unblockishText(n *html.Node) []string {
	var chunks []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			chunks = append(chunks, c.Data)
		case html.ElementNode:
			if !IsBlockish(c) && displayOf(c) != "none" {
				chunks = append(chunks, unblockishText(c)...)
			}
		}
	}
	return chunks
}

// ElementToCSS builds a selector for n: a chain of :nth-child steps up to
// the nearest ancestor that is body, head or has an id.
func ElementToCSS(n *html.Node) string {
	var parts []string
	for ctx := n; ctx != nil; ctx = ctx.Parent {
		if ctx.Type != html.ElementNode {
			break
		}
		if ctx.Data == "body" || ctx.Data == "head" {
			parts = append(parts, ctx.Data)
			break
		}
		if id := attr(ctx, "id"); id != "" {
			parts = append(parts, "#"+id)
			break
		}
		parts = append(parts, fmt.Sprintf("*:nth-child(%d)", elementIndex(ctx)))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// elementIndex is the 1-based position of n among its parent's element
// children.
func elementIndex(n *html.Node) int {
	i := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			i++
		}
	}
	return i
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
