package query

import (
	"github.com/runnerr0/browsinglab/internal/htmltext"
	"github.com/runnerr0/browsinglab/internal/nlp"
)

// DefaultSummarySentences is used when Summarize is asked for n <= 0.
const DefaultSummarySentences = 5

// Summarize picks the n sentences that best represent the page. The
// readable text is summarised when there is any, else the full text.
func Summarize(p *Page, s nlp.Summarizer, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultSummarySentences
	}
	blob, err := p.LoadContent()
	if err != nil {
		return nil, err
	}
	text, err := htmltext.ReadableText(blob)
	if err != nil || text == "" {
		doc, derr := blob.Document()
		if derr != nil {
			return nil, derr
		}
		text = htmltext.FullText(doc)
	}
	return s.Summarize(blob.Title(), text, n)
}
