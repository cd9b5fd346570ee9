package nlp

import (
	"fmt"

	"github.com/jdkato/prose/v2"
)

// ProseRecognizer finds entities with prose's averaged perceptron model.
type ProseRecognizer struct{}

// NewProseRecognizer returns a ProseRecognizer.
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

// Entities implements Recognizer.
func (r *ProseRecognizer) Entities(text string) ([]Entity, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("analyse text: %w", err)
	}
	var out []Entity
	for _, ent := range doc.Entities() {
		out = append(out, Entity{Text: ent.Text, Label: proseLabel(ent.Label)})
	}
	return out, nil
}

func proseLabel(label string) string {
	switch label {
	case "PERSON":
		return LabelPerson
	case "GPE", "LOC", "LOCATION":
		return LabelLocation
	case "ORG", "ORGANIZATION":
		return LabelOrganization
	default:
		return LabelMisc
	}
}

// Sentences splits text into sentences.
func Sentences(text string) ([]string, error) {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("split sentences: %w", err)
	}
	sents := doc.Sentences()
	out := make([]string, 0, len(sents))
	for _, s := range sents {
		out = append(out, s.Text)
	}
	return out, nil
}
