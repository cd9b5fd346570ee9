// Package nlp wraps the language tools used for page analysis: a named
// entity recognizer, a language detector and an extractive summarizer.
package nlp

import (
	"unicode"
)

// Entity labels stored in the entity index.
const (
	LabelPerson       = "PER"
	LabelLocation     = "LOC"
	LabelOrganization = "ORG"
	LabelMisc         = "MISC"
)

// Entity is one recognised name and its label.
type Entity struct {
	Text  string
	Label string
}

// Recognizer finds named entities in a piece of text.
type Recognizer interface {
	Entities(text string) ([]Entity, error)
}

// Detector guesses the language of a text. It returns a lower-case English
// language name such as "english".
type Detector interface {
	Detect(text string) (string, bool)
}

// Summarizer picks the n sentences that best represent a text.
type Summarizer interface {
	Summarize(title, text string, n int) ([]string, error)
}

// IsGoodEntity reports whether s looks like a real name. Recognizers
// sometimes return punctuation or whitespace runs.
func IsGoodEntity(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
