package nlp

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// DefaultLanguages are detected when no languages are configured.
var DefaultLanguages = []string{"english", "german", "french", "spanish"}

// LinguaDetector detects languages with lingua, restricted to a configured
// set of languages.
type LinguaDetector struct {
	detector lingua.LanguageDetector
	only     string
}

// NewLinguaDetector builds a detector for the named languages, e.g.
// "english" or "German". An empty list means DefaultLanguages.
func NewLinguaDetector(names []string) (*LinguaDetector, error) {
	if len(names) == 0 {
		names = DefaultLanguages
	}
	byName := make(map[string]lingua.Language)
	for _, l := range lingua.AllLanguages() {
		byName[strings.ToLower(l.String())] = l
	}

	var langs []lingua.Language
	for _, name := range names {
		l, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown language %q", name)
		}
		langs = append(langs, l)
	}

	// lingua needs at least two candidates.
	if len(langs) == 1 {
		return &LinguaDetector{only: strings.ToLower(langs[0].String())}, nil
	}
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().FromLanguages(langs...).Build(),
	}, nil
}

// Detect implements Detector.
func (d *LinguaDetector) Detect(text string) (string, bool) {
	if d.only != "" {
		return d.only, strings.TrimSpace(text) != ""
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.String()), true
}
