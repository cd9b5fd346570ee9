package nlp

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

const (
	titleWeight   = 1.5
	minSentLength = 3
)

// FrequencySummarizer scores sentences by how many of the text's frequent
// content words they contain, with a bonus for words from the title.
// Stop words and stemming follow the language the detector reports.
type FrequencySummarizer struct {
	detector Detector
}

// NewFrequencySummarizer returns a summarizer. A nil detector means English.
func NewFrequencySummarizer(detector Detector) *FrequencySummarizer {
	return &FrequencySummarizer{detector: detector}
}

// Summarize implements Summarizer. Sentences are returned in text order.
func (s *FrequencySummarizer) Summarize(title, text string, n int) ([]string, error) {
	if n <= 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	sentences, err := Sentences(text)
	if err != nil {
		return nil, err
	}

	language := "english"
	if s.detector != nil {
		if lang, ok := s.detector.Detect(text); ok {
			language = lang
		}
	}
	stop := stopWords[language]

	freq := make(map[string]float64)
	var maxFreq float64
	for _, sent := range sentences {
		for _, w := range contentWords(sent, stop, language) {
			freq[w]++
			if freq[w] > maxFreq {
				maxFreq = freq[w]
			}
		}
	}
	titleWords := make(map[string]bool)
	for _, w := range contentWords(title, stop, language) {
		titleWords[w] = true
	}

	type scored struct {
		index int
		score float64
		text  string
	}
	var candidates []scored
	for i, sent := range sentences {
		words := contentWords(sent, stop, language)
		if len(words) < minSentLength {
			continue
		}
		var score float64
		for _, w := range words {
			v := freq[w] / maxFreq
			if titleWords[w] {
				v *= titleWeight
			}
			score += v
		}
		candidates = append(candidates, scored{index: i, score: score / float64(len(words)), text: NormalizeSentence(sent)})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].index < candidates[j].index })

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.text
	}
	return out, nil
}

// NormalizeSentence collapses newlines and whitespace runs to single spaces.
func NormalizeSentence(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// JoinSentences normalises each sentence and joins them with two spaces.
func JoinSentences(sentences []string) string {
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = NormalizeSentence(s)
	}
	return strings.Join(out, "  ")
}

// contentWords lower-cases s, drops stop words and one-letter tokens and
// stems the rest. Languages without a stemmer keep the plain words.
func contentWords(s string, stop map[string]bool, language string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if len([]rune(f)) < 2 || stop[f] {
			continue
		}
		if stem, err := snowball.Stem(f, language, true); err == nil && stem != "" {
			f = stem
		}
		out = append(out, f)
	}
	return out
}
