// Package normalize canonicalises free-text record fields before they are
// shingled. It lower-cases input, splits on non-alphanumeric boundaries,
// drops noise words, and rejoins the surviving tokens with single spaces,
// so "Smith,  JOHN (Mr)" and "mr john smith" differ only in token order.
package normalize

import (
	"strings"
	"unicode"
)

// DefaultStopWords are titles, legal suffixes and connectives that carry no
// identifying signal in person, company and address fields.
var DefaultStopWords = []string{
	"mr", "mrs", "ms", "miss", "dr", "prof", "sir",
	"inc", "ltd", "llc", "plc", "corp", "co", "gmbh",
	"the", "and", "of",
}

// Normalizer rewrites record text into canonical form. The zero value only
// lower-cases and collapses punctuation.
type Normalizer struct {
	stopWords map[string]struct{}
}

// New returns a Normalizer that also drops the given stop words, which are
// matched after lower-casing.
func New(stopWords []string) *Normalizer {
	n := &Normalizer{stopWords: make(map[string]struct{}, len(stopWords))}
	for _, w := range stopWords {
		n.stopWords[strings.ToLower(w)] = struct{}{}
	}
	return n
}

// Default returns a Normalizer using DefaultStopWords.
func Default() *Normalizer {
	return New(DefaultStopWords)
}

// Tokens returns the lower-cased alphanumeric tokens of text in order, with
// stop words removed.
func (n *Normalizer) Tokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := words[:0]
	for _, w := range words {
		if _, stop := n.stopWords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// String returns the tokens of text joined by single spaces.
func (n *Normalizer) String(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// All normalises every record.
func (n *Normalizer) All(records []string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = n.String(r)
	}
	return out
}
