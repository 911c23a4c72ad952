package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLength is the shortest token kept by Tokenize, in runes.
const minTokenLength = 2

var apostropheReplacer = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

// Fold lowercases text and strips combining accents so "Acuña" and "acuna"
// compare equal.
func Fold(text string) string {
	if text == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(apostropheReplacer.Replace(folded))
}

// Tokenize splits text into folded lowercase alphanumeric tokens of at least
// two runes. Apostrophes inside a word are kept ("o'neal").
func Tokenize(text string) []string {
	folded := Fold(text)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'')
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, "'")
		if len([]rune(field)) < minTokenLength {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	return setOf(Tokenize(text))
}

// FScore returns the harmonic mean of precision (share of candidate tokens
// found in target) and recall (share of target tokens found in candidate).
// Both inputs are treated as sets.
func FScore(candidate, target []string) float64 {
	cand := setOf(candidate)
	tgt := setOf(target)
	if len(cand) == 0 || len(tgt) == 0 {
		return 0
	}
	overlap := 0
	for token := range cand {
		if _, ok := tgt[token]; ok {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	precision := float64(overlap) / float64(len(cand))
	recall := float64(overlap) / float64(len(tgt))
	return 2 * precision * recall / (precision + recall)
}

// Overlaps reports whether any token appears in both slices.
func Overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := setOf(b)
	for _, token := range a {
		if _, ok := set[token]; ok {
			return true
		}
	}
	return false
}

func setOf(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		set[token] = struct{}{}
	}
	return set
}
