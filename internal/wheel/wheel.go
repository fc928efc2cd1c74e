// Package wheel detects near-duplicate submissions by comparing normalized
// titles against the known corpus. It runs at intake, before a candidate
// consumes any validator attention.
package wheel

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the similarity above which a title counts as a
// duplicate of an existing entry.
const DefaultThreshold = 0.6

// Entry identifies one known title in the corpus (pending or verified).
type Entry struct {
	ID    string
	Title string
}

// Match reports the best corpus match for a candidate title.
type Match struct {
	Exists     bool
	ID         string
	Title      string
	Similarity float64
}

// foldMarks strips combining marks after NFKD decomposition so accented
// titles normalize to their ASCII skeleton.
var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeTitle lowercases a title, folds diacritics, strips everything but
// letters, digits, and spaces, and collapses runs of whitespace. The result
// is a fixed point: normalizing twice equals normalizing once.
func NormalizeTitle(title string) string {
	folded, _, err := transform.String(foldMarks, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity computes the Jaccard index of the two titles' normalized word
// sets. Identical normalized titles yield 1; disjoint word sets yield 0.
func Similarity(a, b string) float64 {
	wordsA := wordSet(NormalizeTitle(a))
	wordsB := wordSet(NormalizeTitle(b))
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for word := range wordsA {
		if _, ok := wordsB[word]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Detect returns the best match for a candidate title against the corpus
// when it clears the threshold. Threshold values at or below zero fall back
// to DefaultThreshold.
func Detect(title string, corpus []Entry, threshold float64) Match {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	best := Match{}
	for _, entry := range corpus {
		sim := Similarity(title, entry.Title)
		if sim > best.Similarity {
			best = Match{ID: entry.ID, Title: entry.Title, Similarity: sim}
		}
	}
	best.Exists = best.Similarity >= threshold
	return best
}

func wordSet(normalized string) map[string]struct{} {
	words := strings.Fields(normalized)
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}
