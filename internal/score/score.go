// Package score evaluates the structural and semantic quality of a
// submitted paper. Evaluate is a pure function so admission decisions stay
// deterministic and testable.
package score

import (
	"math"
	"regexp"
	"strings"

	"github.com/p2pclaw/hive/internal/domain"
)

// Scoring weights out of 100 points total:
//
//	Structure  40 pts: all 7 required section markers present
//	Length     20 pts: >= 1500 words
//	References 20 pts: >= 3 bracketed [N] citations
//	Coherence  20 pts: abstract keywords recur in the conclusion
const (
	structureWeight  = 40.0
	lengthWeight     = 20.0
	referencesWeight = 20.0
	coherenceWeight  = 20.0

	wordTarget     = 1500.0
	citationTarget = 3.0
	passThreshold  = 60.0

	keywordMinLength = 5
	keywordCap       = 20
)

var requiredSections = []string{
	"## Abstract",
	"## Introduction",
	"## Methodology",
	"## Results",
	"## Discussion",
	"## Conclusion",
	"## References",
}

// Short function words that say nothing about a paper's topic.
var stopWords = map[string]struct{}{
	"which": {}, "their": {}, "there": {}, "these": {}, "those": {},
	"where": {}, "about": {}, "after": {}, "before": {}, "during": {},
	"through": {}, "between": {}, "under": {}, "above": {}, "below": {},
	"while": {}, "being": {}, "using": {}, "based": {}, "with": {}, "from": {},
}

var (
	citationPattern = regexp.MustCompile(`\[\d+\]`)
	keywordPattern  = regexp.MustCompile(`\b\w{5,}\b`)
)

// Result is the verdict of the scorer over one document.
type Result struct {
	Valid     bool
	Score     float64
	Sections  int
	Words     int
	Citations int
	Breakdown domain.ScoreBreakdown
}

// Evaluate scores a paper's content. The score is normalized to 0..1 with
// three decimals; Valid reports whether the raw total reached the admission
// threshold.
func Evaluate(content string) Result {
	sections := 0
	for _, marker := range requiredSections {
		if strings.Contains(content, marker) {
			sections++
		}
	}
	structureScore := float64(sections) / float64(len(requiredSections)) * structureWeight

	words := len(strings.Fields(content))
	lengthScore := math.Min(float64(words)/wordTarget*lengthWeight, lengthWeight)

	citations := len(citationPattern.FindAllString(content, -1))
	referenceScore := math.Min(float64(citations)/citationTarget*referencesWeight, referencesWeight)

	coherenceScore := coherence(content)

	total := structureScore + lengthScore + referenceScore + coherenceScore

	return Result{
		Valid:     total >= passThreshold,
		Score:     round3(total / 100),
		Sections:  sections,
		Words:     words,
		Citations: citations,
		Breakdown: domain.ScoreBreakdown{
			Structure:  round1(structureScore),
			Length:     round1(lengthScore),
			References: round1(referenceScore),
			Coherence:  round1(coherenceScore),
		},
	}
}

// coherence measures how much of the abstract's vocabulary survives into the
// conclusion. A short abstract with no qualifying keywords earns neutral
// half credit instead of a penalty.
func coherence(content string) float64 {
	abstract := ExtractSection(content, "## Abstract")
	conclusion := strings.ToLower(ExtractSection(content, "## Conclusion"))

	keywords := abstractKeywords(abstract)
	if len(keywords) == 0 {
		return coherenceWeight / 2
	}

	overlap := 0
	for _, kw := range keywords {
		if strings.Contains(conclusion, kw) {
			overlap++
		}
	}
	return float64(overlap) / float64(len(keywords)) * coherenceWeight
}

// abstractKeywords tokenizes the abstract into the first keywordCap unique
// words of keywordMinLength or more characters, minus stop words.
func abstractKeywords(abstract string) []string {
	raw := keywordPattern.FindAllString(strings.ToLower(abstract), -1)
	seen := make(map[string]struct{}, len(raw))
	unique := make([]string, 0, keywordCap)
	for _, word := range raw {
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		unique = append(unique, word)
		if len(unique) == keywordCap {
			break
		}
	}

	keywords := unique[:0]
	for _, word := range unique {
		if _, ok := stopWords[word]; ok {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// ExtractSection returns the trimmed text between a section marker and the
// next section heading (or the end of the document).
func ExtractSection(content, marker string) string {
	idx := strings.Index(content, marker)
	if idx < 0 {
		return ""
	}
	rest := content[idx+len(marker):]
	if next := strings.Index(rest, "\n## "); next >= 0 {
		rest = rest[:next]
	}
	return strings.TrimSpace(rest)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
