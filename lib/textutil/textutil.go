package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases name and collapses every run of whitespace into a single space.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, NormalizeName(m)) {
			return true
		}
	}
	return false
}

// MinSimilarity is the lowest jaro-winkler similarity BestMatch accepts.
const MinSimilarity = 0.85

// BestMatch finds the candidate that query refers to. An exact match after normalization wins,
// otherwise the most similar candidate is returned if it is at least MinSimilarity similar.
// It returns -1 when nothing matches.
func BestMatch(query string, candidates []string) (int, float64) {
	query = NormalizeName(query)
	if query == "" {
		return -1, 0
	}

	for i, c := range candidates {
		if NormalizeName(c) == query {
			return i, 1
		}
	}

	best := -1
	var mostSimilarity float64
	for i, c := range candidates {
		similarity := matchr.JaroWinkler(query, NormalizeName(c), false)
		if similarity > mostSimilarity {
			mostSimilarity = similarity
			best = i
		}
	}
	if mostSimilarity < MinSimilarity {
		return -1, mostSimilarity
	}
	return best, mostSimilarity
}
