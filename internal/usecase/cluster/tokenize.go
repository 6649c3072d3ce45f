package cluster

import "strings"

// stopwords is a fixed list of common words excluded from the lexical
// tiebreak per spec.md §4.5 ("after removing a fixed stopword list").
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "it": true, "its": true,
	"as": true, "by": true, "from": true, "that": true, "this": true,
	"these": true, "those": true, "has": true, "have": true, "had": true,
	"will": true, "would": true, "could": true, "should": true, "into": true,
	"over": true, "after": true, "before": true, "than": true, "new": true,
}

// tokenize lowercases s, splits on non-letter/non-digit runes, drops
// stopwords, and keeps only "significant" tokens (length>3) per spec.md
// §4.5's tiebreak rule.
func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, word := range strings.FieldsFunc(strings.ToLower(s), isNotWordRune) {
		if len(word) <= 3 || stopwords[word] {
			continue
		}
		out[word] = true
	}
	return out
}

func isNotWordRune(r rune) bool {
	isLetter := r >= 'a' && r <= 'z'
	isDigit := r >= '0' && r <= '9'
	return !isLetter && !isDigit
}

// jaccard computes the Jaccard overlap of two token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// tokenSet merges a title and a keyword list into one significant-token set.
func tokenSet(title string, keywords []string) map[string]bool {
	out := tokenize(title)
	for _, k := range keywords {
		for t := range tokenize(k) {
			out[t] = true
		}
	}
	return out
}
