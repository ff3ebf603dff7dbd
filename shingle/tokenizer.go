package shingle

import (
	"strings"
	"unicode"
)

// Tokenize returns the normalized tokens of text.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), isSeparator)
}

// Normalize returns the normalized tokens joined by single spaces. This is
// the form content hashes are computed from.
func Normalize(text string) string {
	return strings.Join(Tokenize(text), " ")
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// Set is a deduplicated list of shingles in first-occurrence order.
type Set []string

// Shingles returns the distinct k-grams of tokens. Fewer than k tokens (or
// k < 1) yields an empty set, which callers must treat as "no signal".
func Shingles(tokens []string, k int) Set {
	if k < 1 || len(tokens) < k {
		return Set{}
	}
	count := len(tokens) - k + 1
	seen := make(map[string]struct{}, count)
	set := make(Set, 0, count)
	for i := 0; i < count; i++ {
		s := strings.Join(tokens[i:i+k], " ")
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		set = append(set, s)
	}
	return set
}

// FromText tokenizes text and shingles the result.
func FromText(text string, k int) Set {
	return Shingles(Tokenize(text), k)
}

// Jaccard computes the exact Jaccard similarity of two sets. ok is false
// when either set is empty, since an empty set carries no signal.
func Jaccard(a, b Set) (similarity float64, ok bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}
	members := make(map[string]struct{}, len(a))
	for _, s := range a {
		members[s] = struct{}{}
	}
	intersection := 0
	for _, s := range b {
		if _, ok := members[s]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union), true
}
