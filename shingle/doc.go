// Package shingle normalizes text and produces sets of overlapping k-token
// shingles.
//
// Normalization case-folds the input, treats every rune that is not a letter
// or digit as a separator and collapses whitespace. The same normalized token
// stream feeds both content hashing and shingling, so two texts that differ
// only in case or punctuation share an identity and a signature.
package shingle
