// Package textguard detects near-duplicate text.
//
// An Engine shingles each document, signs the shingle set with MinHash,
// files the signature in a banded LSH index and keeps the record in a
// content-addressed cache with a TTL. Queries retrieve candidates that share
// a band with the query, score them by estimated Jaccard similarity and an
// optional semantic similarity, and return a ranked report. Whether a match
// counts as plagiarism is a caller policy expressed as a threshold.
//
// Basic usage:
//
//	engine, err := textguard.NewEngine()
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	engine.AddFetched(ctx, core.FetchedPage{SourceRef: url, Text: page, FetchedAt: when})
//	report, err := engine.Submit(ctx, "submission-42", essay)
package textguard
