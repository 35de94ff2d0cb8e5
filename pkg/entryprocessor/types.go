// Package entryprocessor is C6: the per-entry parse/normalize/archive/
// index pipeline (spec §4.6), grounded on processing/data.py's EntryProc
// task chain.
package entryprocessor

import (
	"context"
	"log/slog"
)

// Archive is the self-describing record produced by a parser and enriched
// by normalizers — a plain nested map, msgpack-encoded at rest (§6.1
// "archive msg"). Parsers/normalizers are opaque callable contracts (spec
// §1 "out of scope: concrete domain parsers"); entryprocessor only owns
// the envelope around them.
type Archive map[string]any

// Parser is the external collaborator invoked at step 2 (§4.6). A real
// parser implementation lives outside the core; this interface is the
// contract EntryProcessor drives it through.
type Parser interface {
	Parse(ctx context.Context, mainfilePath string, archive Archive, logger *slog.Logger) error
}

// Normalizer is the external collaborator invoked at step 3 for every
// registered normalizer whose Domain matches the parser's declared domain.
type Normalizer interface {
	// Domain returns the parser id this normalizer applies to (matched
	// exactly), or "*" to run unconditionally against every archive.
	Domain() string
	Normalize(ctx context.Context, archive Archive, logger *slog.Logger) error
}

// SearchIndexer is the subset of C8 the EntryProcessor calls directly
// (§4.6 step 5); richer query/refresh operations live in
// pkg/scheduler.SearchGateway instead.
type SearchIndexer interface {
	Index(ctx context.Context, entryID string, archive Archive, updateMaterials bool) error
}

// domainMatches reports whether a normalizer's declared domain applies to
// parserID, supporting an exact match or the "*" wildcard.
func domainMatches(domain, parserID string) bool {
	return domain == "*" || domain == parserID
}
