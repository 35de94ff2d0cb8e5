// Package matcher is C4: maps a candidate mainfile path plus its initial
// bytes to at most one registered parser id (spec §4.4), grounded on
// original_source/nomad/parsing/parsers.py's match_parser and the ordered
// `parsers` list it walks.
package matcher

import (
	"regexp"

	"github.com/BlackLotus/nomad/pkg/filestore"
)

// ParserSpec is the 4-tuple contract a parser is matched against (§4.4
// step 5): name regex, mime regex, content regex, compression.
type ParserSpec struct {
	// ID identifies the parser to the rest of the system (EntryProcessor
	// dispatch key, §4.6).
	ID string

	// NameRegex matches the mainfile's basename, e.g. `^vasprun\.xml(\.gz)?$`.
	NameRegex *regexp.Regexp
	// MimeRegex matches the probed MIME type, e.g. `^text/.*`.
	MimeRegex *regexp.Regexp
	// ContentRegex matches against the decoded content buffer.
	ContentRegex *regexp.Regexp

	// SupportedCompression restricts which compressions this parser
	// accepts; nil/empty means any (including none).
	SupportedCompression []filestore.Compression

	// Strict, when false, marks this as a placeholder "empty" parser
	// (legacy stub entries) only offered when the caller's match request
	// sets Strict=false (§4.4 "Placeholder 'empty' parsers").
	Strict bool
}

func (p ParserSpec) acceptsCompression(c filestore.Compression) bool {
	if len(p.SupportedCompression) == 0 {
		return true
	}
	for _, sc := range p.SupportedCompression {
		if sc == c {
			return true
		}
	}
	return false
}

// matches evaluates the 4-tuple against one candidate probe. mime/content
// regexes that are nil are treated as always-matching (a parser may, e.g.,
// rely on name+mime alone with no content regex).
func (p ParserSpec) matches(basename, mime string, decodedContent string, hasDecoded bool, compression filestore.Compression) bool {
	if !p.acceptsCompression(compression) {
		return false
	}
	if p.NameRegex != nil && !p.NameRegex.MatchString(basename) {
		return false
	}
	if p.MimeRegex != nil && !p.MimeRegex.MatchString(mime) {
		return false
	}
	if p.ContentRegex != nil {
		if !hasDecoded {
			return false
		}
		if !p.ContentRegex.MatchString(decodedContent) {
			return false
		}
	}
	return true
}
