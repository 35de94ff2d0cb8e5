package matcher

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/BlackLotus/nomad/pkg/filestore"
)

// Options configures one Match call (§6.3 matcher config).
type Options struct {
	// ParserMatchingSize bounds how many content bytes are probed (default
	// 16 KiB, spec §4.4 step 3).
	ParserMatchingSize int
	// ForceRawFileDecoding is accepted but not consulted: the ISO-8859-1
	// fallback runs only when the content is not valid UTF-8.
	ForceRawFileDecoding bool
	// Strict, when true, restricts matching to non-placeholder parsers
	// (§4.4 "Placeholder 'empty' parsers... only offered when strict =
	// false").
	Strict bool
}

// Result is the outcome of a successful Match.
type Result struct {
	ParserID string
	// UsedISO88591Fallback reports the file needed the encoding fallback
	// of §4.4 step 4; the caller (EntryProcessor/Scheduler) is responsible
	// for rewriting the raw file to UTF-8 in place, as FileStore, not
	// Matcher, owns raw-file mutation.
	UsedISO88591Fallback bool
	DecodedContent       string
	Mime                 string
	Compression          filestore.Compression
}

// Match implements §4.4's match(path, bytes_head) -> parser_id contract.
// r must be positioned at the start of the candidate file. Returns (nil,
// nil) when no parser matches, distinct from a genuine I/O error.
func (reg *Registry) Match(name string, r io.Reader, opts Options) (*Result, error) {
	basename := filepath.Base(name)
	if strings.HasPrefix(basename, ".") || strings.HasPrefix(basename, "~") {
		return nil, nil
	}

	if opts.ParserMatchingSize <= 0 {
		opts.ParserMatchingSize = 16 * 1024
	}

	br := bufio.NewReaderSize(r, opts.ParserMatchingSize+64)
	head, _ := br.Peek(6)
	compression := filestore.DetectCompression(head)

	probeReader, err := filestore.DecompressReader(br, compression)
	if err != nil {
		// An undecodable compressed stream simply fails to match rather
		// than erroring the whole matching pass: treat it as binary.
		probeReader = br
		compression = filestore.CompressionNone
	}

	buf := make([]byte, opts.ParserMatchingSize)
	n, _ := io.ReadFull(probeReader, buf)
	buf = buf[:n]

	mt := mimetype.Detect(buf)
	mime := "application/octet-stream"
	if mt != nil {
		mime = mt.String()
	}

	decoded, hasDecoded, usedFallback := decodeContent(buf, opts.ForceRawFileDecoding)

	for _, spec := range reg.specs {
		if opts.Strict && !spec.Strict {
			continue
		}
		if spec.matches(basename, mime, decoded, hasDecoded, compression) {
			return &Result{
				ParserID:             spec.ID,
				UsedISO88591Fallback: usedFallback,
				DecodedContent:       decoded,
				Mime:                 mime,
				Compression:          compression,
			}, nil
		}
	}

	return nil, nil
}

// decodeContent implements §4.4 step 4: try UTF-8, fall back to
// ISO-8859-1 (a byte-for-byte Latin-1 -> Unicode code point mapping, no
// external charmap table needed). Latin-1 decodes every byte sequence, so
// the fallback always succeeds and no content is treated as binary here. forceFallback
// mirrors force_raw_file_decoding: it only matters once UTF-8 has already
// failed, pinning the fallback to ISO-8859-1 rather than some other
// magic-guessed encoding (this port has no such guesser, so it is a no-op
// here, but the parameter is kept for config-surface parity).
func decodeContent(buf []byte, forceFallback bool) (decoded string, hasDecoded bool, usedFallback bool) {
	_ = forceFallback
	if utf8.Valid(buf) {
		return string(buf), true, false
	}

	runes := make([]rune, len(buf))
	for i, b := range buf {
		runes[i] = rune(b)
	}
	return string(runes), true, true
}
