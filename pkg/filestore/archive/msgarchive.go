// Package archive implements the "archive msg" file format (spec §6.1): a
// msgpack-framed file of (entry_id, archive_dict) records, with a leading
// index section so readers can seek directly to one entry's record
// without scanning the whole file.
package archive

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

const magic = "NMA1"

type indexEntry struct {
	Offset uint64 `msgpack:"offset"`
	Length uint64 `msgpack:"length"`
}

type record struct {
	entryID string
	payload []byte
}

// Writer accumulates (entry_id, archive) records in memory and flushes
// them, with a leading index, in one WriteTo call (§4.1 step 5: "Produce
// msg archives... by iterating entries and writing tuples").
type Writer struct {
	records []record
}

// NewWriter creates an empty archive writer.
func NewWriter() *Writer { return &Writer{} }

// Add appends one (entry_id, archive) record. archive is msgpack-marshaled
// immediately so later mutation of the caller's value has no effect.
func (w *Writer) Add(entryID string, archiveValue any) error {
	payload, err := msgpack.Marshal(archiveValue)
	if err != nil {
		return fmt.Errorf("marshal archive for %s: %w", entryID, err)
	}
	w.records = append(w.records, record{entryID: entryID, payload: payload})
	return nil
}

// AddEmpty reserves a slot for an entry whose archive file is missing
// (§4.1 step 5: "Missing per-entry archive files are written as empty
// dicts").
func (w *Writer) AddEmpty(entryID string) error {
	return w.Add(entryID, map[string]any{})
}

// AddRaw appends one record using an already-msgpack-encoded payload
// (e.g. a per-entry staging archive file read verbatim off disk), avoiding
// an unmarshal/remarshal round trip during packing.
func (w *Writer) AddRaw(entryID string, payload []byte) {
	w.records = append(w.records, record{entryID: entryID, payload: payload})
}

// WriteTo serializes the accumulated records to path, truncating any
// existing file (§4.1 step 2: "Open (truncating)...").
func (w *Writer) WriteTo(path string) error {
	index := make(map[string]indexEntry, len(w.records))
	var body []byte
	var offset uint64
	for _, r := range w.records {
		index[r.entryID] = indexEntry{Offset: offset, Length: uint64(len(r.payload))}
		body = append(body, r.payload...)
		offset += uint64(len(r.payload))
	}

	indexBytes, err := msgpack.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal archive index: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := bw.WriteString(magic); err != nil {
		return err
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(indexBytes)))
	if _, err := bw.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := bw.Write(indexBytes); err != nil {
		return err
	}
	if _, err := bw.Write(body); err != nil {
		return err
	}
	return bw.Flush()
}

// Reader provides random access by entry_id into a packed archive msg
// file (§6.1: "readers must support random access by entry_id through a
// leading index section").
type Reader struct {
	f      *os.File
	index  map[string]indexEntry
	bodyAt int64
}

// Open opens an archive msg file for random-access reads.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	hdr := make([]byte, len(magic)+8)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading archive header: %w", err)
	}
	if string(hdr[:len(magic)]) != magic {
		f.Close()
		return nil, fmt.Errorf("not an archive msg file: bad magic")
	}
	indexLen := binary.LittleEndian.Uint64(hdr[len(magic):])

	indexBytes := make([]byte, indexLen)
	if _, err := io.ReadFull(f, indexBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading archive index: %w", err)
	}

	var index map[string]indexEntry
	if err := msgpack.Unmarshal(indexBytes, &index); err != nil {
		f.Close()
		return nil, fmt.Errorf("decoding archive index: %w", err)
	}

	bodyAt := int64(len(magic)) + 8 + int64(indexLen)
	return &Reader{f: f, index: index, bodyAt: bodyAt}, nil
}

// Has reports whether entryID has a record in this archive.
func (r *Reader) Has(entryID string) bool {
	_, ok := r.index[entryID]
	return ok
}

// EntryIDs lists every entry_id present in the archive.
func (r *Reader) EntryIDs() []string {
	ids := make([]string, 0, len(r.index))
	for id := range r.index {
		ids = append(ids, id)
	}
	return ids
}

// ReadRaw returns the raw msgpack payload bytes for entryID.
func (r *Reader) ReadRaw(entryID string) ([]byte, error) {
	idx, ok := r.index[entryID]
	if !ok {
		return nil, fmt.Errorf("entry %s not present in archive", entryID)
	}
	buf := make([]byte, idx.Length)
	if _, err := r.f.ReadAt(buf, r.bodyAt+int64(idx.Offset)); err != nil {
		return nil, fmt.Errorf("reading archive record %s: %w", entryID, err)
	}
	return buf, nil
}

// Read decodes the record for entryID into out (a pointer).
func (r *Reader) Read(entryID string, out any) error {
	raw, err := r.ReadRaw(entryID)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(raw, out)
}

// Stream returns an io.Reader over the raw record bytes for entryID,
// suitable for the chunked-reader download model (spec §9).
func (r *Reader) Stream(entryID string) (io.Reader, error) {
	raw, err := r.ReadRaw(entryID)
	if err != nil {
		return nil, err
	}
	return bytesReader(raw), nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.f.Close() }

func bytesReader(b []byte) io.Reader { return &sliceReader{b: b} }

type sliceReader struct {
	b []byte
	i int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.i >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.i:])
	s.i += n
	return n, nil
}
