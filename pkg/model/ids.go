package model

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/google/uuid"
)

// NewUploadID generates an opaque 22-byte URL-safe token (spec §3.1): a
// random UUIDv4, base64url-encoded without padding. 16 raw bytes encode to
// exactly 22 base64url characters.
func NewUploadID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// DeriveEntryID computes entry_id = H(upload_id, mainfile) (I1, P3). The
// hash is pure: renaming a mainfile always yields a new entry id.
func DeriveEntryID(uploadID, mainfile string) string {
	h := sha256.New()
	h.Write([]byte(uploadID))
	h.Write([]byte{0}) // unambiguous separator; upload ids never contain NUL
	h.Write([]byte(mainfile))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}
