package filestore

import (
	"strings"

	"github.com/BlackLotus/nomad/internal/apperr"
)

// IsSafeRelativePath validates invariant I7: non-empty or empty, no
// leading "/", no ".." or "." path elements, no "//", no newline.
func IsSafeRelativePath(p string) bool {
	if strings.Contains(p, "\n") || strings.Contains(p, "\x00") {
		return false
	}
	if strings.HasPrefix(p, "/") {
		return false
	}
	if strings.Contains(p, "//") {
		return false
	}
	if p == "" {
		return true
	}
	for _, elem := range strings.Split(p, "/") {
		if elem == "." || elem == ".." {
			return false
		}
	}
	return true
}

// ValidateSafeRelativePath returns a bad_request error if p is not a safe
// relative path.
func ValidateSafeRelativePath(p string) error {
	if !IsSafeRelativePath(p) {
		return apperr.BadRequestf("unsafe relative path: %q", p)
	}
	return nil
}
