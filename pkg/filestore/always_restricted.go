package filestore

import (
	"path/filepath"
	"strings"
)

// alwaysRestrictedBasenames holds file basenames that carry third-party
// licensed content and must never be served through the public area,
// except through their `.stripped` counterpart (spec §4.1, §9 Open
// Question: "the exact set... is encoded in the source only for POTCAR").
var alwaysRestrictedBasenames = map[string]bool{
	"POTCAR": true,
}

// AlwaysRestricted reports whether path names an always-restricted file.
// A path ending in ".stripped" is the sanitized counterpart and is never
// itself restricted by this predicate.
func AlwaysRestricted(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".stripped") {
		return false
	}
	return alwaysRestrictedBasenames[base]
}

// StrippedCounterpart returns the `.stripped` path that preprocessing
// writes in place of an always-restricted original (§4.1).
func StrippedCounterpart(path string) string {
	return path + ".stripped"
}
