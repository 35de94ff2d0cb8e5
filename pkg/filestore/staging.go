package filestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BlackLotus/nomad/internal/apperr"
)

// StagingFiles is the mutable-tree view onto one upload's raw files and
// per-entry archive files (spec §4.1, §3.1 "two concrete shapes").
type StagingFiles struct {
	layout   *Layout
	uploadID string
}

// NewStagingFiles returns the staging view for uploadID, creating an
// empty raw/ tree if it does not already exist.
func NewStagingFiles(layout *Layout, uploadID string) (*StagingFiles, error) {
	sf := &StagingFiles{layout: layout, uploadID: uploadID}
	if err := os.MkdirAll(sf.layout.StagingRawDir(uploadID), 0755); err != nil {
		return nil, fmt.Errorf("creating raw dir: %w", err)
	}
	if err := os.MkdirAll(sf.layout.StagingArchiveDir(uploadID), 0755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}
	return sf, nil
}

// UploadID returns the owning upload's id.
func (sf *StagingFiles) UploadID() string { return sf.uploadID }

// IsFrozen reports whether the .frozen sentinel exists (§4.1 step 1).
func (sf *StagingFiles) IsFrozen() bool {
	_, err := os.Stat(sf.layout.FrozenSentinelPath(sf.uploadID))
	return err == nil
}

// Freeze atomically writes the .frozen sentinel, refusing if already
// frozen (§4.1 packing step 1).
func (sf *StagingFiles) Freeze() error {
	path := sf.layout.FrozenSentinelPath(sf.uploadID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return apperr.New(apperr.KindPackFailure, "upload is already frozen")
		}
		return fmt.Errorf("writing frozen sentinel: %w", err)
	}
	return f.Close()
}

// Unfreeze removes the .frozen sentinel; used when a pack attempt needs
// to be retried after a pack_failure (§7).
func (sf *StagingFiles) Unfreeze() error {
	err := os.Remove(sf.layout.FrozenSentinelPath(sf.uploadID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (sf *StagingFiles) absRaw(relPath string) string {
	return filepath.Join(sf.layout.StagingRawDir(sf.uploadID), filepath.FromSlash(relPath))
}

// resolveSafe validates relPath (I7) and resolves it to an absolute path
// that must remain a descendant of the raw directory even after symlink
// resolution (spec §4.1 "Path safety").
func (sf *StagingFiles) resolveSafe(relPath string) (string, error) {
	if err := ValidateSafeRelativePath(relPath); err != nil {
		return "", err
	}
	abs := sf.absRaw(relPath)
	rawRoot := sf.layout.StagingRawDir(sf.uploadID)

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// Path doesn't exist yet (e.g. a write target); validate the
			// nearest existing ancestor instead.
			return abs, sf.validateAncestor(abs, rawRoot)
		}
		return "", err
	}
	rel, err := filepath.Rel(rawRoot, resolved)
	if err != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)) {
		return "", apperr.BadRequestf("path escapes upload raw directory: %q", relPath)
	}
	return abs, nil
}

func (sf *StagingFiles) validateAncestor(abs, rawRoot string) error {
	dir := filepath.Dir(abs)
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			rel, relErr := filepath.Rel(rawRoot, resolved)
			if relErr != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)) {
				return apperr.BadRequestf("path escapes upload raw directory")
			}
			return nil
		}
		if !os.IsNotExist(err) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
