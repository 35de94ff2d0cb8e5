package filestore

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BlackLotus/nomad/pkg/filestore/archive"
	"github.com/BlackLotus/nomad/pkg/model"
)

// Extract reopens both raw zips and unpacks them into raw/, then
// re-materializes individual {entry_id}.msg files from the packed
// archives — the inverse of Pack, enabling reprocessing of a published
// upload (§4.1 "Extraction back to staging", property R1).
func (sf *StagingFiles) Extract(entryIDs []string) error {
	rawRoot := sf.layout.StagingRawDir(sf.uploadID)
	if err := os.RemoveAll(rawRoot); err != nil {
		return fmt.Errorf("clearing raw dir before extraction: %w", err)
	}
	if err := os.MkdirAll(rawRoot, 0755); err != nil {
		return err
	}

	for _, access := range []model.AccessClass{model.AccessPublic, model.AccessRestricted} {
		zipPath := sf.layout.PublicRawZipPath(sf.uploadID, access)
		if err := extractRawZip(zipPath, rawRoot); err != nil {
			return fmt.Errorf("extracting %s: %w", zipPath, err)
		}
	}

	archiveDir := sf.layout.StagingArchiveDir(sf.uploadID)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return err
	}
	for _, access := range []model.AccessClass{model.AccessPublic, model.AccessRestricted} {
		archivePath := sf.layout.PublicArchivePath(sf.uploadID, access)
		if err := materializeArchive(archivePath, archiveDir, entryIDs); err != nil {
			return fmt.Errorf("materializing %s: %w", archivePath, err)
		}
	}

	return sf.Unfreeze()
}

func extractRawZip(zipPath, rawRoot string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(rawRoot, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

// materializeArchive re-writes one per-entry {entry_id}.msg file for every
// entry_id present in the packed archive at archivePath, restricted to
// entryIDs when non-empty.
func materializeArchive(archivePath, archiveDir string, entryIDs []string) error {
	r, err := archive.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer r.Close()

	wanted := r.EntryIDs()
	if len(entryIDs) > 0 {
		allowed := make(map[string]bool, len(entryIDs))
		for _, id := range entryIDs {
			allowed[id] = true
		}
		wanted = wanted[:0]
		for _, id := range r.EntryIDs() {
			if allowed[id] {
				wanted = append(wanted, id)
			}
		}
	}

	for _, id := range wanted {
		raw, err := r.ReadRaw(id)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(archiveDir, id+".msg"), raw, 0644); err != nil {
			return err
		}
	}
	return nil
}
