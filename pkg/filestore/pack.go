package filestore

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/filestore/archive"
	"github.com/BlackLotus/nomad/pkg/model"
)

// PackEntry is one entry's packing-relevant state, supplied by the caller
// (StateStore holds the authoritative records; FileStore only needs this
// projection) for Pack/Repack (§4.1 "Packing algorithm").
type PackEntry struct {
	EntryID     string
	Mainfile    string
	WithEmbargo bool
	// HasArchive reports whether a staging archive/{entry_id}.msg file
	// exists to be packed; false entries (never ran, or failed before
	// writing one) get an empty dict reserved in their slot.
	HasArchive bool
}

// Pack transforms the mutable staging tree into the immutable public
// layout (§4.1 "Packing algorithm", steps 1-5).
func (sf *StagingFiles) Pack(entries []PackEntry, auxfileCutoff int) error {
	return sf.pack(entries, auxfileCutoff, false)
}

// Repack re-runs the packing algorithm but writes to `*-repacked*` paths
// first, then renames atomically over the originals; it refuses to start
// if any repacked file already exists (§4.1 "Repack").
func (sf *StagingFiles) Repack(entries []PackEntry, auxfileCutoff int) error {
	return sf.pack(entries, auxfileCutoff, true)
}

func (sf *StagingFiles) pack(entries []PackEntry, auxfileCutoff int, repack bool) error {
	if !repack {
		if err := sf.Freeze(); err != nil {
			return err
		}
	}

	publicDir := sf.layout.PublicUploadDir(sf.uploadID)
	if err := os.MkdirAll(publicDir, 0755); err != nil {
		return fmt.Errorf("creating public upload dir: %w", err)
	}

	rawPublicZipPath := sf.layout.PublicRawZipPath(sf.uploadID, model.AccessPublic)
	rawRestrictedZipPath := sf.layout.PublicRawZipPath(sf.uploadID, model.AccessRestricted)
	archivePublicPath := sf.layout.PublicArchivePath(sf.uploadID, model.AccessPublic)
	archiveRestrictedPath := sf.layout.PublicArchivePath(sf.uploadID, model.AccessRestricted)

	if repack {
		for _, p := range []string{rawPublicZipPath, rawRestrictedZipPath, archivePublicPath, archiveRestrictedPath} {
			if _, err := os.Stat(repacked(p)); err == nil {
				return apperr.New(apperr.KindPackFailure, fmt.Sprintf("repack already in progress: %s exists", repacked(p)))
			}
		}
	}

	targetRawPublic := rawPublicZipPath
	targetRawRestricted := rawRestrictedZipPath
	targetArchivePublic := archivePublicPath
	targetArchiveRestricted := archiveRestrictedPath
	if repack {
		targetRawPublic = repacked(rawPublicZipPath)
		targetRawRestricted = repacked(rawRestrictedZipPath)
		targetArchivePublic = repacked(archivePublicPath)
		targetArchiveRestricted = repacked(archiveRestrictedPath)
	}

	rawRoot := sf.layout.StagingRawDir(sf.uploadID)
	publicSet, err := computePublicSet(rawRoot, entries, auxfileCutoff)
	if err != nil {
		return fmt.Errorf("computing public set: %w", err)
	}

	if err := writeRawZips(rawRoot, publicSet, targetRawPublic, targetRawRestricted); err != nil {
		return apperr.Wrap(apperr.KindPackFailure, "writing raw zips", err)
	}

	if err := writeArchives(sf.layout.StagingArchiveDir(sf.uploadID), entries, targetArchivePublic, targetArchiveRestricted); err != nil {
		return apperr.Wrap(apperr.KindPackFailure, "writing archive msg files", err)
	}

	if repack {
		renames := [][2]string{
			{targetRawPublic, rawPublicZipPath},
			{targetRawRestricted, rawRestrictedZipPath},
			{targetArchivePublic, archivePublicPath},
			{targetArchiveRestricted, archiveRestrictedPath},
		}
		for _, rn := range renames {
			if err := os.Rename(rn[0], rn[1]); err != nil {
				return apperr.Wrap(apperr.KindPackFailure, "renaming repacked file into place", err)
			}
		}
	}

	return nil
}

// computePublicSet implements §4.1 step 3.
func computePublicSet(rawRoot string, entries []PackEntry, auxfileCutoff int) (map[string]bool, error) {
	public := make(map[string]bool)
	embargoedMainfiles := make(map[string]bool)
	for _, e := range entries {
		if e.WithEmbargo {
			embargoedMainfiles[e.Mainfile] = true
		}
	}

	for _, e := range entries {
		if e.WithEmbargo {
			continue
		}
		if AlwaysRestricted(e.Mainfile) {
			continue
		}
		public[e.Mainfile] = true

		dir := filepath.Dir(filepath.FromSlash(e.Mainfile))
		siblings, err := siblingFiles(rawRoot, dir, e.Mainfile)
		if err != nil {
			return nil, err
		}
		sort.Strings(siblings)
		if len(siblings) > auxfileCutoff {
			siblings = siblings[:auxfileCutoff]
		}
		for _, s := range siblings {
			public[s] = true
		}
	}

	for mf := range embargoedMainfiles {
		delete(public, mf)
	}

	return public, nil
}

// siblingFiles lists the non-mainfile, non-always-restricted files directly
// in dir (relative to rawRoot), sorted is left to the caller.
func siblingFiles(rawRoot, dir, mainfile string) ([]string, error) {
	absDir := rawRoot
	if dir != "." {
		absDir = filepath.Join(rawRoot, dir)
	}
	entries, err := os.ReadDir(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rel := e.Name()
		if dir != "." {
			rel = filepath.ToSlash(filepath.Join(dir, e.Name()))
		}
		if rel == mainfile {
			continue
		}
		if AlwaysRestricted(rel) {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

// writeRawZips streams every raw file into raw-public or raw-restricted
// according to publicSet, skipping always-restricted originals entirely
// (§4.1 step 4).
func writeRawZips(rawRoot string, publicSet map[string]bool, publicZipPath, restrictedZipPath string) error {
	publicF, err := os.OpenFile(publicZipPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", publicZipPath, err)
	}
	defer publicF.Close()
	restrictedF, err := os.OpenFile(restrictedZipPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", restrictedZipPath, err)
	}
	defer restrictedF.Close()

	publicZW := zip.NewWriter(publicF)
	restrictedZW := zip.NewWriter(restrictedF)

	walkErr := filepath.Walk(rawRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(rawRoot, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if AlwaysRestricted(rel) {
			return nil
		}

		zw := restrictedZW
		if publicSet[rel] {
			zw = publicZW
		}
		return copyIntoZip(zw, p, rel)
	})
	if walkErr != nil {
		publicZW.Close()
		restrictedZW.Close()
		return walkErr
	}

	if err := publicZW.Close(); err != nil {
		return err
	}
	return restrictedZW.Close()
}

// copyIntoZip stores name uncompressed (§6.1 "Members are stored (not
// deflated) by default" for raw-public.plain.zip/raw-restricted.plain.zip).
func copyIntoZip(zw *zip.Writer, srcPath, name string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// writeArchives produces archive-{public,restricted}[-{suffix}].msg.msg by
// iterating entries and writing each one's staging archive payload, raw,
// into the archive matching its embargo flag (§4.1 step 5).
func writeArchives(stagingArchiveDir string, entries []PackEntry, publicPath, restrictedPath string) error {
	publicW := archive.NewWriter()
	restrictedW := archive.NewWriter()

	for _, e := range entries {
		w := publicW
		if e.WithEmbargo {
			w = restrictedW
		}

		if !e.HasArchive {
			if err := w.AddEmpty(e.EntryID); err != nil {
				return err
			}
			continue
		}

		payload, err := os.ReadFile(filepath.Join(stagingArchiveDir, e.EntryID+".msg"))
		if err != nil {
			if os.IsNotExist(err) {
				if err := w.AddEmpty(e.EntryID); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("reading staging archive for %s: %w", e.EntryID, err)
		}
		w.AddRaw(e.EntryID, payload)
	}

	if err := publicW.WriteTo(publicPath); err != nil {
		return err
	}
	return restrictedW.WriteTo(restrictedPath)
}
