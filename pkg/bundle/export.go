// Package bundle is C2: serializes/deserializes an Upload to/from a
// portable, self-describing bundle (bundle_info.json + raw + archive
// files), grounded on spec §4.2 and the blobstore/archive primitives of
// pkg/filestore.
package bundle

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
)

// bundleInfoName is the root manifest file of every bundle shape (§4.2).
const bundleInfoName = "bundle_info.json"

// ExportParams describes one export_bundle invocation (§4.2, §4.7).
type ExportParams struct {
	Layout  *filestore.Layout
	Upload  *model.Upload
	Entries []*model.Entry
	Options model.ExportOptions
	Source  model.BundleSource
	Datasets []model.Dataset

	// AuthorizedForRestricted must be true for a published, embargoed
	// upload's restricted raw/archive files to be included; otherwise
	// IncludeRawFiles/IncludeArchiveFiles on such an upload is refused
	// outright rather than silently exporting only the public portion
	// (§4.2 "must refuse exporting protected raw files without protected
	// files included (no partial export with leaks)").
	AuthorizedForRestricted bool

	// Move deletes the source files as they are copied into the bundle.
	// Only valid for directory-mode export (§4.2 "can optionally move
	// files instead of copy (only when not zipped and not streaming)").
	Move bool
}

func (p *ExportParams) hasRestrictedContent() bool {
	for _, e := range p.Entries {
		if e.WithEmbargo {
			return true
		}
	}
	return false
}

func (p *ExportParams) validate() error {
	if (p.Options.IncludeRawFiles || p.Options.IncludeArchiveFiles) &&
		p.Upload.IsPublished() && p.hasRestrictedContent() && !p.AuthorizedForRestricted {
		return apperr.Unauthorizedf("export requested raw/archive files but the caller is not authorized for this upload's restricted content")
	}
	return nil
}

func (p *ExportParams) buildInfo() model.BundleInfo {
	entries := make([]model.Entry, len(p.Entries))
	for i, e := range p.Entries {
		entries[i] = *e
	}
	return model.BundleInfo{
		UploadID:      p.Upload.UploadID,
		Source:        p.Source,
		ExportOptions: p.Options,
		Upload:        *p.Upload,
		Entries:       entries,
		Datasets:      p.Datasets,
	}
}

// ExportStream writes a zip-only stream bundle to w (§4.2 "stream mode
// (zip only)"). Move is not permitted in this mode.
func ExportStream(w io.Writer, p *ExportParams) error {
	if p.Move {
		return apperr.BadRequestf("move is not permitted in stream export mode")
	}
	if err := p.validate(); err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	if err := writeBundleInfo(zw, p); err != nil {
		zw.Close()
		return err
	}
	if err := writeBundleFiles(zw, p); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ExportZipFile writes a bundle to a zip file on disk (§4.2 "disk zip mode").
func ExportZipFile(destPath string, p *ExportParams) error {
	if p.Move {
		return apperr.BadRequestf("move is not permitted in zip export mode")
	}
	if err := p.validate(); err != nil {
		return err
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating bundle zip %s: %w", destPath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := writeBundleInfo(zw, p); err != nil {
		zw.Close()
		return err
	}
	if err := writeBundleFiles(zw, p); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ExportDirectory writes an uncompressed bundle directory (§4.2
// "uncompressed directory"), optionally moving rather than copying files.
func ExportDirectory(destDir string, p *ExportParams) error {
	if err := p.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	info := p.buildInfo()
	infoBytes, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling bundle_info.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(destDir, bundleInfoName), infoBytes, 0644); err != nil {
		return err
	}

	for _, src := range sourcePaths(p) {
		dst := filepath.Join(destDir, filepath.FromSlash(src.relName))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if p.Move {
			if err := os.Rename(src.absPath, dst); err != nil {
				if err2 := copyFile(src.absPath, dst); err2 != nil {
					return err2
				}
				os.Remove(src.absPath)
			}
		} else if err := copyFile(src.absPath, dst); err != nil {
			return err
		}
	}
	return nil
}

type sourceFile struct {
	absPath string
	relName string
}

// sourcePaths enumerates the raw/archive files to include, honoring the
// published-vs-staging layout shape (§3.1 "two concrete shapes", §4.2).
func sourcePaths(p *ExportParams) []sourceFile {
	var out []sourceFile
	uploadID := p.Upload.UploadID

	if p.Upload.IsPublished() {
		for _, access := range []model.AccessClass{model.AccessPublic, model.AccessRestricted} {
			if access == model.AccessRestricted && !p.AuthorizedForRestricted {
				continue
			}
			if p.Options.IncludeRawFiles {
				zp := p.Layout.PublicRawZipPath(uploadID, access)
				if _, err := os.Stat(zp); err == nil {
					out = append(out, sourceFile{absPath: zp, relName: filepath.Base(zp)})
				}
			}
			if p.Options.IncludeArchiveFiles {
				ap := p.Layout.PublicArchivePath(uploadID, access)
				if _, err := os.Stat(ap); err == nil {
					out = append(out, sourceFile{absPath: ap, relName: filepath.Base(ap)})
				}
			}
		}
		return out
	}

	if p.Options.IncludeRawFiles {
		out = append(out, walkTree(p.Layout.StagingRawDir(uploadID), "raw")...)
	}
	if p.Options.IncludeArchiveFiles {
		out = append(out, walkTree(p.Layout.StagingArchiveDir(uploadID), "archive")...)
	}
	return out
}

func walkTree(root, prefix string) []sourceFile {
	var out []sourceFile
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		out = append(out, sourceFile{absPath: path, relName: filepath.ToSlash(filepath.Join(prefix, rel))})
		return nil
	})
	return out
}

func writeBundleInfo(zw *zip.Writer, p *ExportParams) error {
	info := p.buildInfo()
	infoBytes, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling bundle_info.json: %w", err)
	}
	w, err := zw.Create(bundleInfoName)
	if err != nil {
		return err
	}
	_, err = w.Write(infoBytes)
	return err
}

func writeBundleFiles(zw *zip.Writer, p *ExportParams) error {
	for _, src := range sourcePaths(p) {
		if err := copyIntoZip(zw, src.absPath, src.relName); err != nil {
			return err
		}
	}
	return nil
}

func copyIntoZip(zw *zip.Writer, srcPath, name string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
