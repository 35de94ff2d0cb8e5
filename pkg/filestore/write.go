package filestore

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/internal/logger"
)

// AddMethod controls how the source is merged into the target directory
// during AddRawFiles (currently only Merge is implemented; kept as a type
// so future methods — e.g. symlink-in-place for local bulk uploads — have
// a documented extension point).
type AddMethod string

const (
	AddMethodMerge AddMethod = "merge"
)

// AddRawFiles merges source (a file, directory, zip, or tar archive) into
// raw/{targetDir} (§4.1 "Writes in staging").
func (sf *StagingFiles) AddRawFiles(source, targetDir string, cleanup bool) error {
	if sf.IsFrozen() {
		return apperr.New(apperr.KindBadRequest, "upload is frozen, cannot add files")
	}
	if err := ValidateSafeRelativePath(targetDir); err != nil {
		return err
	}

	actualSource := source
	var extractDir string
	if isArchive(source) {
		dir, err := os.MkdirTemp(sf.layout.TmpRoot, "nomad-extract-*")
		if err != nil {
			return fmt.Errorf("creating extraction temp dir: %w", err)
		}
		extractDir = dir
		if err := extractArchive(source, extractDir); err != nil {
			os.RemoveAll(extractDir)
			return err
		}
		actualSource = extractDir
	}

	// Cleanups happen even on failure (§4.1 step 4).
	defer func() {
		if extractDir != "" {
			os.RemoveAll(extractDir)
		}
		if cleanup {
			os.RemoveAll(source)
			parent := filepath.Dir(source)
			if isTempDir(parent, sf.layout.TmpRoot) {
				os.Remove(parent)
			}
		}
	}()

	targetAbs, err := sf.resolveSafe(targetDir)
	if err != nil {
		return err
	}
	if err := ensureDirAlongPath(sf.layout.StagingRawDir(sf.uploadID), targetDir); err != nil {
		return err
	}

	info, err := os.Stat(actualSource)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if info.IsDir() {
		return mergeDir(actualSource, targetAbs)
	}
	return mergeFile(actualSource, filepath.Join(targetAbs, filepath.Base(actualSource)))
}

func isTempDir(dir, tmpRoot string) bool {
	rel, err := filepath.Rel(tmpRoot, dir)
	return err == nil && !strings.HasPrefix(rel, "..")
}

// ensureDirAlongPath ensures every prefix component of relDir under root
// is a directory, replacing any file-along-the-way (§4.1 step 3).
func ensureDirAlongPath(root, relDir string) error {
	if relDir == "" {
		return os.MkdirAll(root, 0755)
	}
	cur := root
	for _, part := range strings.Split(relDir, "/") {
		cur = filepath.Join(cur, part)
		info, err := os.Stat(cur)
		if err == nil && !info.IsDir() {
			if err := os.Remove(cur); err != nil {
				return fmt.Errorf("replacing file with directory at %s: %w", cur, err)
			}
		}
		if err := os.MkdirAll(cur, 0755); err != nil {
			return err
		}
	}
	return nil
}

// mergeDir recursively merges src's contents into dst: directories
// recurse, files and existing targets are overridden, symlinks are
// skipped (§4.1 step 3).
func mergeDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type()&os.ModeSymlink != 0 {
			logger.Warn("skipping symlink during add_rawfiles", logger.Path(e.Name()))
			continue
		}
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := replaceFileWithDirIfNeeded(d); err != nil {
				return err
			}
			if err := mergeDir(s, d); err != nil {
				return err
			}
			continue
		}
		if err := mergeFile(s, d); err != nil {
			return err
		}
	}
	return nil
}

func replaceFileWithDirIfNeeded(d string) error {
	info, err := os.Stat(d)
	if err == nil && !info.IsDir() {
		return os.Remove(d)
	}
	return nil
}

func mergeFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil // skip symlinks
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
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

// DeleteRawFiles removes p from raw/. If p is "", the entire raw
// directory is recreated empty (§4.1 "Delete", spec B1).
func (sf *StagingFiles) DeleteRawFiles(p string) error {
	if sf.IsFrozen() {
		return apperr.New(apperr.KindBadRequest, "upload is frozen, cannot delete files")
	}
	if p == "" {
		rawDir := sf.layout.StagingRawDir(sf.uploadID)
		if err := os.RemoveAll(rawDir); err != nil {
			return err
		}
		return os.MkdirAll(rawDir, 0755)
	}
	abs, err := sf.resolveSafe(p)
	if err != nil {
		return err
	}
	return os.RemoveAll(abs)
}

func isArchive(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".zip") || strings.HasSuffix(lower, ".tar") ||
		strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 6)
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	return strings.HasPrefix(string(head), "PK") || (n >= 5 && head[0] == 0x1f && head[1] == 0x8b)
}

func extractArchive(path, dest string) error {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(path, dest)
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return extractTarGz(path, dest)
	case strings.HasSuffix(lower, ".tar"):
		return extractTar(path, dest)
	default:
		// magic-detected zip without the extension
		return extractZip(path, dest)
	}
}

func extractZip(path, dest string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractZipEntry(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, dest string) error {
	target, err := safeJoin(dest, f.Name)
	if err != nil {
		return err
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if f.Mode()&os.ModeSymlink != 0 {
		return nil // never follow/extract symlinks (§4.1 "symlink-following disallowed")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}

func extractTar(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return extractTarReader(tar.NewReader(f), dest)
}

func extractTarGz(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()
	return extractTarReader(tar.NewReader(gz), dest)
}

func extractTarReader(tr *tar.Reader, dest string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		default:
			// symlinks and other special types are skipped, never followed
		}
	}
}

// safeJoin joins dest with an archive member name, rejecting any member
// that would escape dest (zip-slip protection).
func safeJoin(dest, name string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(name))[1:]
	target := filepath.Join(dest, cleaned)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(filepath.Separator)) && target != filepath.Clean(dest) {
		return "", apperr.BadRequestf("archive member escapes extraction directory: %q", name)
	}
	return target, nil
}
