package bundle

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
)

// ReadBundleInfoFromZip extracts and unmarshals bundle_info.json from a
// bundle zip file.
func ReadBundleInfoFromZip(path string) (*model.BundleInfo, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != bundleInfoName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return decodeBundleInfo(rc)
	}
	return nil, apperr.New(apperr.KindBundleImportFailure, "bundle_info.json not found in zip")
}

// ReadBundleInfoFromDir unmarshals bundle_info.json from a directory-mode
// bundle.
func ReadBundleInfoFromDir(dir string) (*model.BundleInfo, error) {
	f, err := os.Open(filepath.Join(dir, bundleInfoName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.KindBundleImportFailure, "bundle_info.json not found in directory")
		}
		return nil, err
	}
	defer f.Close()
	return decodeBundleInfo(f)
}

func decodeBundleInfo(r io.Reader) (*model.BundleInfo, error) {
	var info model.BundleInfo
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return nil, apperr.Wrap(apperr.KindBundleImportFailure, "decoding bundle_info.json", err)
	}
	return &info, nil
}

// ImportValidation holds the external lookups Validate needs; the core
// itself never talks to the user directory or dataset store directly
// (spec §1 "out of scope: authentication and user directory").
type ImportValidation struct {
	RequiredMinVersion string
	Now                time.Time
	TimestampTolerance time.Duration
	RequestedOptions   model.ExportOptions

	// UserExists resolves a user id against the read-only user directory.
	UserExists func(userID string) bool
	// FindDatasetOwner returns the owner user id of an existing dataset
	// with this name, or "" if no such dataset exists.
	FindDatasetOwner func(datasetName string) string
}

// Validate performs the transactional sanity checks (a)-(h) of §4.2
// "Import". It returns a single KindBundleImportFailure error describing
// every violation found, so the caller can surface all problems at once
// rather than failing on the first.
func Validate(info *model.BundleInfo, v ImportValidation) error {
	var problems []string

	// (a) bundle_info has all required keys.
	if info.UploadID == "" {
		problems = append(problems, "bundle_info.upload_id is missing")
	}
	if info.Source.Version == "" {
		problems = append(problems, "bundle_info.source.version is missing")
	}

	// (b) source version >= required minimum.
	if v.RequiredMinVersion != "" && info.Source.Version != "" &&
		compareVersions(info.Source.Version, v.RequiredMinVersion) < 0 {
		problems = append(problems, fmt.Sprintf("bundle source version %s is older than required minimum %s",
			info.Source.Version, v.RequiredMinVersion))
	}

	// (c) requested include flags are satisfied by the bundle.
	if v.RequestedOptions.IncludeRawFiles && !info.ExportOptions.IncludeRawFiles {
		problems = append(problems, "raw files were requested but the bundle was exported without them")
	}
	if v.RequestedOptions.IncludeArchiveFiles && !info.ExportOptions.IncludeArchiveFiles {
		problems = append(problems, "archive files were requested but the bundle was exported without them")
	}
	if v.RequestedOptions.IncludeDatasets && !info.ExportOptions.IncludeDatasets {
		problems = append(problems, "datasets were requested but the bundle was exported without them")
	}

	// (d) all referenced user ids resolve.
	if v.UserExists != nil {
		for _, uid := range referencedUserIDs(info) {
			if !v.UserExists(uid) {
				problems = append(problems, fmt.Sprintf("referenced user id %q does not resolve", uid))
			}
		}
	}

	// (e) all timestamps <= now + tolerance.
	tolerance := v.TimestampTolerance
	if tolerance == 0 {
		tolerance = 2 * time.Minute
	}
	deadline := v.Now.Add(tolerance)
	for _, ts := range referencedTimestamps(info) {
		if ts.After(deadline) {
			problems = append(problems, fmt.Sprintf("timestamp %s is beyond the %s import tolerance", ts, tolerance))
		}
	}

	// (f) entry ids match H(upload_id, mainfile); (g) process_status in
	// STATUSES_NOT_PROCESSING.
	for _, e := range info.Entries {
		want := model.DeriveEntryID(info.UploadID, e.Mainfile)
		if e.EntryID != want {
			problems = append(problems, fmt.Sprintf("entry %s: entry_id does not match H(upload_id, mainfile)", e.Mainfile))
		}
		if !e.ProcessStatus.IsTerminal() {
			problems = append(problems, fmt.Sprintf("entry %s: process_status %s is not in STATUSES_NOT_PROCESSING", e.Mainfile, e.ProcessStatus))
		}
	}

	// (h) datasets by the same name already present are reused iff their
	// owner matches, otherwise rejected.
	if v.FindDatasetOwner != nil {
		for _, ds := range info.Datasets {
			if owner := v.FindDatasetOwner(ds.DatasetName); owner != "" && owner != ds.UserID {
				problems = append(problems, fmt.Sprintf("dataset %q already exists owned by a different user", ds.DatasetName))
			}
		}
	}

	if len(problems) > 0 {
		return apperr.New(apperr.KindBundleImportFailure, strings.Join(problems, "; "))
	}
	return nil
}

func referencedUserIDs(info *model.BundleInfo) []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(info.Upload.MainAuthorID)
	for _, c := range info.Upload.Coauthors {
		add(c)
	}
	for _, r := range info.Upload.Reviewers {
		add(r)
	}
	for _, ds := range info.Datasets {
		add(ds.UserID)
	}
	return ids
}

func referencedTimestamps(info *model.BundleInfo) []time.Time {
	var ts []time.Time
	ts = append(ts, info.Upload.UploadCreateTime, info.Upload.LastUpdate)
	if info.Upload.PublishTime != nil {
		ts = append(ts, *info.Upload.PublishTime)
	}
	for _, e := range info.Entries {
		ts = append(ts, e.EntryCreateTime, e.LastProcessingTime)
	}
	for _, ds := range info.Datasets {
		ts = append(ts, ds.CreateTime)
	}
	return ts
}

// compareVersions does a dotted-numeric comparison (1.10.2 vs 1.9.0);
// a non-numeric component counts as 0. Returns
// negative/zero/positive like strings.Compare.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			return an - bn
		}
	}
	return 0
}

// ImportFilesFromZip extracts a bundle zip's raw/archive payload into
// destination staging paths, honoring the published-vs-staging shape
// (§4.2, §3.1). Extraction never follows the zip's own directory
// structure for un-prefixed members (only `raw/**` and `archive/**`
// entries, or `raw-*.plain.zip`/`archive-*.msg.msg` for published-shape
// bundles, are consumed).
func ImportFilesFromZip(zipPath string, layout *filestore.Layout, uploadID string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("opening bundle zip: %w", err)
	}
	defer r.Close()

	rawRoot := layout.StagingRawDir(uploadID)
	archiveRoot := layout.StagingArchiveDir(uploadID)
	if err := os.MkdirAll(rawRoot, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(archiveRoot, 0755); err != nil {
		return err
	}

	for _, f := range r.File {
		switch {
		case strings.HasPrefix(f.Name, "raw/"):
			if err := extractZipMember(f, rawRoot, strings.TrimPrefix(f.Name, "raw/")); err != nil {
				return err
			}
		case strings.HasPrefix(f.Name, "archive/"):
			if err := extractZipMember(f, archiveRoot, strings.TrimPrefix(f.Name, "archive/")); err != nil {
				return err
			}
		case strings.HasPrefix(f.Name, "raw-") || strings.HasPrefix(f.Name, "archive-"):
			publicDir := layout.PublicUploadDir(uploadID)
			if err := os.MkdirAll(publicDir, 0755); err != nil {
				return err
			}
			if err := extractZipMember(f, publicDir, f.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractZipMember(f *zip.File, destRoot, relName string) error {
	if relName == "" {
		return nil
	}
	target, err := filestoreSafeJoin(destRoot, relName)
	if err != nil {
		return err
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
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

// filestoreSafeJoin rejects zip-slip attempts the same way pkg/filestore's
// extraction does, without importing its unexported helper.
func filestoreSafeJoin(dest, name string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(name))[1:]
	target := filepath.Join(dest, cleaned)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(filepath.Separator)) && target != filepath.Clean(dest) {
		return "", apperr.BadRequestf("bundle member escapes extraction directory: %q", name)
	}
	return target, nil
}
