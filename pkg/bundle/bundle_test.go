package bundle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
)

func testLayout(t *testing.T) *filestore.Layout {
	t.Helper()
	root := t.TempDir()
	return &filestore.Layout{
		StagingRoot: filepath.Join(root, "staging"),
		PublicRoot:  filepath.Join(root, "public"),
		TmpRoot:     filepath.Join(root, "tmp"),
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExportDirectory_StagingShape(t *testing.T) {
	layout := testLayout(t)
	uploadID := "upload1"
	mustWrite(t, filepath.Join(layout.StagingRawDir(uploadID), "vasprun.xml"), "vasp output")
	mustWrite(t, layout.StagingEntryArchivePath(uploadID, "entryA"), "\x81\xa1a\xa1b")

	upload := &model.Upload{UploadID: uploadID, UploadCreateTime: time.Now(), LastUpdate: time.Now()}
	entries := []*model.Entry{{EntryID: "entryA", UploadID: uploadID, Mainfile: "vasprun.xml", ProcessStatus: model.StatusSuccess}}

	params := &ExportParams{
		Layout:  layout,
		Upload:  upload,
		Entries: entries,
		Options: model.ExportOptions{IncludeRawFiles: true, IncludeArchiveFiles: true},
		Source:  model.BundleSource{Version: "1.2.0"},
	}

	dest := filepath.Join(t.TempDir(), "bundle")
	if err := ExportDirectory(dest, params); err != nil {
		t.Fatalf("ExportDirectory: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, bundleInfoName)); err != nil {
		t.Errorf("missing bundle_info.json: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "raw", "vasprun.xml")); err != nil {
		t.Errorf("missing raw file in bundle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "archive", "entryA.msg")); err != nil {
		t.Errorf("missing archive file in bundle: %v", err)
	}

	info, err := ReadBundleInfoFromDir(dest)
	if err != nil {
		t.Fatalf("ReadBundleInfoFromDir: %v", err)
	}
	if info.UploadID != uploadID {
		t.Errorf("upload id = %q, want %q", info.UploadID, uploadID)
	}
	if len(info.Entries) != 1 || info.Entries[0].EntryID != "entryA" {
		t.Errorf("unexpected entries in bundle_info: %+v", info.Entries)
	}
}

func TestExport_RefusesRestrictedLeak(t *testing.T) {
	layout := testLayout(t)
	uploadID := "upload2"
	publishTime := time.Now()
	upload := &model.Upload{UploadID: uploadID, PublishTime: &publishTime}
	entries := []*model.Entry{{EntryID: "e1", UploadID: uploadID, WithEmbargo: true}}

	params := &ExportParams{
		Layout:                  layout,
		Upload:                  upload,
		Entries:                 entries,
		Options:                 model.ExportOptions{IncludeRawFiles: true},
		AuthorizedForRestricted: false,
	}

	if err := ExportDirectory(t.TempDir(), params); err == nil {
		t.Fatal("expected export to refuse leaking restricted content, got nil error")
	}
}

func TestValidate_EntryIDMismatch(t *testing.T) {
	now := time.Now()
	info := &model.BundleInfo{
		UploadID: "uploadX",
		Source:   model.BundleSource{Version: "1.0.0"},
		Upload:   model.Upload{UploadCreateTime: now, LastUpdate: now},
		Entries: []model.Entry{
			{EntryID: "not-the-hash", Mainfile: "vasprun.xml", ProcessStatus: model.StatusSuccess, EntryCreateTime: now, LastProcessingTime: now},
		},
	}

	err := Validate(info, ImportValidation{Now: now})
	if err == nil {
		t.Fatal("expected entry id mismatch to fail validation")
	}
}

func TestValidate_ProcessingEntryRejected(t *testing.T) {
	now := time.Now()
	mainfile := "vasprun.xml"
	info := &model.BundleInfo{
		UploadID: "uploadY",
		Source:   model.BundleSource{Version: "1.0.0"},
		Upload:   model.Upload{UploadCreateTime: now, LastUpdate: now},
		Entries: []model.Entry{
			{
				EntryID:             model.DeriveEntryID("uploadY", mainfile),
				Mainfile:            mainfile,
				ProcessStatus:       model.StatusRunning,
				EntryCreateTime:     now,
				LastProcessingTime:  now,
			},
		},
	}

	err := Validate(info, ImportValidation{Now: now})
	if err == nil {
		t.Fatal("expected a still-processing entry to fail validation (check g)")
	}
}

func TestValidate_VersionTooOld(t *testing.T) {
	now := time.Now()
	info := &model.BundleInfo{
		UploadID: "uploadZ",
		Source:   model.BundleSource{Version: "0.9.0"},
		Upload:   model.Upload{UploadCreateTime: now, LastUpdate: now},
	}

	err := Validate(info, ImportValidation{Now: now, RequiredMinVersion: "1.0.0"})
	if err == nil {
		t.Fatal("expected old source version to fail validation")
	}
}

func TestValidate_DatasetOwnerConflict(t *testing.T) {
	now := time.Now()
	info := &model.BundleInfo{
		UploadID: "uploadW",
		Source:   model.BundleSource{Version: "1.0.0"},
		Upload:   model.Upload{UploadCreateTime: now, LastUpdate: now},
		Datasets: []model.Dataset{{DatasetName: "shared", UserID: "alice", CreateTime: now}},
	}

	err := Validate(info, ImportValidation{
		Now:              now,
		FindDatasetOwner: func(name string) string { return "bob" },
	})
	if err == nil {
		t.Fatal("expected dataset owned by a different user to be rejected")
	}
}

func TestValidate_HappyPath(t *testing.T) {
	now := time.Now()
	mainfile := "vasprun.xml"
	uploadID := "uploadOK"
	info := &model.BundleInfo{
		UploadID: uploadID,
		Source:   model.BundleSource{Version: "1.5.0"},
		Upload: model.Upload{
			UploadCreateTime: now,
			LastUpdate:       now,
			MainAuthorID:     "alice",
		},
		Entries: []model.Entry{
			{
				EntryID:            model.DeriveEntryID(uploadID, mainfile),
				Mainfile:           mainfile,
				ProcessStatus:      model.StatusSuccess,
				EntryCreateTime:    now,
				LastProcessingTime: now,
			},
		},
	}

	err := Validate(info, ImportValidation{
		Now:                now,
		RequiredMinVersion: "1.0.0",
		UserExists:         func(id string) bool { return id == "alice" },
		FindDatasetOwner:   func(name string) string { return "" },
	})
	if err != nil {
		t.Fatalf("expected happy-path bundle to validate, got: %v", err)
	}
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.10.0", "1.9.0", 1},
		{"1.0.0", "1.0.0", 0},
		{"0.9.0", "1.0.0", -1},
	}
	for _, c := range cases {
		got := compareVersions(c.a, c.b)
		if (got > 0) != (c.want > 0) || (got < 0) != (c.want < 0) || (got == 0) != (c.want == 0) {
			t.Errorf("compareVersions(%q, %q) = %d, want sign of %d", c.a, c.b, got, c.want)
		}
	}
}
