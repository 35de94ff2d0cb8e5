package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BlackLotus/nomad/pkg/model"
)

func writeRawFile(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("data:"+rel), 0644); err != nil {
		t.Fatal(err)
	}
}

// TestComputePublicSet_EmbargoSegregation exercises the example from §8
// scenario B2: a/m1.json, a/m2.json, a/shared.aux with m1 embargoed.
func TestComputePublicSet_EmbargoSegregation(t *testing.T) {
	root := t.TempDir()
	writeRawFile(t, root, "a/m1.json")
	writeRawFile(t, root, "a/m2.json")
	writeRawFile(t, root, "a/shared.aux")

	entries := []PackEntry{
		{EntryID: "e1", Mainfile: "a/m1.json", WithEmbargo: true},
		{EntryID: "e2", Mainfile: "a/m2.json", WithEmbargo: false},
	}

	public, err := computePublicSet(root, entries, 100)
	if err != nil {
		t.Fatal(err)
	}

	if public["a/m1.json"] {
		t.Error("embargoed mainfile must not appear in the public set (I4)")
	}
	if !public["a/m2.json"] {
		t.Error("unembargoed mainfile must appear in the public set")
	}
	if !public["a/shared.aux"] {
		t.Error("shared aux file of the unembargoed entry must appear in the public set")
	}
}

// TestComputePublicSet_AuxfileCutoff exercises B3: cutoff+5 aux files
// yields exactly cutoff kept, sorted ascending.
func TestComputePublicSet_AuxfileCutoff(t *testing.T) {
	root := t.TempDir()
	writeRawFile(t, root, "calc/main.json")
	const cutoff = 3
	for i := 0; i < cutoff+5; i++ {
		writeRawFile(t, root, "calc/aux_"+string(rune('a'+i))+".dat")
	}

	entries := []PackEntry{{EntryID: "e1", Mainfile: "calc/main.json"}}
	public, err := computePublicSet(root, entries, cutoff)
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	for p := range public {
		if p != "calc/main.json" {
			count++
		}
	}
	if count != cutoff {
		t.Errorf("expected exactly %d aux files kept, got %d", cutoff, count)
	}
	for _, want := range []string{"calc/aux_a.dat", "calc/aux_b.dat", "calc/aux_c.dat"} {
		if !public[want] {
			t.Errorf("expected lexicographically-first aux file %s to be kept", want)
		}
	}
}

func TestComputePublicSet_SkipsAlwaysRestricted(t *testing.T) {
	root := t.TempDir()
	writeRawFile(t, root, "calc/main.json")
	writeRawFile(t, root, "calc/POTCAR")

	entries := []PackEntry{{EntryID: "e1", Mainfile: "calc/main.json"}}
	public, err := computePublicSet(root, entries, 100)
	if err != nil {
		t.Fatal(err)
	}
	if public["calc/POTCAR"] {
		t.Error("POTCAR must never enter the public set")
	}
}

func TestPackAndExtractRoundTrip(t *testing.T) {
	layout := &Layout{
		StagingRoot:          t.TempDir(),
		PublicRoot:           t.TempDir(),
		TmpRoot:              t.TempDir(),
		ArchiveVersionSuffix: "v1",
	}
	uploadID := "upload123"

	sf, err := NewStagingFiles(layout, uploadID)
	if err != nil {
		t.Fatal(err)
	}

	rawRoot := layout.StagingRawDir(uploadID)
	writeRawFile(t, rawRoot, "a/m1.json")
	writeRawFile(t, rawRoot, "a/m2.json")
	writeRawFile(t, rawRoot, "a/shared.aux")

	archiveDir := layout.StagingArchiveDir(uploadID)
	if err := os.WriteFile(filepath.Join(archiveDir, "e2.msg"), []byte{0x81, 0xa1, 'x', 0x01}, 0644); err != nil {
		t.Fatal(err)
	}

	entries := []PackEntry{
		{EntryID: "e1", Mainfile: "a/m1.json", WithEmbargo: true, HasArchive: false},
		{EntryID: "e2", Mainfile: "a/m2.json", WithEmbargo: false, HasArchive: true},
	}

	if err := sf.Pack(entries, 100); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	if _, err := os.Stat(layout.PublicRawZipPath(uploadID, model.AccessPublic)); err != nil {
		t.Errorf("expected raw-public zip: %v", err)
	}
	if _, err := os.Stat(layout.PublicArchivePath(uploadID, model.AccessRestricted)); err != nil {
		t.Errorf("expected archive-restricted msg: %v", err)
	}

	if err := sf.Extract(nil); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, rel := range []string{"a/m1.json", "a/m2.json", "a/shared.aux"} {
		if _, err := os.Stat(filepath.Join(rawRoot, rel)); err != nil {
			t.Errorf("expected %s to be restored after extraction: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(archiveDir, "e2.msg")); err != nil {
		t.Errorf("expected e2.msg to be rematerialized: %v", err)
	}
}
