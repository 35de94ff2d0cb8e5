package searchgateway

import (
	"context"
	"testing"

	"github.com/BlackLotus/nomad/pkg/entryprocessor"
)

func TestIndexAndDeleteByUpload(t *testing.T) {
	ctx := context.Background()
	gw, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer gw.Close()

	archive := entryprocessor.Archive{
		"upload_id":   "up1",
		"mainfile":    "vasprun.xml",
		"parser_name": "parsers/vasp",
	}
	if err := gw.Index(ctx, "entry1", archive, false); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := gw.Index(ctx, "entry2", archive, false); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if err := gw.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	count, err := gw.index.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 docs, got %d", count)
	}

	if err := gw.DeleteByUpload(ctx, "up1"); err != nil {
		t.Fatalf("DeleteByUpload: %v", err)
	}

	count, err = gw.index.DocCount()
	if err != nil {
		t.Fatalf("DocCount after delete: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 docs after delete, got %d", count)
	}
}

func TestDeleteByUploadLeavesOtherUploads(t *testing.T) {
	ctx := context.Background()
	gw, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer gw.Close()

	if err := gw.IndexDocument(ctx, Document{EntryID: "e1", UploadID: "upA"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if err := gw.IndexDocument(ctx, Document{EntryID: "e2", UploadID: "upB"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	if err := gw.DeleteByUpload(ctx, "upA"); err != nil {
		t.Fatalf("DeleteByUpload: %v", err)
	}

	count, err := gw.index.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 doc remaining, got %d", count)
	}
}
