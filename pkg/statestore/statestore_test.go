package statestore

import (
	"context"
	"testing"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/model"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	return s
}

func TestCreateAndGetUpload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := &model.Upload{UploadID: model.NewUploadID(), MainAuthorID: "user-1"}
	if err := s.CreateUpload(ctx, u); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	got, err := s.GetUpload(ctx, u.UploadID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if got.ProcessStatus != model.StatusReady {
		t.Errorf("expected READY status, got %s", got.ProcessStatus)
	}

	if _, err := s.GetUpload(ctx, "does-not-exist"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestCASUploadProcessStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := &model.Upload{UploadID: model.NewUploadID()}
	if err := s.CreateUpload(ctx, u); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	if err := s.CASUploadProcessStatus(ctx, u.UploadID, model.StatusReady, model.StatusRunning); err != nil {
		t.Fatalf("expected CAS to succeed from READY: %v", err)
	}

	err := s.CASUploadProcessStatus(ctx, u.UploadID, model.StatusReady, model.StatusRunning)
	if apperr.KindOf(err) != apperr.KindProcessAlreadyRunning {
		t.Fatalf("expected process_already_running on stale CAS, got %v", err)
	}
}

func TestCASUploadJoin_WinnerTakesAll(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := &model.Upload{UploadID: model.NewUploadID()}
	if err := s.CreateUpload(ctx, u); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	won1, err := s.CASUploadJoin(ctx, u.UploadID)
	if err != nil {
		t.Fatalf("CASUploadJoin: %v", err)
	}
	won2, err := s.CASUploadJoin(ctx, u.UploadID)
	if err != nil {
		t.Fatalf("CASUploadJoin: %v", err)
	}

	if !won1 || won2 {
		t.Errorf("expected exactly one winner, got won1=%v won2=%v", won1, won2)
	}
}

func TestEntryLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	uploadID := model.NewUploadID()
	if err := s.CreateUpload(ctx, &model.Upload{UploadID: uploadID}); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	mainfile := "a/sample.out"
	e := &model.Entry{
		EntryID:    model.DeriveEntryID(uploadID, mainfile),
		UploadID:   uploadID,
		Mainfile:   mainfile,
		ParserName: "parsers/sample",
	}
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	total, processed, err := s.CountEntriesByUpload(ctx, uploadID)
	if err != nil {
		t.Fatalf("CountEntriesByUpload: %v", err)
	}
	if total != 1 || processed != 0 {
		t.Errorf("expected total=1 processed=0, got total=%d processed=%d", total, processed)
	}

	if err := s.CASEntryProcessStatus(ctx, e.EntryID, model.StatusPending, model.StatusRunning); err != nil {
		t.Fatalf("CAS pending->running: %v", err)
	}
	if err := s.CASEntryProcessStatus(ctx, e.EntryID, model.StatusRunning, model.StatusSuccess); err != nil {
		t.Fatalf("CAS running->success: %v", err)
	}

	_, processed, err = s.CountEntriesByUpload(ctx, uploadID)
	if err != nil {
		t.Fatalf("CountEntriesByUpload: %v", err)
	}
	if processed != 1 {
		t.Errorf("expected processed=1 after SUCCESS, got %d", processed)
	}
}
