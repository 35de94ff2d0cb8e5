package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
	"github.com/BlackLotus/nomad/pkg/statestore"
)

type fakeScheduler struct {
	parseAllCalls   []string
	reprocessCalls  []string
}

func (f *fakeScheduler) EnqueueParseAll(uploadID string) (string, error) {
	f.parseAllCalls = append(f.parseAllCalls, uploadID)
	return "task-" + uploadID, nil
}

func (f *fakeScheduler) EnqueueReprocess(uploadID string) (string, error) {
	f.reprocessCalls = append(f.reprocessCalls, uploadID)
	return "task-" + uploadID, nil
}

type fakeSearch struct {
	refreshed int
	deleted   []string
}

func (f *fakeSearch) DeleteByUpload(_ context.Context, uploadID string) error {
	f.deleted = append(f.deleted, uploadID)
	return nil
}
func (f *fakeSearch) Refresh(context.Context) error { f.refreshed++; return nil }

func newTestController(t *testing.T) (*Controller, *fakeScheduler, *fakeSearch) {
	t.Helper()
	root := t.TempDir()

	store, err := statestore.Open(&config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(root, "state.db")},
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	layout := &filestore.Layout{
		StagingRoot: filepath.Join(root, "staging"),
		PublicRoot:  filepath.Join(root, "public"),
		TmpRoot:     filepath.Join(root, "tmp"),
	}

	sched := &fakeScheduler{}
	search := &fakeSearch{}

	c := New(store, layout, sched, search, nil, 5, 1<<20, config.BundleImportConfig{}, model.BundleSource{Version: "1.0.0"})
	return c, sched, search
}

func mustCreateUpload(t *testing.T, c *Controller, uploadID, authorID string) *model.Upload {
	t.Helper()
	upload := &model.Upload{UploadID: uploadID, MainAuthorID: authorID}
	if err := c.Store.CreateUpload(context.Background(), upload); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if _, err := filestore.NewStagingFiles(c.Layout, uploadID); err != nil {
		t.Fatalf("NewStagingFiles: %v", err)
	}
	return upload
}

func mustSucceedEntry(t *testing.T, c *Controller, uploadID, mainfile string) *model.Entry {
	t.Helper()
	entryID := model.DeriveEntryID(uploadID, mainfile)
	entry := &model.Entry{
		UploadID:      uploadID,
		EntryID:       entryID,
		Mainfile:      mainfile,
		ProcessStatus: model.StatusSuccess,
	}
	if err := c.Store.CreateEntry(context.Background(), entry); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	archivePath := c.Layout.StagingEntryArchivePath(uploadID, entryID)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archivePath, []byte("archive-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return entry
}

func TestCreate_EnforcesUploadLimitForNonAdmins(t *testing.T) {
	c, _, _ := newTestController(t)
	actor := Actor{UserID: "alice"}
	ctx := context.Background()

	for i := 0; i < c.UploadLimit; i++ {
		if _, err := c.Create(ctx, actor, CreateParams{UploadName: "u"}); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}
	if _, err := c.Create(ctx, actor, CreateParams{UploadName: "over limit"}); err == nil {
		t.Fatal("expected the upload limit to be enforced for a non-admin")
	}

	admin := Actor{UserID: "root", IsAdmin: true}
	if _, err := c.Create(ctx, admin, CreateParams{UploadName: "admin upload"}); err != nil {
		t.Fatalf("admin should bypass the upload limit: %v", err)
	}
}

func TestAddFiles_RefusesOncePublished(t *testing.T) {
	c, sched, _ := newTestController(t)
	ctx := context.Background()
	upload := mustCreateUpload(t, c, "upload1", "alice")
	if err := c.Store.UpdateUploadFields(ctx, upload.UploadID, map[string]any{"publish_time": time.Now()}); err != nil {
		t.Fatal(err)
	}

	actor := Actor{UserID: "alice"}
	if err := c.AddFiles(ctx, actor, upload.UploadID, "/nonexistent", ""); err == nil {
		t.Fatal("expected add_files to refuse a published upload for a non-admin")
	}
	if len(sched.parseAllCalls) != 0 {
		t.Errorf("expected no parse_all enqueue on refusal, got %v", sched.parseAllCalls)
	}
}

func TestSetUploadMetadata_NonAdminCannotExtendEmbargo(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	upload := mustCreateUpload(t, c, "upload2", "alice")
	if err := c.Store.UpdateUploadFields(ctx, upload.UploadID, map[string]any{"embargo_length": 6}); err != nil {
		t.Fatal(err)
	}

	actor := Actor{UserID: "alice"}
	longer := 24
	if err := c.SetUploadMetadata(ctx, actor, upload.UploadID, SetUploadMetadataParams{EmbargoMonths: &longer}); err == nil {
		t.Fatal("expected a non-admin extending the embargo to be rejected")
	}

	shorter := 3
	if err := c.SetUploadMetadata(ctx, actor, upload.UploadID, SetUploadMetadataParams{EmbargoMonths: &shorter}); err != nil {
		t.Fatalf("shortening the embargo should be allowed: %v", err)
	}
}

func TestPublish_RequiresAtLeastOneSuccessEntry(t *testing.T) {
	c, _, search := newTestController(t)
	ctx := context.Background()
	upload := mustCreateUpload(t, c, "upload3", "alice")
	actor := Actor{UserID: "alice"}

	if err := c.Publish(ctx, actor, upload.UploadID, PublishParams{}); err == nil {
		t.Fatal("expected publish to refuse an upload with zero processed entries")
	}

	mustSucceedEntry(t, c, upload.UploadID, "vasprun.xml")
	if err := c.Publish(ctx, actor, upload.UploadID, PublishParams{EmbargoMonths: 12}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := c.Store.GetUpload(ctx, upload.UploadID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if !got.IsPublished() {
		t.Error("expected upload to be published")
	}
	if got.EmbargoLength != 12 {
		t.Errorf("embargo_length = %d, want 12", got.EmbargoLength)
	}
	if search.refreshed == 0 {
		t.Error("expected a search refresh after publish")
	}
	if _, err := os.Stat(c.Layout.PublicRawZipPath(upload.UploadID, model.AccessRestricted)); err != nil {
		t.Errorf("expected a restricted raw zip under embargo: %v", err)
	}
}

func TestReprocess_PublishedUploadRequiresAdmin(t *testing.T) {
	c, sched, _ := newTestController(t)
	ctx := context.Background()
	upload := mustCreateUpload(t, c, "upload4", "alice")
	if err := c.Store.UpdateUploadFields(ctx, upload.UploadID, map[string]any{"publish_time": time.Now()}); err != nil {
		t.Fatal(err)
	}

	actor := Actor{UserID: "alice"}
	if err := c.Reprocess(ctx, actor, upload.UploadID); err == nil {
		t.Fatal("expected a non-admin to be refused reprocessing a published upload")
	}

	admin := Actor{UserID: "root", IsAdmin: true}
	if err := c.Reprocess(ctx, admin, upload.UploadID); err != nil {
		t.Fatalf("admin reprocess: %v", err)
	}
	if len(sched.reprocessCalls) != 1 {
		t.Errorf("expected exactly one reprocess enqueue, got %v", sched.reprocessCalls)
	}
}

func TestDelete_RemovesEverything(t *testing.T) {
	c, _, search := newTestController(t)
	ctx := context.Background()
	upload := mustCreateUpload(t, c, "upload5", "alice")
	mustSucceedEntry(t, c, upload.UploadID, "vasprun.xml")

	actor := Actor{UserID: "alice"}
	if err := c.Delete(ctx, actor, upload.UploadID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := c.Store.GetUpload(ctx, upload.UploadID); err == nil {
		t.Error("expected the upload row to be gone")
	}
	if len(search.deleted) != 1 || search.deleted[0] != upload.UploadID {
		t.Errorf("expected a single search delete for %s, got %v", upload.UploadID, search.deleted)
	}
	if _, err := os.Stat(c.Layout.StagingUploadDir(upload.UploadID)); !os.IsNotExist(err) {
		t.Errorf("expected staging dir removed, stat err = %v", err)
	}
}

func TestLiftEmbargo_RequiresPublishedAndUnderEmbargo(t *testing.T) {
	c, sched, _ := newTestController(t)
	ctx := context.Background()
	upload := mustCreateUpload(t, c, "upload6", "alice")
	actor := Actor{UserID: "alice"}

	if err := c.LiftEmbargo(ctx, actor, upload.UploadID); err == nil {
		t.Fatal("expected lift_embargo to refuse an unpublished upload")
	}

	if err := c.Store.UpdateUploadFields(ctx, upload.UploadID, map[string]any{
		"publish_time":   time.Now(),
		"embargo_length": 12,
	}); err != nil {
		t.Fatal(err)
	}
	if err := c.LiftEmbargo(ctx, actor, upload.UploadID); err != nil {
		t.Fatalf("LiftEmbargo: %v", err)
	}

	got, err := c.Store.GetUpload(ctx, upload.UploadID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if got.EmbargoLength != 0 {
		t.Errorf("embargo_length = %d, want 0", got.EmbargoLength)
	}
	if len(sched.reprocessCalls) != 1 {
		t.Errorf("expected a reprocess enqueue to repack without embargo, got %v", sched.reprocessCalls)
	}
}
