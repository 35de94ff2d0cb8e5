package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/matcher"
	"github.com/BlackLotus/nomad/pkg/model"
	"github.com/BlackLotus/nomad/pkg/statestore"
)

// fakeEntryProcessor stands in for C6: it writes a minimal valid staging
// archive record and transitions the entry straight to SUCCESS, so
// scheduler tests can exercise parse_all/check_join without depending on
// EntryProcessor's own implementation.
type fakeEntryProcessor struct {
	store  *statestore.Store
	layout *filestore.Layout
	fail   map[string]bool
}

func (f *fakeEntryProcessor) ProcessEntry(ctx context.Context, uploadID, entryID string) error {
	e, err := f.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if err := f.store.CASEntryProcessStatus(ctx, entryID, model.StatusPending, model.StatusRunning); err != nil {
		return err
	}

	to := model.StatusSuccess
	if f.fail[e.Mainfile] {
		to = model.StatusFailure
	} else {
		payload, _ := msgpack.Marshal(map[string]any{"entry_id": entryID})
		path := f.layout.StagingEntryArchivePath(uploadID, entryID)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, payload, 0644); err != nil {
			return err
		}
	}
	return f.store.CASEntryProcessStatus(ctx, entryID, model.StatusRunning, to)
}

type fakeSearch struct {
	refreshed int
}

func (f *fakeSearch) DeleteByUpload(context.Context, string) error { return nil }
func (f *fakeSearch) Refresh(context.Context) error                { f.refreshed++; return nil }

type fakeNotifier struct {
	notified []string
}

func (f *fakeNotifier) NotifyUploadComplete(_ context.Context, u *model.Upload) {
	f.notified = append(f.notified, u.UploadID)
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeEntryProcessor, *fakeSearch, *fakeNotifier) {
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

	ep := &fakeEntryProcessor{store: store, layout: layout, fail: map[string]bool{}}
	search := &fakeSearch{}
	notifier := &fakeNotifier{}

	queue, err := OpenQueue(filepath.Join(root, "queue"))
	if err != nil {
		t.Fatalf("opening queue: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	registry := matcher.NewRegistry(matcher.DefaultSpecs())
	sched := New(queue, store, layout, registry, ep, search, notifier,
		config.MatcherConfig{ParserMatchingSize: 4096}, config.ReprocessConfig{}, 100)
	return sched, ep, search, notifier
}

func writeStagingFile(t *testing.T, layout *filestore.Layout, uploadID, relPath, content string) {
	t.Helper()
	abs := filepath.Join(layout.StagingRawDir(uploadID), relPath)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseAllAndCheckJoin_CreatesAndFinishesEntries(t *testing.T) {
	sched, _, search, notifier := newTestScheduler(t)
	ctx := context.Background()
	uploadID := "upload1"

	upload := &model.Upload{UploadID: uploadID}
	if err := sched.Store.CreateUpload(ctx, upload); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	writeStagingFile(t, sched.Layout, uploadID, "vasprun.xml", "vasp.6.3 output")

	if err := sched.ParseAll(ctx, uploadID); err != nil {
		t.Fatalf("ParseAll: %v", err)
	}

	entries, err := sched.Store.ListEntriesByUpload(ctx, uploadID)
	if err != nil {
		t.Fatalf("ListEntriesByUpload: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	// Drive the entry pipeline + join by calling runEntryOp directly; no
	// worker pool runs, so the EntryOp job ParseAll queued is never leased.
	if err := sched.runEntryOp(ctx, uploadID, entries[0].EntryID); err != nil {
		t.Fatalf("runEntryOp: %v", err)
	}

	got, err := sched.Store.GetUpload(ctx, uploadID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if got.ProcessStatus != model.StatusSuccess {
		t.Errorf("upload process_status = %s, want SUCCESS", got.ProcessStatus)
	}
	if !got.Joined {
		t.Error("expected upload.joined = true after check_join winner ran cleanup")
	}
	if search.refreshed == 0 {
		t.Error("expected search refresh to run during cleanup")
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != uploadID {
		t.Errorf("expected notifier to fire once for %s, got %+v", uploadID, notifier.notified)
	}
}

func TestParseAll_NoMatchesStillReachesTerminalState(t *testing.T) {
	sched, _, _, _ := newTestScheduler(t)
	ctx := context.Background()
	uploadID := "upload2"

	if err := sched.Store.CreateUpload(ctx, &model.Upload{UploadID: uploadID}); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	writeStagingFile(t, sched.Layout, uploadID, "readme.txt", "nothing parseable here")

	if err := sched.ParseAll(ctx, uploadID); err != nil {
		t.Fatalf("ParseAll: %v", err)
	}

	got, err := sched.Store.GetUpload(ctx, uploadID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if got.ProcessStatus != model.StatusSuccess {
		t.Errorf("upload with zero matches should still reach SUCCESS via check_join, got %s", got.ProcessStatus)
	}
}

func TestCleanup_PublishDirectlyPacksOnFirstSuccess(t *testing.T) {
	sched, _, _, _ := newTestScheduler(t)
	ctx := context.Background()
	uploadID := "upload3"

	if err := sched.Store.CreateUpload(ctx, &model.Upload{UploadID: uploadID, PublishDirectly: true}); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	writeStagingFile(t, sched.Layout, uploadID, "vasprun.xml", "vasp.6.3 output")

	if err := sched.ParseAll(ctx, uploadID); err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	entries, _ := sched.Store.ListEntriesByUpload(ctx, uploadID)
	for _, e := range entries {
		if err := sched.runEntryOp(ctx, uploadID, e.EntryID); err != nil {
			t.Fatalf("runEntryOp: %v", err)
		}
	}

	got, err := sched.Store.GetUpload(ctx, uploadID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if !got.IsPublished() {
		t.Fatal("expected publish_directly upload to be published after cleanup")
	}
	if _, err := os.Stat(sched.Layout.PublicRawZipPath(uploadID, model.AccessPublic)); err != nil {
		t.Errorf("expected packed public raw zip to exist: %v", err)
	}
}
