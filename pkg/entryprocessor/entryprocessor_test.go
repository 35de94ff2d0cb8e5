package entryprocessor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
	"github.com/BlackLotus/nomad/pkg/statestore"
)

type stubParser struct {
	fail   bool
	fields map[string]any
}

func (p *stubParser) Parse(_ context.Context, _ string, archive Archive, logger *slog.Logger) error {
	if p.fail {
		return context.DeadlineExceeded
	}
	if logger != nil {
		logger.Info("parsing mainfile")
	}
	for k, v := range p.fields {
		archive[k] = v
	}
	return nil
}

type stubNormalizer struct {
	domain string
	fail   bool
}

func (n *stubNormalizer) Domain() string { return n.domain }
func (n *stubNormalizer) Normalize(_ context.Context, archive Archive, logger *slog.Logger) error {
	if n.fail {
		return context.Canceled
	}
	archive["normalized"] = true
	return nil
}

type stubIndexer struct {
	calls int
}

func (s *stubIndexer) Index(_ context.Context, _ string, _ Archive, _ bool) error {
	s.calls++
	return nil
}

func newTestProcessor(t *testing.T, parser Parser, normalizers []Normalizer, indexer SearchIndexer) (*Processor, *statestore.Store, *filestore.Layout) {
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

	lookup := ParserLookup(func(parserID string) (Parser, bool) {
		if parser == nil {
			return nil, false
		}
		return parser, true
	})

	proc := New(store, layout, lookup, normalizers, indexer)
	return proc, store, layout
}

func mustCreateEntry(t *testing.T, store *statestore.Store, uploadID, mainfile, parserName string) *model.Entry {
	t.Helper()
	e := &model.Entry{
		EntryID:       uploadID + ":" + mainfile,
		UploadID:      uploadID,
		Mainfile:      mainfile,
		ParserName:    parserName,
		ProcessStatus: model.StatusPending,
	}
	if err := store.CreateEntry(context.Background(), e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	return e
}

func TestProcessEntry_HappyPathWritesArchiveAndIndexes(t *testing.T) {
	indexer := &stubIndexer{}
	parser := &stubParser{fields: map[string]any{"program_name": "VASP"}}
	normalizer := &stubNormalizer{domain: "parsers/vasp"}
	proc, store, layout := newTestProcessor(t, parser, []Normalizer{normalizer}, indexer)
	ctx := context.Background()

	uploadID := "upload1"
	if err := os.MkdirAll(layout.StagingRawDir(uploadID), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(layout.StagingRawDir(uploadID), "vasprun.xml"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	entry := mustCreateEntry(t, store, uploadID, "vasprun.xml", "parsers/vasp")

	if err := proc.ProcessEntry(ctx, uploadID, entry.EntryID); err != nil {
		t.Fatalf("ProcessEntry: %v", err)
	}

	got, err := store.GetEntry(ctx, entry.EntryID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.ProcessStatus != model.StatusSuccess {
		t.Errorf("process_status = %s, want SUCCESS", got.ProcessStatus)
	}
	if got.SearchProjection == nil {
		t.Error("expected search_projection to be persisted")
	}
	if indexer.calls != 1 {
		t.Errorf("expected indexer to be called once, got %d", indexer.calls)
	}

	raw, err := os.ReadFile(layout.StagingEntryArchivePath(uploadID, entry.EntryID))
	if err != nil {
		t.Fatalf("reading archive file: %v", err)
	}
	var archive map[string]any
	if err := msgpack.Unmarshal(raw, &archive); err != nil {
		t.Fatalf("decoding archive: %v", err)
	}
	if archive["program_name"] != "VASP" {
		t.Errorf("expected parser field to survive in archive, got %+v", archive)
	}
	if archive["normalized"] != true {
		t.Errorf("expected normalizer field to survive in archive, got %+v", archive)
	}
	if _, ok := archive["processing_logs"]; !ok {
		t.Error("expected processing_logs to be present in archive")
	}
}

func TestProcessEntry_ParserFailureReachesFailureStatus(t *testing.T) {
	parser := &stubParser{fail: true}
	proc, store, layout := newTestProcessor(t, parser, nil, nil)
	ctx := context.Background()

	uploadID := "upload2"
	if err := os.MkdirAll(layout.StagingRawDir(uploadID), 0755); err != nil {
		t.Fatal(err)
	}
	entry := mustCreateEntry(t, store, uploadID, "broken.xml", "parsers/vasp")

	err := proc.ProcessEntry(ctx, uploadID, entry.EntryID)
	if err == nil {
		t.Fatal("expected ProcessEntry to return the parser error")
	}

	got, err := store.GetEntry(ctx, entry.EntryID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.ProcessStatus != model.StatusFailure {
		t.Errorf("process_status = %s, want FAILURE", got.ProcessStatus)
	}
	if len(got.Errors) == 0 {
		t.Error("expected entry.errors to be populated on failure")
	}
}

func TestProcessEntry_NoParserRegisteredFailsCleanly(t *testing.T) {
	proc, store, layout := newTestProcessor(t, nil, nil, nil)
	ctx := context.Background()

	uploadID := "upload3"
	if err := os.MkdirAll(layout.StagingRawDir(uploadID), 0755); err != nil {
		t.Fatal(err)
	}
	entry := mustCreateEntry(t, store, uploadID, "unknown.dat", "parsers/unregistered")

	if err := proc.ProcessEntry(ctx, uploadID, entry.EntryID); err == nil {
		t.Fatal("expected ProcessEntry to fail for an unregistered parser")
	}

	got, err := store.GetEntry(ctx, entry.EntryID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.ProcessStatus != model.StatusFailure {
		t.Errorf("process_status = %s, want FAILURE", got.ProcessStatus)
	}
}

func TestFinalizeLogs_FiltersDebugWhenOverCap(t *testing.T) {
	var records []captureLogRecord
	for i := 0; i < maxProcessingLogs+5; i++ {
		records = append(records, captureLogRecord{Level: slog.LevelDebug.String(), Message: "debug line"})
	}
	records = append(records, captureLogRecord{Level: slog.LevelError.String(), Message: "boom"})

	logs, errs := finalizeLogs(records)
	for _, l := range logs {
		if l["level"] == slog.LevelDebug.String() {
			t.Fatal("expected debug records to be filtered once over the cap")
		}
	}
	if len(errs) != 1 || errs[0] != "boom" {
		t.Errorf("expected one copied error message, got %+v", errs)
	}
}

func TestEnrichAfterCleanup_CopiesMethodFromReferencedEntry(t *testing.T) {
	proc, store, layout := newTestProcessor(t, nil, nil, nil)
	ctx := context.Background()
	uploadID := "upload4"

	base := mustCreateEntry(t, store, uploadID, "dft.xml", "parsers/vasp")
	derived := mustCreateEntry(t, store, uploadID, "phonon.xml", "parsers/phonopy")
	for _, e := range []*model.Entry{base, derived} {
		if err := store.CASEntryProcessStatus(ctx, e.EntryID, model.StatusPending, model.StatusRunning); err != nil {
			t.Fatal(err)
		}
		if err := store.CASEntryProcessStatus(ctx, e.EntryID, model.StatusRunning, model.StatusSuccess); err != nil {
			t.Fatal(err)
		}
	}

	writeArchiveFile(t, layout, uploadID, base.EntryID, map[string]any{"method": map[string]any{"xc_functional": "PBE"}})
	writeArchiveFile(t, layout, uploadID, derived.EntryID, map[string]any{methodRefKey: base.EntryID})

	if err := proc.EnrichAfterCleanup(ctx, uploadID); err != nil {
		t.Fatalf("EnrichAfterCleanup: %v", err)
	}

	raw, err := os.ReadFile(layout.StagingEntryArchivePath(uploadID, derived.EntryID))
	if err != nil {
		t.Fatalf("reading enriched archive: %v", err)
	}
	var archive map[string]any
	if err := msgpack.Unmarshal(raw, &archive); err != nil {
		t.Fatalf("decoding enriched archive: %v", err)
	}
	method, ok := archive["method"].(map[string]any)
	if !ok {
		t.Fatalf("expected method section to be copied, got %+v", archive)
	}
	if method["xc_functional"] != "PBE" {
		t.Errorf("expected xc_functional=PBE, got %+v", method)
	}
}

func writeArchiveFile(t *testing.T, layout *filestore.Layout, uploadID, entryID string, archive map[string]any) {
	t.Helper()
	path := layout.StagingEntryArchivePath(uploadID, entryID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	payload, err := msgpack.Marshal(archive)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatal(err)
	}
}
