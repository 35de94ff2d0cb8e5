package entryprocessor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
	"github.com/BlackLotus/nomad/pkg/statestore"
)

// ParserLookup resolves the Parser instance registered under parserID,
// mirroring the matcher's 4-tuple registry but for the executable side
// of a parser rather than its matching predicates.
type ParserLookup func(parserID string) (Parser, bool)

// Processor is C6: it drives one Entry through steps 1-7 of §4.6
// (Initialize, Parse, Normalize, Archive write, Index, Logs, Status).
type Processor struct {
	Store       *statestore.Store
	Layout      *filestore.Layout
	Parsers     ParserLookup
	Normalizers []Normalizer
	Indexer     SearchIndexer
}

// New builds a Processor.
func New(store *statestore.Store, layout *filestore.Layout, parsers ParserLookup, normalizers []Normalizer, indexer SearchIndexer) *Processor {
	return &Processor{Store: store, Layout: layout, Parsers: parsers, Normalizers: normalizers, Indexer: indexer}
}

// ProcessEntry runs one EntryOp to completion (§4.6): it always leaves the
// entry in a terminal status (SUCCESS or FAILURE) before returning, even
// when the pipeline fails partway, so check_join can always make progress.
func (p *Processor) ProcessEntry(ctx context.Context, uploadID, entryID string) error {
	logger, records := newEntryLogger(uploadID, entryID)

	if err := p.Store.CASEntryProcessStatus(ctx, entryID, model.StatusPending, model.StatusRunning); err != nil {
		return err
	}

	entry, err := p.Store.GetEntry(ctx, entryID)
	if err != nil {
		return p.fail(ctx, entry, entryID, records, apperr.Wrap(apperr.KindNotFound, "loading entry before processing", err))
	}

	archive := Archive{
		"entry_id":  entry.EntryID,
		"upload_id": entry.UploadID,
		"mainfile":  entry.Mainfile,
	}

	mainfilePath := filepath.Join(p.Layout.StagingRawDir(entry.UploadID), entry.Mainfile)

	if procErr := p.runPipeline(ctx, entry, archive, mainfilePath, logger); procErr != nil {
		return p.fail(ctx, entry, entryID, records, procErr)
	}

	if err := p.writeArchive(entry, archive, records); err != nil {
		return p.fail(ctx, entry, entryID, records, err)
	}

	if p.Indexer != nil {
		if err := p.Indexer.Index(ctx, entryID, archive, true); err != nil {
			logger.Error("search indexing failed", "error", err)
		}
	}

	return p.succeed(ctx, entry, entryID, records)
}

// runPipeline executes steps 2-3 (parse then normalize), stopping at the
// first failure so the entry fails with a precise apperr.Kind.
func (p *Processor) runPipeline(ctx context.Context, entry *model.Entry, archive Archive, mainfilePath string, logger *slog.Logger) error {
	parser, ok := p.Parsers(entry.ParserName)
	if !ok {
		return apperr.New(apperr.KindParserFailure, "no parser registered for "+entry.ParserName)
	}

	if err := parser.Parse(ctx, mainfilePath, archive, logger); err != nil {
		return apperr.Wrap(apperr.KindParserFailure, "parser "+entry.ParserName+" failed", err)
	}

	for _, n := range p.Normalizers {
		if !domainMatches(n.Domain(), entry.ParserName) {
			continue
		}
		if err := n.Normalize(ctx, archive, logger); err != nil {
			return apperr.Wrap(apperr.KindNormalizerFailure, "normalizer "+n.Domain()+" failed", err)
		}
	}

	return nil
}

// writeArchive implements step 4: the full archive goes to the staging
// per-entry .msg file, and a pruned projection is stashed on entry for the
// search indexer to consume without re-opening the archive.
func (p *Processor) writeArchive(entry *model.Entry, archive Archive, records *[]captureLogRecord) error {
	archiveLogs, _ := finalizeLogs(*records)
	archive["processing_logs"] = archiveLogs

	payload, err := msgpack.Marshal(map[string]any(archive))
	if err != nil {
		return apperr.Wrap(apperr.KindArchiveWriteFailure, "marshal archive", err)
	}

	path := p.Layout.StagingEntryArchivePath(entry.UploadID, entry.EntryID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperr.Wrap(apperr.KindArchiveWriteFailure, "create archive directory", err)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return apperr.Wrap(apperr.KindArchiveWriteFailure, "write archive file", err)
	}

	entry.SearchProjection = projectionOf(archive)
	return nil
}

// projectionOf builds the pruned entry-level document (§4.6 step 4): the
// top-level scalar/metadata fields only, excluding the raw log payload.
func projectionOf(archive Archive) []byte {
	proj := make(map[string]any, len(archive))
	for k, v := range archive {
		if k == "processing_logs" {
			continue
		}
		proj[k] = v
	}
	payload, err := msgpack.Marshal(proj)
	if err != nil {
		return nil
	}
	return payload
}

func (p *Processor) succeed(ctx context.Context, entry *model.Entry, entryID string, records *[]captureLogRecord) error {
	_, errMessages := finalizeLogs(*records)
	fields := map[string]any{}
	if entry != nil && entry.SearchProjection != nil {
		fields["search_projection"] = entry.SearchProjection
	}
	if len(errMessages) > 0 {
		fields["errors"] = errMessages
	}
	if len(fields) > 0 {
		_ = p.Store.UpdateEntryFields(ctx, entryID, fields)
	}
	return p.Store.CASEntryProcessStatus(ctx, entryID, model.StatusRunning, model.StatusSuccess)
}

// fail transitions the entry to FAILURE and copies the pipeline error plus
// any captured error-level log lines into entry.errors (§4.6 step 6-7).
func (p *Processor) fail(ctx context.Context, entry *model.Entry, entryID string, records *[]captureLogRecord, procErr error) error {
	_, errMessages := finalizeLogs(*records)
	errMessages = append(errMessages, procErr.Error())
	_ = p.Store.UpdateEntryFields(ctx, entryID, map[string]any{"errors": errMessages})

	if casErr := p.Store.CASEntryProcessStatus(ctx, entryID, model.StatusRunning, model.StatusFailure); casErr != nil {
		return casErr
	}
	return procErr
}
