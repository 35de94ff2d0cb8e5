package entryprocessor

import (
	"context"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/BlackLotus/nomad/pkg/model"
)

// methodRefKey is the archive field a parser/normalizer may set to borrow
// method information from another entry of the same upload (e.g. a
// phonon-calculation entry referencing the DFT entry it was derived from).
const methodRefKey = "method_ref_entry_id"

// EnrichAfterCleanup implements the phonon post-step (§4.6): once every
// entry of an upload has reached a terminal state and cleanup has run, scan
// for entries whose archive names another entry as its method source, and
// copy that entry's "method" section across. Per spec ("on error the entry
// is downgraded but not failed"), an enrichment failure never changes the
// entry's process_status — it is recorded as a warning and the pass moves
// on to the remaining entries.
func (p *Processor) EnrichAfterCleanup(ctx context.Context, uploadID string) error {
	entries, err := p.Store.ListEntriesByUpload(ctx, uploadID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, e := range entries {
		if e.ProcessStatus != model.StatusSuccess {
			continue
		}
		if err := p.enrichOne(e); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			warnings := append(append([]string{}, e.Warnings...), "phonon enrichment: "+err.Error())
			_ = p.Store.UpdateEntryFields(ctx, e.EntryID, map[string]any{"warnings": warnings})
		}
	}
	return firstErr
}

func (p *Processor) enrichOne(e *model.Entry) error {
	path := p.Layout.StagingEntryArchivePath(e.UploadID, e.EntryID)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading archive for %s: %w", e.EntryID, err)
	}

	var archive map[string]any
	if err := msgpack.Unmarshal(raw, &archive); err != nil {
		return fmt.Errorf("decoding archive for %s: %w", e.EntryID, err)
	}

	refID, ok := archive[methodRefKey].(string)
	if !ok || refID == "" || refID == e.EntryID {
		return nil
	}

	refPath := p.Layout.StagingEntryArchivePath(e.UploadID, refID)
	refRaw, err := os.ReadFile(refPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading referenced archive %s: %w", refID, err)
	}

	var refArchive map[string]any
	if err := msgpack.Unmarshal(refRaw, &refArchive); err != nil {
		return fmt.Errorf("decoding referenced archive %s: %w", refID, err)
	}

	method, ok := refArchive["method"]
	if !ok {
		return nil
	}
	archive["method"] = method

	payload, err := msgpack.Marshal(archive)
	if err != nil {
		return fmt.Errorf("remarshal enriched archive for %s: %w", e.EntryID, err)
	}
	return os.WriteFile(path, payload, 0644)
}
