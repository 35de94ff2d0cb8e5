package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/internal/logger"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
)

// CheckJoin implements §4.5's "Join": re-count processed entries, and if
// the upload has reached WAITING_FOR_RESULT with everything terminal,
// race to win the joined CAS barrier and run cleanup exactly once. It is
// safe to call after every single EntryOp completion — idempotency is
// mandatory per spec, and losers (including repeat calls after a winner
// already ran) are true no-ops.
func (s *Scheduler) CheckJoin(ctx context.Context, uploadID string) error {
	upload, err := s.Store.GetUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if upload.ProcessStatus != model.StatusWaitingForResult {
		return nil
	}

	total, processed, err := s.Store.CountEntriesByUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if processed < total {
		return nil
	}

	won, err := s.Store.CASUploadJoin(ctx, uploadID)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	if err := s.cleanup(ctx, upload); err != nil {
		logger.ErrorCtx(ctx, "cleanup failed", logger.UploadID(uploadID), logger.Err(err))
		if csErr := s.Store.CASUploadProcessStatus(ctx, uploadID, model.StatusWaitingForResult, model.StatusFailure); csErr != nil {
			return csErr
		}
		return err
	}

	if err := s.Store.CASUploadProcessStatus(ctx, uploadID, model.StatusWaitingForResult, model.StatusSuccess); err != nil {
		return err
	}

	upload.ProcessStatus = model.StatusSuccess
	s.Notifier.NotifyUploadComplete(ctx, upload)
	return nil
}

// cleanup implements the three cleanup actions named in §4.5 "Join": pack
// (first publish, when publish_directly hinted it), repack (reprocess of
// an already-published upload), or nothing (plain staging processing).
func (s *Scheduler) cleanup(ctx context.Context, upload *model.Upload) error {
	switch {
	case upload.IsPublished():
		if err := s.repackUpload(ctx, upload); err != nil {
			return apperr.Wrap(apperr.KindPackFailure, "repack during cleanup", err)
		}
	case upload.PublishDirectly:
		if err := s.packUpload(ctx, upload); err != nil {
			return apperr.Wrap(apperr.KindPackFailure, "pack during cleanup", err)
		}
		now := time.Now()
		if err := s.Store.UpdateUploadFields(ctx, upload.UploadID, map[string]any{"publish_time": now}); err != nil {
			return err
		}
		upload.PublishTime = &now
	default:
		// nothing to pack — the upload stays in staging until an explicit
		// publish() call.
	}

	if enricher, ok := s.EntryProcessor.(PostCleanupEnricher); ok {
		if err := enricher.EnrichAfterCleanup(ctx, upload.UploadID); err != nil {
			logger.ErrorCtx(ctx, "phonon enrichment failed", logger.UploadID(upload.UploadID), logger.Err(err))
		}
	}

	if err := s.Search.Refresh(ctx); err != nil {
		return apperr.Wrap(apperr.KindSearchIndexFailure, "search refresh during cleanup", err)
	}
	return nil
}

func (s *Scheduler) packEntries(ctx context.Context, upload *model.Upload) ([]filestore.PackEntry, error) {
	entries, err := s.Store.ListEntriesByUpload(ctx, upload.UploadID)
	if err != nil {
		return nil, err
	}
	withEmbargo := upload.EmbargoLength > 0

	out := make([]filestore.PackEntry, 0, len(entries))
	for _, e := range entries {
		if e.ProcessStatus == model.StatusDeleted {
			continue
		}
		_, statErr := os.Stat(s.Layout.StagingEntryArchivePath(upload.UploadID, e.EntryID))
		out = append(out, filestore.PackEntry{
			EntryID:     e.EntryID,
			Mainfile:    e.Mainfile,
			WithEmbargo: withEmbargo,
			HasArchive:  statErr == nil,
		})
	}
	return out, nil
}

func (s *Scheduler) packUpload(ctx context.Context, upload *model.Upload) error {
	sf, err := filestore.NewStagingFiles(s.Layout, upload.UploadID)
	if err != nil {
		return err
	}
	entries, err := s.packEntries(ctx, upload)
	if err != nil {
		return err
	}
	return sf.Pack(entries, s.AuxfileCutoff)
}

func (s *Scheduler) repackUpload(ctx context.Context, upload *model.Upload) error {
	sf, err := filestore.NewStagingFiles(s.Layout, upload.UploadID)
	if err != nil {
		return err
	}
	entries, err := s.packEntries(ctx, upload)
	if err != nil {
		return err
	}
	return sf.Repack(entries, s.AuxfileCutoff)
}
