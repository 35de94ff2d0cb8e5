package controller

import (
	"context"
	"os"
	"time"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/internal/telemetry"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
	"go.opentelemetry.io/otel/attribute"
)

// PublishParams carries the optional embargo length set at publish time
// (§4.7 "publish").
type PublishParams struct {
	EmbargoMonths int
	// ToCentralNomad relaxes the "not already published" pre-condition:
	// an Oasis deployment publishing up to central NOMAD may re-publish.
	ToCentralNomad bool
}

// packEntries projects every non-deleted entry of this upload into the
// filestore.PackEntry shape Pack/Repack need; HasArchive records whether
// the entry's staging archive file exists.
func (c *Controller) packEntries(ctx context.Context, upload *model.Upload) ([]filestore.PackEntry, error) {
	entries, err := c.Store.ListEntriesByUpload(ctx, upload.UploadID)
	if err != nil {
		return nil, err
	}
	withEmbargo := upload.EmbargoLength > 0
	out := make([]filestore.PackEntry, 0, len(entries))
	for _, e := range entries {
		if e.ProcessStatus == model.StatusDeleted {
			continue
		}
		_, statErr := os.Stat(c.Layout.StagingEntryArchivePath(upload.UploadID, e.EntryID))
		out = append(out, filestore.PackEntry{EntryID: e.EntryID, Mainfile: e.Mainfile, WithEmbargo: withEmbargo, HasArchive: statErr == nil})
	}
	return out, nil
}

// Publish implements §4.7 "publish": pack staging into the public area,
// set publish_time, and reindex.
func (c *Controller) Publish(ctx context.Context, actor Actor, uploadID string, p PublishParams) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "controller.publish", attribute.String("upload_id", uploadID))
	defer func() { telemetry.EndOK(span, err) }()

	upload, err := c.loadUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if err := requireNotProcessing(upload); err != nil {
		return err
	}
	if upload.ProcessStatus == model.StatusFailure {
		return apperr.BadRequestf("upload %s has a failed process and cannot be published", uploadID)
	}
	if upload.IsPublished() && !p.ToCentralNomad {
		return apperr.BadRequestf("upload %s is already published", uploadID)
	}

	_, processed, err := c.Store.CountEntriesByUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	successCount, err := c.countSuccess(ctx, uploadID)
	if err != nil {
		return err
	}
	if processed == 0 || successCount < 1 {
		return apperr.BadRequestf("upload %s has no successfully processed entry", uploadID)
	}

	if p.EmbargoMonths > 0 {
		if err := c.Store.UpdateUploadFields(ctx, uploadID, map[string]any{"embargo_length": p.EmbargoMonths}); err != nil {
			return err
		}
		upload.EmbargoLength = p.EmbargoMonths
	}

	sf, err := filestore.NewStagingFiles(c.Layout, uploadID)
	if err != nil {
		return err
	}
	entries, err := c.packEntries(ctx, upload)
	if err != nil {
		return err
	}
	if err := sf.Pack(entries, c.AuxfileCutoff); err != nil {
		return apperr.Wrap(apperr.KindPackFailure, "pack during publish", err)
	}

	publishTime := time.Now()
	if err := c.Store.UpdateUploadFields(ctx, uploadID, map[string]any{"publish_time": publishTime}); err != nil {
		return err
	}

	if err := c.Search.Refresh(ctx); err != nil {
		return apperr.Wrap(apperr.KindSearchIndexFailure, "search refresh after publish", err)
	}
	return nil
}

func (c *Controller) countSuccess(ctx context.Context, uploadID string) (int, error) {
	entries, err := c.Store.ListEntriesByUpload(ctx, uploadID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.ProcessStatus == model.StatusSuccess {
			n++
		}
	}
	return n, nil
}
