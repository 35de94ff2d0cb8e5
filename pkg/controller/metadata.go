package controller

import (
	"context"
	"time"

	"github.com/BlackLotus/nomad/internal/apperr"
)

// SetUploadMetadataParams carries the optional fields of §4.7
// "set_upload_metadata"; a nil pointer means "leave unchanged".
type SetUploadMetadataParams struct {
	UploadName   *string
	EmbargoMonths *int
	MainAuthor   *string
	CreateTime   *time.Time
}

// SetUploadMetadata implements §4.7's role-gated metadata edit: non-admins
// may only shorten the embargo, never touch author or timestamps, and may
// rename the upload only while it is unpublished. A flip from embargoed to
// not-embargoed while published triggers a repack via Scheduler.Reprocess.
func (c *Controller) SetUploadMetadata(ctx context.Context, actor Actor, uploadID string, p SetUploadMetadataParams) error {
	upload, err := c.loadUpload(ctx, uploadID)
	if err != nil {
		return err
	}

	if !actor.IsAdmin {
		if p.MainAuthor != nil {
			return apperr.Unauthorizedf("only an admin may change an upload's main author")
		}
		if p.CreateTime != nil {
			return apperr.Unauthorizedf("only an admin may change an upload's create time")
		}
		if p.EmbargoMonths != nil && *p.EmbargoMonths > upload.EmbargoLength {
			return apperr.Unauthorizedf("non-admins may only shorten the embargo, not extend it")
		}
		if p.UploadName != nil && upload.IsPublished() {
			return apperr.Unauthorizedf("upload name may only be changed while unpublished")
		}
	}

	fields := map[string]any{}
	if p.UploadName != nil {
		fields["upload_name"] = *p.UploadName
	}
	if p.MainAuthor != nil {
		fields["main_author"] = *p.MainAuthor
	}
	if p.CreateTime != nil {
		fields["upload_create_time"] = *p.CreateTime
	}

	embargoFlipped := false
	wasEmbargoed := upload.IsPublished() && upload.EmbargoLength > 0
	if p.EmbargoMonths != nil {
		fields["embargo_length"] = *p.EmbargoMonths
		nowEmbargoed := upload.IsPublished() && *p.EmbargoMonths > 0
		embargoFlipped = wasEmbargoed != nowEmbargoed
	}

	if len(fields) > 0 {
		if err := c.Store.UpdateUploadFields(ctx, uploadID, fields); err != nil {
			return err
		}
	}

	if err := c.Search.Refresh(ctx); err != nil {
		return apperr.Wrap(apperr.KindSearchIndexFailure, "search refresh after metadata update", err)
	}

	if embargoFlipped && upload.IsPublished() {
		if err := requireNotProcessing(upload); err != nil {
			return err
		}
		_, err := c.Scheduler.EnqueueReprocess(uploadID)
		return err
	}
	return nil
}
