package controller

import (
	"context"

	"github.com/BlackLotus/nomad/internal/apperr"
)

// Reprocess implements §4.7 "reprocess": only admins may trigger it on an
// already-published upload; the actual extract/parse_all/repack sequence
// runs inside the Scheduler (§4.5 "Reprocess of published upload").
func (c *Controller) Reprocess(ctx context.Context, actor Actor, uploadID string) error {
	upload, err := c.loadUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if err := requireNotProcessing(upload); err != nil {
		return err
	}
	if upload.IsPublished() && !actor.IsAdmin {
		return apperr.Unauthorizedf("only an admin may reprocess a published upload")
	}

	_, err = c.Scheduler.EnqueueReprocess(uploadID)
	return err
}
