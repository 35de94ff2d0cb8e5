package controller

import (
	"context"
	"time"

	"github.com/BlackLotus/nomad/internal/apperr"
)

// LiftEmbargo implements §4.7 "lift_embargo": admin or owner, published and
// currently under embargo, sets embargo_length = 0 and repacks.
func (c *Controller) LiftEmbargo(ctx context.Context, actor Actor, uploadID string) error {
	upload, err := c.loadUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if err := requireAdminOrOwner(actor, upload); err != nil {
		return err
	}
	if !upload.IsPublished() {
		return apperr.BadRequestf("upload %s is not published", uploadID)
	}
	if !upload.UnderEmbargo(time.Now()) {
		return apperr.BadRequestf("upload %s is not under embargo", uploadID)
	}
	if err := requireNotProcessing(upload); err != nil {
		return err
	}

	if err := c.Store.UpdateUploadFields(ctx, uploadID, map[string]any{"embargo_length": 0}); err != nil {
		return err
	}

	_, err = c.Scheduler.EnqueueReprocess(uploadID)
	if err != nil {
		return err
	}

	return c.Search.Refresh(ctx)
}
