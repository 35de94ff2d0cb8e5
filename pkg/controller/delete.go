package controller

import (
	"context"
	"os"

	"github.com/BlackLotus/nomad/internal/apperr"
)

// Delete implements §4.7 "delete": search delete, then partial archives
// delete, then files delete, then StateStore delete, in that order so a
// failure partway never leaves a searchable-but-gone upload.
func (c *Controller) Delete(ctx context.Context, actor Actor, uploadID string) error {
	upload, err := c.loadUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if err := requireNotProcessing(upload); err != nil {
		return err
	}
	if upload.IsPublished() && !actor.IsAdmin {
		return apperr.Unauthorizedf("only an admin may delete a published upload")
	}

	if err := c.Search.DeleteByUpload(ctx, uploadID); err != nil {
		return apperr.Wrap(apperr.KindSearchIndexFailure, "search delete during upload delete", err)
	}

	if err := os.RemoveAll(c.Layout.StagingUploadDir(uploadID)); err != nil {
		return err
	}
	if err := os.RemoveAll(c.Layout.PublicUploadDir(uploadID)); err != nil {
		return err
	}

	if err := c.Store.DeleteEntriesByUpload(ctx, uploadID); err != nil {
		return err
	}
	return c.Store.DeleteUpload(ctx, uploadID)
}
