package controller

import (
	"context"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/filestore"
)

// requireNotPublished enforces the "not published (unless admin)"
// pre-condition shared by add_files/delete_files.
func requireNotPublished(actor Actor, upload interface{ IsPublished() bool }, uploadID string) error {
	if upload.IsPublished() && !actor.IsAdmin {
		return apperr.Unauthorizedf("upload %s is already published", uploadID)
	}
	return nil
}

// AddFiles implements §4.7 "add_files": merge source into raw/{targetDir},
// then kick off a fresh parse_all.
func (c *Controller) AddFiles(ctx context.Context, actor Actor, uploadID, source, targetDir string) error {
	upload, err := c.loadUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if err := requireNotPublished(actor, upload, uploadID); err != nil {
		return err
	}
	if err := requireNotProcessing(upload); err != nil {
		return err
	}

	sf, err := filestore.NewStagingFiles(c.Layout, uploadID)
	if err != nil {
		return err
	}
	if err := sf.AddRawFiles(source, targetDir, true); err != nil {
		return err
	}

	_, err = c.Scheduler.EnqueueParseAll(uploadID)
	return err
}

// DeleteFiles implements §4.7 "delete_files": remove path from raw/, then
// kick off a fresh parse_all so the entry set reflects the deletion.
func (c *Controller) DeleteFiles(ctx context.Context, actor Actor, uploadID, path string) error {
	upload, err := c.loadUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if err := requireNotPublished(actor, upload, uploadID); err != nil {
		return err
	}
	if err := requireNotProcessing(upload); err != nil {
		return err
	}

	sf, err := filestore.NewStagingFiles(c.Layout, uploadID)
	if err != nil {
		return err
	}
	if err := sf.DeleteRawFiles(path); err != nil {
		return err
	}

	_, err = c.Scheduler.EnqueueParseAll(uploadID)
	return err
}
