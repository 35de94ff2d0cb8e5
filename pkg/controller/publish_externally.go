package controller

import (
	"context"
	"io"
	"slices"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/bundle"
	"github.com/BlackLotus/nomad/pkg/model"
)

// PublishExternallyParams names the destination deployment (§4.7
// "publish_externally").
type PublishExternallyParams struct {
	DeploymentID string
}

// PublishExternally exports the upload as a bundle and POSTs it to the
// named central deployment, recording the deployment in published_to on
// success.
func (c *Controller) PublishExternally(ctx context.Context, actor Actor, uploadID string, p PublishExternallyParams) error {
	upload, err := c.loadUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if !upload.IsPublished() {
		return apperr.BadRequestf("upload %s must be published locally before publishing externally", uploadID)
	}
	if p.DeploymentID == "" {
		return apperr.BadRequestf("no central deployment specified")
	}
	if c.Publisher == nil {
		return apperr.BadRequestf("no central deployment is configured for external publish")
	}
	if slices.Contains(upload.PublishedTo, p.DeploymentID) {
		return nil
	}

	entries, err := c.Store.ListEntriesByUpload(ctx, uploadID)
	if err != nil {
		return err
	}

	pr, pw := io.Pipe()
	exportErrCh := make(chan error, 1)
	go func() {
		err := bundle.ExportStream(pw, &bundle.ExportParams{
			Layout:  c.Layout,
			Upload:  upload,
			Entries: entries,
			Options: model.ExportOptions{IncludeRawFiles: true, IncludeArchiveFiles: true},
			Source:  c.Deployment,
			AuthorizedForRestricted: true,
		})
		pw.CloseWithError(err)
		exportErrCh <- err
	}()

	if err := c.Publisher.PublishBundle(ctx, p.DeploymentID, pr); err != nil {
		<-exportErrCh
		return apperr.Wrap(apperr.KindBadRequest, "publishing bundle to central deployment", err)
	}
	if err := <-exportErrCh; err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "exporting bundle for external publish", err)
	}

	publishedTo := append(append([]string{}, upload.PublishedTo...), p.DeploymentID)
	return c.Store.UpdateUploadFields(ctx, uploadID, map[string]any{"published_to": publishedTo})
}
