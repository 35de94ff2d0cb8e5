package controller

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/bundle"
	"github.com/BlackLotus/nomad/pkg/model"
)

// ExportBundleParams mirrors bundle.ExportParams minus the Layout/Upload/
// Entries the controller fills in itself from the state store.
type ExportBundleParams struct {
	Options model.ExportOptions
	Source  model.BundleSource
}

// ExportBundle streams a bundle for uploadID to w. Export is restricted to
// the owner or an admin; restricted raw/archive content is only included
// when the caller clears that bar (§4.2 "must refuse exporting protected
// raw files without protected files included").
func (c *Controller) ExportBundle(ctx context.Context, actor Actor, uploadID string, p ExportBundleParams, w io.Writer) error {
	upload, err := c.loadUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if err := requireAdminOrOwner(actor, upload); err != nil {
		return err
	}

	entries, err := c.Store.ListEntriesByUpload(ctx, uploadID)
	if err != nil {
		return err
	}

	return bundle.ExportStream(w, &bundle.ExportParams{
		Layout:                  c.Layout,
		Upload:                  upload,
		Entries:                 entries,
		Options:                 p.Options,
		Source:                  p.Source,
		AuthorizedForRestricted: actor.IsAdmin || actor.owns(upload.MainAuthorID),
	})
}

// ImportBundleParams names the extracted bundle zip on local disk (the
// caller is responsible for receiving the upload into a temp file first)
// plus the external lookups bundle.Validate needs (§1 "out of scope:
// authentication and user directory" — the controller never talks to a
// user directory itself).
type ImportBundleParams struct {
	ZipPath          string
	UserExists       func(userID string) bool
	FindDatasetOwner func(datasetName string) string
}

// ImportBundle validates and materializes a bundle as a brand-new upload
// (§4.2 "Import"). On any validation failure nothing is created. On a
// post-validation failure during materialization, everything created so
// far is removed when delete_upload_on_fail is set; otherwise the Upload
// row, the entries and the files created so far are left in place.
func (c *Controller) ImportBundle(ctx context.Context, actor Actor, p ImportBundleParams) (*model.Upload, error) {
	info, err := bundle.ReadBundleInfoFromZip(p.ZipPath)
	if err != nil {
		return nil, err
	}

	if !c.BundleImport.AllowBundlesFromOasis && info.Upload.FromOasis {
		return nil, apperr.Unauthorizedf("bundles from an oasis deployment are not accepted by this deployment")
	}
	if info.Upload.FromOasis && !info.Upload.IsPublished() && !c.BundleImport.AllowUnpublishedBundlesFromOasis {
		return nil, apperr.Unauthorizedf("unpublished bundles from an oasis deployment are not accepted by this deployment")
	}

	if err := bundle.Validate(info, bundle.ImportValidation{
		RequiredMinVersion: c.BundleImport.RequiredNomadVersion,
		Now:                time.Now(),
		UserExists:         p.UserExists,
		FindDatasetOwner:   p.FindDatasetOwner,
	}); err != nil {
		return nil, err
	}

	upload := info.Upload
	upload.FromOasis = true
	upload.OasisDeploymentID = info.Source.DeploymentID
	upload.ProcessStatus = model.StatusSuccess
	if !c.BundleImport.KeepOriginalTimestamps {
		now := time.Now()
		upload.UploadCreateTime = now
		upload.LastUpdate = now
	}
	if !actor.IsAdmin {
		upload.MainAuthorID = actor.UserID
	}

	if err := c.Store.CreateUpload(ctx, &upload); err != nil {
		return nil, err
	}

	if err := bundle.ImportFilesFromZip(p.ZipPath, c.Layout, upload.UploadID); err != nil {
		c.rollbackImport(ctx, upload.UploadID)
		return nil, err
	}

	for i := range info.Entries {
		entry := info.Entries[i]
		if err := c.Store.CreateEntry(ctx, &entry); err != nil {
			c.rollbackImport(ctx, upload.UploadID)
			return nil, err
		}
	}

	if err := c.Search.Refresh(ctx); err != nil {
		c.rollbackImport(ctx, upload.UploadID)
		return nil, apperr.Wrap(apperr.KindSearchIndexFailure, "indexing imported upload", err)
	}

	return &upload, nil
}

// rollbackImport deletes everything ImportBundle may have created for a
// failed import, honoring delete_upload_on_fail (§6.3).
func (c *Controller) rollbackImport(ctx context.Context, uploadID string) {
	if !c.BundleImport.DeleteUploadOnFail {
		return
	}
	_ = c.Store.DeleteEntriesByUpload(ctx, uploadID)
	_ = c.Store.DeleteUpload(ctx, uploadID)
	_ = os.RemoveAll(c.Layout.StagingUploadDir(uploadID))
	_ = os.RemoveAll(c.Layout.PublicUploadDir(uploadID))
}
