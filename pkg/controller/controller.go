// Package controller is C7: the public UploadController operations of
// spec §4.7, grounded on dittofs's pkg/controlplane/api handler layer for
// the shape of pre-condition checks feeding into state-store/file-store
// mutations.
package controller

import (
	"context"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
	"github.com/BlackLotus/nomad/pkg/scheduler"
	"github.com/BlackLotus/nomad/pkg/statestore"
)

// SchedulerGateway is the subset of pkg/scheduler the controller drives;
// kept as an interface so tests can substitute a fake without a durable
// queue.
type SchedulerGateway interface {
	EnqueueParseAll(uploadID string) (string, error)
	EnqueueReprocess(uploadID string) (string, error)
}

// Controller implements every operation of §4.7 against the StateStore,
// FileStore, Scheduler, and SearchGateway.
type Controller struct {
	Store     *statestore.Store
	Layout    *filestore.Layout
	Scheduler SchedulerGateway
	Search    scheduler.SearchGateway
	Publisher CentralPublisher

	UploadLimit   int
	AuxfileCutoff int
	BundleImport  config.BundleImportConfig
	Deployment    model.BundleSource
}

// New builds a Controller.
func New(store *statestore.Store, layout *filestore.Layout, sched SchedulerGateway, search scheduler.SearchGateway,
	publisher CentralPublisher, uploadLimit, auxfileCutoff int, bundleImport config.BundleImportConfig, deployment model.BundleSource) *Controller {
	return &Controller{
		Store: store, Layout: layout, Scheduler: sched, Search: search, Publisher: publisher,
		UploadLimit: uploadLimit, AuxfileCutoff: auxfileCutoff, BundleImport: bundleImport, Deployment: deployment,
	}
}

// loadUpload fetches the upload or returns a KindNotFound error.
func (c *Controller) loadUpload(ctx context.Context, uploadID string) (*model.Upload, error) {
	return c.Store.GetUpload(ctx, uploadID)
}

// requireNotProcessing enforces I3: no controller operation may start while
// another process is in flight for this upload.
func requireNotProcessing(upload *model.Upload) error {
	if upload.ProcessStatus.IsProcessing() {
		return apperr.New(apperr.KindProcessAlreadyRunning,
			"upload "+upload.UploadID+" already has a process in flight")
	}
	return nil
}

// requireAdminOrOwner enforces the common "admin or owner" authorization
// shape used by lift_embargo and export_bundle.
func requireAdminOrOwner(actor Actor, upload *model.Upload) error {
	if actor.IsAdmin || actor.owns(upload.MainAuthorID) {
		return nil
	}
	return apperr.Unauthorizedf("actor %s is not the owner or an admin for upload %s", actor.UserID, upload.UploadID)
}
