package scheduler

import (
	"context"

	"github.com/BlackLotus/nomad/pkg/model"
)

// EntryProcessor is C6, consumed here as an external collaborator so
// pkg/scheduler never depends on pkg/entryprocessor's internals — only the
// single pipeline entry point §4.5 step 7 hands work off to.
type EntryProcessor interface {
	ProcessEntry(ctx context.Context, uploadID, entryID string) error
}

// SearchGateway is C8, used only for the cleanup-time refresh/delete calls
// §4.5/§4.7 require from the Scheduler and UploadController.
type SearchGateway interface {
	DeleteByUpload(ctx context.Context, uploadID string) error
	Refresh(ctx context.Context) error
}

// Notifier sends the "processing finished" notification fired at cleanup
// (§4.5 "Join"). Its concrete implementation lives outside the core (spec
// §1 "out of scope: ... notification delivery"); a no-op satisfies it in
// tests and single-deployment setups.
type Notifier interface {
	NotifyUploadComplete(ctx context.Context, upload *model.Upload)
}

// NoopNotifier implements Notifier by doing nothing.
type NoopNotifier struct{}

func (NoopNotifier) NotifyUploadComplete(context.Context, *model.Upload) {}

// PostCleanupEnricher is an optional capability of EntryProcessor (checked
// via type assertion, never required): a concrete processor that also
// knows how to run the phonon post-step (§4.6, enriching an entry's
// archive with method information borrowed from a referenced entry, run
// once cleanup has settled where the archives for this upload now live)
// can implement it without pkg/scheduler importing pkg/entryprocessor.
type PostCleanupEnricher interface {
	EnrichAfterCleanup(ctx context.Context, uploadID string) error
}
