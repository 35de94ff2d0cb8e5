package scheduler

import (
	"context"
	"fmt"

	"github.com/BlackLotus/nomad/internal/logger"
	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/matcher"
	"github.com/BlackLotus/nomad/pkg/statestore"
)

// Scheduler ties the durable Queue to the domain operations of §4.5,
// dispatching leased jobs to ParseAll/reprocess/entry-op handlers.
type Scheduler struct {
	Store    *statestore.Store
	Layout   *filestore.Layout
	Registry *matcher.Registry

	EntryProcessor EntryProcessor
	Search         SearchGateway
	Notifier       Notifier

	MatcherCfg    config.MatcherConfig
	ReprocessCfg  config.ReprocessConfig
	AuxfileCutoff int

	queue *Queue
}

// New wires a Scheduler against an already-open durable Queue.
func New(queue *Queue, store *statestore.Store, layout *filestore.Layout, registry *matcher.Registry,
	ep EntryProcessor, search SearchGateway, notifier Notifier,
	matcherCfg config.MatcherConfig, reprocessCfg config.ReprocessConfig, auxfileCutoff int) *Scheduler {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Scheduler{
		Store: store, Layout: layout, Registry: registry,
		EntryProcessor: ep, Search: search, Notifier: notifier,
		MatcherCfg: matcherCfg, ReprocessCfg: reprocessCfg, AuxfileCutoff: auxfileCutoff,
		queue: queue,
	}
}

// EnqueueParseAll enqueues a parse_all job for uploadID (§4.7 add_files /
// delete_files call this after the staging write completes).
func (s *Scheduler) EnqueueParseAll(uploadID string) (string, error) {
	return s.queue.Enqueue(JobKindUploadOp, string(OpParseAll), uploadID, "")
}

// EnqueueReprocess enqueues the reprocess special case (§4.5 "Reprocess of
// published upload").
func (s *Scheduler) EnqueueReprocess(uploadID string) (string, error) {
	return s.queue.Enqueue(JobKindUploadOp, string(OpReprocess), uploadID, "")
}

func (s *Scheduler) enqueueEntryOp(uploadID, entryID string) (string, error) {
	return s.queue.Enqueue(JobKindEntryOp, "process_entry", uploadID, entryID)
}

// RunPool starts a worker pool that leases and dispatches jobs until ctx is
// canceled, per the scheduling model of §5.
func (s *Scheduler) RunPool(ctx context.Context, cfg config.SchedulerConfig) error {
	pool := NewPool(s.queue, cfg.WorkerCount, cfg.PollInterval, cfg.ResurrectAge, s.handle)
	return pool.Run(ctx)
}

func (s *Scheduler) handle(ctx context.Context, job Job) error {
	switch job.Kind {
	case JobKindUploadOp:
		switch UploadOp(job.Op) {
		case OpParseAll:
			return s.ParseAll(ctx, job.UploadID)
		case OpReprocess:
			return s.Reprocess(ctx, job.UploadID)
		default:
			return fmt.Errorf("unknown upload op %q", job.Op)
		}
	case JobKindEntryOp:
		return s.runEntryOp(ctx, job.UploadID, job.EntryID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// runEntryOp implements §4.5 "Join": dispatch the entry pipeline, then
// always attempt check_join regardless of the entry's own outcome — a
// FAILURE entry still counts toward "processed" and must not wedge the
// upload.
func (s *Scheduler) runEntryOp(ctx context.Context, uploadID, entryID string) error {
	procErr := s.EntryProcessor.ProcessEntry(ctx, uploadID, entryID)
	if procErr != nil {
		logger.ErrorCtx(ctx, "entry processing failed", logger.UploadID(uploadID), logger.EntryID(entryID), logger.Err(procErr))
	}
	if err := s.CheckJoin(ctx, uploadID); err != nil {
		return err
	}
	return procErr
}
