// Package scheduler is C5: the durable job queue and worker pool driving
// parse_all/check_join (spec §4.5), grounded on dittofs's BadgerDB store
// idiom (pkg/metadata/store/badger) for the durable-queue persistence and
// on golang.org/x/sync/errgroup for the worker pool shape.
package scheduler

import "time"

// JobKind distinguishes the two job shapes of §4.5's model: upload-level
// operations (serialized per upload) and entry-level operations (which may
// run in parallel across workers within one upload).
type JobKind string

const (
	JobKindUploadOp JobKind = "upload_op"
	JobKindEntryOp  JobKind = "entry_op"
)

// UploadOp names an upload-level job (dispatched by (*Scheduler).handle).
type UploadOp string

const (
	OpParseAll  UploadOp = "parse_all"
	OpReprocess UploadOp = "reprocess"
)

// JobStatus is the durable lifecycle of one queued job.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobLeased  JobStatus = "LEASED"
	JobDone    JobStatus = "DONE"
)

// Job is one unit of durable work. A dead worker leaves a job LEASED;
// Queue.Lease hands it to another worker once its lease is older than
// the pool's staleAfter age.
type Job struct {
	ID       string    `json:"id"`
	Kind     JobKind   `json:"kind"`
	Op       string    `json:"op"`
	UploadID string    `json:"upload_id"`
	EntryID  string    `json:"entry_id,omitempty"`

	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	LeasedAt  time.Time `json:"leased_at,omitempty"`
	WorkerID  string    `json:"worker_id,omitempty"`
	Attempt   int       `json:"attempt"`
}
