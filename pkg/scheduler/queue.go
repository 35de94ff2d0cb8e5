package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/BlackLotus/nomad/internal/logger"
)

// ErrNoJob is returned by Lease when no leasable job is currently queued.
var ErrNoJob = errors.New("scheduler: no leasable job")

const jobKeyPrefix = "job:"

func jobKey(id string) []byte { return []byte(jobKeyPrefix + id) }

// Queue is the durable job ledger (§4.5 "jobs are durable"), grounded on
// dittofs's BadgerDB metadata store (pkg/metadata/store/badger): one
// key-value namespace, JSON-encoded values, transactional read-modify-write
// for lease acquisition.
type Queue struct {
	db *badger.DB
}

// OpenQueue opens (creating if absent) the on-disk badger ledger at path.
func OpenQueue(path string) (*Queue, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening job queue at %s: %w", path, err)
	}
	return &Queue{db: db}, nil
}

func (q *Queue) Close() error { return q.db.Close() }

// Enqueue persists a new PENDING job and returns its id.
func (q *Queue) Enqueue(kind JobKind, op, uploadID, entryID string) (string, error) {
	job := Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Op:        op,
		UploadID:  uploadID,
		EntryID:   entryID,
		Status:    JobPending,
		CreatedAt: time.Now(),
	}
	if err := q.put(&job); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (q *Queue) put(job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(jobKey(job.ID), payload)
	})
}

// Lease finds one PENDING job (or a LEASED job whose lease is older than
// staleAfter, i.e. resurrected per §4.5), marks it LEASED by workerID, and
// returns it. Returns ErrNoJob if nothing is leasable right now.
func (q *Queue) Lease(workerID string, staleAfter time.Duration) (*Job, error) {
	var leased *Job

	err := q.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(jobKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var job Job
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				return fmt.Errorf("decoding job at key %s: %w", item.Key(), err)
			}

			leasable := job.Status == JobPending ||
				(job.Status == JobLeased && time.Since(job.LeasedAt) > staleAfter)
			if !leasable {
				continue
			}

			job.Status = JobLeased
			job.LeasedAt = time.Now()
			job.WorkerID = workerID
			job.Attempt++

			payload, err := json.Marshal(&job)
			if err != nil {
				return err
			}
			if err := txn.Set(jobKey(job.ID), payload); err != nil {
				return err
			}
			leased = &job
			return nil
		}
		return ErrNoJob
	})
	if err != nil {
		return nil, err
	}
	return leased, nil
}

// Complete removes a finished job from the ledger.
func (q *Queue) Complete(jobID string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(jobKey(jobID))
	})
}

// ResurrectStale walks the ledger and resets any LEASED job whose lease
// exceeds staleAfter back to PENDING. Workers normally rediscover these via
// Lease's own staleness check; ResurrectStale exists for an explicit
// supervisor sweep that logs what it found (§4.5).
func (q *Queue) ResurrectStale(staleAfter time.Duration) (int, error) {
	var count int
	err := q.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(jobKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var job Job
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				return err
			}
			if job.Status != JobLeased || time.Since(job.LeasedAt) <= staleAfter {
				continue
			}
			job.Status = JobPending
			job.LeasedAt = time.Time{}
			job.WorkerID = ""
			payload, err := json.Marshal(&job)
			if err != nil {
				return err
			}
			if err := txn.Set(jobKey(job.ID), payload); err != nil {
				return err
			}
			count++
			logger.Warn("resurrected stale job", "job_id", job.ID, "upload_id", job.UploadID)
		}
		return nil
	})
	return count, err
}
