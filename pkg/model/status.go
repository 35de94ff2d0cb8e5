// Package model defines the durable entities of the upload processing core:
// Upload, Entry, and the ProcessStatus state machine (spec §3).
package model

// ProcessStatus is the tagged enum driving the upload/entry state machine.
type ProcessStatus string

const (
	StatusReady             ProcessStatus = "READY"
	StatusPending            ProcessStatus = "PENDING"
	StatusRunning           ProcessStatus = "RUNNING"
	StatusWaitingForResult  ProcessStatus = "WAITING_FOR_RESULT"
	StatusSuccess           ProcessStatus = "SUCCESS"
	StatusFailure           ProcessStatus = "FAILURE"
	StatusDeleted           ProcessStatus = "DELETED"
)

// StatusesProcessing is the set of statuses considered "a process is
// in flight" for invariant I3 (at most one per upload).
var StatusesProcessing = map[ProcessStatus]bool{
	StatusPending:          true,
	StatusRunning:          true,
	StatusWaitingForResult: true,
}

// StatusesNotProcessing is the complement used by I6/terminal-state checks.
var StatusesNotProcessing = map[ProcessStatus]bool{
	StatusReady:   true,
	StatusSuccess: true,
	StatusFailure: true,
}

// IsProcessing reports whether s belongs to STATUSES_PROCESSING.
func (s ProcessStatus) IsProcessing() bool { return StatusesProcessing[s] }

// IsTerminal reports whether s belongs to STATUSES_NOT_PROCESSING.
func (s ProcessStatus) IsTerminal() bool { return StatusesNotProcessing[s] }

// AccessClass partitions raw/archive storage into public vs restricted
// (§6.4, access class in the GLOSSARY).
type AccessClass string

const (
	AccessPublic     AccessClass = "public"
	AccessRestricted AccessClass = "restricted"
)
