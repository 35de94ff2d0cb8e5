package model

import "time"

// The source shares fields between upload, entry, and system "dft"
// metadata through class inheritance (spec §9, "Deep inheritance in the
// source"). Go has no mix-in inheritance, so these are independent field
// sets composed by embedding into Upload/Entry rather than a pointer/class
// hierarchy (spec §9, "Cyclic-lifetime risk" / "materialize the
// relationship as a lookup through StateStore, not a pointer graph").

// MongoUploadMetadata is the editable subset of Upload fields, set through
// set_upload_metadata (§4.7). The scheduler does not read these keys from
// nomad.yaml/nomad.json.
type MongoUploadMetadata struct {
	UploadName     string     `json:"upload_name,omitempty" yaml:"upload_name,omitempty"`
	MainAuthor     string     `json:"main_author,omitempty" yaml:"main_author,omitempty"`
	Coauthors      []string   `json:"coauthors,omitempty" yaml:"coauthors,omitempty"`
	Reviewers      []string   `json:"reviewers,omitempty" yaml:"reviewers,omitempty"`
	EmbargoLength  int        `json:"embargo_length" yaml:"embargo_length"`
	License        string     `json:"license,omitempty" yaml:"license,omitempty"`
	UploadCreateTime *time.Time `json:"upload_create_time,omitempty" yaml:"-"`
}

// MongoEntryMetadata is the editable per-entry metadata. The scheduler does
// not read an `entries` map from nomad.yaml, so it is not set from there.
type MongoEntryMetadata struct {
	EntryCoauthors []string `json:"entry_coauthors,omitempty" yaml:"entry_coauthors,omitempty"`
	Datasets       []string `json:"datasets,omitempty" yaml:"datasets,omitempty"`
	References     []string `json:"references,omitempty" yaml:"references,omitempty"`
	Comment        string   `json:"comment,omitempty" yaml:"comment,omitempty"`
	ExternalID     string   `json:"external_id,omitempty" yaml:"external_id,omitempty"`
}

// MongoSystemMetadata is system-generated provenance attached at
// EntryProcessor.Initialize time (§4.6 step 1); never user editable.
type MongoSystemMetadata struct {
	NomadVersion string `json:"nomad_version,omitempty"`
	NomadCommit  string `json:"nomad_commit,omitempty"`
}
