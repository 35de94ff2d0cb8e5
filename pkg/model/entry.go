package model

import (
	"time"

	"gorm.io/gorm"
)

// Entry is one parsed computation, owned by exactly one Upload (spec §3.1,
// §9 "ownership, not a pointer graph": Entry holds only UploadID, no
// back-pointer object).
type Entry struct {
	EntryID  string `gorm:"primaryKey;column:entry_id" json:"entry_id"`
	UploadID string `gorm:"column:upload_id;index;uniqueIndex:idx_upload_mainfile,priority:1" json:"upload_id"`

	Mainfile   string `gorm:"column:mainfile;uniqueIndex:idx_upload_mainfile,priority:2" json:"mainfile"`
	ParserName string `gorm:"column:parser_name" json:"parser_name"`

	MongoEntryMetadata  `gorm:"embedded"`
	MongoSystemMetadata `gorm:"embedded"`

	EntryCreateTime     time.Time `gorm:"column:entry_create_time" json:"entry_create_time"`
	LastProcessingTime  time.Time `gorm:"column:last_processing_time" json:"last_processing_time"`
	EntryHash           string    `gorm:"column:entry_hash" json:"entry_hash"`

	ProcessStatus ProcessStatus `gorm:"column:process_status;index:idx_entry_upload_status,priority:2" json:"process_status"`

	Errors   []string `gorm:"serializer:json" json:"errors,omitempty"`
	Warnings []string `gorm:"serializer:json" json:"warnings,omitempty"`

	// SearchProjection is the pruned entry-level document written at
	// archive-write time (§4.6 step 4) for the search indexer to consume
	// without re-opening the full archive.
	SearchProjection []byte `gorm:"column:search_projection" json:"-"`

	// CalcID and TotalCalcs-style aliasing (spec §9 Open Question): the
	// canonical field is EntryID/ProcessStatus above; CalcID exists only
	// as a bundle/API JSON alias until external consumers migrate.
	CalcID string `gorm:"-" json:"calc_id,omitempty"`

	WithEmbargo bool `gorm:"-" json:"-"` // derived at pack time, not persisted (I4)
}

// TableName overrides gorm's pluralization so the schema reads "entries".
func (Entry) TableName() string { return "entries" }

// PopulateAliases copies EntryID into the calc_id alias.
func (e *Entry) PopulateAliases() {
	e.CalcID = e.EntryID
}

// AfterFind is a GORM hook that keeps the calc_id alias in sync on read.
func (e *Entry) AfterFind(*gorm.DB) error {
	e.PopulateAliases()
	return nil
}
