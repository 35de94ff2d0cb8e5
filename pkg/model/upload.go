package model

import "time"

// Upload is the unit of user intent: one creator, a durable identifier,
// a state machine, and a file area (spec §3.1).
type Upload struct {
	UploadID string `gorm:"primaryKey;column:upload_id" json:"upload_id"`

	MongoUploadMetadata `gorm:"embedded"`

	Coauthors []string `gorm:"serializer:json" json:"coauthors,omitempty"`
	Reviewers []string `gorm:"serializer:json" json:"reviewers,omitempty"`

	UploadCreateTime time.Time  `gorm:"column:upload_create_time;index" json:"upload_create_time"`
	PublishTime      *time.Time `gorm:"column:publish_time;index" json:"publish_time,omitempty"`
	LastUpdate       time.Time  `gorm:"column:last_update" json:"last_update"`

	FromOasis        bool     `gorm:"column:from_oasis" json:"from_oasis"`
	OasisDeploymentID string  `gorm:"column:oasis_deployment_id" json:"oasis_deployment_id,omitempty"`
	PublishedTo      []string `gorm:"serializer:json;column:published_to" json:"published_to,omitempty"`
	PublishDirectly  bool     `gorm:"column:publish_directly" json:"publish_directly"`

	ProcessStatus     ProcessStatus `gorm:"column:process_status;index" json:"process_status"`
	CurrentProcess    string        `gorm:"column:current_process" json:"current_process,omitempty"`
	CurrentTaskID     string        `gorm:"column:current_task_id" json:"current_task_id,omitempty"`
	LastStatusMessage string        `gorm:"column:last_status_message" json:"last_status_message,omitempty"`

	Errors   []string `gorm:"serializer:json" json:"errors,omitempty"`
	Warnings []string `gorm:"serializer:json" json:"warnings,omitempty"`

	// Joined is the cleanup barrier flag (I6, GLOSSARY "join"). It is
	// flipped false->true exactly once per parse_all invocation by a CAS
	// update; see pkg/statestore.
	Joined bool `gorm:"column:joined" json:"joined"`

	MainAuthorID string `gorm:"column:main_author_id;index" json:"-"`
}

// TableName overrides gorm's pluralization so the schema reads "uploads".
func (Upload) TableName() string { return "uploads" }

// IsPublished reports whether the upload is published (I2).
func (u *Upload) IsPublished() bool { return u.PublishTime != nil }

// UnderEmbargo reports whether the upload is published and its embargo
// window has not yet elapsed (I2).
func (u *Upload) UnderEmbargo(now time.Time) bool {
	if !u.IsPublished() || u.EmbargoLength <= 0 {
		return false
	}
	expiry := u.PublishTime.AddDate(0, u.EmbargoLength, 0)
	return expiry.After(now)
}
