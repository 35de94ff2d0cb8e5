package model

import "time"

// BundleSource identifies the deployment an exported bundle came from
// (spec §4.2).
type BundleSource struct {
	Version      string `json:"version"`
	Commit       string `json:"commit"`
	Deployment   string `json:"deployment"`
	DeploymentID string `json:"deployment_id"`
}

// ExportOptions mirrors the include flags an export/import call honors.
type ExportOptions struct {
	IncludeRawFiles     bool `json:"include_raw_files"`
	IncludeArchiveFiles bool `json:"include_archive_files"`
	IncludeDatasets     bool `json:"include_datasets"`
}

// Dataset is a minimal reference to an external dataset grouping, carried
// through bundles for the reuse-by-name-and-owner check (§4.2(h)).
type Dataset struct {
	DatasetID   string    `json:"dataset_id"`
	DatasetName string    `json:"dataset_name"`
	UserID      string    `json:"user_id"`
	CreateTime  time.Time `json:"create_time"`
}

// BundleInfo is the root of bundle_info.json (§4.2, §6.1).
type BundleInfo struct {
	UploadID      string        `json:"upload_id"`
	Source        BundleSource  `json:"source"`
	ExportOptions ExportOptions `json:"export_options"`
	Upload        Upload        `json:"upload"`
	Entries       []Entry       `json:"entries"`
	Datasets      []Dataset     `json:"datasets,omitempty"`
}
