// Package filestore implements C1: the on-disk/object-store layout for
// upload raw files and packed archives (spec §4.1), including path safety,
// staging writes, the packing algorithm, and the embargo-aware read path.
package filestore

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/BlackLotus/nomad/pkg/model"
)

// Layout computes staging/public area paths for a given upload, honoring
// the optional prefix sharding (§4.1, §6.3 prefix_size).
type Layout struct {
	StagingRoot string
	PublicRoot  string
	TmpRoot     string

	// PrefixSize shards upload directories by the first N characters of
	// the upload id, e.g. staging_root/Ab/AbCdEf.../raw.
	PrefixSize int

	ArchiveVersionSuffix string
}

func (l *Layout) shard(uploadID string) string {
	if l.PrefixSize <= 0 || l.PrefixSize >= len(uploadID) {
		return uploadID
	}
	return filepath.Join(uploadID[:l.PrefixSize], uploadID)
}

// StagingUploadDir is {staging_root}/[{prefix}/]{upload_id}.
func (l *Layout) StagingUploadDir(uploadID string) string {
	return filepath.Join(l.StagingRoot, l.shard(uploadID))
}

// StagingRawDir is the raw/ tree of a staging upload.
func (l *Layout) StagingRawDir(uploadID string) string {
	return filepath.Join(l.StagingUploadDir(uploadID), "raw")
}

// StagingArchiveDir is the archive/ tree of a staging upload.
func (l *Layout) StagingArchiveDir(uploadID string) string {
	return filepath.Join(l.StagingUploadDir(uploadID), "archive")
}

// StagingEntryArchivePath is archive/{entry_id}.msg.
func (l *Layout) StagingEntryArchivePath(uploadID, entryID string) string {
	return filepath.Join(l.StagingArchiveDir(uploadID), entryID+".msg")
}

// FrozenSentinelPath is the .frozen marker written when packing begins.
func (l *Layout) FrozenSentinelPath(uploadID string) string {
	return filepath.Join(l.StagingUploadDir(uploadID), ".frozen")
}

// PublicUploadDir is {public_root}/[{prefix}/]{upload_id}.
func (l *Layout) PublicUploadDir(uploadID string) string {
	return filepath.Join(l.PublicRoot, l.shard(uploadID))
}

// PublicRawZipPath is raw-{access}.plain.zip.
func (l *Layout) PublicRawZipPath(uploadID string, access model.AccessClass) string {
	return filepath.Join(l.PublicUploadDir(uploadID), fmt.Sprintf("raw-%s.plain.zip", access))
}

// PublicArchivePath is archive-{access}[-{version_suffix}].msg.msg.
func (l *Layout) PublicArchivePath(uploadID string, access model.AccessClass) string {
	name := fmt.Sprintf("archive-%s", access)
	if l.ArchiveVersionSuffix != "" {
		name += "-" + l.ArchiveVersionSuffix
	}
	return filepath.Join(l.PublicUploadDir(uploadID), name+".msg.msg")
}

// repacked names the target file written during an in-progress repack
// (§4.1 "Repack"): files are written as `*-repacked*` first, then renamed
// atomically over the originals.
func repacked(p string) string {
	dir, base := filepath.Split(p)
	ext := path.Ext(base)
	stem := base[:len(base)-len(ext)]
	return filepath.Join(dir, stem+"-repacked"+ext)
}
