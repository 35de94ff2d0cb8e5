package scheduler

import (
	"context"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/filestore"
)

// Reprocess implements §4.5 "Reprocess of published upload": extract
// public files back into staging before the normal parse_all + cleanup
// flow runs, so matching/parsing operates against staging the same way it
// does for never-published uploads. cleanup's repack branch (join.go)
// takes care of moving the freshly packed files back over the old ones
// once every entry reaches a terminal state.
func (s *Scheduler) Reprocess(ctx context.Context, uploadID string) error {
	upload, err := s.Store.GetUpload(ctx, uploadID)
	if err != nil {
		return err
	}

	if upload.IsPublished() {
		sf, err := filestore.NewStagingFiles(s.Layout, uploadID)
		if err != nil {
			return err
		}
		entries, err := s.Store.ListEntriesByUpload(ctx, uploadID)
		if err != nil {
			return err
		}
		entryIDs := make([]string, len(entries))
		for i, e := range entries {
			entryIDs[i] = e.EntryID
		}
		if err := sf.Extract(entryIDs); err != nil {
			return apperr.Wrap(apperr.KindPackFailure, "extracting published files before reprocess", err)
		}
	}

	return s.ParseAll(ctx, uploadID)
}
