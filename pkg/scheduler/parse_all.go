package scheduler

import (
	"context"
	"fmt"

	"github.com/BlackLotus/nomad/internal/logger"
	"github.com/BlackLotus/nomad/internal/telemetry"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/matcher"
	"github.com/BlackLotus/nomad/pkg/model"
	"go.opentelemetry.io/otel/attribute"
)

// candidateMatch is one (mainfile, parser_id) pair produced by the Matcher
// sweep of §4.5 step 3.
type candidateMatch struct {
	mainfile string
	parserID string
}

// ParseAll implements §4.5's parse_all: matcher sweep, entry-set diff
// against StateStore, and PENDING entry enqueue.
func (s *Scheduler) ParseAll(ctx context.Context, uploadID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.parse_all", attribute.String("upload_id", uploadID))
	defer func() { telemetry.EndOK(span, err) }()

	upload, err := s.Store.GetUpload(ctx, uploadID)
	if err != nil {
		return err
	}

	// Step 1: RUNNING, and reset this parse_all invocation's join barrier.
	if err := s.Store.CASUploadProcessStatus(ctx, uploadID, upload.ProcessStatus, model.StatusRunning); err != nil {
		return err
	}
	if err := s.Store.ResetUploadJoin(ctx, uploadID); err != nil {
		return err
	}

	sf, err := filestore.NewStagingFiles(s.Layout, uploadID)
	if err != nil {
		return err
	}

	matches, err := s.sweepMatches(sf)
	if err != nil {
		return err
	}

	if err := s.diffEntries(ctx, upload, matches); err != nil {
		return err
	}

	// Step 6: WAITING_FOR_RESULT.
	if err := s.Store.CASUploadProcessStatus(ctx, uploadID, model.StatusRunning, model.StatusWaitingForResult); err != nil {
		return err
	}

	// Step 7: enqueue EntryOp for every PENDING entry.
	pending, err := s.Store.ListEntriesByUploadAndStatus(ctx, uploadID, model.StatusPending)
	if err != nil {
		return err
	}
	for _, e := range pending {
		if _, err := s.enqueueEntryOp(uploadID, e.EntryID); err != nil {
			return fmt.Errorf("enqueueing entry op for %s: %w", e.EntryID, err)
		}
	}

	// No PENDING work (e.g. every mainfile was deleted): the upload must
	// still reach a terminal state, so drive check_join ourselves rather
	// than wait on an EntryOp completion that will never arrive.
	if len(pending) == 0 {
		return s.CheckJoin(ctx, uploadID)
	}
	return nil
}

// sweepMatches implements §4.5 steps 2-3: read the optional upload-local
// config, enumerate raw files (honoring skip_matching), and run Matcher
// against each.
func (s *Scheduler) sweepMatches(sf *filestore.StagingFiles) ([]candidateMatch, error) {
	rawRoot := s.Layout.StagingRawDir(sf.UploadID())
	cfg, err := readUploadConfig(rawRoot)
	if err != nil {
		return nil, err
	}

	opts := matcher.Options{
		ParserMatchingSize:   s.MatcherCfg.ParserMatchingSize,
		ForceRawFileDecoding: s.MatcherCfg.ForceRawFileDecoding,
		Strict:               true,
	}

	if cfg.SkipMatching {
		var out []candidateMatch
		for _, mf := range cfg.Mainfiles {
			out = append(out, candidateMatch{mainfile: mf, parserID: "configured"})
		}
		return out, nil
	}

	files, err := sf.RawDirectoryList("", true, true, "")
	if err != nil {
		return nil, err
	}

	var out []candidateMatch
	for _, f := range files {
		rc, err := sf.OpenRawFile(f.Path, filestore.ReadRange{Length: -1})
		if err != nil {
			return nil, err
		}
		result, matchErr := s.Registry.Match(f.Path, rc, opts)
		rc.Close()
		if matchErr != nil {
			return nil, matchErr
		}
		if result != nil {
			out = append(out, candidateMatch{mainfile: f.Path, parserID: result.ParserID})
		}
	}
	return out, nil
}

// diffEntries implements §4.5 step 5: reconcile the matcher sweep's
// candidate set against what StateStore currently has for this upload.
func (s *Scheduler) diffEntries(ctx context.Context, upload *model.Upload, matches []candidateMatch) error {
	matchByMainfile := make(map[string]string, len(matches))
	for _, m := range matches {
		matchByMainfile[m.mainfile] = m.parserID
	}

	existing, err := s.Store.ListEntriesByUpload(ctx, upload.UploadID)
	if err != nil {
		return err
	}
	existingByMainfile := make(map[string]*model.Entry, len(existing))
	for _, e := range existing {
		existingByMainfile[e.Mainfile] = e
	}

	for mainfile, parserID := range matchByMainfile {
		if e, ok := existingByMainfile[mainfile]; ok {
			if e.ParserName != parserID {
				if err := s.Store.UpsertEntryParserName(ctx, e.EntryID, parserID); err != nil {
					return err
				}
			}
			continue
		}
		entryID := model.DeriveEntryID(upload.UploadID, mainfile)
		e := &model.Entry{
			EntryID:       entryID,
			UploadID:      upload.UploadID,
			Mainfile:      mainfile,
			ParserName:    parserID,
			ProcessStatus: model.StatusPending,
		}
		if err := s.Store.CreateEntry(ctx, e); err != nil {
			return err
		}
	}

	for mainfile, e := range existingByMainfile {
		if _, stillMatches := matchByMainfile[mainfile]; stillMatches {
			continue
		}
		if upload.IsPublished() && !s.ReprocessCfg.DeleteUnmatchedPublishedEntries {
			logger.Info("keeping unmatched entry on published upload",
				logger.UploadID(upload.UploadID), logger.EntryID(e.EntryID), logger.Mainfile(mainfile))
			continue
		}
		if err := s.Store.DeleteEntry(ctx, e.EntryID); err != nil {
			return err
		}
	}
	return nil
}
