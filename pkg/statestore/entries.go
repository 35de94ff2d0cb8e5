package statestore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/model"
)

// CreateEntry persists a new Entry in PENDING status (§4.5 parse_all step 5).
func (s *Store) CreateEntry(ctx context.Context, e *model.Entry) error {
	e.EntryCreateTime = time.Now()
	if e.ProcessStatus == "" {
		e.ProcessStatus = model.StatusPending
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueConstraintError(err) {
			return apperr.BadRequestf("entry %s already exists for upload %s", e.Mainfile, e.UploadID)
		}
		return err
	}
	return nil
}

// UpsertEntryParserName updates parser_name in place for an
// already-matched entry whose parser changed (§4.5 step 5, "parser
// changed in-place" case).
func (s *Store) UpsertEntryParserName(ctx context.Context, entryID, parserName string) error {
	return s.db.WithContext(ctx).Model(&model.Entry{}).
		Where("entry_id = ?", entryID).
		Update("parser_name", parserName).Error
}

// GetEntry fetches one Entry by id.
func (s *Store) GetEntry(ctx context.Context, entryID string) (*model.Entry, error) {
	var e model.Entry
	if err := s.db.WithContext(ctx).Where("entry_id = ?", entryID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("entry %s not found", entryID)
		}
		return nil, err
	}
	return &e, nil
}

// ListEntriesByUpload lists every entry belonging to uploadID.
func (s *Store) ListEntriesByUpload(ctx context.Context, uploadID string) ([]*model.Entry, error) {
	var entries []*model.Entry
	err := s.db.WithContext(ctx).Where("upload_id = ?", uploadID).
		Order("mainfile asc").Find(&entries).Error
	return entries, err
}

// CountEntriesByUpload returns total/processed counts used by check_join
// (§4.5 "Join"): processed = status in {SUCCESS, FAILURE}.
func (s *Store) CountEntriesByUpload(ctx context.Context, uploadID string) (total, processed int64, err error) {
	db := s.db.WithContext(ctx).Model(&model.Entry{}).Where("upload_id = ?", uploadID)
	if err = db.Count(&total).Error; err != nil {
		return
	}
	err = s.db.WithContext(ctx).Model(&model.Entry{}).
		Where("upload_id = ? AND process_status IN ?", uploadID,
			[]model.ProcessStatus{model.StatusSuccess, model.StatusFailure}).
		Count(&processed).Error
	return
}

// ListEntriesByUploadAndStatus lists entries in a given status, used by
// the Scheduler to find PENDING work to (re-)enqueue.
func (s *Store) ListEntriesByUploadAndStatus(ctx context.Context, uploadID string, status model.ProcessStatus) ([]*model.Entry, error) {
	var entries []*model.Entry
	err := s.db.WithContext(ctx).
		Where("upload_id = ? AND process_status = ?", uploadID, status).
		Find(&entries).Error
	return entries, err
}

// CASEntryProcessStatus performs the conditional status transition backing
// the EntryProcessor pipeline (§4.6 step 7), failing with
// process_already_running if another writer raced ahead.
func (s *Store) CASEntryProcessStatus(ctx context.Context, entryID string, from, to model.ProcessStatus) error {
	result := s.db.WithContext(ctx).Model(&model.Entry{}).
		Where("entry_id = ? AND process_status = ?", entryID, from).
		Updates(map[string]any{
			"process_status":       to,
			"last_processing_time": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.New(apperr.KindProcessAlreadyRunning,
			"entry process_status is not "+string(from))
	}
	return nil
}

// UpdateEntryFields persists an arbitrary partial update on non-status
// fields (errors, warnings, entry_hash, metadata overlay, ...).
func (s *Store) UpdateEntryFields(ctx context.Context, entryID string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&model.Entry{}).
		Where("entry_id = ?", entryID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFoundf("entry %s not found", entryID)
	}
	return nil
}

// DeleteEntry removes one Entry (§4.5 step 5, "unmatched existing entries
// ... scheduled for deletion").
func (s *Store) DeleteEntry(ctx context.Context, entryID string) error {
	return s.db.WithContext(ctx).Where("entry_id = ?", entryID).Delete(&model.Entry{}).Error
}

// DeleteEntriesByUpload removes every entry belonging to uploadID, used by
// UploadController.delete (§4.7).
func (s *Store) DeleteEntriesByUpload(ctx context.Context, uploadID string) error {
	return s.db.WithContext(ctx).Where("upload_id = ?", uploadID).Delete(&model.Entry{}).Error
}

// UpsertEntry creates the entry if absent, or updates parser_name if an
// entry with the same (upload_id, mainfile) already exists. The Scheduler's
// diff step (§4.5 step 5) does not use it; it calls CreateEntry and
// UpsertEntryParserName directly.
func (s *Store) UpsertEntry(ctx context.Context, e *model.Entry) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "upload_id"}, {Name: "mainfile"}},
		DoUpdates: clause.AssignmentColumns([]string{"parser_name"}),
	}).Create(e).Error
}
