package statestore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/model"
)

// CreateUpload persists a new Upload (§4.7 create).
func (s *Store) CreateUpload(ctx context.Context, u *model.Upload) error {
	now := time.Now()
	u.UploadCreateTime = now
	u.LastUpdate = now
	if u.ProcessStatus == "" {
		u.ProcessStatus = model.StatusReady
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueConstraintError(err) {
			return apperr.BadRequestf("upload %s already exists", u.UploadID)
		}
		return err
	}
	return nil
}

// GetUpload fetches one Upload by id.
func (s *Store) GetUpload(ctx context.Context, uploadID string) (*model.Upload, error) {
	var u model.Upload
	if err := s.db.WithContext(ctx).Where("upload_id = ?", uploadID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("upload %s not found", uploadID)
		}
		return nil, err
	}
	return &u, nil
}

// CountUnpublishedUploadsByAuthor supports the `upload_limit` pre-condition
// on create (§4.7).
func (s *Store) CountUnpublishedUploadsByAuthor(ctx context.Context, mainAuthorID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Upload{}).
		Where("main_author_id = ? AND publish_time IS NULL", mainAuthorID).
		Count(&count).Error
	return count, err
}

// ListUploadsByAuthor lists every upload owned by mainAuthorID.
func (s *Store) ListUploadsByAuthor(ctx context.Context, mainAuthorID string) ([]*model.Upload, error) {
	var ups []*model.Upload
	err := s.db.WithContext(ctx).Where("main_author_id = ?", mainAuthorID).
		Order("upload_create_time desc").Find(&ups).Error
	return ups, err
}

// UpdateUploadFields persists an arbitrary partial update (metadata edits,
// publish_time, etc.) without touching process_status or joined, which go
// through the CAS helpers below to uphold I3/I6.
func (s *Store) UpdateUploadFields(ctx context.Context, uploadID string, fields map[string]any) error {
	fields["last_update"] = time.Now()
	result := s.db.WithContext(ctx).Model(&model.Upload{}).
		Where("upload_id = ?", uploadID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFoundf("upload %s not found", uploadID)
	}
	return nil
}

// CASUploadProcessStatus performs the conditional update backing §4.3
// "Process discipline": the write only succeeds if the row's current
// process_status still equals from. A losing CAS surfaces as
// process_already_running (I3).
func (s *Store) CASUploadProcessStatus(ctx context.Context, uploadID string, from, to model.ProcessStatus) error {
	result := s.db.WithContext(ctx).Model(&model.Upload{}).
		Where("upload_id = ? AND process_status = ?", uploadID, from).
		Updates(map[string]any{
			"process_status": to,
			"last_update":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.New(apperr.KindProcessAlreadyRunning,
			"upload process_status is not "+string(from))
	}
	return nil
}

// CASUploadJoin implements the join barrier (I6, §4.5 "Join"): flips
// joined false->true exactly once. Returns (won=true) for the caller that
// performed the flip; other callers observe won=false and must not run
// cleanup.
func (s *Store) CASUploadJoin(ctx context.Context, uploadID string) (won bool, err error) {
	result := s.db.WithContext(ctx).Model(&model.Upload{}).
		Where("upload_id = ? AND joined = ?", uploadID, false).
		Update("joined", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ResetUploadJoin clears the join barrier ahead of a new parse_all
// invocation (each parse_all gets its own join generation).
func (s *Store) ResetUploadJoin(ctx context.Context, uploadID string) error {
	return s.db.WithContext(ctx).Model(&model.Upload{}).
		Where("upload_id = ?", uploadID).Update("joined", false).Error
}

// DeleteUpload removes the Upload row. Entry rows must be deleted by the
// caller first (or via DeleteEntriesByUpload) — StateStore performs no
// implicit cascade, matching the "no pointer graph" design note (§9).
func (s *Store) DeleteUpload(ctx context.Context, uploadID string) error {
	result := s.db.WithContext(ctx).Where("upload_id = ?", uploadID).Delete(&model.Upload{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFoundf("upload %s not found", uploadID)
	}
	return nil
}
