package controller

import (
	"context"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
)

// CreateParams is the input to Create (§4.7 "create").
type CreateParams struct {
	UploadName      string
	PublishDirectly bool
}

// Create persists a new Upload and its empty staging area.
func (c *Controller) Create(ctx context.Context, actor Actor, p CreateParams) (*model.Upload, error) {
	if !actor.IsAdmin {
		count, err := c.Store.CountUnpublishedUploadsByAuthor(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if int(count) >= c.UploadLimit {
			return nil, apperr.BadRequestf("user %s has reached the unpublished upload limit (%d)", actor.UserID, c.UploadLimit)
		}
	}

	upload := &model.Upload{
		UploadID: model.NewUploadID(),
		MongoUploadMetadata: model.MongoUploadMetadata{
			UploadName: p.UploadName,
			MainAuthor: actor.UserID,
		},
		MainAuthorID:    actor.UserID,
		PublishDirectly: p.PublishDirectly,
	}

	if err := c.Store.CreateUpload(ctx, upload); err != nil {
		return nil, err
	}
	if _, err := filestore.NewStagingFiles(c.Layout, upload.UploadID); err != nil {
		return nil, err
	}
	return upload, nil
}
