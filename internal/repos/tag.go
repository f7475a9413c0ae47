package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type TagRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, tag *types.Tag) (*types.Tag, error)

  // READ
  GetByIDAndUser(ctx context.Context, tx *gorm.DB, tagID string, userID uuid.UUID) (*types.Tag, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Tag, error)
  ListByIDsAndUser(ctx context.Context, tx *gorm.DB, tagIDs []string, userID uuid.UUID) ([]*types.Tag, error)

  // DELETE
  DeleteByIDAndUser(ctx context.Context, tx *gorm.DB, tagID string, userID uuid.UUID) error
}

type tagRepo struct {
  db    *gorm.DB
  log   *logger.Logger
}

func NewTagRepo(db *gorm.DB, baseLog *logger.Logger) TagRepo {
  return &tagRepo{db: db, log: baseLog.With("repo", "TagRepo")}
}

func (tr *tagRepo) Create(ctx context.Context, tx *gorm.DB, tag *types.Tag) (*types.Tag, error) {
  if tx == nil {
    tx = tr.db
  }
  if err := tx.WithContext(ctx).Create(tag).Error; err != nil {
    tr.log.Error("Failed to create tag", "error", err, "tagID", tag.ID)
    return nil, err
  }
  return tag, nil
}

// GetByIDAndUser returns (nil, nil) when the tag row does not exist so
// callers can distinguish "absent" from a real storage error.
func (tr *tagRepo) GetByIDAndUser(ctx context.Context, tx *gorm.DB, tagID string, userID uuid.UUID) (*types.Tag, error) {
  if tx == nil {
    tx = tr.db
  }
  var tag types.Tag
  err := tx.WithContext(ctx).
    Where("id = ? AND user_id = ?", tagID, userID).
    First(&tag).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &tag, nil
}

func (tr *tagRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Tag, error) {
  if tx == nil {
    tx = tr.db
  }
  var tags []*types.Tag
  if err := tx.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("name ASC").
    Find(&tags).Error; err != nil {
    return nil, err
  }
  return tags, nil
}

func (tr *tagRepo) ListByIDsAndUser(ctx context.Context, tx *gorm.DB, tagIDs []string, userID uuid.UUID) ([]*types.Tag, error) {
  if tx == nil {
    tx = tr.db
  }
  var tags []*types.Tag
  if len(tagIDs) == 0 {
    return tags, nil
  }
  if err := tx.WithContext(ctx).
    Where("id IN ? AND user_id = ?", tagIDs, userID).
    Order("name ASC").
    Find(&tags).Error; err != nil {
    return nil, err
  }
  return tags, nil
}

func (tr *tagRepo) DeleteByIDAndUser(ctx context.Context, tx *gorm.DB, tagID string, userID uuid.UUID) error {
  if tx == nil {
    tx = tr.db
  }
  if err := tx.WithContext(ctx).
    Where("id = ? AND user_id = ?", tagID, userID).
    Delete(&types.Tag{}).Error; err != nil {
    tr.log.Error("Failed to delete tag", "error", err, "tagID", tagID)
    return err
  }
  return nil
}
