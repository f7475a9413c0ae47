package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type UserTokenRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, userTokens []*types.UserToken) ([]*types.UserToken, error)

  // READ
  GetByRefreshToken(ctx context.Context, tx *gorm.DB, refreshToken string) (*types.UserToken, error)

  // DELETE
  DeleteByRefreshToken(ctx context.Context, tx *gorm.DB, refreshToken string) error
  DeleteByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) error
}

type userTokenRepo struct {
  db    *gorm.DB
  log   *logger.Logger
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
  return &userTokenRepo{db: db, log: baseLog.With("repo", "UserTokenRepo")}
}

func (utr *userTokenRepo) Create(ctx context.Context, tx *gorm.DB, userTokens []*types.UserToken) ([]*types.UserToken, error) {
  if tx == nil {
    tx = utr.db
  }
  if len(userTokens) == 0 {
    return []*types.UserToken{}, nil
  }
  if err := tx.WithContext(ctx).Create(&userTokens).Error; err != nil {
    utr.log.Error("Failed to create user tokens", "error", err)
    return nil, err
  }
  return userTokens, nil
}

func (utr *userTokenRepo) GetByRefreshToken(ctx context.Context, tx *gorm.DB, refreshToken string) (*types.UserToken, error) {
  if tx == nil {
    tx = utr.db
  }
  var token types.UserToken
  err := tx.WithContext(ctx).
    Where("refresh_token = ?", refreshToken).
    First(&token).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &token, nil
}

func (utr *userTokenRepo) DeleteByRefreshToken(ctx context.Context, tx *gorm.DB, refreshToken string) error {
  if tx == nil {
    tx = utr.db
  }
  if err := tx.WithContext(ctx).
    Where("refresh_token = ?", refreshToken).
    Delete(&types.UserToken{}).Error; err != nil {
    utr.log.Error("Failed to delete user token", "error", err)
    return err
  }
  return nil
}

func (utr *userTokenRepo) DeleteByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) error {
  if tx == nil {
    tx = utr.db
  }
  if len(userIDs) == 0 {
    return nil
  }
  if err := tx.WithContext(ctx).
    Where("user_id IN ?", userIDs).
    Delete(&types.UserToken{}).Error; err != nil {
    utr.log.Error("Failed to delete user tokens by userIDs", "error", err)
    return err
  }
  return nil
}
