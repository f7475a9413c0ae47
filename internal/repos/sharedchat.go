package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type SharedChatRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, shared *types.SharedChat) (*types.SharedChat, error)

  // READ
  GetByID(ctx context.Context, tx *gorm.DB, shareID uuid.UUID) (*types.SharedChat, error)
  GetByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.SharedChat, error)

  // UPDATE
  Update(ctx context.Context, tx *gorm.DB, shared *types.SharedChat) (*types.SharedChat, error)

  // DELETE
  DeleteByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error
}

type sharedChatRepo struct {
  db    *gorm.DB
  log   *logger.Logger
}

func NewSharedChatRepo(db *gorm.DB, baseLog *logger.Logger) SharedChatRepo {
  return &sharedChatRepo{db: db, log: baseLog.With("repo", "SharedChatRepo")}
}

func (sr *sharedChatRepo) Create(ctx context.Context, tx *gorm.DB, shared *types.SharedChat) (*types.SharedChat, error) {
  if tx == nil {
    tx = sr.db
  }
  if shared.ID == uuid.Nil {
    shared.ID = uuid.New()
  }
  if err := tx.WithContext(ctx).Create(shared).Error; err != nil {
    sr.log.Error("Failed to create shared chat", "error", err, "chatID", shared.ChatID)
    return nil, err
  }
  return shared, nil
}

func (sr *sharedChatRepo) GetByID(ctx context.Context, tx *gorm.DB, shareID uuid.UUID) (*types.SharedChat, error) {
  if tx == nil {
    tx = sr.db
  }
  var shared types.SharedChat
  err := tx.WithContext(ctx).
    Where("id = ?", shareID).
    First(&shared).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &shared, nil
}

func (sr *sharedChatRepo) GetByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.SharedChat, error) {
  if tx == nil {
    tx = sr.db
  }
  var shared types.SharedChat
  err := tx.WithContext(ctx).
    Where("chat_id = ?", chatID).
    First(&shared).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &shared, nil
}

func (sr *sharedChatRepo) Update(ctx context.Context, tx *gorm.DB, shared *types.SharedChat) (*types.SharedChat, error) {
  if tx == nil {
    tx = sr.db
  }
  if err := tx.WithContext(ctx).Save(shared).Error; err != nil {
    sr.log.Error("Failed to update shared chat", "error", err, "shareID", shared.ID)
    return nil, err
  }
  return shared, nil
}

func (sr *sharedChatRepo) DeleteByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error {
  if tx == nil {
    tx = sr.db
  }
  if err := tx.WithContext(ctx).
    Where("chat_id = ?", chatID).
    Delete(&types.SharedChat{}).Error; err != nil {
    return err
  }
  return nil
}
