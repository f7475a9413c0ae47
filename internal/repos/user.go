package repos

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/requestdata"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type UserRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)

  // READ
  GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error)
  GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error)
  EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error)

  // SOFT DELETE
  SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) error

  // MISC
  GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error)
}

type userRepo struct {
  db    *gorm.DB
  log   *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
  return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
  if tx == nil {
    tx = ur.db
  }
  if len(users) == 0 {
    return []*types.User{}, nil
  }
  if err := tx.WithContext(ctx).Create(&users).Error; err != nil {
    ur.log.Error("Failed to create users", "error", err)
    return nil, err
  }
  return users, nil
}

func (ur *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
  if tx == nil {
    tx = ur.db
  }
  var results []*types.User
  if len(userIDs) == 0 {
    return results, nil
  }
  if err := tx.WithContext(ctx).
    Preload("Role").
    Where("id IN ?", userIDs).
    Find(&results).Error; err != nil {
    ur.log.Error("Failed to fetch users by IDs", "error", err)
    return nil, err
  }
  return results, nil
}

func (ur *userRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
  if tx == nil {
    tx = ur.db
  }
  var user types.User
  if err := tx.WithContext(ctx).
    Preload("Role").
    Where("email = ?", email).
    First(&user).Error; err != nil {
    return nil, err
  }
  return &user, nil
}

func (ur *userRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
  if tx == nil {
    tx = ur.db
  }
  var count int64
  if err := tx.WithContext(ctx).
    Model(&types.User{}).
    Where("email = ?", email).
    Count(&count).Error; err != nil {
    ur.log.Error("Failed to count users by email", "error", err)
    return false, err
  }
  return count > 0, nil
}

func (ur *userRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) error {
  if tx == nil {
    tx = ur.db
  }
  if len(userIDs) == 0 {
    return nil
  }
  if err := tx.WithContext(ctx).
    Where("id IN ?", userIDs).
    Delete(&types.User{}).Error; err != nil {
    ur.log.Error("Failed to soft delete users", "error", err)
    return err
  }
  return nil
}

func (ur *userRepo) GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error) {
  if tx == nil {
    tx = ur.db
  }
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    ur.log.Error("No request data in context, cannot get me!")
    return nil, fmt.Errorf("no request data found in context")
  }
  var user types.User
  if err := tx.WithContext(ctx).
    Preload("Role").
    Where("id = ?", rd.UserID).
    First(&user).Error; err != nil {
    ur.log.Error("Failed to fetch current user", "error", err, "userID", rd.UserID)
    return nil, err
  }
  return &user, nil
}
