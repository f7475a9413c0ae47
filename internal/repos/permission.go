package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type PermissionRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, permissions []*types.Permission) ([]*types.Permission, error)

  // READ
  GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Permission, error)

  // UPDATE
  Update(ctx context.Context, tx *gorm.DB, permissions []*types.Permission) ([]*types.Permission, error)

  // FULL (HARD) DELETE
  FullDeleteByIDs(ctx context.Context, tx *gorm.DB, permIDs []uuid.UUID) error
}

type permissionRepo struct {
  db    *gorm.DB
  log   *logger.Logger
}

func NewPermissionRepo(db *gorm.DB, baseLog *logger.Logger) PermissionRepo {
  return &permissionRepo{db: db, log: baseLog.With("repo", "PermissionRepo")}
}

func (pr *permissionRepo) Create(ctx context.Context, tx *gorm.DB, permissions []*types.Permission) ([]*types.Permission, error) {
  if tx == nil {
    tx = pr.db
  }
  if len(permissions) == 0 {
    return []*types.Permission{}, nil
  }
  if err := tx.WithContext(ctx).Create(&permissions).Error; err != nil {
    pr.log.Error("Failed to create permissions", "error", err)
    return nil, err
  }
  return permissions, nil
}

func (pr *permissionRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Permission, error) {
  if tx == nil {
    tx = pr.db
  }
  var results []*types.Permission
  if err := tx.WithContext(ctx).Find(&results).Error; err != nil {
    pr.log.Error("Failed to fetch all permissions", "error", err)
    return nil, err
  }
  return results, nil
}

func (pr *permissionRepo) Update(ctx context.Context, tx *gorm.DB, permissions []*types.Permission) ([]*types.Permission, error) {
  if tx == nil {
    tx = pr.db
  }
  for _, perm := range permissions {
    if err := tx.WithContext(ctx).Save(perm).Error; err != nil {
      pr.log.Error("Failed to update permission", "error", err, "permissionID", perm.ID)
      return nil, err
    }
  }
  return permissions, nil
}

func (pr *permissionRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, permIDs []uuid.UUID) error {
  if tx == nil {
    tx = pr.db
  }
  if len(permIDs) == 0 {
    return nil
  }
  if err := tx.WithContext(ctx).
    Unscoped().
    Where("id IN ?", permIDs).
    Delete(&types.Permission{}).Error; err != nil {
    pr.log.Error("Failed to delete permissions", "error", err)
    return err
  }
  return nil
}
