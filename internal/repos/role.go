package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type RoleRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, roles []*types.Role) ([]*types.Role, error)

  // READ
  GetByIDs(ctx context.Context, tx *gorm.DB, roleIDs []uuid.UUID) ([]*types.Role, error)
  GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Role, error)

  // PERMISSIONS
  AssociatePermissionsByIDs(ctx context.Context, tx *gorm.DB, roleIDs, permissionIDs []uuid.UUID) error
}

type roleRepo struct {
  db    *gorm.DB
  log   *logger.Logger
}

func NewRoleRepo(db *gorm.DB, baseLog *logger.Logger) RoleRepo {
  return &roleRepo{db: db, log: baseLog.With("repo", "RoleRepo")}
}

func (rr *roleRepo) Create(ctx context.Context, tx *gorm.DB, roles []*types.Role) ([]*types.Role, error) {
  if tx == nil {
    tx = rr.db
  }
  if len(roles) == 0 {
    return []*types.Role{}, nil
  }
  if err := tx.WithContext(ctx).Create(&roles).Error; err != nil {
    rr.log.Error("Failed to create roles", "error", err)
    return nil, err
  }
  return roles, nil
}

func (rr *roleRepo) GetByIDs(ctx context.Context, tx *gorm.DB, roleIDs []uuid.UUID) ([]*types.Role, error) {
  if tx == nil {
    tx = rr.db
  }
  var results []*types.Role
  if len(roleIDs) == 0 {
    return results, nil
  }
  if err := tx.WithContext(ctx).
    Preload("Permissions").
    Where("id IN ?", roleIDs).
    Find(&results).Error; err != nil {
    rr.log.Error("Failed to fetch roles by IDs", "error", err)
    return nil, err
  }
  return results, nil
}

func (rr *roleRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Role, error) {
  if tx == nil {
    tx = rr.db
  }
  var role types.Role
  err := tx.WithContext(ctx).
    Preload("Permissions").
    Where("name = ?", name).
    First(&role).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &role, nil
}

func (rr *roleRepo) AssociatePermissionsByIDs(ctx context.Context, tx *gorm.DB, roleIDs, permissionIDs []uuid.UUID) error {
  if tx == nil {
    tx = rr.db
  }
  if len(roleIDs) == 0 || len(permissionIDs) == 0 {
    return nil
  }
  roles, err := rr.GetByIDs(ctx, tx, roleIDs)
  if err != nil {
    return err
  }
  var perms []*types.Permission
  if err := tx.WithContext(ctx).
    Where("id IN ?", permissionIDs).
    Find(&perms).Error; err != nil {
    return err
  }
  for _, role := range roles {
    if err := tx.WithContext(ctx).
      Model(role).
      Association("Permissions").
      Append(perms); err != nil {
      rr.log.Error("Failed to associate permissions", "error", err, "roleID", role.ID)
      return err
    }
  }
  return nil
}
