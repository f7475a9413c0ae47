package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/repos"
  "github.com/studyhall-org/studyhall-backend/internal/requestdata"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type MeService interface {
  GetMe(ctx context.Context, tx *gorm.DB) (types.User, error)
  GetMyRole(ctx context.Context, tx *gorm.DB) (types.Role, error)
}

type meService struct {
  db        *gorm.DB
  log       *logger.Logger
  userRepo  repos.UserRepo
  roleRepo  repos.RoleRepo
}

func NewMeService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, roleRepo repos.RoleRepo) MeService {
  return &meService{
    db:       db,
    log:      log.With("service", "MeService"),
    userRepo: userRepo,
    roleRepo: roleRepo,
  }
}

func (ms *meService) GetMe(ctx context.Context, tx *gorm.DB) (types.User, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    ms.log.Warn("Request Data is not set in context.")
    return types.User{}, fmt.Errorf("request data is not set in context")
  }
  if rd.UserID == uuid.Nil {
    ms.log.Warn("User ID not set in Request Data.")
    return types.User{}, fmt.Errorf("user id not set in request data")
  }

  foundUsers, fErr := ms.userRepo.GetByIDs(ctx, tx, []uuid.UUID{rd.UserID})
  if fErr != nil {
    ms.log.Warn("Error fetching current user", "error", fErr)
    return types.User{}, fmt.Errorf("error fetching user: %w", fErr)
  }
  if len(foundUsers) == 0 {
    return types.User{}, fmt.Errorf("user does not exist")
  }
  return *foundUsers[0], nil
}

func (ms *meService) GetMyRole(ctx context.Context, tx *gorm.DB) (types.Role, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return types.Role{}, fmt.Errorf("request data not set in context")
  }
  if rd.RoleID == uuid.Nil {
    return types.Role{}, fmt.Errorf("no role id in request data")
  }

  foundRoles, rErr := ms.roleRepo.GetByIDs(ctx, tx, []uuid.UUID{rd.RoleID})
  if rErr != nil {
    return types.Role{}, rErr
  }
  if len(foundRoles) == 0 {
    return types.Role{}, fmt.Errorf("role not found with that id")
  }
  return *foundRoles[0], nil
}
