package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type FolderRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, folder *types.Folder) (*types.Folder, error)

  // READ
  GetByIDAndUser(ctx context.Context, tx *gorm.DB, folderID, userID uuid.UUID) (*types.Folder, error)
  ListChildren(ctx context.Context, tx *gorm.DB, parentID, userID uuid.UUID) ([]*types.Folder, error)
  ListDescendantIDs(ctx context.Context, tx *gorm.DB, folderID, userID uuid.UUID) ([]uuid.UUID, error)
}

type folderRepo struct {
  db    *gorm.DB
  log   *logger.Logger
}

func NewFolderRepo(db *gorm.DB, baseLog *logger.Logger) FolderRepo {
  return &folderRepo{db: db, log: baseLog.With("repo", "FolderRepo")}
}

func (fr *folderRepo) Create(ctx context.Context, tx *gorm.DB, folder *types.Folder) (*types.Folder, error) {
  if tx == nil {
    tx = fr.db
  }
  if folder.ID == uuid.Nil {
    folder.ID = uuid.New()
  }
  if err := tx.WithContext(ctx).Create(folder).Error; err != nil {
    fr.log.Error("Failed to create folder", "error", err)
    return nil, err
  }
  return folder, nil
}

func (fr *folderRepo) GetByIDAndUser(ctx context.Context, tx *gorm.DB, folderID, userID uuid.UUID) (*types.Folder, error) {
  if tx == nil {
    tx = fr.db
  }
  var folder types.Folder
  err := tx.WithContext(ctx).
    Where("id = ? AND user_id = ?", folderID, userID).
    First(&folder).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &folder, nil
}

func (fr *folderRepo) ListChildren(ctx context.Context, tx *gorm.DB, parentID, userID uuid.UUID) ([]*types.Folder, error) {
  if tx == nil {
    tx = fr.db
  }
  var folders []*types.Folder
  if err := tx.WithContext(ctx).
    Where("parent_id = ? AND user_id = ?", parentID, userID).
    Find(&folders).Error; err != nil {
    return nil, err
  }
  return folders, nil
}

// ListDescendantIDs walks the folder tree breadth-first and returns every
// descendant id, excluding the root itself.
func (fr *folderRepo) ListDescendantIDs(ctx context.Context, tx *gorm.DB, folderID, userID uuid.UUID) ([]uuid.UUID, error) {
  var descendants []uuid.UUID
  frontier := []uuid.UUID{folderID}
  for len(frontier) > 0 {
    next := frontier[0]
    frontier = frontier[1:]
    children, err := fr.ListChildren(ctx, tx, next, userID)
    if err != nil {
      return nil, err
    }
    for _, child := range children {
      descendants = append(descendants, child.ID)
      frontier = append(frontier, child.ID)
    }
  }
  return descendants, nil
}
