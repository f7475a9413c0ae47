package repos

import (
  "context"
  "encoding/json"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

// ChatListFilter carries the optional list/search modifiers. Zero values
// mean "no filtering": empty Query matches everything, Limit <= 0 disables
// the limit.
type ChatListFilter struct {
  Query       string
  OrderBy     string
  Direction   string
  Skip        int
  Limit       int
}

type ChatRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error)

  // READ
  GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error)
  GetByIDAndUser(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID) (*types.Chat, error)
  GetByShareID(ctx context.Context, tx *gorm.DB, shareID uuid.UUID) (*types.Chat, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, includeArchived bool, filter ChatListFilter) ([]*types.Chat, error)
  ListPinnedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error)
  ListArchivedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, filter ChatListFilter) ([]*types.Chat, error)
  ListByFolderIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, folderIDs []uuid.UUID) ([]*types.Chat, error)
  ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Chat, error)
  SearchByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, text string, skip, limit int) ([]*types.Chat, error)

  // TAG INDEX SUPPORT
  ListByTag(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tagID string, skip, limit int) ([]*types.Chat, error)
  ListUntaggedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skip, limit int) ([]*types.Chat, error)
  CountByTag(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tagID string) (int64, error)

  // UPDATE
  Update(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error)
  ArchiveAllByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error

  // SOFT DELETE
  SoftDeleteByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error
  SoftDeleteByIDAndUser(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID) error
  SoftDeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type chatRepo struct {
  db    *gorm.DB
  log   *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
  return &chatRepo{db: db, log: baseLog.With("repo", "ChatRepo")}
}

func (cr *chatRepo) Create(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  if chat.ID == uuid.Nil {
    chat.ID = uuid.New()
  }
  if err := tx.WithContext(ctx).Create(chat).Error; err != nil {
    cr.log.Error("Failed to create chat", "error", err)
    return nil, err
  }
  return chat, nil
}

func (cr *chatRepo) GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  var chat types.Chat
  if err := tx.WithContext(ctx).
    Where("id = ?", chatID).
    First(&chat).Error; err != nil {
    return nil, err
  }
  return &chat, nil
}

func (cr *chatRepo) GetByIDAndUser(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID) (*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  var chat types.Chat
  if err := tx.WithContext(ctx).
    Where("id = ? AND user_id = ?", chatID, userID).
    First(&chat).Error; err != nil {
    return nil, err
  }
  return &chat, nil
}

func (cr *chatRepo) GetByShareID(ctx context.Context, tx *gorm.DB, shareID uuid.UUID) (*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  var chat types.Chat
  if err := tx.WithContext(ctx).
    Where("share_id = ?", shareID).
    First(&chat).Error; err != nil {
    return nil, err
  }
  return &chat, nil
}

func (cr *chatRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, includeArchived bool, filter ChatListFilter) ([]*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  q := tx.WithContext(ctx).Where("user_id = ?", userID)
  if !includeArchived {
    q = q.Where("archived = ?", false)
  }
  q = applyListFilter(q, filter)

  var chats []*types.Chat
  if err := q.Find(&chats).Error; err != nil {
    cr.log.Error("Failed to list chats by user", "error", err, "userID", userID)
    return nil, err
  }
  return chats, nil
}

func (cr *chatRepo) ListPinnedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  var chats []*types.Chat
  if err := tx.WithContext(ctx).
    Where("user_id = ? AND pinned = ? AND archived = ?", userID, true, false).
    Order("updated_at DESC").
    Find(&chats).Error; err != nil {
    return nil, err
  }
  return chats, nil
}

func (cr *chatRepo) ListArchivedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, filter ChatListFilter) ([]*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  q := tx.WithContext(ctx).Where("user_id = ? AND archived = ?", userID, true)
  q = applyListFilter(q, filter)

  var chats []*types.Chat
  if err := q.Find(&chats).Error; err != nil {
    return nil, err
  }
  return chats, nil
}

func (cr *chatRepo) ListByFolderIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, folderIDs []uuid.UUID) ([]*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  var chats []*types.Chat
  if len(folderIDs) == 0 {
    return chats, nil
  }
  if err := tx.WithContext(ctx).
    Where("user_id = ? AND folder_id IN ?", userID, folderIDs).
    Order("updated_at DESC").
    Find(&chats).Error; err != nil {
    return nil, err
  }
  return chats, nil
}

func (cr *chatRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  var chats []*types.Chat
  if err := tx.WithContext(ctx).
    Order("updated_at DESC").
    Find(&chats).Error; err != nil {
    return nil, err
  }
  return chats, nil
}

func (cr *chatRepo) SearchByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, text string, skip, limit int) ([]*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  pattern := "%" + text + "%"
  q := tx.WithContext(ctx).
    Where("user_id = ? AND archived = ?", userID, false).
    Where("title ILIKE ? OR content::text ILIKE ?", pattern, pattern).
    Order("updated_at DESC").
    Offset(skip)
  if limit > 0 {
    q = q.Limit(limit)
  }
  var chats []*types.Chat
  if err := q.Find(&chats).Error; err != nil {
    cr.log.Error("Failed to search chats", "error", err, "userID", userID)
    return nil, err
  }
  return chats, nil
}

func (cr *chatRepo) ListByTag(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tagID string, skip, limit int) ([]*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  member, err := tagMemberJSON(tagID)
  if err != nil {
    return nil, err
  }
  q := tx.WithContext(ctx).
    Where("user_id = ?", userID).
    Where("meta->'tags' @> ?", member).
    Order("updated_at DESC").
    Offset(skip)
  if limit > 0 {
    q = q.Limit(limit)
  }
  var chats []*types.Chat
  if err := q.Find(&chats).Error; err != nil {
    return nil, err
  }
  return chats, nil
}

// ListUntaggedByUser backs the "tag:none" search filter: chats whose meta
// carries no tags at all.
func (cr *chatRepo) ListUntaggedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skip, limit int) ([]*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  q := tx.WithContext(ctx).
    Where("user_id = ?", userID).
    Where("meta->'tags' IS NULL OR meta->'tags' = '[]'::jsonb").
    Order("updated_at DESC").
    Offset(skip)
  if limit > 0 {
    q = q.Limit(limit)
  }
  var chats []*types.Chat
  if err := q.Find(&chats).Error; err != nil {
    return nil, err
  }
  return chats, nil
}

// CountByTag recomputes the live reference count for a tag across the
// owner's chats. Archived chats count; soft-deleted ones do not. The count
// is never cached: imported chats can carry tag lists written outside the
// tag API, so a stored counter could not be trusted.
func (cr *chatRepo) CountByTag(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tagID string) (int64, error) {
  if tx == nil {
    tx = cr.db
  }
  member, err := tagMemberJSON(tagID)
  if err != nil {
    return 0, err
  }
  var count int64
  if err := tx.WithContext(ctx).
    Model(&types.Chat{}).
    Where("user_id = ?", userID).
    Where("meta->'tags' @> ?", member).
    Count(&count).Error; err != nil {
    cr.log.Error("Failed to count chats by tag", "error", err, "userID", userID, "tagID", tagID)
    return 0, err
  }
  return count, nil
}

func (cr *chatRepo) Update(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
  if tx == nil {
    tx = cr.db
  }
  chat.UpdatedAt = time.Now()
  if err := tx.WithContext(ctx).Save(chat).Error; err != nil {
    cr.log.Error("Failed to update chat", "error", err, "chatID", chat.ID)
    return nil, err
  }
  return chat, nil
}

func (cr *chatRepo) ArchiveAllByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
  if tx == nil {
    tx = cr.db
  }
  if err := tx.WithContext(ctx).
    Model(&types.Chat{}).
    Where("user_id = ?", userID).
    Updates(map[string]interface{}{"archived": true, "updated_at": time.Now()}).Error; err != nil {
    return err
  }
  return nil
}

func (cr *chatRepo) SoftDeleteByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error {
  if tx == nil {
    tx = cr.db
  }
  if err := tx.WithContext(ctx).
    Where("id = ?", chatID).
    Delete(&types.Chat{}).Error; err != nil {
    return err
  }
  return nil
}

func (cr *chatRepo) SoftDeleteByIDAndUser(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID) error {
  if tx == nil {
    tx = cr.db
  }
  if err := tx.WithContext(ctx).
    Where("id = ? AND user_id = ?", chatID, userID).
    Delete(&types.Chat{}).Error; err != nil {
    return err
  }
  return nil
}

func (cr *chatRepo) SoftDeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
  if tx == nil {
    tx = cr.db
  }
  if err := tx.WithContext(ctx).
    Where("user_id = ?", userID).
    Delete(&types.Chat{}).Error; err != nil {
    return err
  }
  return nil
}

// tagMemberJSON renders a single-element JSON array for a jsonb @>
// containment match against meta->'tags'.
func tagMemberJSON(tagID string) (string, error) {
  raw, err := json.Marshal([]string{tagID})
  if err != nil {
    return "", fmt.Errorf("failed to encode tag id %q: %w", tagID, err)
  }
  return string(raw), nil
}

func applyListFilter(q *gorm.DB, filter ChatListFilter) *gorm.DB {
  if filter.Query != "" {
    q = q.Where("title ILIKE ?", "%"+filter.Query+"%")
  }
  orderBy := filter.OrderBy
  switch orderBy {
  case "created_at", "updated_at", "title":
  default:
    orderBy = "updated_at"
  }
  direction := "DESC"
  if filter.Direction == "asc" {
    direction = "ASC"
  }
  q = q.Order(orderBy + " " + direction)
  if filter.Skip > 0 {
    q = q.Offset(filter.Skip)
  }
  if filter.Limit > 0 {
    q = q.Limit(filter.Limit)
  }
  return q
}
