package services

import (
  "context"
  "errors"
  "fmt"
  "strings"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/apperrors"
  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/repos"
  "github.com/studyhall-org/studyhall-backend/internal/requestdata"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

// ReservedTagNone is the sentinel tag id used by tag-scoped search to mean
// "untagged"; it can never name a real tag.
const ReservedTagNone = "none"

// NormalizeTagName maps a raw display name onto its canonical tag id:
// lowercase with spaces replaced by underscores. "Foo Bar" and "foo_bar"
// collapse to the same id.
func NormalizeTagName(raw string) string {
  return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", "_"))
}

// TagDisplayName rebuilds the display form from a tag id: each underscore
// segment capitalized and space-joined.
func TagDisplayName(tagID string) string {
  segments := strings.Split(tagID, "_")
  for i, seg := range segments {
    if seg == "" {
      continue
    }
    segments[i] = strings.ToUpper(seg[:1]) + seg[1:]
  }
  return strings.Join(segments, " ")
}

// TagService owns the derived tag index and keeps it consistent with the
// authoritative per-chat tag lists. Index repair after a successful chat
// write is best-effort: a failed repair is logged and left for the next
// read-time repair pass, never surfaced to the caller.
type TagService interface {
  ListMyTags(ctx context.Context) ([]*types.Tag, error)
  ListChatTags(ctx context.Context, chatID uuid.UUID) ([]*types.Tag, error)
  AddChatTag(ctx context.Context, chatID uuid.UUID, rawName string) ([]*types.Tag, error)
  RemoveChatTag(ctx context.Context, chatID uuid.UUID, rawName string) ([]*types.Tag, error)
  RemoveAllChatTags(ctx context.Context, chatID uuid.UUID) (bool, error)
  ChatsByTag(ctx context.Context, rawName string, skip, limit int) ([]types.ChatTitleID, error)

  // Reconciliation hooks for the chat lifecycle.
  EnsureTags(ctx context.Context, userID uuid.UUID, tagIDs []string) error
  ReconcileRemoved(ctx context.Context, userID uuid.UUID, tagIDs []string) error
  ReconcileBeforeDelete(ctx context.Context, userID uuid.UUID, chat *types.Chat) error
  ReconcileArchiveToggle(ctx context.Context, userID uuid.UUID, chat *types.Chat) error
  CleanupStaleTag(ctx context.Context, userID uuid.UUID, tagID string) error
  BackfillFromMeta(ctx context.Context, userID uuid.UUID, meta types.ChatMeta) error
}

type tagService struct {
  log         *logger.Logger
  chatRepo    repos.ChatRepo
  tagRepo     repos.TagRepo
}

func NewTagService(log *logger.Logger, chatRepo repos.ChatRepo, tagRepo repos.TagRepo) TagService {
  return &tagService{
    log:      log.With("service", "TagService"),
    chatRepo: chatRepo,
    tagRepo:  tagRepo,
  }
}

func (ts *tagService) ListMyTags(ctx context.Context) ([]*types.Tag, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  tags, err := ts.tagRepo.ListByUser(ctx, nil, rd.UserID)
  if err != nil {
    return nil, apperrors.Internal("failed to list tags", err)
  }
  return tags, nil
}

func (ts *tagService) ListChatTags(ctx context.Context, chatID uuid.UUID) ([]*types.Tag, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := ts.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }
  return ts.rowsFor(ctx, rd.UserID, chat.Meta.Data().Tags)
}

func (ts *tagService) AddChatTag(ctx context.Context, chatID uuid.UUID, rawName string) ([]*types.Tag, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := ts.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }

  tagID := NormalizeTagName(rawName)
  if tagID == ReservedTagNone {
    return nil, apperrors.InvalidArgument("tag name cannot be 'None'")
  }

  meta := chat.Meta.Data()
  if !meta.HasTag(tagID) {
    meta.AddTag(tagID)
    chat.Meta = datatypes.NewJSONType(meta)
    if _, err := ts.chatRepo.Update(ctx, nil, chat); err != nil {
      return nil, apperrors.Internal("failed to persist chat tags", err)
    }
  }

  // Existence check on the index runs even for an idempotent re-add: it
  // doubles as a repair pass for rows lost to earlier drift.
  if err := ts.ensureTag(ctx, rd.UserID, tagID, TagDisplayName(tagID)); err != nil {
    ts.log.Warn("Tag index repair failed after add; will self-heal on next pass",
      "error", err, "tagID", tagID, "chatID", chatID)
  }
  return ts.rowsFor(ctx, rd.UserID, meta.Tags)
}

func (ts *tagService) RemoveChatTag(ctx context.Context, chatID uuid.UUID, rawName string) ([]*types.Tag, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := ts.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }

  tagID := NormalizeTagName(rawName)
  meta := chat.Meta.Data()
  if meta.HasTag(tagID) {
    meta.RemoveTag(tagID)
    chat.Meta = datatypes.NewJSONType(meta)
    if _, err := ts.chatRepo.Update(ctx, nil, chat); err != nil {
      return nil, apperrors.Internal("failed to persist chat tags", err)
    }
  }

  if err := ts.deleteIfUnreferenced(ctx, rd.UserID, tagID); err != nil {
    ts.log.Warn("Tag index repair failed after remove; will self-heal on next pass",
      "error", err, "tagID", tagID, "chatID", chatID)
  }
  return ts.rowsFor(ctx, rd.UserID, meta.Tags)
}

func (ts *tagService) RemoveAllChatTags(ctx context.Context, chatID uuid.UUID) (bool, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return false, fmt.Errorf("request data not set in context")
  }
  chat, err := ts.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return false, err
  }

  meta := chat.Meta.Data()
  former := append([]string(nil), meta.Tags...)
  meta.Tags = nil
  chat.Meta = datatypes.NewJSONType(meta)
  if _, err := ts.chatRepo.Update(ctx, nil, chat); err != nil {
    return false, apperrors.Internal("failed to clear chat tags", err)
  }

  if err := ts.ReconcileRemoved(ctx, rd.UserID, former); err != nil {
    ts.log.Warn("Tag index repair failed after clearing tags", "error", err, "chatID", chatID)
  }
  return true, nil
}

func (ts *tagService) ChatsByTag(ctx context.Context, rawName string, skip, limit int) ([]types.ChatTitleID, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  tagID := NormalizeTagName(rawName)
  chats, err := ts.chatRepo.ListByTag(ctx, nil, rd.UserID, tagID, skip, limit)
  if err != nil {
    return nil, apperrors.Internal("failed to list chats by tag", err)
  }

  // A tag whose first page comes back empty references nothing anymore:
  // drop the stale index row.
  if len(chats) == 0 && skip == 0 {
    if err := ts.CleanupStaleTag(ctx, rd.UserID, tagID); err != nil {
      ts.log.Warn("Failed to clean up stale tag", "error", err, "tagID", tagID)
    }
  }

  results := make([]types.ChatTitleID, 0, len(chats))
  for _, chat := range chats {
    results = append(results, chat.TitleID())
  }
  return results, nil
}

// ----------------------------------------------------------------
// Reconciliation hooks
// ----------------------------------------------------------------

func (ts *tagService) EnsureTags(ctx context.Context, userID uuid.UUID, tagIDs []string) error {
  for _, tagID := range tagIDs {
    if tagID == ReservedTagNone || tagID == "" {
      continue
    }
    if err := ts.ensureTag(ctx, userID, tagID, TagDisplayName(tagID)); err != nil {
      return err
    }
  }
  return nil
}

// ReconcileRemoved re-runs the zero-reference check for each tag id
// independently and deletes rows nothing references anymore.
func (ts *tagService) ReconcileRemoved(ctx context.Context, userID uuid.UUID, tagIDs []string) error {
  var firstErr error
  for _, tagID := range tagIDs {
    if err := ts.deleteIfUnreferenced(ctx, userID, tagID); err != nil && firstErr == nil {
      firstErr = err
    }
  }
  return firstErr
}

// ReconcileBeforeDelete runs before a chat row is deleted: a tag whose
// only remaining reference is the doomed chat (count == 1) loses its row.
func (ts *tagService) ReconcileBeforeDelete(ctx context.Context, userID uuid.UUID, chat *types.Chat) error {
  var firstErr error
  for _, tagID := range chat.Meta.Data().Tags {
    count, err := ts.chatRepo.CountByTag(ctx, nil, userID, tagID)
    if err != nil {
      if firstErr == nil {
        firstErr = err
      }
      continue
    }
    if count == 1 {
      if err := ts.tagRepo.DeleteByIDAndUser(ctx, nil, tagID, userID); err != nil && firstErr == nil {
        firstErr = err
      }
    }
  }
  return firstErr
}

// ReconcileArchiveToggle runs after the archived flag flipped and was
// persisted. Archived chats still count as referencing their tags, so
// archiving only deletes rows that ended up fully unreferenced; unarchiving
// is a repair pass that recreates rows the index lost while the chat was
// out of sight.
func (ts *tagService) ReconcileArchiveToggle(ctx context.Context, userID uuid.UUID, chat *types.Chat) error {
  tags := chat.Meta.Data().Tags
  if chat.Archived {
    return ts.ReconcileRemoved(ctx, userID, tags)
  }
  return ts.EnsureTags(ctx, userID, tags)
}

func (ts *tagService) CleanupStaleTag(ctx context.Context, userID uuid.UUID, tagID string) error {
  existing, err := ts.tagRepo.GetByIDAndUser(ctx, nil, tagID, userID)
  if err != nil {
    return err
  }
  if existing == nil {
    return nil
  }
  ts.log.Debug("Deleting stale tag", "tagID", tagID, "userID", userID)
  return ts.tagRepo.DeleteByIDAndUser(ctx, nil, tagID, userID)
}

// BackfillFromMeta creates index rows for every tag an imported chat
// already carries in its meta blob.
func (ts *tagService) BackfillFromMeta(ctx context.Context, userID uuid.UUID, meta types.ChatMeta) error {
  return ts.EnsureTags(ctx, userID, meta.Tags)
}

// ----------------------------------------------------------------
// Internals
// ----------------------------------------------------------------

func (ts *tagService) getOwnedChat(ctx context.Context, chatID, userID uuid.UUID) (*types.Chat, error) {
  chat, err := ts.chatRepo.GetByIDAndUser(ctx, nil, chatID, userID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apperrors.NotFound("chat")
    }
    return nil, apperrors.Internal("failed to load chat", err)
  }
  return chat, nil
}

func (ts *tagService) ensureTag(ctx context.Context, userID uuid.UUID, tagID, displayName string) error {
  existing, err := ts.tagRepo.GetByIDAndUser(ctx, nil, tagID, userID)
  if err != nil {
    return err
  }
  if existing != nil {
    return nil
  }
  _, err = ts.tagRepo.Create(ctx, nil, &types.Tag{ID: tagID, UserID: userID, Name: displayName})
  return err
}

func (ts *tagService) deleteIfUnreferenced(ctx context.Context, userID uuid.UUID, tagID string) error {
  count, err := ts.chatRepo.CountByTag(ctx, nil, userID, tagID)
  if err != nil {
    return err
  }
  if count > 0 {
    return nil
  }
  return ts.tagRepo.DeleteByIDAndUser(ctx, nil, tagID, userID)
}

func (ts *tagService) rowsFor(ctx context.Context, userID uuid.UUID, tagIDs []string) ([]*types.Tag, error) {
  tags, err := ts.tagRepo.ListByIDsAndUser(ctx, nil, tagIDs, userID)
  if err != nil {
    return nil, apperrors.Internal("failed to list tags", err)
  }
  return tags, nil
}
