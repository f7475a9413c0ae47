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

const searchPageSize = 60

// EventBroadcaster pushes an event onto a named channel. The websocket hub
// implements it; services treat emission as fire-and-forget.
type EventBroadcaster interface {
  Emit(channel string, event string, data map[string]interface{})
}

// ChatVisibility is the result of the access predicate applied at every
// chat-scoped boundary. Hidden surfaces as a not-found error so strangers
// cannot distinguish "missing" from "exists but not yours".
type ChatVisibility int

const (
  ChatHidden ChatVisibility = iota
  ChatReadOnly
  ChatVisible
)

type ChatService interface {
  Create(ctx context.Context, content datatypes.JSONMap) (*types.Chat, error)
  Import(ctx context.Context, content datatypes.JSONMap, meta types.ChatMeta, pinned bool, folderID *uuid.UUID) (*types.Chat, error)
  Get(ctx context.Context, chatID uuid.UUID) (*types.Chat, error)
  Update(ctx context.Context, chatID uuid.UUID, content datatypes.JSONMap) (*types.Chat, error)
  Delete(ctx context.Context, chatID uuid.UUID) (bool, error)
  DeleteAll(ctx context.Context) (bool, error)

  List(ctx context.Context, filter repos.ChatListFilter) ([]types.ChatTitleID, error)
  ListArchived(ctx context.Context, filter repos.ChatListFilter) ([]*types.Chat, error)
  ListPinned(ctx context.Context) ([]*types.Chat, error)
  ListByFolder(ctx context.Context, folderID uuid.UUID) ([]*types.Chat, error)
  Search(ctx context.Context, text string, page int) ([]types.ChatTitleID, error)

  PinnedStatus(ctx context.Context, chatID uuid.UUID) (bool, error)
  TogglePin(ctx context.Context, chatID uuid.UUID) (*types.Chat, error)
  ToggleArchive(ctx context.Context, chatID uuid.UUID) (*types.Chat, error)
  ArchiveAll(ctx context.Context) (bool, error)

  Share(ctx context.Context, chatID uuid.UUID) (*types.SharedChat, error)
  Unshare(ctx context.Context, chatID uuid.UUID) (bool, error)
  GetShared(ctx context.Context, shareID uuid.UUID) (*types.Chat, error)

  Clone(ctx context.Context, chatID uuid.UUID, titleOverride string) (*types.Chat, error)
  CloneShared(ctx context.Context, shareID uuid.UUID) (*types.Chat, error)

  MoveToFolder(ctx context.Context, chatID uuid.UUID, folderID *uuid.UUID) (*types.Chat, error)

  UpdateMessage(ctx context.Context, chatID uuid.UUID, messageID string, content string) (*types.Chat, error)
  SendMessageEvent(ctx context.Context, chatID uuid.UUID, messageID string, eventType string, data map[string]interface{}) (bool, error)

  // Admin surface.
  ListAllForExport(ctx context.Context) ([]*types.Chat, error)
  ListByUserID(ctx context.Context, targetUserID uuid.UUID, filter repos.ChatListFilter) ([]types.ChatTitleID, error)
}

type chatService struct {
  log             *logger.Logger
  chatRepo        repos.ChatRepo
  sharedChatRepo  repos.SharedChatRepo
  folderRepo      repos.FolderRepo
  tagService      TagService
  hub             EventBroadcaster
  adminChatAccess bool
  adminExport     bool
}

func NewChatService(
  log *logger.Logger,
  chatRepo repos.ChatRepo,
  sharedChatRepo repos.SharedChatRepo,
  folderRepo repos.FolderRepo,
  tagService TagService,
  hub EventBroadcaster,
  adminChatAccess bool,
  adminExport bool,
) ChatService {
  return &chatService{
    log:             log.With("service", "ChatService"),
    chatRepo:        chatRepo,
    sharedChatRepo:  sharedChatRepo,
    folderRepo:      folderRepo,
    tagService:      tagService,
    hub:             hub,
    adminChatAccess: adminChatAccess,
    adminExport:     adminExport,
  }
}

// Visibility decides how much of a chat the caller may see. Owners get full
// access. Admins with chat access enabled get read-only access to any chat.
// Everyone else sees nothing.
func (cs *chatService) visibility(rd *requestdata.RequestData, chat *types.Chat) ChatVisibility {
  if chat.UserID == rd.UserID {
    return ChatVisible
  }
  if rd.IsAdmin() && cs.adminChatAccess {
    return ChatReadOnly
  }
  return ChatHidden
}

func (cs *chatService) Create(ctx context.Context, content datatypes.JSONMap) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  if content == nil {
    content = datatypes.JSONMap{}
  }
  title, _ := content["title"].(string)
  if title == "" {
    title = "New Chat"
  }
  chat := &types.Chat{
    UserID:  rd.UserID,
    Title:   title,
    Content: content,
    Meta:    datatypes.NewJSONType(types.ChatMeta{}),
  }
  created, err := cs.chatRepo.Create(ctx, nil, chat)
  if err != nil {
    return nil, apperrors.Internal("failed to create chat", err)
  }
  return created, nil
}

// Import accepts an externally produced chat, meta included. Tag ids in the
// imported meta are normalized and the tag index is back-filled so imported
// tags behave like ones added through the tag API.
func (cs *chatService) Import(ctx context.Context, content datatypes.JSONMap, meta types.ChatMeta, pinned bool, folderID *uuid.UUID) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  if content == nil {
    content = datatypes.JSONMap{}
  }
  title, _ := content["title"].(string)
  if title == "" {
    title = "New Chat"
  }

  normalized := make([]string, 0, len(meta.Tags))
  for _, raw := range meta.Tags {
    tagID := NormalizeTagName(raw)
    if tagID == "" || tagID == ReservedTagNone {
      continue
    }
    normalized = append(normalized, tagID)
  }
  meta.Tags = normalized

  chat := &types.Chat{
    UserID:   rd.UserID,
    Title:    title,
    Content:  content,
    Meta:     datatypes.NewJSONType(meta),
    Pinned:   pinned,
    FolderID: folderID,
  }
  created, err := cs.chatRepo.Create(ctx, nil, chat)
  if err != nil {
    return nil, apperrors.Internal("failed to import chat", err)
  }

  if err := cs.tagService.BackfillFromMeta(ctx, rd.UserID, meta); err != nil {
    cs.log.Warn("Tag index back-fill failed after import", "error", err, "chatID", created.ID)
  }
  return created, nil
}

func (cs *chatService) Get(ctx context.Context, chatID uuid.UUID) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.chatRepo.GetByID(ctx, nil, chatID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apperrors.NotFound("chat")
    }
    return nil, apperrors.Internal("failed to load chat", err)
  }
  if cs.visibility(rd, chat) == ChatHidden {
    return nil, apperrors.NotFound("chat")
  }
  return chat, nil
}

// Update shallow-merges the incoming content over the stored blob, the way
// a partial client save expects: top-level keys present in the request win,
// absent keys survive.
func (cs *chatService) Update(ctx context.Context, chatID uuid.UUID, content datatypes.JSONMap) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }

  merged := chat.Content
  if merged == nil {
    merged = datatypes.JSONMap{}
  }
  for k, v := range content {
    merged[k] = v
  }
  chat.Content = merged
  if title, ok := merged["title"].(string); ok && title != "" {
    chat.Title = title
  }

  updated, err := cs.chatRepo.Update(ctx, nil, chat)
  if err != nil {
    return nil, apperrors.Internal("failed to update chat", err)
  }
  return updated, nil
}

// Delete reconciles the tag index before removing the row: tags whose only
// reference is the doomed chat lose their index entry. Owners delete their
// own chats; admins with chat access may delete any chat.
func (cs *chatService) Delete(ctx context.Context, chatID uuid.UUID) (bool, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return false, fmt.Errorf("request data not set in context")
  }

  if rd.IsAdmin() && cs.adminChatAccess {
    chat, err := cs.chatRepo.GetByID(ctx, nil, chatID)
    if err != nil {
      if errors.Is(err, gorm.ErrRecordNotFound) {
        return false, apperrors.NotFound("chat")
      }
      return false, apperrors.Internal("failed to load chat", err)
    }
    if err := cs.tagService.ReconcileBeforeDelete(ctx, chat.UserID, chat); err != nil {
      cs.log.Warn("Tag reconciliation failed before delete", "error", err, "chatID", chatID)
    }
    if err := cs.chatRepo.SoftDeleteByID(ctx, nil, chatID); err != nil {
      return false, apperrors.Internal("failed to delete chat", err)
    }
    return true, nil
  }

  chat, err := cs.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return false, err
  }
  if err := cs.tagService.ReconcileBeforeDelete(ctx, rd.UserID, chat); err != nil {
    cs.log.Warn("Tag reconciliation failed before delete", "error", err, "chatID", chatID)
  }
  if err := cs.chatRepo.SoftDeleteByIDAndUser(ctx, nil, chatID, rd.UserID); err != nil {
    return false, apperrors.Internal("failed to delete chat", err)
  }
  return true, nil
}

// DeleteAll removes every chat the caller owns, then sweeps the tag index:
// with all chats gone, every remaining tag row of the user is unreferenced.
func (cs *chatService) DeleteAll(ctx context.Context) (bool, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return false, fmt.Errorf("request data not set in context")
  }
  chats, err := cs.chatRepo.ListByUser(ctx, nil, rd.UserID, true, repos.ChatListFilter{})
  if err != nil {
    return false, apperrors.Internal("failed to list chats", err)
  }
  seen := map[string]bool{}
  var allTags []string
  for _, chat := range chats {
    for _, tagID := range chat.Meta.Data().Tags {
      if !seen[tagID] {
        seen[tagID] = true
        allTags = append(allTags, tagID)
      }
    }
  }
  if err := cs.chatRepo.SoftDeleteByUser(ctx, nil, rd.UserID); err != nil {
    return false, apperrors.Internal("failed to delete chats", err)
  }
  if err := cs.tagService.ReconcileRemoved(ctx, rd.UserID, allTags); err != nil {
    cs.log.Warn("Tag index sweep failed after delete-all", "error", err, "userID", rd.UserID)
  }
  return true, nil
}

func (cs *chatService) List(ctx context.Context, filter repos.ChatListFilter) ([]types.ChatTitleID, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chats, err := cs.chatRepo.ListByUser(ctx, nil, rd.UserID, false, filter)
  if err != nil {
    return nil, apperrors.Internal("failed to list chats", err)
  }
  return titleIDs(chats), nil
}

func (cs *chatService) ListArchived(ctx context.Context, filter repos.ChatListFilter) ([]*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chats, err := cs.chatRepo.ListArchivedByUser(ctx, nil, rd.UserID, filter)
  if err != nil {
    return nil, apperrors.Internal("failed to list archived chats", err)
  }
  return chats, nil
}

func (cs *chatService) ListPinned(ctx context.Context) ([]*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chats, err := cs.chatRepo.ListPinnedByUser(ctx, nil, rd.UserID)
  if err != nil {
    return nil, apperrors.Internal("failed to list pinned chats", err)
  }
  return chats, nil
}

// ListByFolder returns the chats of the folder and every folder nested
// under it.
func (cs *chatService) ListByFolder(ctx context.Context, folderID uuid.UUID) ([]*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  descendants, err := cs.folderRepo.ListDescendantIDs(ctx, nil, folderID, rd.UserID)
  if err != nil {
    return nil, apperrors.Internal("failed to walk folder tree", err)
  }
  folderIDs := append([]uuid.UUID{folderID}, descendants...)
  chats, err := cs.chatRepo.ListByFolderIDs(ctx, nil, rd.UserID, folderIDs)
  if err != nil {
    return nil, apperrors.Internal("failed to list chats by folder", err)
  }
  return chats, nil
}

// Search pages through the caller's non-archived chats. A single-word query
// of the form "tag:foo_bar" switches to the tag index; an empty first page
// there doubles as lazy cleanup of the stale tag row. "tag:none" matches
// chats that carry no tags, which is why "none" is reserved as a tag name.
func (cs *chatService) Search(ctx context.Context, text string, page int) ([]types.ChatTitleID, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  if page < 1 {
    page = 1
  }
  skip := (page - 1) * searchPageSize

  words := strings.Fields(text)
  if len(words) == 1 && strings.HasPrefix(words[0], "tag:") {
    tagID := NormalizeTagName(strings.TrimPrefix(words[0], "tag:"))
    if tagID == ReservedTagNone {
      chats, err := cs.chatRepo.ListUntaggedByUser(ctx, nil, rd.UserID, skip, searchPageSize)
      if err != nil {
        return nil, apperrors.Internal("failed to search untagged chats", err)
      }
      return titleIDs(chats), nil
    }
    chats, err := cs.chatRepo.ListByTag(ctx, nil, rd.UserID, tagID, skip, searchPageSize)
    if err != nil {
      return nil, apperrors.Internal("failed to search chats by tag", err)
    }
    if len(chats) == 0 && page == 1 {
      if err := cs.tagService.CleanupStaleTag(ctx, rd.UserID, tagID); err != nil {
        cs.log.Warn("Failed to clean up stale tag during search", "error", err, "tagID", tagID)
      }
    }
    return titleIDs(chats), nil
  }

  chats, err := cs.chatRepo.SearchByUser(ctx, nil, rd.UserID, strings.TrimSpace(text), skip, searchPageSize)
  if err != nil {
    return nil, apperrors.Internal("failed to search chats", err)
  }
  return titleIDs(chats), nil
}

func (cs *chatService) PinnedStatus(ctx context.Context, chatID uuid.UUID) (bool, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return false, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return false, err
  }
  return chat.Pinned, nil
}

func (cs *chatService) TogglePin(ctx context.Context, chatID uuid.UUID) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }
  chat.Pinned = !chat.Pinned
  updated, err := cs.chatRepo.Update(ctx, nil, chat)
  if err != nil {
    return nil, apperrors.Internal("failed to toggle pin", err)
  }
  return updated, nil
}

// ToggleArchive flips the archived flag, then reconciles the tag index.
// Archived chats still hold their tag references, so archiving only drops
// rows that ended up fully unreferenced, and unarchiving recreates rows
// that went missing while the chat was archived.
func (cs *chatService) ToggleArchive(ctx context.Context, chatID uuid.UUID) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }
  chat.Archived = !chat.Archived
  updated, err := cs.chatRepo.Update(ctx, nil, chat)
  if err != nil {
    return nil, apperrors.Internal("failed to toggle archive", err)
  }
  if err := cs.tagService.ReconcileArchiveToggle(ctx, rd.UserID, updated); err != nil {
    cs.log.Warn("Tag reconciliation failed after archive toggle", "error", err, "chatID", chatID)
  }
  return updated, nil
}

func (cs *chatService) ArchiveAll(ctx context.Context) (bool, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return false, fmt.Errorf("request data not set in context")
  }
  if err := cs.chatRepo.ArchiveAllByUser(ctx, nil, rd.UserID); err != nil {
    return false, apperrors.Internal("failed to archive chats", err)
  }
  return true, nil
}

// Share publishes a read-only snapshot of the chat. Sharing an already
// shared chat refreshes the snapshot in place, keeping the share id stable
// so circulated links stay valid.
func (cs *chatService) Share(ctx context.Context, chatID uuid.UUID) (*types.SharedChat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }

  content, err := chat.CloneContent()
  if err != nil {
    return nil, apperrors.Internal("failed to snapshot chat content", err)
  }

  if chat.ShareID != nil {
    snapshot, err := cs.sharedChatRepo.GetByChatID(ctx, nil, chat.ID)
    if err != nil {
      return nil, apperrors.Internal("failed to load shared chat", err)
    }
    if snapshot == nil {
      // Share id survived but its snapshot row did not. Recreate it
      // under the original id so the existing link keeps working.
      snapshot = &types.SharedChat{ID: *chat.ShareID, ChatID: chat.ID, UserID: rd.UserID}
    }
    snapshot.Title = chat.Title
    snapshot.Content = content
    if snapshot.CreatedAt.IsZero() {
      created, err := cs.sharedChatRepo.Create(ctx, nil, snapshot)
      if err != nil {
        return nil, apperrors.Internal("failed to recreate shared chat", err)
      }
      return created, nil
    }
    updated, err := cs.sharedChatRepo.Update(ctx, nil, snapshot)
    if err != nil {
      return nil, apperrors.Internal("failed to refresh shared chat", err)
    }
    return updated, nil
  }

  snapshot := &types.SharedChat{
    ChatID:  chat.ID,
    UserID:  rd.UserID,
    Title:   chat.Title,
    Content: content,
  }
  created, err := cs.sharedChatRepo.Create(ctx, nil, snapshot)
  if err != nil {
    return nil, apperrors.Internal("failed to create shared chat", err)
  }
  chat.ShareID = &created.ID
  if _, err := cs.chatRepo.Update(ctx, nil, chat); err != nil {
    return nil, apperrors.Internal("failed to record share id", err)
  }
  return created, nil
}

// Unshare reports false, nil for a chat that was not shared; only storage
// failures are errors.
func (cs *chatService) Unshare(ctx context.Context, chatID uuid.UUID) (bool, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return false, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return false, err
  }
  if chat.ShareID == nil {
    return false, nil
  }
  if err := cs.sharedChatRepo.DeleteByChatID(ctx, nil, chat.ID); err != nil {
    return false, apperrors.Internal("failed to delete shared chat", err)
  }
  chat.ShareID = nil
  if _, err := cs.chatRepo.Update(ctx, nil, chat); err != nil {
    return false, apperrors.Internal("failed to clear share id", err)
  }
  return true, nil
}

// GetShared resolves a share id for any authenticated, non-pending user.
// Admins with chat access bypass the share indirection and may look up any
// chat directly by its chat id.
func (cs *chatService) GetShared(ctx context.Context, shareID uuid.UUID) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  if rd.IsPending() {
    return nil, apperrors.NotFound("chat")
  }

  if rd.IsAdmin() && cs.adminChatAccess {
    chat, err := cs.chatRepo.GetByID(ctx, nil, shareID)
    if err != nil {
      if errors.Is(err, gorm.ErrRecordNotFound) {
        return nil, apperrors.NotFound("chat")
      }
      return nil, apperrors.Internal("failed to load chat", err)
    }
    return chat, nil
  }

  snapshot, err := cs.sharedChatRepo.GetByID(ctx, nil, shareID)
  if err != nil {
    return nil, apperrors.Internal("failed to load shared chat", err)
  }
  if snapshot == nil {
    return nil, apperrors.NotFound("chat")
  }
  return sharedView(snapshot), nil
}

// Clone forks a chat into a fresh one owned by the caller. The copy records
// its lineage in content: originalChatId points at the source and
// branchPointMessageId pins the message the fork happened at. Share state,
// folder placement, tags, pin and archive flags never carry over.
func (cs *chatService) Clone(ctx context.Context, chatID uuid.UUID, titleOverride string) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }
  return cs.cloneFrom(ctx, rd.UserID, chat, titleOverride)
}

// CloneShared forks a chat resolved through its share id, letting any
// non-pending user branch off a chat somebody else published. The fork
// copies the live chat, not the share snapshot, so it includes messages
// added after sharing. Admins with chat access may pass a chat id directly.
func (cs *chatService) CloneShared(ctx context.Context, shareID uuid.UUID) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  if rd.IsPending() {
    return nil, apperrors.NotFound("chat")
  }

  var source *types.Chat
  var err error
  if rd.IsAdmin() && cs.adminChatAccess {
    source, err = cs.chatRepo.GetByID(ctx, nil, shareID)
  } else {
    source, err = cs.chatRepo.GetByShareID(ctx, nil, shareID)
  }
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apperrors.NotFound("chat")
    }
    return nil, apperrors.Internal("failed to load shared chat", err)
  }
  return cs.cloneFrom(ctx, rd.UserID, source, "")
}

func (cs *chatService) cloneFrom(ctx context.Context, ownerID uuid.UUID, source *types.Chat, titleOverride string) (*types.Chat, error) {
  content, err := source.CloneContent()
  if err != nil {
    return nil, apperrors.Internal("failed to copy chat content", err)
  }

  title := titleOverride
  if title == "" {
    title = "Clone of " + source.Title
  }
  content["originalChatId"] = source.ID.String()
  content["branchPointMessageId"] = source.CurrentMessageID()
  content["title"] = title

  clone := &types.Chat{
    UserID:  ownerID,
    Title:   title,
    Content: content,
    Meta:    datatypes.NewJSONType(types.ChatMeta{}),
  }
  created, err := cs.chatRepo.Create(ctx, nil, clone)
  if err != nil {
    return nil, apperrors.Internal("failed to create cloned chat", err)
  }
  return created, nil
}

func (cs *chatService) MoveToFolder(ctx context.Context, chatID uuid.UUID, folderID *uuid.UUID) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }
  if folderID != nil {
    folder, err := cs.folderRepo.GetByIDAndUser(ctx, nil, *folderID, rd.UserID)
    if err != nil {
      return nil, apperrors.Internal("failed to load folder", err)
    }
    if folder == nil {
      return nil, apperrors.NotFound("folder")
    }
  }
  chat.FolderID = folderID
  updated, err := cs.chatRepo.Update(ctx, nil, chat)
  if err != nil {
    return nil, apperrors.Internal("failed to move chat", err)
  }
  return updated, nil
}

// UpdateMessage upserts a single message's content inside the chat history
// and notifies the owner's active sessions. Event delivery is best-effort.
func (cs *chatService) UpdateMessage(ctx context.Context, chatID uuid.UUID, messageID string, content string) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getWritableChat(ctx, rd, chatID)
  if err != nil {
    return nil, err
  }

  if chat.Content == nil {
    chat.Content = datatypes.JSONMap{}
  }
  history, ok := chat.Content["history"].(map[string]interface{})
  if !ok {
    history = map[string]interface{}{}
    chat.Content["history"] = history
  }
  messages, ok := history["messages"].(map[string]interface{})
  if !ok {
    messages = map[string]interface{}{}
    history["messages"] = messages
  }
  message, ok := messages[messageID].(map[string]interface{})
  if !ok {
    message = map[string]interface{}{"id": messageID}
  }
  message["content"] = content
  messages[messageID] = message

  updated, err := cs.chatRepo.Update(ctx, nil, chat)
  if err != nil {
    return nil, apperrors.Internal("failed to update message", err)
  }

  if cs.hub != nil {
    cs.hub.Emit("user:"+chat.UserID.String(), "chat:message", map[string]interface{}{
      "chat_id":    chat.ID.String(),
      "message_id": messageID,
      "content":    content,
    })
  }
  return updated, nil
}

// SendMessageEvent relays an arbitrary message-scoped event to the chat
// owner's sessions without touching stored content.
func (cs *chatService) SendMessageEvent(ctx context.Context, chatID uuid.UUID, messageID string, eventType string, data map[string]interface{}) (bool, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return false, fmt.Errorf("request data not set in context")
  }
  chat, err := cs.getWritableChat(ctx, rd, chatID)
  if err != nil {
    return false, err
  }
  if eventType == "" {
    return false, apperrors.InvalidArgument("event type is required")
  }
  if cs.hub != nil {
    payload := map[string]interface{}{
      "chat_id":    chat.ID.String(),
      "message_id": messageID,
    }
    for k, v := range data {
      payload[k] = v
    }
    cs.hub.Emit("user:"+chat.UserID.String(), eventType, payload)
  }
  return true, nil
}

// ListAllForExport dumps every chat in the system. Gated twice: the caller
// must be an admin and the export toggle must be on.
func (cs *chatService) ListAllForExport(ctx context.Context) ([]*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  if !rd.IsAdmin() || !cs.adminExport {
    return nil, apperrors.Unauthorized("chat export is disabled")
  }
  chats, err := cs.chatRepo.ListAll(ctx, nil)
  if err != nil {
    return nil, apperrors.Internal("failed to list chats", err)
  }
  return chats, nil
}

// ListByUserID lets an admin browse another user's chat list, titles only.
func (cs *chatService) ListByUserID(ctx context.Context, targetUserID uuid.UUID, filter repos.ChatListFilter) ([]types.ChatTitleID, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  if !rd.IsAdmin() || !cs.adminChatAccess {
    return nil, apperrors.Unauthorized("admin chat access is disabled")
  }
  chats, err := cs.chatRepo.ListByUser(ctx, nil, targetUserID, true, filter)
  if err != nil {
    return nil, apperrors.Internal("failed to list chats", err)
  }
  return titleIDs(chats), nil
}

// ----------------------------------------------------------------
// Internals
// ----------------------------------------------------------------

func (cs *chatService) getOwnedChat(ctx context.Context, chatID, userID uuid.UUID) (*types.Chat, error) {
  chat, err := cs.chatRepo.GetByIDAndUser(ctx, nil, chatID, userID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apperrors.NotFound("chat")
    }
    return nil, apperrors.Internal("failed to load chat", err)
  }
  return chat, nil
}

func (cs *chatService) getWritableChat(ctx context.Context, rd *requestdata.RequestData, chatID uuid.UUID) (*types.Chat, error) {
  chat, err := cs.chatRepo.GetByID(ctx, nil, chatID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apperrors.NotFound("chat")
    }
    return nil, apperrors.Internal("failed to load chat", err)
  }
  switch cs.visibility(rd, chat) {
  case ChatHidden:
    return nil, apperrors.NotFound("chat")
  case ChatReadOnly:
    if !rd.IsAdmin() {
      return nil, apperrors.Unauthorized("chat is read-only")
    }
  }
  return chat, nil
}

// sharedView projects a snapshot back into chat shape for read paths. The
// id it carries is the SOURCE chat id so clones made from a share record
// the true lineage.
func sharedView(snapshot *types.SharedChat) *types.Chat {
  shareID := snapshot.ID
  return &types.Chat{
    ID:        snapshot.ChatID,
    UserID:    snapshot.UserID,
    Title:     snapshot.Title,
    Content:   snapshot.Content,
    ShareID:   &shareID,
    CreatedAt: snapshot.CreatedAt,
    UpdatedAt: snapshot.UpdatedAt,
  }
}

func titleIDs(chats []*types.Chat) []types.ChatTitleID {
  out := make([]types.ChatTitleID, 0, len(chats))
  for _, chat := range chats {
    out = append(out, chat.TitleID())
  }
  return out
}
