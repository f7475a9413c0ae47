package services

import (
  "context"
  "strings"
  "sync"
  "testing"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/repos"
  "github.com/studyhall-org/studyhall-backend/internal/requestdata"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("failed to build test logger: %v", err)
  }
  return log
}

func testContext(userID uuid.UUID, role string) context.Context {
  return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
    UserID: userID,
    RoleID: uuid.New(),
    Role:   role,
  })
}

func listFilter() repos.ChatListFilter {
  return repos.ChatListFilter{}
}

func newChat(userID uuid.UUID, title string, tags ...string) *types.Chat {
  return &types.Chat{
    ID:      uuid.New(),
    UserID:  userID,
    Title:   title,
    Content: datatypes.JSONMap{},
    Meta:    datatypes.NewJSONType(types.ChatMeta{Tags: tags}),
  }
}

// ----------------------------------------------------------------
// In-memory repo fakes
// ----------------------------------------------------------------

type fakeChatRepo struct {
  chats []*types.Chat
}

func (f *fakeChatRepo) Create(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
  if chat.ID == uuid.Nil {
    chat.ID = uuid.New()
  }
  now := time.Now()
  if chat.CreatedAt.IsZero() {
    chat.CreatedAt = now
  }
  chat.UpdatedAt = now
  f.chats = append(f.chats, chat)
  return chat, nil
}

func (f *fakeChatRepo) GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error) {
  for _, c := range f.chats {
    if c.ID == chatID {
      return c, nil
    }
  }
  return nil, gorm.ErrRecordNotFound
}

func (f *fakeChatRepo) GetByIDAndUser(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID) (*types.Chat, error) {
  for _, c := range f.chats {
    if c.ID == chatID && c.UserID == userID {
      return c, nil
    }
  }
  return nil, gorm.ErrRecordNotFound
}

func (f *fakeChatRepo) GetByShareID(ctx context.Context, tx *gorm.DB, shareID uuid.UUID) (*types.Chat, error) {
  for _, c := range f.chats {
    if c.ShareID != nil && *c.ShareID == shareID {
      return c, nil
    }
  }
  return nil, gorm.ErrRecordNotFound
}

func (f *fakeChatRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, includeArchived bool, filter repos.ChatListFilter) ([]*types.Chat, error) {
  var out []*types.Chat
  for _, c := range f.chats {
    if c.UserID != userID {
      continue
    }
    if !includeArchived && c.Archived {
      continue
    }
    if filter.Query != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(filter.Query)) {
      continue
    }
    out = append(out, c)
  }
  return page(out, filter.Skip, filter.Limit), nil
}

func (f *fakeChatRepo) ListPinnedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error) {
  var out []*types.Chat
  for _, c := range f.chats {
    if c.UserID == userID && c.Pinned && !c.Archived {
      out = append(out, c)
    }
  }
  return out, nil
}

func (f *fakeChatRepo) ListArchivedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, filter repos.ChatListFilter) ([]*types.Chat, error) {
  var out []*types.Chat
  for _, c := range f.chats {
    if c.UserID == userID && c.Archived {
      out = append(out, c)
    }
  }
  return page(out, filter.Skip, filter.Limit), nil
}

func (f *fakeChatRepo) ListByFolderIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, folderIDs []uuid.UUID) ([]*types.Chat, error) {
  want := map[uuid.UUID]bool{}
  for _, id := range folderIDs {
    want[id] = true
  }
  var out []*types.Chat
  for _, c := range f.chats {
    if c.UserID == userID && c.FolderID != nil && want[*c.FolderID] {
      out = append(out, c)
    }
  }
  return out, nil
}

func (f *fakeChatRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Chat, error) {
  return append([]*types.Chat(nil), f.chats...), nil
}

func (f *fakeChatRepo) SearchByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, text string, skip, limit int) ([]*types.Chat, error) {
  needle := strings.ToLower(text)
  var out []*types.Chat
  for _, c := range f.chats {
    if c.UserID != userID || c.Archived {
      continue
    }
    if strings.Contains(strings.ToLower(c.Title), needle) {
      out = append(out, c)
    }
  }
  return page(out, skip, limit), nil
}

func (f *fakeChatRepo) ListByTag(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tagID string, skip, limit int) ([]*types.Chat, error) {
  var out []*types.Chat
  for _, c := range f.chats {
    if c.UserID == userID && c.Meta.Data().HasTag(tagID) {
      out = append(out, c)
    }
  }
  return page(out, skip, limit), nil
}

func (f *fakeChatRepo) ListUntaggedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skip, limit int) ([]*types.Chat, error) {
  var out []*types.Chat
  for _, c := range f.chats {
    if c.UserID == userID && len(c.Meta.Data().Tags) == 0 {
      out = append(out, c)
    }
  }
  return page(out, skip, limit), nil
}

func (f *fakeChatRepo) CountByTag(ctx context.Context, tx *gorm.DB, userID uuid.UUID, tagID string) (int64, error) {
  var count int64
  for _, c := range f.chats {
    if c.UserID == userID && c.Meta.Data().HasTag(tagID) {
      count++
    }
  }
  return count, nil
}

func (f *fakeChatRepo) Update(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
  chat.UpdatedAt = time.Now()
  for i, c := range f.chats {
    if c.ID == chat.ID {
      f.chats[i] = chat
      return chat, nil
    }
  }
  return nil, gorm.ErrRecordNotFound
}

func (f *fakeChatRepo) ArchiveAllByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
  for _, c := range f.chats {
    if c.UserID == userID {
      c.Archived = true
    }
  }
  return nil
}

func (f *fakeChatRepo) SoftDeleteByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error {
  f.remove(func(c *types.Chat) bool { return c.ID == chatID })
  return nil
}

func (f *fakeChatRepo) SoftDeleteByIDAndUser(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID) error {
  f.remove(func(c *types.Chat) bool { return c.ID == chatID && c.UserID == userID })
  return nil
}

func (f *fakeChatRepo) SoftDeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
  f.remove(func(c *types.Chat) bool { return c.UserID == userID })
  return nil
}

func (f *fakeChatRepo) remove(doomed func(*types.Chat) bool) {
  kept := f.chats[:0]
  for _, c := range f.chats {
    if !doomed(c) {
      kept = append(kept, c)
    }
  }
  f.chats = kept
}

func page(chats []*types.Chat, skip, limit int) []*types.Chat {
  if skip >= len(chats) {
    return nil
  }
  chats = chats[skip:]
  if limit > 0 && limit < len(chats) {
    chats = chats[:limit]
  }
  return chats
}

type fakeTagRepo struct {
  tags map[string]*types.Tag
}

func newFakeTagRepo() *fakeTagRepo {
  return &fakeTagRepo{tags: map[string]*types.Tag{}}
}

func tagKey(tagID string, userID uuid.UUID) string {
  return tagID + "|" + userID.String()
}

func (f *fakeTagRepo) Create(ctx context.Context, tx *gorm.DB, tag *types.Tag) (*types.Tag, error) {
  now := time.Now()
  tag.CreatedAt = now
  tag.UpdatedAt = now
  f.tags[tagKey(tag.ID, tag.UserID)] = tag
  return tag, nil
}

func (f *fakeTagRepo) GetByIDAndUser(ctx context.Context, tx *gorm.DB, tagID string, userID uuid.UUID) (*types.Tag, error) {
  return f.tags[tagKey(tagID, userID)], nil
}

func (f *fakeTagRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Tag, error) {
  var out []*types.Tag
  for _, tag := range f.tags {
    if tag.UserID == userID {
      out = append(out, tag)
    }
  }
  return out, nil
}

func (f *fakeTagRepo) ListByIDsAndUser(ctx context.Context, tx *gorm.DB, tagIDs []string, userID uuid.UUID) ([]*types.Tag, error) {
  var out []*types.Tag
  for _, tagID := range tagIDs {
    if tag, ok := f.tags[tagKey(tagID, userID)]; ok {
      out = append(out, tag)
    }
  }
  return out, nil
}

func (f *fakeTagRepo) DeleteByIDAndUser(ctx context.Context, tx *gorm.DB, tagID string, userID uuid.UUID) error {
  delete(f.tags, tagKey(tagID, userID))
  return nil
}

type fakeSharedChatRepo struct {
  shared map[uuid.UUID]*types.SharedChat
}

func newFakeSharedChatRepo() *fakeSharedChatRepo {
  return &fakeSharedChatRepo{shared: map[uuid.UUID]*types.SharedChat{}}
}

func (f *fakeSharedChatRepo) Create(ctx context.Context, tx *gorm.DB, shared *types.SharedChat) (*types.SharedChat, error) {
  if shared.ID == uuid.Nil {
    shared.ID = uuid.New()
  }
  now := time.Now()
  shared.CreatedAt = now
  shared.UpdatedAt = now
  f.shared[shared.ID] = shared
  return shared, nil
}

func (f *fakeSharedChatRepo) GetByID(ctx context.Context, tx *gorm.DB, shareID uuid.UUID) (*types.SharedChat, error) {
  return f.shared[shareID], nil
}

func (f *fakeSharedChatRepo) GetByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.SharedChat, error) {
  for _, s := range f.shared {
    if s.ChatID == chatID {
      return s, nil
    }
  }
  return nil, nil
}

func (f *fakeSharedChatRepo) Update(ctx context.Context, tx *gorm.DB, shared *types.SharedChat) (*types.SharedChat, error) {
  shared.UpdatedAt = time.Now()
  f.shared[shared.ID] = shared
  return shared, nil
}

func (f *fakeSharedChatRepo) DeleteByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error {
  for id, s := range f.shared {
    if s.ChatID == chatID {
      delete(f.shared, id)
    }
  }
  return nil
}

type fakeFolderRepo struct {
  folders map[uuid.UUID]*types.Folder
}

func newFakeFolderRepo() *fakeFolderRepo {
  return &fakeFolderRepo{folders: map[uuid.UUID]*types.Folder{}}
}

func (f *fakeFolderRepo) Create(ctx context.Context, tx *gorm.DB, folder *types.Folder) (*types.Folder, error) {
  if folder.ID == uuid.Nil {
    folder.ID = uuid.New()
  }
  f.folders[folder.ID] = folder
  return folder, nil
}

func (f *fakeFolderRepo) GetByIDAndUser(ctx context.Context, tx *gorm.DB, folderID, userID uuid.UUID) (*types.Folder, error) {
  folder, ok := f.folders[folderID]
  if !ok || folder.UserID != userID {
    return nil, nil
  }
  return folder, nil
}

func (f *fakeFolderRepo) ListChildren(ctx context.Context, tx *gorm.DB, parentID, userID uuid.UUID) ([]*types.Folder, error) {
  var out []*types.Folder
  for _, folder := range f.folders {
    if folder.UserID == userID && folder.ParentID != nil && *folder.ParentID == parentID {
      out = append(out, folder)
    }
  }
  return out, nil
}

func (f *fakeFolderRepo) ListDescendantIDs(ctx context.Context, tx *gorm.DB, folderID, userID uuid.UUID) ([]uuid.UUID, error) {
  var descendants []uuid.UUID
  frontier := []uuid.UUID{folderID}
  for len(frontier) > 0 {
    next := frontier[0]
    frontier = frontier[1:]
    children, _ := f.ListChildren(ctx, tx, next, userID)
    for _, child := range children {
      descendants = append(descendants, child.ID)
      frontier = append(frontier, child.ID)
    }
  }
  return descendants, nil
}

type emittedEvent struct {
  Channel   string
  Event     string
  Data      map[string]interface{}
}

type fakeHub struct {
  mu      sync.Mutex
  events  []emittedEvent
}

func (f *fakeHub) Emit(channel string, event string, data map[string]interface{}) {
  f.mu.Lock()
  defer f.mu.Unlock()
  f.events = append(f.events, emittedEvent{Channel: channel, Event: event, Data: data})
}

// ----------------------------------------------------------------
// Fixture wiring
// ----------------------------------------------------------------

type fixture struct {
  chatRepo     *fakeChatRepo
  tagRepo      *fakeTagRepo
  sharedRepo   *fakeSharedChatRepo
  folderRepo   *fakeFolderRepo
  hub          *fakeHub
  tags         TagService
  chats        ChatService
  insights     InsightsService
}

func newFixture(t *testing.T, adminChatAccess, adminExport bool) *fixture {
  t.Helper()
  log := testLogger(t)
  f := &fixture{
    chatRepo:   &fakeChatRepo{},
    tagRepo:    newFakeTagRepo(),
    sharedRepo: newFakeSharedChatRepo(),
    folderRepo: newFakeFolderRepo(),
    hub:        &fakeHub{},
  }
  f.tags = NewTagService(log, f.chatRepo, f.tagRepo)
  f.chats = NewChatService(log, f.chatRepo, f.sharedRepo, f.folderRepo, f.tags, f.hub, adminChatAccess, adminExport)
  f.insights = NewInsightsService(log, f.chatRepo, f.tags)
  return f
}
