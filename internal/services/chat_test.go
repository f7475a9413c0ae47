package services

import (
  "testing"

  "github.com/google/uuid"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
  "gorm.io/datatypes"

  "github.com/studyhall-org/studyhall-backend/internal/apperrors"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

func TestCreateDefaultsTitle(t *testing.T) {
  f := newFixture(t, false, false)
  ctx := testContext(uuid.New(), "user")

  chat, err := f.chats.Create(ctx, datatypes.JSONMap{})
  require.NoError(t, err)
  assert.Equal(t, "New Chat", chat.Title)

  titled, err := f.chats.Create(ctx, datatypes.JSONMap{"title": "Homework"})
  require.NoError(t, err)
  assert.Equal(t, "Homework", titled.Title)
}

func TestUpdateShallowMergesContent(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Old Title")
  chat.Content = datatypes.JSONMap{"title": "Old Title", "models": []interface{}{"gpt"}}
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  updated, err := f.chats.Update(ctx, chat.ID, datatypes.JSONMap{"title": "New Title", "system": "be brief"})
  require.NoError(t, err)

  assert.Equal(t, "New Title", updated.Title)
  assert.Equal(t, "New Title", updated.Content["title"])
  assert.Equal(t, "be brief", updated.Content["system"])
  assert.Equal(t, []interface{}{"gpt"}, updated.Content["models"], "keys absent from the request survive")
}

func TestGetHiddenFromStrangers(t *testing.T) {
  f := newFixture(t, false, false)
  ownerID := uuid.New()
  chat := newChat(ownerID, "Private")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  _, err := f.chats.Get(testContext(uuid.New(), "user"), chat.ID)
  require.ErrorIs(t, err, apperrors.ErrNotFound)

  got, err := f.chats.Get(testContext(ownerID, "user"), chat.ID)
  require.NoError(t, err)
  assert.Equal(t, chat.ID, got.ID)
}

func TestGetAdminReadOnlyAccess(t *testing.T) {
  f := newFixture(t, true, false)
  ownerID := uuid.New()
  chat := newChat(ownerID, "Private")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  got, err := f.chats.Get(testContext(uuid.New(), "admin"), chat.ID)
  require.NoError(t, err)
  assert.Equal(t, chat.ID, got.ID)
}

func TestCloneRecordsLineage(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  shareID := uuid.New()
  folderID := uuid.New()
  source := newChat(userID, "Physics Review", "physics")
  source.Pinned = true
  source.Archived = true
  source.ShareID = &shareID
  source.FolderID = &folderID
  source.Content = datatypes.JSONMap{
    "title": "Physics Review",
    "history": map[string]interface{}{
      "currentId": "msg-9",
      "messages":  map[string]interface{}{"msg-9": map[string]interface{}{"id": "msg-9", "content": "velocity"}},
    },
  }
  f.chatRepo.chats = append(f.chatRepo.chats, source)

  clone, err := f.chats.Clone(ctx, source.ID, "")
  require.NoError(t, err)

  assert.Equal(t, "Clone of Physics Review", clone.Title)
  assert.Equal(t, source.ID.String(), clone.Content["originalChatId"])
  assert.Equal(t, "msg-9", clone.Content["branchPointMessageId"])
  assert.Equal(t, "Clone of Physics Review", clone.Content["title"])

  // Share state, folder placement, tags, pin and archive never carry over.
  assert.Nil(t, clone.ShareID)
  assert.Nil(t, clone.FolderID)
  assert.False(t, clone.Pinned)
  assert.False(t, clone.Archived)
  assert.Empty(t, clone.Meta.Data().Tags)

  // The copy must not alias the source's nested maps.
  cloneHistory := clone.Content["history"].(map[string]interface{})
  cloneHistory["currentId"] = "msg-999"
  srcHistory := source.Content["history"].(map[string]interface{})
  assert.Equal(t, "msg-9", srcHistory["currentId"])
}

func TestCloneTitleOverride(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  source := newChat(userID, "Original")
  f.chatRepo.chats = append(f.chatRepo.chats, source)

  clone, err := f.chats.Clone(ctx, source.ID, "My Branch")
  require.NoError(t, err)
  assert.Equal(t, "My Branch", clone.Title)
  assert.Equal(t, "My Branch", clone.Content["title"])
}

func TestShareKeepsStableID(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "To Share")
  chat.Content = datatypes.JSONMap{"v": "first"}
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  first, err := f.chats.Share(ctx, chat.ID)
  require.NoError(t, err)
  require.NotNil(t, chat.ShareID)
  assert.Equal(t, first.ID, *chat.ShareID)

  chat.Content["v"] = "second"
  second, err := f.chats.Share(ctx, chat.ID)
  require.NoError(t, err)
  assert.Equal(t, first.ID, second.ID, "re-sharing must keep the circulated link valid")
  assert.Equal(t, "second", second.Content["v"], "re-sharing refreshes the snapshot")
}

func TestShareRecreatesLostSnapshot(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "To Share")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  first, err := f.chats.Share(ctx, chat.ID)
  require.NoError(t, err)

  // Snapshot row vanishes but the chat still carries its share id.
  delete(f.sharedRepo.shared, first.ID)

  again, err := f.chats.Share(ctx, chat.ID)
  require.NoError(t, err)
  assert.Equal(t, first.ID, again.ID, "recreated snapshot reuses the original share id")
}

func TestUnshare(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Maybe Shared")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  ok, err := f.chats.Unshare(ctx, chat.ID)
  require.NoError(t, err)
  assert.False(t, ok, "unsharing an unshared chat is not an error")

  shared, err := f.chats.Share(ctx, chat.ID)
  require.NoError(t, err)

  ok, err = f.chats.Unshare(ctx, chat.ID)
  require.NoError(t, err)
  assert.True(t, ok)
  assert.Nil(t, chat.ShareID)
  snapshot, err := f.sharedRepo.GetByID(ctx, nil, shared.ID)
  require.NoError(t, err)
  assert.Nil(t, snapshot)

  // A fresh share mints a new id.
  reshared, err := f.chats.Share(ctx, chat.ID)
  require.NoError(t, err)
  assert.NotEqual(t, shared.ID, reshared.ID)
}

func TestGetSharedHiddenFromPendingUsers(t *testing.T) {
  f := newFixture(t, false, false)
  ownerID := uuid.New()
  chat := newChat(ownerID, "Published")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)
  shared, err := f.chats.Share(testContext(ownerID, "user"), chat.ID)
  require.NoError(t, err)

  _, err = f.chats.GetShared(testContext(uuid.New(), "pending"), shared.ID)
  require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCloneSharedRecordsSourceLineage(t *testing.T) {
  f := newFixture(t, false, false)
  ownerID := uuid.New()
  chat := newChat(ownerID, "Published")
  chat.Content = datatypes.JSONMap{
    "history": map[string]interface{}{"currentId": "msg-3"},
  }
  f.chatRepo.chats = append(f.chatRepo.chats, chat)
  shared, err := f.chats.Share(testContext(ownerID, "user"), chat.ID)
  require.NoError(t, err)

  visitorID := uuid.New()
  clone, err := f.chats.CloneShared(testContext(visitorID, "user"), shared.ID)
  require.NoError(t, err)

  assert.Equal(t, visitorID, clone.UserID)
  assert.Equal(t, chat.ID.String(), clone.Content["originalChatId"], "lineage points at the source chat, not the share id")
  assert.Equal(t, "msg-3", clone.Content["branchPointMessageId"])
}

func TestCloneSharedCopiesLiveChat(t *testing.T) {
  f := newFixture(t, false, false)
  ownerID := uuid.New()
  chat := newChat(ownerID, "Published")
  chat.Content = datatypes.JSONMap{"topic": "before"}
  f.chatRepo.chats = append(f.chatRepo.chats, chat)
  shared, err := f.chats.Share(testContext(ownerID, "user"), chat.ID)
  require.NoError(t, err)

  chat.Content["topic"] = "after"

  clone, err := f.chats.CloneShared(testContext(uuid.New(), "user"), shared.ID)
  require.NoError(t, err)
  assert.Equal(t, "after", clone.Content["topic"], "the fork follows the live chat, not the share snapshot")
}

func TestCloneSharedHiddenFromPendingUsers(t *testing.T) {
  f := newFixture(t, false, false)
  ownerID := uuid.New()
  chat := newChat(ownerID, "Published")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)
  shared, err := f.chats.Share(testContext(ownerID, "user"), chat.ID)
  require.NoError(t, err)

  _, err = f.chats.CloneShared(testContext(uuid.New(), "pending"), shared.ID)
  require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCloneSharedUnknownShareID(t *testing.T) {
  f := newFixture(t, false, false)

  _, err := f.chats.CloneShared(testContext(uuid.New(), "user"), uuid.New())
  require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteReconcilesTagIndex(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Doomed")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)
  _, err := f.tags.AddChatTag(ctx, chat.ID, "solo")
  require.NoError(t, err)

  ok, err := f.chats.Delete(ctx, chat.ID)
  require.NoError(t, err)
  assert.True(t, ok)
  assert.Empty(t, f.chatRepo.chats)

  row, err := f.tagRepo.GetByIDAndUser(ctx, nil, "solo", userID)
  require.NoError(t, err)
  assert.Nil(t, row)
}

func TestDeleteAllSweepsTagIndex(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  first := newChat(userID, "First")
  second := newChat(userID, "Second")
  f.chatRepo.chats = append(f.chatRepo.chats, first, second)
  _, err := f.tags.AddChatTag(ctx, first.ID, "alpha")
  require.NoError(t, err)
  _, err = f.tags.AddChatTag(ctx, second.ID, "beta")
  require.NoError(t, err)

  ok, err := f.chats.DeleteAll(ctx)
  require.NoError(t, err)
  assert.True(t, ok)
  assert.Empty(t, f.chatRepo.chats)

  for _, tagID := range []string{"alpha", "beta"} {
    row, err := f.tagRepo.GetByIDAndUser(ctx, nil, tagID, userID)
    require.NoError(t, err)
    assert.Nil(t, row)
  }
}

func TestSearchTagQuery(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Tagged")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)
  _, err := f.tags.AddChatTag(ctx, chat.ID, "Linear Algebra")
  require.NoError(t, err)

  results, err := f.chats.Search(ctx, "tag:linear_algebra", 1)
  require.NoError(t, err)
  require.Len(t, results, 1)
  assert.Equal(t, chat.ID, results[0].ID)
}

func TestSearchTagNoneFindsUntagged(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  tagged := newChat(userID, "Tagged", "algebra")
  bare := newChat(userID, "Bare")
  f.chatRepo.chats = append(f.chatRepo.chats, tagged, bare)

  results, err := f.chats.Search(ctx, "tag:none", 1)
  require.NoError(t, err)
  require.Len(t, results, 1)
  assert.Equal(t, bare.ID, results[0].ID)
}

func TestSearchStaleTagCleansIndex(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  _, err := f.tagRepo.Create(ctx, nil, &types.Tag{ID: "ghost", UserID: userID, Name: "Ghost"})
  require.NoError(t, err)

  results, err := f.chats.Search(ctx, "tag:ghost", 1)
  require.NoError(t, err)
  assert.Empty(t, results)

  row, err := f.tagRepo.GetByIDAndUser(ctx, nil, "ghost", userID)
  require.NoError(t, err)
  assert.Nil(t, row, "an empty first page for a tag query drops the stale row")
}

func TestSearchByTitle(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  match := newChat(userID, "Calculus Homework")
  other := newChat(userID, "Essay Draft")
  archived := newChat(userID, "Calculus Archive")
  archived.Archived = true
  f.chatRepo.chats = append(f.chatRepo.chats, match, other, archived)

  results, err := f.chats.Search(ctx, "calculus", 1)
  require.NoError(t, err)
  require.Len(t, results, 1)
  assert.Equal(t, match.ID, results[0].ID)
}

func TestToggleArchiveKeepsTagRow(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Archive Me")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)
  _, err := f.tags.AddChatTag(ctx, chat.ID, "keep")
  require.NoError(t, err)

  archived, err := f.chats.ToggleArchive(ctx, chat.ID)
  require.NoError(t, err)
  assert.True(t, archived.Archived)

  row, err := f.tagRepo.GetByIDAndUser(ctx, nil, "keep", userID)
  require.NoError(t, err)
  assert.NotNil(t, row, "archived chats still reference their tags")
}

func TestImportBackfillsTagIndex(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")

  meta := types.ChatMeta{Tags: []string{"Imported Tag", "none"}}
  chat, err := f.chats.Import(ctx, datatypes.JSONMap{"title": "Imported"}, meta, true, nil)
  require.NoError(t, err)

  assert.Equal(t, []string{"imported_tag"}, chat.Meta.Data().Tags, "imported tag ids are normalized and the reserved id is dropped")
  assert.True(t, chat.Pinned)

  row, err := f.tagRepo.GetByIDAndUser(ctx, nil, "imported_tag", userID)
  require.NoError(t, err)
  assert.NotNil(t, row)
}

func TestMoveToFolder(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Filed")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)
  folder := &types.Folder{ID: uuid.New(), UserID: userID, Name: "School"}
  f.folderRepo.folders[folder.ID] = folder

  moved, err := f.chats.MoveToFolder(ctx, chat.ID, &folder.ID)
  require.NoError(t, err)
  require.NotNil(t, moved.FolderID)
  assert.Equal(t, folder.ID, *moved.FolderID)

  unfiled, err := f.chats.MoveToFolder(ctx, chat.ID, nil)
  require.NoError(t, err)
  assert.Nil(t, unfiled.FolderID)

  missing := uuid.New()
  _, err = f.chats.MoveToFolder(ctx, chat.ID, &missing)
  require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateMessageEmitsEvent(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Live")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  updated, err := f.chats.UpdateMessage(ctx, chat.ID, "msg-1", "hello there")
  require.NoError(t, err)

  history := updated.Content["history"].(map[string]interface{})
  messages := history["messages"].(map[string]interface{})
  message := messages["msg-1"].(map[string]interface{})
  assert.Equal(t, "hello there", message["content"])

  require.Len(t, f.hub.events, 1)
  event := f.hub.events[0]
  assert.Equal(t, "user:"+userID.String(), event.Channel)
  assert.Equal(t, "chat:message", event.Event)
  assert.Equal(t, "msg-1", event.Data["message_id"])
}

func TestSendMessageEventRequiresType(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Live")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  _, err := f.chats.SendMessageEvent(ctx, chat.ID, "msg-1", "", nil)
  require.ErrorIs(t, err, apperrors.ErrInvalidArgument)

  ok, err := f.chats.SendMessageEvent(ctx, chat.ID, "msg-1", "chat:typing", map[string]interface{}{"state": true})
  require.NoError(t, err)
  assert.True(t, ok)
  require.Len(t, f.hub.events, 1)
  assert.Equal(t, "chat:typing", f.hub.events[0].Event)
}

func TestListAllForExportGate(t *testing.T) {
  f := newFixture(t, false, false)
  _, err := f.chats.ListAllForExport(testContext(uuid.New(), "admin"))
  require.ErrorIs(t, err, apperrors.ErrUnauthorized, "export stays closed while the toggle is off")

  enabled := newFixture(t, false, true)
  enabled.chatRepo.chats = append(enabled.chatRepo.chats, newChat(uuid.New(), "Anything"))

  _, err = enabled.chats.ListAllForExport(testContext(uuid.New(), "user"))
  require.ErrorIs(t, err, apperrors.ErrUnauthorized)

  chats, err := enabled.chats.ListAllForExport(testContext(uuid.New(), "admin"))
  require.NoError(t, err)
  assert.Len(t, chats, 1)
}

func TestListByUserIDGate(t *testing.T) {
  f := newFixture(t, true, false)
  targetID := uuid.New()
  f.chatRepo.chats = append(f.chatRepo.chats, newChat(targetID, "Theirs"))

  _, err := f.chats.ListByUserID(testContext(uuid.New(), "user"), targetID, listFilter())
  require.ErrorIs(t, err, apperrors.ErrUnauthorized)

  results, err := f.chats.ListByUserID(testContext(uuid.New(), "admin"), targetID, listFilter())
  require.NoError(t, err)
  assert.Len(t, results, 1)
}

func TestListExcludesArchived(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  active := newChat(userID, "Active")
  archived := newChat(userID, "Archived")
  archived.Archived = true
  f.chatRepo.chats = append(f.chatRepo.chats, active, archived)

  results, err := f.chats.List(ctx, listFilter())
  require.NoError(t, err)
  require.Len(t, results, 1)
  assert.Equal(t, active.ID, results[0].ID)

  archivedList, err := f.chats.ListArchived(ctx, listFilter())
  require.NoError(t, err)
  require.Len(t, archivedList, 1)
  assert.Equal(t, archived.ID, archivedList[0].ID)
}
