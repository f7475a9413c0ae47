package services

import (
  "testing"

  "github.com/google/uuid"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/studyhall-org/studyhall-backend/internal/apperrors"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

func TestNormalizeTagName(t *testing.T) {
  assert.Equal(t, "foo_bar", NormalizeTagName("Foo Bar"))
  assert.Equal(t, "foo_bar", NormalizeTagName("  foo bar  "))
  assert.Equal(t, "foo_bar", NormalizeTagName("foo_bar"))
  assert.Equal(t, "none", NormalizeTagName("None"))
}

func TestTagDisplayName(t *testing.T) {
  assert.Equal(t, "Foo Bar", TagDisplayName("foo_bar"))
  assert.Equal(t, "Calculus", TagDisplayName("calculus"))
}

func TestAddChatTagCreatesIndexRow(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Linear Algebra Review")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  tags, err := f.tags.AddChatTag(ctx, chat.ID, "Linear Algebra")
  require.NoError(t, err)
  require.Len(t, tags, 1)
  assert.Equal(t, "linear_algebra", tags[0].ID)
  assert.Equal(t, "Linear Algebra", tags[0].Name)
  assert.True(t, chat.Meta.Data().HasTag("linear_algebra"))
}

func TestAddChatTagIsIdempotent(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Notes")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  _, err := f.tags.AddChatTag(ctx, chat.ID, "physics")
  require.NoError(t, err)
  _, err = f.tags.AddChatTag(ctx, chat.ID, "Physics")
  require.NoError(t, err)

  assert.Equal(t, []string{"physics"}, chat.Meta.Data().Tags)
}

func TestAddChatTagRejectsReservedName(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Notes")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  _, err := f.tags.AddChatTag(ctx, chat.ID, "None")
  require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestAddChatTagUnknownChat(t *testing.T) {
  f := newFixture(t, false, false)
  ctx := testContext(uuid.New(), "user")

  _, err := f.tags.AddChatTag(ctx, uuid.New(), "math")
  require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveChatTagKeepsReferencedRow(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  first := newChat(userID, "First")
  second := newChat(userID, "Second")
  f.chatRepo.chats = append(f.chatRepo.chats, first, second)

  _, err := f.tags.AddChatTag(ctx, first.ID, "shared")
  require.NoError(t, err)
  _, err = f.tags.AddChatTag(ctx, second.ID, "shared")
  require.NoError(t, err)

  _, err = f.tags.RemoveChatTag(ctx, first.ID, "shared")
  require.NoError(t, err)

  row, err := f.tagRepo.GetByIDAndUser(ctx, nil, "shared", userID)
  require.NoError(t, err)
  assert.NotNil(t, row, "row must survive while the other chat still references it")

  _, err = f.tags.RemoveChatTag(ctx, second.ID, "shared")
  require.NoError(t, err)

  row, err = f.tagRepo.GetByIDAndUser(ctx, nil, "shared", userID)
  require.NoError(t, err)
  assert.Nil(t, row, "last reference removal must delete the row")
}

func TestRemoveAllChatTags(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Tagged")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  _, err := f.tags.AddChatTag(ctx, chat.ID, "one")
  require.NoError(t, err)
  _, err = f.tags.AddChatTag(ctx, chat.ID, "two")
  require.NoError(t, err)

  ok, err := f.tags.RemoveAllChatTags(ctx, chat.ID)
  require.NoError(t, err)
  assert.True(t, ok)
  assert.Empty(t, chat.Meta.Data().Tags)

  for _, tagID := range []string{"one", "two"} {
    row, err := f.tagRepo.GetByIDAndUser(ctx, nil, tagID, userID)
    require.NoError(t, err)
    assert.Nil(t, row)
  }
}

func TestChatsByTagCleansStaleRowOnEmptyFirstPage(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")

  // Orphaned index row with no chats behind it.
  _, err := f.tagRepo.Create(ctx, nil, &types.Tag{ID: "stale", UserID: userID, Name: "Stale"})
  require.NoError(t, err)

  results, err := f.tags.ChatsByTag(ctx, "Stale", 0, 50)
  require.NoError(t, err)
  assert.Empty(t, results)

  row, err := f.tagRepo.GetByIDAndUser(ctx, nil, "stale", userID)
  require.NoError(t, err)
  assert.Nil(t, row)
}

func TestChatsByTagSkipsCleanupPastFirstPage(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")

  _, err := f.tagRepo.Create(ctx, nil, &types.Tag{ID: "stale", UserID: userID, Name: "Stale"})
  require.NoError(t, err)

  _, err = f.tags.ChatsByTag(ctx, "stale", 50, 50)
  require.NoError(t, err)

  row, err := f.tagRepo.GetByIDAndUser(ctx, nil, "stale", userID)
  require.NoError(t, err)
  assert.NotNil(t, row, "an empty later page proves nothing about the tag")
}

func TestReconcileBeforeDeleteDropsSoleReference(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Only Reference")
  other := newChat(userID, "Other")
  f.chatRepo.chats = append(f.chatRepo.chats, chat, other)

  _, err := f.tags.AddChatTag(ctx, chat.ID, "solo")
  require.NoError(t, err)
  _, err = f.tags.AddChatTag(ctx, chat.ID, "shared")
  require.NoError(t, err)
  _, err = f.tags.AddChatTag(ctx, other.ID, "shared")
  require.NoError(t, err)

  require.NoError(t, f.tags.ReconcileBeforeDelete(ctx, userID, chat))

  solo, err := f.tagRepo.GetByIDAndUser(ctx, nil, "solo", userID)
  require.NoError(t, err)
  assert.Nil(t, solo, "a tag referenced only by the doomed chat loses its row")

  shared, err := f.tagRepo.GetByIDAndUser(ctx, nil, "shared", userID)
  require.NoError(t, err)
  assert.NotNil(t, shared, "a tag referenced elsewhere keeps its row")
}

func TestReconcileArchiveToggle(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Archived Later")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  _, err := f.tags.AddChatTag(ctx, chat.ID, "keep")
  require.NoError(t, err)

  // Archived chats still reference their tags: the row must survive.
  chat.Archived = true
  require.NoError(t, f.tags.ReconcileArchiveToggle(ctx, userID, chat))
  row, err := f.tagRepo.GetByIDAndUser(ctx, nil, "keep", userID)
  require.NoError(t, err)
  assert.NotNil(t, row)

  // Simulate index drift while archived, then unarchive: the repair pass
  // recreates the lost row.
  require.NoError(t, f.tagRepo.DeleteByIDAndUser(ctx, nil, "keep", userID))
  chat.Archived = false
  require.NoError(t, f.tags.ReconcileArchiveToggle(ctx, userID, chat))
  row, err = f.tagRepo.GetByIDAndUser(ctx, nil, "keep", userID)
  require.NoError(t, err)
  require.NotNil(t, row)
  assert.Equal(t, "Keep", row.Name)
}

func TestBackfillFromMeta(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")

  meta := types.ChatMeta{Tags: []string{"imported_tag", "none", ""}}
  require.NoError(t, f.tags.BackfillFromMeta(ctx, userID, meta))

  row, err := f.tagRepo.GetByIDAndUser(ctx, nil, "imported_tag", userID)
  require.NoError(t, err)
  require.NotNil(t, row)
  assert.Equal(t, "Imported Tag", row.Name)

  reserved, err := f.tagRepo.GetByIDAndUser(ctx, nil, "none", userID)
  require.NoError(t, err)
  assert.Nil(t, reserved, "the reserved id never gets an index row")
}

func TestListChatTagsReturnsIndexRows(t *testing.T) {
  f := newFixture(t, false, false)
  userID := uuid.New()
  ctx := testContext(userID, "user")
  chat := newChat(userID, "Tagged")
  f.chatRepo.chats = append(f.chatRepo.chats, chat)

  _, err := f.tags.AddChatTag(ctx, chat.ID, "alpha")
  require.NoError(t, err)
  _, err = f.tags.AddChatTag(ctx, chat.ID, "beta")
  require.NoError(t, err)

  tags, err := f.tags.ListChatTags(ctx, chat.ID)
  require.NoError(t, err)
  assert.Len(t, tags, 2)
}
