package handlers

import (
  "net/http"
  "strconv"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/studyhall-org/studyhall-backend/internal/repos"
  "github.com/studyhall-org/studyhall-backend/internal/services"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type ChatHandler struct {
  chatService   services.ChatService
  tagService    services.TagService
}

func NewChatHandler(chatService services.ChatService, tagService services.TagService) *ChatHandler {
  return &ChatHandler{chatService: chatService, tagService: tagService}
}

func listFilterFromQuery(c *gin.Context) repos.ChatListFilter {
  page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
  if page < 1 {
    page = 1
  }
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
  if limit < 1 {
    limit = 50
  }
  return repos.ChatListFilter{
    Query:     c.Query("query"),
    OrderBy:   c.Query("order_by"),
    Direction: c.Query("direction"),
    Skip:      (page - 1) * limit,
    Limit:     limit,
  }
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
  id, err := uuid.Parse(c.Param(name))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
    return uuid.Nil, false
  }
  return id, true
}

func (ch *ChatHandler) List(c *gin.Context) {
  chats, err := ch.chatService.List(c.Request.Context(), listFilterFromQuery(c))
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ch *ChatHandler) Create(c *gin.Context) {
  var req struct {
    Chat    datatypes.JSONMap   `json:"chat"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  chat, err := ch.chatService.Create(c.Request.Context(), req.Chat)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) Import(c *gin.Context) {
  var req struct {
    Chat      datatypes.JSONMap   `json:"chat"`
    Meta      types.ChatMeta      `json:"meta"`
    Pinned    bool                `json:"pinned"`
    FolderID  *uuid.UUID          `json:"folder_id"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  chat, err := ch.chatService.Import(c.Request.Context(), req.Chat, req.Meta, req.Pinned, req.FolderID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) Search(c *gin.Context) {
  text := c.Query("text")
  if text == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "search text is required"})
    return
  }
  page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
  chats, err := ch.chatService.Search(c.Request.Context(), text, page)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ch *ChatHandler) ListPinned(c *gin.Context) {
  chats, err := ch.chatService.ListPinned(c.Request.Context())
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ch *ChatHandler) ListArchived(c *gin.Context) {
  chats, err := ch.chatService.ListArchived(c.Request.Context(), listFilterFromQuery(c))
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ch *ChatHandler) ListByFolder(c *gin.Context) {
  folderID, ok := parseIDParam(c, "folder_id")
  if !ok {
    return
  }
  chats, err := ch.chatService.ListByFolder(c.Request.Context(), folderID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ch *ChatHandler) Get(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  chat, err := ch.chatService.Get(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) Update(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  var req struct {
    Chat    datatypes.JSONMap   `json:"chat"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  chat, err := ch.chatService.Update(c.Request.Context(), chatID, req.Chat)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) Delete(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  deleted, err := ch.chatService.Delete(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": deleted})
}

func (ch *ChatHandler) DeleteAll(c *gin.Context) {
  deleted, err := ch.chatService.DeleteAll(c.Request.Context())
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": deleted})
}

func (ch *ChatHandler) PinnedStatus(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  pinned, err := ch.chatService.PinnedStatus(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"pinned": pinned})
}

func (ch *ChatHandler) TogglePin(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  chat, err := ch.chatService.TogglePin(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) ToggleArchive(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  chat, err := ch.chatService.ToggleArchive(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) ArchiveAll(c *gin.Context) {
  archived, err := ch.chatService.ArchiveAll(c.Request.Context())
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": archived})
}

func (ch *ChatHandler) Share(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  shared, err := ch.chatService.Share(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"shared_chat": shared})
}

func (ch *ChatHandler) Unshare(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  unshared, err := ch.chatService.Unshare(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": unshared})
}

func (ch *ChatHandler) GetShared(c *gin.Context) {
  shareID, ok := parseIDParam(c, "share_id")
  if !ok {
    return
  }
  chat, err := ch.chatService.GetShared(c.Request.Context(), shareID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) Clone(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  var req struct {
    Title   string    `json:"title"`
  }
  // Body is optional for clone; a missing title falls back to the default.
  _ = c.ShouldBindJSON(&req)
  chat, err := ch.chatService.Clone(c.Request.Context(), chatID, req.Title)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) CloneShared(c *gin.Context) {
  shareID, ok := parseIDParam(c, "share_id")
  if !ok {
    return
  }
  chat, err := ch.chatService.CloneShared(c.Request.Context(), shareID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) MoveToFolder(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  var req struct {
    FolderID    *uuid.UUID    `json:"folder_id"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  chat, err := ch.chatService.MoveToFolder(c.Request.Context(), chatID, req.FolderID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) ListChatTags(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  tags, err := ch.tagService.ListChatTags(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (ch *ChatHandler) AddChatTag(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  var req struct {
    Name    string    `json:"name"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "tag name is required"})
    return
  }
  tags, err := ch.tagService.AddChatTag(c.Request.Context(), chatID, req.Name)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (ch *ChatHandler) RemoveChatTag(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  var req struct {
    Name    string    `json:"name"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "tag name is required"})
    return
  }
  tags, err := ch.tagService.RemoveChatTag(c.Request.Context(), chatID, req.Name)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (ch *ChatHandler) RemoveAllChatTags(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  cleared, err := ch.tagService.RemoveAllChatTags(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": cleared})
}

func (ch *ChatHandler) UpdateMessage(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  messageID := c.Param("message_id")
  if messageID == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "message id is required"})
    return
  }
  var req struct {
    Content   string    `json:"content"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  chat, err := ch.chatService.UpdateMessage(c.Request.Context(), chatID, messageID, req.Content)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) SendMessageEvent(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  messageID := c.Param("message_id")
  var req struct {
    Type    string                    `json:"type"`
    Data    map[string]interface{}    `json:"data"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  sent, err := ch.chatService.SendMessageEvent(c.Request.Context(), chatID, messageID, req.Type, req.Data)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": sent})
}

func (ch *ChatHandler) ListAllForExport(c *gin.Context) {
  chats, err := ch.chatService.ListAllForExport(c.Request.Context())
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ch *ChatHandler) ListByUserID(c *gin.Context) {
  userID, ok := parseIDParam(c, "user_id")
  if !ok {
    return
  }
  chats, err := ch.chatService.ListByUserID(c.Request.Context(), userID, listFilterFromQuery(c))
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}
