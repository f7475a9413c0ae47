package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/studyhall-org/studyhall-backend/internal/services"
)

type TagHandler struct {
  tagService services.TagService
}

func NewTagHandler(tagService services.TagService) *TagHandler {
  return &TagHandler{tagService: tagService}
}

func (th *TagHandler) ListMyTags(c *gin.Context) {
  tags, err := th.tagService.ListMyTags(c.Request.Context())
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (th *TagHandler) ChatsByTag(c *gin.Context) {
  var req struct {
    Name    string    `json:"name"`
    Skip    int       `json:"skip"`
    Limit   int       `json:"limit"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "tag name is required"})
    return
  }
  if req.Limit <= 0 {
    req.Limit = 50
  }
  chats, err := th.tagService.ChatsByTag(c.Request.Context(), req.Name, req.Skip, req.Limit)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}
