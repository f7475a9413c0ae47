package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/studyhall-org/studyhall-backend/internal/services"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type InsightsHandler struct {
  insightsService services.InsightsService
}

func NewInsightsHandler(insightsService services.InsightsService) *InsightsHandler {
  return &InsightsHandler{insightsService: insightsService}
}

func (ih *InsightsHandler) Summarize(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  summary, err := ih.insightsService.Summarize(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (ih *InsightsHandler) UpdateSummary(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  var patch types.ChatMetaPatch
  if err := c.ShouldBindJSON(&patch); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  chat, err := ih.insightsService.UpdateSummary(c.Request.Context(), chatID, patch)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ih *InsightsHandler) ToggleMistake(c *gin.Context) {
  chatID, ok := parseIDParam(c, "id")
  if !ok {
    return
  }
  chat, err := ih.insightsService.ToggleMistake(c.Request.Context(), chatID)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ih *InsightsHandler) ListMistakes(c *gin.Context) {
  chats, err := ih.insightsService.ListMistakes(c.Request.Context())
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ih *InsightsHandler) Statistics(c *gin.Context) {
  stats, err := ih.insightsService.Statistics(c.Request.Context())
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"statistics": stats})
}

func (ih *InsightsHandler) StatisticsBySubject(c *gin.Context) {
  stats, err := ih.insightsService.StatisticsBySubject(c.Request.Context())
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"statistics": stats})
}

func (ih *InsightsHandler) SearchByMetadata(c *gin.Context) {
  var filter services.MetadataFilter
  if err := c.ShouldBindJSON(&filter); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  chats, err := ih.insightsService.SearchByMetadata(c.Request.Context(), filter)
  if err != nil {
    respondError(c, err)
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}
