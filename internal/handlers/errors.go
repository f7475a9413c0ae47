package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/studyhall-org/studyhall-backend/internal/apperrors"
)

// respondError maps service errors onto HTTP statuses. Unknown errors are
// reported as 500 without leaking internals.
func respondError(c *gin.Context, err error) {
  switch {
  case errors.Is(err, apperrors.ErrNotFound):
    c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
  case errors.Is(err, apperrors.ErrUnauthorized):
    c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
  case errors.Is(err, apperrors.ErrInvalidArgument):
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
  default:
    c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
  }
}
