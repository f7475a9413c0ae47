package middleware

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/repos"
  "github.com/studyhall-org/studyhall-backend/internal/requestdata"
  "github.com/studyhall-org/studyhall-backend/internal/services"
)

type AuthMiddleware struct {
  log           *logger.Logger
  authService   services.AuthService
  roleRepo      repos.RoleRepo
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService, roleRepo repos.RoleRepo) *AuthMiddleware {
  return &AuthMiddleware{
    log:         log.With("middleware", "AuthMiddleware"),
    authService: authService,
    roleRepo:    roleRepo,
  }
}

// authenticate validates the token and attaches the caller's request data to
// the request context. It aborts with a response on failure and reports
// whether the chain may continue. It never advances the chain itself.
func (am *AuthMiddleware) authenticate(c *gin.Context) bool {
  tokenString := extractTokenFromAll(c)
  if tokenString == "" {
    c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
    return false
  }
  ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
  if err != nil {
    c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
    return false
  }
  c.Request = c.Request.WithContext(ctx)
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden - invalid user id"})
    return false
  }
  return true
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    if !am.authenticate(c) {
      return
    }
    c.Next()
  }
}

// RequirePermission gates a route on a role permission. Admins pass
// unconditionally. The protected handler runs only after every check has
// passed; a group-level RequireAuth upstream is reused when present.
func (am *AuthMiddleware) RequirePermission(permission string) gin.HandlerFunc {
  return func(c *gin.Context) {
    rd := requestdata.GetRequestData(c.Request.Context())
    if rd == nil {
      if !am.authenticate(c) {
        return
      }
      rd = requestdata.GetRequestData(c.Request.Context())
    }
    ctx := c.Request.Context()
    if rd.IsAdmin() {
      c.Next()
      return
    }
    if rd.RoleID == uuid.Nil {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no role id in request data"})
      return
    }
    roles, err := am.roleRepo.GetByIDs(ctx, nil, []uuid.UUID{rd.RoleID})
    if err != nil {
      c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load role"})
      return
    }
    if len(roles) == 0 {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not found"})
      return
    }
    role := roles[0]
    hasPermission := false
    for _, pm := range role.Permissions {
      if pm.Name == permission || pm.PermissionType == permission {
        hasPermission = true
        break
      }
    }
    if !hasPermission {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
      return
    }
    c.Next()
  }
}

func extractTokenFromAll(c *gin.Context) string {
  if qToken := c.Query("token"); qToken != "" {
    return qToken
  }
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  return ""
}
