package middleware

import (
  "context"
  "net/http"
  "net/http/httptest"
  "testing"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/requestdata"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

type fakeAuthService struct {
  rd *requestdata.RequestData
}

func (f *fakeAuthService) RegisterUser(ctx context.Context, user *types.User) error {
  return nil
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (string, string, error) {
  return "", "", nil
}

func (f *fakeAuthService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
  return "", "", nil
}

func (f *fakeAuthService) Logout(ctx context.Context, refreshToken string) error {
  return nil
}

func (f *fakeAuthService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  return requestdata.WithRequestData(ctx, f.rd), nil
}

func (f *fakeAuthService) GetAccessTTL() time.Duration {
  return time.Minute
}

type fakeRoleRepo struct {
  roles map[uuid.UUID]*types.Role
}

func (f *fakeRoleRepo) Create(ctx context.Context, tx *gorm.DB, roles []*types.Role) ([]*types.Role, error) {
  return roles, nil
}

func (f *fakeRoleRepo) GetByIDs(ctx context.Context, tx *gorm.DB, roleIDs []uuid.UUID) ([]*types.Role, error) {
  var results []*types.Role
  for _, id := range roleIDs {
    if role, ok := f.roles[id]; ok {
      results = append(results, role)
    }
  }
  return results, nil
}

func (f *fakeRoleRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Role, error) {
  for _, role := range f.roles {
    if role.Name == name {
      return role, nil
    }
  }
  return nil, nil
}

func (f *fakeRoleRepo) AssociatePermissionsByIDs(ctx context.Context, tx *gorm.DB, roleIDs, permissionIDs []uuid.UUID) error {
  return nil
}

func testLogger(t *testing.T) *logger.Logger {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("failed to build test logger: %v", err)
  }
  return log
}

func permissionRouter(t *testing.T, role *types.Role, roleName string, handlerRan *bool) *gin.Engine {
  t.Helper()
  gin.SetMode(gin.TestMode)

  rd := &requestdata.RequestData{
    TokenString: "token",
    UserID:      uuid.New(),
    Role:        roleName,
  }
  roleRepo := &fakeRoleRepo{roles: map[uuid.UUID]*types.Role{}}
  if role != nil {
    rd.RoleID = role.ID
    roleRepo.roles[role.ID] = role
  }

  am := NewAuthMiddleware(testLogger(t), &fakeAuthService{rd: rd}, roleRepo)

  router := gin.New()
  router.DELETE("/chats/:id",
    am.RequireAuth(),
    am.RequirePermission("chat.delete"),
    func(c *gin.Context) {
      *handlerRan = true
      c.JSON(http.StatusOK, gin.H{"deleted": true})
    })
  return router
}

func performDelete(router *gin.Engine) *httptest.ResponseRecorder {
  req := httptest.NewRequest(http.MethodDelete, "/chats/"+uuid.New().String(), nil)
  req.Header.Set("Authorization", "Bearer token")
  w := httptest.NewRecorder()
  router.ServeHTTP(w, req)
  return w
}

func TestRequirePermissionBlocksHandlerWithoutPermission(t *testing.T) {
  role := &types.Role{Name: "user"}
  role.ID = uuid.New()

  handlerRan := false
  router := permissionRouter(t, role, "user", &handlerRan)

  w := performDelete(router)
  assert.Equal(t, http.StatusForbidden, w.Code)
  assert.False(t, handlerRan, "the protected handler must not run before the permission check")
  assert.Contains(t, w.Body.String(), "insufficient permissions")
}

func TestRequirePermissionAllowsGrantedRole(t *testing.T) {
  perm := &types.Permission{Name: "chat.delete", PermissionType: "chat.delete"}
  role := &types.Role{Name: "user", Permissions: []*types.Permission{perm}}
  role.ID = uuid.New()

  handlerRan := false
  router := permissionRouter(t, role, "user", &handlerRan)

  w := performDelete(router)
  require.Equal(t, http.StatusOK, w.Code)
  assert.True(t, handlerRan)
}

func TestRequirePermissionAdminBypass(t *testing.T) {
  handlerRan := false
  router := permissionRouter(t, nil, "admin", &handlerRan)

  w := performDelete(router)
  require.Equal(t, http.StatusOK, w.Code)
  assert.True(t, handlerRan)
}

func TestRequirePermissionMissingRole(t *testing.T) {
  handlerRan := false
  router := permissionRouter(t, nil, "user", &handlerRan)

  w := performDelete(router)
  assert.Equal(t, http.StatusForbidden, w.Code)
  assert.False(t, handlerRan)
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
  handlerRan := false
  router := permissionRouter(t, nil, "user", &handlerRan)

  req := httptest.NewRequest(http.MethodDelete, "/chats/"+uuid.New().String(), nil)
  w := httptest.NewRecorder()
  router.ServeHTTP(w, req)

  assert.Equal(t, http.StatusUnauthorized, w.Code)
  assert.False(t, handlerRan)
}
