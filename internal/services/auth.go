package services

import (
  "context"
  "fmt"
  "time"

  "golang.org/x/crypto/bcrypt"
  "gorm.io/gorm"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"

  "github.com/studyhall-org/studyhall-backend/internal/apperrors"
  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/normalization"
  "github.com/studyhall-org/studyhall-backend/internal/repos"
  "github.com/studyhall-org/studyhall-backend/internal/requestdata"
  "github.com/studyhall-org/studyhall-backend/internal/types"
  "github.com/studyhall-org/studyhall-backend/internal/utils"
)

type JWTClaims struct {
  jwt.RegisteredClaims
  RoleID    string    `json:"role_id,omitempty"`
  Role      string    `json:"role,omitempty"`
}

type AuthService interface {
  RegisterUser(ctx context.Context, user *types.User) error
  Login(ctx context.Context, email, password string) (string, string, error)
  Refresh(ctx context.Context, refreshToken string) (string, string, error)
  Logout(ctx context.Context, refreshToken string) error

  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)

  GetAccessTTL() time.Duration
}

type authService struct {
  db               *gorm.DB
  log              *logger.Logger
  userRepo         repos.UserRepo
  roleRepo         repos.RoleRepo
  userTokenRepo    repos.UserTokenRepo
  jwtSecretKey     string
  accessTTL        time.Duration
  refreshTTL       time.Duration
}

func NewAuthService(
  db *gorm.DB,
  log *logger.Logger,
  userRepo repos.UserRepo,
  roleRepo repos.RoleRepo,
  userTokenRepo repos.UserTokenRepo,
  jwtSecretKey string,
  accessTTL time.Duration,
  refreshTTL time.Duration,
) AuthService {
  return &authService{
    db:            db,
    log:           log.With("service", "AuthService"),
    userRepo:      userRepo,
    roleRepo:      roleRepo,
    userTokenRepo: userTokenRepo,
    jwtSecretKey:  jwtSecretKey,
    accessTTL:     accessTTL,
    refreshTTL:    refreshTTL,
  }
}

// RegisterUser creates an account with the default "user" role. Email
// uniqueness and field validation happen before the write.
func (as *authService) RegisterUser(ctx context.Context, user *types.User) error {
  utils.NormalizeUserFields(ctx, user)

  if vErr := utils.InputValidation(ctx, "registration", as.userRepo, as.log, user, "", ""); vErr != nil {
    return vErr
  }
  if hErr := utils.HashPassword(ctx, as.log, user); hErr != nil {
    return hErr
  }

  return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    defaultRole, rErr := as.roleRepo.GetByName(ctx, tx, "user")
    if rErr != nil {
      as.log.Warn("Failed to load default role, Cannot proceed. Returning error.", "error", rErr)
      return fmt.Errorf("failed to load default role: %w", rErr)
    }
    if defaultRole == nil {
      as.log.Warn("Default role 'user' does not exist, Cannot proceed.")
      return fmt.Errorf("default role 'user' does not exist")
    }
    user.ID = uuid.New()
    user.RoleID = &defaultRole.ID
    created, cErr := as.userRepo.Create(ctx, tx, []*types.User{user})
    if cErr != nil {
      as.log.Warn("Failed to create user, Cannot proceed. Returning error.", "error", cErr)
      return fmt.Errorf("failed to create user: %w", cErr)
    }
    if len(created) == 0 {
      return fmt.Errorf("failed to create user in DB")
    }
    return nil
  })
}

func (as *authService) Login(ctx context.Context, userEmail, userPassword string) (string, string, error) {
  email := normalization.ParseInputString(userEmail)
  password := normalization.ParseInputString(userPassword)

  if vErr := utils.InputValidation(ctx, "login", as.userRepo, as.log, &types.User{}, email, password); vErr != nil {
    return "", "", vErr
  }

  user, uErr := as.userRepo.GetByEmail(ctx, nil, email)
  if uErr != nil {
    as.log.Warn("Failed to retrieve user by email, Cannot proceed. Returning error.", "error", uErr)
    return "", "", apperrors.Unauthorized("invalid email or password")
  }
  if hErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); hErr != nil {
    as.log.Warn("Password mismatch on login, Cannot proceed. Returning error.")
    return "", "", apperrors.Unauthorized("invalid email or password")
  }

  var accessToken string
  var refreshToken string
  if err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    tok, genErr := as.generateAccessToken(ctx, tx, user)
    if genErr != nil {
      as.log.Warn("Generate Access Token Error, Cannot proceed. Returning error.", "error", genErr)
      return fmt.Errorf("generate access token error: %w", genErr)
    }
    accessToken = tok
    refreshToken = uuid.New().String()
    userToken := types.UserToken{
      ID:           uuid.New(),
      UserID:       user.ID,
      RefreshToken: refreshToken,
      ExpiresAt:    time.Now().Add(as.refreshTTL),
    }
    if _, cTErr := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{&userToken}); cTErr != nil {
      as.log.Warn("Create User Token Error, Cannot proceed. Returning error.", "error", cTErr)
      return fmt.Errorf("create user token error: %w", cTErr)
    }
    return nil
  }); err != nil {
    return "", "", err
  }
  return accessToken, refreshToken, nil
}

// Refresh rotates the refresh token: the old row is removed in the same
// transaction that records the new one.
func (as *authService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
  if refreshToken == "" {
    return "", "", apperrors.Unauthorized("refresh token is required")
  }

  var accessToken string
  var newRefreshToken string
  err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    existingToken, fTErr := as.userTokenRepo.GetByRefreshToken(ctx, tx, refreshToken)
    if fTErr != nil {
      as.log.Warn("Error fetching refresh token, Cannot proceed. Returning error.", "error", fTErr)
      return fmt.Errorf("error fetching refresh token: %w", fTErr)
    }
    if existingToken == nil {
      return apperrors.Unauthorized("unknown refresh token")
    }
    if existingToken.ExpiresAt.Before(time.Now()) {
      if dTErr := as.userTokenRepo.DeleteByRefreshToken(ctx, tx, refreshToken); dTErr != nil {
        as.log.Warn("Error deleting expired refresh token", "error", dTErr)
      }
      return apperrors.Unauthorized("refresh token expired")
    }

    users, uErr := as.userRepo.GetByIDs(ctx, tx, []uuid.UUID{existingToken.UserID})
    if uErr != nil {
      as.log.Warn("Failed to load user for refresh, Cannot proceed. Returning error.", "error", uErr)
      return fmt.Errorf("failed to load user for refresh: %w", uErr)
    }
    if len(users) == 0 {
      return apperrors.Unauthorized("no user found for refresh token")
    }
    user := users[0]

    tok, genErr := as.generateAccessToken(ctx, tx, user)
    if genErr != nil {
      as.log.Warn("Failed to generate new access token, Cannot proceed. Returning error.", "error", genErr)
      return fmt.Errorf("failed to generate new access token: %w", genErr)
    }
    accessToken = tok
    newRefreshToken = uuid.New().String()
    newUserToken := types.UserToken{
      ID:           uuid.New(),
      UserID:       user.ID,
      RefreshToken: newRefreshToken,
      ExpiresAt:    time.Now().Add(as.refreshTTL),
    }
    if _, cErr := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{&newUserToken}); cErr != nil {
      as.log.Warn("Failed to create new user token, Cannot proceed. Returning error.", "error", cErr)
      return fmt.Errorf("failed to create new user token: %w", cErr)
    }
    if dErr := as.userTokenRepo.DeleteByRefreshToken(ctx, tx, refreshToken); dErr != nil {
      as.log.Warn("Failed to remove old refresh token, Cannot proceed. Returning error.", "error", dErr)
      return fmt.Errorf("failed to remove old refresh token: %w", dErr)
    }
    return nil
  })
  if err != nil {
    return "", "", err
  }
  return accessToken, newRefreshToken, nil
}

func (as *authService) Logout(ctx context.Context, refreshToken string) error {
  if refreshToken == "" {
    return apperrors.InvalidArgument("refresh token is required")
  }
  if err := as.userTokenRepo.DeleteByRefreshToken(ctx, nil, refreshToken); err != nil {
    as.log.Warn("Error deleting user token, Cannot proceed. Returning error.", "error", err)
    return fmt.Errorf("error deleting user token: %w", err)
  }
  return nil
}

func (as *authService) generateAccessToken(ctx context.Context, tx *gorm.DB, user *types.User) (string, error) {
  var roleID string
  var roleName string
  if user.RoleID != nil && *user.RoleID != uuid.Nil {
    roleID = (*user.RoleID).String()
  }
  if user.Role != nil {
    roleName = user.Role.Name
  } else if user.RoleID != nil {
    roles, rErr := as.roleRepo.GetByIDs(ctx, tx, []uuid.UUID{*user.RoleID})
    if rErr != nil {
      return "", fmt.Errorf("failed to load role for token: %w", rErr)
    }
    if len(roles) > 0 {
      roleName = roles[0].Name
    }
  }
  claims := JWTClaims{
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   user.ID.String(),
      ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
      IssuedAt:  jwt.NewNumericDate(time.Now()),
    },
    RoleID: roleID,
    Role:   roleName,
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, nil
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, fmt.Errorf("failed to parse token: %w", err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, fmt.Errorf("invalid or expired JWT token")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, fmt.Errorf("invalid user ID in token: %w", err)
  }
  var roleID uuid.UUID
  if claims.RoleID != "" {
    roleID, err = uuid.Parse(claims.RoleID)
    if err != nil {
      return ctx, fmt.Errorf("invalid Role ID in token: %w", err)
    }
  }
  rd := &requestdata.RequestData{
    TokenString: tokenString,
    UserID:      userID,
    RoleID:      roleID,
    Role:        claims.Role,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
  return as.accessTTL
}
