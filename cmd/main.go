package main

import (
  "fmt"
  "os"
  "strings"
  "time"

  "github.com/studyhall-org/studyhall-backend/internal/db"
  "github.com/studyhall-org/studyhall-backend/internal/handlers"
  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/middleware"
  "github.com/studyhall-org/studyhall-backend/internal/repos"
  "github.com/studyhall-org/studyhall-backend/internal/seed"
  "github.com/studyhall-org/studyhall-backend/internal/server"
  "github.com/studyhall-org/studyhall-backend/internal/services"
  "github.com/studyhall-org/studyhall-backend/internal/socket"
  "github.com/studyhall-org/studyhall-backend/internal/utils"
)

func main() {
  // Logger Setup
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Environment Variables
  log.Info("Attempting to load environment variables for Main now...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
  redisAddress := utils.GetEnv("REDIS_ADDRESS", "localhost:6379", log)
  redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
  adminChatAccess := utils.GetEnv("ADMIN_CHAT_ACCESS", "false", log) == "true"
  adminExport := utils.GetEnv("ADMIN_EXPORT", "false", log) == "true"
  allowOrigins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log), ",")

  // Postgres Setup
  log.Info("Setting Up Postgres from Main now...")
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("DB init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()
  log.Info("Postgres Setup From Main Successful :)")

  // Repositories Setup
  log.Info("Setting Up Repositories from Main now...")
  userRepo := repos.NewUserRepo(thePG, log)
  permissionRepo := repos.NewPermissionRepo(thePG, log)
  roleRepo := repos.NewRoleRepo(thePG, log)
  userTokenRepo := repos.NewUserTokenRepo(thePG, log)
  chatRepo := repos.NewChatRepo(thePG, log)
  sharedChatRepo := repos.NewSharedChatRepo(thePG, log)
  tagRepo := repos.NewTagRepo(thePG, log)
  folderRepo := repos.NewFolderRepo(thePG, log)
  log.Info("Repositories Set Up From Main Successful :)")

  // Seed Setup
  log.Info("Attempting to Seed The Postgres From Main now...")
  if err := seed.SeedAll(thePG, permissionRepo, roleRepo); err != nil {
    log.Warn("Failed to seed data :(", "error", err)
  }
  log.Info("Seeding of Postgres From Main Successful :)")

  // Websocket Setup
  log.Info("Setting Up Websocket Hub From Main Now :)")
  wsHub := socket.NewHub(log)
  log.Info("Websocket Hub Set Up From Main Successful :)")

  // Redis PubSub
  log.Info("Setting Up Redis PubSub From Main Now :)")
  redisChanName := "studyhall_hub_broadcast"
  redisPubSub, err := socket.NewRedisPubSub(log, redisAddress, redisPassword, redisChanName)
  if err != nil {
    log.Warn("Failed to init redis pubsub", "error", err)
  } else {
    if err := redisPubSub.StartSubscriber(wsHub); err != nil {
      log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
    } else {
      wsHub.SetRedisPubSub(redisPubSub)
      log.Info("Redis pubsub is active!")
    }
  }

  // Services Setup
  log.Info("Setting up Services from Main now...")
  authService := services.NewAuthService(thePG, log, userRepo, roleRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
  meService := services.NewMeService(thePG, log, userRepo, roleRepo)
  tagService := services.NewTagService(log, chatRepo, tagRepo)
  chatService := services.NewChatService(log, chatRepo, sharedChatRepo, folderRepo, tagService, wsHub, adminChatAccess, adminExport)
  insightsService := services.NewInsightsService(log, chatRepo, tagService)
  log.Info("Services Set Up From Main Successful :)")

  // Handler Setup
  log.Info("Setting Up Handlers from Main now...")
  authHandler := handlers.NewAuthHandler(authService)
  meHandler := handlers.NewMeHandler(meService)
  chatHandler := handlers.NewChatHandler(chatService, tagService)
  tagHandler := handlers.NewTagHandler(tagService)
  insightsHandler := handlers.NewInsightsHandler(insightsService)
  wsHandler := handlers.WsHandler(wsHub, log)
  log.Info("Handlers Set Up From Main Successful :)")

  // Middleware Setup
  authMiddleware := middleware.NewAuthMiddleware(log, authService, roleRepo)

  // Router Setup
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:     authHandler,
    AuthMiddleware:  authMiddleware,
    MeHandler:       meHandler,
    ChatHandler:     chatHandler,
    TagHandler:      tagHandler,
    InsightsHandler: insightsHandler,
    WsHandler:       wsHandler,
    AllowOrigins:    allowOrigins,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }

  // On Shutdown
  if redisPubSub != nil {
    redisPubSub.Stop()
  }
}
