package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/studyhall-org/studyhall-backend/internal/handlers"
  "github.com/studyhall-org/studyhall-backend/internal/middleware"
)

type RouterConfig struct {
  AuthHandler       *handlers.AuthHandler
  AuthMiddleware    *middleware.AuthMiddleware
  MeHandler         *handlers.MeHandler
  ChatHandler       *handlers.ChatHandler
  TagHandler        *handlers.TagHandler
  InsightsHandler   *handlers.InsightsHandler
  WsHandler         gin.HandlerFunc
  AllowOrigins      []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  //-----------------------------------------
  // Cors Setup
  //-----------------------------------------
  origins := cfg.AllowOrigins
  if len(origins) == 0 {
    origins = []string{"http://localhost:3000"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  //-----------------------------------------
  // Health Routes
  //-----------------------------------------
  router.GET("/healthz", handlers.Healthz)

  //-----------------------------------------
  // Public Routes
  //-----------------------------------------
  api := router.Group("/api")
  {
    api.POST("/register", cfg.AuthHandler.Register)
    api.POST("/login", cfg.AuthHandler.Login)
    api.POST("/refresh", cfg.AuthHandler.Refresh)
  }

  //------------------------------------------
  // Protected Routes
  //------------------------------------------
  protected := api.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  protected.POST("/logout", cfg.AuthHandler.Logout)
  protected.GET("/ws", cfg.WsHandler)

  //Me
  protected.GET("/me", cfg.MeHandler.GetMe)
  protected.GET("/myrole", cfg.MeHandler.GetMyRole)

  //Chats
  chats := protected.Group("/chats")
  {
    chats.GET("", cfg.ChatHandler.List)
    chats.DELETE("", cfg.ChatHandler.DeleteAll)
    chats.POST("/new", cfg.ChatHandler.Create)
    chats.POST("/import", cfg.ChatHandler.Import)
    chats.GET("/search", cfg.ChatHandler.Search)
    chats.GET("/pinned", cfg.ChatHandler.ListPinned)
    chats.GET("/archived", cfg.ChatHandler.ListArchived)
    chats.POST("/archive/all", cfg.ChatHandler.ArchiveAll)
    chats.GET("/folder/:folder_id", cfg.ChatHandler.ListByFolder)

    // Admin surface
    chats.GET("/all/db", cfg.ChatHandler.ListAllForExport)
    chats.GET("/list/user/:user_id", cfg.ChatHandler.ListByUserID)

    // Share resolution lives above the :id routes so "share" is never
    // parsed as a chat id.
    chats.GET("/share/:share_id", cfg.ChatHandler.GetShared)
    chats.POST("/share/:share_id/clone", cfg.ChatHandler.CloneShared)

    chats.GET("/:id", cfg.ChatHandler.Get)
    chats.POST("/:id", cfg.ChatHandler.Update)
    chats.DELETE("/:id", cfg.AuthMiddleware.RequirePermission("chat.delete"), cfg.ChatHandler.Delete)
    chats.GET("/:id/pinned", cfg.ChatHandler.PinnedStatus)
    chats.POST("/:id/pin", cfg.ChatHandler.TogglePin)
    chats.POST("/:id/archive", cfg.ChatHandler.ToggleArchive)
    chats.POST("/:id/share", cfg.AuthMiddleware.RequirePermission("chat.share"), cfg.ChatHandler.Share)
    chats.DELETE("/:id/share", cfg.AuthMiddleware.RequirePermission("chat.share"), cfg.ChatHandler.Unshare)
    chats.POST("/:id/clone", cfg.ChatHandler.Clone)
    chats.POST("/:id/folder", cfg.ChatHandler.MoveToFolder)
    chats.GET("/:id/tags", cfg.ChatHandler.ListChatTags)
    chats.POST("/:id/tags", cfg.ChatHandler.AddChatTag)
    chats.DELETE("/:id/tags", cfg.ChatHandler.RemoveChatTag)
    chats.DELETE("/:id/tags/all", cfg.ChatHandler.RemoveAllChatTags)
    chats.POST("/:id/messages/:message_id", cfg.ChatHandler.UpdateMessage)
    chats.POST("/:id/messages/:message_id/event", cfg.ChatHandler.SendMessageEvent)
  }

  //Tags
  tags := protected.Group("/tags")
  {
    tags.GET("", cfg.TagHandler.ListMyTags)
    tags.POST("/chats", cfg.TagHandler.ChatsByTag)
  }

  //Insights
  insights := protected.Group("/insights")
  {
    insights.POST("/chats/:id/summarize", cfg.InsightsHandler.Summarize)
    insights.POST("/chats/:id/summary", cfg.InsightsHandler.UpdateSummary)
    insights.POST("/chats/:id/mistake", cfg.InsightsHandler.ToggleMistake)
    insights.GET("/mistakes", cfg.InsightsHandler.ListMistakes)
    insights.GET("/statistics", cfg.InsightsHandler.Statistics)
    insights.GET("/statistics/subjects", cfg.InsightsHandler.StatisticsBySubject)
    insights.POST("/search", cfg.InsightsHandler.SearchByMetadata)
  }

  return router
}
