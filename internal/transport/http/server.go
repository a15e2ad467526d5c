package http

import (
	"github.com/gin-gonic/gin"

	"resume-agent/internal/bootstrap"
	"resume-agent/internal/transport/http/handler"
	"resume-agent/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	sessionHandler := handler.NewSessionHandler(app)
	chatHandler := handler.NewChatHandler(app)
	adminHandler := handler.NewAdminHandler(app)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(app.Limiter))

	v1.POST("/session", sessionHandler.Create)
	v1.POST("/chat", chatHandler.Send)
	v1.POST("/chat/stream", chatHandler.Stream)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(middleware.AdminKey(app.Config.Admin.APIKey))
	adminGroup.GET("/analytics", adminHandler.Analytics)
	adminGroup.GET("/sessions", adminHandler.Sessions)

	return router
}
