package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/roleai-app/roleai/internal/common"
	"github.com/roleai-app/roleai/internal/config"
	"github.com/roleai-app/roleai/internal/httpapi/handlers"
	"github.com/roleai-app/roleai/internal/httpapi/middleware"
	"github.com/roleai-app/roleai/internal/role"
	"github.com/roleai-app/roleai/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, indexer role.IndexPublisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, indexer)

	r.GET("/ping", h.Ping)

	// auth, no token required
	auth := r.Group("/api/auth")
	auth.POST("/signup", h.Signup)
	auth.POST("/login", h.Login)
	auth.POST("/forgot-password", h.ForgotPassword)
	auth.POST("/verify-reset-code", h.VerifyResetCode)
	auth.POST("/reset-password", h.ResetPassword)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(cfg.JWTSecret))

	api.GET("/me", h.Me)

	// roles
	api.GET("/roles", h.ListRoles)
	api.GET("/roles/search", h.SearchRoles)
	api.POST("/roles/similar", h.FindSimilarRoles)
	api.GET("/roles/:id", h.GetRole)
	api.POST("/roles", h.CreateRole)
	api.PUT("/roles/:id", h.UpdateRole)
	api.DELETE("/roles/:id", h.DeleteRole)

	// model configs
	api.GET("/models", h.ListModelConfigs)
	api.POST("/models", h.CreateModelConfig)
	api.PATCH("/models/:id", h.UpdateModelConfig)
	api.DELETE("/models/:id", h.DeleteModelConfig)

	// chat sessions and messages
	api.GET("/chats", h.ListChatSessions)
	api.POST("/chats/create", h.CreateChatSession)
	api.GET("/chats/:id/messages", h.ListChatMessages)
	api.POST("/chats/:id/messages", h.AddChatMessage)
	api.DELETE("/chats/:id", h.DeleteChatSession)

	// generation
	api.POST("/chat/generate", h.GenerateReply)

	return r
}
