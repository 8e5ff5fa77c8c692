package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/roleai-app/roleai/internal/ai"
	"github.com/roleai-app/roleai/internal/common"
	"github.com/roleai-app/roleai/internal/chat"
	"github.com/roleai-app/roleai/internal/config"
	"github.com/roleai-app/roleai/internal/email"
	"github.com/roleai-app/roleai/internal/keybox"
	"github.com/roleai-app/roleai/internal/modelcfg"
	"github.com/roleai-app/roleai/internal/role"
	"github.com/roleai-app/roleai/internal/store/redisstore"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	SMTPSetting email.SMTPConfig

	ChatSvc  *chat.Service
	RoleSvc  *role.Service
	ModelSvc *modelcfg.Service
	Gen      *chat.Generator
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, indexer role.IndexPublisher) *Handler {
	registry := ai.NewRegistry()
	registry.Register("gemini", func(_ context.Context, model, apiKey string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.GeminiModel
		}
		if apiKey == "" {
			apiKey = cfg.GeminiAPIKey
		}
		return ai.NewGeminiProvider(cfg.GeminiBaseURL, apiKey, m), nil
	})
	registry.Register("ollama", func(_ context.Context, model, _ string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	// Embeddings always go through Gemini with the server credential;
	// per-user model configs only influence chat generation.
	embedder := ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel)

	chatSvc := chat.NewService(chat.NewRepo(db))
	roleSvc := role.NewService(role.NewRepo(db), indexer, embedder)
	modelSvc := modelcfg.NewService(modelcfg.NewRepo(db), keybox.New(cfg.EncryptionSecret))
	defaultModel := cfg.GeminiModel
	defaultKey := cfg.GeminiAPIKey
	if strings.EqualFold(cfg.AIProvider, "ollama") {
		defaultModel = cfg.OllamaModel
		defaultKey = ""
	}
	gen := chat.NewGenerator(roleSvc, modelSvc, chatSvc, registry,
		cfg.AIProvider, defaultModel, defaultKey)

	return &Handler{
		DB:    db,
		Cfg:   cfg,
		Redis: rds,
		SMTPSetting: email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
		ChatSvc:  chatSvc,
		RoleSvc:  roleSvc,
		ModelSvc: modelSvc,
		Gen:      gen,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}
