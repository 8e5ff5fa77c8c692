package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/roleai-app/roleai/internal/chat"
	"github.com/roleai-app/roleai/internal/common"
	"github.com/roleai-app/roleai/internal/httpapi/middleware"
)

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func (h *Handler) ListChatSessions(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessions, err := h.ChatSvc.ListSessions(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to list sessions")
		return
	}
	common.OK(c, gin.H{"sessions": sessions})
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}
	common.OK(c, gin.H{"id": sess.ID, "title": sess.Title})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessionID := c.Param("id")
	msgs, err := h.ChatSvc.GetMessages(c.Request.Context(), uid, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

type addMessageReq struct {
	Sender  string  `json:"sender" binding:"required"`
	Content string  `json:"content" binding:"required"`
	RoleID  *uint64 `json:"roleId"`
}

func (h *Handler) AddChatMessage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req addMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sender := strings.ToLower(strings.TrimSpace(req.Sender))
	if sender != chat.SenderUser && sender != chat.SenderAI {
		common.Fail(c, http.StatusBadRequest, 10002, "sender must be 'user' or 'ai'")
		return
	}

	sessionID := c.Param("id")
	msg, err := h.ChatSvc.AddMessage(c.Request.Context(), uid, sessionID, sender, req.Content, req.RoleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to add message")
		return
	}
	common.OK(c, msg)
}

func (h *Handler) DeleteChatSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessionID := c.Param("id")
	if err := h.ChatSvc.DeleteSession(c.Request.Context(), uid, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to delete session")
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

type generateReq struct {
	RoleID        uint64  `json:"roleId" binding:"required"`
	Message       string  `json:"message" binding:"required"`
	Model         string  `json:"model"`
	ModelConfigID *uint64 `json:"modelConfigId"`
	SessionID     string  `json:"sessionId"`
}

func (h *Handler) GenerateReply(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "roleId and message are required")
		return
	}

	reply, err := h.Gen.Generate(c.Request.Context(), uid, chat.GenerateRequest{
		RoleID:        req.RoleID,
		Message:       req.Message,
		Model:         req.Model,
		ModelConfigID: req.ModelConfigID,
		SessionID:     req.SessionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrRoleNotFound):
			common.Fail(c, http.StatusBadRequest, 10030, "role not found")
		case errors.Is(err, chat.ErrConfigNotFound):
			common.Fail(c, http.StatusBadRequest, 10031, "model config not found")
		case errors.Is(err, chat.ErrSessionNotFound):
			common.Fail(c, http.StatusBadRequest, 10032, "session not found")
		default:
			common.Fail(c, http.StatusInternalServerError, 50005, "failed to generate reply: "+err.Error())
		}
		return
	}

	common.OK(c, gin.H{"reply": reply})
}
