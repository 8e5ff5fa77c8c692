package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roleai-app/roleai/internal/common"
	"github.com/roleai-app/roleai/internal/modelcfg"
)

type modelConfigReq struct {
	Provider string `json:"provider"`
	ModelID  string `json:"modelId"`
	Label    string `json:"label"`
	APIKey   string `json:"apiKey"`
}

func (h *Handler) ListModelConfigs(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	configs, err := h.ModelSvc.List(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50020, "failed to fetch model configs")
		return
	}
	out := make([]modelcfg.Sanitized, 0, len(configs))
	for i := range configs {
		out = append(out, configs[i].Sanitize())
	}
	common.OK(c, gin.H{"models": out})
}

func (h *Handler) CreateModelConfig(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	var req modelConfigReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	mc, err := h.ModelSvc.Create(c.Request.Context(), &uid, req.Provider, req.ModelID, req.Label, req.APIKey)
	if err != nil {
		if errors.Is(err, modelcfg.ErrMissingField) {
			common.Fail(c, http.StatusBadRequest, 10020, "modelId and apiKey are required")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50021, "failed to create model config")
		return
	}
	common.OK(c, mc.Sanitize())
}

// UpdateModelConfig applies a partial update. Omitted fields keep their
// stored values, including the credential when apiKey is blank.
func (h *Handler) UpdateModelConfig(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid config id")
		return
	}
	var req modelConfigReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	mc, err := h.ModelSvc.Update(c.Request.Context(), uid, id, req.Provider, req.ModelID, req.Label, req.APIKey)
	if err != nil {
		switch {
		case errors.Is(err, modelcfg.ErrNotFound):
			common.Fail(c, http.StatusNotFound, 40420, "model config not found")
		case errors.Is(err, modelcfg.ErrNotOwner):
			common.Fail(c, http.StatusForbidden, 40320, "model config belongs to another user")
		default:
			common.Fail(c, http.StatusInternalServerError, 50022, "failed to update model config")
		}
		return
	}
	common.OK(c, mc.Sanitize())
}

func (h *Handler) DeleteModelConfig(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid config id")
		return
	}
	if err := h.ModelSvc.Delete(c.Request.Context(), uid, id); err != nil {
		switch {
		case errors.Is(err, modelcfg.ErrNotFound):
			common.Fail(c, http.StatusNotFound, 40420, "model config not found")
		case errors.Is(err, modelcfg.ErrNotOwner):
			common.Fail(c, http.StatusForbidden, 40320, "model config belongs to another user")
		default:
			common.Fail(c, http.StatusInternalServerError, 50023, "failed to delete model config")
		}
		return
	}
	common.OK(c, gin.H{"deleted": true})
}
