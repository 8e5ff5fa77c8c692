package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/roleai-app/roleai/internal/common"
	"github.com/roleai-app/roleai/internal/role"
)

type roleReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func roleIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil
}

func (h *Handler) ListRoles(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	roles, err := h.RoleSvc.List(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50010, "failed to fetch roles")
		return
	}
	common.OK(c, gin.H{"roles": roles})
}

func (h *Handler) GetRole(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id, okk := roleIDParam(c)
	if !okk {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid role id")
		return
	}
	r, err := h.RoleSvc.Get(c.Request.Context(), uid, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40410, "role not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50010, "failed to fetch role")
		return
	}
	common.OK(c, r)
}

func (h *Handler) CreateRole(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	var req roleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	r, err := h.RoleSvc.Create(c.Request.Context(), uid, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, role.ErrInvalidRole) {
			common.Fail(c, http.StatusBadRequest, 10002, "name and description are required")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50011, "failed to create role")
		return
	}
	common.OK(c, r)
}

func (h *Handler) UpdateRole(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id, okk := roleIDParam(c)
	if !okk {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid role id")
		return
	}
	var req roleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	r, err := h.RoleSvc.Update(c.Request.Context(), uid, id, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40410, "role not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50012, "failed to update role")
		return
	}
	common.OK(c, r)
}

func (h *Handler) DeleteRole(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id, okk := roleIDParam(c)
	if !okk {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid role id")
		return
	}
	if err := h.RoleSvc.Delete(c.Request.Context(), uid, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40410, "role not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50013, "failed to delete role")
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

func (h *Handler) SearchRoles(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	roles, err := h.RoleSvc.Search(c.Request.Context(), uid, c.Query("query"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50010, "failed to search roles")
		return
	}
	common.OK(c, gin.H{"roles": roles})
}

// FindSimilarRoles ranks the user's roles against a plain-text description
// sent as the request body.
func (h *Handler) FindSimilarRoles(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 16*1024))
	if err != nil || strings.TrimSpace(string(raw)) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "description body is required")
		return
	}

	limit := 5
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	matches, err := h.RoleSvc.FindSimilar(c.Request.Context(), uid, string(raw), limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50014, "similarity search failed")
		return
	}
	common.OK(c, gin.H{"matches": matches})
}
