package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/middleware"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/response"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/service"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/validator"
)

// ScriptHandler handles practice-script endpoints.
type ScriptHandler struct {
	scriptService *service.ScriptService
}

// NewScriptHandler creates a new ScriptHandler.
func NewScriptHandler(scriptService *service.ScriptService) *ScriptHandler {
	return &ScriptHandler{scriptService: scriptService}
}

// GenerateScript godoc
// POST /api/v1/scripts
// Generates a model practice script for a problem. Counts against the
// script quota.
func (h *ScriptHandler) GenerateScript(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.GenerateScriptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	problemID, err := uuid.Parse(req.ProblemID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	script, err := h.scriptService.Generate(c.Request.Context(), claims.UserID, problemID)
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		response.Fail(c, http.StatusForbidden, response.ErrQuotaExceeded)
	case errors.Is(err, service.ErrScriptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case err != nil:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	default:
		response.Success(c, http.StatusCreated, gin.H{"script": script})
	}
}

// ListScripts godoc
// GET /api/v1/scripts
// Returns all of the user's scripts, transcripts and generated answers alike.
func (h *ScriptHandler) ListScripts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	scripts, err := h.scriptService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"scripts": scripts})
}

// GetScript godoc
// GET /api/v1/scripts/:script_id
func (h *ScriptHandler) GetScript(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	scriptID, err := uuid.Parse(c.Param("script_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	script, err := h.scriptService.Get(c.Request.Context(), scriptID, claims.UserID)
	if errors.Is(err, service.ErrScriptNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"script": script})
}

// UpdateScript godoc
// PUT /api/v1/scripts/:script_id
// Edits a script's content. Both transcripts and generated scripts stay
// editable for practice.
func (h *ScriptHandler) UpdateScript(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	scriptID, err := uuid.Parse(c.Param("script_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateScriptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err = h.scriptService.Update(c.Request.Context(), scriptID, claims.UserID, req.Content)
	if errors.Is(err, service.ErrScriptNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
