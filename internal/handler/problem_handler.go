package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/middleware"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/response"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/service"
)

// ProblemHandler serves the single-problem practice flow.
type ProblemHandler struct {
	testService *service.TestService
}

// NewProblemHandler creates a new ProblemHandler.
func NewProblemHandler(testService *service.TestService) *ProblemHandler {
	return &ProblemHandler{testService: testService}
}

// RandomProblem godoc
// GET /api/v1/problems/random
// Draws one random problem for ad-hoc practice. Counts against the
// random-problem quota.
func (h *ProblemHandler) RandomProblem(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	problem, err := h.testService.RandomProblem(c.Request.Context(), claims.UserID)
	if errors.Is(err, service.ErrQuotaExceeded) {
		response.Fail(c, http.StatusForbidden, response.ErrQuotaExceeded)
		return
	}
	if errors.Is(err, service.ErrPoolExhausted) {
		response.Fail(c, http.StatusConflict, response.ErrPoolExhausted)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"problem": problem})
}
