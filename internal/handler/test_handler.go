package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/middleware"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/response"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/service"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/validator"
)

// TestHandler handles test lifecycle endpoints: creation, retrieval,
// audio submission and grading status polls.
type TestHandler struct {
	testService  *service.TestService
	userService  *service.UserService
	audioService *service.AudioService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(
	testService *service.TestService,
	userService *service.UserService,
	audioService *service.AudioService,
) *TestHandler {
	return &TestHandler{
		testService:  testService,
		userService:  userService,
		audioService: audioService,
	}
}

// CreateTest godoc
// POST /api/v1/tests
// Assembles a new test of the requested type from the question pool.
func (h *TestHandler) CreateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), user, req.TestType)
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

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// ListTests godoc
// GET /api/v1/tests
// Returns the user's test history without item details.
func (h *TestHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tests, err := h.testService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// GetTest godoc
// GET /api/v1/tests/:test_id
// Returns a single test with all items, scores and feedback.
func (h *TestHandler) GetTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.testService.Get(c.Request.Context(), testID, claims.UserID)
	if errors.Is(err, service.ErrTestNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// DeleteTest godoc
// DELETE /api/v1/tests/:test_id
// Removes a test and its items.
func (h *TestHandler) DeleteTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	err = h.testService.Delete(c.Request.Context(), testID, claims.UserID)
	if errors.Is(err, service.ErrTestNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetTestStatus godoc
// GET /api/v1/tests/:test_id/status
// Returns the per-slot grading statuses and the aggregate status.
// Clients poll this endpoint; the WebSocket stream is the push variant.
func (h *TestHandler) GetTestStatus(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	status, err := h.testService.Status(c.Request.Context(), testID, claims.UserID)
	if errors.Is(err, service.ErrTestNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// SubmitAudio godoc
// POST /api/v1/tests/:test_id/items/:slot/audio
// Accepts a recorded answer for one slot and queues the grading job.
// Multipart form: "audio" (file), "is_last" (optional, "true" marks the
// final submission of the test and triggers aggregate feedback once the
// item finishes).
func (h *TestHandler) SubmitAudio(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil || slot < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	isLast, _ := strconv.ParseBool(c.PostForm("is_last"))

	audioPath, err := h.audioService.SaveUpload(file, header)
	if errors.Is(err, service.ErrUnsupportedAudioType) {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		return
	}
	if errors.Is(err, service.ErrAudioTooLarge) {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	err = h.testService.Submit(c.Request.Context(), testID, claims.UserID, slot, audioPath, isLast)
	switch {
	case errors.Is(err, service.ErrTestNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrSlotNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrItemNotGradable):
		response.Fail(c, http.StatusConflict, response.ErrItemInProgress)
	case err != nil:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	default:
		response.Success(c, http.StatusAccepted, gin.H{
			"test_id": testID.String(),
			"slot":    slot,
			"status":  model.ItemStatusTranscribing,
		})
	}
}
