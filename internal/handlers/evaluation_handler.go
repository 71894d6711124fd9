package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/evaluation-service/internal/services"
	"github.com/SAP-F-2025/evaluation-service/internal/utils"
	"github.com/SAP-F-2025/evaluation-service/internal/validator"
)

type EvaluationHandler struct {
	BaseHandler
	evaluationService services.EvaluationService
	validator         *validator.Validator
}

func NewEvaluationHandler(
	evaluationService services.EvaluationService,
	v *validator.Validator,
	logger utils.Logger,
) *EvaluationHandler {
	return &EvaluationHandler{
		BaseHandler:       NewBaseHandler(logger),
		evaluationService: evaluationService,
		validator:         v,
	}
}

// ListEvaluations lists evaluations with optional filtering
// @Summary List evaluations
// @Tags evaluations
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param status query string false "Filter by status"
// @Param cycle_id query int false "Filter by cycle"
// @Param professor_id query string false "Filter by professor"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /evaluations [get]
func (h *EvaluationHandler) ListEvaluations(c *gin.Context) {
	filters := h.parseEvaluationFilters(c)

	evaluations, total, err := h.evaluationService.ListEvaluations(c.Request.Context(), filters)
	if err != nil {
		h.LogError(c, err, "Failed to list evaluations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list evaluations",
			Details: err.Error(),
		})
		return
	}

	page := (filters.Offset / max(filters.Limit, 1)) + 1

	c.JSON(http.StatusOK, map[string]interface{}{
		"evaluations": evaluations,
		"total":       total,
		"page":        page,
		"size":        filters.Limit,
	})
}

// ListMyEvaluations lists evaluations for the authenticated professor
// @Summary List own evaluations
// @Tags evaluations
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /evaluations/me [get]
func (h *EvaluationHandler) ListMyEvaluations(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	filters := h.parseEvaluationFilters(c)
	filters.ProfessorID = &userID

	evaluations, total, err := h.evaluationService.ListEvaluations(c.Request.Context(), filters)
	if err != nil {
		h.LogError(c, err, "Failed to list evaluations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list evaluations",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"evaluations": evaluations,
		"total":       total,
	})
}

// SubmitResponse records the authenticated student's answers for an
// evaluation
// @Summary Submit evaluation response
// @Tags evaluations
// @Accept json
// @Produce json
// @Param request body validator.ResponseSubmitRequest true "Answers"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /evaluations/responses [post]
func (h *EvaluationHandler) SubmitResponse(c *gin.Context) {
	var req validator.ResponseSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	studentID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Submitting evaluation response",
		"evaluation_id", req.EvaluationID, "student_id", studentID)

	if err := h.evaluationService.SubmitResponse(c.Request.Context(), studentID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Response recorded",
	})
}

// ===== HELPER METHODS =====

func (h *EvaluationHandler) parseEvaluationFilters(c *gin.Context) repositories.EvaluationFilters {
	page := 1
	size := 10

	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if sizeStr := c.Query("size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
			size = s
		}
	}

	filters := repositories.EvaluationFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if status := c.Query("status"); status != "" {
		evaluationStatus := models.EvaluationStatus(status)
		filters.Status = &evaluationStatus
	}
	if cycleIDStr := c.Query("cycle_id"); cycleIDStr != "" {
		if cycleID, err := strconv.ParseUint(cycleIDStr, 10, 32); err == nil {
			id := uint(cycleID)
			filters.CycleID = &id
		}
	}
	if professorID := c.Query("professor_id"); professorID != "" {
		filters.ProfessorID = &professorID
	}

	return filters
}

func (h *EvaluationHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: permissionError.Message,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrEvaluationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Evaluation not found",
		})
	case errors.Is(err, services.ErrCycleEnded):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Evaluation cycle already ended",
		})
	case errors.Is(err, services.ErrAlreadyResponded):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Response already recorded for this evaluation",
		})
	default:
		h.LogError(c, err, "Evaluation operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Details: err.Error(),
		})
	}
}
