package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/evaluation-service/internal/services"
	"github.com/SAP-F-2025/evaluation-service/internal/utils"
	"github.com/SAP-F-2025/evaluation-service/internal/validator"
)

type CycleHandler struct {
	BaseHandler
	evaluationService services.EvaluationService
	validator         *validator.Validator
}

func NewCycleHandler(
	evaluationService services.EvaluationService,
	v *validator.Validator,
	logger utils.Logger,
) *CycleHandler {
	return &CycleHandler{
		BaseHandler:       NewBaseHandler(logger),
		evaluationService: evaluationService,
		validator:         v,
	}
}

// CreateCycle creates a new evaluation cycle
// @Summary Create evaluation cycle
// @Tags cycles
// @Accept json
// @Produce json
// @Param cycle body validator.CycleCreateRequest true "Cycle data"
// @Success 201 {object} models.EvaluationCycle
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /cycles [post]
func (h *CycleHandler) CreateCycle(c *gin.Context) {
	var req validator.CycleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Creating evaluation cycle", "name", req.Name)

	cycle, err := h.evaluationService.CreateCycle(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cycle)
}

// GetCycle retrieves an evaluation cycle by ID
// @Summary Get evaluation cycle
// @Tags cycles
// @Produce json
// @Param id path uint true "Cycle ID"
// @Success 200 {object} models.EvaluationCycle
// @Failure 404 {object} ErrorResponse
// @Router /cycles/{id} [get]
func (h *CycleHandler) GetCycle(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	cycle, err := h.evaluationService.GetCycle(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cycle)
}

// UpdateCycle updates an evaluation cycle
// @Summary Update evaluation cycle
// @Tags cycles
// @Accept json
// @Produce json
// @Param id path uint true "Cycle ID"
// @Param cycle body validator.CycleUpdateRequest true "Cycle update data"
// @Success 200 {object} models.EvaluationCycle
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /cycles/{id} [put]
func (h *CycleHandler) UpdateCycle(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.CycleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Updating evaluation cycle", "cycle_id", id)

	cycle, err := h.evaluationService.UpdateCycle(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cycle)
}

// ListCycles lists evaluation cycles with optional filtering
// @Summary List evaluation cycles
// @Tags cycles
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param active query bool false "Only cycles active right now"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /cycles [get]
func (h *CycleHandler) ListCycles(c *gin.Context) {
	filters := h.parseCycleFilters(c)

	cycles, total, err := h.evaluationService.ListCycles(c.Request.Context(), filters)
	if err != nil {
		h.LogError(c, err, "Failed to list cycles")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list cycles",
			Details: err.Error(),
		})
		return
	}

	page := (filters.Offset / max(filters.Limit, 1)) + 1

	c.JSON(http.StatusOK, map[string]interface{}{
		"cycles": cycles,
		"total":  total,
		"page":   page,
		"size":   filters.Limit,
	})
}

// GetCycleStats returns the per-cycle progress summary
// @Summary Get cycle statistics
// @Tags cycles
// @Produce json
// @Param id path uint true "Cycle ID"
// @Success 200 {object} services.CycleStatsResponse
// @Failure 404 {object} ErrorResponse
// @Router /cycles/{id}/stats [get]
func (h *CycleHandler) GetCycleStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	stats, err := h.evaluationService.GetCycleStats(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// AttachSections adds sections to a cycle and generates their evaluations
// @Summary Attach sections to cycle
// @Tags cycles
// @Accept json
// @Produce json
// @Param id path uint true "Cycle ID"
// @Param request body validator.SectionsChangeRequest true "Section IDs"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /cycles/{id}/sections [post]
func (h *CycleHandler) AttachSections(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.SectionsChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Attaching sections to cycle",
		"cycle_id", id, "sections", len(req.SectionIDs))

	messages, err := h.evaluationService.AttachSections(c.Request.Context(), id, req.SectionIDs, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Sections attached",
		Data:    gin.H{"changes": messages},
	})
}

// DetachSections removes sections from a cycle. Evaluations with recorded
// responses are kept.
// @Summary Detach sections from cycle
// @Tags cycles
// @Accept json
// @Produce json
// @Param id path uint true "Cycle ID"
// @Param request body validator.SectionsChangeRequest true "Section IDs"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /cycles/{id}/sections [delete]
func (h *CycleHandler) DetachSections(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.SectionsChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Detaching sections from cycle",
		"cycle_id", id, "sections", len(req.SectionIDs))

	messages, err := h.evaluationService.DetachSections(c.Request.Context(), id, req.SectionIDs, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Sections detached",
		Data:    gin.H{"changes": messages},
	})
}

// Backfill creates any evaluation missing for the cycle's current sections
// @Summary Backfill cycle evaluations
// @Tags cycles
// @Produce json
// @Param id path uint true "Cycle ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /cycles/{id}/backfill [post]
func (h *CycleHandler) Backfill(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Backfilling cycle evaluations", "cycle_id", id)

	created, err := h.evaluationService.Backfill(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Backfill completed",
		Data:    gin.H{"evaluations_created": created},
	})
}

// ===== HELPER METHODS =====

func (h *CycleHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: err.Error(),
		})
		return 0
	}
	return uint(id)
}

func (h *CycleHandler) parseCycleFilters(c *gin.Context) repositories.CycleFilters {
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

	filters := repositories.CycleFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if c.Query("active") == "true" {
		now := time.Now()
		filters.ActiveAt = &now
	}
	if creator := c.Query("created_by"); creator != "" {
		filters.CreatedBy = &creator
	}

	return filters
}

func (h *CycleHandler) handleServiceError(c *gin.Context, err error) {
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
	case errors.Is(err, services.ErrCycleNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Evaluation cycle not found",
		})
	case errors.Is(err, services.ErrSectionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Class section not found",
		})
	case errors.Is(err, services.ErrQuestionnaireNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Questionnaire not found",
		})
	case errors.Is(err, services.ErrCycleEnded):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Evaluation cycle already ended",
		})
	default:
		h.LogError(c, err, "Cycle operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Details: err.Error(),
		})
	}
}
