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

// SectionHandler serves class sections, questionnaires and roster imports.
// Sections and questionnaires are simple enough that it talks to the
// repository directly, the same way user listing does.
type SectionHandler struct {
	BaseHandler
	repo               repositories.Repository
	maintenanceService services.MaintenanceService
	validator          *validator.Validator
}

func NewSectionHandler(
	repo repositories.Repository,
	maintenanceService services.MaintenanceService,
	v *validator.Validator,
	logger utils.Logger,
) *SectionHandler {
	return &SectionHandler{
		BaseHandler:        NewBaseHandler(logger),
		repo:               repo,
		maintenanceService: maintenanceService,
		validator:          v,
	}
}

// CreateSection creates a class section
// @Summary Create class section
// @Tags sections
// @Accept json
// @Produce json
// @Param section body validator.SectionCreateRequest true "Section data"
// @Success 201 {object} models.ClassSection
// @Failure 400 {object} ErrorResponse
// @Router /sections [post]
func (h *SectionHandler) CreateSection(c *gin.Context) {
	var req validator.SectionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if errs := h.validator.GetBusinessValidator().Validate(&req); errs.HasErrors() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: errs,
		})
		return
	}

	h.LogRequest(c, "Creating class section",
		"subject_id", req.SubjectID, "term_id", req.TermID, "shift", req.Shift)

	section := &models.ClassSection{
		SubjectID:   req.SubjectID,
		TermID:      req.TermID,
		Shift:       models.Shift(req.Shift),
		ProfessorID: req.ProfessorID,
	}

	if err := h.repo.Section().Create(c.Request.Context(), section); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Message: "Section already exists for this subject, term and shift",
			})
			return
		}
		h.LogError(c, err, "Failed to create section")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to create section",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, section)
}

// GetSection retrieves a class section by ID
// @Summary Get class section
// @Tags sections
// @Produce json
// @Param id path uint true "Section ID"
// @Success 200 {object} models.ClassSection
// @Failure 404 {object} ErrorResponse
// @Router /sections/{id} [get]
func (h *SectionHandler) GetSection(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	section, err := h.repo.Section().GetByID(c.Request.Context(), id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Message: "Class section not found",
			})
			return
		}
		h.LogError(c, err, "Failed to get section")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to get section",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, section)
}

// ListSections lists class sections with optional filtering
// @Summary List class sections
// @Tags sections
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param term_id query int false "Filter by term"
// @Param subject_id query int false "Filter by subject"
// @Param professor_id query string false "Filter by professor"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /sections [get]
func (h *SectionHandler) ListSections(c *gin.Context) {
	filters := h.parseSectionFilters(c)

	sections, total, err := h.repo.Section().List(c.Request.Context(), filters)
	if err != nil {
		h.LogError(c, err, "Failed to list sections")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list sections",
			Details: err.Error(),
		})
		return
	}

	page := (filters.Offset / max(filters.Limit, 1)) + 1

	c.JSON(http.StatusOK, map[string]interface{}{
		"sections": sections,
		"total":    total,
		"page":     page,
		"size":     filters.Limit,
	})
}

// ImportEnrollments uploads an xlsx roster and enrolls the listed students
// into the section
// @Summary Import section roster
// @Tags sections
// @Accept multipart/form-data
// @Produce json
// @Param id path uint true "Section ID"
// @Param file formData file true "Roster xlsx (student ID in first column)"
// @Param dry_run query bool false "Diagnose without writing"
// @Success 200 {object} services.ImportReport
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sections/{id}/enrollments/import [post]
func (h *SectionHandler) ImportEnrollments(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Roster file is required",
			Details: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to open roster file",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	dryRun := c.Query("dry_run") == "true"

	h.LogRequest(c, "Importing section roster",
		"section_id", id, "file", fileHeader.Filename, "dry_run", dryRun)

	report, err := h.maintenanceService.ImportEnrollments(c.Request.Context(), file, id, dryRun)
	if err != nil {
		if errors.Is(err, services.ErrSectionNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Message: "Class section not found",
			})
			return
		}
		h.LogError(c, err, "Roster import failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Roster import failed",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// CreateQuestionnaire creates a questionnaire with its questions
// @Summary Create questionnaire
// @Tags questionnaires
// @Accept json
// @Produce json
// @Param questionnaire body validator.QuestionnaireCreateRequest true "Questionnaire data"
// @Success 201 {object} models.Questionnaire
// @Failure 400 {object} ErrorResponse
// @Router /questionnaires [post]
func (h *SectionHandler) CreateQuestionnaire(c *gin.Context) {
	var req validator.QuestionnaireCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if errs := h.validator.GetBusinessValidator().Validate(&req); errs.HasErrors() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: errs,
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

	h.LogRequest(c, "Creating questionnaire",
		"title", req.Title, "questions", len(req.Questions))

	questionnaire := &models.Questionnaire{
		Title:     req.Title,
		CreatedBy: userID,
	}
	for _, q := range req.Questions {
		questionnaire.Questions = append(questionnaire.Questions, models.QuestionnaireQuestion{
			Text:  q.Text,
			Kind:  models.QuestionKind(q.Kind),
			Order: q.Order,
		})
	}

	if err := h.repo.Questionnaire().Create(c.Request.Context(), questionnaire); err != nil {
		h.LogError(c, err, "Failed to create questionnaire")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to create questionnaire",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, questionnaire)
}

// GetQuestionnaire retrieves a questionnaire with its questions
// @Summary Get questionnaire
// @Tags questionnaires
// @Produce json
// @Param id path uint true "Questionnaire ID"
// @Success 200 {object} models.Questionnaire
// @Failure 404 {object} ErrorResponse
// @Router /questionnaires/{id} [get]
func (h *SectionHandler) GetQuestionnaire(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	questionnaire, err := h.repo.Questionnaire().GetByID(c.Request.Context(), id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Message: "Questionnaire not found",
			})
			return
		}
		h.LogError(c, err, "Failed to get questionnaire")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to get questionnaire",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, questionnaire)
}

// ListQuestionnaires lists questionnaires
// @Summary List questionnaires
// @Tags questionnaires
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /questionnaires [get]
func (h *SectionHandler) ListQuestionnaires(c *gin.Context) {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)
	if size > 100 {
		size = 100
	}

	questionnaires, total, err := h.repo.Questionnaire().List(c.Request.Context(), size, (page-1)*size)
	if err != nil {
		h.LogError(c, err, "Failed to list questionnaires")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list questionnaires",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"questionnaires": questionnaires,
		"total":          total,
		"page":           page,
		"size":           size,
	})
}

// ===== HELPER METHODS =====

func (h *SectionHandler) parseIDParam(c *gin.Context, param string) uint {
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

func (h *SectionHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 1 {
		return defaultValue
	}
	return value
}

func (h *SectionHandler) parseSectionFilters(c *gin.Context) repositories.SectionFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)
	if size > 100 {
		size = 100
	}

	filters := repositories.SectionFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if termIDStr := c.Query("term_id"); termIDStr != "" {
		if termID, err := strconv.ParseUint(termIDStr, 10, 32); err == nil {
			id := uint(termID)
			filters.TermID = &id
		}
	}
	if subjectIDStr := c.Query("subject_id"); subjectIDStr != "" {
		if subjectID, err := strconv.ParseUint(subjectIDStr, 10, 32); err == nil {
			id := uint(subjectID)
			filters.SubjectID = &id
		}
	}
	if professorID := c.Query("professor_id"); professorID != "" {
		filters.ProfessorID = &professorID
	}

	return filters
}
