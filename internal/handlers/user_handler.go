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

type UserHandler struct {
	BaseHandler
	userService services.UserService
	roleService services.RoleService
	validator   *validator.Validator
}

func NewUserHandler(
	userService services.UserService,
	roleService services.RoleService,
	v *validator.Validator,
	logger utils.Logger,
) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userService: userService,
		roleService: roleService,
		validator:   v,
	}
}

// ListUsers lists users with optional filtering
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param q query string false "Search query (name or email)"
// @Success 200 {object} map[string]interface{} "User list response"
// @Failure 500 {object} ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	h.LogRequest(c, "Listing users")

	filters := h.parseUserFilters(c)

	users, total, err := h.userService.ListUsers(c.Request.Context(), filters)
	if err != nil {
		h.LogError(c, err, "Failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list users",
			Details: err.Error(),
		})
		return
	}

	page := (filters.Offset / max(filters.Limit, 1)) + 1

	c.JSON(http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
		"page":  page,
		"size":  filters.Limit,
	})
}

// GetUser retrieves a user by ID with role and override status
// @Summary Get user by ID
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "User ID is required",
		})
		return
	}

	h.LogRequest(c, "Getting user", "user_id", userID)

	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	role, err := h.roleService.EffectiveRole(c.Request.Context(), userID)
	if err != nil {
		h.LogError(c, err, "Failed to read effective role", "user_id", userID)
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"role":       role,
		"overridden": h.roleService.IsOverridden(c.Request.Context(), userID),
	})
}

// ChangeRole assigns a role through the admin form path. The change is
// recorded as a manual override so later SSO logins leave it alone.
// @Summary Change user role
// @Tags users
// @Accept json
// @Produce json
// @Param request body validator.RoleChangeRequest true "Role change"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id}/role [put]
func (h *UserHandler) ChangeRole(c *gin.Context) {
	userID := c.Param("id")

	var req validator.RoleChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	req.UserID = userID

	if errs := h.validator.GetBusinessValidator().ValidateRoleChange(&req); errs.HasErrors() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: errs,
		})
		return
	}

	actorID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Changing user role",
		"user_id", userID, "role", req.Role, "changed_by", actorID)

	messages, err := h.roleService.SetRole(c.Request.Context(), userID, models.UserRole(req.Role), services.SetRoleOptions{
		MarkOverride: true,
		ChangedBy:    actorID,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Role updated",
		Data:    gin.H{"changes": messages},
	})
}

// ResetOverride clears the manual-override flag so SSO logins resume
// managing the user's role
// @Summary Reset manual override
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id}/override [delete]
func (h *UserHandler) ResetOverride(c *gin.Context) {
	userID := c.Param("id")

	h.LogRequest(c, "Resetting manual override", "user_id", userID)

	if err := h.roleService.ResetOverride(c.Request.Context(), userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Manual override cleared",
	})
}

// ListOverridden lists users whose roles were set by hand
// @Summary List manually overridden users
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /users/overridden [get]
func (h *UserHandler) ListOverridden(c *gin.Context) {
	h.LogRequest(c, "Listing overridden users")

	userIDs, err := h.roleService.ListOverridden(c.Request.Context())
	if err != nil {
		h.LogError(c, err, "Failed to list overridden users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list overridden users",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"user_ids": userIDs,
		"total":    len(userIDs),
	})
}

// DeactivateUser soft-disables an account
// @Summary Deactivate user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) DeactivateUser(c *gin.Context) {
	userID := c.Param("id")

	actorID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Deactivating user", "user_id", userID, "requested_by", actorID)

	if err := h.userService.Deactivate(c.Request.Context(), userID, actorID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "User deactivated",
	})
}

// ===== HELPER METHODS =====

func (h *UserHandler) parseUserFilters(c *gin.Context) repositories.UserFilters {
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

	return repositories.UserFilters{
		Limit:  size,
		Offset: (page - 1) * size,
		Query:  c.Query("q"),
	}
}

func (h *UserHandler) handleServiceError(c *gin.Context, err error) {
	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: permissionError.Message,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User not found",
		})
	case errors.Is(err, services.ErrNoAssociation):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User has no SSO association",
		})
	case errors.Is(err, services.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid role",
		})
	default:
		h.LogError(c, err, "User operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Details: err.Error(),
		})
	}
}
