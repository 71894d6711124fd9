package handlers

import (
	"net/http"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/evaluation-service/internal/services"
	"github.com/SAP-F-2025/evaluation-service/internal/utils"
)

type AuthHandler struct {
	BaseHandler
	ssoLoginService services.SSOLoginService
	roleService     services.RoleService
	userRepo        repositories.UserRepository
}

func NewAuthHandler(
	ssoLoginService services.SSOLoginService,
	roleService services.RoleService,
	userRepo repositories.UserRepository,
	logger utils.Logger,
) *AuthHandler {
	return &AuthHandler{
		BaseHandler:     NewBaseHandler(logger),
		ssoLoginService: ssoLoginService,
		roleService:     roleService,
		userRepo:        userRepo,
	}
}

// Login completes an SSO sign-in: it runs the post-login role policy against
// the token's provider payload and stamps the last-login time. Role policy
// failures never fail the login.
// @Summary Complete SSO login
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{} "Current user"
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	user, err := GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Completing SSO login", "user_id", user.ID)

	payload := h.providerPayload(c)
	h.ssoLoginService.ProcessLogin(c.Request.Context(), user, models.ProviderCasdoor, payload)

	if err := h.userRepo.TouchLastLogin(c.Request.Context(), user.ID); err != nil {
		h.LogError(c, err, "Failed to stamp last login", "user_id", user.ID)
	}

	role, err := h.roleService.EffectiveRole(c.Request.Context(), user.ID)
	if err != nil {
		h.LogError(c, err, "Failed to read effective role", "user_id", user.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
		"role": role,
	})
}

// Me returns the authenticated user with role and override status
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	role, err := h.roleService.EffectiveRole(c.Request.Context(), user.ID)
	if err != nil {
		h.LogError(c, err, "Failed to read effective role", "user_id", user.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"role":       role,
		"overridden": h.roleService.IsOverridden(c.Request.Context(), user.ID),
	})
}

// providerPayload rebuilds the provider's user payload from the token
// claims. Custom properties carry the classification string when present.
func (h *AuthHandler) providerPayload(c *gin.Context) map[string]interface{} {
	payload := map[string]interface{}{}

	value, exists := c.Get("token_claims")
	if !exists {
		return payload
	}
	claims, ok := value.(*casdoorsdk.Claims)
	if !ok {
		return payload
	}

	for k, v := range claims.User.Properties {
		payload[k] = v
	}
	if _, ok := payload[models.ExtraDataUserType]; !ok && claims.User.Type != "" {
		payload[models.ExtraDataUserType] = claims.User.Type
	}

	return payload
}
