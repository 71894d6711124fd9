package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/evaluation-service/internal/config"
	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/evaluation-service/internal/services"
	"github.com/SAP-F-2025/evaluation-service/internal/utils"
	"github.com/SAP-F-2025/evaluation-service/internal/validator"
)

type HandlerManager struct {
	authHandler       *AuthHandler
	userHandler       *UserHandler
	cycleHandler      *CycleHandler
	evaluationHandler *EvaluationHandler
	sectionHandler    *SectionHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	repo repositories.Repository,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, repo.User())

	return &HandlerManager{
		authHandler:       NewAuthHandler(serviceManager.SSOLogin(), serviceManager.Role(), repo.User(), logger),
		userHandler:       NewUserHandler(serviceManager.User(), serviceManager.Role(), validator, logger),
		cycleHandler:      NewCycleHandler(serviceManager.Evaluation(), validator, logger),
		evaluationHandler: NewEvaluationHandler(serviceManager.Evaluation(), validator, logger),
		sectionHandler:    NewSectionHandler(repo, serviceManager.Maintenance(), validator, logger),
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Auth routes - any authenticated user
		auth := v1.Group("/auth")
		{
			auth.POST("/login", hm.authHandler.Login)
			auth.GET("/me", hm.authHandler.Me)
		}

		// User and role management - Admins only for mutations
		users := v1.Group("/users")
		{
			users.GET("", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.userHandler.ListUsers)
			users.GET("/overridden", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.userHandler.ListOverridden)
			users.GET("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.userHandler.GetUser)
			users.PUT("/:id/role", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.userHandler.ChangeRole)
			users.DELETE("/:id/override", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.userHandler.ResetOverride)
			users.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.userHandler.DeactivateUser)
		}

		// Evaluation cycle routes
		cycles := v1.Group("/cycles")
		{
			// Manage cycles - Coordinators and Admins only
			cycles.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.cycleHandler.CreateCycle)
			cycles.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.cycleHandler.UpdateCycle)
			cycles.POST("/:id/sections", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.cycleHandler.AttachSections)
			cycles.DELETE("/:id/sections", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.cycleHandler.DetachSections)
			cycles.POST("/:id/backfill", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.cycleHandler.Backfill)

			// View cycles - all authenticated users
			cycles.GET("", hm.cycleHandler.ListCycles)
			cycles.GET("/:id", hm.cycleHandler.GetCycle)
			cycles.GET("/:id/stats", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.cycleHandler.GetCycleStats)
		}

		// Evaluation routes
		evaluations := v1.Group("/evaluations")
		{
			evaluations.GET("", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.evaluationHandler.ListEvaluations)
			evaluations.GET("/me", hm.authMiddleware.RequireRoleMiddleware(models.RoleProfessor), hm.evaluationHandler.ListMyEvaluations)
			evaluations.POST("/responses", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.evaluationHandler.SubmitResponse)
		}

		// Class section routes
		sections := v1.Group("/sections")
		{
			sections.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.sectionHandler.CreateSection)
			sections.GET("", hm.sectionHandler.ListSections)
			sections.GET("/:id", hm.sectionHandler.GetSection)
			sections.POST("/:id/enrollments/import", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.sectionHandler.ImportEnrollments)
		}

		// Questionnaire routes
		questionnaires := v1.Group("/questionnaires")
		{
			questionnaires.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleCoordinator, models.RoleAdmin), hm.sectionHandler.CreateQuestionnaire)
			questionnaires.GET("", hm.sectionHandler.ListQuestionnaires)
			questionnaires.GET("/:id", hm.sectionHandler.GetQuestionnaire)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "evaluation-service",
		})
	})
}
