package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/evaluation-service/internal/events"
	"github.com/SAP-F-2025/evaluation-service/internal/notification"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/evaluation-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	EnableDebugLogging bool
	LogLevel           slog.Level

	DefaultTimeout time.Duration
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db             *gorm.DB
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
	notifier       notification.Notifier
	config         ServiceManagerConfig

	// Service instances
	roleService        RoleService
	ssoLoginService    SSOLoginService
	evaluationService  EvaluationService
	maintenanceService MaintenanceService
	userService        UserService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher, notifier notification.Notifier, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:             db,
		repo:           repo,
		logger:         logger,
		validator:      v,
		eventPublisher: publisher,
		notifier:       notifier,
		config:         config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher, notifier notification.Notifier) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,
		DefaultTimeout:     30 * time.Second,
	}

	return NewServiceManager(db, repo, logger, v, publisher, notifier, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.roleService = NewRoleService(sm.repo, sm.logger, sm.validator, sm.eventPublisher)
	sm.logger.Info("Role service initialized")

	sm.ssoLoginService = NewSSOLoginService(sm.repo, sm.roleService, sm.logger)
	sm.logger.Info("SSO login service initialized")

	sm.evaluationService = NewEvaluationService(sm.repo, sm.logger, sm.validator, sm.eventPublisher, sm.notifier)
	sm.logger.Info("Evaluation service initialized")

	sm.maintenanceService = NewMaintenanceService(sm.repo, sm.roleService, sm.evaluationService, sm.logger)
	sm.logger.Info("Maintenance service initialized")

	sm.userService = NewUserService(sm.repo, sm.logger)
	sm.logger.Info("User service initialized")

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Role() RoleService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.roleService == nil {
		panic("role service not initialized")
	}
	return sm.roleService
}

func (sm *serviceManager) SSOLogin() SSOLoginService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.ssoLoginService == nil {
		panic("sso login service not initialized")
	}
	return sm.ssoLoginService
}

func (sm *serviceManager) Evaluation() EvaluationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.evaluationService == nil {
		panic("evaluation service not initialized")
	}
	return sm.evaluationService
}

func (sm *serviceManager) Maintenance() MaintenanceService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.maintenanceService == nil {
		panic("maintenance service not initialized")
	}
	return sm.maintenanceService
}

func (sm *serviceManager) User() UserService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.userService == nil {
		panic("user service not initialized")
	}
	return sm.userService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if err := sm.eventPublisher.Close(); err != nil {
		sm.logger.Error("Failed to close event publisher", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// WithTimeout creates a context with the default timeout
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}
