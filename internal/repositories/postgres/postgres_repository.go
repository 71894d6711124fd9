package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/evaluation-service/internal/cache"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories/casdoor"
)

// PostgreSQLRepository implements the main Repository interface
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager
	identity     IdentityReader

	// Repository instances
	user             repositories.UserRepository
	roleStore        repositories.RoleStore
	studentProfile   repositories.StudentProfileRepository
	professorProfile repositories.ProfessorProfileRepository
	ssoAssociation   repositories.SSOAssociationRepository
	section          repositories.SectionRepository
	enrollment       repositories.EnrollmentRepository
	questionnaire    repositories.QuestionnaireRepository
	cycle            repositories.CycleRepository
	evaluation       repositories.EvaluationRepository
	response         repositories.ResponseRepository
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB            *gorm.DB
	RedisClient   *redis.Client
	CasdoorConfig casdoor.CasdoorConfig
}

// NewPostgreSQLRepository creates a new repository with all sub-repositories
func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	cacheManager := cache.NewCacheManager(config.RedisClient)

	repo := &PostgreSQLRepository{
		db:           config.DB,
		redisClient:  config.RedisClient,
		cacheManager: cacheManager,
	}

	repo.studentProfile = NewStudentProfilePostgreSQL(config.DB)
	repo.professorProfile = NewProfessorProfilePostgreSQL(config.DB)
	repo.ssoAssociation = NewSSOAssociationPostgreSQL(config.DB)
	repo.section = NewSectionPostgreSQL(config.DB)
	repo.enrollment = NewEnrollmentPostgreSQL(config.DB)
	repo.questionnaire = NewQuestionnairePostgreSQL(config.DB)
	repo.cycle = NewCyclePostgreSQL(config.DB, cacheManager)
	repo.evaluation = NewEvaluationPostgreSQL(config.DB, cacheManager)
	repo.response = NewResponsePostgreSQL(config.DB)

	// Identity lives in Casdoor; the local users table only mirrors what the
	// evaluation tables need for foreign keys and last-login tracking.
	repo.identity = casdoor.NewUserCasdoor(config.CasdoorConfig, config.RedisClient)
	repo.user = NewUserPostgreSQL(config.DB, repo.identity)
	repo.roleStore = casdoor.NewRoleStore(config.CasdoorConfig, config.RedisClient)

	return repo
}

func (r *PostgreSQLRepository) User() repositories.UserRepository {
	return r.user
}

func (r *PostgreSQLRepository) RoleStore() repositories.RoleStore {
	return r.roleStore
}

func (r *PostgreSQLRepository) StudentProfile() repositories.StudentProfileRepository {
	return r.studentProfile
}

func (r *PostgreSQLRepository) ProfessorProfile() repositories.ProfessorProfileRepository {
	return r.professorProfile
}

func (r *PostgreSQLRepository) SSOAssociation() repositories.SSOAssociationRepository {
	return r.ssoAssociation
}

func (r *PostgreSQLRepository) Section() repositories.SectionRepository {
	return r.section
}

func (r *PostgreSQLRepository) Enrollment() repositories.EnrollmentRepository {
	return r.enrollment
}

func (r *PostgreSQLRepository) Questionnaire() repositories.QuestionnaireRepository {
	return r.questionnaire
}

func (r *PostgreSQLRepository) Cycle() repositories.CycleRepository {
	return r.cycle
}

func (r *PostgreSQLRepository) Evaluation() repositories.EvaluationRepository {
	return r.evaluation
}

func (r *PostgreSQLRepository) Response() repositories.ResponseRepository {
	return r.response
}

// WithTransaction executes a function within a database transaction
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &PostgreSQLRepository{
			db:           tx,
			redisClient:  r.redisClient,
			cacheManager: r.cacheManager,
			identity:     r.identity,
		}

		txRepo.studentProfile = NewStudentProfilePostgreSQL(tx)
		txRepo.professorProfile = NewProfessorProfilePostgreSQL(tx)
		txRepo.ssoAssociation = NewSSOAssociationPostgreSQL(tx)
		txRepo.section = NewSectionPostgreSQL(tx)
		txRepo.enrollment = NewEnrollmentPostgreSQL(tx)
		txRepo.questionnaire = NewQuestionnairePostgreSQL(tx)
		txRepo.cycle = NewCyclePostgreSQL(tx, r.cacheManager)
		txRepo.evaluation = NewEvaluationPostgreSQL(tx, r.cacheManager)
		txRepo.response = NewResponsePostgreSQL(tx)

		// The user mirror writes locally, so it joins the transaction; the
		// role store is purely external and does not.
		txRepo.user = NewUserPostgreSQL(tx, r.identity)
		txRepo.roleStore = r.roleStore

		return fn(txRepo)
	})
}

// Ping checks the health of database and cache connections
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if r.redisClient != nil {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}

	return nil
}

// Close closes all connections
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}

	return nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: config,
	}
}

// Initialize initializes all repositories and connections
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	if rm.config.RedisClient != nil {
		if _, err := rm.config.RedisClient.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("Redis connection failed: %w", err)
		}
	}

	rm.repo = NewPostgreSQLRepository(rm.config)

	return nil
}

// GetRepository returns the repository instance
func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

// HealthCheck checks the health of all repository connections
func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	return rm.repo.Ping(ctx)
}

// Shutdown gracefully shuts down all repository connections
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}

	return rm.repo.Close()
}
