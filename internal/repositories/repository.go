package repositories

import "context"

// Repository aggregates all repository interfaces
type Repository interface {
	// Identity domain (backed by Casdoor; read-mostly)
	User() UserRepository
	RoleStore() RoleStore

	// Profile domain
	StudentProfile() StudentProfileRepository
	ProfessorProfile() ProfessorProfileRepository
	SSOAssociation() SSOAssociationRepository

	// Academic domain
	Section() SectionRepository
	Enrollment() EnrollmentRepository
	Questionnaire() QuestionnaireRepository

	// Evaluation domain
	Cycle() CycleRepository
	Evaluation() EvaluationRepository
	Response() ResponseRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
