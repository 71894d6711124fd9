package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/notification"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

// mockRepo is an in-memory Repository. Sub-repositories share its maps so
// transactional and direct access observe the same state, matching how the
// real implementation scopes a transaction over one database.
type mockRepo struct {
	users             map[string]*models.User
	roleTags          map[string]map[models.UserRole]bool
	studentProfiles   map[string]*models.StudentProfile
	professorProfiles map[string]*models.ProfessorProfile
	associations      map[string]*models.SSOAssociation
	sections          map[uint]*models.ClassSection
	enrollments       map[uint]map[string]models.EnrollmentStatus
	questionnaires    map[uint]*models.Questionnaire
	cycles            map[uint]*models.EvaluationCycle
	cycleSections     map[uint][]uint
	evaluations       map[uint]*models.Evaluation
	responses         map[uint]map[string]*models.EvaluationResponse

	nextID uint

	// Error injection
	removeRoleErr    map[models.UserRole]error
	assignRoleErr    map[models.UserRole]error
	effectiveRoleErr error
	findAssocErr     error
	txErr            error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		users:             map[string]*models.User{},
		roleTags:          map[string]map[models.UserRole]bool{},
		studentProfiles:   map[string]*models.StudentProfile{},
		professorProfiles: map[string]*models.ProfessorProfile{},
		associations:      map[string]*models.SSOAssociation{},
		sections:          map[uint]*models.ClassSection{},
		enrollments:       map[uint]map[string]models.EnrollmentStatus{},
		questionnaires:    map[uint]*models.Questionnaire{},
		cycles:            map[uint]*models.EvaluationCycle{},
		cycleSections:     map[uint][]uint{},
		evaluations:       map[uint]*models.Evaluation{},
		responses:         map[uint]map[string]*models.EvaluationResponse{},
		removeRoleErr:     map[models.UserRole]error{},
		assignRoleErr:     map[models.UserRole]error{},
	}
}

func (m *mockRepo) id() uint {
	m.nextID++
	return m.nextID
}

func (m *mockRepo) assocKey(userID, provider string) string {
	return userID + "|" + provider
}

// ===== TEST SEEDING HELPERS =====

func (m *mockRepo) addUser(id, username string, lastLogin *time.Time) *models.User {
	user := &models.User{
		ID:          id,
		Username:    username,
		FullName:    username,
		Email:       username + "@university.test",
		IsActive:    true,
		LastLoginAt: lastLogin,
	}
	m.users[id] = user
	return user
}

func (m *mockRepo) setRoleTag(userID string, role models.UserRole) {
	if m.roleTags[userID] == nil {
		m.roleTags[userID] = map[models.UserRole]bool{}
	}
	m.roleTags[userID][role] = true
}

func (m *mockRepo) addSection(id uint, professorID string, subjectID uint) *models.ClassSection {
	section := &models.ClassSection{
		ID:          id,
		SubjectID:   subjectID,
		TermID:      1,
		Shift:       models.ShiftMorning,
		ProfessorID: professorID,
		Subject:     models.Subject{ID: subjectID, Code: fmt.Sprintf("SUB%d", subjectID), Name: "Subject"},
	}
	m.sections[id] = section
	return section
}

func (m *mockRepo) enroll(sectionID uint, studentID string) {
	if m.enrollments[sectionID] == nil {
		m.enrollments[sectionID] = map[string]models.EnrollmentStatus{}
	}
	m.enrollments[sectionID][studentID] = models.EnrollmentActive
}

func (m *mockRepo) addQuestionnaire(id uint) *models.Questionnaire {
	q := &models.Questionnaire{ID: id, Title: "Standard evaluation", CreatedBy: "admin-1"}
	m.questionnaires[id] = q
	return q
}

func (m *mockRepo) addCycle(id uint, startsAt, endsAt time.Time) *models.EvaluationCycle {
	cycle := &models.EvaluationCycle{
		ID:              id,
		Name:            fmt.Sprintf("Cycle %d", id),
		QuestionnaireID: 1,
		StartsAt:        startsAt,
		EndsAt:          endsAt,
		CreatedBy:       "admin-1",
	}
	m.cycles[id] = cycle
	return cycle
}

// ===== REPOSITORY AGGREGATE =====

func (m *mockRepo) User() repositories.UserRepository                 { return &mockUsers{m} }
func (m *mockRepo) RoleStore() repositories.RoleStore                 { return &mockRoleStore{m} }
func (m *mockRepo) StudentProfile() repositories.StudentProfileRepository {
	return &mockStudentProfiles{m}
}
func (m *mockRepo) ProfessorProfile() repositories.ProfessorProfileRepository {
	return &mockProfessorProfiles{m}
}
func (m *mockRepo) SSOAssociation() repositories.SSOAssociationRepository {
	return &mockAssociations{m}
}
func (m *mockRepo) Section() repositories.SectionRepository           { return &mockSections{m} }
func (m *mockRepo) Enrollment() repositories.EnrollmentRepository     { return &mockEnrollments{m} }
func (m *mockRepo) Questionnaire() repositories.QuestionnaireRepository {
	return &mockQuestionnaires{m}
}
func (m *mockRepo) Cycle() repositories.CycleRepository               { return &mockCycles{m} }
func (m *mockRepo) Evaluation() repositories.EvaluationRepository     { return &mockEvaluations{m} }
func (m *mockRepo) Response() repositories.ResponseRepository         { return &mockResponses{m} }

func (m *mockRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	return fn(m)
}

func (m *mockRepo) Ping(ctx context.Context) error { return nil }
func (m *mockRepo) Close() error                   { return nil }

// ===== USERS =====

type mockUsers struct{ m *mockRepo }

func (r *mockUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.m.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return user, nil
}

func (r *mockUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range r.m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *mockUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var users []*models.User
	for _, id := range ids {
		if user, ok := r.m.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *mockUsers) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	var users []*models.User
	for _, user := range r.m.users {
		users = append(users, user)
	}
	total := int64(len(users))

	if filters.Offset >= len(users) {
		return nil, total, nil
	}
	users = users[filters.Offset:]
	if filters.Limit > 0 && filters.Limit < len(users) {
		users = users[:filters.Limit]
	}
	return users, total, nil
}

func (r *mockUsers) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, ok := r.m.users[id]
	return ok, nil
}

func (r *mockUsers) Update(ctx context.Context, user *models.User) error {
	if _, ok := r.m.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.users[user.ID] = user
	return nil
}

func (r *mockUsers) TouchLastLogin(ctx context.Context, id string) error {
	user, ok := r.m.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	now := time.Now()
	user.LastLoginAt = &now
	return nil
}

func (r *mockUsers) Deactivate(ctx context.Context, id string) error {
	user, ok := r.m.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Username = "disabled-" + id
	user.Email = "disabled-" + id + "@invalid.local"
	user.IsActive = false
	return nil
}

// ===== ROLE STORE =====

type mockRoleStore struct{ m *mockRepo }

func (r *mockRoleStore) HasRole(ctx context.Context, userID string, role models.UserRole) (bool, error) {
	return r.m.roleTags[userID][role], nil
}

func (r *mockRoleStore) AssignRole(ctx context.Context, userID string, role models.UserRole) error {
	if err := r.m.assignRoleErr[role]; err != nil {
		return err
	}
	r.m.setRoleTag(userID, role)
	return nil
}

func (r *mockRoleStore) RemoveRole(ctx context.Context, userID string, role models.UserRole) error {
	if err := r.m.removeRoleErr[role]; err != nil {
		return err
	}
	delete(r.m.roleTags[userID], role)
	return nil
}

func (r *mockRoleStore) EffectiveRole(ctx context.Context, userID string) (models.UserRole, error) {
	if r.m.effectiveRoleErr != nil {
		return "", r.m.effectiveRoleErr
	}
	for _, role := range models.AllRoles() {
		if r.m.roleTags[userID][role] {
			return role, nil
		}
	}
	return "", nil
}

// ===== PROFILES =====

type mockStudentProfiles struct{ m *mockRepo }

func (r *mockStudentProfiles) GetByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	profile, ok := r.m.studentProfiles[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return profile, nil
}

func (r *mockStudentProfiles) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	_, ok := r.m.studentProfiles[userID]
	return ok, nil
}

func (r *mockStudentProfiles) GetOrCreate(ctx context.Context, profile *models.StudentProfile) (bool, error) {
	if existing, ok := r.m.studentProfiles[profile.UserID]; ok {
		*profile = *existing
		return false, nil
	}
	profile.ID = r.m.id()
	r.m.studentProfiles[profile.UserID] = profile
	return true, nil
}

func (r *mockStudentProfiles) DeleteByUserID(ctx context.Context, userID string) (bool, error) {
	if _, ok := r.m.studentProfiles[userID]; !ok {
		return false, nil
	}
	delete(r.m.studentProfiles, userID)
	return true, nil
}

type mockProfessorProfiles struct{ m *mockRepo }

func (r *mockProfessorProfiles) GetByUserID(ctx context.Context, userID string) (*models.ProfessorProfile, error) {
	profile, ok := r.m.professorProfiles[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return profile, nil
}

func (r *mockProfessorProfiles) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	_, ok := r.m.professorProfiles[userID]
	return ok, nil
}

func (r *mockProfessorProfiles) GetOrCreate(ctx context.Context, profile *models.ProfessorProfile) (bool, error) {
	if existing, ok := r.m.professorProfiles[profile.UserID]; ok {
		*profile = *existing
		return false, nil
	}
	profile.ID = r.m.id()
	r.m.professorProfiles[profile.UserID] = profile
	return true, nil
}

func (r *mockProfessorProfiles) DeleteByUserID(ctx context.Context, userID string) (bool, error) {
	if _, ok := r.m.professorProfiles[userID]; !ok {
		return false, nil
	}
	delete(r.m.professorProfiles, userID)
	return true, nil
}

// ===== SSO ASSOCIATIONS =====

type mockAssociations struct{ m *mockRepo }

func (r *mockAssociations) Find(ctx context.Context, userID, provider string) (*models.SSOAssociation, error) {
	if r.m.findAssocErr != nil {
		return nil, r.m.findAssocErr
	}
	assoc, ok := r.m.associations[r.m.assocKey(userID, provider)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return assoc, nil
}

func (r *mockAssociations) Upsert(ctx context.Context, assoc *models.SSOAssociation) error {
	key := r.m.assocKey(assoc.UserID, assoc.Provider)
	if existing, ok := r.m.associations[key]; ok {
		assoc.ID = existing.ID
		assoc.ManuallyOverridden = existing.ManuallyOverridden
	} else {
		assoc.ID = r.m.id()
	}
	r.m.associations[key] = assoc
	return nil
}

func (r *mockAssociations) SetManualOverride(ctx context.Context, userID, provider string, overridden bool) error {
	assoc, ok := r.m.associations[r.m.assocKey(userID, provider)]
	if !ok {
		return repositories.ErrNoAssociation
	}
	assoc.ManuallyOverridden = overridden
	if !overridden && assoc.ExtraData != nil {
		delete(assoc.ExtraData, models.LegacyOverrideKey)
	}
	return nil
}

func (r *mockAssociations) ListOverridden(ctx context.Context, provider string) ([]string, error) {
	var userIDs []string
	for _, assoc := range r.m.associations {
		if assoc.Provider == provider && assoc.ManuallyOverridden {
			userIDs = append(userIDs, assoc.UserID)
		}
	}
	return userIDs, nil
}

// ===== ACADEMIC =====

type mockSections struct{ m *mockRepo }

func (r *mockSections) Create(ctx context.Context, section *models.ClassSection) error {
	section.ID = r.m.id()
	r.m.sections[section.ID] = section
	return nil
}

func (r *mockSections) GetByID(ctx context.Context, id uint) (*models.ClassSection, error) {
	section, ok := r.m.sections[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return section, nil
}

func (r *mockSections) GetByIDs(ctx context.Context, ids []uint) ([]*models.ClassSection, error) {
	var sections []*models.ClassSection
	for _, id := range ids {
		if section, ok := r.m.sections[id]; ok {
			sections = append(sections, section)
		}
	}
	return sections, nil
}

func (r *mockSections) List(ctx context.Context, filters repositories.SectionFilters) ([]*models.ClassSection, int64, error) {
	var sections []*models.ClassSection
	for _, section := range r.m.sections {
		sections = append(sections, section)
	}
	return sections, int64(len(sections)), nil
}

type mockEnrollments struct{ m *mockRepo }

func (r *mockEnrollments) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if r.m.enrollments[enrollment.SectionID][enrollment.StudentID] != "" {
		return repositories.ErrDuplicateKey
	}
	r.m.enroll(enrollment.SectionID, enrollment.StudentID)
	return nil
}

func (r *mockEnrollments) GetOrCreate(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	if r.m.enrollments[enrollment.SectionID][enrollment.StudentID] != "" {
		return false, nil
	}
	r.m.enroll(enrollment.SectionID, enrollment.StudentID)
	return true, nil
}

func (r *mockEnrollments) ListActiveBySection(ctx context.Context, sectionID uint) ([]string, error) {
	var studentIDs []string
	for studentID, status := range r.m.enrollments[sectionID] {
		if status == models.EnrollmentActive {
			studentIDs = append(studentIDs, studentID)
		}
	}
	return studentIDs, nil
}

type mockQuestionnaires struct{ m *mockRepo }

func (r *mockQuestionnaires) Create(ctx context.Context, q *models.Questionnaire) error {
	q.ID = r.m.id()
	r.m.questionnaires[q.ID] = q
	return nil
}

func (r *mockQuestionnaires) GetByID(ctx context.Context, id uint) (*models.Questionnaire, error) {
	q, ok := r.m.questionnaires[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return q, nil
}

func (r *mockQuestionnaires) List(ctx context.Context, limit, offset int) ([]*models.Questionnaire, int64, error) {
	var qs []*models.Questionnaire
	for _, q := range r.m.questionnaires {
		qs = append(qs, q)
	}
	return qs, int64(len(qs)), nil
}

// ===== EVALUATION DOMAIN =====

type mockCycles struct{ m *mockRepo }

func (r *mockCycles) Create(ctx context.Context, cycle *models.EvaluationCycle) error {
	cycle.ID = r.m.id()
	r.m.cycles[cycle.ID] = cycle
	return nil
}

func (r *mockCycles) GetByID(ctx context.Context, id uint) (*models.EvaluationCycle, error) {
	cycle, ok := r.m.cycles[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cycle, nil
}

func (r *mockCycles) Update(ctx context.Context, cycle *models.EvaluationCycle) error {
	if _, ok := r.m.cycles[cycle.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.cycles[cycle.ID] = cycle
	return nil
}

func (r *mockCycles) List(ctx context.Context, filters repositories.CycleFilters) ([]*models.EvaluationCycle, int64, error) {
	var cycles []*models.EvaluationCycle
	for _, cycle := range r.m.cycles {
		cycles = append(cycles, cycle)
	}
	total := int64(len(cycles))

	if filters.Offset >= len(cycles) {
		return nil, total, nil
	}
	cycles = cycles[filters.Offset:]
	if filters.Limit > 0 && filters.Limit < len(cycles) {
		cycles = cycles[:filters.Limit]
	}
	return cycles, total, nil
}

func (r *mockCycles) AttachSections(ctx context.Context, cycleID uint, sectionIDs []uint) error {
	existing := map[uint]bool{}
	for _, id := range r.m.cycleSections[cycleID] {
		existing[id] = true
	}
	for _, id := range sectionIDs {
		if !existing[id] {
			r.m.cycleSections[cycleID] = append(r.m.cycleSections[cycleID], id)
		}
	}
	return nil
}

func (r *mockCycles) DetachSections(ctx context.Context, cycleID uint, sectionIDs []uint) error {
	remove := map[uint]bool{}
	for _, id := range sectionIDs {
		remove[id] = true
	}
	var kept []uint
	for _, id := range r.m.cycleSections[cycleID] {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	r.m.cycleSections[cycleID] = kept
	return nil
}

func (r *mockCycles) SectionIDs(ctx context.Context, cycleID uint) ([]uint, error) {
	return r.m.cycleSections[cycleID], nil
}

type mockEvaluations struct{ m *mockRepo }

func (r *mockEvaluations) GetOrCreate(ctx context.Context, eval *models.Evaluation) (bool, error) {
	for _, existing := range r.m.evaluations {
		if existing.CycleID == eval.CycleID && existing.SectionID == eval.SectionID {
			*eval = *existing
			return false, nil
		}
	}
	eval.ID = r.m.id()
	r.m.evaluations[eval.ID] = eval
	return true, nil
}

func (r *mockEvaluations) GetByID(ctx context.Context, id uint) (*models.Evaluation, error) {
	eval, ok := r.m.evaluations[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return eval, nil
}

func (r *mockEvaluations) GetByKey(ctx context.Context, key repositories.EvaluationKey) (*models.Evaluation, error) {
	for _, eval := range r.m.evaluations {
		if eval.CycleID == key.CycleID && eval.SectionID == key.SectionID {
			return eval, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *mockEvaluations) ListByCycle(ctx context.Context, cycleID uint) ([]*models.Evaluation, error) {
	var evals []*models.Evaluation
	for _, eval := range r.m.evaluations {
		if eval.CycleID == cycleID {
			evals = append(evals, eval)
		}
	}
	return evals, nil
}

func (r *mockEvaluations) List(ctx context.Context, filters repositories.EvaluationFilters) ([]*models.Evaluation, int64, error) {
	var evals []*models.Evaluation
	for _, eval := range r.m.evaluations {
		if filters.Status != nil && eval.Status != *filters.Status {
			continue
		}
		if filters.CycleID != nil && eval.CycleID != *filters.CycleID {
			continue
		}
		if filters.ProfessorID != nil && eval.ProfessorID != *filters.ProfessorID {
			continue
		}
		evals = append(evals, eval)
	}
	return evals, int64(len(evals)), nil
}

func (r *mockEvaluations) UpdateStatus(ctx context.Context, id uint, status models.EvaluationStatus) error {
	eval, ok := r.m.evaluations[id]
	if !ok {
		return repositories.ErrNotFound
	}
	eval.Status = status
	return nil
}

func (r *mockEvaluations) Delete(ctx context.Context, id uint) error {
	if _, ok := r.m.evaluations[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.evaluations, id)
	return nil
}

func (r *mockEvaluations) ListOverdue(ctx context.Context, now time.Time) ([]*models.Evaluation, error) {
	var overdue []*models.Evaluation
	for _, eval := range r.m.evaluations {
		cycle, ok := r.m.cycles[eval.CycleID]
		if !ok || !cycle.Ended(now) {
			continue
		}
		if eval.Status == models.EvaluationPending || eval.Status == models.EvaluationInProgress {
			overdue = append(overdue, eval)
		}
	}
	return overdue, nil
}

func (r *mockEvaluations) Stats(ctx context.Context, cycleID uint) (*repositories.CycleStats, error) {
	stats := &repositories.CycleStats{
		StatusBreakdown: map[models.EvaluationStatus]int64{},
	}
	for _, eval := range r.m.evaluations {
		if eval.CycleID != cycleID {
			continue
		}
		stats.TotalEvaluations++
		stats.StatusBreakdown[eval.Status]++
		stats.TotalResponses += int64(len(r.m.responses[eval.ID]))
	}
	return stats, nil
}

type mockResponses struct{ m *mockRepo }

func (r *mockResponses) Create(ctx context.Context, response *models.EvaluationResponse) error {
	if r.m.responses[response.EvaluationID] == nil {
		r.m.responses[response.EvaluationID] = map[string]*models.EvaluationResponse{}
	}
	if _, ok := r.m.responses[response.EvaluationID][response.StudentID]; ok {
		return repositories.ErrDuplicateKey
	}
	response.ID = r.m.id()
	r.m.responses[response.EvaluationID][response.StudentID] = response
	return nil
}

func (r *mockResponses) CountByEvaluation(ctx context.Context, evaluationID uint) (int64, error) {
	return int64(len(r.m.responses[evaluationID])), nil
}

// ===== NOTIFIER =====

// mockNotifier records notices and can fail for selected recipients
type mockNotifier struct {
	sent    []*notification.EvaluationNotice
	failFor map[string]error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{failFor: map[string]error{}}
}

func (n *mockNotifier) SendEvaluationNotice(ctx context.Context, notice *notification.EvaluationNotice) error {
	if err := n.failFor[notice.Student.ID]; err != nil {
		return err
	}
	n.sent = append(n.sent, notice)
	return nil
}
