package domain

import (
	"context"
	"io"
	"time"
)

type Repository interface {
	// InTx runs fn against a repository bound to one transaction. Any error
	// returned by fn rolls the whole transaction back.
	InTx(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, value User) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CountUsers(ctx context.Context) (int64, error)

	CreateTeam(ctx context.Context, value Team) (Team, error)
	GetTeam(ctx context.Context, id string) (Team, error)
	ListTeamsForUser(ctx context.Context, userID string, page Page) ([]Team, error)
	UpdateTeam(ctx context.Context, value Team) (Team, error)
	DeleteTeam(ctx context.Context, id string) error
	AddTeamMember(ctx context.Context, value TeamMember) (TeamMember, error)
	GetTeamMember(ctx context.Context, teamID, userID string) (TeamMember, error)
	ListTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error)
	RemoveTeamMember(ctx context.Context, teamID, userID string) error

	CreateProject(ctx context.Context, value Project) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter, page Page) ([]Project, error)
	CountProjects(ctx context.Context, filter ProjectFilter) (int64, error)
	AccessibleProjectIDs(ctx context.Context, userID string) ([]string, error)
	// UpdateProject writes value if the stored version equals value.Version
	// and bumps the version. A version mismatch yields Conflict.
	UpdateProject(ctx context.Context, value Project) (Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateEnvironment(ctx context.Context, value Environment) (Environment, error)
	GetEnvironment(ctx context.Context, id string) (Environment, error)
	ListEnvironments(ctx context.Context, projectID string, page Page) ([]Environment, error)
	UpdateEnvironment(ctx context.Context, value Environment) (Environment, error)
	DeleteEnvironment(ctx context.Context, id string) error

	// CreateTestCase stores the case together with value.Steps.
	CreateTestCase(ctx context.Context, value TestCase) (TestCase, error)
	GetTestCase(ctx context.Context, id string) (TestCase, error)
	ListTestCases(ctx context.Context, filter TestCaseFilter, page Page) ([]TestCase, error)
	CountTestCases(ctx context.Context, filter TestCaseFilter) (int64, error)
	// UpdateTestCase follows the same version rule as UpdateProject.
	UpdateTestCase(ctx context.Context, value TestCase) (TestCase, error)
	DeleteTestCase(ctx context.Context, id string) error
	ReplaceTestSteps(ctx context.Context, testCaseID string, steps []TestStep) ([]TestStep, error)
	CreateTestStep(ctx context.Context, value TestStep) (TestStep, error)
	GetTestStep(ctx context.Context, id string) (TestStep, error)
	UpdateTestStep(ctx context.Context, value TestStep) (TestStep, error)
	DeleteTestStep(ctx context.Context, id string) error

	CreateTestPlan(ctx context.Context, value TestPlan) (TestPlan, error)
	GetTestPlan(ctx context.Context, id string) (TestPlan, error)
	ListTestPlans(ctx context.Context, projectID string, page Page) ([]TestPlan, error)
	UpdateTestPlan(ctx context.Context, value TestPlan) (TestPlan, error)
	DeleteTestPlan(ctx context.Context, id string) error
	AddTestPlanCase(ctx context.Context, value TestPlanCase) (TestPlanCase, error)
	RemoveTestPlanCase(ctx context.Context, planID, caseID string) error

	CreateExecution(ctx context.Context, value TestExecution) (TestExecution, error)
	GetExecution(ctx context.Context, id string) (TestExecution, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter, page Page) ([]TestExecution, error)
	ExecutionStats(ctx context.Context, filter ExecutionFilter) (ExecutionStats, error)
	UpdateExecution(ctx context.Context, value TestExecution) (TestExecution, error)
	DeleteExecution(ctx context.Context, id string) error

	CreateComment(ctx context.Context, value Comment) (Comment, error)
	GetComment(ctx context.Context, id string) (Comment, error)
	ListComments(ctx context.Context, testCaseID string, page Page) ([]Comment, error)
	UpdateComment(ctx context.Context, value Comment) (Comment, error)
	DeleteComment(ctx context.Context, id string) error

	CreateAttachment(ctx context.Context, value Attachment) (Attachment, error)
	GetAttachment(ctx context.Context, id string) (Attachment, error)
	ListAttachments(ctx context.Context, target AttachmentTarget, page Page) ([]Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error
	// AttachmentFiles lists the stored paths of every attachment that
	// deleting target removes through cascades.
	AttachmentFiles(ctx context.Context, target AttachmentTarget) ([]string, error)

	CreateActivity(ctx context.Context, value ActivityLog) error
	ListActivity(ctx context.Context, filter ActivityFilter) ([]ActivityLog, error)
}

// Cache is a byte-oriented key/value store with expiry. A miss returns
// ErrNotFound.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Notifier broadcasts committed changes. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// TextGenerator is the single call made to a language model.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// FileStore keeps uploaded attachment bodies. Save rejects bodies larger
// than maxBytes with a validation error.
type FileStore interface {
	Save(ctx context.Context, name string, body io.Reader, maxBytes int64) (path string, size int64, err error)
	Remove(ctx context.Context, path string) error
}
