package domain

import (
	"encoding/json"
	"time"
)

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleTester    UserRole = "tester"
	RoleDeveloper UserRole = "developer"
	RoleManager   UserRole = "manager"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTester, RoleDeveloper, RoleManager:
		return true
	}
	return false
}

type TeamRole string

const (
	TeamRoleMember TeamRole = "member"
	TeamRoleAdmin  TeamRole = "admin"
	TeamRoleOwner  TeamRole = "owner"
)

func (r TeamRole) Valid() bool {
	return r.rank() > 0
}

// AtLeast reports whether r grants at least the rights of min.
func (r TeamRole) AtLeast(min TeamRole) bool {
	return r.rank() >= min.rank() && r.rank() > 0
}

func (r TeamRole) rank() int {
	switch r {
	case TeamRoleMember:
		return 1
	case TeamRoleAdmin:
		return 2
	case TeamRoleOwner:
		return 3
	}
	return 0
}

type TestType string

const (
	TestTypeFunctional  TestType = "functional"
	TestTypeAPI         TestType = "api"
	TestTypeVisual      TestType = "visual"
	TestTypePerformance TestType = "performance"
	TestTypeSecurity    TestType = "security"
	TestTypeIntegration TestType = "integration"
	TestTypeUnit        TestType = "unit"
)

func (t TestType) Valid() bool {
	switch t {
	case TestTypeFunctional, TestTypeAPI, TestTypeVisual, TestTypePerformance,
		TestTypeSecurity, TestTypeIntegration, TestTypeUnit:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status is the lifecycle state shared by test cases and test plans.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionPending, ExecutionRunning, ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	}
	return false
}

// Finished reports whether the status closes an execution.
func (s ExecutionStatus) Finished() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

type CommentType string

const (
	CommentGeneral    CommentType = "general"
	CommentIssue      CommentType = "issue"
	CommentSuggestion CommentType = "suggestion"
	CommentResolved   CommentType = "resolved"
)

func (t CommentType) Valid() bool {
	switch t {
	case CommentGeneral, CommentIssue, CommentSuggestion, CommentResolved:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TeamMember struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"team_id"`
	UserID   string    `json:"user_id"`
	Role     TeamRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	TeamID      *string   `json:"team_id"`
	IsActive    bool      `json:"is_active"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Environment struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	BaseURL     string            `json:"base_url"`
	ProjectID   string            `json:"project_id"`
	CreatedBy   string            `json:"created_by"`
	Variables   map[string]string `json:"variables"`
	IsActive    bool              `json:"is_active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type TestCase struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	ProjectID          string          `json:"project_id"`
	TestType           TestType        `json:"test_type"`
	Priority           Priority        `json:"priority"`
	Status             Status          `json:"status"`
	ExpectedResult     string          `json:"expected_result"`
	CreatedBy          string          `json:"created_by"`
	AssignedTo         *string         `json:"assigned_to"`
	Tags               []string        `json:"tags"`
	AIGenerated        bool            `json:"ai_generated"`
	SelfHealingEnabled bool            `json:"self_healing_enabled"`
	Prerequisites      string          `json:"prerequisites"`
	TestData           json.RawMessage `json:"test_data,omitempty"`
	AutomationConfig   json.RawMessage `json:"automation_config,omitempty"`
	Steps              []TestStep      `json:"steps"`
	Version            int             `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type TestStep struct {
	ID             string    `json:"id"`
	TestCaseID     string    `json:"test_case_id"`
	StepNumber     int       `json:"step_number"`
	Description    string    `json:"description"`
	ExpectedResult string    `json:"expected_result"`
	ActualResult   *string   `json:"actual_result"`
	Status         *string   `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type TestPlan struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	ProjectID      string         `json:"project_id"`
	CreatedBy      string         `json:"created_by"`
	Status         Status         `json:"status"`
	ScheduledStart *time.Time     `json:"scheduled_start"`
	ScheduledEnd   *time.Time     `json:"scheduled_end"`
	Cases          []TestPlanCase `json:"cases"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TestPlanCase links a test case into a plan with ordering metadata.
type TestPlanCase struct {
	TestPlanID  string    `json:"test_plan_id"`
	TestCaseID  string    `json:"test_case_id"`
	Position    int       `json:"position"`
	IsMandatory bool      `json:"is_mandatory"`
	AddedBy     string    `json:"added_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type TestExecution struct {
	ID            string          `json:"id"`
	TestCaseID    string          `json:"test_case_id"`
	TestPlanID    *string         `json:"test_plan_id"`
	ExecutedBy    string          `json:"executed_by"`
	EnvironmentID *string         `json:"environment_id"`
	Status        ExecutionStatus `json:"status"`
	StartedAt     *time.Time      `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
	Duration      *int            `json:"duration"`
	Result        json.RawMessage `json:"result,omitempty"`
	Logs          string          `json:"logs"`
	Screenshots   []string        `json:"screenshots"`
	ErrorMessage  string          `json:"error_message"`
	AIAnalysis    json.RawMessage `json:"ai_analysis,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Comment struct {
	ID              string      `json:"id"`
	TestCaseID      string      `json:"test_case_id"`
	UserID          string      `json:"user_id"`
	UserName        string      `json:"user_name"`
	CommentType     CommentType `json:"comment_type"`
	Content         string      `json:"content"`
	ParentCommentID *string     `json:"parent_comment_id"`
	Resolved        bool        `json:"resolved"`
	ResolvedAt      *time.Time  `json:"resolved_at"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type Attachment struct {
	ID          string           `json:"id"`
	FileName    string           `json:"file_name"`
	FilePath    string           `json:"file_path"`
	FileSize    int64            `json:"file_size"`
	FileType    string           `json:"file_type"`
	Description string           `json:"description"`
	Target      AttachmentTarget `json:"target"`
	UploadedBy  string           `json:"uploaded_by"`
	CreatedAt   time.Time        `json:"created_at"`
}

type ActivityLog struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	UserName   string          `json:"user_name"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	TargetName string          `json:"target_name"`
	ProjectID  *string         `json:"project_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ExecutionStats aggregates executions over a set of projects.
type ExecutionStats struct {
	Total           int64
	Completed       int64
	Running         int64
	AverageDuration float64
}

type DashboardStats struct {
	TotalProjects        int64         `json:"total_projects"`
	TotalTestCases       int64         `json:"total_test_cases"`
	TotalExecutions      int64         `json:"total_executions"`
	PassRate             float64       `json:"pass_rate"`
	AverageExecutionTime float64       `json:"average_execution_time"`
	ActiveTestRuns       int64         `json:"active_test_runs"`
	RecentActivity       []ActivityLog `json:"recent_activity"`
}

// Claims is the identity carried by an access token.
type Claims struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	ExpiresAt time.Time `json:"exp"`
}

type FailureAnalysis struct {
	Success     bool     `json:"success"`
	Analysis    string   `json:"analysis"`
	Suggestions []string `json:"suggestions"`
	Confidence  float64  `json:"confidence"`
}

type Insight struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	ActionItems []string `json:"action_items"`
}

type TestInsights struct {
	Insights        []Insight `json:"insights"`
	Summary         string    `json:"summary"`
	Recommendations []string  `json:"recommendations"`
}
