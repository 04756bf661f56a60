package sqlite

import (
	"time"

	"gorm.io/datatypes"
)

type UserModel struct {
	ID             string `gorm:"primaryKey"`
	Email          string `gorm:"uniqueIndex;not null"`
	FullName       string `gorm:"not null"`
	HashedPassword string `gorm:"column:hashed_password;not null"`
	Role           string `gorm:"not null"`
	IsActive       bool   `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (UserModel) TableName() string { return "users" }

type TeamModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	CreatedBy   string `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TeamModel) TableName() string { return "teams" }

type TeamMemberModel struct {
	ID       string `gorm:"primaryKey"`
	TeamID   string `gorm:"not null;index:idx_team_user,unique"`
	UserID   string `gorm:"not null;index:idx_team_user,unique"`
	Role     string `gorm:"not null"`
	JoinedAt time.Time
}

func (TeamMemberModel) TableName() string { return "team_members" }

type ProjectModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	CreatedBy   string  `gorm:"not null;index"`
	TeamID      *string `gorm:"index"`
	IsActive    bool    `gorm:"not null"`
	Version     int     `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ProjectModel) TableName() string { return "projects" }

type EnvironmentModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	BaseURL     string                                `gorm:"column:base_url"`
	ProjectID   string                                `gorm:"not null;index"`
	CreatedBy   string                                `gorm:"not null"`
	Variables   datatypes.JSONType[map[string]string] `gorm:"column:variables;type:json"`
	IsActive    bool                                  `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (EnvironmentModel) TableName() string { return "environments" }

type TestCaseModel struct {
	ID                 string `gorm:"primaryKey"`
	Title              string `gorm:"not null"`
	Description        string
	ProjectID          string `gorm:"not null;index"`
	TestType           string `gorm:"not null"`
	Priority           string `gorm:"not null"`
	Status             string `gorm:"not null"`
	ExpectedResult     string
	CreatedBy          string                      `gorm:"not null"`
	AssignedTo         *string                     `gorm:"index"`
	Tags               datatypes.JSONSlice[string] `gorm:"column:tags;type:json"`
	AIGenerated        bool                        `gorm:"column:ai_generated;not null"`
	SelfHealingEnabled bool                        `gorm:"column:self_healing_enabled;not null"`
	Prerequisites      string
	TestData           datatypes.JSON `gorm:"column:test_data;type:json"`
	AutomationConfig   datatypes.JSON `gorm:"column:automation_config;type:json"`
	Version            int            `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (TestCaseModel) TableName() string { return "test_cases" }

type TestStepModel struct {
	ID             string `gorm:"primaryKey"`
	TestCaseID     string `gorm:"not null;index:idx_case_step,unique"`
	StepNumber     int    `gorm:"not null;index:idx_case_step,unique"`
	Description    string `gorm:"not null"`
	ExpectedResult string
	ActualResult   *string
	Status         *string
	CreatedAt      time.Time
}

func (TestStepModel) TableName() string { return "test_steps" }

type TestPlanModel struct {
	ID             string `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	Description    string
	ProjectID      string `gorm:"not null;index"`
	CreatedBy      string `gorm:"not null"`
	Status         string `gorm:"not null"`
	ScheduledStart *time.Time
	ScheduledEnd   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TestPlanModel) TableName() string { return "test_plans" }

type TestPlanCaseModel struct {
	TestPlanID  string `gorm:"primaryKey"`
	TestCaseID  string `gorm:"primaryKey"`
	Position    int    `gorm:"not null"`
	IsMandatory bool   `gorm:"not null"`
	AddedBy     string `gorm:"not null"`
	CreatedAt   time.Time
}

func (TestPlanCaseModel) TableName() string { return "test_plan_test_cases" }

type TestExecutionModel struct {
	ID            string  `gorm:"primaryKey"`
	TestCaseID    string  `gorm:"not null;index"`
	TestPlanID    *string `gorm:"index"`
	ExecutedBy    string  `gorm:"not null"`
	EnvironmentID *string
	Status        string `gorm:"not null;index"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Duration      *int
	Result        datatypes.JSON `gorm:"column:result;type:json"`
	Logs          string
	Screenshots   datatypes.JSONSlice[string] `gorm:"column:screenshots;type:json"`
	ErrorMessage  string
	AIAnalysis    datatypes.JSON `gorm:"column:ai_analysis;type:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (TestExecutionModel) TableName() string { return "test_executions" }

type CommentModel struct {
	ID              string `gorm:"primaryKey"`
	TestCaseID      string `gorm:"not null;index"`
	UserID          string `gorm:"not null"`
	UserName        string `gorm:"not null"`
	CommentType     string `gorm:"not null"`
	Content         string `gorm:"not null"`
	ParentCommentID *string
	Resolved        bool `gorm:"not null"`
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (CommentModel) TableName() string { return "comments" }

// AttachmentModel stores the target as one nullable foreign key per kind;
// a CHECK constraint keeps exactly one of them set.
type AttachmentModel struct {
	ID              string `gorm:"primaryKey"`
	FileName        string `gorm:"not null"`
	FilePath        string `gorm:"not null"`
	FileSize        int64  `gorm:"not null"`
	FileType        string
	Description     string
	ProjectID       *string `gorm:"index"`
	TestCaseID      *string `gorm:"index"`
	TestPlanID      *string `gorm:"index"`
	TestExecutionID *string `gorm:"index"`
	UploadedBy      string  `gorm:"not null"`
	CreatedAt       time.Time
}

func (AttachmentModel) TableName() string { return "attachments" }

type ActivityLogModel struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"not null;index"`
	UserName   string `gorm:"not null"`
	Action     string `gorm:"not null"`
	TargetType string `gorm:"not null"`
	TargetID   string `gorm:"not null"`
	TargetName string
	ProjectID  *string        `gorm:"index"`
	Details    datatypes.JSON `gorm:"column:details;type:json"`
	CreatedAt  time.Time      `gorm:"index"`
}

func (ActivityLogModel) TableName() string { return "activity_logs" }
