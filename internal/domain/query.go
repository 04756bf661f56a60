package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Page is an offset window over a list result.
type Page struct {
	Offset int
	Limit  int
}

type ProjectFilter struct {
	// AccessibleTo restricts the result to projects the user created or
	// can see through team membership.
	AccessibleTo string
	TeamID       string
	IsActive     *bool
}

type TestCaseFilter struct {
	ProjectIDs []string
	ProjectID  string
	TestType   TestType
	Priority   Priority
	Status     Status
	AssignedTo string
}

type ExecutionFilter struct {
	// ProjectIDs scopes by the project of the executed test case. Executions
	// run by ExecutedBy are included even when their test case is gone.
	ProjectIDs []string
	ExecutedBy string
	TestCaseID string
	TestPlanID string
	Status     ExecutionStatus
}

type ActivityFilter struct {
	UserID     string
	ProjectIDs []string
	Limit      int
}

type AttachmentKind string

const (
	AttachProject       AttachmentKind = "project"
	AttachTestCase      AttachmentKind = "test_case"
	AttachTestPlan      AttachmentKind = "test_plan"
	AttachTestExecution AttachmentKind = "test_execution"
)

func (k AttachmentKind) Valid() bool {
	switch k {
	case AttachProject, AttachTestCase, AttachTestPlan, AttachTestExecution:
		return true
	}
	return false
}

// AttachmentTarget is the entity an attachment hangs off.
type AttachmentTarget struct {
	Kind AttachmentKind `json:"entity_type"`
	ID   string         `json:"entity_id"`
}

func (t AttachmentTarget) Validate() error {
	if !t.Kind.Valid() {
		return Invalid("unsupported entity_type %q", t.Kind)
	}
	if t.ID == "" {
		return Invalid("entity_id is required")
	}
	return nil
}

func (t AttachmentTarget) String() string {
	return fmt.Sprintf("%s:%s", t.Kind, t.ID)
}

const (
	ChannelComment   = "comment_update"
	ChannelExecution = "test_execution_update"
	ChannelTestCase  = "test_case_update"
	ChannelDashboard = "dashboard_update"
)

// Event is a notification broadcast after a committed change.
type Event struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"data"`
	At      time.Time       `json:"timestamp"`
}

// ProjectRoom names the notification room for a project.
func ProjectRoom(projectID string) string {
	if projectID == "" {
		return ""
	}
	return "project:" + projectID
}

// RoomProject returns the project id of a project room.
func RoomProject(room string) (string, bool) {
	id, ok := strings.CutPrefix(room, "project:")
	return id, ok && id != ""
}
