package application

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

type TestCaseService struct {
	*core
}

type StepInput struct {
	StepNumber     int    `json:"step_number"`
	Description    string `json:"description"`
	ExpectedResult string `json:"expected_result"`
}

type CreateTestCaseInput struct {
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	ProjectID          string          `json:"project_id"`
	TestType           domain.TestType `json:"test_type"`
	Priority           domain.Priority `json:"priority"`
	Status             domain.Status   `json:"status"`
	ExpectedResult     string          `json:"expected_result"`
	AssignedTo         *string         `json:"assigned_to"`
	Tags               []string        `json:"tags"`
	AIGenerated        bool            `json:"ai_generated"`
	SelfHealingEnabled bool            `json:"self_healing_enabled"`
	Prerequisites      string          `json:"prerequisites"`
	TestData           json.RawMessage `json:"test_data"`
	AutomationConfig   json.RawMessage `json:"automation_config"`
	Steps              []StepInput     `json:"steps"`
}

// UpdateTestCaseInput changes only the non-nil fields. Steps, when given,
// replace the whole step list.
type UpdateTestCaseInput struct {
	Title              *string          `json:"title"`
	Description        *string          `json:"description"`
	TestType           *domain.TestType `json:"test_type"`
	Priority           *domain.Priority `json:"priority"`
	Status             *domain.Status   `json:"status"`
	ExpectedResult     *string          `json:"expected_result"`
	AssignedTo         *string          `json:"assigned_to"`
	Tags               *[]string        `json:"tags"`
	SelfHealingEnabled *bool            `json:"self_healing_enabled"`
	Prerequisites      *string          `json:"prerequisites"`
	TestData           json.RawMessage  `json:"test_data"`
	AutomationConfig   json.RawMessage  `json:"automation_config"`
	Steps              *[]StepInput     `json:"steps"`
	ExpectedVersion    *int             `json:"expected_version"`
}

type StepPatch struct {
	StepNumber     *int    `json:"step_number"`
	Description    *string `json:"description"`
	ExpectedResult *string `json:"expected_result"`
	ActualResult   *string `json:"actual_result"`
	Status         *string `json:"status"`
}

type TestCaseQuery struct {
	ProjectID  string
	TestType   domain.TestType
	Priority   domain.Priority
	Status     domain.Status
	AssignedTo string
	Offset     int
	Limit      int
}

func validateSteps(steps []StepInput) ([]domain.TestStep, error) {
	out := make([]domain.TestStep, 0, len(steps))
	seen := make(map[int]bool, len(steps))
	for i, st := range steps {
		if strings.TrimSpace(st.Description) == "" {
			return nil, domain.Invalid("step %d: description is required", i+1)
		}
		n := st.StepNumber
		if n < 0 {
			return nil, domain.Invalid("step %d: step_number must be positive", i+1)
		}
		if n == 0 {
			n = i + 1
		}
		if seen[n] {
			return nil, domain.Invalid("duplicate step_number %d", n)
		}
		seen[n] = true
		out = append(out, domain.TestStep{StepNumber: n, Description: st.Description, ExpectedResult: st.ExpectedResult})
	}
	return out, nil
}

func validJSON(raw json.RawMessage, field string) error {
	if len(raw) > 0 && !json.Valid(raw) {
		return domain.Invalid("%s must be valid JSON", field)
	}
	return nil
}

func (in *CreateTestCaseInput) normalize() ([]domain.TestStep, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, domain.Invalid("title is required")
	}
	if in.TestType == "" {
		in.TestType = domain.TestTypeFunctional
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if in.Status == "" {
		in.Status = domain.StatusDraft
	}
	if !in.TestType.Valid() {
		return nil, domain.Invalid("unknown test_type %q", in.TestType)
	}
	if !in.Priority.Valid() {
		return nil, domain.Invalid("unknown priority %q", in.Priority)
	}
	if !in.Status.Valid() {
		return nil, domain.Invalid("unknown status %q", in.Status)
	}
	if err := validJSON(in.TestData, "test_data"); err != nil {
		return nil, err
	}
	if err := validJSON(in.AutomationConfig, "automation_config"); err != nil {
		return nil, err
	}
	return validateSteps(in.Steps)
}

func (s *TestCaseService) Create(ctx context.Context, actor domain.User, in CreateTestCaseInput) (domain.TestCase, error) {
	if in.ProjectID == "" {
		return domain.TestCase{}, domain.Invalid("project_id is required")
	}
	steps, err := in.normalize()
	if err != nil {
		return domain.TestCase{}, err
	}

	var tc domain.TestCase
	var entry domain.ActivityLog
	err = s.repo.InTx(ctx, func(tx domain.Repository) error {
		var err error
		tc, entry, err = s.create(ctx, tx, actor, in, steps)
		return err
	})
	if err != nil {
		return domain.TestCase{}, err
	}

	s.emit(ctx, actor.ID, domain.ChannelTestCase, "test_case_created", tc.ProjectID, tc)
	s.emitActivity(ctx, entry)
	return tc, nil
}

// create runs inside the caller's transaction.
func (s *TestCaseService) create(ctx context.Context, tx domain.Repository, actor domain.User, in CreateTestCaseInput, steps []domain.TestStep) (domain.TestCase, domain.ActivityLog, error) {
	if _, err := readableProject(ctx, tx, in.ProjectID, actor.ID); err != nil {
		return domain.TestCase{}, domain.ActivityLog{}, asMissingRef(err, "project")
	}
	assignee := optionalString(in.AssignedTo)
	if assignee != nil {
		if _, err := tx.GetUserByID(ctx, *assignee); err != nil {
			return domain.TestCase{}, domain.ActivityLog{}, asMissingRef(err, "assigned user")
		}
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	tc, err := tx.CreateTestCase(ctx, domain.TestCase{
		Title:              in.Title,
		Description:        in.Description,
		ProjectID:          in.ProjectID,
		TestType:           in.TestType,
		Priority:           in.Priority,
		Status:             in.Status,
		ExpectedResult:     in.ExpectedResult,
		CreatedBy:          actor.ID,
		AssignedTo:         assignee,
		Tags:               tags,
		AIGenerated:        in.AIGenerated,
		SelfHealingEnabled: in.SelfHealingEnabled,
		Prerequisites:      in.Prerequisites,
		TestData:           in.TestData,
		AutomationConfig:   in.AutomationConfig,
		Steps:              steps,
	})
	if err != nil {
		return domain.TestCase{}, domain.ActivityLog{}, err
	}
	entry, err := s.record(ctx, tx, actor, activity{action: "created", targetType: "test_case", targetID: tc.ID, targetName: tc.Title, projectID: tc.ProjectID})
	return tc, entry, err
}

func (s *TestCaseService) Get(ctx context.Context, actor domain.User, id string) (domain.TestCase, error) {
	return readableTestCase(ctx, s.repo, id, actor.ID)
}

// List is scoped to projects the actor can read.
func (s *TestCaseService) List(ctx context.Context, actor domain.User, q TestCaseQuery) ([]domain.TestCase, error) {
	if q.TestType != "" && !q.TestType.Valid() {
		return nil, domain.Invalid("unknown test_type %q", q.TestType)
	}
	if q.Priority != "" && !q.Priority.Valid() {
		return nil, domain.Invalid("unknown priority %q", q.Priority)
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, domain.Invalid("unknown status %q", q.Status)
	}
	ids, err := s.repo.AccessibleProjectIDs(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTestCases(ctx, domain.TestCaseFilter{
		ProjectIDs: ids,
		ProjectID:  q.ProjectID,
		TestType:   q.TestType,
		Priority:   q.Priority,
		Status:     q.Status,
		AssignedTo: q.AssignedTo,
	}, s.page(q.Offset, q.Limit))
}

func (s *TestCaseService) Update(ctx context.Context, actor domain.User, id string, in UpdateTestCaseInput) (domain.TestCase, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return domain.TestCase{}, domain.Invalid("title cannot be empty")
	}
	if in.TestType != nil && !in.TestType.Valid() {
		return domain.TestCase{}, domain.Invalid("unknown test_type %q", *in.TestType)
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return domain.TestCase{}, domain.Invalid("unknown priority %q", *in.Priority)
	}
	if in.Status != nil && !in.Status.Valid() {
		return domain.TestCase{}, domain.Invalid("unknown status %q", *in.Status)
	}
	if err := validJSON(in.TestData, "test_data"); err != nil {
		return domain.TestCase{}, err
	}
	if err := validJSON(in.AutomationConfig, "automation_config"); err != nil {
		return domain.TestCase{}, err
	}
	var steps []domain.TestStep
	if in.Steps != nil {
		var err error
		if steps, err = validateSteps(*in.Steps); err != nil {
			return domain.TestCase{}, err
		}
	}

	var tc domain.TestCase
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := writableTestCase(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != current.Version {
			return domain.Conflict("test case version is %d, not %d", current.Version, *in.ExpectedVersion)
		}

		applyTestCasePatch(&current, in)
		if in.AssignedTo != nil {
			current.AssignedTo = optionalString(in.AssignedTo)
			if current.AssignedTo != nil {
				if _, err := tx.GetUserByID(ctx, *current.AssignedTo); err != nil {
					return asMissingRef(err, "assigned user")
				}
			}
		}

		if _, err = tx.UpdateTestCase(ctx, current); err != nil {
			return err
		}
		if in.Steps != nil {
			if _, err := tx.ReplaceTestSteps(ctx, id, steps); err != nil {
				return err
			}
		}
		if tc, err = tx.GetTestCase(ctx, id); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "updated", targetType: "test_case", targetID: tc.ID, targetName: tc.Title, projectID: tc.ProjectID})
		return err
	})
	if err != nil {
		return domain.TestCase{}, err
	}

	s.emit(ctx, actor.ID, domain.ChannelTestCase, "test_case_updated", tc.ProjectID, tc)
	s.emitActivity(ctx, entry)
	return tc, nil
}

func applyTestCasePatch(tc *domain.TestCase, in UpdateTestCaseInput) {
	if in.Title != nil {
		tc.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		tc.Description = *in.Description
	}
	if in.TestType != nil {
		tc.TestType = *in.TestType
	}
	if in.Priority != nil {
		tc.Priority = *in.Priority
	}
	if in.Status != nil {
		tc.Status = *in.Status
	}
	if in.ExpectedResult != nil {
		tc.ExpectedResult = *in.ExpectedResult
	}
	if in.Tags != nil {
		tc.Tags = *in.Tags
	}
	if in.SelfHealingEnabled != nil {
		tc.SelfHealingEnabled = *in.SelfHealingEnabled
	}
	if in.Prerequisites != nil {
		tc.Prerequisites = *in.Prerequisites
	}
	if in.TestData != nil {
		tc.TestData = in.TestData
	}
	if in.AutomationConfig != nil {
		tc.AutomationConfig = in.AutomationConfig
	}
}

// Delete removes the case with its steps and plan links. Executions and
// comments keep pointing at the removed id.
func (s *TestCaseService) Delete(ctx context.Context, actor domain.User, id string) error {
	var current domain.TestCase
	var entry domain.ActivityLog
	var files []string
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		var err error
		current, err = writableTestCase(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		if files, err = s.attachedFiles(ctx, tx, domain.AttachTestCase, id); err != nil {
			return err
		}
		if err := tx.DeleteTestCase(ctx, id); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "deleted", targetType: "test_case", targetID: id, targetName: current.Title, projectID: current.ProjectID})
		return err
	})
	if err != nil {
		return err
	}

	s.removeFiles(ctx, files...)
	s.emit(ctx, actor.ID, domain.ChannelTestCase, "test_case_deleted", current.ProjectID, map[string]string{"id": id, "project_id": current.ProjectID})
	s.emitActivity(ctx, entry)
	return nil
}

// AddStep appends after the highest step number unless one is given.
func (s *TestCaseService) AddStep(ctx context.Context, actor domain.User, testCaseID string, in StepInput) (domain.TestStep, error) {
	if strings.TrimSpace(in.Description) == "" {
		return domain.TestStep{}, domain.Invalid("description is required")
	}
	if in.StepNumber < 0 {
		return domain.TestStep{}, domain.Invalid("step_number must be positive")
	}

	var step domain.TestStep
	var tc domain.TestCase
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		var err error
		tc, err = writableTestCase(ctx, tx, testCaseID, actor.ID)
		if err != nil {
			return err
		}
		n := in.StepNumber
		if n == 0 {
			for _, st := range tc.Steps {
				if st.StepNumber > n {
					n = st.StepNumber
				}
			}
			n++
		}
		step, err = tx.CreateTestStep(ctx, domain.TestStep{
			TestCaseID:     tc.ID,
			StepNumber:     n,
			Description:    in.Description,
			ExpectedResult: in.ExpectedResult,
		})
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "step_added", targetType: "test_case", targetID: tc.ID, targetName: tc.Title, projectID: tc.ProjectID,
			details: map[string]int{"step_number": step.StepNumber},
		})
		return err
	})
	if err != nil {
		return domain.TestStep{}, err
	}

	s.emit(ctx, actor.ID, domain.ChannelTestCase, "test_step_added", tc.ProjectID, step)
	s.emitActivity(ctx, entry)
	return step, nil
}

func (s *TestCaseService) UpdateStep(ctx context.Context, actor domain.User, testCaseID, stepID string, in StepPatch) (domain.TestStep, error) {
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		return domain.TestStep{}, domain.Invalid("description cannot be empty")
	}
	if in.StepNumber != nil && *in.StepNumber <= 0 {
		return domain.TestStep{}, domain.Invalid("step_number must be positive")
	}

	var step domain.TestStep
	var tc domain.TestCase
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		var err error
		tc, err = writableTestCase(ctx, tx, testCaseID, actor.ID)
		if err != nil {
			return err
		}
		current, err := tx.GetTestStep(ctx, stepID)
		if err != nil {
			return err
		}
		if current.TestCaseID != tc.ID {
			return domain.NotFound("test step")
		}
		if in.StepNumber != nil {
			current.StepNumber = *in.StepNumber
		}
		if in.Description != nil {
			current.Description = *in.Description
		}
		if in.ExpectedResult != nil {
			current.ExpectedResult = *in.ExpectedResult
		}
		if in.ActualResult != nil {
			current.ActualResult = in.ActualResult
		}
		if in.Status != nil {
			current.Status = in.Status
		}
		step, err = tx.UpdateTestStep(ctx, current)
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "step_updated", targetType: "test_case", targetID: tc.ID, targetName: tc.Title, projectID: tc.ProjectID,
			details: map[string]int{"step_number": step.StepNumber},
		})
		return err
	})
	if err != nil {
		return domain.TestStep{}, err
	}

	s.emit(ctx, actor.ID, domain.ChannelTestCase, "test_step_updated", tc.ProjectID, step)
	s.emitActivity(ctx, entry)
	return step, nil
}

func (s *TestCaseService) DeleteStep(ctx context.Context, actor domain.User, testCaseID, stepID string) error {
	var tc domain.TestCase
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		var err error
		tc, err = writableTestCase(ctx, tx, testCaseID, actor.ID)
		if err != nil {
			return err
		}
		step, err := tx.GetTestStep(ctx, stepID)
		if err != nil {
			return err
		}
		if step.TestCaseID != tc.ID {
			return domain.NotFound("test step")
		}
		if err := tx.DeleteTestStep(ctx, stepID); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "step_deleted", targetType: "test_case", targetID: tc.ID, targetName: tc.Title, projectID: tc.ProjectID,
			details: map[string]int{"step_number": step.StepNumber},
		})
		return err
	})
	if err != nil {
		return err
	}

	s.emit(ctx, actor.ID, domain.ChannelTestCase, "test_step_deleted", tc.ProjectID, map[string]string{"id": stepID, "test_case_id": tc.ID})
	s.emitActivity(ctx, entry)
	return nil
}
