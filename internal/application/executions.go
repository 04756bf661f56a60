package application

import (
	"context"
	"encoding/json"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

type ExecutionService struct {
	*core
}

type CreateExecutionInput struct {
	TestCaseID    string                 `json:"test_case_id"`
	TestPlanID    *string                `json:"test_plan_id"`
	EnvironmentID *string                `json:"environment_id"`
	Status        domain.ExecutionStatus `json:"status"`
}

type UpdateExecutionInput struct {
	Status       domain.ExecutionStatus `json:"status"`
	Result       json.RawMessage        `json:"result"`
	Logs         *string                `json:"logs"`
	Screenshots  *[]string              `json:"screenshots"`
	ErrorMessage *string                `json:"error_message"`
	Duration     *int                   `json:"duration"`
}

type ExecutionQuery struct {
	TestCaseID string
	TestPlanID string
	Status     domain.ExecutionStatus
	Offset     int
	Limit      int
}

func (s *ExecutionService) Create(ctx context.Context, actor domain.User, in CreateExecutionInput) (domain.TestExecution, error) {
	if in.TestCaseID == "" {
		return domain.TestExecution{}, domain.Invalid("test_case_id is required")
	}
	status := in.Status
	if status == "" {
		status = domain.ExecutionPending
	}
	if !status.Valid() {
		return domain.TestExecution{}, domain.Invalid("unknown status %q", status)
	}

	var exec domain.TestExecution
	var projectID string
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		tc, err := readableTestCase(ctx, tx, in.TestCaseID, actor.ID)
		if err != nil {
			return asMissingRef(err, "test case")
		}
		projectID = tc.ProjectID

		planID := optionalString(in.TestPlanID)
		if planID != nil {
			plan, err := tx.GetTestPlan(ctx, *planID)
			if err != nil {
				return asMissingRef(err, "test plan")
			}
			if plan.ProjectID != tc.ProjectID {
				return domain.Invalid("test plan belongs to another project")
			}
		}
		envID := optionalString(in.EnvironmentID)
		if envID != nil {
			env, err := tx.GetEnvironment(ctx, *envID)
			if err != nil {
				return asMissingRef(err, "environment")
			}
			if env.ProjectID != tc.ProjectID {
				return domain.Invalid("environment belongs to another project")
			}
		}

		value := domain.TestExecution{
			TestCaseID:    tc.ID,
			TestPlanID:    planID,
			ExecutedBy:    actor.ID,
			EnvironmentID: envID,
			Screenshots:   []string{},
		}
		s.transition(&value, status, nil)

		exec, err = tx.CreateExecution(ctx, value)
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "started", targetType: "test_execution", targetID: exec.ID, targetName: tc.Title, projectID: projectID,
			details: map[string]string{"status": string(exec.Status)},
		})
		return err
	})
	if err != nil {
		return domain.TestExecution{}, err
	}

	s.emit(ctx, actor.ID, domain.ChannelExecution, "test_execution_created", projectID, exec)
	s.emitActivity(ctx, entry)
	return exec, nil
}

// transition moves exec to status and stamps the lifecycle timestamps.
// A finished run without an explicit duration gets one from started_at.
func (s *ExecutionService) transition(exec *domain.TestExecution, status domain.ExecutionStatus, duration *int) {
	now := s.now()
	exec.Status = status
	switch {
	case status == domain.ExecutionRunning:
		exec.StartedAt = &now
	case status.Finished():
		exec.CompletedAt = &now
	}
	if duration != nil {
		d := *duration
		exec.Duration = &d
	} else if status.Finished() && exec.StartedAt != nil {
		d := int(now.Sub(*exec.StartedAt).Seconds())
		exec.Duration = &d
	}
}

func (s *ExecutionService) Get(ctx context.Context, actor domain.User, id string) (domain.TestExecution, error) {
	exec, _, err := readableExecution(ctx, s.repo, id, actor.ID)
	return exec, err
}

// List covers executions of readable projects plus the actor's own runs.
func (s *ExecutionService) List(ctx context.Context, actor domain.User, q ExecutionQuery) ([]domain.TestExecution, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, domain.Invalid("unknown status %q", q.Status)
	}
	ids, err := s.repo.AccessibleProjectIDs(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExecutions(ctx, domain.ExecutionFilter{
		ProjectIDs: ids,
		ExecutedBy: actor.ID,
		TestCaseID: q.TestCaseID,
		TestPlanID: q.TestPlanID,
		Status:     q.Status,
	}, s.page(q.Offset, q.Limit))
}

func (s *ExecutionService) UpdateStatus(ctx context.Context, actor domain.User, id string, in UpdateExecutionInput) (domain.TestExecution, error) {
	if !in.Status.Valid() {
		return domain.TestExecution{}, domain.Invalid("unknown status %q", in.Status)
	}
	if in.Duration != nil && *in.Duration < 0 {
		return domain.TestExecution{}, domain.Invalid("duration must not be negative")
	}
	if err := validJSON(in.Result, "result"); err != nil {
		return domain.TestExecution{}, err
	}

	var exec domain.TestExecution
	var projectID string
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := tx.GetExecution(ctx, id)
		if err != nil {
			return err
		}
		if current.ExecutedBy != actor.ID {
			return domain.Forbidden("only the executor can update a test execution")
		}
		if projectID, err = executionProject(ctx, tx, current); err != nil {
			return err
		}

		s.transition(&current, in.Status, in.Duration)
		if in.Result != nil {
			current.Result = in.Result
		}
		if in.Logs != nil {
			current.Logs = *in.Logs
		}
		if in.Screenshots != nil {
			current.Screenshots = *in.Screenshots
		}
		if in.ErrorMessage != nil {
			current.ErrorMessage = *in.ErrorMessage
		}

		exec, err = tx.UpdateExecution(ctx, current)
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: string(exec.Status), targetType: "test_execution", targetID: exec.ID, projectID: projectID,
			details: map[string]any{"status": exec.Status, "duration": exec.Duration},
		})
		return err
	})
	if err != nil {
		return domain.TestExecution{}, err
	}

	s.emit(ctx, actor.ID, domain.ChannelExecution, "test_execution_updated", projectID, exec)
	s.emitActivity(ctx, entry)
	return exec, nil
}

func (s *ExecutionService) Delete(ctx context.Context, actor domain.User, id string) error {
	var projectID string
	var entry domain.ActivityLog
	var files []string
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := tx.GetExecution(ctx, id)
		if err != nil {
			return err
		}
		if current.ExecutedBy != actor.ID {
			return domain.Forbidden("only the executor can delete a test execution")
		}
		if projectID, err = executionProject(ctx, tx, current); err != nil {
			return err
		}
		if files, err = s.attachedFiles(ctx, tx, domain.AttachTestExecution, id); err != nil {
			return err
		}
		if err := tx.DeleteExecution(ctx, id); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "deleted", targetType: "test_execution", targetID: id, projectID: projectID})
		return err
	})
	if err != nil {
		return err
	}

	s.removeFiles(ctx, files...)
	s.emit(ctx, actor.ID, domain.ChannelExecution, "test_execution_deleted", projectID, map[string]string{"id": id})
	s.emitActivity(ctx, entry)
	return nil
}
