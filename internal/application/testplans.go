package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

type TestPlanService struct {
	*core
}

type CreateTestPlanInput struct {
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	ProjectID      string        `json:"project_id"`
	Status         domain.Status `json:"status"`
	ScheduledStart *time.Time    `json:"scheduled_start"`
	ScheduledEnd   *time.Time    `json:"scheduled_end"`
	TestCaseIDs    []string      `json:"test_case_ids"`
}

type UpdateTestPlanInput struct {
	Name           *string        `json:"name"`
	Description    *string        `json:"description"`
	Status         *domain.Status `json:"status"`
	ScheduledStart *time.Time     `json:"scheduled_start"`
	ScheduledEnd   *time.Time     `json:"scheduled_end"`
}

type AddPlanCaseInput struct {
	TestCaseID  string `json:"test_case_id"`
	Position    int    `json:"order"`
	IsMandatory *bool  `json:"is_mandatory"`
}

func validateSchedule(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return domain.Invalid("scheduled_end must not precede scheduled_start")
	}
	return nil
}

func (s *TestPlanService) Create(ctx context.Context, actor domain.User, in CreateTestPlanInput) (domain.TestPlan, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.TestPlan{}, domain.Invalid("name is required")
	}
	if in.ProjectID == "" {
		return domain.TestPlan{}, domain.Invalid("project_id is required")
	}
	status := in.Status
	if status == "" {
		status = domain.StatusDraft
	}
	if !status.Valid() {
		return domain.TestPlan{}, domain.Invalid("unknown status %q", status)
	}
	if err := validateSchedule(in.ScheduledStart, in.ScheduledEnd); err != nil {
		return domain.TestPlan{}, err
	}

	var plan domain.TestPlan
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		if _, err := readableProject(ctx, tx, in.ProjectID, actor.ID); err != nil {
			return asMissingRef(err, "project")
		}
		created, err := tx.CreateTestPlan(ctx, domain.TestPlan{
			Name:           name,
			Description:    in.Description,
			ProjectID:      in.ProjectID,
			CreatedBy:      actor.ID,
			Status:         status,
			ScheduledStart: in.ScheduledStart,
			ScheduledEnd:   in.ScheduledEnd,
		})
		if err != nil {
			return err
		}
		for i, caseID := range in.TestCaseIDs {
			if err := s.linkCase(ctx, tx, created, caseID, i+1, true, actor.ID); err != nil {
				return err
			}
		}
		if plan, err = tx.GetTestPlan(ctx, created.ID); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "created", targetType: "test_plan", targetID: plan.ID, targetName: plan.Name, projectID: plan.ProjectID})
		return err
	})
	if err != nil {
		return domain.TestPlan{}, err
	}

	s.emitActivity(ctx, entry)
	return plan, nil
}

// Get returns the plan with its linked cases in order.
func (s *TestPlanService) Get(ctx context.Context, actor domain.User, id string) (domain.TestPlan, error) {
	plan, err := s.repo.GetTestPlan(ctx, id)
	if err != nil {
		return domain.TestPlan{}, err
	}
	if _, err := readableProject(ctx, s.repo, plan.ProjectID, actor.ID); err != nil {
		return domain.TestPlan{}, err
	}
	return plan, nil
}

func (s *TestPlanService) ListByProject(ctx context.Context, actor domain.User, projectID string, offset, limit int) ([]domain.TestPlan, error) {
	if projectID == "" {
		return nil, domain.Invalid("project_id is required")
	}
	if _, err := readableProject(ctx, s.repo, projectID, actor.ID); err != nil {
		return nil, err
	}
	return s.repo.ListTestPlans(ctx, projectID, s.page(offset, limit))
}

func (s *TestPlanService) Update(ctx context.Context, actor domain.User, id string, in UpdateTestPlanInput) (domain.TestPlan, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return domain.TestPlan{}, domain.Invalid("name cannot be empty")
	}
	if in.Status != nil && !in.Status.Valid() {
		return domain.TestPlan{}, domain.Invalid("unknown status %q", *in.Status)
	}

	var plan domain.TestPlan
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := s.ownedPlan(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		if in.Name != nil {
			current.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			current.Description = *in.Description
		}
		if in.Status != nil {
			current.Status = *in.Status
		}
		if in.ScheduledStart != nil {
			current.ScheduledStart = in.ScheduledStart
		}
		if in.ScheduledEnd != nil {
			current.ScheduledEnd = in.ScheduledEnd
		}
		if err := validateSchedule(current.ScheduledStart, current.ScheduledEnd); err != nil {
			return err
		}
		plan, err = tx.UpdateTestPlan(ctx, current)
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "updated", targetType: "test_plan", targetID: plan.ID, targetName: plan.Name, projectID: plan.ProjectID})
		return err
	})
	if err != nil {
		return domain.TestPlan{}, err
	}

	s.emitActivity(ctx, entry)
	return plan, nil
}

func (s *TestPlanService) Delete(ctx context.Context, actor domain.User, id string) error {
	var entry domain.ActivityLog
	var files []string
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := s.ownedPlan(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		if files, err = s.attachedFiles(ctx, tx, domain.AttachTestPlan, id); err != nil {
			return err
		}
		if err := tx.DeleteTestPlan(ctx, id); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "deleted", targetType: "test_plan", targetID: id, targetName: current.Name, projectID: current.ProjectID})
		return err
	})
	if err != nil {
		return err
	}

	s.removeFiles(ctx, files...)
	s.emitActivity(ctx, entry)
	return nil
}

// AddCase links a test case of the same project. A zero order appends.
func (s *TestPlanService) AddCase(ctx context.Context, actor domain.User, planID string, in AddPlanCaseInput) (domain.TestPlan, error) {
	if in.TestCaseID == "" {
		return domain.TestPlan{}, domain.Invalid("test_case_id is required")
	}
	if in.Position < 0 {
		return domain.TestPlan{}, domain.Invalid("order must not be negative")
	}
	mandatory := true
	if in.IsMandatory != nil {
		mandatory = *in.IsMandatory
	}

	var plan domain.TestPlan
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := s.ownedPlan(ctx, tx, planID, actor.ID)
		if err != nil {
			return err
		}
		if err := s.linkCase(ctx, tx, current, in.TestCaseID, in.Position, mandatory, actor.ID); err != nil {
			return err
		}
		if plan, err = tx.GetTestPlan(ctx, planID); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "case_added", targetType: "test_plan", targetID: plan.ID, targetName: plan.Name, projectID: plan.ProjectID,
			details: map[string]string{"test_case_id": in.TestCaseID},
		})
		return err
	})
	if err != nil {
		return domain.TestPlan{}, err
	}

	s.emitActivity(ctx, entry)
	return plan, nil
}

func (s *TestPlanService) RemoveCase(ctx context.Context, actor domain.User, planID, caseID string) (domain.TestPlan, error) {
	var plan domain.TestPlan
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		if _, err := s.ownedPlan(ctx, tx, planID, actor.ID); err != nil {
			return err
		}
		if err := tx.RemoveTestPlanCase(ctx, planID, caseID); err != nil {
			return err
		}
		var err error
		if plan, err = tx.GetTestPlan(ctx, planID); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "case_removed", targetType: "test_plan", targetID: plan.ID, targetName: plan.Name, projectID: plan.ProjectID,
			details: map[string]string{"test_case_id": caseID},
		})
		return err
	})
	if err != nil {
		return domain.TestPlan{}, err
	}

	s.emitActivity(ctx, entry)
	return plan, nil
}

func (s *TestPlanService) linkCase(ctx context.Context, tx domain.Repository, plan domain.TestPlan, caseID string, position int, mandatory bool, actorID string) error {
	tc, err := tx.GetTestCase(ctx, caseID)
	if err != nil {
		return asMissingRef(err, "test case")
	}
	if tc.ProjectID != plan.ProjectID {
		return domain.Invalid("test case %s belongs to another project", caseID)
	}
	_, err = tx.AddTestPlanCase(ctx, domain.TestPlanCase{
		TestPlanID:  plan.ID,
		TestCaseID:  tc.ID,
		Position:    position,
		IsMandatory: mandatory,
		AddedBy:     actorID,
	})
	if errors.Is(err, domain.ErrConflict) {
		return domain.Conflict("test case %s is already in the plan", caseID)
	}
	return err
}

// ownedPlan loads a plan the actor may modify: only its creator can.
func (s *TestPlanService) ownedPlan(ctx context.Context, tx domain.Repository, id, userID string) (domain.TestPlan, error) {
	plan, err := tx.GetTestPlan(ctx, id)
	if err != nil {
		return domain.TestPlan{}, err
	}
	if plan.CreatedBy != userID {
		return domain.TestPlan{}, domain.Forbidden("only the plan creator can modify it")
	}
	return plan, nil
}
