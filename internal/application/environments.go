package application

import (
	"context"
	"net/url"
	"strings"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

type EnvironmentService struct {
	*core
}

type CreateEnvironmentInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	BaseURL     string            `json:"base_url"`
	ProjectID   string            `json:"project_id"`
	Variables   map[string]string `json:"variables"`
}

type UpdateEnvironmentInput struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	BaseURL     *string            `json:"base_url"`
	Variables   *map[string]string `json:"variables"`
	IsActive    *bool              `json:"is_active"`
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return domain.Invalid("base_url must be an absolute URL")
	}
	return nil
}

func (s *EnvironmentService) Create(ctx context.Context, actor domain.User, in CreateEnvironmentInput) (domain.Environment, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Environment{}, domain.Invalid("name is required")
	}
	if in.ProjectID == "" {
		return domain.Environment{}, domain.Invalid("project_id is required")
	}
	if err := validateBaseURL(in.BaseURL); err != nil {
		return domain.Environment{}, err
	}

	var env domain.Environment
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		if _, err := readableProject(ctx, tx, in.ProjectID, actor.ID); err != nil {
			return asMissingRef(err, "project")
		}
		var err error
		env, err = tx.CreateEnvironment(ctx, domain.Environment{
			Name:        name,
			Description: in.Description,
			BaseURL:     in.BaseURL,
			ProjectID:   in.ProjectID,
			CreatedBy:   actor.ID,
			Variables:   in.Variables,
			IsActive:    true,
		})
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "created", targetType: "environment", targetID: env.ID, targetName: env.Name, projectID: env.ProjectID})
		return err
	})
	if err != nil {
		return domain.Environment{}, err
	}

	s.emitActivity(ctx, entry)
	return env, nil
}

func (s *EnvironmentService) Get(ctx context.Context, actor domain.User, id string) (domain.Environment, error) {
	env, err := s.repo.GetEnvironment(ctx, id)
	if err != nil {
		return domain.Environment{}, err
	}
	if _, err := readableProject(ctx, s.repo, env.ProjectID, actor.ID); err != nil {
		return domain.Environment{}, err
	}
	return env, nil
}

func (s *EnvironmentService) ListByProject(ctx context.Context, actor domain.User, projectID string, offset, limit int) ([]domain.Environment, error) {
	if projectID == "" {
		return nil, domain.Invalid("project_id is required")
	}
	if _, err := readableProject(ctx, s.repo, projectID, actor.ID); err != nil {
		return nil, err
	}
	return s.repo.ListEnvironments(ctx, projectID, s.page(offset, limit))
}

func (s *EnvironmentService) Update(ctx context.Context, actor domain.User, id string, in UpdateEnvironmentInput) (domain.Environment, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return domain.Environment{}, domain.Invalid("name cannot be empty")
	}
	if in.BaseURL != nil {
		if err := validateBaseURL(*in.BaseURL); err != nil {
			return domain.Environment{}, err
		}
	}

	var env domain.Environment
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := tx.GetEnvironment(ctx, id)
		if err != nil {
			return err
		}
		if current.CreatedBy != actor.ID {
			return domain.Forbidden("only the environment creator can modify it")
		}
		if in.Name != nil {
			current.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			current.Description = *in.Description
		}
		if in.BaseURL != nil {
			current.BaseURL = *in.BaseURL
		}
		if in.Variables != nil {
			current.Variables = *in.Variables
		}
		if in.IsActive != nil {
			current.IsActive = *in.IsActive
		}
		env, err = tx.UpdateEnvironment(ctx, current)
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "updated", targetType: "environment", targetID: env.ID, targetName: env.Name, projectID: env.ProjectID})
		return err
	})
	if err != nil {
		return domain.Environment{}, err
	}

	s.emitActivity(ctx, entry)
	return env, nil
}

func (s *EnvironmentService) Delete(ctx context.Context, actor domain.User, id string) error {
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := tx.GetEnvironment(ctx, id)
		if err != nil {
			return err
		}
		if current.CreatedBy != actor.ID {
			return domain.Forbidden("only the environment creator can delete it")
		}
		if err := tx.DeleteEnvironment(ctx, id); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "deleted", targetType: "environment", targetID: id, targetName: current.Name, projectID: current.ProjectID})
		return err
	})
	if err != nil {
		return err
	}

	s.emitActivity(ctx, entry)
	return nil
}
