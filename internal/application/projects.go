package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

type ProjectService struct {
	*core
	cache domain.Cache
	ttl   time.Duration
}

type CreateProjectInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	TeamID      *string `json:"team_id"`
}

// UpdateProjectInput changes only the non-nil fields. An empty TeamID
// detaches the project from its team.
type UpdateProjectInput struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	TeamID          *string `json:"team_id"`
	IsActive        *bool   `json:"is_active"`
	ExpectedVersion *int    `json:"expected_version"`
}

func projectCacheKey(id string) string { return "project:" + id }

func (s *ProjectService) Create(ctx context.Context, actor domain.User, in CreateProjectInput) (domain.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Project{}, domain.Invalid("name is required")
	}
	teamID := optionalString(in.TeamID)

	var project domain.Project
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		if teamID != nil {
			if err := s.requireTeamAccess(ctx, tx, *teamID, actor.ID); err != nil {
				return err
			}
		}
		var err error
		project, err = tx.CreateProject(ctx, domain.Project{
			Name:        name,
			Description: in.Description,
			CreatedBy:   actor.ID,
			TeamID:      teamID,
			IsActive:    true,
		})
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "created", targetType: "project", targetID: project.ID, targetName: project.Name, projectID: project.ID})
		return err
	})
	if err != nil {
		return domain.Project{}, err
	}

	s.emitActivity(ctx, entry)
	return project, nil
}

// Get reads through the project cache; access is checked on every call.
func (s *ProjectService) Get(ctx context.Context, actor domain.User, id string) (domain.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	ok, err := canReadProject(ctx, s.repo, project, actor.ID)
	if err != nil {
		return domain.Project{}, err
	}
	if !ok {
		return domain.Project{}, domain.Forbidden("no access to project")
	}
	return project, nil
}

// CanRead reports whether userID may read projectID. Lookup failures
// count as no access.
func (s *ProjectService) CanRead(ctx context.Context, userID, projectID string) bool {
	project, err := s.load(ctx, projectID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("project access check failed", "project_id", projectID, "err", err)
		}
		return false
	}
	ok, err := canReadProject(ctx, s.repo, project, userID)
	if err != nil {
		s.logger.Warn("project access check failed", "project_id", projectID, "user_id", userID, "err", err)
		return false
	}
	return ok
}

func (s *ProjectService) List(ctx context.Context, actor domain.User, offset, limit int) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx, domain.ProjectFilter{AccessibleTo: actor.ID}, s.page(offset, limit))
}

func (s *ProjectService) Update(ctx context.Context, actor domain.User, id string, in UpdateProjectInput) (domain.Project, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return domain.Project{}, domain.Invalid("name cannot be empty")
	}

	var project domain.Project
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if err := requireProjectOwner(current, actor.ID); err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != current.Version {
			return domain.Conflict("project version is %d, not %d", current.Version, *in.ExpectedVersion)
		}

		if in.Name != nil {
			current.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			current.Description = *in.Description
		}
		if in.IsActive != nil {
			current.IsActive = *in.IsActive
		}
		if in.TeamID != nil {
			current.TeamID = optionalString(in.TeamID)
			if current.TeamID != nil {
				if err := s.requireTeamAccess(ctx, tx, *current.TeamID, actor.ID); err != nil {
					return err
				}
			}
		}

		project, err = tx.UpdateProject(ctx, current)
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "updated", targetType: "project", targetID: project.ID, targetName: project.Name, projectID: project.ID})
		return err
	})
	if err != nil {
		return domain.Project{}, err
	}

	s.evict(ctx, id)
	s.emitActivity(ctx, entry)
	return project, nil
}

func (s *ProjectService) Delete(ctx context.Context, actor domain.User, id string) error {
	var entry domain.ActivityLog
	var files []string
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if err := requireProjectOwner(current, actor.ID); err != nil {
			return err
		}
		if files, err = s.attachedFiles(ctx, tx, domain.AttachProject, id); err != nil {
			return err
		}
		if err := tx.DeleteProject(ctx, id); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "deleted", targetType: "project", targetID: id, targetName: current.Name, projectID: id})
		return err
	})
	if err != nil {
		return err
	}

	s.evict(ctx, id)
	s.removeFiles(ctx, files...)
	s.emitActivity(ctx, entry)
	return nil
}

func (s *ProjectService) requireTeamAccess(ctx context.Context, repo domain.Repository, teamID, userID string) error {
	team, err := repo.GetTeam(ctx, teamID)
	if err != nil {
		return asMissingRef(err, "team")
	}
	ok, err := canReadTeam(ctx, repo, team, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Forbidden("not a member of team")
	}
	return nil
}

func (s *ProjectService) load(ctx context.Context, id string) (domain.Project, error) {
	key := projectCacheKey(id)
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var project domain.Project
			if err := json.Unmarshal(raw, &project); err == nil {
				return project, nil
			}
			s.logger.Warn("discarding undecodable cached project", "project_id", id)
		case !errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("project cache read failed", "project_id", id, "err", err)
		}
	}

	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(project); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL()); err != nil {
				s.logger.Warn("project cache write failed", "project_id", id, "err", err)
			}
		}
	}
	return project, nil
}

// evict drops the cached copy before the caller returns, so a following
// read always sees the committed row.
func (s *ProjectService) evict(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), projectCacheKey(id)); err != nil {
		s.logger.Error("project cache eviction failed", "project_id", id, "err", err)
	}
}

func (s *ProjectService) cacheTTL() time.Duration {
	if s.ttl <= 0 {
		return defaultProjectTTL
	}
	return s.ttl
}
