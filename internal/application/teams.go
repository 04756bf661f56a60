package application

import (
	"context"
	"errors"
	"strings"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

type TeamService struct {
	*core
}

type TeamInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type AddMemberInput struct {
	UserID string          `json:"user_id"`
	Role   domain.TeamRole `json:"role"`
}

// Create stores the team and enrolls the creator as its owner.
func (s *TeamService) Create(ctx context.Context, actor domain.User, name, description string) (domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Team{}, domain.Invalid("name is required")
	}

	var team domain.Team
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		var err error
		team, err = tx.CreateTeam(ctx, domain.Team{Name: name, Description: description, CreatedBy: actor.ID})
		if errors.Is(err, domain.ErrConflict) {
			return domain.Conflict("team name %q is taken", name)
		}
		if err != nil {
			return err
		}
		if _, err := tx.AddTeamMember(ctx, domain.TeamMember{TeamID: team.ID, UserID: actor.ID, Role: domain.TeamRoleOwner}); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "created", targetType: "team", targetID: team.ID, targetName: team.Name})
		return err
	})
	if err != nil {
		return domain.Team{}, err
	}

	s.emitActivity(ctx, entry)
	return team, nil
}

func (s *TeamService) Get(ctx context.Context, actor domain.User, id string) (domain.Team, error) {
	team, err := s.repo.GetTeam(ctx, id)
	if err != nil {
		return domain.Team{}, err
	}
	ok, err := canReadTeam(ctx, s.repo, team, actor.ID)
	if err != nil {
		return domain.Team{}, err
	}
	if !ok {
		return domain.Team{}, domain.Forbidden("no access to team")
	}
	return team, nil
}

// List returns the teams the actor created or belongs to.
func (s *TeamService) List(ctx context.Context, actor domain.User, offset, limit int) ([]domain.Team, error) {
	return s.repo.ListTeamsForUser(ctx, actor.ID, s.page(offset, limit))
}

func (s *TeamService) Update(ctx context.Context, actor domain.User, id string, in TeamInput) (domain.Team, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return domain.Team{}, domain.Invalid("name cannot be empty")
	}

	var team domain.Team
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := tx.GetTeam(ctx, id)
		if err != nil {
			return err
		}
		if current.CreatedBy != actor.ID {
			return domain.Forbidden("only the team creator can modify it")
		}
		if in.Name != nil {
			current.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			current.Description = *in.Description
		}
		team, err = tx.UpdateTeam(ctx, current)
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "updated", targetType: "team", targetID: team.ID, targetName: team.Name})
		return err
	})
	if err != nil {
		return domain.Team{}, err
	}

	s.emitActivity(ctx, entry)
	return team, nil
}

// Delete removes the team; its projects survive without a team.
func (s *TeamService) Delete(ctx context.Context, actor domain.User, id string) error {
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := tx.GetTeam(ctx, id)
		if err != nil {
			return err
		}
		if current.CreatedBy != actor.ID {
			return domain.Forbidden("only the team creator can delete it")
		}
		if err := tx.DeleteTeam(ctx, id); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "deleted", targetType: "team", targetID: id, targetName: current.Name})
		return err
	})
	if err != nil {
		return err
	}

	s.emitActivity(ctx, entry)
	return nil
}

func (s *TeamService) AddMember(ctx context.Context, actor domain.User, teamID string, in AddMemberInput) (domain.TeamMember, error) {
	role := in.Role
	if role == "" {
		role = domain.TeamRoleMember
	}
	if !role.Valid() {
		return domain.TeamMember{}, domain.Invalid("unknown team role %q", role)
	}
	if strings.TrimSpace(in.UserID) == "" {
		return domain.TeamMember{}, domain.Invalid("user_id is required")
	}

	var member domain.TeamMember
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return err
		}
		ok, err := canManageMembers(ctx, tx, team, actor.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Forbidden("not allowed to manage team members")
		}
		user, err := tx.GetUserByID(ctx, in.UserID)
		if err != nil {
			return asMissingRef(err, "user")
		}
		member, err = tx.AddTeamMember(ctx, domain.TeamMember{TeamID: team.ID, UserID: user.ID, Role: role, JoinedAt: s.now()})
		if errors.Is(err, domain.ErrConflict) {
			return domain.Conflict("user is already a member of this team")
		}
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "member_added", targetType: "team", targetID: team.ID, targetName: team.Name,
			details: map[string]string{"user_id": user.ID, "role": string(role)},
		})
		return err
	})
	if err != nil {
		return domain.TeamMember{}, err
	}

	s.emitActivity(ctx, entry)
	return member, nil
}

// RemoveMember is allowed to member managers and to the member itself.
func (s *TeamService) RemoveMember(ctx context.Context, actor domain.User, teamID, userID string) error {
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if userID != actor.ID {
			ok, err := canManageMembers(ctx, tx, team, actor.ID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.Forbidden("not allowed to manage team members")
			}
		}
		if err := tx.RemoveTeamMember(ctx, teamID, userID); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "member_removed", targetType: "team", targetID: team.ID, targetName: team.Name,
			details: map[string]string{"user_id": userID},
		})
		return err
	})
	if err != nil {
		return err
	}

	s.emitActivity(ctx, entry)
	return nil
}

func (s *TeamService) ListMembers(ctx context.Context, actor domain.User, teamID string) ([]domain.TeamMember, error) {
	if _, err := s.Get(ctx, actor, teamID); err != nil {
		return nil, err
	}
	return s.repo.ListTeamMembers(ctx, teamID)
}
