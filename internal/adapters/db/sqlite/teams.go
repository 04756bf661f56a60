package sqlite

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"gorm.io/gorm"
)

func (r *Repository) CreateTeam(ctx context.Context, value domain.Team) (domain.Team, error) {
	m := TeamModel{
		ID:          newID(value.ID),
		Name:        value.Name,
		Description: value.Description,
		CreatedBy:   value.CreatedBy,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Team{}, translate(err, "team")
	}
	return toDomainTeam(m), nil
}

func (r *Repository) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	var m TeamModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.Team{}, translate(err, "team")
	}
	return toDomainTeam(m), nil
}

func (r *Repository) ListTeamsForUser(ctx context.Context, userID string, page domain.Page) ([]domain.Team, error) {
	rows := make([]TeamModel, 0)
	q := r.db.WithContext(ctx).Model(&TeamModel{}).
		Where("created_by = ? OR id IN (?)", userID, r.memberTeamIDs(ctx, userID))
	if err := paginate(q.Order("name ASC"), page).Find(&rows).Error; err != nil {
		return nil, translate(err, "team")
	}
	result := make([]domain.Team, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainTeam(m))
	}
	return result, nil
}

func (r *Repository) UpdateTeam(ctx context.Context, value domain.Team) (domain.Team, error) {
	m := TeamModel{ID: value.ID, Name: value.Name, Description: value.Description, CreatedBy: value.CreatedBy}
	if err := r.updateRow(ctx, &m, "team", "created_by"); err != nil {
		return domain.Team{}, err
	}
	return r.GetTeam(ctx, value.ID)
}

func (r *Repository) DeleteTeam(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &TeamModel{}, id, "team")
}

func (r *Repository) AddTeamMember(ctx context.Context, value domain.TeamMember) (domain.TeamMember, error) {
	m := TeamMemberModel{
		ID:       newID(value.ID),
		TeamID:   value.TeamID,
		UserID:   value.UserID,
		Role:     string(value.Role),
		JoinedAt: value.JoinedAt,
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.TeamMember{}, translate(err, "team member")
	}
	return toDomainTeamMember(m), nil
}

func (r *Repository) GetTeamMember(ctx context.Context, teamID, userID string) (domain.TeamMember, error) {
	var m TeamMemberModel
	err := r.db.WithContext(ctx).Where("team_id = ? AND user_id = ?", teamID, userID).First(&m).Error
	if err != nil {
		return domain.TeamMember{}, translate(err, "team member")
	}
	return toDomainTeamMember(m), nil
}

func (r *Repository) ListTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	rows := make([]TeamMemberModel, 0)
	if err := r.db.WithContext(ctx).Where("team_id = ?", teamID).Order("joined_at ASC").Find(&rows).Error; err != nil {
		return nil, translate(err, "team member")
	}
	result := make([]domain.TeamMember, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainTeamMember(m))
	}
	return result, nil
}

func (r *Repository) RemoveTeamMember(ctx context.Context, teamID, userID string) error {
	res := r.db.WithContext(ctx).Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&TeamMemberModel{})
	if res.Error != nil {
		return translate(res.Error, "team member")
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("team member")
	}
	return nil
}

// memberTeamIDs is a subquery selecting the teams userID belongs to.
func (r *Repository) memberTeamIDs(ctx context.Context, userID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&TeamMemberModel{}).Select("team_id").Where("user_id = ?", userID)
}

func toDomainTeam(m TeamModel) domain.Team {
	return domain.Team{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toDomainTeamMember(m TeamMemberModel) domain.TeamMember {
	return domain.TeamMember{
		ID:       m.ID,
		TeamID:   m.TeamID,
		UserID:   m.UserID,
		Role:     domain.TeamRole(m.Role),
		JoinedAt: m.JoinedAt,
	}
}
