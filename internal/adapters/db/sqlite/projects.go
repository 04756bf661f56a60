package sqlite

import (
	"context"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"gorm.io/gorm"
)

func (r *Repository) CreateProject(ctx context.Context, value domain.Project) (domain.Project, error) {
	m := ProjectModel{
		ID:          newID(value.ID),
		Name:        value.Name,
		Description: value.Description,
		CreatedBy:   value.CreatedBy,
		TeamID:      value.TeamID,
		IsActive:    value.IsActive,
		Version:     1,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Project{}, translate(err, "project")
	}
	return toDomainProject(m), nil
}

func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var m ProjectModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.Project{}, translate(err, "project")
	}
	return toDomainProject(m), nil
}

func (r *Repository) ListProjects(ctx context.Context, filter domain.ProjectFilter, page domain.Page) ([]domain.Project, error) {
	rows := make([]ProjectModel, 0)
	q := r.projectQuery(ctx, filter).Order("created_at DESC")
	if err := paginate(q, page).Find(&rows).Error; err != nil {
		return nil, translate(err, "project")
	}
	result := make([]domain.Project, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainProject(m))
	}
	return result, nil
}

func (r *Repository) CountProjects(ctx context.Context, filter domain.ProjectFilter) (int64, error) {
	var count int64
	if err := r.projectQuery(ctx, filter).Count(&count).Error; err != nil {
		return 0, translate(err, "project")
	}
	return count, nil
}

func (r *Repository) AccessibleProjectIDs(ctx context.Context, userID string) ([]string, error) {
	ids := make([]string, 0)
	if err := r.projectQuery(ctx, domain.ProjectFilter{AccessibleTo: userID}).Pluck("id", &ids).Error; err != nil {
		return nil, translate(err, "project")
	}
	return ids, nil
}

func (r *Repository) projectQuery(ctx context.Context, filter domain.ProjectFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&ProjectModel{})
	if filter.AccessibleTo != "" {
		q = q.Where("created_by = ? OR team_id IN (?)", filter.AccessibleTo, r.memberTeamIDs(ctx, filter.AccessibleTo))
	}
	if filter.TeamID != "" {
		q = q.Where("team_id = ?", filter.TeamID)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	return q
}

func (r *Repository) UpdateProject(ctx context.Context, value domain.Project) (domain.Project, error) {
	m := ProjectModel{
		ID:          value.ID,
		Name:        value.Name,
		Description: value.Description,
		CreatedBy:   value.CreatedBy,
		TeamID:      value.TeamID,
		IsActive:    value.IsActive,
		Version:     value.Version + 1,
	}
	if err := r.updateVersioned(ctx, &m, value.ID, value.Version, "project"); err != nil {
		return domain.Project{}, err
	}
	return r.GetProject(ctx, value.ID)
}

func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &ProjectModel{}, id, "project")
}

func toDomainProject(m ProjectModel) domain.Project {
	return domain.Project{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedBy:   m.CreatedBy,
		TeamID:      m.TeamID,
		IsActive:    m.IsActive,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (r *Repository) CreateEnvironment(ctx context.Context, value domain.Environment) (domain.Environment, error) {
	m := toEnvironmentModel(value)
	m.ID = newID(value.ID)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Environment{}, translate(err, "environment")
	}
	return toDomainEnvironment(m), nil
}

func (r *Repository) GetEnvironment(ctx context.Context, id string) (domain.Environment, error) {
	var m EnvironmentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.Environment{}, translate(err, "environment")
	}
	return toDomainEnvironment(m), nil
}

func (r *Repository) ListEnvironments(ctx context.Context, projectID string, page domain.Page) ([]domain.Environment, error) {
	rows := make([]EnvironmentModel, 0)
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("name ASC")
	if err := paginate(q, page).Find(&rows).Error; err != nil {
		return nil, translate(err, "environment")
	}
	result := make([]domain.Environment, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainEnvironment(m))
	}
	return result, nil
}

func (r *Repository) UpdateEnvironment(ctx context.Context, value domain.Environment) (domain.Environment, error) {
	m := toEnvironmentModel(value)
	if err := r.updateRow(ctx, &m, "environment", "project_id", "created_by"); err != nil {
		return domain.Environment{}, err
	}
	return r.GetEnvironment(ctx, value.ID)
}

func (r *Repository) DeleteEnvironment(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &EnvironmentModel{}, id, "environment")
}

func toEnvironmentModel(value domain.Environment) EnvironmentModel {
	vars := value.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	return EnvironmentModel{
		ID:          value.ID,
		Name:        value.Name,
		Description: value.Description,
		BaseURL:     value.BaseURL,
		ProjectID:   value.ProjectID,
		CreatedBy:   value.CreatedBy,
		Variables:   datatypesMap(vars),
		IsActive:    value.IsActive,
	}
}

func toDomainEnvironment(m EnvironmentModel) domain.Environment {
	vars := m.Variables.Data()
	if vars == nil {
		vars = map[string]string{}
	}
	return domain.Environment{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		BaseURL:     m.BaseURL,
		ProjectID:   m.ProjectID,
		CreatedBy:   m.CreatedBy,
		Variables:   vars,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
