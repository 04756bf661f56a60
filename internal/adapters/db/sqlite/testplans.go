package sqlite

import (
	"context"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

func (r *Repository) CreateTestPlan(ctx context.Context, value domain.TestPlan) (domain.TestPlan, error) {
	m := toTestPlanModel(value)
	m.ID = newID(value.ID)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.TestPlan{}, translate(err, "test plan")
	}
	plan := toDomainTestPlan(m)
	plan.Cases = []domain.TestPlanCase{}
	return plan, nil
}

func (r *Repository) GetTestPlan(ctx context.Context, id string) (domain.TestPlan, error) {
	var m TestPlanModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.TestPlan{}, translate(err, "test plan")
	}

	links := make([]TestPlanCaseModel, 0)
	err := r.db.WithContext(ctx).
		Where("test_plan_id = ?", id).
		Order("position ASC").Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return domain.TestPlan{}, translate(err, "test plan case")
	}

	plan := toDomainTestPlan(m)
	plan.Cases = make([]domain.TestPlanCase, 0, len(links))
	for _, link := range links {
		plan.Cases = append(plan.Cases, toDomainTestPlanCase(link))
	}
	return plan, nil
}

func (r *Repository) ListTestPlans(ctx context.Context, projectID string, page domain.Page) ([]domain.TestPlan, error) {
	rows := make([]TestPlanModel, 0)
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC")
	if err := paginate(q, page).Find(&rows).Error; err != nil {
		return nil, translate(err, "test plan")
	}
	result := make([]domain.TestPlan, 0, len(rows))
	for _, m := range rows {
		plan := toDomainTestPlan(m)
		plan.Cases = []domain.TestPlanCase{}
		result = append(result, plan)
	}
	return result, nil
}

func (r *Repository) UpdateTestPlan(ctx context.Context, value domain.TestPlan) (domain.TestPlan, error) {
	m := toTestPlanModel(value)
	if err := r.updateRow(ctx, &m, "test plan", "project_id", "created_by"); err != nil {
		return domain.TestPlan{}, err
	}
	return r.GetTestPlan(ctx, value.ID)
}

func (r *Repository) DeleteTestPlan(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &TestPlanModel{}, id, "test plan")
}

// AddTestPlanCase links a case into a plan. A non-positive position appends
// after the current last case.
func (r *Repository) AddTestPlanCase(ctx context.Context, value domain.TestPlanCase) (domain.TestPlanCase, error) {
	m := TestPlanCaseModel{
		TestPlanID:  value.TestPlanID,
		TestCaseID:  value.TestCaseID,
		Position:    value.Position,
		IsMandatory: value.IsMandatory,
		AddedBy:     value.AddedBy,
	}
	if m.Position <= 0 {
		var last int
		err := r.db.WithContext(ctx).Model(&TestPlanCaseModel{}).
			Where("test_plan_id = ?", value.TestPlanID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&last).Error
		if err != nil {
			return domain.TestPlanCase{}, translate(err, "test plan case")
		}
		m.Position = last + 1
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.TestPlanCase{}, translate(err, "test plan case")
	}
	return toDomainTestPlanCase(m), nil
}

func (r *Repository) RemoveTestPlanCase(ctx context.Context, planID, caseID string) error {
	res := r.db.WithContext(ctx).
		Where("test_plan_id = ? AND test_case_id = ?", planID, caseID).
		Delete(&TestPlanCaseModel{})
	if res.Error != nil {
		return translate(res.Error, "test plan case")
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("test plan case")
	}
	return nil
}

func toTestPlanModel(value domain.TestPlan) TestPlanModel {
	return TestPlanModel{
		ID:             value.ID,
		Name:           value.Name,
		Description:    value.Description,
		ProjectID:      value.ProjectID,
		CreatedBy:      value.CreatedBy,
		Status:         string(value.Status),
		ScheduledStart: value.ScheduledStart,
		ScheduledEnd:   value.ScheduledEnd,
	}
}

func toDomainTestPlan(m TestPlanModel) domain.TestPlan {
	return domain.TestPlan{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		ProjectID:      m.ProjectID,
		CreatedBy:      m.CreatedBy,
		Status:         domain.Status(m.Status),
		ScheduledStart: m.ScheduledStart,
		ScheduledEnd:   m.ScheduledEnd,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toDomainTestPlanCase(m TestPlanCaseModel) domain.TestPlanCase {
	return domain.TestPlanCase{
		TestPlanID:  m.TestPlanID,
		TestCaseID:  m.TestCaseID,
		Position:    m.Position,
		IsMandatory: m.IsMandatory,
		AddedBy:     m.AddedBy,
		CreatedAt:   m.CreatedAt,
	}
}
