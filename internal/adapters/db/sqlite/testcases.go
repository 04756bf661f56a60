package sqlite

import (
	"context"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"gorm.io/gorm"
)

func (r *Repository) CreateTestCase(ctx context.Context, value domain.TestCase) (domain.TestCase, error) {
	m := toTestCaseModel(value)
	m.ID = newID(value.ID)
	m.Version = 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return translate(err, "test case")
		}
		return insertSteps(tx, m.ID, value.Steps)
	})
	if err != nil {
		return domain.TestCase{}, err
	}
	return r.GetTestCase(ctx, m.ID)
}

func (r *Repository) GetTestCase(ctx context.Context, id string) (domain.TestCase, error) {
	var m TestCaseModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.TestCase{}, translate(err, "test case")
	}
	steps, err := r.stepsFor(ctx, []string{m.ID})
	if err != nil {
		return domain.TestCase{}, err
	}
	tc := toDomainTestCase(m)
	tc.Steps = steps[m.ID]
	if tc.Steps == nil {
		tc.Steps = []domain.TestStep{}
	}
	return tc, nil
}

func (r *Repository) ListTestCases(ctx context.Context, filter domain.TestCaseFilter, page domain.Page) ([]domain.TestCase, error) {
	if filter.ProjectIDs != nil && len(filter.ProjectIDs) == 0 {
		return []domain.TestCase{}, nil
	}

	rows := make([]TestCaseModel, 0)
	q := r.testCaseQuery(ctx, filter).Order("created_at DESC")
	if err := paginate(q, page).Find(&rows).Error; err != nil {
		return nil, translate(err, "test case")
	}

	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.ID)
	}
	steps, err := r.stepsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]domain.TestCase, 0, len(rows))
	for _, m := range rows {
		tc := toDomainTestCase(m)
		tc.Steps = steps[m.ID]
		if tc.Steps == nil {
			tc.Steps = []domain.TestStep{}
		}
		result = append(result, tc)
	}
	return result, nil
}

func (r *Repository) CountTestCases(ctx context.Context, filter domain.TestCaseFilter) (int64, error) {
	if filter.ProjectIDs != nil && len(filter.ProjectIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := r.testCaseQuery(ctx, filter).Count(&count).Error; err != nil {
		return 0, translate(err, "test case")
	}
	return count, nil
}

func (r *Repository) testCaseQuery(ctx context.Context, filter domain.TestCaseFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&TestCaseModel{})
	if filter.ProjectIDs != nil {
		q = q.Where("project_id IN ?", filter.ProjectIDs)
	}
	if filter.ProjectID != "" {
		q = q.Where("project_id = ?", filter.ProjectID)
	}
	if filter.TestType != "" {
		q = q.Where("test_type = ?", string(filter.TestType))
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", string(filter.Priority))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.AssignedTo != "" {
		q = q.Where("assigned_to = ?", filter.AssignedTo)
	}
	return q
}

func (r *Repository) UpdateTestCase(ctx context.Context, value domain.TestCase) (domain.TestCase, error) {
	m := toTestCaseModel(value)
	m.Version = value.Version + 1
	if err := r.updateVersioned(ctx, &m, value.ID, value.Version, "test case"); err != nil {
		return domain.TestCase{}, err
	}
	return r.GetTestCase(ctx, value.ID)
}

// DeleteTestCase removes the case, its steps and its plan links. Executions
// and comments recorded against it are kept.
func (r *Repository) DeleteTestCase(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &TestCaseModel{}, id, "test case")
}

func (r *Repository) ReplaceTestSteps(ctx context.Context, testCaseID string, steps []domain.TestStep) ([]domain.TestStep, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_case_id = ?", testCaseID).Delete(&TestStepModel{}).Error; err != nil {
			return translate(err, "test step")
		}
		return insertSteps(tx, testCaseID, steps)
	})
	if err != nil {
		return nil, err
	}
	byCase, err := r.stepsFor(ctx, []string{testCaseID})
	if err != nil {
		return nil, err
	}
	if byCase[testCaseID] == nil {
		return []domain.TestStep{}, nil
	}
	return byCase[testCaseID], nil
}

func (r *Repository) CreateTestStep(ctx context.Context, value domain.TestStep) (domain.TestStep, error) {
	m := toTestStepModel(value)
	m.ID = newID(value.ID)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.TestStep{}, translate(err, "test step")
	}
	return toDomainTestStep(m), nil
}

func (r *Repository) GetTestStep(ctx context.Context, id string) (domain.TestStep, error) {
	var m TestStepModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.TestStep{}, translate(err, "test step")
	}
	return toDomainTestStep(m), nil
}

func (r *Repository) UpdateTestStep(ctx context.Context, value domain.TestStep) (domain.TestStep, error) {
	m := toTestStepModel(value)
	if err := r.updateRow(ctx, &m, "test step", "test_case_id"); err != nil {
		return domain.TestStep{}, err
	}
	return r.GetTestStep(ctx, value.ID)
}

func (r *Repository) DeleteTestStep(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &TestStepModel{}, id, "test step")
}

func (r *Repository) stepsFor(ctx context.Context, caseIDs []string) (map[string][]domain.TestStep, error) {
	result := make(map[string][]domain.TestStep, len(caseIDs))
	if len(caseIDs) == 0 {
		return result, nil
	}
	rows := make([]TestStepModel, 0)
	err := r.db.WithContext(ctx).
		Where("test_case_id IN ?", caseIDs).
		Order("test_case_id ASC").Order("step_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "test step")
	}
	for _, m := range rows {
		result[m.TestCaseID] = append(result[m.TestCaseID], toDomainTestStep(m))
	}
	return result, nil
}

// insertSteps numbers steps from 1 in slice order unless the caller
// supplied explicit step numbers.
func insertSteps(tx *gorm.DB, testCaseID string, steps []domain.TestStep) error {
	if len(steps) == 0 {
		return nil
	}
	rows := make([]TestStepModel, 0, len(steps))
	for i, step := range steps {
		m := toTestStepModel(step)
		m.ID = newID(step.ID)
		m.TestCaseID = testCaseID
		if m.StepNumber <= 0 {
			m.StepNumber = i + 1
		}
		rows = append(rows, m)
	}
	if err := tx.Create(&rows).Error; err != nil {
		return translate(err, "test step")
	}
	return nil
}

func toTestCaseModel(value domain.TestCase) TestCaseModel {
	return TestCaseModel{
		ID:                 value.ID,
		Title:              value.Title,
		Description:        value.Description,
		ProjectID:          value.ProjectID,
		TestType:           string(value.TestType),
		Priority:           string(value.Priority),
		Status:             string(value.Status),
		ExpectedResult:     value.ExpectedResult,
		CreatedBy:          value.CreatedBy,
		AssignedTo:         value.AssignedTo,
		Tags:               stringSlice(value.Tags),
		AIGenerated:        value.AIGenerated,
		SelfHealingEnabled: value.SelfHealingEnabled,
		Prerequisites:      value.Prerequisites,
		TestData:           jsonColumn(value.TestData),
		AutomationConfig:   jsonColumn(value.AutomationConfig),
		Version:            value.Version,
	}
}

func toDomainTestCase(m TestCaseModel) domain.TestCase {
	return domain.TestCase{
		ID:                 m.ID,
		Title:              m.Title,
		Description:        m.Description,
		ProjectID:          m.ProjectID,
		TestType:           domain.TestType(m.TestType),
		Priority:           domain.Priority(m.Priority),
		Status:             domain.Status(m.Status),
		ExpectedResult:     m.ExpectedResult,
		CreatedBy:          m.CreatedBy,
		AssignedTo:         m.AssignedTo,
		Tags:               fromStringSlice(m.Tags),
		AIGenerated:        m.AIGenerated,
		SelfHealingEnabled: m.SelfHealingEnabled,
		Prerequisites:      m.Prerequisites,
		TestData:           rawJSON(m.TestData),
		AutomationConfig:   rawJSON(m.AutomationConfig),
		Version:            m.Version,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toTestStepModel(value domain.TestStep) TestStepModel {
	return TestStepModel{
		ID:             value.ID,
		TestCaseID:     value.TestCaseID,
		StepNumber:     value.StepNumber,
		Description:    value.Description,
		ExpectedResult: value.ExpectedResult,
		ActualResult:   value.ActualResult,
		Status:         value.Status,
	}
}

func toDomainTestStep(m TestStepModel) domain.TestStep {
	return domain.TestStep{
		ID:             m.ID,
		TestCaseID:     m.TestCaseID,
		StepNumber:     m.StepNumber,
		Description:    m.Description,
		ExpectedResult: m.ExpectedResult,
		ActualResult:   m.ActualResult,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
	}
}
