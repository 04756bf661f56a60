package sqlite

import (
	"context"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"gorm.io/gorm"
)

func (r *Repository) CreateExecution(ctx context.Context, value domain.TestExecution) (domain.TestExecution, error) {
	m := toExecutionModel(value)
	m.ID = newID(value.ID)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.TestExecution{}, translate(err, "test execution")
	}
	return toDomainExecution(m), nil
}

func (r *Repository) GetExecution(ctx context.Context, id string) (domain.TestExecution, error) {
	var m TestExecutionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.TestExecution{}, translate(err, "test execution")
	}
	return toDomainExecution(m), nil
}

func (r *Repository) ListExecutions(ctx context.Context, filter domain.ExecutionFilter, page domain.Page) ([]domain.TestExecution, error) {
	rows := make([]TestExecutionModel, 0)
	q := r.executionQuery(ctx, filter).Order("created_at DESC")
	if err := paginate(q, page).Find(&rows).Error; err != nil {
		return nil, translate(err, "test execution")
	}
	result := make([]domain.TestExecution, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainExecution(m))
	}
	return result, nil
}

type executionStatsRow struct {
	Total       int64
	Completed   int64
	Running     int64
	AvgDuration float64
}

func (r *Repository) ExecutionStats(ctx context.Context, filter domain.ExecutionFilter) (domain.ExecutionStats, error) {
	var row executionStatsRow
	err := r.executionQuery(ctx, filter).Select(
		"COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed, " +
			"COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0) AS running, " +
			"COALESCE(AVG(duration), 0) AS avg_duration",
	).Scan(&row).Error
	if err != nil {
		return domain.ExecutionStats{}, translate(err, "test execution")
	}
	return domain.ExecutionStats{
		Total:           row.Total,
		Completed:       row.Completed,
		Running:         row.Running,
		AverageDuration: row.AvgDuration,
	}, nil
}

func (r *Repository) executionQuery(ctx context.Context, filter domain.ExecutionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&TestExecutionModel{})
	if filter.ProjectIDs != nil {
		// an empty id list renders as IN (NULL) and matches nothing
		cases := r.db.WithContext(ctx).Model(&TestCaseModel{}).Select("id").Where("project_id IN ?", filter.ProjectIDs)
		if filter.ExecutedBy != "" {
			q = q.Where("test_case_id IN (?) OR executed_by = ?", cases, filter.ExecutedBy)
		} else {
			q = q.Where("test_case_id IN (?)", cases)
		}
	} else if filter.ExecutedBy != "" {
		q = q.Where("executed_by = ?", filter.ExecutedBy)
	}
	if filter.TestCaseID != "" {
		q = q.Where("test_case_id = ?", filter.TestCaseID)
	}
	if filter.TestPlanID != "" {
		q = q.Where("test_plan_id = ?", filter.TestPlanID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	return q
}

func (r *Repository) UpdateExecution(ctx context.Context, value domain.TestExecution) (domain.TestExecution, error) {
	m := toExecutionModel(value)
	if err := r.updateRow(ctx, &m, "test execution", "test_case_id", "executed_by"); err != nil {
		return domain.TestExecution{}, err
	}
	return r.GetExecution(ctx, value.ID)
}

func (r *Repository) DeleteExecution(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &TestExecutionModel{}, id, "test execution")
}

func toExecutionModel(value domain.TestExecution) TestExecutionModel {
	return TestExecutionModel{
		ID:            value.ID,
		TestCaseID:    value.TestCaseID,
		TestPlanID:    value.TestPlanID,
		ExecutedBy:    value.ExecutedBy,
		EnvironmentID: value.EnvironmentID,
		Status:        string(value.Status),
		StartedAt:     value.StartedAt,
		CompletedAt:   value.CompletedAt,
		Duration:      value.Duration,
		Result:        jsonColumn(value.Result),
		Logs:          value.Logs,
		Screenshots:   stringSlice(value.Screenshots),
		ErrorMessage:  value.ErrorMessage,
		AIAnalysis:    jsonColumn(value.AIAnalysis),
	}
}

func toDomainExecution(m TestExecutionModel) domain.TestExecution {
	return domain.TestExecution{
		ID:            m.ID,
		TestCaseID:    m.TestCaseID,
		TestPlanID:    m.TestPlanID,
		ExecutedBy:    m.ExecutedBy,
		EnvironmentID: m.EnvironmentID,
		Status:        domain.ExecutionStatus(m.Status),
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		Duration:      m.Duration,
		Result:        rawJSON(m.Result),
		Logs:          m.Logs,
		Screenshots:   fromStringSlice(m.Screenshots),
		ErrorMessage:  m.ErrorMessage,
		AIAnalysis:    rawJSON(m.AIAnalysis),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
