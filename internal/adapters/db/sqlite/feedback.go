package sqlite

import (
	"context"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

func (r *Repository) CreateComment(ctx context.Context, value domain.Comment) (domain.Comment, error) {
	m := toCommentModel(value)
	m.ID = newID(value.ID)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Comment{}, translate(err, "comment")
	}
	return toDomainComment(m), nil
}

func (r *Repository) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	var m CommentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.Comment{}, translate(err, "comment")
	}
	return toDomainComment(m), nil
}

func (r *Repository) ListComments(ctx context.Context, testCaseID string, page domain.Page) ([]domain.Comment, error) {
	rows := make([]CommentModel, 0)
	q := r.db.WithContext(ctx).Where("test_case_id = ?", testCaseID).Order("created_at ASC").Order("rowid ASC")
	if err := paginate(q, page).Find(&rows).Error; err != nil {
		return nil, translate(err, "comment")
	}
	result := make([]domain.Comment, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainComment(m))
	}
	return result, nil
}

func (r *Repository) UpdateComment(ctx context.Context, value domain.Comment) (domain.Comment, error) {
	m := toCommentModel(value)
	if err := r.updateRow(ctx, &m, "comment", "test_case_id", "user_id"); err != nil {
		return domain.Comment{}, err
	}
	return r.GetComment(ctx, value.ID)
}

func (r *Repository) DeleteComment(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &CommentModel{}, id, "comment")
}

func toCommentModel(value domain.Comment) CommentModel {
	return CommentModel{
		ID:              value.ID,
		TestCaseID:      value.TestCaseID,
		UserID:          value.UserID,
		UserName:        value.UserName,
		CommentType:     string(value.CommentType),
		Content:         value.Content,
		ParentCommentID: value.ParentCommentID,
		Resolved:        value.Resolved,
		ResolvedAt:      value.ResolvedAt,
	}
}

func toDomainComment(m CommentModel) domain.Comment {
	return domain.Comment{
		ID:              m.ID,
		TestCaseID:      m.TestCaseID,
		UserID:          m.UserID,
		UserName:        m.UserName,
		CommentType:     domain.CommentType(m.CommentType),
		Content:         m.Content,
		ParentCommentID: m.ParentCommentID,
		Resolved:        m.Resolved,
		ResolvedAt:      m.ResolvedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (r *Repository) CreateAttachment(ctx context.Context, value domain.Attachment) (domain.Attachment, error) {
	if err := value.Target.Validate(); err != nil {
		return domain.Attachment{}, err
	}
	m := AttachmentModel{
		ID:          newID(value.ID),
		FileName:    value.FileName,
		FilePath:    value.FilePath,
		FileSize:    value.FileSize,
		FileType:    value.FileType,
		Description: value.Description,
		UploadedBy:  value.UploadedBy,
	}
	id := value.Target.ID
	switch value.Target.Kind {
	case domain.AttachProject:
		m.ProjectID = &id
	case domain.AttachTestCase:
		m.TestCaseID = &id
	case domain.AttachTestPlan:
		m.TestPlanID = &id
	case domain.AttachTestExecution:
		m.TestExecutionID = &id
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Attachment{}, translate(err, "attachment")
	}
	return toDomainAttachment(m), nil
}

func (r *Repository) GetAttachment(ctx context.Context, id string) (domain.Attachment, error) {
	var m AttachmentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.Attachment{}, translate(err, "attachment")
	}
	return toDomainAttachment(m), nil
}

func (r *Repository) ListAttachments(ctx context.Context, target domain.AttachmentTarget, page domain.Page) ([]domain.Attachment, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	rows := make([]AttachmentModel, 0)
	q := r.db.WithContext(ctx).Where(attachmentColumn(target.Kind)+" = ?", target.ID).Order("created_at DESC")
	if err := paginate(q, page).Find(&rows).Error; err != nil {
		return nil, translate(err, "attachment")
	}
	result := make([]domain.Attachment, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainAttachment(m))
	}
	return result, nil
}

func (r *Repository) DeleteAttachment(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &AttachmentModel{}, id, "attachment")
}

func (r *Repository) AttachmentFiles(ctx context.Context, target domain.AttachmentTarget) ([]string, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).Model(&AttachmentModel{})
	if target.Kind == domain.AttachProject {
		q = q.Where("project_id = ?", target.ID).
			Or("test_case_id IN (?)", r.db.Model(&TestCaseModel{}).Select("id").Where("project_id = ?", target.ID)).
			Or("test_plan_id IN (?)", r.db.Model(&TestPlanModel{}).Select("id").Where("project_id = ?", target.ID))
	} else {
		q = q.Where(attachmentColumn(target.Kind)+" = ?", target.ID)
	}
	paths := make([]string, 0)
	if err := q.Pluck("file_path", &paths).Error; err != nil {
		return nil, translate(err, "attachment")
	}
	return paths, nil
}

func attachmentColumn(kind domain.AttachmentKind) string {
	switch kind {
	case domain.AttachTestCase:
		return "test_case_id"
	case domain.AttachTestPlan:
		return "test_plan_id"
	case domain.AttachTestExecution:
		return "test_execution_id"
	}
	return "project_id"
}

func toDomainAttachment(m AttachmentModel) domain.Attachment {
	a := domain.Attachment{
		ID:          m.ID,
		FileName:    m.FileName,
		FilePath:    m.FilePath,
		FileSize:    m.FileSize,
		FileType:    m.FileType,
		Description: m.Description,
		UploadedBy:  m.UploadedBy,
		CreatedAt:   m.CreatedAt,
	}
	switch {
	case m.ProjectID != nil:
		a.Target = domain.AttachmentTarget{Kind: domain.AttachProject, ID: *m.ProjectID}
	case m.TestCaseID != nil:
		a.Target = domain.AttachmentTarget{Kind: domain.AttachTestCase, ID: *m.TestCaseID}
	case m.TestPlanID != nil:
		a.Target = domain.AttachmentTarget{Kind: domain.AttachTestPlan, ID: *m.TestPlanID}
	case m.TestExecutionID != nil:
		a.Target = domain.AttachmentTarget{Kind: domain.AttachTestExecution, ID: *m.TestExecutionID}
	}
	return a
}

func (r *Repository) CreateActivity(ctx context.Context, value domain.ActivityLog) error {
	m := ActivityLogModel{
		ID:         newID(value.ID),
		UserID:     value.UserID,
		UserName:   value.UserName,
		Action:     value.Action,
		TargetType: value.TargetType,
		TargetID:   value.TargetID,
		TargetName: value.TargetName,
		ProjectID:  value.ProjectID,
		Details:    jsonColumn(value.Details),
	}
	return translate(r.db.WithContext(ctx).Create(&m).Error, "activity")
}

// ListActivity returns the newest entries made by filter.UserID or recorded
// against one of filter.ProjectIDs.
func (r *Repository) ListActivity(ctx context.Context, filter domain.ActivityFilter) ([]domain.ActivityLog, error) {
	q := r.db.WithContext(ctx).Model(&ActivityLogModel{})
	switch {
	case filter.UserID != "" && len(filter.ProjectIDs) > 0:
		q = q.Where("user_id = ? OR project_id IN ?", filter.UserID, filter.ProjectIDs)
	case filter.UserID != "":
		q = q.Where("user_id = ?", filter.UserID)
	case len(filter.ProjectIDs) > 0:
		q = q.Where("project_id IN ?", filter.ProjectIDs)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	rows := make([]ActivityLogModel, 0)
	if err := q.Order("created_at DESC").Order("rowid DESC").Find(&rows).Error; err != nil {
		return nil, translate(err, "activity")
	}
	result := make([]domain.ActivityLog, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.ActivityLog{
			ID:         m.ID,
			UserID:     m.UserID,
			UserName:   m.UserName,
			Action:     m.Action,
			TargetType: m.TargetType,
			TargetID:   m.TargetID,
			TargetName: m.TargetName,
			ProjectID:  m.ProjectID,
			Details:    rawJSON(m.Details),
			CreatedAt:  m.CreatedAt,
		})
	}
	return result, nil
}
