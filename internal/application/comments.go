package application

import (
	"context"
	"strings"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

type CommentService struct {
	*core
}

type CreateCommentInput struct {
	TestCaseID      string             `json:"test_case_id"`
	Content         string             `json:"content"`
	CommentType     domain.CommentType `json:"comment_type"`
	ParentCommentID *string            `json:"parent_comment_id"`
}

type UpdateCommentInput struct {
	Content     *string             `json:"content"`
	CommentType *domain.CommentType `json:"comment_type"`
}

func (s *CommentService) Create(ctx context.Context, actor domain.User, in CreateCommentInput) (domain.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return domain.Comment{}, domain.Invalid("content is required")
	}
	if in.TestCaseID == "" {
		return domain.Comment{}, domain.Invalid("test_case_id is required")
	}
	kind := in.CommentType
	if kind == "" {
		kind = domain.CommentGeneral
	}
	if !kind.Valid() {
		return domain.Comment{}, domain.Invalid("unknown comment_type %q", kind)
	}

	var comment domain.Comment
	var projectID string
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		tc, err := readableTestCase(ctx, tx, in.TestCaseID, actor.ID)
		if err != nil {
			return asMissingRef(err, "test case")
		}
		projectID = tc.ProjectID

		parentID := optionalString(in.ParentCommentID)
		if parentID != nil {
			parent, err := tx.GetComment(ctx, *parentID)
			if err != nil {
				return asMissingRef(err, "parent comment")
			}
			if parent.TestCaseID != tc.ID {
				return domain.Invalid("parent comment belongs to another test case")
			}
		}

		comment, err = tx.CreateComment(ctx, domain.Comment{
			TestCaseID:      tc.ID,
			UserID:          actor.ID,
			UserName:        displayName(actor),
			CommentType:     kind,
			Content:         content,
			ParentCommentID: parentID,
		})
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "commented", targetType: "test_case", targetID: tc.ID, targetName: tc.Title, projectID: projectID})
		return err
	})
	if err != nil {
		return domain.Comment{}, err
	}

	s.emit(ctx, actor.ID, domain.ChannelComment, "comment_created", projectID, comment)
	s.emitActivity(ctx, entry)
	return comment, nil
}

// ListByTestCase returns the thread oldest first.
func (s *CommentService) ListByTestCase(ctx context.Context, actor domain.User, testCaseID string, offset, limit int) ([]domain.Comment, error) {
	if _, err := readableTestCase(ctx, s.repo, testCaseID, actor.ID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, testCaseID, s.page(offset, limit))
}

func (s *CommentService) Resolve(ctx context.Context, actor domain.User, id string) (domain.Comment, error) {
	return s.mutate(ctx, actor, id, "comment_resolved", func(c *domain.Comment) {
		now := s.now()
		c.Resolved = true
		c.ResolvedAt = &now
	})
}

func (s *CommentService) Update(ctx context.Context, actor domain.User, id string, in UpdateCommentInput) (domain.Comment, error) {
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return domain.Comment{}, domain.Invalid("content cannot be empty")
	}
	if in.CommentType != nil && !in.CommentType.Valid() {
		return domain.Comment{}, domain.Invalid("unknown comment_type %q", *in.CommentType)
	}
	return s.mutate(ctx, actor, id, "comment_updated", func(c *domain.Comment) {
		if in.Content != nil {
			c.Content = strings.TrimSpace(*in.Content)
		}
		if in.CommentType != nil {
			c.CommentType = *in.CommentType
		}
	})
}

// mutate applies change to a comment authored by actor.
func (s *CommentService) mutate(ctx context.Context, actor domain.User, id, eventType string, change func(*domain.Comment)) (domain.Comment, error) {
	var comment domain.Comment
	var projectID string
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := s.authored(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		projectID = s.projectOf(ctx, tx, current.TestCaseID)
		change(&current)
		comment, err = tx.UpdateComment(ctx, current)
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: strings.TrimPrefix(eventType, "comment_"), targetType: "comment", targetID: comment.ID, projectID: projectID})
		return err
	})
	if err != nil {
		return domain.Comment{}, err
	}

	s.emit(ctx, actor.ID, domain.ChannelComment, eventType, projectID, comment)
	s.emitActivity(ctx, entry)
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, actor domain.User, id string) error {
	var projectID string
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := s.authored(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		projectID = s.projectOf(ctx, tx, current.TestCaseID)
		if err := tx.DeleteComment(ctx, id); err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{action: "deleted", targetType: "comment", targetID: id, projectID: projectID})
		return err
	})
	if err != nil {
		return err
	}

	s.emit(ctx, actor.ID, domain.ChannelComment, "comment_deleted", projectID, map[string]string{"id": id})
	s.emitActivity(ctx, entry)
	return nil
}

func (s *CommentService) authored(ctx context.Context, tx domain.Repository, id, userID string) (domain.Comment, error) {
	c, err := tx.GetComment(ctx, id)
	if err != nil {
		return domain.Comment{}, err
	}
	if c.UserID != userID {
		return domain.Comment{}, domain.Forbidden("only the author can change a comment")
	}
	return c, nil
}

// projectOf is empty for comments whose test case was deleted.
func (s *CommentService) projectOf(ctx context.Context, tx domain.Repository, testCaseID string) string {
	tc, err := tx.GetTestCase(ctx, testCaseID)
	if err != nil {
		return ""
	}
	return tc.ProjectID
}
