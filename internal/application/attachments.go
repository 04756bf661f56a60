package application

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

const DefaultMaxUploadBytes int64 = 10 << 20

var allowedUploadTypes = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"pdf": true, "txt": true, "csv": true, "json": true,
}

type AttachmentService struct {
	*core
	maxBytes int64
}

type UploadInput struct {
	Target      domain.AttachmentTarget
	FileName    string
	Description string
	Body        io.Reader
}

func (s *AttachmentService) Create(ctx context.Context, actor domain.User, in UploadInput) (domain.Attachment, error) {
	if s.files == nil {
		return domain.Attachment{}, domain.Internal("attachment storage is not configured", nil)
	}
	if err := in.Target.Validate(); err != nil {
		return domain.Attachment{}, err
	}
	name := filepath.Base(strings.TrimSpace(in.FileName))
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if name == "" || name == "." || !allowedUploadTypes[ext] {
		return domain.Attachment{}, domain.Invalid("file type %q is not allowed", ext)
	}
	if in.Body == nil {
		return domain.Attachment{}, domain.Invalid("file is required")
	}

	if _, err := s.targetProject(ctx, s.repo, in.Target, actor.ID); err != nil {
		return domain.Attachment{}, asMissingRef(err, string(in.Target.Kind))
	}

	path, size, err := s.files.Save(ctx, name, in.Body, s.limit())
	if err != nil {
		return domain.Attachment{}, err
	}

	var att domain.Attachment
	var entry domain.ActivityLog
	err = s.repo.InTx(ctx, func(tx domain.Repository) error {
		projectID, err := s.targetProject(ctx, tx, in.Target, actor.ID)
		if err != nil {
			return asMissingRef(err, string(in.Target.Kind))
		}
		att, err = tx.CreateAttachment(ctx, domain.Attachment{
			FileName:    name,
			FilePath:    path,
			FileSize:    size,
			FileType:    ext,
			Description: in.Description,
			Target:      in.Target,
			UploadedBy:  actor.ID,
		})
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "uploaded", targetType: string(in.Target.Kind), targetID: in.Target.ID, targetName: name, projectID: projectID,
			details: map[string]any{"attachment_id": att.ID, "file_size": size},
		})
		return err
	})
	if err != nil {
		s.removeFiles(ctx, path)
		return domain.Attachment{}, err
	}

	s.emitActivity(ctx, entry)
	return att, nil
}

func (s *AttachmentService) ListByTarget(ctx context.Context, actor domain.User, target domain.AttachmentTarget, offset, limit int) ([]domain.Attachment, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.targetProject(ctx, s.repo, target, actor.ID); err != nil {
		return nil, err
	}
	return s.repo.ListAttachments(ctx, target, s.page(offset, limit))
}

func (s *AttachmentService) Get(ctx context.Context, actor domain.User, id string) (domain.Attachment, error) {
	att, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return domain.Attachment{}, err
	}
	if att.UploadedBy == actor.ID {
		return att, nil
	}
	if _, err := s.targetProject(ctx, s.repo, att.Target, actor.ID); err != nil {
		return domain.Attachment{}, err
	}
	return att, nil
}

// Delete removes the row, then the stored file on a best effort basis.
func (s *AttachmentService) Delete(ctx context.Context, actor domain.User, id string) error {
	var att domain.Attachment
	var entry domain.ActivityLog
	err := s.repo.InTx(ctx, func(tx domain.Repository) error {
		var err error
		att, err = tx.GetAttachment(ctx, id)
		if err != nil {
			return err
		}
		if att.UploadedBy != actor.ID {
			return domain.Forbidden("only the uploader can delete an attachment")
		}
		if err := tx.DeleteAttachment(ctx, id); err != nil {
			return err
		}
		// The uploader may have lost access to the parent since uploading;
		// the activity is then recorded without a project.
		projectID, err := s.targetProject(ctx, tx, att.Target, actor.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrForbidden) && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			s.logger.Debug("attachment parent unreadable on delete", "attachment_id", id, "err", err)
			projectID = ""
		}
		entry, err = s.record(ctx, tx, actor, activity{
			action: "attachment_deleted", targetType: string(att.Target.Kind), targetID: att.Target.ID, targetName: att.FileName, projectID: projectID,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.removeFiles(ctx, att.FilePath)
	s.emitActivity(ctx, entry)
	return nil
}

// targetProject resolves the project behind target and checks that userID
// can read it.
func (s *AttachmentService) targetProject(ctx context.Context, repo domain.Repository, target domain.AttachmentTarget, userID string) (string, error) {
	var projectID string
	switch target.Kind {
	case domain.AttachProject:
		projectID = target.ID
	case domain.AttachTestCase:
		tc, err := repo.GetTestCase(ctx, target.ID)
		if err != nil {
			return "", err
		}
		projectID = tc.ProjectID
	case domain.AttachTestPlan:
		plan, err := repo.GetTestPlan(ctx, target.ID)
		if err != nil {
			return "", err
		}
		projectID = plan.ProjectID
	case domain.AttachTestExecution:
		_, pid, err := readableExecution(ctx, repo, target.ID, userID)
		return pid, err
	default:
		return "", domain.Invalid("unsupported entity_type %q", target.Kind)
	}
	if _, err := readableProject(ctx, repo, projectID, userID); err != nil {
		return "", err
	}
	return projectID, nil
}

// MaxUploadBytes is the largest accepted file body.
func (s *AttachmentService) MaxUploadBytes() int64 {
	return s.limit()
}

func (s *AttachmentService) limit() int64 {
	if s.maxBytes <= 0 {
		return DefaultMaxUploadBytes
	}
	return s.maxBytes
}
