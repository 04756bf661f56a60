package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultListLimit  = 100
	defaultMaxLimit   = 1000
	defaultProjectTTL = time.Hour
	recentActivityN   = 10
	activityFeedN     = 50
)

// Deps are the process-scoped collaborators shared by every service.
// Cache, Notifier, Generator and Files are optional.
type Deps struct {
	Repo        domain.Repository
	Credentials *Credentials
	Cache       domain.Cache
	Notifier    domain.Notifier
	Generator   domain.TextGenerator
	Files       domain.FileStore
	Logger      *slog.Logger

	ProjectTTL     time.Duration
	MaxListLimit   int
	MaxUploadBytes int64
	Now            func() time.Time
}

type Services struct {
	Auth         *AuthService
	Projects     *ProjectService
	Teams        *TeamService
	Environments *EnvironmentService
	TestCases    *TestCaseService
	TestPlans    *TestPlanService
	Executions   *ExecutionService
	Comments     *CommentService
	Attachments  *AttachmentService
	Dashboard    *DashboardService
	AI           *AIService
}

func New(deps Deps) *Services {
	c := newCore(deps)
	return &Services{
		Auth:         &AuthService{core: c, creds: deps.Credentials},
		Projects:     &ProjectService{core: c, cache: deps.Cache, ttl: deps.ProjectTTL},
		Teams:        &TeamService{core: c},
		Environments: &EnvironmentService{core: c},
		TestCases:    &TestCaseService{core: c},
		TestPlans:    &TestPlanService{core: c},
		Executions:   &ExecutionService{core: c},
		Comments:     &CommentService{core: c},
		Attachments:  &AttachmentService{core: c, maxBytes: deps.MaxUploadBytes},
		Dashboard:    &DashboardService{core: c},
		AI:           &AIService{core: c, gen: deps.Generator},
	}
}

// core carries what every use case needs: storage, clock, logging and the
// after-commit side effects.
type core struct {
	repo     domain.Repository
	notifier domain.Notifier
	files    domain.FileStore
	logger   *slog.Logger
	now      func() time.Time
	maxLimit int
}

func newCore(deps Deps) *core {
	c := &core{
		repo:     deps.Repo,
		notifier: deps.Notifier,
		files:    deps.Files,
		logger:   deps.Logger,
		now:      deps.Now,
		maxLimit: deps.MaxListLimit,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.maxLimit <= 0 {
		c.maxLimit = defaultMaxLimit
	}
	return c
}

func (c *core) page(offset, limit int) domain.Page {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > c.maxLimit {
		limit = c.maxLimit
	}
	return domain.Page{Offset: offset, Limit: limit}
}

type activity struct {
	action     string
	targetType string
	targetID   string
	targetName string
	projectID  string
	details    any
}

// record appends an ActivityLog row through repo, which must be the
// transaction performing the change it describes.
func (c *core) record(ctx context.Context, repo domain.Repository, actor domain.User, a activity) (domain.ActivityLog, error) {
	entry := domain.ActivityLog{
		ID:         uuid.NewString(),
		UserID:     actor.ID,
		UserName:   displayName(actor),
		Action:     a.action,
		TargetType: a.targetType,
		TargetID:   a.targetID,
		TargetName: a.targetName,
		CreatedAt:  c.now(),
	}
	if a.projectID != "" {
		pid := a.projectID
		entry.ProjectID = &pid
	}
	if a.details != nil {
		raw, err := json.Marshal(a.details)
		if err != nil {
			return domain.ActivityLog{}, domain.Internal("encode activity details", err)
		}
		entry.Details = raw
	}
	if err := repo.CreateActivity(ctx, entry); err != nil {
		return domain.ActivityLog{}, err
	}
	return entry, nil
}

// emit broadcasts a committed change. Failures never reach the caller.
// Events without a project are addressed to userID alone.
func (c *core) emit(ctx context.Context, userID, channel, eventType, projectID string, payload any) {
	if c.notifier == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("encode notification", "channel", channel, "type", eventType, "err", err)
		return
	}
	c.notifier.Notify(ctx, domain.Event{
		Channel: channel,
		Type:    eventType,
		Room:    domain.ProjectRoom(projectID),
		UserID:  userID,
		Payload: raw,
		At:      c.now(),
	})
}

func (c *core) emitActivity(ctx context.Context, entry domain.ActivityLog) {
	projectID := ""
	if entry.ProjectID != nil {
		projectID = *entry.ProjectID
	}
	c.emit(ctx, entry.UserID, domain.ChannelDashboard, "activity", projectID, entry)
}

// attachedFiles collects the stored files that deleting target drops.
func (c *core) attachedFiles(ctx context.Context, repo domain.Repository, kind domain.AttachmentKind, id string) ([]string, error) {
	return repo.AttachmentFiles(ctx, domain.AttachmentTarget{Kind: kind, ID: id})
}

// removeFiles deletes stored files after their rows are gone. Failures are
// logged; the rows are already committed.
func (c *core) removeFiles(ctx context.Context, paths ...string) {
	if c.files == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, path := range paths {
		if err := c.files.Remove(ctx, path); err != nil {
			c.logger.Warn("remove attachment file", "path", path, "err", err)
		}
	}
}

func displayName(u domain.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// asMissingRef turns the absence of a referenced parent into the
// validation failure reported for dangling references.
func asMissingRef(err error, what string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.MissingRef(what)
	}
	return err
}

func optionalString(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	s := *v
	return &s
}
