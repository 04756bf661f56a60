package application

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, domain.NotFound("cache entry")
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string][]byte{}
	}
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deletes++
	return nil
}

// memFiles stores uploads in memory under sequential paths.
type memFiles struct {
	mu    sync.Mutex
	next  int
	files map[string][]byte
}

func (m *memFiles) Save(_ context.Context, name string, body io.Reader, maxBytes int64) (string, int64, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return "", 0, err
	}
	if int64(len(raw)) > maxBytes {
		return "", 0, domain.Invalid("file exceeds %d bytes", maxBytes)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.next++
	path := fmt.Sprintf("%03d-%s", m.next, name)
	m.files[path] = raw
	return path, int64(len(raw)), nil
}

func (m *memFiles) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *memFiles) stored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for path := range m.files {
		out = append(out, path)
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) channels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Channel)
	}
	return out
}

type fixture struct {
	svc      *Services
	repo     *sqlite.Repository
	cache    *memCache
	notifier *recordingNotifier
	files    *memFiles
	gen      *scriptedGenerator
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "app_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(ctx, db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	creds, err := NewCredentials("test-secret", "HS256", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		repo:     sqlite.NewRepository(db),
		cache:    &memCache{},
		notifier: &recordingNotifier{},
		files:    &memFiles{},
		gen:      &scriptedGenerator{},
		clock:    time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
	f.svc = New(Deps{
		Repo:        f.repo,
		Credentials: creds,
		Cache:       f.cache,
		Notifier:    f.notifier,
		Files:       f.files,
		Generator:   f.gen,
		Now:         func() time.Time { return f.clock },
	})
	return f
}

func (f *fixture) register(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := f.svc.Auth.Register(context.Background(), RegisterInput{
		Email: email, FullName: email, Password: "password123",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) project(t *testing.T, owner domain.User, teamID *string) domain.Project {
	t.Helper()
	p, err := f.svc.Projects.Create(context.Background(), owner, CreateProjectInput{Name: "Checkout", TeamID: teamID})
	require.NoError(t, err)
	return p
}

func (f *fixture) testCase(t *testing.T, actor domain.User, projectID, title string) domain.TestCase {
	t.Helper()
	tc, err := f.svc.TestCases.Create(context.Background(), actor, CreateTestCaseInput{
		Title:     title,
		ProjectID: projectID,
		Steps:     []StepInput{{Description: "open page"}, {Description: "submit", ExpectedResult: "saved"}},
	})
	require.NoError(t, err)
	return tc
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u := f.register(t, "Tess@Example.com")
	assert.Equal(t, "tess@example.com", u.Email)
	assert.Equal(t, domain.RoleTester, u.Role)
	assert.True(t, u.IsActive)

	_, err := f.svc.Auth.Register(ctx, RegisterInput{Email: "tess@example.com", FullName: "Again", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.svc.Auth.Register(ctx, RegisterInput{Email: "short@example.com", FullName: "S", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.Auth.Register(ctx, RegisterInput{Email: "boss@example.com", FullName: "B", Password: "password123", Role: domain.RoleAdmin})
	assert.ErrorIs(t, err, domain.ErrValidation)

	res, err := f.svc.Auth.Login(ctx, "tess@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, int64(3600), res.ExpiresIn)

	_, err = f.svc.Auth.Login(ctx, "tess@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	me, err := f.svc.Auth.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.ID)

	_, err = f.svc.Auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestBootstrapAdminOnlyOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.Auth.BootstrapAdmin(ctx, "root@example.com", "rootpass123"))
	admin, err := f.repo.GetUserByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	require.NoError(t, f.svc.Auth.BootstrapAdmin(ctx, "other@example.com", "rootpass123"))
	_, err = f.repo.GetUserByEmail(ctx, "other@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProjectAccessFollowsTeamMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	member := f.register(t, "member@example.com")
	outsider := f.register(t, "outsider@example.com")

	team, err := f.svc.Teams.Create(ctx, owner, "QA", "")
	require.NoError(t, err)
	_, err = f.svc.Teams.AddMember(ctx, owner, team.ID, AddMemberInput{UserID: member.ID, Role: domain.TeamRoleMember})
	require.NoError(t, err)

	p := f.project(t, owner, &team.ID)
	assert.Equal(t, owner.ID, p.CreatedBy)
	assert.Equal(t, 1, p.Version)

	got, err := f.svc.Projects.Get(ctx, member, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = f.svc.Projects.Get(ctx, outsider, p.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	listed, err := f.svc.Projects.List(ctx, member, 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	listed, err = f.svc.Projects.List(ctx, outsider, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)

	name := "Renamed"
	_, err = f.svc.Projects.Update(ctx, member, p.ID, UpdateProjectInput{Name: &name})
	assert.ErrorIs(t, err, domain.ErrForbidden, "members read, only the creator writes")

	_, err = f.svc.Projects.Get(ctx, owner, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Teams.AddMember(ctx, member, team.ID, AddMemberInput{UserID: outsider.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.Teams.AddMember(ctx, owner, team.ID, AddMemberInput{UserID: member.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCanReadMatchesProjectAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	member := f.register(t, "member@example.com")
	outsider := f.register(t, "outsider@example.com")

	team, err := f.svc.Teams.Create(ctx, owner, "QA", "")
	require.NoError(t, err)
	_, err = f.svc.Teams.AddMember(ctx, owner, team.ID, AddMemberInput{UserID: member.ID, Role: domain.TeamRoleMember})
	require.NoError(t, err)
	p := f.project(t, owner, &team.ID)

	assert.True(t, f.svc.Projects.CanRead(ctx, owner.ID, p.ID))
	assert.True(t, f.svc.Projects.CanRead(ctx, member.ID, p.ID))
	assert.False(t, f.svc.Projects.CanRead(ctx, outsider.ID, p.ID))
	assert.False(t, f.svc.Projects.CanRead(ctx, owner.ID, "missing"))
}

func TestProjectCacheIsEvictedOnUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)

	_, err := f.svc.Projects.Get(ctx, owner, p.ID)
	require.NoError(t, err)
	_, cached := f.cache.entries[projectCacheKey(p.ID)]
	require.True(t, cached)

	name := "Payments"
	v := p.Version
	updated, err := f.svc.Projects.Update(ctx, owner, p.ID, UpdateProjectInput{Name: &name, ExpectedVersion: &v})
	require.NoError(t, err)
	assert.Equal(t, v+1, updated.Version)
	_, cached = f.cache.entries[projectCacheKey(p.ID)]
	assert.False(t, cached)

	got, err := f.svc.Projects.Get(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Payments", got.Name)

	stale := p.Version
	_, err = f.svc.Projects.Update(ctx, owner, p.ID, UpdateProjectInput{Name: &name, ExpectedVersion: &stale})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestProjectCreateWithUnknownTeamIsMissingRef(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	missing := "no-such-team"
	_, err := f.svc.Projects.Create(context.Background(), owner, CreateProjectInput{Name: "X", TeamID: &missing})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.True(t, domain.IsMissingRef(err))
}

func TestTestCaseLifecycleNotifiesAndLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)

	tc := f.testCase(t, owner, p.ID, "Login works")
	require.Len(t, tc.Steps, 2)
	assert.Equal(t, 1, tc.Steps[0].StepNumber)
	assert.Equal(t, 2, tc.Steps[1].StepNumber)
	assert.Equal(t, domain.TestTypeFunctional, tc.TestType)
	assert.Equal(t, domain.StatusDraft, tc.Status)
	assert.Contains(t, f.notifier.channels(), domain.ChannelTestCase)
	assert.Contains(t, f.notifier.channels(), domain.ChannelDashboard)

	step, err := f.svc.TestCases.AddStep(ctx, owner, tc.ID, StepInput{Description: "logout"})
	require.NoError(t, err)
	assert.Equal(t, 3, step.StepNumber)

	steps := []StepInput{{Description: "only step"}}
	updated, err := f.svc.TestCases.Update(ctx, owner, tc.ID, UpdateTestCaseInput{Steps: &steps})
	require.NoError(t, err)
	require.Len(t, updated.Steps, 1)
	assert.Equal(t, "only step", updated.Steps[0].Description)

	_, err = f.svc.TestCases.Create(ctx, owner, CreateTestCaseInput{Title: "Bad", ProjectID: p.ID, Priority: "urgent"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	feed, err := f.svc.Dashboard.ActivityFeed(ctx, owner, 0)
	require.NoError(t, err)
	require.NotEmpty(t, feed)
	assert.Equal(t, "test_case", feed[0].TargetType)
}

func TestExecutionLifecycleStampsDuration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	other := f.register(t, "other@example.com")
	p := f.project(t, owner, nil)
	tc := f.testCase(t, owner, p.ID, "Checkout")

	exec, err := f.svc.Executions.Create(ctx, owner, CreateExecutionInput{TestCaseID: tc.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionPending, exec.Status)
	assert.Nil(t, exec.StartedAt)

	exec, err = f.svc.Executions.UpdateStatus(ctx, owner, exec.ID, UpdateExecutionInput{Status: domain.ExecutionRunning})
	require.NoError(t, err)
	require.NotNil(t, exec.StartedAt)

	f.clock = f.clock.Add(42 * time.Second)
	exec, err = f.svc.Executions.UpdateStatus(ctx, owner, exec.ID, UpdateExecutionInput{Status: domain.ExecutionCompleted})
	require.NoError(t, err)
	require.NotNil(t, exec.CompletedAt)
	require.NotNil(t, exec.Duration)
	assert.Equal(t, 42, *exec.Duration)

	_, err = f.svc.Executions.UpdateStatus(ctx, other, exec.ID, UpdateExecutionInput{Status: domain.ExecutionFailed})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.Executions.Get(ctx, other, exec.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.Contains(t, f.notifier.channels(), domain.ChannelExecution)

	// History outlives the test case and stays visible to its executor.
	require.NoError(t, f.svc.TestCases.Delete(ctx, owner, tc.ID))
	got, err := f.svc.Executions.Get(ctx, owner, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, tc.ID, got.TestCaseID)
}

func TestDashboardStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)
	tc := f.testCase(t, owner, p.ID, "Search")

	for i, status := range []domain.ExecutionStatus{
		domain.ExecutionCompleted, domain.ExecutionCompleted, domain.ExecutionCompleted,
		domain.ExecutionFailed, domain.ExecutionFailed,
	} {
		exec, err := f.svc.Executions.Create(ctx, owner, CreateExecutionInput{TestCaseID: tc.ID})
		require.NoError(t, err)
		d := (i + 1) * 10
		_, err = f.svc.Executions.UpdateStatus(ctx, owner, exec.ID, UpdateExecutionInput{Status: status, Duration: &d})
		require.NoError(t, err)
	}

	stats, err := f.svc.Dashboard.Stats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalProjects)
	assert.Equal(t, int64(1), stats.TotalTestCases)
	assert.Equal(t, int64(5), stats.TotalExecutions)
	assert.Equal(t, 60.0, stats.PassRate)
	assert.Equal(t, 30.0, stats.AverageExecutionTime)
	assert.Len(t, stats.RecentActivity, recentActivityN)

	fresh := f.register(t, "fresh@example.com")
	empty, err := f.svc.Dashboard.Stats(ctx, fresh)
	require.NoError(t, err)
	assert.Zero(t, empty.PassRate)
	assert.Zero(t, empty.TotalExecutions)
}

func TestPassRate(t *testing.T) {
	assert.Equal(t, 60.0, PassRate(5, 3))
	assert.Equal(t, 33.33, PassRate(3, 1))
	assert.Equal(t, 0.0, PassRate(0, 0))
}

func TestTestPlanLinksStayInProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p1 := f.project(t, owner, nil)
	p2 := f.project(t, owner, nil)
	a := f.testCase(t, owner, p1.ID, "A")
	b := f.testCase(t, owner, p1.ID, "B")
	foreign := f.testCase(t, owner, p2.ID, "Foreign")

	plan, err := f.svc.TestPlans.Create(ctx, owner, CreateTestPlanInput{Name: "Release", ProjectID: p1.ID, TestCaseIDs: []string{b.ID}})
	require.NoError(t, err)
	require.Len(t, plan.Cases, 1)

	plan, err = f.svc.TestPlans.AddCase(ctx, owner, plan.ID, AddPlanCaseInput{TestCaseID: a.ID})
	require.NoError(t, err)
	require.Len(t, plan.Cases, 2)
	assert.Equal(t, b.ID, plan.Cases[0].TestCaseID)
	assert.Equal(t, a.ID, plan.Cases[1].TestCaseID)
	assert.True(t, plan.Cases[1].IsMandatory)

	_, err = f.svc.TestPlans.AddCase(ctx, owner, plan.ID, AddPlanCaseInput{TestCaseID: a.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.svc.TestPlans.AddCase(ctx, owner, plan.ID, AddPlanCaseInput{TestCaseID: foreign.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)

	plan, err = f.svc.TestPlans.RemoveCase(ctx, owner, plan.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, plan.Cases, 1)
}

func TestCommentThreadAndResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	other := f.register(t, "other@example.com")
	p := f.project(t, owner, nil)
	tc := f.testCase(t, owner, p.ID, "Cart")
	tc2 := f.testCase(t, owner, p.ID, "Wishlist")

	root, err := f.svc.Comments.Create(ctx, owner, CreateCommentInput{TestCaseID: tc.ID, Content: "flaky?"})
	require.NoError(t, err)
	assert.Equal(t, domain.CommentGeneral, root.CommentType)

	_, err = f.svc.Comments.Create(ctx, owner, CreateCommentInput{TestCaseID: tc.ID, Content: "yes", ParentCommentID: &root.ID})
	require.NoError(t, err)
	_, err = f.svc.Comments.Create(ctx, owner, CreateCommentInput{TestCaseID: tc2.ID, Content: "wrong thread", ParentCommentID: &root.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)

	thread, err := f.svc.Comments.ListByTestCase(ctx, owner, tc.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, root.ID, thread[0].ID)

	_, err = f.svc.Comments.Resolve(ctx, other, root.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	resolved, err := f.svc.Comments.Resolve(ctx, owner, root.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Contains(t, f.notifier.channels(), domain.ChannelComment)
}

func TestEnvironmentOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	other := f.register(t, "other@example.com")
	p := f.project(t, owner, nil)

	env, err := f.svc.Environments.Create(ctx, owner, CreateEnvironmentInput{
		Name: "staging", ProjectID: p.ID, BaseURL: "https://staging.example.com",
		Variables: map[string]string{"region": "eu"},
	})
	require.NoError(t, err)
	assert.Equal(t, "eu", env.Variables["region"])

	_, err = f.svc.Environments.Create(ctx, owner, CreateEnvironmentInput{Name: "bad", ProjectID: p.ID, BaseURL: "not a url"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = f.svc.Environments.Delete(ctx, other, env.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	require.NoError(t, f.svc.Environments.Delete(ctx, owner, env.ID))
}

func (f *fixture) attach(t *testing.T, actor domain.User, kind domain.AttachmentKind, id, name string) domain.Attachment {
	t.Helper()
	att, err := f.svc.Attachments.Create(context.Background(), actor, UploadInput{
		Target:   domain.AttachmentTarget{Kind: kind, ID: id},
		FileName: name,
		Body:     strings.NewReader("contents of " + name),
	})
	require.NoError(t, err)
	return att
}

func TestDeletingParentsRemovesAttachmentFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)
	tc := f.testCase(t, owner, p.ID, "Upload receipt")
	plan, err := f.svc.TestPlans.Create(ctx, owner, CreateTestPlanInput{Name: "Release", ProjectID: p.ID})
	require.NoError(t, err)
	exec, err := f.svc.Executions.Create(ctx, owner, CreateExecutionInput{TestCaseID: tc.ID, Status: domain.ExecutionFailed})
	require.NoError(t, err)

	onExec := f.attach(t, owner, domain.AttachTestExecution, exec.ID, "trace.txt")
	f.attach(t, owner, domain.AttachProject, p.ID, "brief.pdf")
	f.attach(t, owner, domain.AttachTestCase, tc.ID, "screen.png")
	f.attach(t, owner, domain.AttachTestPlan, plan.ID, "matrix.csv")
	require.Len(t, f.files.stored(), 4)

	require.NoError(t, f.svc.Executions.Delete(ctx, owner, exec.ID))
	assert.NotContains(t, f.files.stored(), onExec.FilePath)
	assert.Len(t, f.files.stored(), 3)

	require.NoError(t, f.svc.Projects.Delete(ctx, owner, p.ID))
	assert.Empty(t, f.files.stored())
}

func TestAttachmentDeleteSurvivesLostProjectAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	member := f.register(t, "member@example.com")
	team, err := f.svc.Teams.Create(ctx, owner, "QA", "")
	require.NoError(t, err)
	_, err = f.svc.Teams.AddMember(ctx, owner, team.ID, AddMemberInput{UserID: member.ID, Role: domain.TeamRoleMember})
	require.NoError(t, err)
	p := f.project(t, owner, &team.ID)

	att := f.attach(t, member, domain.AttachProject, p.ID, "notes.txt")
	require.NoError(t, f.svc.Teams.RemoveMember(ctx, owner, team.ID, member.ID))

	_, err = f.svc.Attachments.Get(ctx, owner, att.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Attachments.Delete(ctx, member, att.ID))
	assert.Empty(t, f.files.stored())

	_, err = f.svc.Attachments.Get(ctx, owner, att.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
