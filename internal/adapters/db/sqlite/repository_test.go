package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "intellitest_test.db"))
	require.NoError(t, err)
	require.NoError(t, RunMigrations(ctx, db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepository(db)
}

func seedUser(t *testing.T, repo *Repository, email string) domain.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), domain.User{
		Email:        email,
		FullName:     email,
		PasswordHash: "x",
		Role:         domain.RoleTester,
		IsActive:     true,
	})
	require.NoError(t, err)
	return u
}

func seedProject(t *testing.T, repo *Repository, owner domain.User, teamID *string) domain.Project {
	t.Helper()
	p, err := repo.CreateProject(context.Background(), domain.Project{
		Name:      "Checkout",
		CreatedBy: owner.ID,
		TeamID:    teamID,
		IsActive:  true,
	})
	require.NoError(t, err)
	return p
}

func TestDeleteTestCaseCascadesStepsAndLinksButKeepsHistory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	owner := seedUser(t, repo, "owner@x.com")
	project := seedProject(t, repo, owner, nil)

	tc, err := repo.CreateTestCase(ctx, domain.TestCase{
		Title:     "Pay with card",
		ProjectID: project.ID,
		TestType:  domain.TestTypeFunctional,
		Priority:  domain.PriorityHigh,
		Status:    domain.StatusDraft,
		CreatedBy: owner.ID,
		Tags:      []string{"payments", "smoke"},
		Steps: []domain.TestStep{
			{Description: "open cart"},
			{Description: "pay", ExpectedResult: "receipt shown"},
		},
	})
	require.NoError(t, err)
	require.Len(t, tc.Steps, 2)
	assert.Equal(t, 1, tc.Steps[0].StepNumber)
	assert.Equal(t, 2, tc.Steps[1].StepNumber)
	assert.Equal(t, []string{"payments", "smoke"}, tc.Tags)

	plan, err := repo.CreateTestPlan(ctx, domain.TestPlan{Name: "Release", ProjectID: project.ID, CreatedBy: owner.ID, Status: domain.StatusDraft})
	require.NoError(t, err)
	_, err = repo.AddTestPlanCase(ctx, domain.TestPlanCase{TestPlanID: plan.ID, TestCaseID: tc.ID, IsMandatory: true, AddedBy: owner.ID})
	require.NoError(t, err)

	exec, err := repo.CreateExecution(ctx, domain.TestExecution{TestCaseID: tc.ID, ExecutedBy: owner.ID, Status: domain.ExecutionPending})
	require.NoError(t, err)
	comment, err := repo.CreateComment(ctx, domain.Comment{TestCaseID: tc.ID, UserID: owner.ID, UserName: "owner", CommentType: domain.CommentGeneral, Content: "flaky"})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteTestCase(ctx, tc.ID))

	_, err = repo.GetTestCase(ctx, tc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetTestStep(ctx, tc.Steps[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	reloaded, err := repo.GetTestPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Cases)

	orphanExec, err := repo.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, tc.ID, orphanExec.TestCaseID)

	orphanComment, err := repo.GetComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, tc.ID, orphanComment.TestCaseID)
}

func TestTeamMembershipIsUniqueAndGrantsProjectAccess(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	owner := seedUser(t, repo, "owner@x.com")
	member := seedUser(t, repo, "member@x.com")
	stranger := seedUser(t, repo, "stranger@x.com")

	team, err := repo.CreateTeam(ctx, domain.Team{Name: "QA", CreatedBy: owner.ID})
	require.NoError(t, err)
	project := seedProject(t, repo, owner, &team.ID)

	_, err = repo.AddTeamMember(ctx, domain.TeamMember{TeamID: team.ID, UserID: member.ID, Role: domain.TeamRoleMember})
	require.NoError(t, err)
	_, err = repo.AddTeamMember(ctx, domain.TeamMember{TeamID: team.ID, UserID: member.ID, Role: domain.TeamRoleAdmin})
	assert.ErrorIs(t, err, domain.ErrConflict)

	ids, err := repo.AccessibleProjectIDs(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{project.ID}, ids)

	ids, err = repo.AccessibleProjectIDs(ctx, stranger.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	teams, err := repo.ListTeamsForUser(ctx, member.ID, domain.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, team.ID, teams[0].ID)

	require.NoError(t, repo.DeleteTeam(ctx, team.ID))
	reloaded, err := repo.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.TeamID)
}

func TestUpdateProjectDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	owner := seedUser(t, repo, "owner@x.com")
	project := seedProject(t, repo, owner, nil)
	require.Equal(t, 1, project.Version)

	project.Name = "Renamed"
	updated, err := repo.UpdateProject(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 2, updated.Version)

	project.Name = "Stale"
	_, err = repo.UpdateProject(ctx, project)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = repo.UpdateProject(ctx, domain.Project{ID: "missing", Version: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateWritesZeroValues(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	owner := seedUser(t, repo, "owner@x.com")
	project := seedProject(t, repo, owner, nil)

	env, err := repo.CreateEnvironment(ctx, domain.Environment{
		Name:      "staging",
		ProjectID: project.ID,
		CreatedBy: owner.ID,
		BaseURL:   "https://staging.example.com",
		Variables: map[string]string{"region": "eu"},
		IsActive:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "eu", env.Variables["region"])

	env.IsActive = false
	env.BaseURL = ""
	updated, err := repo.UpdateEnvironment(ctx, env)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Empty(t, updated.BaseURL)
	assert.Equal(t, project.ID, updated.ProjectID)
}

func TestMissingParentIsReportedAsMissingReference(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	owner := seedUser(t, repo, "owner@x.com")

	_, err := repo.CreateTestPlan(ctx, domain.TestPlan{Name: "orphan", ProjectID: "nope", CreatedBy: owner.ID, Status: domain.StatusDraft})
	require.Error(t, err)
	assert.True(t, domain.IsMissingRef(err))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAttachmentTargetsResolveToForeignKeys(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	owner := seedUser(t, repo, "owner@x.com")
	project := seedProject(t, repo, owner, nil)

	att, err := repo.CreateAttachment(ctx, domain.Attachment{
		FileName:   "requirements.pdf",
		FilePath:   "/tmp/requirements.pdf",
		FileSize:   12,
		FileType:   "pdf",
		Target:     domain.AttachmentTarget{Kind: domain.AttachProject, ID: project.ID},
		UploadedBy: owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AttachProject, att.Target.Kind)

	_, err = repo.CreateAttachment(ctx, domain.Attachment{
		FileName:   "ghost.txt",
		FilePath:   "/tmp/ghost.txt",
		Target:     domain.AttachmentTarget{Kind: domain.AttachTestCase, ID: "missing"},
		UploadedBy: owner.ID,
	})
	assert.True(t, domain.IsMissingRef(err))

	list, err := repo.ListAttachments(ctx, att.Target, domain.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, att.ID, list[0].ID)

	tc, err := repo.CreateTestCase(ctx, domain.TestCase{
		Title: "upload", ProjectID: project.ID, CreatedBy: owner.ID,
		TestType: domain.TestTypeFunctional, Priority: domain.PriorityLow, Status: domain.StatusActive,
	})
	require.NoError(t, err)
	_, err = repo.CreateAttachment(ctx, domain.Attachment{
		FileName:   "screen.png",
		FilePath:   "/tmp/screen.png",
		Target:     domain.AttachmentTarget{Kind: domain.AttachTestCase, ID: tc.ID},
		UploadedBy: owner.ID,
	})
	require.NoError(t, err)

	files, err := repo.AttachmentFiles(ctx, domain.AttachmentTarget{Kind: domain.AttachTestCase, ID: tc.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/screen.png"}, files)
	files, err = repo.AttachmentFiles(ctx, domain.AttachmentTarget{Kind: domain.AttachProject, ID: project.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/tmp/requirements.pdf", "/tmp/screen.png"}, files)

	require.NoError(t, repo.DeleteProject(ctx, project.ID))
	_, err = repo.GetAttachment(ctx, att.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecutionStatsScopesToProjects(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	owner := seedUser(t, repo, "owner@x.com")
	project := seedProject(t, repo, owner, nil)
	tc, err := repo.CreateTestCase(ctx, domain.TestCase{
		Title: "login", ProjectID: project.ID, CreatedBy: owner.ID,
		TestType: domain.TestTypeFunctional, Priority: domain.PriorityLow, Status: domain.StatusActive,
	})
	require.NoError(t, err)

	durations := []int{10, 20}
	statuses := []domain.ExecutionStatus{domain.ExecutionCompleted, domain.ExecutionCompleted, domain.ExecutionRunning, domain.ExecutionFailed}
	for i, status := range statuses {
		e := domain.TestExecution{TestCaseID: tc.ID, ExecutedBy: owner.ID, Status: status}
		if i < len(durations) {
			d := durations[i]
			e.Duration = &d
		}
		_, err := repo.CreateExecution(ctx, e)
		require.NoError(t, err)
	}

	stats, err := repo.ExecutionStats(ctx, domain.ExecutionFilter{ProjectIDs: []string{project.ID}})
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Total)
	assert.EqualValues(t, 2, stats.Completed)
	assert.EqualValues(t, 1, stats.Running)
	assert.InDelta(t, 15.0, stats.AverageDuration, 0.001)

	empty, err := repo.ExecutionStats(ctx, domain.ExecutionFilter{ProjectIDs: []string{}})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	owner := seedUser(t, repo, "owner@x.com")

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(tx domain.Repository) error {
		if _, err := tx.CreateProject(ctx, domain.Project{Name: "doomed", CreatedBy: owner.ID, IsActive: true}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := repo.CountProjects(ctx, domain.ProjectFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}
