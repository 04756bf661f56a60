package application

import (
	"context"
	"errors"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

// Ownership and membership rules. A resource that exists but is out of
// reach yields Forbidden; one that does not exist yields NotFound.

func canReadProject(ctx context.Context, repo domain.Repository, project domain.Project, userID string) (bool, error) {
	if project.CreatedBy == userID {
		return true, nil
	}
	if project.TeamID == nil {
		return false, nil
	}
	_, err := repo.GetTeamMember(ctx, *project.TeamID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// readableProject loads a project and checks read access for userID.
func readableProject(ctx context.Context, repo domain.Repository, projectID, userID string) (domain.Project, error) {
	project, err := repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	ok, err := canReadProject(ctx, repo, project, userID)
	if err != nil {
		return domain.Project{}, err
	}
	if !ok {
		return domain.Project{}, domain.Forbidden("no access to project")
	}
	return project, nil
}

func requireProjectOwner(project domain.Project, userID string) error {
	if project.CreatedBy != userID {
		return domain.Forbidden("only the project creator can modify it")
	}
	return nil
}

// readableTestCase loads a test case whose project userID can read.
func readableTestCase(ctx context.Context, repo domain.Repository, testCaseID, userID string) (domain.TestCase, error) {
	tc, err := repo.GetTestCase(ctx, testCaseID)
	if err != nil {
		return domain.TestCase{}, err
	}
	if _, err := readableProject(ctx, repo, tc.ProjectID, userID); err != nil {
		return domain.TestCase{}, err
	}
	return tc, nil
}

// writableTestCase allows the creator or anyone who can read the project.
func writableTestCase(ctx context.Context, repo domain.Repository, testCaseID, userID string) (domain.TestCase, error) {
	tc, err := repo.GetTestCase(ctx, testCaseID)
	if err != nil {
		return domain.TestCase{}, err
	}
	if tc.CreatedBy == userID {
		return tc, nil
	}
	if _, err := readableProject(ctx, repo, tc.ProjectID, userID); err != nil {
		return domain.TestCase{}, err
	}
	return tc, nil
}

func canReadTeam(ctx context.Context, repo domain.Repository, team domain.Team, userID string) (bool, error) {
	if team.CreatedBy == userID {
		return true, nil
	}
	_, err := repo.GetTeamMember(ctx, team.ID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// canManageMembers allows the team creator and members holding the admin
// or owner team role.
func canManageMembers(ctx context.Context, repo domain.Repository, team domain.Team, userID string) (bool, error) {
	if team.CreatedBy == userID {
		return true, nil
	}
	m, err := repo.GetTeamMember(ctx, team.ID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Role.AtLeast(domain.TeamRoleAdmin), nil
}

// executionProject resolves the project an execution belongs to. Executions
// of a deleted test case have none.
func executionProject(ctx context.Context, repo domain.Repository, exec domain.TestExecution) (string, error) {
	tc, err := repo.GetTestCase(ctx, exec.TestCaseID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return tc.ProjectID, nil
}

// readableExecution allows the executor, or anyone who can read the project
// of the executed test case.
func readableExecution(ctx context.Context, repo domain.Repository, id, userID string) (domain.TestExecution, string, error) {
	exec, err := repo.GetExecution(ctx, id)
	if err != nil {
		return domain.TestExecution{}, "", err
	}
	projectID, err := executionProject(ctx, repo, exec)
	if err != nil {
		return domain.TestExecution{}, "", err
	}
	if exec.ExecutedBy == userID {
		return exec, projectID, nil
	}
	if projectID == "" {
		return domain.TestExecution{}, "", domain.Forbidden("no access to test execution")
	}
	if _, err := readableProject(ctx, repo, projectID, userID); err != nil {
		return domain.TestExecution{}, "", err
	}
	return exec, projectID, nil
}
