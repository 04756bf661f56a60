package application

import (
	"context"
	"math"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

type DashboardService struct {
	*core
}

// PassRate is the completed share of all executions as a percentage,
// rounded to two decimals. No executions yield 0.
func PassRate(total, completed int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*10000) / 100
}

// Stats summarizes the projects the actor can read.
func (s *DashboardService) Stats(ctx context.Context, actor domain.User) (domain.DashboardStats, error) {
	ids, err := s.repo.AccessibleProjectIDs(ctx, actor.ID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	cases, err := s.repo.CountTestCases(ctx, domain.TestCaseFilter{ProjectIDs: ids})
	if err != nil {
		return domain.DashboardStats{}, err
	}
	execs, err := s.repo.ExecutionStats(ctx, domain.ExecutionFilter{ProjectIDs: ids, ExecutedBy: actor.ID})
	if err != nil {
		return domain.DashboardStats{}, err
	}
	recent, err := s.repo.ListActivity(ctx, domain.ActivityFilter{UserID: actor.ID, ProjectIDs: ids, Limit: recentActivityN})
	if err != nil {
		return domain.DashboardStats{}, err
	}

	return domain.DashboardStats{
		TotalProjects:        int64(len(ids)),
		TotalTestCases:       cases,
		TotalExecutions:      execs.Total,
		PassRate:             PassRate(execs.Total, execs.Completed),
		AverageExecutionTime: math.Round(execs.AverageDuration*100) / 100,
		ActiveTestRuns:       execs.Running,
		RecentActivity:       recent,
	}, nil
}

// ActivityFeed lists the newest activity by the actor or in readable
// projects.
func (s *DashboardService) ActivityFeed(ctx context.Context, actor domain.User, limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 {
		limit = activityFeedN
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	ids, err := s.repo.AccessibleProjectIDs(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListActivity(ctx, domain.ActivityFilter{UserID: actor.ID, ProjectIDs: ids, Limit: limit})
}
