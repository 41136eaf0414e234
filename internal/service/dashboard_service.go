package service

import (
	"context"

	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/repository"
	"github.com/stemsi/exstem-testflow/internal/testsession"
)

const recentActivityLimit = 5

type dashboardStore interface {
	GetSummaryCounts(ctx context.Context) (repository.DashboardCounts, error)
	GetTestStatusCounts(ctx context.Context) (map[model.TestStatus]int, error)
	GetPercentageHistogram(ctx context.Context) (map[int]int, error)
	GetRecentTestActivity(ctx context.Context, limit int) ([]repository.DashboardTestActivity, error)
}

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	Counts         repository.DashboardCounts         `json:"counts"`
	StatusCounts   map[model.TestStatus]int           `json:"status_counts"`
	BandCounts     map[string]int                     `json:"band_counts"`
	RecentActivity []repository.DashboardTestActivity `json:"recent_activity"`
	LiveSessions   int                                `json:"live_sessions"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo dashboardStore
	live func() int
}

// NewDashboardService creates a new DashboardService. live reports the
// number of sessions running in this process and may be nil.
func NewDashboardService(repo dashboardStore, live func() int) *DashboardService {
	return &DashboardService{repo: repo, live: live}
}

// GetDashboardData fetches all dashboard metrics sequentially.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	counts, err := s.repo.GetSummaryCounts(ctx)
	if err != nil {
		return nil, err
	}

	statusCounts, err := s.repo.GetTestStatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	hist, err := s.repo.GetPercentageHistogram(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.GetRecentTestActivity(ctx, recentActivityLimit)
	if err != nil {
		return nil, err
	}

	data := &DashboardData{
		Counts:         counts,
		StatusCounts:   statusCounts,
		BandCounts:     BandCounts(hist),
		RecentActivity: recent,
	}
	if s.live != nil {
		data.LiveSessions = s.live()
	}
	return data, nil
}

// BandCounts folds a percentage histogram into grade bands. Every band is
// present, empty ones with zero.
func BandCounts(hist map[int]int) map[string]int {
	out := map[string]int{
		testsession.BandExcellent.Label: 0,
		testsession.BandGood.Label:      0,
		testsession.BandAverage.Label:   0,
		testsession.BandPoor.Label:      0,
	}
	for pct, n := range hist {
		out[testsession.Band(pct).Label] += n
	}
	return out
}
