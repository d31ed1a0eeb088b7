// Package stats aggregates counters for the ops endpoints.
package stats

import (
	"context"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/repository"
)

// Snapshot is a point-in-time view of the dataset.
type Snapshot struct {
	RealProfiles      int64 `json:"real_profiles"`
	SyntheticProfiles int64 `json:"synthetic_profiles"`
	Decisions         int64 `json:"decisions"`
	Matches           int64 `json:"matches"`
	PendingReports    int64 `json:"pending_reports"`
}

type Service struct {
	profiles  *repository.ProfileRepository
	decisions *repository.DecisionRepository
	reports   *repository.ReportRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		profiles:  repository.NewProfileRepository(appCtx.DB),
		decisions: repository.NewDecisionRepository(appCtx.DB),
		reports:   repository.NewReportRepository(appCtx.DB),
	}
}

func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	var out Snapshot
	var err error
	if out.RealProfiles, out.SyntheticProfiles, err = s.profiles.CountProfiles(ctx); err != nil {
		return nil, err
	}
	if out.Decisions, out.Matches, err = s.decisions.Counts(ctx); err != nil {
		return nil, err
	}
	if out.PendingReports, err = s.reports.CountByStatus(ctx, db.ReportPending); err != nil {
		return nil, err
	}
	return &out, nil
}
