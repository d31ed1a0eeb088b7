package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/repository"
	"github.com/oggyb/matchbot/internal/utils/pagination"
)

// Reasons a user may pick when reporting a profile.
var Reasons = []string{"fake", "no_response", "adult", "spam", "abuse", "other"}

// Review actions.
const (
	ActionDismiss    = "dismiss"
	ActionClose      = "close"
	ActionDeactivate = "deactivate"
	ActionDelete     = "delete"
)

const maxPageSize = 100

// Service owns the report lifecycle: pending → reviewed | closed.
type Service struct {
	appCtx   *app.AppContext
	log      *slog.Logger
	repo     *repository.ReportRepository
	profiles *repository.ProfileRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		log:      appCtx.Logger.With("service", "moderation"),
		repo:     repository.NewReportRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
	}
}

// Report files a pending report against a profile.
func (s *Service) Report(ctx context.Context, reporterUserID, profileID uint64, reason string) (*db.Report, error) {
	if !slices.Contains(Reasons, reason) {
		return nil, fmt.Errorf("report reason %q: %w", reason, svcErr.ErrInvalidInput)
	}
	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("profile %d: %w", profileID, svcErr.NotFound(err))
	}
	if p.UserID == reporterUserID {
		return nil, fmt.Errorf("cannot report own profile: %w", svcErr.ErrInvalidInput)
	}

	rep := &db.Report{
		ReporterUserID: reporterUserID,
		ProfileID:      profileID,
		Reason:         reason,
		Status:         db.ReportPending,
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return nil, err
	}
	s.log.Info("report filed", "report", rep.ID, "profile", profileID, "reason", reason)
	return rep, nil
}

// List pages through reports, newest first.
func (s *Service) List(ctx context.Context, status string, pageToken *string, limit int) ([]db.Report, *string, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}
	reports, next, err := s.repo.List(ctx, status, pageToken, limit)
	if errors.Is(err, pagination.ErrInvalidToken) {
		return nil, nil, fmt.Errorf("%v: %w", err, svcErr.ErrInvalidInput)
	}
	return reports, next, err
}

// Review applies an admin decision to a pending report.
//
// Behavior:
//   - dismiss → reviewed, no action on the profile.
//   - close → closed.
//   - deactivate → profile hidden from discovery, report reviewed.
//   - delete → profile and its history removed, report closed.
//   - Reviewing a non-pending report is ErrConflict.
func (s *Service) Review(ctx context.Context, reportID uint64, action, notes string) (*db.Report, error) {
	rep, err := s.repo.Get(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("report %d: %w", reportID, svcErr.NotFound(err))
	}
	if rep.Status != db.ReportPending {
		return nil, fmt.Errorf("report %d already %s: %w", reportID, rep.Status, svcErr.ErrConflict)
	}

	switch action {
	case ActionDismiss:
		rep.Status = db.ReportReviewed
	case ActionClose:
		rep.Status = db.ReportClosed
	case ActionDeactivate:
		if err := s.profiles.Update(ctx, rep.ProfileID, map[string]any{"active": false}); err != nil {
			return nil, fmt.Errorf("deactivate profile %d: %w", rep.ProfileID, svcErr.NotFound(err))
		}
		rep.Status = db.ReportReviewed
	case ActionDelete:
		p, err := s.profiles.GetByID(ctx, rep.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", rep.ProfileID, svcErr.NotFound(err))
		}
		if err := s.profiles.Delete(ctx, p); err != nil {
			return nil, err
		}
		rep.Status = db.ReportClosed
	default:
		return nil, fmt.Errorf("review action %q: %w", action, svcErr.ErrInvalidInput)
	}

	now := time.Now().UTC()
	rep.ActionTaken = action
	rep.AdminNotes = notes
	rep.ReviewedAt = &now
	if err := s.repo.Save(ctx, rep); err != nil {
		return nil, err
	}
	s.log.Info("report reviewed", "report", rep.ID, "action", action)
	return rep, nil
}
