package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/repository"
)

// AgeWindow is how far a candidate's age may be from the viewer's.
const AgeWindow = 5

// Service picks the next profile to show a viewer.
type Service struct {
	appCtx   *app.AppContext
	log      *slog.Logger
	profiles *repository.ProfileRepository
	views    *repository.ViewRepository

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewService creates the discovery service. rnd may be nil.
func NewService(appCtx *app.AppContext, rnd *rand.Rand) *Service {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		appCtx:   appCtx,
		log:      appCtx.Logger.With("service", "discovery"),
		profiles: repository.NewProfileRepository(appCtx.DB),
		views:    repository.NewViewRepository(appCtx.DB),
		rnd:      rnd,
	}
}

// TargetGenders lists the genders a viewer with this seeking preference wants to see.
func TargetGenders(seeking string) []string {
	switch seeking {
	case db.SeekingMale:
		return []string{db.GenderMale}
	case db.SeekingFemale:
		return []string{db.GenderFemale}
	default:
		return []string{db.GenderMale, db.GenderFemale, db.GenderOther}
	}
}

// AcceptedSeeking lists the seeking preferences a candidate must have to be
// interested in a viewer of this gender.
func AcceptedSeeking(gender string) []string {
	switch gender {
	case db.GenderMale:
		return []string{db.SeekingMale, db.SeekingEither}
	case db.GenderFemale:
		return []string{db.SeekingFemale, db.SeekingEither}
	default:
		return []string{db.SeekingEither}
	}
}

// NextCandidate returns a random compatible profile the viewer has not seen
// or decided on, or nil when the pool is exhausted.
//
// Behavior:
//   - First pass: same city (case-insensitive) and age within ±5 (never below 18).
//   - Second pass: any city, same age window.
//   - Synthetic and inactive profiles are never candidates.
//   - The caller records the view with RecordView once it is shown.
//
// Example:
//
//	p, err := svc.NextCandidate(ctx, 42) // p == nil → "nothing to show"
func (s *Service) NextCandidate(ctx context.Context, viewerUserID uint64) (*db.Profile, error) {
	s.log.Debug("NextCandidate called", "viewer", viewerUserID)

	viewer, err := s.profiles.GetByUserID(ctx, viewerUserID)
	if err != nil {
		return nil, fmt.Errorf("viewer %d profile: %w", viewerUserID, svcErr.NotFound(err))
	}

	filter := repository.CandidateFilter{
		ViewerUserID: viewerUserID,
		Genders:      TargetGenders(viewer.Seeking),
		Seeking:      AcceptedSeeking(viewer.Gender),
		MinAge:       max(db.MinProfileAge, viewer.Age-AgeWindow),
		MaxAge:       viewer.Age + AgeWindow,
		City:         viewer.City,
	}

	for pass := 1; pass <= 2; pass++ {
		if pass == 2 {
			filter.City = ""
		}
		pool, err := s.profiles.CountCandidates(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("candidate pass %d: %w", pass, err)
		}
		if pool == 0 {
			continue
		}

		id, err := s.pickOne(ctx, filter, pool)
		if err != nil {
			return nil, fmt.Errorf("candidate pass %d: %w", pass, err)
		}
		if id == 0 {
			continue
		}
		p, err := s.profiles.GetByID(ctx, id)
		if err != nil {
			return nil, svcErr.NotFound(err)
		}
		s.log.Debug("NextCandidate result", "viewer", viewerUserID, "candidate", p.ID, "pass", pass, "pool", pool)
		return p, nil
	}

	return nil, nil
}

// RecordView marks a profile as shown. Repeats are no-ops.
func (s *Service) RecordView(ctx context.Context, viewerUserID, profileID uint64) error {
	return s.views.Record(ctx, viewerUserID, profileID)
}

// ResetViews lets an exhausted viewer browse skipped profiles again.
// Decided profiles stay excluded.
func (s *Service) ResetViews(ctx context.Context, viewerUserID uint64) error {
	return s.views.Reset(ctx, viewerUserID)
}

// pickOne draws a uniformly random row of the pool. If the pool shrank
// since it was counted, the first remaining row is used; 0 means it emptied.
func (s *Service) pickOne(ctx context.Context, f repository.CandidateFilter, pool int64) (uint64, error) {
	s.mu.Lock()
	f.Offset = int(s.rnd.Int63n(pool))
	s.mu.Unlock()
	f.Limit = 1

	ids, err := s.profiles.CandidateIDs(ctx, f)
	if err != nil || len(ids) > 0 {
		return firstID(ids), err
	}
	f.Offset = 0
	ids, err = s.profiles.CandidateIDs(ctx, f)
	return firstID(ids), err
}

func firstID(ids []uint64) uint64 {
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}
