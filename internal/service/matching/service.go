package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/notify"
	"github.com/oggyb/matchbot/internal/repository"
)

// Response is the viewer's answer to a pending like.
type Response string

const (
	Reciprocate Response = "like"
	Decline     Response = "decline"
	ReportLiker Response = "report"
)

// Result tells the caller what a decision did.
type Result struct {
	Applied bool
	Mutual  bool
}

// PendingLike is an incoming like waiting for the viewer's answer.
type PendingLike = repository.PendingLiker

// Reporter files moderation reports.
type Reporter interface {
	Report(ctx context.Context, reporterUserID, profileID uint64, reason string) (*db.Report, error)
}

// Service records decisions, detects mutual likes and serves the
// pending-likes queue.
type Service struct {
	appCtx    *app.AppContext
	log       *slog.Logger
	decisions *repository.DecisionRepository
	profiles  *repository.ProfileRepository
	notifier  notify.Notifier
	reporter  Reporter
}

// NewService creates the matching service. reporter may be nil, in which
// case report responses are rejected.
func NewService(appCtx *app.AppContext, notifier notify.Notifier, reporter Reporter) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		appCtx:    appCtx,
		log:       appCtx.Logger.With("service", "matching"),
		decisions: repository.NewDecisionRepository(appCtx.DB),
		profiles:  repository.NewProfileRepository(appCtx.DB),
		notifier:  notifier,
		reporter:  reporter,
	}
}

// Decide records actor's like or dislike on a target profile.
//
// Behavior:
//   - Runs in one transaction: reverse-like check, upsert, reverse-row update.
//   - A like answering an existing like marks both rows mutual.
//   - A dislike replacing a mutual like clears mutual on both rows.
//   - A new match notifies both sides once. A new one-way like sends the
//     target an aggregate count, never the liker's identity. Dislikes are silent.
//   - Synthetic users are never notified.
//
// Example:
//
//	res, err := svc.Decide(ctx, 1, 2, db.DecisionLike) // res.Mutual → "It's a match"
func (s *Service) Decide(ctx context.Context, actorUserID, targetProfileID uint64, decisionType string) (Result, error) {
	s.log.Debug("Decide called", "actor", actorUserID, "target", targetProfileID, "type", decisionType)

	if decisionType != db.DecisionLike && decisionType != db.DecisionDislike {
		return Result{}, fmt.Errorf("decision type %q: %w", decisionType, svcErr.ErrInvalidInput)
	}
	actor, err := s.profiles.GetByUserID(ctx, actorUserID)
	if err != nil {
		return Result{}, fmt.Errorf("actor %d profile: %w", actorUserID, svcErr.NotFound(err))
	}
	target, err := s.profiles.GetByID(ctx, targetProfileID)
	if err != nil {
		return Result{}, fmt.Errorf("target profile %d: %w", targetProfileID, svcErr.NotFound(err))
	}
	if target.UserID == actorUserID {
		return Result{}, fmt.Errorf("cannot decide on own profile: %w", svcErr.ErrInvalidInput)
	}

	var mutual, wasMutual, wasLike bool
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.decisions.WithTx(tx)

		reverseLike, err := repo.HasLiked(ctx, target.UserID, actor.ID)
		if err != nil {
			return err
		}
		prev, err := repo.Get(ctx, actorUserID, target.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if prev != nil {
			wasMutual = prev.Mutual
			wasLike = prev.Type == db.DecisionLike
		}

		mutual = decisionType == db.DecisionLike && reverseLike
		if err := repo.Upsert(ctx, actorUserID, target.ID, decisionType, mutual); err != nil {
			return err
		}
		if mutual != wasMutual && reverseLike {
			return repo.SetMutual(ctx, target.UserID, actor.ID, mutual)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("record decision: %w", err)
	}

	s.invalidate(ctx, target.ID, actor.ID)

	switch {
	case mutual && !wasMutual:
		s.notifyMatch(ctx, actor, target)
	case decisionType == db.DecisionLike && !mutual && !wasLike:
		s.notifyLikeCount(ctx, target)
	}

	s.log.Debug("Decide result", "actor", actorUserID, "target", targetProfileID, "mutual", mutual)
	return Result{Applied: true, Mutual: mutual}, nil
}

// PendingLikes lists real users who liked the profile and still await an
// answer, oldest first.
//
// Behavior:
//   - Likes from synthetic profiles are resolved first as an implicit
//     dislike by the viewer, so they never surface and never come back.
//   - Likers the viewer already decided on are excluded.
func (s *Service) PendingLikes(ctx context.Context, profileID uint64) ([]PendingLike, error) {
	s.log.Debug("PendingLikes called", "profile", profileID)

	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("profile %d: %w", profileID, svcErr.NotFound(err))
	}

	synthetic, err := s.decisions.ListSyntheticLikers(ctx, p.ID, p.UserID)
	if err != nil {
		return nil, err
	}
	for _, sl := range synthetic {
		if _, err := s.decisions.InsertIfAbsent(ctx, p.UserID, sl.ProfileID, db.DecisionDislike); err != nil {
			s.log.Warn("resolve synthetic like failed", "profile", p.ID, "synthetic", sl.ProfileID, "err", err)
		}
	}
	if len(synthetic) > 0 {
		s.invalidate(ctx, p.ID)
	}

	return s.decisions.ListPendingLikers(ctx, p.ID, p.UserID)
}

// CountPendingLikes returns how many likes on the profile await an answer,
// synthetic ones included. Cache-first:
//  1. Reads likes:pending:<profile> from Redis.
//  2. On miss or Redis error, counts in the DB.
//  3. Stores the DB count with a 1h TTL.
func (s *Service) CountPendingLikes(ctx context.Context, profileID uint64) (int64, error) {
	if s.appCtx.RedisCache != nil {
		n, ok, err := s.appCtx.RedisCache.GetPendingLikes(ctx, profileID)
		if err != nil {
			s.log.Warn("pending count cache read failed", "profile", profileID, "err", err)
		} else if ok {
			return n, nil
		}
	}

	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return 0, fmt.Errorf("profile %d: %w", profileID, svcErr.NotFound(err))
	}
	n, err := s.decisions.CountPendingLikers(ctx, p.ID, p.UserID)
	if err != nil {
		return 0, err
	}

	if s.appCtx.RedisCache != nil {
		if err := s.appCtx.RedisCache.SetPendingLikes(ctx, profileID, n); err != nil {
			s.log.Warn("pending count cache write failed", "profile", profileID, "err", err)
		}
	}
	return n, nil
}

// Respond applies the viewer's answer to a pending like from likerUserID.
//
// Behavior:
//   - like → recorded through Decide; becomes a mutual match.
//   - decline → the liker's decision row is deleted so it never resurfaces.
//   - report → a moderation report is filed; the like stays pending.
//   - No pending like from that user → ErrNotFound. A like that is already
//     mutual, or whose liker the viewer already decided on, is not pending.
func (s *Service) Respond(ctx context.Context, viewerUserID, likerUserID uint64, resp Response, reason string) (Result, error) {
	s.log.Debug("Respond called", "viewer", viewerUserID, "liker", likerUserID, "response", resp)

	viewer, err := s.profiles.GetByUserID(ctx, viewerUserID)
	if err != nil {
		return Result{}, fmt.Errorf("viewer %d profile: %w", viewerUserID, svcErr.NotFound(err))
	}
	liker, err := s.profiles.GetByUserID(ctx, likerUserID)
	if err != nil {
		return Result{}, fmt.Errorf("liker %d profile: %w", likerUserID, svcErr.NotFound(err))
	}
	pending, err := s.decisions.IsPending(ctx, likerUserID, viewer.ID, viewerUserID)
	if err != nil {
		return Result{}, fmt.Errorf("check pending like: %w", err)
	}
	if !pending {
		return Result{}, fmt.Errorf("no pending like from %d: %w", likerUserID, svcErr.ErrNotFound)
	}

	switch resp {
	case Reciprocate:
		return s.Decide(ctx, viewerUserID, liker.ID, db.DecisionLike)

	case Decline:
		if _, err := s.decisions.Delete(ctx, likerUserID, viewer.ID); err != nil {
			return Result{}, err
		}
		s.invalidate(ctx, viewer.ID)
		return Result{Applied: true}, nil

	case ReportLiker:
		if s.reporter == nil {
			return Result{}, fmt.Errorf("reporting disabled: %w", svcErr.ErrInvalidInput)
		}
		if _, err := s.reporter.Report(ctx, viewerUserID, liker.ID, reason); err != nil {
			return Result{}, err
		}
		return Result{Applied: true}, nil

	default:
		return Result{}, fmt.Errorf("response %q: %w", resp, svcErr.ErrInvalidInput)
	}
}

// Matches lists the user's mutual matches, newest first.
func (s *Service) Matches(ctx context.Context, userID uint64) ([]repository.Match, error) {
	return s.decisions.ListMatches(ctx, userID)
}

func (s *Service) invalidate(ctx context.Context, profileIDs ...uint64) {
	if s.appCtx.RedisCache == nil {
		return
	}
	if err := s.appCtx.RedisCache.InvalidatePendingLikes(ctx, profileIDs...); err != nil {
		s.log.Warn("pending count cache invalidation failed", "profiles", profileIDs, "err", err)
	}
}

func (s *Service) notifyMatch(ctx context.Context, actor, target *db.Profile) {
	actorUser, err := s.profiles.GetUser(ctx, actor.UserID)
	if err != nil {
		s.log.Warn("match notification lookup failed", "user", actor.UserID, "err", err)
		return
	}
	targetUser, err := s.profiles.GetUser(ctx, target.UserID)
	if err != nil {
		s.log.Warn("match notification lookup failed", "user", target.UserID, "err", err)
		return
	}

	if !actor.Synthetic {
		s.send(ctx, notify.Message{
			UserID: actorUser.ID, TelegramID: actorUser.TelegramID, Kind: notify.KindMatch,
			Text: notify.Match(target.Name), ContactUsername: targetUser.Username,
		})
	}
	if !target.Synthetic {
		s.send(ctx, notify.Message{
			UserID: targetUser.ID, TelegramID: targetUser.TelegramID, Kind: notify.KindMatch,
			Text: notify.Match(actor.Name), ContactUsername: actorUser.Username,
		})
	}
}

func (s *Service) notifyLikeCount(ctx context.Context, target *db.Profile) {
	if target.Synthetic {
		return
	}
	u, err := s.profiles.GetUser(ctx, target.UserID)
	if err != nil {
		s.log.Warn("like notification lookup failed", "user", target.UserID, "err", err)
		return
	}
	n, err := s.CountPendingLikes(ctx, target.ID)
	if err != nil {
		s.log.Warn("like notification count failed", "profile", target.ID, "err", err)
		return
	}
	if n == 0 {
		return
	}
	s.send(ctx, notify.Message{
		UserID: u.ID, TelegramID: u.TelegramID, Kind: notify.KindLikeCount, Text: notify.LikeCount(n),
	})
}

func (s *Service) send(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Warn("notification failed", "user", msg.UserID, "kind", msg.Kind, "err", err)
	}
}
