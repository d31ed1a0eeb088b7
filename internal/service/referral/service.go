package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/notify"
	"github.com/oggyb/matchbot/internal/repository"
	"github.com/oggyb/matchbot/internal/service/premium"
)

const (
	codeLength   = 8
	codeAttempts = 5
)

// Options tunes the reward rule.
type Options struct {
	Threshold  int // completed referrals needed for the reward
	RewardDays int
	MaxUses    int // informational cap shown with the code
}

// DefaultOptions matches the production reward rule.
func DefaultOptions() Options {
	return Options{Threshold: 10, RewardDays: 1, MaxUses: 10}
}

// Stats summarizes a referrer's progress.
type Stats struct {
	Code          string
	Total         int64
	Completed     int64
	Threshold     int
	RewardClaimed bool
}

// Service is the referral ledger.
type Service struct {
	appCtx   *app.AppContext
	log      *slog.Logger
	repo     *repository.ReferralRepository
	profiles *repository.ProfileRepository
	premium  *premium.Service
	notifier notify.Notifier
	opts     Options
}

func NewService(appCtx *app.AppContext, premiumSvc *premium.Service, notifier notify.Notifier, opts Options) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		appCtx:   appCtx,
		log:      appCtx.Logger.With("service", "referral"),
		repo:     repository.NewReferralRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
		premium:  premiumSvc,
		notifier: notifier,
		opts:     opts,
	}
}

// CodeFor returns the user's invite code, creating one on first use.
func (s *Service) CodeFor(ctx context.Context, userID uint64) (*db.ReferralCode, error) {
	if c, err := s.repo.CodeByUser(ctx, userID); err == nil {
		return c, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var lastErr error
	for i := 0; i < codeAttempts; i++ {
		c := &db.ReferralCode{UserID: userID, Code: newCode(), MaxUses: s.opts.MaxUses}
		if lastErr = s.repo.CreateCode(ctx, c); lastErr == nil {
			return c, nil
		}
		// Lost a race for this user's code, or hit a code collision.
		if existing, err := s.repo.CodeByUser(ctx, userID); err == nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("create referral code: %w", lastErr)
}

// ResolveCode returns the user who owns code.
func (s *Service) ResolveCode(ctx context.Context, code string) (uint64, error) {
	c, err := s.repo.CodeByValue(ctx, normalizeCode(code))
	if err != nil {
		return 0, fmt.Errorf("referral code %q: %w", code, svcErr.NotFound(err))
	}
	return c.UserID, nil
}

// Register credits referred to referrer.
//
// Behavior:
//   - Self-referral is ErrInvalidInput.
//   - A user who already has a referrer is not re-credited: (false, nil).
//   - Synthetic referrers are never credited: (false, nil).
//   - On success the referrer's code use counter is bumped.
func (s *Service) Register(ctx context.Context, referrerID, referredID uint64) (bool, error) {
	if referrerID == referredID {
		return false, fmt.Errorf("self-referral by user %d: %w", referrerID, svcErr.ErrInvalidInput)
	}
	if synthetic, err := s.isSynthetic(ctx, referrerID); err != nil {
		return false, err
	} else if synthetic {
		return false, nil
	}

	var created bool
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		if created, err = repo.Insert(ctx, referrerID, referredID); err != nil || !created {
			return err
		}
		return repo.IncrementUses(ctx, referrerID)
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info("referral registered", "referrer", referrerID, "referred", referredID)
	}
	return created, nil
}

// RegisterByCode resolves code and registers the referral.
func (s *Service) RegisterByCode(ctx context.Context, code string, referredID uint64) (bool, error) {
	referrerID, err := s.ResolveCode(ctx, code)
	if err != nil {
		return false, err
	}
	return s.Register(ctx, referrerID, referredID)
}

// MarkProfileCreated completes the user's referral, if any, and issues the
// referrer's reward the first time the completed count reaches the threshold.
//
// Behavior:
//   - No referral row, or an already completed one → no-op.
//   - Synthetic profiles never complete a referral.
//   - The reward claim row is inserted with DO NOTHING; only the transaction
//     whose insert lands creates the grant and flags the referrer's rows.
func (s *Service) MarkProfileCreated(ctx context.Context, userID uint64) error {
	if synthetic, err := s.isSynthetic(ctx, userID); err != nil {
		return err
	} else if synthetic {
		return nil
	}

	var rewarded uint64
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		flipped, err := repo.MarkCompleted(ctx, userID)
		if err != nil || !flipped {
			return err
		}
		ref, err := repo.ByReferred(ctx, userID)
		if err != nil {
			return err
		}
		completed, err := repo.CountCompleted(ctx, ref.ReferrerID)
		if err != nil {
			return err
		}
		if completed < int64(s.opts.Threshold) {
			return nil
		}

		won, err := repo.ClaimReward(ctx, ref.ReferrerID)
		if err != nil || !won {
			return err
		}
		grant, err := s.premium.GrantTx(ctx, tx, ref.ReferrerID, premium.ReferralPlan(s.opts.RewardDays), "referral_reward")
		if err != nil {
			return err
		}
		if err := repo.AttachGrant(ctx, ref.ReferrerID, grant.ID); err != nil {
			return err
		}
		if err := repo.MarkRewardClaimed(ctx, ref.ReferrerID); err != nil {
			return err
		}
		rewarded = ref.ReferrerID
		return nil
	})
	if err != nil {
		return err
	}

	if rewarded != 0 {
		s.log.Info("referral reward issued", "referrer", rewarded)
		s.notifyReward(ctx, rewarded)
	}
	return nil
}

// Stats reports a referrer's progress towards the reward.
func (s *Service) Stats(ctx context.Context, userID uint64) (*Stats, error) {
	st := &Stats{Threshold: s.opts.Threshold}
	if c, err := s.repo.CodeByUser(ctx, userID); err == nil {
		st.Code = c.Code
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var err error
	if st.Total, err = s.repo.CountTotal(ctx, userID); err != nil {
		return nil, err
	}
	if st.Completed, err = s.repo.CountCompleted(ctx, userID); err != nil {
		return nil, err
	}
	if st.RewardClaimed, err = s.repo.HasReward(ctx, userID); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) notifyReward(ctx context.Context, userID uint64) {
	u, err := s.profiles.GetUser(ctx, userID)
	if err != nil {
		s.log.Warn("reward notification lookup failed", "user", userID, "err", err)
		return
	}
	err = s.notifier.Notify(ctx, notify.Message{
		UserID:     u.ID,
		TelegramID: u.TelegramID,
		Kind:       notify.KindReferralReward,
		Text:       notify.ReferralReward(s.opts.RewardDays),
	})
	if err != nil {
		s.log.Warn("reward notification failed", "user", userID, "err", err)
	}
}

func (s *Service) isSynthetic(ctx context.Context, userID uint64) (bool, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Synthetic, nil
}

// newCode derives an 8 character upper-case code from a random UUID.
func newCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:codeLength])
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
