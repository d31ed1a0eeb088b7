package premium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/notify"
	"github.com/oggyb/matchbot/internal/repository"
)

// Plan is a purchasable premium period priced in Telegram Stars.
type Plan struct {
	ID    string
	Title string
	Days  int
	Stars int
}

// Plans are the plans offered for purchase, shortest first.
var Plans = []Plan{
	{ID: "week", Title: "1 week", Days: 7, Stars: 299},
	{ID: "month", Title: "1 month", Days: 30, Stars: 599},
	{ID: "quarter", Title: "3 months", Days: 90, Stars: 799},
	{ID: "year", Title: "1 year", Days: 365, Stars: 2590},
}

// ReferralPlan returns the free plan granted for a referral milestone.
func ReferralPlan(days int) Plan {
	return Plan{ID: "referral", Title: "Referral reward", Days: days}
}

// PlanByID looks up a purchasable plan.
func PlanByID(id string) (Plan, bool) {
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Service issues premium grants and settles Stars payments.
type Service struct {
	appCtx   *app.AppContext
	log      *slog.Logger
	repo     *repository.PremiumRepository
	users    *repository.ProfileRepository
	notifier notify.Notifier
	clock    Clock
}

// NewService creates the premium service. A nil clock means SystemClock.
func NewService(appCtx *app.AppContext, notifier notify.Notifier, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		appCtx:   appCtx,
		log:      appCtx.Logger.With("service", "premium"),
		repo:     repository.NewPremiumRepository(appCtx.DB),
		users:    repository.NewProfileRepository(appCtx.DB),
		notifier: notifier,
		clock:    clock,
	}
}

// Status returns the user's current grant, or nil without premium.
func (s *Service) Status(ctx context.Context, userID uint64) (*db.PremiumGrant, error) {
	return s.repo.ActiveGrant(ctx, userID, s.clock.Now())
}

// Grant issues a plan to a user outside of a payment.
func (s *Service) Grant(ctx context.Context, userID uint64, plan Plan, ref string) (*db.PremiumGrant, error) {
	return s.GrantTx(ctx, s.appCtx.DB, userID, plan, ref)
}

// GrantTx issues a plan inside the caller's transaction. A grant made while
// premium is still running starts when the current one ends.
func (s *Service) GrantTx(ctx context.Context, tx *gorm.DB, userID uint64, plan Plan, ref string) (*db.PremiumGrant, error) {
	if plan.Days <= 0 {
		return nil, fmt.Errorf("plan %q has no duration: %w", plan.ID, svcErr.ErrInvalidInput)
	}
	repo := s.repo.WithTx(tx)
	now := s.clock.Now()

	start := now
	current, err := repo.ActiveGrant(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if current != nil && current.ExpiresAt.After(now) {
		start = current.ExpiresAt
	}

	g := &db.PremiumGrant{
		UserID:      userID,
		Plan:        plan.ID,
		StarsAmount: plan.Stars,
		StartsAt:    start,
		ExpiresAt:   start.AddDate(0, 0, plan.Days),
		Active:      true,
		PaymentRef:  ref,
	}
	if err := repo.CreateGrant(ctx, g); err != nil {
		return nil, err
	}
	s.log.Info("premium granted", "user", userID, "plan", plan.ID, "expires_at", g.ExpiresAt)
	return g, nil
}

// CreateInvoice opens a pending Stars payment for a plan.
func (s *Service) CreateInvoice(ctx context.Context, userID uint64, planID string) (*db.StarPayment, Plan, error) {
	plan, ok := PlanByID(planID)
	if !ok {
		return nil, Plan{}, fmt.Errorf("plan %q: %w", planID, svcErr.ErrInvalidInput)
	}
	p := &db.StarPayment{
		UserID:      userID,
		Plan:        plan.ID,
		StarsAmount: plan.Stars,
		Days:        plan.Days,
		Payload:     "premium_" + uuid.NewString(),
		Status:      db.PaymentPending,
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, Plan{}, err
	}
	return p, plan, nil
}

// CheckPreCheckout verifies a payment before Telegram charges the user.
func (s *Service) CheckPreCheckout(ctx context.Context, payload string, userID uint64, amount int) error {
	p, err := s.repo.PaymentByPayload(ctx, payload)
	if err != nil {
		return fmt.Errorf("payment %q: %w", payload, svcErr.NotFound(err))
	}
	if p.Status != db.PaymentPending {
		return fmt.Errorf("payment %q already %s: %w", payload, p.Status, svcErr.ErrConflict)
	}
	if p.UserID != userID || p.StarsAmount != amount {
		return fmt.Errorf("payment %q does not match checkout: %w", payload, svcErr.ErrInvalidInput)
	}
	return nil
}

// CompletePayment settles a successful payment and grants its plan.
// A redelivered confirmation returns (nil, nil) and grants nothing.
func (s *Service) CompletePayment(ctx context.Context, payload, telegramChargeID, providerChargeID string) (*db.PremiumGrant, error) {
	var grant *db.PremiumGrant
	var payment *db.StarPayment

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		won, err := repo.CompletePayment(ctx, payload, telegramChargeID, providerChargeID)
		if err != nil {
			return err
		}
		if !won {
			if _, err := repo.PaymentByPayload(ctx, payload); err != nil {
				return fmt.Errorf("payment %q: %w", payload, svcErr.NotFound(err))
			}
			return nil
		}
		if payment, err = repo.PaymentByPayload(ctx, payload); err != nil {
			return err
		}
		plan := Plan{ID: payment.Plan, Days: payment.Days, Stars: payment.StarsAmount}
		grant, err = s.GrantTx(ctx, tx, payment.UserID, plan, telegramChargeID)
		return err
	})
	if err != nil || grant == nil {
		return nil, err
	}

	if u, err := s.users.GetUser(ctx, payment.UserID); err == nil {
		msg := notify.Message{
			UserID:     u.ID,
			TelegramID: u.TelegramID,
			Kind:       notify.KindPremium,
			Text:       fmt.Sprintf("Premium is active until %s.", grant.ExpiresAt.Format("2006-01-02")),
		}
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.log.Warn("premium notification failed", "user", u.ID, "err", err)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn("premium notification lookup failed", "user", payment.UserID, "err", err)
	}
	return grant, nil
}
