package premium_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/notify"
	"github.com/oggyb/matchbot/internal/service/premium"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func setupService(t *testing.T) (*premium.Service, *app.AppContext, *fixedClock, *notify.Recorder) {
	t.Helper()
	appCtx := dbtest.AppContext(t)
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rec := &notify.Recorder{}
	return premium.NewService(appCtx, rec, clock), appCtx, clock, rec
}

func TestGrant_StacksAfterCurrentExpiry(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, clock, _ := setupService(t)
	u := dbtest.MustUser(t, appCtx.DB)

	week, _ := premium.PlanByID("week")
	g1, err := svc.Grant(ctx, u.ID, week, "admin")
	require.NoError(t, err)
	assert.True(t, g1.StartsAt.Equal(clock.now))
	assert.True(t, g1.ExpiresAt.Equal(clock.now.AddDate(0, 0, 7)))

	g2, err := svc.Grant(ctx, u.ID, premium.ReferralPlan(1), "referral_reward")
	require.NoError(t, err)
	assert.True(t, g2.StartsAt.Equal(g1.ExpiresAt))
	assert.True(t, g2.ExpiresAt.Equal(g1.ExpiresAt.AddDate(0, 0, 1)))

	status, err := svc.Status(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, g2.ID, status.ID)

	clock.now = clock.now.AddDate(0, 1, 0)
	status, err = svc.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, status, "expired")
}

func TestGrant_RejectsEmptyPlan(t *testing.T) {
	svc, appCtx, _, _ := setupService(t)
	u := dbtest.MustUser(t, appCtx.DB)

	_, err := svc.Grant(context.Background(), u.ID, premium.Plan{ID: "zero"}, "")
	assert.ErrorIs(t, err, svcErr.ErrInvalidInput)
}

func TestPaymentFlow(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, clock, rec := setupService(t)
	u := dbtest.MustUser(t, appCtx.DB)

	_, _, err := svc.CreateInvoice(ctx, u.ID, "lifetime")
	assert.ErrorIs(t, err, svcErr.ErrInvalidInput)

	pay, plan, err := svc.CreateInvoice(ctx, u.ID, "month")
	require.NoError(t, err)
	assert.Equal(t, 599, plan.Stars)
	assert.Equal(t, db.PaymentPending, pay.Status)

	assert.ErrorIs(t, svc.CheckPreCheckout(ctx, pay.Payload, u.ID, 1), svcErr.ErrInvalidInput)
	assert.ErrorIs(t, svc.CheckPreCheckout(ctx, "premium_missing", u.ID, 599), svcErr.ErrNotFound)
	require.NoError(t, svc.CheckPreCheckout(ctx, pay.Payload, u.ID, 599))

	g, err := svc.CompletePayment(ctx, pay.Payload, "tg-charge", "provider-charge")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.True(t, g.ExpiresAt.Equal(clock.now.AddDate(0, 0, 30)))
	assert.Equal(t, 1, rec.Count(u.ID, notify.KindPremium))

	// a redelivered confirmation is a no-op
	again, err := svc.CompletePayment(ctx, pay.Payload, "tg-charge", "provider-charge")
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Equal(t, 1, rec.Count(u.ID, notify.KindPremium))

	assert.ErrorIs(t, svc.CheckPreCheckout(ctx, pay.Payload, u.ID, 599), svcErr.ErrConflict)

	_, err = svc.CompletePayment(ctx, "premium_missing", "x", "y")
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}
