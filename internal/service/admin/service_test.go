package admin_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/server"
	"github.com/oggyb/matchbot/internal/service/admin"
	"github.com/oggyb/matchbot/internal/service/matching"
	"github.com/oggyb/matchbot/internal/service/moderation"
	"github.com/oggyb/matchbot/internal/service/premium"
	"github.com/oggyb/matchbot/internal/service/referral"
	"github.com/oggyb/matchbot/internal/service/stats"
)

const adminToken = "s3cret-admin-token"

type env struct {
	appCtx   *app.AppContext
	deps     admin.Deps
	client   *admin.Client
	anon     *admin.Client
	matching *matching.Service
}

// setup serves AdminService over an in-memory listener behind the same
// interceptor chain as production.
func setup(t *testing.T) env {
	t.Helper()
	appCtx := dbtest.AppContext(t)

	premiumSvc := premium.NewService(appCtx, nil, nil)
	deps := admin.Deps{
		Moderation: moderation.NewService(appCtx),
		Referrals:  referral.NewService(appCtx, premiumSvc, nil, referral.DefaultOptions()),
		Premium:    premiumSvc,
		Matching:   matching.NewService(appCtx, nil, nil),
		Stats:      stats.NewService(appCtx),
	}

	hash, err := server.HashToken(adminToken)
	require.NoError(t, err)
	cfg := &config.Config{}
	cfg.Admin.TokenHash = hash

	srv := server.NewGRPCServer(cfg, dbtest.Logger(), admin.NewRegistrar(admin.NewService(appCtx, deps)))
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dial := func(opts ...grpc.DialOption) *admin.Client {
		opts = append(opts,
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		cc, err := grpc.NewClient("passthrough:///bufnet", opts...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = cc.Close() })
		return admin.NewClient(cc)
	}

	return env{
		appCtx:   appCtx,
		deps:     deps,
		client:   dial(grpc.WithPerRPCCredentials(admin.BearerToken(adminToken))),
		anon:     dial(),
		matching: deps.Matching,
	}
}

func TestAuthRequired(t *testing.T) {
	e := setup(t)
	_, err := e.anon.Stats(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestReportsListAndReview(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	reporter := dbtest.MustUser(t, e.appCtx.DB)
	target := dbtest.MustProfile(t, e.appCtx.DB, dbtest.ProfileOpts{})
	rep, err := e.deps.Moderation.Report(ctx, reporter.ID, target.ID, "spam")
	require.NoError(t, err)

	list, err := e.client.ListReports(ctx, db.ReportPending, "", 10)
	require.NoError(t, err)
	items := list.GetFields()["reports"].GetListValue().GetValues()
	require.Len(t, items, 1)
	assert.Equal(t, float64(rep.ID), items[0].GetStructValue().GetFields()["id"].GetNumberValue())

	out, err := e.client.ReviewReport(ctx, rep.ID, moderation.ActionDeactivate, "fake photos")
	require.NoError(t, err)
	assert.Equal(t, db.ReportReviewed, out.GetFields()["status"].GetStringValue())

	var p db.Profile
	require.NoError(t, e.appCtx.DB.First(&p, target.ID).Error)
	assert.False(t, p.Active)

	_, err = e.client.ReviewReport(ctx, rep.ID, moderation.ActionClose, "")
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = e.client.ReviewReport(ctx, 9999, moderation.ActionClose, "")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = e.client.ListReports(ctx, "", "garbage", 10)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPremiumGrantAndStatus(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	u := dbtest.MustUser(t, e.appCtx.DB)

	st, err := e.client.PremiumStatus(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, st.GetFields()["active"].GetBoolValue())

	g, err := e.client.GrantPremium(ctx, u.ID, 10, "")
	require.NoError(t, err)
	assert.Equal(t, "admin", g.GetFields()["plan"].GetStringValue())

	st, err = e.client.PremiumStatus(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, st.GetFields()["active"].GetBoolValue())

	_, err = e.client.GrantPremium(ctx, u.ID, 0, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = e.client.PremiumStatus(ctx, 0)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSyntheticControl(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := dbtest.MustProfile(t, e.appCtx.DB, dbtest.ProfileOpts{})

	require.NoError(t, e.client.MarkSynthetic(ctx, p.ID, 900, true))

	var sp db.SyntheticProfile
	require.NoError(t, e.appCtx.DB.Where("profile_id = ?", p.ID).First(&sp).Error)
	assert.True(t, sp.Active)
	assert.Equal(t, 900, sp.LikeInterval)

	require.NoError(t, e.client.SetSyntheticActive(ctx, p.ID, false))
	require.NoError(t, e.appCtx.DB.Where("profile_id = ?", p.ID).First(&sp).Error)
	assert.False(t, sp.Active)

	err := e.client.SetSyntheticActive(ctx, 424242, true)
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = e.client.MarkSynthetic(ctx, p.ID, -5, true)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	liker := dbtest.MustProfile(t, e.appCtx.DB, dbtest.ProfileOpts{Gender: db.GenderMale})
	target := dbtest.MustProfile(t, e.appCtx.DB, dbtest.ProfileOpts{})

	_, err := e.matching.Decide(ctx, liker.UserID, target.ID, db.DecisionLike)
	require.NoError(t, err)

	n, err := e.client.PendingLikeCount(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	snap, err := e.client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(2), snap.GetFields()["real_profiles"].GetNumberValue())
	assert.Equal(t, float64(1), snap.GetFields()["decisions"].GetNumberValue())
}

func TestReferralStats(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	u := dbtest.MustUser(t, e.appCtx.DB)
	code, err := e.deps.Referrals.CodeFor(ctx, u.ID)
	require.NoError(t, err)

	st, err := e.client.ReferralStats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, code.Code, st.GetFields()["code"].GetStringValue())
	assert.Equal(t, float64(0), st.GetFields()["total"].GetNumberValue())
	assert.Equal(t, float64(10), st.GetFields()["threshold"].GetNumberValue())
}
