package stats_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/service/matching"
	"github.com/oggyb/matchbot/internal/service/moderation"
	"github.com/oggyb/matchbot/internal/service/stats"
)

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	appCtx := dbtest.AppContext(t)
	mod := moderation.NewService(appCtx)
	match := matching.NewService(appCtx, nil, mod)

	a := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{})
	b := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{})
	dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Synthetic: true})

	_, err := match.Decide(ctx, a.UserID, b.ID, db.DecisionLike)
	require.NoError(t, err)
	_, err = match.Decide(ctx, b.UserID, a.ID, db.DecisionLike)
	require.NoError(t, err)
	_, err = mod.Report(ctx, a.UserID, b.ID, "spam")
	require.NoError(t, err)

	snap, err := stats.NewService(appCtx).Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Snapshot{
		RealProfiles: 2, SyntheticProfiles: 1, Decisions: 2, Matches: 1, PendingReports: 1,
	}, *snap)
}
