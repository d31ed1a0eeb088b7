package discovery_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/repository"
	"github.com/oggyb/matchbot/internal/service/discovery"
)

func setupService(t *testing.T) (*discovery.Service, *app.AppContext) {
	t.Helper()
	appCtx := dbtest.AppContext(t)
	return discovery.NewService(appCtx, rand.New(rand.NewSource(1))), appCtx
}

// Viewer V (30, "X", seeking female) and candidate C (28, "X", female,
// seeking either): C is returned. Once V has viewed C, nothing is left.
func TestNextCandidate_Scenario(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	v := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 30, City: "X", Gender: db.GenderMale, Seeking: db.SeekingFemale})
	c := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 28, City: "X", Gender: db.GenderFemale, Seeking: db.SeekingEither})

	got, err := svc.NextCandidate(ctx, v.UserID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)

	require.NoError(t, svc.RecordView(ctx, v.UserID, c.ID))
	require.NoError(t, svc.RecordView(ctx, v.UserID, c.ID), "duplicate view is a no-op")

	got, err = svc.NextCandidate(ctx, v.UserID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, svc.ResetViews(ctx, v.UserID))
	got, err = svc.NextCandidate(ctx, v.UserID)
	require.NoError(t, err)
	require.NotNil(t, got, "reset brings skipped profiles back")
}

// Every candidate is reachable, including the newest ones.
func TestNextCandidate_DrawsFromWholePool(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	v := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Gender: db.GenderMale, Seeking: db.SeekingFemale})
	var newest uint64
	for i := 0; i < 8; i++ {
		newest = dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Gender: db.GenderFemale}).ID
	}

	seen := map[uint64]bool{}
	for i := 0; i < 200; i++ {
		got, err := svc.NextCandidate(ctx, v.UserID)
		require.NoError(t, err)
		require.NotNil(t, got)
		seen[got.ID] = true
	}
	assert.Len(t, seen, 8)
	assert.True(t, seen[newest])
}

// Same-city candidates win; other cities are the fallback.
func TestNextCandidate_CityFirstThenAnywhere(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	v := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{City: "Lisbon", Gender: db.GenderFemale, Seeking: db.SeekingMale})
	local := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{City: "lisbon", Gender: db.GenderMale, Seeking: db.SeekingFemale})
	remote := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{City: "Porto", Gender: db.GenderMale, Seeking: db.SeekingFemale})

	for i := 0; i < 5; i++ {
		got, err := svc.NextCandidate(ctx, v.UserID)
		require.NoError(t, err)
		assert.Equal(t, local.ID, got.ID)
	}

	require.NoError(t, svc.RecordView(ctx, v.UserID, local.ID))
	got, err := svc.NextCandidate(ctx, v.UserID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, remote.ID, got.ID)
}

// Discovery never returns own, viewed, decided, synthetic, inactive,
// out-of-window or incompatible profiles.
func TestNextCandidate_Exclusions(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)
	decisions := repository.NewDecisionRepository(appCtx.DB)

	v := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 20, Gender: db.GenderMale, Seeking: db.SeekingEither})

	viewed := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 20})
	decided := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 20})
	dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 20, Synthetic: true})
	dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 20, Inactive: true})
	dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 26})
	dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 20, Seeking: db.SeekingFemale}) // not into men
	dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Age: 20, Gender: db.GenderOther, Seeking: db.SeekingMale})

	require.NoError(t, svc.RecordView(ctx, v.UserID, viewed.ID))
	require.NoError(t, decisions.Upsert(ctx, v.UserID, decided.ID, db.DecisionLike, false))

	seen := map[uint64]bool{}
	for i := 0; i < 20; i++ {
		got, err := svc.NextCandidate(ctx, v.UserID)
		require.NoError(t, err)
		if got == nil {
			break
		}
		seen[got.ID] = true
		require.NoError(t, svc.RecordView(ctx, v.UserID, got.ID))
	}

	assert.Len(t, seen, 1, "only the gender-other profile seeking men qualifies")
	assert.False(t, seen[v.ID])
	assert.False(t, seen[viewed.ID])
	assert.False(t, seen[decided.ID])
}

func TestNextCandidate_NoProfile(t *testing.T) {
	svc, appCtx := setupService(t)
	u := dbtest.MustUser(t, appCtx.DB)

	_, err := svc.NextCandidate(context.Background(), u.ID)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestCompatibilityTables(t *testing.T) {
	assert.Equal(t, []string{db.GenderMale}, discovery.TargetGenders(db.SeekingMale))
	assert.Equal(t, []string{db.GenderFemale}, discovery.TargetGenders(db.SeekingFemale))
	assert.Len(t, discovery.TargetGenders(db.SeekingEither), 3)

	assert.Equal(t, []string{db.SeekingMale, db.SeekingEither}, discovery.AcceptedSeeking(db.GenderMale))
	assert.Equal(t, []string{db.SeekingFemale, db.SeekingEither}, discovery.AcceptedSeeking(db.GenderFemale))
	assert.Equal(t, []string{db.SeekingEither}, discovery.AcceptedSeeking(db.GenderOther))
}
