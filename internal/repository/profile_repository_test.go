package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/repository"
)

func TestEnsureUser_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(dbtest.Open(t))

	u1, created, err := repo.EnsureUser(ctx, 555, "alice")
	require.NoError(t, err)
	assert.True(t, created)

	u2, created, err := repo.EnsureUser(ctx, 555, "alice_new")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u1.ID, u2.ID)

	got, err := repo.GetUser(ctx, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", got.Username)
}

func TestAddPhoto_ThreeSlots(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.Open(t)
	repo := repository.NewProfileRepository(gdb)
	p := dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{})

	for i := 0; i < db.MaxPhotos; i++ {
		require.NoError(t, repo.AddPhoto(ctx, p.ID, &db.Photo{FileID: "f"}))
	}
	assert.ErrorIs(t, repo.AddPhoto(ctx, p.ID, &db.Photo{FileID: "f4"}), repository.ErrPhotoSlotsFull)

	loaded, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Photos, 3)
	assert.Equal(t, 2, loaded.Photos[2].Position)
}

func TestCandidateIDs_Filters(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.Open(t)
	repo := repository.NewProfileRepository(gdb)
	views := repository.NewViewRepository(gdb)
	decisions := repository.NewDecisionRepository(gdb)

	viewer := dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderMale, Seeking: db.SeekingFemale, City: "Oslo"})
	ok := dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderFemale, City: " oslo "})
	seen := dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderFemale, City: "Oslo"})
	decided := dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderFemale, City: "Oslo"})
	dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderFemale, City: "Oslo", Synthetic: true})
	dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderFemale, City: "Oslo", Inactive: true})
	dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderFemale, City: "Oslo", Age: 50})
	elsewhere := dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderFemale, City: "Rome"})

	require.NoError(t, views.Record(ctx, viewer.UserID, seen.ID))
	require.NoError(t, views.Record(ctx, viewer.UserID, seen.ID), "duplicate view is a no-op")
	require.NoError(t, decisions.Upsert(ctx, viewer.UserID, decided.ID, db.DecisionDislike, false))

	f := repository.CandidateFilter{
		ViewerUserID: viewer.UserID,
		Genders:      []string{db.GenderFemale},
		Seeking:      []string{db.SeekingMale, db.SeekingEither},
		MinAge:       25,
		MaxAge:       35,
		City:         "OSLO",
	}
	ids, err := repo.CandidateIDs(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, []uint64{ok.ID}, ids)

	f.City = ""
	ids, err = repo.CandidateIDs(ctx, f)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{ok.ID, elsewhere.ID}, ids)
}

func TestCandidateIDs_Window(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.Open(t)
	repo := repository.NewProfileRepository(gdb)

	viewer := dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderMale, Seeking: db.SeekingFemale})
	var want []uint64
	for i := 0; i < 5; i++ {
		want = append(want, dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Gender: db.GenderFemale}).ID)
	}

	f := repository.CandidateFilter{
		ViewerUserID: viewer.UserID,
		Genders:      []string{db.GenderFemale},
		Seeking:      []string{db.SeekingMale, db.SeekingEither},
		MinAge:       18,
		MaxAge:       99,
	}
	n, err := repo.CountCandidates(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	f.Offset, f.Limit = 4, 1
	ids, err := repo.CandidateIDs(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, []uint64{want[4]}, ids)

	f.Offset, f.Limit = 1, 2
	ids, err = repo.CandidateIDs(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, want[1:3], ids)
}

func TestDelete_CascadesBothDirections(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.Open(t)
	repo := repository.NewProfileRepository(gdb)
	decisions := repository.NewDecisionRepository(gdb)

	gone := dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{Synthetic: true})
	other := dbtest.MustProfile(t, gdb, dbtest.ProfileOpts{})
	require.NoError(t, repo.ReplaceInterests(ctx, gone.ID, []string{"music", "travel"}))
	require.NoError(t, repo.AddPhoto(ctx, gone.ID, &db.Photo{FileID: "x"}))
	views := repository.NewViewRepository(gdb)
	require.NoError(t, views.Record(ctx, other.UserID, gone.ID))
	require.NoError(t, views.Record(ctx, gone.UserID, other.ID))
	require.NoError(t, decisions.Upsert(ctx, other.UserID, gone.ID, db.DecisionLike, false))
	require.NoError(t, decisions.Upsert(ctx, gone.UserID, other.ID, db.DecisionLike, false))
	require.NoError(t, gdb.Create(&db.Report{ReporterUserID: other.UserID, ProfileID: gone.ID, Reason: "spam", Status: db.ReportPending}).Error)

	require.NoError(t, repo.Delete(ctx, gone))

	_, err := repo.GetByID(ctx, gone.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	for _, m := range []any{&db.ProfileInterest{}, &db.Photo{}, &db.View{}, &db.Decision{}, &db.SyntheticProfile{}} {
		var n int64
		require.NoError(t, gdb.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T rows left behind", m)
	}

	var reports int64
	require.NoError(t, gdb.Model(&db.Report{}).Count(&reports).Error)
	assert.Equal(t, int64(1), reports, "reports are kept")
}
