package profile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/service/profile"
)

type completions struct{ users []uint64 }

func (c *completions) MarkProfileCreated(_ context.Context, userID uint64) error {
	c.users = append(c.users, userID)
	return nil
}

func validInput() profile.Input {
	return profile.Input{
		Name:      "Anna",
		Age:       27,
		Gender:    db.GenderFemale,
		Seeking:   db.SeekingMale,
		City:      " Vienna ",
		Bio:       "coffee and mountains",
		Interests: []string{"travel", "music", "travel"},
		Photos:    []db.Photo{{FileID: "f1"}, {FileID: "f2"}},
	}
}

func setupService(t *testing.T) (*profile.Service, *app.AppContext, *completions) {
	t.Helper()
	appCtx := dbtest.AppContext(t)
	rec := &completions{}
	return profile.NewService(appCtx, rec), appCtx, rec
}

func TestCreate_StoresProfileAndReportsCompletion(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := setupService(t)

	u, created, err := svc.EnsureUser(ctx, 777, "anna")
	require.NoError(t, err)
	assert.True(t, created)

	p, err := svc.Create(ctx, u.ID, validInput())
	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.Equal(t, "Vienna", p.City)

	got, err := svc.GetByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, got.Photos, 2)
	assert.Len(t, got.Interests, 2, "duplicates collapse")
	assert.Equal(t, []uint64{u.ID}, rec.users)

	_, err = svc.Create(ctx, u.ID, validInput())
	assert.ErrorIs(t, err, svcErr.ErrConflict)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, rec := setupService(t)
	u := dbtest.MustUser(t, appCtx.DB)

	cases := map[string]func(*profile.Input){
		"underage":       func(in *profile.Input) { in.Age = 17 },
		"short name":     func(in *profile.Input) { in.Name = "A" },
		"bad gender":     func(in *profile.Input) { in.Gender = "robot" },
		"bad seeking":    func(in *profile.Input) { in.Seeking = "anyone" },
		"no city":        func(in *profile.Input) { in.City = "  " },
		"too many photo": func(in *profile.Input) { in.Photos = make([]db.Photo, 4) },
		"bad interest":   func(in *profile.Input) { in.Interests = []string{"knitting"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Create(ctx, u.ID, in)
			assert.ErrorIs(t, err, svcErr.ErrInvalidInput)
		})
	}
	assert.Empty(t, rec.users)

	_, err := svc.Create(ctx, 9999, validInput())
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestUpdate_Fields(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, _ := setupService(t)
	p := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{})

	require.NoError(t, svc.Update(ctx, p.ID, "age", "41"))
	require.NoError(t, svc.Update(ctx, p.ID, "city", "Graz"))
	assert.ErrorIs(t, svc.Update(ctx, p.ID, "age", "forty"), svcErr.ErrInvalidInput)
	assert.ErrorIs(t, svc.Update(ctx, p.ID, "age", "12"), svcErr.ErrInvalidInput)
	assert.ErrorIs(t, svc.Update(ctx, p.ID, "synthetic", "true"), svcErr.ErrInvalidInput)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 41, got.Age)
	assert.Equal(t, "Graz", got.City)

	require.NoError(t, svc.SetActive(ctx, p.ID, false))
	got, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestPhotosAndInterests(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, _ := setupService(t)
	p := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{})

	for i := 0; i < db.MaxPhotos; i++ {
		require.NoError(t, svc.AddPhoto(ctx, p.ID, "file", ""))
	}
	assert.ErrorIs(t, svc.AddPhoto(ctx, p.ID, "file", ""), svcErr.ErrInvalidInput)
	assert.ErrorIs(t, svc.AddPhoto(ctx, p.ID, "", ""), svcErr.ErrInvalidInput)

	require.NoError(t, svc.ReplacePhotos(ctx, p.ID, []db.Photo{{FileID: "only"}}))
	require.NoError(t, svc.SetInterests(ctx, p.ID, []string{"art", "games"}))
	assert.ErrorIs(t, svc.SetInterests(ctx, p.ID, []string{"nope"}), svcErr.ErrInvalidInput)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Photos, 1)
	assert.Equal(t, "only", got.Photos[0].FileID)
	assert.Len(t, got.Interests, 2)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, _ := setupService(t)
	p := dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{})

	require.NoError(t, svc.Delete(ctx, p.UserID))
	_, err := svc.GetByUser(ctx, p.UserID)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, p.UserID), svcErr.ErrNotFound)
}
