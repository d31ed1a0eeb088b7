package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/repository"
)

func TestReferralInsert_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewReferralRepository(dbtest.Open(t))

	ok, err := repo.Insert(ctx, 1, 9)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Insert(ctx, 2, 9)
	require.NoError(t, err)
	assert.False(t, ok, "a user can only be credited once")

	ref, err := repo.ByReferred(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ref.ReferrerID)
}

func TestMarkCompleted_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewReferralRepository(dbtest.Open(t))

	_, err := repo.Insert(ctx, 1, 9)
	require.NoError(t, err)

	flipped, err := repo.MarkCompleted(ctx, 9)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = repo.MarkCompleted(ctx, 9)
	require.NoError(t, err)
	assert.False(t, flipped)

	flipped, err = repo.MarkCompleted(ctx, 404)
	require.NoError(t, err)
	assert.False(t, flipped, "no referral row is a no-op")

	n, err := repo.CountCompleted(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestClaimReward_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewReferralRepository(dbtest.Open(t))

	won, err := repo.ClaimReward(ctx, 1)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.ClaimReward(ctx, 1)
	require.NoError(t, err)
	assert.False(t, won)

	has, err := repo.HasReward(ctx, 1)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestReportList_Pagination(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewReportRepository(dbtest.Open(t))

	for i := 0; i < 5; i++ {
		status := db.ReportPending
		if i == 2 {
			status = db.ReportClosed
		}
		require.NoError(t, repo.Create(ctx, &db.Report{ReporterUserID: 1, ProfileID: uint64(10 + i), Reason: "spam", Status: status}))
	}

	page1, next, err := repo.List(ctx, db.ReportPending, nil, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotNil(t, next)
	assert.Equal(t, uint64(5), page1[0].ID, "newest first")

	page2, next, err := repo.List(ctx, db.ReportPending, next, 3)
	require.NoError(t, err)
	assert.Len(t, page2, 1)
	assert.Nil(t, next)

	bad := "!!"
	_, _, err = repo.List(ctx, "", &bad, 3)
	assert.Error(t, err)
}
