package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db/dbtest"
)

func TestClose(t *testing.T) {
	appCtx := dbtest.AppContext(t)
	require.NoError(t, appCtx.Close())

	assert.Error(t, appCtx.RedisCache.Ping(context.Background()))
	sqlDB, err := appCtx.DB.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}

func TestClose_WithoutRedis(t *testing.T) {
	appCtx := app.New(dbtest.Open(t), nil, dbtest.Logger())
	assert.NoError(t, appCtx.Close())
}
