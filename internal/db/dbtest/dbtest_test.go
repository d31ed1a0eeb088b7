package dbtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/matchbot/internal/db"
)

func TestOpenSilencesSQLLog(t *testing.T) {
	silent := gormlogger.Default.LogMode(gormlogger.Silent)
	assert.Equal(t, silent, Open(t).Logger)
	assert.Equal(t, silent, OpenFile(t).Logger)
}

func TestOpenFilePoolsConnections(t *testing.T) {
	gdb := OpenFile(t)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	assert.Equal(t, 8, sqlDB.Stats().MaxOpenConnections)

	var mode string
	require.NoError(t, gdb.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)

	MustProfile(t, gdb, ProfileOpts{})
	var n int64
	require.NoError(t, gdb.Model(&db.Profile{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
