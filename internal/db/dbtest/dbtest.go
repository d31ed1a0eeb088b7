// Package dbtest provides isolated SQLite and Redis fixtures for tests.
package dbtest

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/cache"
	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/db"
)

var telegramSeq atomic.Int64

// Open returns a migrated in-memory SQLite database private to the test.
// The pool is limited to one connection so concurrent transactions
// serialize instead of failing with SQLITE_LOCKED.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return open(t, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), 1)
}

// OpenFile returns a migrated SQLite database in a temp file, in WAL mode
// with a pool of several connections. Transactions take the write lock at
// BEGIN and wait for each other, so concurrent callers really contend.
func OpenFile(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "matchbot.db")
	dsn := "file:" + path + "?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate"
	return open(t, dsn, 8)
}

func open(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// Redis starts a miniredis instance and returns a cache bound to it.
func Redis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Client.Close() })
	return rc, mr
}

// AppContext wires a fresh database, a fake Redis and a discarding logger.
func AppContext(t *testing.T) *app.AppContext {
	t.Helper()
	rc, _ := Redis(t)
	return app.New(Open(t), rc, Logger())
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ProfileOpts describes a fixture profile. Zero values get sensible defaults.
type ProfileOpts struct {
	Name      string
	Age       int
	Gender    string
	Seeking   string
	City      string
	Synthetic bool
	Inactive  bool
}

// MustProfile creates a user with a unique Telegram ID and its profile.
func MustProfile(t *testing.T, gdb *gorm.DB, o ProfileOpts) *db.Profile {
	t.Helper()

	tgID := 1000 + telegramSeq.Add(1)
	user := db.User{TelegramID: tgID, Username: fmt.Sprintf("user%d", tgID)}
	require.NoError(t, gdb.Create(&user).Error)

	p := db.Profile{
		UserID:    user.ID,
		Name:      defaultString(o.Name, fmt.Sprintf("User %d", tgID)),
		Age:       defaultInt(o.Age, 30),
		Gender:    defaultString(o.Gender, db.GenderFemale),
		Seeking:   defaultString(o.Seeking, db.SeekingEither),
		City:      defaultString(o.City, "Berlin"),
		Active:    !o.Inactive,
		Synthetic: o.Synthetic,
	}
	require.NoError(t, gdb.Create(&p).Error)

	if o.Synthetic {
		require.NoError(t, gdb.Create(&db.SyntheticProfile{
			ProfileID:    p.ID,
			Active:       true,
			LikeInterval: 600,
		}).Error)
	}
	return &p
}

// MustUser creates a user without a profile.
func MustUser(t *testing.T, gdb *gorm.DB) *db.User {
	t.Helper()
	tgID := 1000 + telegramSeq.Add(1)
	user := db.User{TelegramID: tgID, Username: fmt.Sprintf("user%d", tgID)}
	require.NoError(t, gdb.Create(&user).Error)
	return &user
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
