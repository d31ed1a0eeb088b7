package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/service/stats"
)

type recordingUpdates struct {
	mu   sync.Mutex
	seen []tgbotapi.Update
}

func (r *recordingUpdates) HandleUpdate(_ context.Context, upd tgbotapi.Update) {
	r.mu.Lock()
	r.seen = append(r.seen, upd)
	r.mu.Unlock()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	rc, mr := dbtest.Redis(t)
	appCtx := app.New(dbtest.Open(t), rc, dbtest.Logger())
	h := NewHTTPHandler(HTTPDeps{AppCtx: appCtx, Stats: stats.NewService(appCtx)})

	w := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)

	mr.Close()
	w = do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	appCtx := dbtest.AppContext(t)
	dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{})
	dbtest.MustProfile(t, appCtx.DB, dbtest.ProfileOpts{Synthetic: true})
	h := NewHTTPHandler(HTTPDeps{AppCtx: appCtx, Stats: stats.NewService(appCtx)})

	w := do(h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.RealProfiles)
	assert.Equal(t, int64(1), snap.SyntheticProfiles)
}

func TestTelegramWebhook(t *testing.T) {
	appCtx := dbtest.AppContext(t)
	updates := &recordingUpdates{}
	h := NewHTTPHandler(HTTPDeps{
		AppCtx:        appCtx,
		Stats:         stats.NewService(appCtx),
		Updates:       updates,
		WebhookSecret: "s3cret",
	})

	body := `{"update_id": 42, "message": {"message_id": 1, "date": 0, "chat": {"id": 5, "type": "private"}, "text": "hi"}}`

	w := do(h, http.MethodPost, "/telegram/webhook/wrong", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(h, http.MethodPost, "/telegram/webhook/s3creT", body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, http.MethodPost, "/telegram/webhook/s3cret", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/telegram/webhook/s3cret", body)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, updates.seen, 1)
	assert.Equal(t, 42, updates.seen[0].UpdateID)
	assert.Equal(t, "hi", updates.seen[0].Message.Text)
}

func TestSecretMatches(t *testing.T) {
	assert.True(t, secretMatches("s3cret", "s3cret"))
	assert.False(t, secretMatches("s3creT", "s3cret"), "same length, one byte off")
	assert.False(t, secretMatches("s3cret-longer", "s3cret"))
	assert.False(t, secretMatches("", ""), "an unset secret never matches")
}

func TestWebhookAbsentInPollMode(t *testing.T) {
	appCtx := dbtest.AppContext(t)
	h := NewHTTPHandler(HTTPDeps{AppCtx: appCtx, Stats: stats.NewService(appCtx)})

	w := do(h, http.MethodPost, "/telegram/webhook/anything", "{}")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
