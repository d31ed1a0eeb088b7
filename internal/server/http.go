package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/logger"
	"github.com/oggyb/matchbot/internal/service/stats"
)

// UpdateHandler consumes a Telegram update delivered by webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// HTTPDeps are the collaborators of the ops HTTP surface. Updates may be nil
// when the bot runs in poll mode.
type HTTPDeps struct {
	AppCtx        *app.AppContext
	Stats         *stats.Service
	Updates       UpdateHandler
	WebhookSecret string
}

// NewHTTPHandler serves health, stats and the Telegram webhook.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), sentrygin.New(sentrygin.Options{Repanic: true}))

	r.GET("/healthz", healthz(deps.AppCtx))
	r.GET("/stats", func(c *gin.Context) {
		snap, err := deps.Stats.Snapshot(c.Request.Context())
		if err != nil {
			captureRequestError(c, err, "stats snapshot failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	if deps.Updates != nil {
		r.POST("/telegram/webhook/:secret", func(c *gin.Context) {
			if !secretMatches(c.Param("secret"), deps.WebhookSecret) {
				c.Status(http.StatusNotFound)
				return
			}
			var upd tgbotapi.Update
			if err := c.ShouldBindJSON(&upd); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
				return
			}
			deps.Updates.HandleUpdate(c.Request.Context(), upd)
			c.Status(http.StatusOK)
		})
	}
	return r
}

// secretMatches compares in constant time. An empty secret never matches.
func secretMatches(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func healthz(appCtx *app.AppContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"db": "ok", "redis": "disabled"}
		code := http.StatusOK

		sqlDB, err := appCtx.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["db"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if appCtx.RedisCache != nil {
			status["redis"] = "ok"
			if err := appCtx.RedisCache.Ping(ctx); err != nil {
				status["redis"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, status)
	}
}

func captureRequestError(c *gin.Context, err error, msg string) {
	logger.Error(msg, "path", c.Request.URL.Path, "err", err)
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	}
}

// ServeHTTP listens on addr until ctx is done, then shuts down with a
// bounded grace period.
func ServeHTTP(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server on %s: %w", addr, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
