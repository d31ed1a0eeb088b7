// Package scheduler runs the auto-like loop for synthetic profiles.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/repository"
	"github.com/oggyb/matchbot/internal/service/matching"
	"github.com/oggyb/matchbot/internal/telemetry"
)

const (
	lockKey = "scheduler:autolike:lock"
	// candidatePool bounds how many undecided profiles are loaded per actor
	// before the random batch is drawn.
	candidatePool = 50
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Sleeper pauses for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Liker issues a like on behalf of a synthetic user.
type Liker interface {
	Decide(ctx context.Context, actorUserID, targetProfileID uint64, decisionType string) (matching.Result, error)
}

// Config holds pacing parameters.
type Config struct {
	Interval        time.Duration
	RetryInterval   time.Duration
	BatchMin        int
	BatchMax        int
	LikeDelayMin    time.Duration
	LikeDelayMax    time.Duration
	ProfileDelayMin time.Duration
	ProfileDelayMax time.Duration
	// LockTTL is the cycle lease, renewed before every actor's batch.
	// Zero derives it from the pacing fields.
	LockTTL time.Duration
}

// leaseMargin pads the lease for database and Telegram round trips.
const leaseMargin = 5 * time.Minute

// lease covers one pause between profiles plus one full batch of likes.
func (c Config) lease() time.Duration {
	return c.ProfileDelayMax + time.Duration(max(c.BatchMax, 1))*c.LikeDelayMax + leaseMargin
}

// ConfigFrom copies the scheduler section of the app config.
func ConfigFrom(cfg *config.Config) Config {
	s := cfg.Scheduler
	return Config{
		Interval:        s.Interval,
		RetryInterval:   s.RetryInterval,
		BatchMin:        s.BatchMin,
		BatchMax:        s.BatchMax,
		LikeDelayMin:    s.LikeDelayMin,
		LikeDelayMax:    s.LikeDelayMax,
		ProfileDelayMin: s.ProfileDelayMin,
		ProfileDelayMax: s.ProfileDelayMax,
	}
}

// Option customizes an AutoLiker.
type Option func(*AutoLiker)

func WithClock(c Clock) Option     { return func(a *AutoLiker) { a.clock = c } }
func WithSleeper(s Sleeper) Option { return func(a *AutoLiker) { a.sleep = s } }
func WithRand(r *rand.Rand) Option { return func(a *AutoLiker) { a.rnd = r } }

// RunStats summarizes one cycle.
type RunStats struct {
	Actors  int
	Skipped int
	Likes   int
	Failed  int
}

// AutoLiker sends paced likes from active synthetic profiles to real users.
type AutoLiker struct {
	appCtx    *app.AppContext
	log       *slog.Logger
	cfg       Config
	liker     Liker
	synthetic *repository.SyntheticRepository
	profiles  *repository.ProfileRepository
	clock     Clock
	sleep     Sleeper
	owner     string

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an AutoLiker. It does nothing until Start or RunOnce.
func New(appCtx *app.AppContext, liker Liker, cfg Config, opts ...Option) *AutoLiker {
	a := &AutoLiker{
		appCtx:    appCtx,
		log:       appCtx.Logger.With("module", "scheduler"),
		cfg:       cfg,
		liker:     liker,
		synthetic: repository.NewSyntheticRepository(appCtx.DB),
		profiles:  repository.NewProfileRepository(appCtx.DB),
		clock:     systemClock{},
		sleep:     Sleep,
		owner:     uuid.NewString(),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(a)
	}
	if a.cfg.LockTTL <= 0 {
		a.cfg.LockTTL = a.cfg.lease()
	}
	return a
}

// Start launches the loop in a goroutine. The first cycle runs right away.
// Calling Start on a running AutoLiker is a no-op.
func (a *AutoLiker) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.loop(ctx, a.done)
	a.log.Info("auto-liker started", "interval", a.cfg.Interval)
}

// Stop cancels the loop, including any sleep in progress, and waits for it
// to exit.
func (a *AutoLiker) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.log.Info("auto-liker stopped")
}

func (a *AutoLiker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		wait := a.cfg.Interval
		stats, err := a.RunOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			telemetry.CaptureError(err, "auto-like cycle failed", "retry_in", a.cfg.RetryInterval)
			wait = a.cfg.RetryInterval
		} else {
			a.log.Info("auto-like cycle done",
				"actors", stats.Actors, "skipped", stats.Skipped, "likes", stats.Likes, "failed", stats.Failed)
		}
		if err := a.sleep(ctx, wait); err != nil {
			return
		}
	}
}

// RunOnce performs a single cycle over all active synthetic profiles.
//
// Behavior:
//   - Profiles whose LastRunAt + LikeInterval lies in the future are skipped.
//   - Each processed profile likes a random batch of real, active profiles
//     it has not decided on, pausing between likes and between profiles.
//   - A failed like is logged and skipped; the cycle goes on.
//   - With Redis configured, only one instance runs a cycle at a time. The
//     lease is renewed before each actor; losing it ends the cycle early.
//   - Cancellation returns ctx.Err() from inside any pause.
func (a *AutoLiker) RunOnce(ctx context.Context) (RunStats, error) {
	var stats RunStats

	locked := false
	if rc := a.appCtx.RedisCache; rc != nil {
		ok, err := rc.TryLock(ctx, lockKey, a.owner, a.cfg.LockTTL)
		if err != nil {
			a.log.Warn("auto-like lock unavailable, running unlocked", "err", err)
		} else if !ok {
			a.log.Debug("auto-like cycle held by another instance")
			return stats, nil
		} else {
			locked = true
			defer func() {
				if err := rc.Unlock(context.WithoutCancel(ctx), lockKey, a.owner); err != nil {
					a.log.Warn("auto-like unlock failed", "err", err)
				}
			}()
		}
	}

	actors, err := a.synthetic.ListActive(ctx)
	if err != nil {
		return stats, fmt.Errorf("list synthetic profiles: %w", err)
	}

	processed := 0
	for _, actor := range actors {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !a.due(actor) {
			stats.Skipped++
			continue
		}
		if processed > 0 {
			if err := a.sleep(ctx, a.between(a.cfg.ProfileDelayMin, a.cfg.ProfileDelayMax)); err != nil {
				return stats, err
			}
		}
		if locked && !a.renewLease(ctx) {
			return stats, nil
		}
		processed++
		stats.Actors++

		likes, failed, err := a.runActor(ctx, actor)
		stats.Likes += likes
		stats.Failed += failed
		if err != nil {
			return stats, err
		}
		if err := a.synthetic.TouchRun(ctx, actor.ProfileID, a.clock.Now()); err != nil {
			a.log.Warn("record synthetic run failed", "profile", actor.ProfileID, "err", err)
		}
	}
	return stats, nil
}

// renewLease extends the cycle lock. It returns false once another instance
// owns it; a Redis error keeps the cycle going.
func (a *AutoLiker) renewLease(ctx context.Context) bool {
	ok, err := a.appCtx.RedisCache.ExtendLock(ctx, lockKey, a.owner, a.cfg.LockTTL)
	if err != nil {
		a.log.Warn("auto-like lease renewal failed", "err", err)
		return true
	}
	if !ok {
		a.log.Warn("auto-like lease lost, ending cycle early")
	}
	return ok
}

func (a *AutoLiker) due(actor repository.SyntheticActor) bool {
	if actor.LastRunAt == nil {
		return true
	}
	next := actor.LastRunAt.Add(time.Duration(actor.LikeInterval) * time.Second)
	return !next.After(a.clock.Now())
}

// runActor likes one batch for a synthetic profile. Only cancellation is
// returned as an error.
func (a *AutoLiker) runActor(ctx context.Context, actor repository.SyntheticActor) (likes, failed int, err error) {
	ids, err := a.profiles.UndecidedRealProfileIDs(ctx, actor.UserID, candidatePool)
	if err != nil {
		a.log.Warn("load auto-like candidates failed", "profile", actor.ProfileID, "err", err)
		return 0, 1, nil
	}
	batch := a.pick(ids, a.betweenInt(a.cfg.BatchMin, a.cfg.BatchMax))

	for i, target := range batch {
		if i > 0 {
			if err := a.sleep(ctx, a.between(a.cfg.LikeDelayMin, a.cfg.LikeDelayMax)); err != nil {
				return likes, failed, err
			}
		}
		if _, err := a.liker.Decide(ctx, actor.UserID, target, db.DecisionLike); err != nil {
			if ctx.Err() != nil {
				return likes, failed, ctx.Err()
			}
			a.log.Warn("auto-like failed", "profile", actor.ProfileID, "target", target, "err", err)
			failed++
			continue
		}
		likes++
	}
	a.log.Debug("auto-like batch done", "profile", actor.ProfileID, "name", actor.Name, "likes", likes)
	return likes, failed, nil
}

// pick returns up to n ids in random order.
func (a *AutoLiker) pick(ids []uint64, n int) []uint64 {
	out := append([]uint64(nil), ids...)
	a.rndMu.Lock()
	a.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	a.rndMu.Unlock()
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (a *AutoLiker) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	a.rndMu.Lock()
	defer a.rndMu.Unlock()
	return lo + time.Duration(a.rnd.Int63n(int64(hi-lo)+1))
}

func (a *AutoLiker) betweenInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	a.rndMu.Lock()
	defer a.rndMu.Unlock()
	return lo + a.rnd.Intn(hi-lo+1)
}
