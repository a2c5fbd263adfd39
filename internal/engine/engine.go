// Package engine owns the single timer that drives canary deadlines: one
// armedFor instant, refreshed on every rearm, whose firing advances every
// elapsed canary to late and dispatches a notification.
//
// The source drives this off a one-shot process alarm (SIGALRM); per
// spec.md §9's explicit instruction not to re-export a raw signal-driven
// interface, this is instead a time.AfterFunc timer whose callback runs
// under the engine's mutex, adapted from the teacher's own scheduler.go
// map-of-jobs run loop.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opswatch/coalmine/internal/canary"
	"github.com/opswatch/coalmine/internal/notifier"
	"github.com/opswatch/coalmine/internal/store"
)

// Engine owns the deadline timer. All of its exported methods are safe to
// call concurrently; they serialize internally on mu, the "second, coarser
// exclusive section around rearm()/onFire()" spec.md §5 requires in
// addition to the per-canary lock lifecycle operations take.
type Engine struct {
	store    store.Store
	notify   notifier.Notifier
	log      *slog.Logger
	clock    func() time.Time

	mu       sync.Mutex
	timer    *time.Timer
	armedFor time.Time
	armed    bool
}

// New constructs an Engine. clock defaults to time.Now when nil; tests may
// substitute a deterministic clock.
func New(st store.Store, n notifier.Notifier, log *slog.Logger, clock func() time.Time) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Engine{store: st, notify: n, log: log, clock: clock}
}

// Rearm queries the store for the soonest upcoming deadline and resets the
// timer to fire then. If there is none, the timer is cancelled. The timer
// is unconditionally refreshed even if the target instant is unchanged,
// per spec.md §5's "must refresh the timer on every rearm ... to survive
// lost signals".
func (e *Engine) Rearm(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rearmLocked(ctx)
}

func (e *Engine) rearmLocked(ctx context.Context) error {
	upcoming, err := e.store.UpcomingDeadlines(ctx)
	if err != nil {
		return err
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if len(upcoming) == 0 {
		e.armed = false
		return nil
	}
	earliest := upcoming[0]
	now := e.clock()
	when := earliest.Deadline.Sub(now)
	if when < time.Second {
		when = time.Second
	}
	e.armedFor = earliest.Deadline
	e.armed = true
	e.timer = time.AfterFunc(when, func() { e.onFire(context.Background()) })
	return nil
}

// ArmedFor reports the instant the timer is currently set for, and whether
// anything is armed at all.
func (e *Engine) ArmedFor() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armedFor, e.armed
}

// onFire advances every canary whose deadline has elapsed to late, in
// ascending deadline order, dispatching a notification for each; it stops
// at the first canary whose deadline is still in the future and rearms for
// it. Notifier failures are logged, never propagated: a failed send must
// not prevent late from being recorded or the timer from rearming.
func (e *Engine) onFire(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		upcoming, err := e.store.UpcomingDeadlines(ctx)
		if err != nil {
			e.log.Error("engine: list upcoming deadlines failed", "error", err)
			return
		}
		if len(upcoming) == 0 {
			e.armed = false
			e.timer = nil
			return
		}
		head := upcoming[0]
		now := e.clock()
		if head.Deadline.After(now) {
			_ = e.rearmLocked(ctx)
			return
		}

		if err := e.store.Update(ctx, head.ID, canary.Patch{Late: canaryTrue()}); err != nil {
			e.log.Error("engine: mark late failed", "canary_id", head.ID, "error", err)
			return
		}
		head.Late = true
		e.log.Info("canary went late", "canary_id", head.ID, "slug", head.Slug, "deadline", head.Deadline)

		if err := e.notify.Notify(ctx, head, notifier.Late); err != nil {
			e.log.Warn("engine: late notification failed", "canary_id", head.ID, "error", err)
		}
	}
}

func canaryTrue() canary.Field[bool] { return canary.SetField(true) }
