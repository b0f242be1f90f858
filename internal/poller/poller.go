// Package poller schedules recurring fetches against the chat service
// without overlap and with a cool-down after server-side rate limiting.
// One instance is created per concern (conversation list, open thread)
// instead of each view re-implementing its own interval logic.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ltavares/feira/internal/api"
	"github.com/ltavares/feira/internal/notify"
	"go.uber.org/zap"
)

// minInterval is the floor for any poll cadence. Anything faster risks
// request storms against the backend's rate limiter.
const minInterval = time.Second

// State is a snapshot of one poller's bookkeeping.
type State struct {
	LastFetchAt     time.Time
	LastRateLimitAt time.Time
	InFlight        bool
}

// Config tunes one poller instance.
type Config struct {
	// Name identifies the poller in logs.
	Name string
	// Interval is the tick cadence. Clamped to at least one second.
	Interval time.Duration
	// Backoff is how long to stay quiet after an HTTP 429.
	Backoff time.Duration
}

// Poller invokes a fetch function on a fixed cadence. Ticks are skipped,
// never queued, while a fetch is in flight, the gate reports not-ready, or
// the rate-limit cool-down is active. The timer keeps running while gated so
// the next eligible tick fires promptly.
type Poller struct {
	name     string
	interval time.Duration
	backoff  time.Duration

	fetch func(context.Context) error
	gate  func() bool

	onUnauthorized func()
	notifier       *notify.Notifier
	logger         *zap.Logger

	mu              sync.Mutex
	inFlight        bool
	lastFetchAt     time.Time
	lastRateLimitAt time.Time
	cancel          context.CancelFunc

	kick chan struct{}
}

// New creates a poller. gate decides per tick whether fetching is allowed
// (credential present and page visible); onUnauthorized runs when a fetch
// reports an invalid session.
func New(cfg Config, fetch func(context.Context) error, gate func() bool, onUnauthorized func(), notifier *notify.Notifier, logger *zap.Logger) *Poller {
	interval := cfg.Interval
	if interval < minInterval {
		interval = minInterval
	}
	return &Poller{
		name:           cfg.Name,
		interval:       interval,
		backoff:        cfg.Backoff,
		fetch:          fetch,
		gate:           gate,
		onUnauthorized: onUnauthorized,
		notifier:       notifier,
		logger:         logger,
		kick:           make(chan struct{}, 1),
	}
}

// Start begins fetching immediately, then on every interval, until Stop.
// Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	go p.loop(ctx)
}

// Stop cancels the recurring schedule. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ForceFetch requests an immediate fetch, bypassing the interval wait.
// The in-flight guard and the rate-limit cool-down still apply.
func (p *Poller) ForceFetch() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// State returns a snapshot of the poller's bookkeeping.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		LastFetchAt:     p.lastFetchAt,
		LastRateLimitAt: p.lastRateLimitAt,
		InFlight:        p.inFlight,
	}
}

func (p *Poller) loop(ctx context.Context) {
	p.runOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.kick:
			p.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	if p.gate != nil && !p.gate() {
		p.mu.Unlock()
		return
	}
	if !p.lastRateLimitAt.IsZero() && time.Since(p.lastRateLimitAt) < p.backoff {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	err := p.fetch(ctx)

	p.mu.Lock()
	p.inFlight = false
	switch {
	case err == nil:
		p.lastFetchAt = time.Now()
	case errors.Is(err, api.ErrRateLimited):
		// Silent by contract. lastFetchAt stays untouched.
		p.lastRateLimitAt = time.Now()
	}
	p.mu.Unlock()

	if err == nil || errors.Is(err, api.ErrRateLimited) {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	if errors.Is(err, api.ErrUnauthorized) {
		if p.logger != nil {
			p.logger.Info("session invalid during poll", zap.String("poller", p.name))
		}
		if p.onUnauthorized != nil {
			p.onUnauthorized()
		}
		return
	}

	if p.logger != nil {
		p.logger.Warn("poll failed", zap.String("poller", p.name), zap.Error(err))
	}
	if p.notifier != nil {
		p.notifier.Error(api.ErrorMessage(err))
	}
}
