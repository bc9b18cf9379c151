// Package reliability guards each provider with a request-rate limiter and a
// circuit breaker. Every provider owns an independent Guard; no state is
// shared across providers, so one provider tripping never stalls the rest.
package reliability

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/codexray/metasearch/internal/providers"
)

// ErrProviderUnavailable is returned by Admit while the circuit is open.
var ErrProviderUnavailable = errors.New("provider unavailable: circuit open")

// Config tunes a single provider's guard.
type Config struct {
	FailureThreshold int           // consecutive failures before the circuit opens
	Cooldown         time.Duration // how long an open circuit blocks dispatch
	Quota            int           // requests allowed per Window
	Window           time.Duration
	BasePenalty      time.Duration // resting backoff delay; grows on failures
	MaxPenalty       time.Duration
}

// DefaultConfig matches the documented defaults: five consecutive failures
// open the circuit for a fixed sixty seconds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
		Quota:            30,
		Window:           time.Minute,
		BasePenalty:      500 * time.Millisecond,
		MaxPenalty:       10 * time.Second,
	}
}

// State is a point-in-time view of a guard, used by status reporting.
type State struct {
	Open                bool
	OpenUntil           time.Time
	ConsecutiveFailures int
	LastCallAt          time.Time
}

// Guard combines the rate limiter and circuit breaker for one provider.
// The zero value is not usable; construct with New.
type Guard struct {
	name    string
	cfg     Config
	limiter *rate.Limiter

	mu                  sync.Mutex
	consecutiveFailures int
	openUntil           time.Time
	backoff             time.Duration
	lastCallAt          time.Time

	now func() time.Time
}

func New(name string, cfg Config) *Guard {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.Quota <= 0 {
		cfg.Quota = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxPenalty < cfg.BasePenalty {
		cfg.MaxPenalty = cfg.BasePenalty
	}
	return &Guard{
		name:    name,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.Window/time.Duration(cfg.Quota)), cfg.Quota),
		backoff: cfg.BasePenalty,
		now:     time.Now,
	}
}

func (g *Guard) Name() string {
	return g.name
}

// Admit decides whether a request may proceed. While the circuit is open it
// returns ErrProviderUnavailable immediately. Otherwise it returns how long
// the caller must wait before issuing the request; the wait combines the
// window quota delay with any accumulated failure backoff.
func (g *Guard) Admit() (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Before(g.openUntil) {
		return 0, ErrProviderUnavailable
	}

	res := g.limiter.Reserve()
	if !res.OK() {
		return 0, ErrProviderUnavailable
	}
	g.lastCallAt = now

	wait := res.Delay() + (g.backoff - g.cfg.BasePenalty)
	if wait < 0 {
		wait = 0
	}
	return wait, nil
}

// Open reports whether the circuit currently blocks dispatch. The transition
// back to closed is lazy: once the cooldown has elapsed this returns false
// and the next request is simply allowed as a fresh attempt.
func (g *Guard) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Before(g.openUntil)
}

// RecordSuccess resets the failure streak and decays the accumulated backoff
// so a recovered provider is not permanently penalized.
func (g *Guard) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.consecutiveFailures = 0
	g.backoff = time.Duration(float64(g.backoff) * 0.8)
	if g.backoff < g.cfg.BasePenalty {
		g.backoff = g.cfg.BasePenalty
	}
}

// RecordFailure counts a failed call. A rate-limit response opens the circuit
// immediately; anything else opens it once the consecutive-failure threshold
// is crossed. Every open transition restarts the fixed cooldown from now.
func (g *Guard) RecordFailure(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.consecutiveFailures++
	g.backoff *= 2
	if g.backoff > g.cfg.MaxPenalty {
		g.backoff = g.cfg.MaxPenalty
	}

	if kind, ok := providers.KindOf(err); ok && kind == providers.KindRateLimited {
		g.open()
		return
	}
	if g.consecutiveFailures >= g.cfg.FailureThreshold {
		g.open()
	}
}

func (g *Guard) open() {
	g.openUntil = g.now().Add(g.cfg.Cooldown)
	g.consecutiveFailures = 0
}

// Snapshot returns the current state for status reporting.
func (g *Guard) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		Open:                g.now().Before(g.openUntil),
		OpenUntil:           g.openUntil,
		ConsecutiveFailures: g.consecutiveFailures,
		LastCallAt:          g.lastCallAt,
	}
}
