// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

// Package breaker implements a three-state circuit breaker with a
// rolling failure window and exponential cooldown backoff.
//
// The breaker tracks the outcome of recent calls in a window bounded by
// both call count and age. When the failure ratio over the window
// crosses the configured threshold the breaker opens and rejects calls
// immediately. After a cooldown a single trial call is allowed; its
// outcome decides between closing the breaker and reopening it with a
// doubled cooldown.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Do when the breaker is open and the call was
// rejected without being attempted.
var ErrOpen = errors.New("breaker: circuit open")

// State is the breaker state.
type State int

const (
	// Closed lets all calls through and records their outcomes.
	Closed State = iota
	// Open rejects all calls until the cooldown elapses.
	Open
	// HalfOpen lets exactly one trial call through.
	HalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Transition describes a single state change. Emitted synchronously to
// the OnTransition hook while the breaker lock is NOT held.
type Transition struct {
	// Name is the breaker name.
	Name string
	// From and To are the states involved.
	From, To State
	// Reason is a short machine-readable cause
	// ("failure-threshold", "cooldown-elapsed", "trial-success",
	// "trial-failure", "manual-reset").
	Reason string
	// Failures and Calls are the window counters at transition time.
	Failures, Calls int
	// At is when the transition happened.
	At time.Time
}

// Config configures a Breaker. Zero values fall back to the defaults
// noted per field.
type Config struct {
	// Name identifies the breaker in events, logs and metrics.
	Name string

	// WindowCalls caps the number of recorded outcomes
	// (default 20).
	WindowCalls int

	// WindowDuration caps the age of recorded outcomes
	// (default 30s). Both bounds apply; the tighter one governs.
	WindowDuration time.Duration

	// FailureThreshold is the failure ratio at or above which the
	// breaker opens (default 0.5).
	FailureThreshold float64

	// MinSamples is the minimum number of recorded calls before the
	// threshold is evaluated (default 5). Prevents a single early
	// failure from tripping an idle breaker.
	MinSamples int

	// Cooldown is the initial open period (default 30s).
	Cooldown time.Duration

	// MaxCooldown caps the backed-off cooldown (default 5m).
	MaxCooldown time.Duration

	// Backoff doubles the cooldown on every consecutive reopen.
	Backoff bool

	// OnTransition is called for every state change, if set.
	OnTransition func(Transition)

	// Probe, if set, is used as the half-open trial instead of the
	// caller's function. A nil Probe means the first Do after the
	// cooldown carries the trial itself.
	Probe func(ctx context.Context) error
}

func (c Config) withDefaults() Config {
	if c.WindowCalls <= 0 {
		c.WindowCalls = 20
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = 30 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 0.5
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.MaxCooldown <= 0 {
		c.MaxCooldown = 5 * time.Minute
	}
	return c
}

type outcome struct {
	at      time.Time
	failure bool
}

// Breaker is a three-state circuit breaker. Safe for concurrent use.
type Breaker struct {
	cfg Config
	now func() time.Time // swapped in tests

	mu       sync.Mutex
	state    State
	window   []outcome
	openedAt time.Time
	cooldown time.Duration // current (possibly backed-off) cooldown
	trialing bool          // a half-open trial is in flight
}

// New returns a Breaker in the closed state.
func New(cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{
		cfg:      cfg,
		now:      time.Now,
		state:    Closed,
		cooldown: cfg.Cooldown,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.cfg.Name }

// State returns the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Counts returns the failure and total call counts in the current
// window.
func (b *Breaker) Counts() (failures, calls int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trim(b.now())
	return b.counts()
}

// Do runs fn through the breaker.
//
// In the closed state fn runs and its outcome is recorded. In the open
// state Do returns ErrOpen without calling fn. When the cooldown has
// elapsed a single caller is admitted as the trial: if a Probe is
// configured it runs first and a probe failure reopens the breaker
// without calling fn.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := b.admit()
	if err != nil {
		return err
	}

	if trial && b.cfg.Probe != nil {
		if perr := b.cfg.Probe(ctx); perr != nil {
			b.settleTrial(false)
			return perr
		}
		b.settleTrial(true)
		// Trial succeeded on the probe; fn now runs against a closed
		// breaker and is recorded normally.
		err := fn(ctx)
		b.record(err != nil)
		return err
	}

	err = fn(ctx)
	if trial {
		b.settleTrial(err == nil)
		return err
	}
	b.record(err != nil)
	return err
}

// Reset forces the breaker closed and clears the window and backoff.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = Closed
	b.window = b.window[:0]
	b.cooldown = b.cfg.Cooldown
	b.trialing = false
	b.mu.Unlock()

	if from != Closed {
		b.emit(from, Closed, "manual-reset", 0, 0)
	}
}

// admit decides whether the caller may proceed. The second return is
// ErrOpen when rejected; trial is true when the caller carries the
// half-open trial.
func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	now := b.now()

	switch b.state {
	case Closed:
		b.mu.Unlock()
		return false, nil

	case Open:
		if now.Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return false, ErrOpen
		}
		b.state = HalfOpen
		b.trialing = true
		failures, calls := b.counts()
		b.mu.Unlock()
		b.emit(Open, HalfOpen, "cooldown-elapsed", failures, calls)
		return true, nil

	case HalfOpen:
		if b.trialing {
			b.mu.Unlock()
			return false, ErrOpen
		}
		b.trialing = true
		b.mu.Unlock()
		return true, nil
	}

	b.mu.Unlock()
	return false, ErrOpen
}

// settleTrial resolves a half-open trial.
func (b *Breaker) settleTrial(success bool) {
	b.mu.Lock()
	b.trialing = false

	if success {
		b.state = Closed
		b.window = b.window[:0]
		b.cooldown = b.cfg.Cooldown
		b.mu.Unlock()
		b.emit(HalfOpen, Closed, "trial-success", 0, 0)
		return
	}

	b.state = Open
	b.openedAt = b.now()
	if b.cfg.Backoff {
		b.cooldown = min(b.cooldown*2, b.cfg.MaxCooldown)
	}
	failures, calls := b.counts()
	b.mu.Unlock()
	b.emit(HalfOpen, Open, "trial-failure", failures, calls)
}

// record adds an outcome to the window and opens the breaker when the
// failure ratio crosses the threshold.
func (b *Breaker) record(failure bool) {
	b.mu.Lock()
	if b.state != Closed {
		// A call that started before a transition; its outcome no
		// longer affects the decision.
		b.mu.Unlock()
		return
	}

	now := b.now()
	b.window = append(b.window, outcome{at: now, failure: failure})
	b.trim(now)

	failures, calls := b.counts()
	if calls < b.cfg.MinSamples {
		b.mu.Unlock()
		return
	}
	if float64(failures)/float64(calls) < b.cfg.FailureThreshold {
		b.mu.Unlock()
		return
	}

	b.state = Open
	b.openedAt = now
	b.mu.Unlock()
	b.emit(Closed, Open, "failure-threshold", failures, calls)
}

// trim drops outcomes outside the window bounds. Caller holds b.mu.
func (b *Breaker) trim(now time.Time) {
	cutoff := now.Add(-b.cfg.WindowDuration)
	start := 0
	for start < len(b.window) && b.window[start].at.Before(cutoff) {
		start++
	}
	if excess := len(b.window) - start - b.cfg.WindowCalls; excess > 0 {
		start += excess
	}
	if start > 0 {
		b.window = append(b.window[:0], b.window[start:]...)
	}
}

// counts tallies the window. Caller holds b.mu.
func (b *Breaker) counts() (failures, calls int) {
	for _, o := range b.window {
		if o.failure {
			failures++
		}
	}
	return failures, len(b.window)
}

func (b *Breaker) emit(from, to State, reason string, failures, calls int) {
	if b.cfg.OnTransition == nil {
		return
	}
	b.cfg.OnTransition(Transition{
		Name:     b.cfg.Name,
		From:     from,
		To:       to,
		Reason:   reason,
		Failures: failures,
		Calls:    calls,
		At:       b.now(),
	})
}
