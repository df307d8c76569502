// v1
// internal/circuitbreaker/circuitbreaker.go

// Package circuitbreaker isolates an unreliable downstream (a Kafka topic, an
// MQTT broker) so that repeated failures fail fast instead of stalling the
// caller.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config holds the breaker tunables.
type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // how long to stay open before probing
	SuccessesToClose int           // successes required in HalfOpen before closing
}

// DefaultConfig mirrors the values used when no environment override is set.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, ResetTimeout: 30 * time.Second, SuccessesToClose: 2}
}

func (c Config) validate() error {
	if c.MaxFailures < 1 {
		return errors.New("MaxFailures must be >= 1")
	}
	if c.ResetTimeout <= 0 {
		return errors.New("ResetTimeout must be > 0")
	}
	if c.SuccessesToClose < 1 {
		return errors.New("SuccessesToClose must be >= 1")
	}
	return nil
}

type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	now      func() time.Time
	onChange func(name string, s State)
}

// New builds a closed breaker. A nil logger discards output.
func New(name string, cfg Config, logger *slog.Logger) (*Breaker, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("breaker %s: %w", name, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With("component", "circuitbreaker", "breaker", name),
		state:  Closed,
		now:    time.Now,
	}
	b.logger.Info("breaker_created", "maxFailures", cfg.MaxFailures, "resetTimeout", cfg.ResetTimeout.String(), "successesToClose", cfg.SuccessesToClose)
	return b, nil
}

// OnStateChange registers fn to be called after every transition, and once
// immediately with the current state.
func (b *Breaker) OnStateChange(fn func(name string, s State)) {
	b.mu.Lock()
	b.onChange = fn
	s := b.state
	b.mu.Unlock()
	if fn != nil {
		fn(b.name, s)
	}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op unless the breaker is open. While open it returns ErrOpen
// without calling op; once ResetTimeout has elapsed a trial call is let
// through in HalfOpen.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	if b.state != Open {
		b.mu.Unlock()
		return nil
	}
	since := b.now().Sub(b.openedAt)
	if since < b.cfg.ResetTimeout {
		b.mu.Unlock()
		b.logger.Debug("breaker_fast_fail", "since_open", since.String())
		return ErrOpen
	}
	fn := b.transition(HalfOpen)
	b.mu.Unlock()
	b.notify(fn, HalfOpen)
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	var (
		fn   func(string, State)
		next State
	)
	switch {
	case err == nil && b.state == HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessesToClose {
			next, fn = Closed, b.transition(Closed)
		}
	case err == nil:
		b.failures = 0
	case b.state == HalfOpen:
		b.logger.Warn("breaker_trial_failed", "error", err.Error())
		next, fn = Open, b.transition(Open)
	default:
		b.failures++
		b.logger.Warn("operation_failure", "failures", b.failures, "error", err.Error())
		if b.failures >= b.cfg.MaxFailures {
			next, fn = Open, b.transition(Open)
		}
	}
	b.mu.Unlock()
	b.notify(fn, next)
}

// transition must be called with mu held. It returns the callback to invoke
// once the lock is released.
func (b *Breaker) transition(to State) func(string, State) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == Open {
		b.openedAt = b.now()
	}
	b.logger.Info("breaker_state_change", "from", from.String(), "to", to.String())
	return b.onChange
}

func (b *Breaker) notify(fn func(string, State), s State) {
	if fn != nil {
		fn(b.name, s)
	}
}
