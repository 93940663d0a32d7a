// Package breaker implements a per-dependency circuit breaker so callers
// fail fast against a known-unhealthy dependency instead of paying a full
// timeout on every request.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/paycore/internal/clock"
	obsmetrics "github.com/smallbiznis/paycore/internal/observability/metrics"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without invoking the wrapped operation while
// the breaker is OPEN, or while a HALF_OPEN probe is already in flight.
var ErrCircuitOpen = errors.New("circuit_open")

// State is the breaker state machine position.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Config tunes a single breaker instance.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Zero means the default of 5.
	FailureThreshold int
	// RecoveryTimeout is how long the breaker stays OPEN before allowing
	// a single probe. Zero means the default of 60s.
	RecoveryTimeout time.Duration
	// IsFailure decides whether an operation error counts against the
	// dependency's health. Business rejections (e.g. a declined card) are
	// not a health signal and should return false. Nil counts every error.
	IsFailure func(error) bool
}

// Breaker guards calls to one logical dependency.
type Breaker struct {
	name string
	cfg  Config

	clk        clock.Clock
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureAt       time.Time
	lastStateChangeAt   time.Time
	probing             bool
}

// New constructs a CLOSED breaker for the named dependency.
func New(name string, cfg Config, clk clock.Clock, log *zap.Logger, m *obsmetrics.Metrics) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{
		name:              name,
		cfg:               cfg,
		clk:               clk,
		log:               log.Named("breaker." + name),
		obsMetrics:        m,
		state:             StateClosed,
		lastStateChangeAt: clk.Now(),
	}
}

// Call runs op under the breaker. It returns ErrCircuitOpen without
// executing op when the breaker is OPEN, otherwise op's own error.
func (b *Breaker) Call(ctx context.Context, op func(context.Context) error) error {
	probe, err := b.acquire()
	if err != nil {
		return err
	}

	opErr := op(ctx)
	b.settle(probe, opErr)
	return opErr
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Available reports whether a call would currently be admitted. It does not
// reserve the HALF_OPEN probe, so a concurrent caller can still win the
// probe slot between Available and Call.
func (b *Breaker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return b.clk.Now().Sub(b.lastStateChangeAt) >= b.cfg.RecoveryTimeout
	case StateHalfOpen:
		return !b.probing
	default:
		return false
	}
}

// acquire decides whether a call may proceed and whether it is the
// HALF_OPEN probe.
func (b *Breaker) acquire() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.clk.Now().Sub(b.lastStateChangeAt) < b.cfg.RecoveryTimeout {
			return false, ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	default:
		return false, ErrCircuitOpen
	}
}

// settle applies the call outcome to the state machine.
func (b *Breaker) settle(probe bool, opErr error) {
	failed := opErr != nil
	if failed && b.cfg.IsFailure != nil {
		failed = b.cfg.IsFailure(opErr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
		if failed {
			b.consecutiveFailures = b.cfg.FailureThreshold
			b.lastFailureAt = b.clk.Now()
			b.transition(StateOpen)
			return
		}
		b.consecutiveFailures = 0
		b.transition(StateClosed)
		return
	}

	if b.state != StateClosed {
		// A non-probe call that was already in flight when the breaker
		// opened; its outcome no longer drives transitions.
		return
	}

	if !failed {
		b.consecutiveFailures = 0
		return
	}

	b.consecutiveFailures++
	b.lastFailureAt = b.clk.Now()
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.transition(StateOpen)
	}
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.lastStateChangeAt = b.clk.Now()
	b.log.Info("breaker state change",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("consecutive_failures", b.consecutiveFailures),
	)
	b.obsMetrics.RecordBreakerTransition(context.Background(), b.name, string(from), string(to))
}
