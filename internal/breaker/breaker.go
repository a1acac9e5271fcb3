package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the breaker rejects a call without attempting it.
var ErrOpen = errors.New("upstream circuit breaker is open")

type Config struct {
	Name        string
	MaxFailures int           // consecutive failures before opening
	Cooldown    time.Duration // how long to stay open before probing
	MaxProbes   int           // concurrent probes allowed while half-open
}

// Breaker guards calls to one upstream concern (stores, products, orders,
// categories). A dead upstream trips it open so consumers fall back to stale
// cache snapshots instead of queueing on a 10s timeout per request.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	maxProbes   int

	mutex        sync.Mutex
	state        State
	failures     int
	probes       int
	lastFailTime time.Time

	totalAttempts  int64
	totalFailures  int64
	totalSuccesses int64
	totalRejected  int64

	logger *logrus.Logger
}

func New(config Config, logger *logrus.Logger) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = 1
	}

	return &Breaker{
		name:        config.Name,
		maxFailures: config.MaxFailures,
		cooldown:    config.Cooldown,
		maxProbes:   config.MaxProbes,
		state:       StateClosed,
		logger:      logger,
	}
}

// Execute runs fn under the breaker. Rejected calls return ErrOpen without
// touching the upstream and are not counted as attempts.
func (b *Breaker) Execute(fn func() error) error {
	b.mutex.Lock()

	if b.state == StateOpen {
		if time.Since(b.lastFailTime) > b.cooldown {
			b.setState(StateHalfOpen)
			b.probes = 0
		} else {
			b.totalRejected++
			b.mutex.Unlock()
			return ErrOpen
		}
	}

	if b.state == StateHalfOpen && b.probes >= b.maxProbes {
		b.totalRejected++
		b.mutex.Unlock()
		return ErrOpen
	}

	b.totalAttempts++
	if b.state == StateHalfOpen {
		b.probes++
	}
	b.mutex.Unlock()

	err := fn()

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err != nil {
		b.totalFailures++
		b.onFailure()
		return err
	}

	b.totalSuccesses++
	b.onSuccess()
	return nil
}

func (b *Breaker) onSuccess() {
	b.failures = 0

	if b.state == StateHalfOpen {
		b.setState(StateClosed)
		b.probes = 0
	}
}

func (b *Breaker) onFailure() {
	b.failures++
	b.lastFailTime = time.Now()

	if b.state == StateClosed && b.failures >= b.maxFailures {
		b.setState(StateOpen)
	} else if b.state == StateHalfOpen {
		b.setState(StateOpen)
	}
}

func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState

	b.logger.WithFields(logrus.Fields{
		"breaker":    b.name,
		"from_state": oldState.String(),
		"to_state":   newState.String(),
	}).Info("Circuit breaker state changed")
}

func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

func (b *Breaker) Metrics() map[string]interface{} {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return map[string]interface{}{
		"name":            b.name,
		"state":           b.state.String(),
		"failures":        b.failures,
		"total_attempts":  b.totalAttempts,
		"total_failures":  b.totalFailures,
		"total_successes": b.totalSuccesses,
		"total_rejected":  b.totalRejected,
	}
}

func (b *Breaker) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.setState(StateClosed)
	b.failures = 0
	b.probes = 0
	b.lastFailTime = time.Time{}
}
