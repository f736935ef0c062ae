package fuse

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrOpen is returned when a breaker fails fast without hitting the network.
var ErrOpen = errors.New("circuit breaker open: too many consecutive failures")

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

// Config configures breaker behavior.
type Config struct {
	// Name scopes the shared failure state. All calls using the same name
	// share one breaker.
	Name string `yaml:"name,omitempty"`
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker.
	FailureThreshold int `yaml:"failure_threshold,omitempty"`
	// Cooldown is how long the breaker holds open before allowing a trial
	// call.
	Cooldown time.Duration `yaml:"cooldown,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	return c
}

// Breaker is a transport-level guard: it trips after a configurable number of
// consecutive failures and holds open for a cool-down period, during which
// calls fail fast. Its state is shared by every caller holding the same
// instance and is safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	failures int
	openedAt time.Time
}

func NewBreaker(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults()}
}

// Allow reports whether a call may proceed. While open and inside the
// cool-down it returns ErrOpen; after the cool-down one trial call is let
// through in half-open state.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			return errors.WithStack(ErrOpen)
		}
		b.state = StateHalfOpen
		log.Debug().Str("breaker", b.cfg.Name).Msg("circuit breaker half-open, allowing trial call")
	}

	return nil
}

// Record folds one call outcome into the breaker state.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != StateClosed {
			log.Debug().Str("breaker", b.cfg.Name).Msg("circuit breaker closing after successful call")
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		log.Warn().
			Str("breaker", b.cfg.Name).
			Int("failures", b.failures).
			Dur("cooldown", b.cfg.Cooldown).
			Msg("circuit breaker tripped")
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Breaker{}
)

// ForName returns the process-wide breaker registered under cfg.Name,
// creating it on first use. An empty name yields a fresh unshared breaker.
func ForName(cfg Config) *Breaker {
	if cfg.Name == "" {
		return NewBreaker(cfg)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if b, ok := registry[cfg.Name]; ok {
		return b
	}
	b := NewBreaker(cfg)
	registry[cfg.Name] = b
	return b
}
