package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker rejects completion calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type BreakerConfig struct {
	Name                 string
	MaxFailures          uint32
	Timeout              time.Duration
	HalfOpenMaxSuccesses uint32
}

// CircuitBreaker stops calling a failing model until Timeout has passed.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxSuccesses == 0 {
		cfg.HalfOpenMaxSuccesses = 1
	}
	if cfg.Name == "" {
		cfg.Name = "completion"
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.HalfOpenMaxSuccesses,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.MaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logx.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
			},
		}),
	}
}

func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := cb.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrCircuitOpen
		}
		return "", err
	}
	text, _ := out.(string)
	return text, nil
}

func (cb *CircuitBreaker) State() string {
	return cb.breaker.State().String()
}
