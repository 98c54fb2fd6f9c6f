package radiotherm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/logger"
	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig configures the circuit breaker behavior
type CircuitBreakerConfig struct {
	// MaxConsecutiveFailures is the number of consecutive failures before opening
	MaxConsecutiveFailures uint32
	// Timeout is how long the circuit breaker stays open before trying half-open
	Timeout time.Duration
	// OnStateChange is told the initial state and every transition after it
	OnStateChange func(host string, state CircuitBreakerState)
}

// DefaultCircuitBreakerConfig returns sensible defaults
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxConsecutiveFailures: 5,
		Timeout:                30 * time.Second,
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the circuit breaker state
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

func fromGobreaker(state gobreaker.State) CircuitBreakerState {
	switch state {
	case gobreaker.StateOpen:
		return CircuitOpen
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	default:
		return CircuitClosed
	}
}

// circuitBreakerAPI wraps DeviceAPI with circuit breaker protection
type circuitBreakerAPI struct {
	api     DeviceAPI
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

var _ DeviceAPI = &circuitBreakerAPI{}

// NewDeviceAPIWithCircuitBreaker wraps a DeviceAPI with circuit breaker protection.
// Busy answers prove the device is reachable and do not count as failures.
func NewDeviceAPIWithCircuitBreaker(api DeviceAPI, config CircuitBreakerConfig, log *logger.Logger) DeviceAPI {
	if log == nil {
		log = logger.Discard()
	}

	host := api.Host()
	notify := config.OnStateChange
	if notify == nil {
		notify = func(string, CircuitBreakerState) {}
	}

	// Interval 0: closed-state counts only reset on a success or a state change
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "radiotherm " + host,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || Classify(err) == KindDeviceBusy
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithHost(host).Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
			notify(host, fromGobreaker(to))
		},
	})
	notify(host, CircuitClosed)

	return &circuitBreakerAPI{
		api:     api,
		breaker: cb,
		timeout: config.Timeout,
	}
}

func execute[T any](cb *circuitBreakerAPI, fn func() (T, error)) (T, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, cb.wrapError(err)
	}
	return result.(T), nil
}

func (cb *circuitBreakerAPI) exec(fn func() error) error {
	_, err := execute(cb, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Host implements DeviceAPI.Host
func (cb *circuitBreakerAPI) Host() string {
	return cb.api.Host()
}

// Tstat implements DeviceAPI.Tstat with circuit breaker protection
func (cb *circuitBreakerAPI) Tstat(ctx context.Context) (TstatState, error) {
	return execute(cb, func() (TstatState, error) { return cb.api.Tstat(ctx) })
}

// Humidity implements DeviceAPI.Humidity with circuit breaker protection
func (cb *circuitBreakerAPI) Humidity(ctx context.Context) (float64, error) {
	return execute(cb, func() (float64, error) { return cb.api.Humidity(ctx) })
}

// Name implements DeviceAPI.Name with circuit breaker protection
func (cb *circuitBreakerAPI) Name(ctx context.Context) (string, error) {
	return execute(cb, func() (string, error) { return cb.api.Name(ctx) })
}

// Sys implements DeviceAPI.Sys with circuit breaker protection
func (cb *circuitBreakerAPI) Sys(ctx context.Context) (SysInfo, error) {
	return execute(cb, func() (SysInfo, error) { return cb.api.Sys(ctx) })
}

// Model implements DeviceAPI.Model with circuit breaker protection
func (cb *circuitBreakerAPI) Model(ctx context.Context) (string, error) {
	return execute(cb, func() (string, error) { return cb.api.Model(ctx) })
}

func (cb *circuitBreakerAPI) SetTargetHeat(ctx context.Context, temp float64) error {
	return cb.exec(func() error { return cb.api.SetTargetHeat(ctx, temp) })
}

func (cb *circuitBreakerAPI) SetTargetCool(ctx context.Context, temp float64) error {
	return cb.exec(func() error { return cb.api.SetTargetCool(ctx, temp) })
}

func (cb *circuitBreakerAPI) SetMode(ctx context.Context, mode Mode) error {
	return cb.exec(func() error { return cb.api.SetMode(ctx, mode) })
}

func (cb *circuitBreakerAPI) SetFanMode(ctx context.Context, mode FanMode) error {
	return cb.exec(func() error { return cb.api.SetFanMode(ctx, mode) })
}

func (cb *circuitBreakerAPI) SetHold(ctx context.Context, hold bool) error {
	return cb.exec(func() error { return cb.api.SetHold(ctx, hold) })
}

func (cb *circuitBreakerAPI) SetTime(ctx context.Context, t time.Time) error {
	return cb.exec(func() error { return cb.api.SetTime(ctx, t) })
}

// wrapError converts circuit breaker errors to user-friendly messages.
// Device errors pass through untouched so they can still be classified.
func (cb *circuitBreakerAPI) wrapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("%w: device is temporarily unavailable (will retry after %v)", ErrCircuitOpen, cb.timeout)
	}

	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit breaker is half-open: testing device recovery")
	}

	return err
}
