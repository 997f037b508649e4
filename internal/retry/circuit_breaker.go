package retry

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
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

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	state        CircuitState
	failures     int
	lastFailure  time.Time
	now          func() time.Time
	mu           sync.RWMutex
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 5
	}
	if resetTimeout == 0 {
		resetTimeout = 30 * time.Second
	}

	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
}

// Call выполняет fn, если breaker не открыт. Открытый breaker возвращает
// ErrCircuitOpen, помеченную как Permanent.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.failures = 0
		} else {
			cb.mu.Unlock()
			return Permanent(ErrCircuitOpen)
		}
	}

	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()

		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}

		return err
	}

	if cb.state == StateHalfOpen {
		cb.state = StateClosed
	}
	cb.failures = 0

	return nil
}

func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// WithBackoff повторяет fn с экспоненциальной задержкой. Критические ошибки
// (по Classify) не повторяются.
func WithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries == 0 {
		maxRetries = 3
	}
	if baseDelay == 0 {
		baseDelay = 1 * time.Second
	}

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
			maxDelay := 30 * time.Second
			if delay > maxDelay {
				delay = maxDelay
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if Classify("", err).Type == ErrorTypeCritical {
			return err
		}
	}

	return errors.Join(errors.New("max retries exceeded"), lastErr)
}

// BreakerPool хранит отдельный breaker на каждый адрес грида.
type BreakerPool struct {
	maxFailures  int
	resetTimeout time.Duration
	breakers     map[string]*CircuitBreaker
	mu           sync.RWMutex
}

func NewBreakerPool(maxFailures int, resetTimeout time.Duration) *BreakerPool {
	return &BreakerPool{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		breakers:     make(map[string]*CircuitBreaker),
	}
}

var (
	grids     *BreakerPool
	gridsOnce sync.Once
)

// Grids возвращает общий для процесса пул breaker'ов удаленных гридов.
func Grids() *BreakerPool {
	gridsOnce.Do(func() {
		grids = NewBreakerPool(3, time.Minute)
	})
	return grids
}

func (pool *BreakerPool) GetBreaker(key string) *CircuitBreaker {
	pool.mu.RLock()
	if breaker, ok := pool.breakers[key]; ok {
		pool.mu.RUnlock()
		return breaker
	}
	pool.mu.RUnlock()

	pool.mu.Lock()
	defer pool.mu.Unlock()

	if breaker, ok := pool.breakers[key]; ok {
		return breaker
	}

	breaker := NewCircuitBreaker(pool.maxFailures, pool.resetTimeout)
	pool.breakers[key] = breaker
	return breaker
}
