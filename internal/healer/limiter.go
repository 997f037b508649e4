package healer

import (
	"fmt"
	"sync"
	"time"
)

// rateLimiter token bucket по числу запросов в минуту.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute int
	tokens    float64
	lastCheck time.Time
	now       func() time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &rateLimiter{
		perMinute: perMinute,
		tokens:    float64(perMinute),
		lastCheck: time.Now(),
		now:       time.Now,
	}
}

func (rl *rateLimiter) allow() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.tokens += now.Sub(rl.lastCheck).Minutes() * float64(rl.perMinute)
	if rl.tokens > float64(rl.perMinute) {
		rl.tokens = float64(rl.perMinute)
	}
	rl.lastCheck = now

	if rl.tokens < 1 {
		return fmt.Errorf("превышен лимит запросов к LLM (%d RPM), повторите через %v",
			rl.perMinute, time.Minute/time.Duration(rl.perMinute))
	}
	rl.tokens--
	return nil
}
