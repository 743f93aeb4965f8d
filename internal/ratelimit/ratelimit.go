package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/svodkanews/svodka/internal/logger"
)

// Budget caps LLM requests per day. The counter resets a day after the
// first use following the previous reset.
type Budget struct {
	mu        sync.Mutex
	count     int
	max       int // 0 = unlimited
	resetTime time.Time
}

func NewBudget(max int) *Budget {
	return &Budget{
		max:       max,
		resetTime: time.Now().Add(24 * time.Hour),
	}
}

// Allow reports whether another request fits the budget without
// consuming it.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	return b.max == 0 || b.count < b.max
}

// Use consumes one request from the budget.
func (b *Budget) Use() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	if b.max > 0 && b.count >= b.max {
		return fmt.Errorf("llm request budget exceeded (%d/%d)", b.count, b.max)
	}
	b.count++
	logger.Debug("llm budget used", "count", b.count, "max", b.max)
	return nil
}

// Stats returns the current usage snapshot.
func (b *Budget) Stats() (used, max int, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count, b.max, b.resetTime
}

func (b *Budget) checkReset() {
	if time.Now().After(b.resetTime) {
		b.count = 0
		b.resetTime = time.Now().Add(24 * time.Hour)
	}
}
