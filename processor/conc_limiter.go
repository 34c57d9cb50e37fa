package processor

import (
	"sync"
)

// ConcLimiter bounds the number of goroutines in flight. Increase blocks
// while the pool is full and Wait returns once every started goroutine
// has called Decrease.
type ConcLimiter struct {
	*sync.WaitGroup
	Pool chan struct{}
}

func (c *ConcLimiter) Increase() {
	c.Add(1)
	c.Pool <- struct{}{}
}

func (c *ConcLimiter) Decrease() {
	select {
	case <-c.Pool:
		c.Done()
	default:
	}
}

// NewConcLimiter creates a limiter admitting cLevel goroutines. Levels
// below one admit a single goroutine.
func NewConcLimiter(cLevel int) *ConcLimiter {
	if cLevel < 1 {
		cLevel = 1
	}
	var wg sync.WaitGroup
	return &ConcLimiter{&wg, make(chan struct{}, cLevel)}
}
