package testutil

import (
	"sync"
	"time"
)

// Clock 是可手动推进的时钟。
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock 以给定时间创建时钟。
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now 返回当前时间，并自动前进 1ms 以保证先后创建的记录时间戳严格递增。
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

// Advance 推进时钟。
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
