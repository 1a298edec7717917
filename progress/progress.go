// Package progress implements the single-producer feedback
// channel for long-running syncs (spec.md §4.5): a broadcast-of-latest-value
// channel where the engine posts SyncEvent values and any number of
// observers can read the current value or wait for the next one.
package progress

import (
	"context"
	"sync"
)

// Phase is the lifecycle stage a SyncEvent reports.
type Phase int

const (
	NotStarted Phase = iota
	Started
	InProgress
	Finished
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "NotStarted"
	case Started:
		return "Started"
	case InProgress:
		return "InProgress"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// SyncEvent is the value posted to a Channel. Which fields are meaningful
// depends on Phase: Calendar/ItemsDone/Details only apply to InProgress,
// Success only to Finished. There is no ordering guarantee beyond monotonic
// progression through the lifecycle states, and InProgress events may be
// coalesced — a consumer observing only the latest value is acceptable
// (spec.md §4.5).
type SyncEvent struct {
	Phase     Phase
	Calendar  string
	ItemsDone int
	Details   string
	Success   bool
}

// Channel is a single-writer broadcast-of-latest-value channel. Grounded on
// internal/daemon.Daemon's stopChan: a channel that is closed to signal all
// waiters at once and then replaced, rather than sent-on, so that any
// number of observers can notice the same update without racing to drain a
// single value.
type Channel struct {
	mu      sync.Mutex
	current SyncEvent
	waiters chan struct{}
}

// NewChannel returns a Channel whose current value is NotStarted.
func NewChannel() *Channel {
	return &Channel{
		current: SyncEvent{Phase: NotStarted},
		waiters: make(chan struct{}),
	}
}

// Post publishes ev as the new current value and wakes every observer
// blocked in Wait. Only the engine should call this.
func (c *Channel) Post(ev SyncEvent) {
	c.mu.Lock()
	c.current = ev
	old := c.waiters
	c.waiters = make(chan struct{})
	c.mu.Unlock()
	close(old)
}

// Current returns the latest posted value without blocking.
func (c *Channel) Current() SyncEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Wait blocks until the next Post call (or ctx is done), then returns the
// new current value. Since updates may be coalesced, a waiter is not
// guaranteed to observe every intermediate event — only the latest one at
// the time it wakes.
func (c *Channel) Wait(ctx context.Context) (SyncEvent, error) {
	c.mu.Lock()
	waitCh := c.waiters
	c.mu.Unlock()

	select {
	case <-waitCh:
		return c.Current(), nil
	case <-ctx.Done():
		return SyncEvent{}, ctx.Err()
	}
}
