package download

import (
	"context"
	"sync"
	"sync/atomic"
)

// Controls is the shared pause/cancel signaling state consulted by all
// workers. Pause is transport-level: workers block in AwaitResume between
// body reads, so open connections keep their buffered bytes and no received
// data is discarded. Cancellation is a cooperative, irreversible token; the
// coordinator reacts to it by cancelling the workers' context.
type Controls struct {
	mu        sync.Mutex
	completed int
	gate      chan struct{} // closed while running, open while paused

	paused    atomic.Bool
	cancelled atomic.Bool
}

func NewControls() *Controls {
	gate := make(chan struct{})
	close(gate)
	return &Controls{gate: gate}
}

// TogglePause flips the pause flag and returns the new state.
func (c *Controls) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused.Load() {
		close(c.gate)
		c.paused.Store(false)
	} else {
		c.gate = make(chan struct{})
		c.paused.Store(true)
	}
	return c.paused.Load()
}

func (c *Controls) IsPaused() bool {
	return c.paused.Load()
}

// RequestCancel sets the cancellation flag. It is irreversible for the
// session. A paused download is released first so blocked workers can observe
// the cancellation.
func (c *Controls) RequestCancel() {
	if !c.cancelled.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused.Load() {
		close(c.gate)
		c.paused.Store(false)
	}
}

func (c *Controls) IsCancelled() bool {
	return c.cancelled.Load()
}

// AwaitResume blocks while the download is paused. It returns nil once
// reception may continue, or the context error if the transfer is aborted
// while waiting. Implements client.Gate.
func (c *Controls) AwaitResume(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.paused.Load() {
			c.mu.Unlock()
			return nil
		}
		gate := c.gate
		c.mu.Unlock()

		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// MarkCompleted records one worker's successful exit. The counter is the only
// field multiple workers write, hence the mutex.
func (c *Controls) MarkCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed++
}

// Completed returns the number of workers that have finished successfully.
func (c *Controls) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}
