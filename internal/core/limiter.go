package core

// limiter.go bounds how many transfers (ingests and downloads) run at once.
// A transfer holds its slot from the first gateway call until the last byte
// is written. Requests that cannot get a slot within maxWait fail with
// ErrTooManyTransfers instead of queueing indefinitely.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyTransfers is returned when every transfer slot stays occupied
// for the whole wait period.
var ErrTooManyTransfers = errors.New("too many transfers in progress")

const (
	DefaultMaxConcurrentTransfers = 4
	DefaultTransferWait           = 30 * time.Second
)

// TransferLimiter is a counting semaphore with a bounded wait.
type TransferLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewTransferLimiter allows at most maxConcurrent transfers. Non-positive
// arguments fall back to the package defaults.
func NewTransferLimiter(maxConcurrent int, maxWait time.Duration) *TransferLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentTransfers
	}
	if maxWait <= 0 {
		maxWait = DefaultTransferWait
	}
	return &TransferLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, ctx ends, or maxWait elapses.
// Callers must Release exactly once after a nil return.
func (l *TransferLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyTransfers
	}
}

// Release frees a slot taken by Acquire.
func (l *TransferLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of transfers holding a slot.
func (l *TransferLimiter) Active() int {
	return int(l.active.Load())
}

// Available returns the number of free slots.
func (l *TransferLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no transfer holds a slot or ctx ends. Used on
// shutdown so in-flight batches can finish.
func (l *TransferLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a point-in-time snapshot for logging and health checks.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *TransferLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.Active(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
	}
}
