package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xhad/docchat/internal/models"
)

// KeyLock serializes work per string key with a bounded wait. One lock
// exists per conversation; a caller that cannot acquire it within the wait
// window gets ErrConcurrencyConflict instead of queueing forever.
type KeyLock struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewKeyLock() *KeyLock {
	return &KeyLock{
		slots: make(map[string]chan struct{}),
	}
}

// Acquire takes the lock for key, waiting at most wait. The returned
// release function must be called exactly once.
func (l *KeyLock) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", models.ErrConcurrencyConflict, ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("%w: lock wait for %q exceeded %s", models.ErrConcurrencyConflict, key, wait)
	}
}
