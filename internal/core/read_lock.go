package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Read lock polling bounds. Waiting readers poll instead of blocking so that
// cancellation is honoured while a writer holds the corpus.
const (
	readLockInitialBackoff = 100 * time.Microsecond
	readLockMaxBackoff     = 10 * time.Millisecond
)

// ErrReadLockTimeout is returned when read access could not be taken within
// the corpus lock timeout.
var ErrReadLockTimeout = errors.New("timed out waiting for corpus read access")

type readHoldKey struct{ c *Corpus }

// SetLockTimeout bounds how long AcquireRead waits for a writer. Zero waits
// until the context is done.
func (c *Corpus) SetLockTimeout(d time.Duration) {
	c.lockTimeout.Store(int64(d))
}

// AcquireRead takes shared read access to the corpus for the lifetime of
// the returned context. Acquiring again through that context, or any
// context derived from it, does not block even if a writer is waiting. The
// release function is idempotent; the returned context must not be used for
// corpus access after release.
//
// While the lock is held by a writer, AcquireRead waits until it is free or
// ctx is done, in which case ctx.Err() is returned, or until the lock
// timeout passes, in which case ErrReadLockTimeout is returned.
func (c *Corpus) AcquireRead(ctx context.Context) (context.Context, func(), error) {
	if c.holdsRead(ctx) {
		return ctx, func() {}, nil
	}

	var deadline time.Time
	if d := time.Duration(c.lockTimeout.Load()); d > 0 {
		deadline = time.Now().Add(d)
	}

	backoff := readLockInitialBackoff
	for !c.mu.TryRLock() {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ctx, func() {}, ErrReadLockTimeout
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx, func() {}, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, readLockMaxBackoff)
	}

	return context.WithValue(ctx, readHoldKey{c}, true), sync.OnceFunc(c.mu.RUnlock), nil
}

func (c *Corpus) holdsRead(ctx context.Context) bool {
	held, _ := ctx.Value(readHoldKey{c}).(bool)
	return held
}

// withRead runs fn under read access.
func (c *Corpus) withRead(ctx context.Context, fn func()) error {
	_, release, err := c.AcquireRead(ctx)
	if err != nil {
		return err
	}
	defer release()
	fn()
	return nil
}

// withWrite runs fn under exclusive access.
func (c *Corpus) withWrite(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}
