package discovery

import (
	"context"
	"sync"
)

// Completion is the single-resolution handle signaling that a discovery
// window has closed. It resolves exactly once: with nil after a natural
// timeout (or immediately for a zero-duration run), or with an error when
// the subscribe request failed or the session was stopped.
//
// Callers may wait on Done, call Await, or ignore the handle entirely.
type Completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// resolve records the outcome. Only the first call has any effect; it
// reports whether this call was the one that resolved the handle.
func (c *Completion) resolve(err error) bool {
	resolved := false
	c.once.Do(func() {
		c.err = err
		close(c.done)
		resolved = true
	})
	return resolved
}

// Done returns a channel that is closed once the discovery window has
// closed.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Resolved reports whether the handle has been resolved.
func (c *Completion) Resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Err returns the resolution outcome. It returns nil while the handle is
// still pending; wait on Done before distinguishing "pending" from
// "resolved successfully".
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Await blocks until the discovery window closes or ctx is cancelled, and
// returns the resolution outcome. Cancelling ctx abandons the wait, it does
// not stop the session.
func (c *Completion) Await(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.err
	}
}
