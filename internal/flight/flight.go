// Package flight serializes duplicate in-process work, in the manner of
// singleflight but with waiter-aware cancellation: callers that abandon a
// shared call stop waiting immediately, and the underlying work is cancelled
// once nobody is left awaiting it.
//
// The authentication flow needs this stronger contract because an abandoned
// device-flow attempt must stop polling the provider promptly instead of
// burning quota in the background, while an attempt that still has other
// waiters must keep going.
package flight

import (
	"context"
	"sync"
)

type call[T any] struct {
	cancel  context.CancelFunc
	done    chan struct{}
	waiters int

	val T
	err error
}

// Group deduplicates concurrent calls by key. The zero value is ready to use.
type Group[T any] struct {
	mu    sync.Mutex
	calls map[string]*call[T]
}

// Do executes fn, ensuring that at most one execution per key is in flight
// at a time. Concurrent callers with the same key wait for the in-flight
// execution and receive its result.
//
// fn runs on a context that inherits ctx's values but not its cancellation:
// a single caller abandoning the call must not fail it for the others. If
// ctx is cancelled while waiting, Do returns ctx.Err() immediately, and if
// that caller was the last waiter the execution itself is cancelled.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call[T])
	}

	c, ok := g.calls[key]
	if ok {
		c.waiters++
	} else {
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call[T]{
			cancel:  cancel,
			done:    make(chan struct{}),
			waiters: 1,
		}
		g.calls[key] = c
		go g.run(key, c, callCtx, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		g.abandon(key, c)
		var zero T
		return zero, ctx.Err()
	}
}

func (g *Group[T]) run(key string, c *call[T], ctx context.Context, fn func(ctx context.Context) (T, error)) {
	c.val, c.err = fn(ctx)
	c.cancel()

	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()

	close(c.done)
}

func (g *Group[T]) abandon(key string, c *call[T]) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c.waiters--
	if c.waiters == 0 {
		c.cancel()
		if g.calls[key] == c {
			delete(g.calls, key)
		}
	}
}
