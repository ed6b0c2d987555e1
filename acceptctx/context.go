/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package acceptctx specializes objpool.Pool to the state an accept worker
// needs for one in-flight Accept call: a pooled Context is rented before each
// accept, issues it, and is returned to the pool once the accept completes
// (successfully or not) so the next accept on the same worker draws a fresh,
// reset instance instead of allocating.
package acceptctx

import (
	"context"
	"net"
	"time"

	"github.com/nabbar/tcpkernel/objpool"
)

// pollInterval is how often a sync-capable listener is polled for a pending
// connection via SetDeadline, letting BeginAccept observe ctx cancellation
// without blocking indefinitely inside the kernel accept call.
const pollInterval = 200 * time.Millisecond

// deadlineSetter is implemented by *net.TCPListener (and any listener the
// caller wraps similarly); when present, BeginAccept uses it to poll instead
// of spawning a goroutine per attempt — the "sync-completion optimization".
type deadlineSetter interface {
	SetDeadline(t time.Time) error
}

// Context is the pooled per-accept-attempt state. It carries no exported
// fields; callers only ever see it through BeginAccept's result.
type Context struct {
	conn net.Conn
	err  error
}

// PoolReset implements objpool.Poolable. It drops any stale conn/err so a
// reused Context starts from a blank slate.
func (c *Context) PoolReset() {
	c.conn = nil
	c.err = nil
}

// Pool is a bounded pool of accept contexts.
type Pool = objpool.Pool[*Context]

// NewPool returns a Pool seeded with New, capped at maxCap (<=0 means
// unbounded).
func NewPool(maxCap int) Pool {
	return objpool.New(func() *Context { return &Context{} }, maxCap)
}

// BeginAccept rents ctx's state for a single accept on ln, and blocks until
// either a connection is accepted, ln reports an error, or parent is
// cancelled. The returned net.Conn is nil iff err is non-nil.
//
// When ln supports SetDeadline, BeginAccept polls it in pollInterval steps
// on the calling goroutine (no extra goroutine needed — the common case at
// low-to-moderate connection rates). Otherwise it falls back to running
// Accept in its own goroutine and racing it against parent.Done().
func (c *Context) BeginAccept(parent context.Context, ln net.Listener) (net.Conn, error) {
	c.PoolReset()

	if dl, ok := ln.(deadlineSetter); ok {
		return c.beginAcceptPolling(parent, ln, dl)
	}
	return c.beginAcceptAsync(parent, ln)
}

func (c *Context) beginAcceptPolling(parent context.Context, ln net.Listener, dl deadlineSetter) (net.Conn, error) {
	for {
		if err := parent.Err(); err != nil {
			return nil, err
		}

		_ = dl.SetDeadline(time.Now().Add(pollInterval))

		conn, err := ln.Accept()
		if err == nil {
			c.conn = conn
			return conn, nil
		}

		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}

		c.err = err
		return nil, err
	}
}

func (c *Context) beginAcceptAsync(parent context.Context, ln net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- result{conn: conn, err: err}
	}()

	select {
	case <-parent.Done():
		return nil, parent.Err()
	case r := <-ch:
		c.conn, c.err = r.conn, r.err
		return r.conn, r.err
	}
}
