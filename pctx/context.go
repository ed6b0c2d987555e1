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

// Package pctx is the C8 pooled per-invocation value handed to handlers: a
// packet, its connection, free-form metadata, and a cancellation token,
// recycled through objpool instead of allocated per packet.
package pctx

import (
	"context"
	"sync/atomic"

	"github.com/nabbar/tcpkernel/catalog"
	"github.com/nabbar/tcpkernel/objpool"
)

type state int32

const (
	statePooled state = iota
	stateInUse
	stateReturned
)

// Conn is the minimal surface pctx needs from a connection; tcpconn.Connection
// satisfies it structurally, with no import dependency in either direction.
type Conn interface {
	RemoteAddr() string
}

// Context is the pooled per-invocation record. The zero value is not ready
// for use; obtain one from a Pool.
type Context[P catalog.Packet] struct {
	st     int32
	packet P
	conn   Conn
	meta   map[string]interface{}
	ctx    context.Context
	cancel context.CancelFunc
	skip   bool

	pool objpool.Pool[*Context[P]]
}

// PoolReset implements objpool.Poolable.
func (c *Context[P]) PoolReset() {
	var zero P
	atomic.StoreInt32(&c.st, int32(statePooled))
	c.packet = zero
	c.conn = nil
	c.meta = nil
	c.ctx = nil
	c.cancel = nil
	c.skip = false
}

// Pool is a bounded pool of packet contexts for packet type P.
type Pool[P catalog.Packet] struct {
	inner objpool.Pool[*Context[P]]
}

// NewPool returns a Pool preallocating prealloc instances and capping the
// free list at maxCap (<=0 means unbounded).
func NewPool[P catalog.Packet](prealloc, maxCap int) *Pool[P] {
	var p *Pool[P]
	inner := objpool.New(func() *Context[P] {
		return &Context[P]{pool: p.inner}
	}, maxCap)
	p = &Pool[P]{inner: inner}
	if prealloc > 0 {
		inner.Prealloc(prealloc)
	}
	return p
}

// Rent obtains a Context in the Pooled state from the pool, without
// transitioning it to InUse; call Initialize next.
func (p *Pool[P]) Rent() *Context[P] {
	c := p.inner.Get()
	c.pool = p.inner
	return c
}

// Stats returns the backing pool's statistics snapshot.
func (p *Pool[P]) Stats() objpool.Stats {
	return p.inner.Stats()
}

// Initialize atomically transitions Pooled→InUse and populates the context.
// Calling Initialize on a context that is not Pooled is a programming error
// and panics, mirroring the single-interlocked-write contract.
func (c *Context[P]) Initialize(parent context.Context, packet P, conn Conn, meta map[string]interface{}) {
	if !atomic.CompareAndSwapInt32(&c.st, int32(statePooled), int32(stateInUse)) {
		panic("pctx: Initialize called on a context that is not Pooled")
	}

	ctx, cancel := context.WithCancel(parent)
	c.packet = packet
	c.conn = conn
	c.meta = meta
	c.ctx = ctx
	c.cancel = cancel
}

// Packet returns the decoded packet this context carries.
func (c *Context[P]) Packet() P { return c.packet }

// Connection returns the connection this context was initialized with.
func (c *Context[P]) Connection() Conn { return c.conn }

// Context returns the cancellation context linked to this invocation.
func (c *Context[P]) Context() context.Context { return c.ctx }

// Meta returns the free-form metadata map (may be nil).
func (c *Context[P]) Meta() map[string]interface{} { return c.meta }

// SkipOutbound reports whether the handler has requested that no reply be
// sent for this invocation.
func (c *Context[P]) SkipOutbound() bool { return c.skip }

// SetSkipOutbound sets the skip-outbound flag.
func (c *Context[P]) SetSkipOutbound(v bool) { c.skip = v }

// InUse reports whether the context is currently checked out to a handler.
func (c *Context[P]) InUse() bool {
	return atomic.LoadInt32(&c.st) == int32(stateInUse)
}

// Return atomically transitions InUse→Returned and hands the instance back
// to its pool; called from any other state, it is a no-op (the contract
// guarantees exactly one pool reinsertion no matter how many times Return
// is invoked).
func (c *Context[P]) Return() {
	if !atomic.CompareAndSwapInt32(&c.st, int32(stateInUse), int32(stateReturned)) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.pool != nil {
		c.pool.Return(c)
	}
}
