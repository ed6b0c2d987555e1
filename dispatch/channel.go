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

package dispatch

import (
	"context"
	"runtime"
	"sync"

	"github.com/nabbar/tcpkernel/catalog"
	"github.com/nabbar/tcpkernel/pctx"
	"github.com/nabbar/tcpkernel/taskgroup"
)

// Priority classifies a queued packet for DispatchChannel. There are
// exactly two classes: a frame the catalog's PriorityHint marks non-zero,
// or one arriving on an authenticated connection, jumps the normal-priority
// backlog; everything else does not.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// authenticated is satisfied by *tcpconn.Connection without importing it,
// keeping dispatch independent of the connection and buffer-pool packages;
// any Conn that exposes this
// method feeds the default priority classification.
type authenticated interface {
	Authenticated() bool
}

func priorityOf(hint catalog.PriorityHint, b []byte, conn pctx.Conn) Priority {
	if hint != nil && hint.Priority(b) > 0 {
		return PriorityHigh
	}
	if a, ok := conn.(authenticated); ok && a.Authenticated() {
		return PriorityHigh
	}
	return PriorityNormal
}

type job[P catalog.Packet] struct {
	packet P
	raw    []byte
	conn   pctx.Conn
}

// DispatchChannel is the C7b dispatcher variant: packets are queued onto
// one of two priority lanes and drained by a fixed-size worker pool, so
// the accepting goroutine never blocks on handler execution under normal
// load.
type DispatchChannel[P catalog.Packet] struct {
	inline     *Inline[P]
	hint       catalog.PriorityHint
	workers    int
	dropOnFull bool

	high   chan job[P]
	normal chan job[P]

	closeOnce sync.Once
	done      chan struct{}
}

// ChannelOption configures a DispatchChannel at construction.
type ChannelOption func(*channelOptions)

type channelOptions struct {
	dropOnFull bool
}

// WithDropOnFull makes Push{Bytes,Packet} drop a frame instead of blocking
// the caller once its priority lane is full. Per §4.7 the channel "MUST
// coalesce or drop only when explicitly configured to" — omitting this
// option means a full lane applies backpressure to the caller (the push
// blocks until a worker drains space, or the dispatcher is stopped) rather
// than silently discarding the frame.
func WithDropOnFull() ChannelOption {
	return func(o *channelOptions) { o.dropOnFull = true }
}

// clampWorkers mirrors the specification's clamp(cores/2, 2, 12) worker
// count derivation.
func clampWorkers() int {
	n := runtime.GOMAXPROCS(0) / 2
	if n < 2 {
		n = 2
	}
	if n > 12 {
		n = 12
	}
	return n
}

// NewDispatchChannel builds a channel dispatcher backed by inline (which
// supplies decode, resolve, and panic isolation). queueDepth bounds each
// priority lane; a non-positive value defaults to 64. By default a full
// lane applies backpressure to the pusher; pass WithDropOnFull to drop
// instead.
func NewDispatchChannel[P catalog.Packet](inline *Inline[P], queueDepth int, opts ...ChannelOption) *DispatchChannel[P] {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	var o channelOptions
	for _, fn := range opts {
		fn(&o)
	}
	hint, _ := inline.catalog.(catalog.PriorityHint)
	return &DispatchChannel[P]{
		inline:     inline,
		hint:       hint,
		workers:    clampWorkers(),
		dropOnFull: o.dropOnFull,
		high:       make(chan job[P], queueDepth),
		normal:     make(chan job[P], queueDepth),
		done:       make(chan struct{}),
	}
}

// Start launches the worker pool under tg, tagged with group. It returns
// once every worker has been admitted; workers run until Stop is called.
func (d *DispatchChannel[P]) Start(tg *taskgroup.Group, group string) error {
	for i := 0; i < d.workers; i++ {
		if err := tg.StartWeighted("worker", group, int64(d.workers), d.runWorker); err != nil {
			return err
		}
	}
	return nil
}

func (d *DispatchChannel[P]) runWorker(ctx context.Context) error {
	for {
		select {
		case <-d.done:
			return nil
		case <-ctx.Done():
			return nil
		case j := <-d.high:
			d.run(j)
		default:
			select {
			case <-d.done:
				return nil
			case <-ctx.Done():
				return nil
			case j := <-d.high:
				d.run(j)
			case j := <-d.normal:
				d.run(j)
			}
		}
	}
}

func (d *DispatchChannel[P]) run(j job[P]) {
	if j.raw != nil {
		d.inline.HandleBytes(j.raw, j.conn)
		return
	}
	d.inline.HandlePacket(j.packet, j.conn)
}

// PushBytes enqueues an undecoded frame. Decoding happens on the worker
// goroutine, inside Inline.HandleBytes; priority is classified up front
// from the raw payload via the catalog's optional PriorityHint, falling
// back to the connection's authentication state.
func (d *DispatchChannel[P]) PushBytes(b []byte, conn pctx.Conn) bool {
	j := job[P]{raw: b, conn: conn}
	lane := d.normal
	if priorityOf(d.hint, b, conn) == PriorityHigh {
		lane = d.high
	}
	return d.push(lane, j)
}

// PushPacket enqueues an already-decoded packet, classifying it via
// priorityOf (PriorityHint first, then connection authentication).
func (d *DispatchChannel[P]) PushPacket(pkt P, b []byte, conn pctx.Conn) bool {
	j := job[P]{packet: pkt, conn: conn}
	lane := d.normal
	if priorityOf(d.hint, b, conn) == PriorityHigh {
		lane = d.high
	}
	return d.push(lane, j)
}

// push enqueues j onto lane. With dropOnFull, a full lane drops j
// immediately (the original behavior); otherwise push blocks the caller
// until the lane has room or the dispatcher is stopped, so a burst of
// traffic applies backpressure instead of silently losing frames.
func (d *DispatchChannel[P]) push(lane chan job[P], j job[P]) bool {
	if d.dropOnFull {
		select {
		case lane <- j:
			return true
		default:
			return false
		}
	}
	select {
	case lane <- j:
		return true
	case <-d.done:
		return false
	}
}

// Stop signals every worker to exit after it finishes whatever job it is
// currently running. It is idempotent.
func (d *DispatchChannel[P]) Stop() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
}
