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

// Package tcpconn is the C5 Connection: it owns one accepted socket, reads
// length-independent frames off it, hands each frame to the registered
// OnProcess subscriber as a Lease, and raises OnPostProcess/OnClose around
// that work. Close is idempotent from any goroutine.
package tcpconn

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/nabbar/tcpkernel/bufpool"
	"github.com/nabbar/tcpkernel/pktlog"
)

// State is one of Open, Closing, Closed.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ProcessFunc handles one received frame, delivered as a Lease the handler
// must Dispose (directly or via the dispatcher) when done with it.
type ProcessFunc func(conn *Connection, lease *bufpool.Lease)

// PostProcessFunc runs after a frame has been handled.
type PostProcessFunc func(conn *Connection)

// CloseFunc runs exactly once, when the connection is torn down.
type CloseFunc func(conn *Connection)

// Connection owns one accepted net.Conn.
type Connection struct {
	conn net.Conn
	pool *bufpool.Pool
	log  pktlog.Logger

	state     int32
	closeOnce sync.Once

	mu            sync.Mutex
	onProcess     []ProcessFunc
	onPostProcess []PostProcessFunc
	onClose       []CloseFunc
	authenticated int32
}

// New wraps conn for reading, leasing received frames from pool.
func New(conn net.Conn, pool *bufpool.Pool, log pktlog.Logger) *Connection {
	return &Connection{
		conn:  conn,
		pool:  pool,
		log:   log,
		state: int32(StateOpen),
	}
}

// RemoteAddr returns the textual remote endpoint; satisfies pctx.Conn.
func (c *Connection) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// EndPoint returns the underlying net.Addr.
func (c *Connection) EndPoint() net.Addr {
	return c.conn.RemoteAddr()
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	return State(atomic.LoadInt32(&c.state))
}

// Authenticated reports the host-set authentication flag, consulted by the
// channel dispatcher's priority classification.
func (c *Connection) Authenticated() bool {
	return atomic.LoadInt32(&c.authenticated) != 0
}

// SetAuthenticated lets the host's OnProcess hook mark a connection as
// authenticated (e.g. after a handshake), raising its dispatch priority.
func (c *Connection) SetAuthenticated(v bool) {
	var n int32
	if v {
		n = 1
	}
	atomic.StoreInt32(&c.authenticated, n)
}

// OnProcess subscribes fn to every received frame. Subscribing while the
// connection is not Open is a no-op (there will be no more frames).
func (c *Connection) OnProcess(fn ProcessFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if State(atomic.LoadInt32(&c.state)) != StateOpen {
		return
	}
	c.onProcess = append(c.onProcess, fn)
}

// OnPostProcess subscribes fn to run after each frame's handler completes.
func (c *Connection) OnPostProcess(fn PostProcessFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if State(atomic.LoadInt32(&c.state)) != StateOpen {
		return
	}
	c.onPostProcess = append(c.onPostProcess, fn)
}

// OnClose subscribes fn to run exactly once when the connection closes.
func (c *Connection) OnClose(fn CloseFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if State(atomic.LoadInt32(&c.state)) == StateClosed {
		return
	}
	c.onClose = append(c.onClose, fn)
}

// deliver invokes every OnProcess subscriber with lease, then every
// OnPostProcess subscriber, matching the emit order documented in §4.5.
func (c *Connection) deliver(lease *bufpool.Lease) {
	c.mu.Lock()
	procs := append([]ProcessFunc(nil), c.onProcess...)
	posts := append([]PostProcessFunc(nil), c.onPostProcess...)
	c.mu.Unlock()

	for _, fn := range procs {
		fn(c, lease)
	}
	for _, fn := range posts {
		fn(c)
	}
}

// Serve reads frames off the socket until it errors or Close is called,
// dispatching each to deliver. frameSize bounds the read buffer leased per
// frame; this core does not impose a wire framing convention beyond reading
// up to frameSize bytes per Read call, matching the specification's
// treatment of concrete framing as an external, catalog-owned concern.
func (c *Connection) Serve(frameSize int) {
	defer c.Close()

	for {
		if c.State() != StateOpen {
			return
		}

		buf, rentErr := c.pool.Rent(frameSize)
		if rentErr != nil {
			c.log.WithFields(nil).Warn(rentErr.Error())
			return
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			lease := bufpool.NewLease(c.pool, buf[:n])
			c.deliver(lease)
		} else {
			c.pool.Return(buf)
		}

		if err != nil {
			return
		}
	}
}

// Write sends b on the underlying socket.
func (c *Connection) Write(b []byte) (int, error) {
	return c.conn.Write(b)
}

// Close tears the connection down. Idempotent: only the first caller runs
// the close hooks and releases the socket; subsequent calls are no-ops.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.state, int32(StateClosing))

		c.mu.Lock()
		hooks := append([]CloseFunc(nil), c.onClose...)
		c.onClose = nil
		c.onProcess = nil
		c.onPostProcess = nil
		c.mu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			hooks[i](c)
		}

		err = c.conn.Close()
		atomic.StoreInt32(&c.state, int32(StateClosed))
	})
	return err
}
