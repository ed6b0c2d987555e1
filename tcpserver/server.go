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

// Package tcpserver is the listener core (C4): it owns the accept loop,
// binds together the buffer pool, the pooled packet context, and the
// dispatcher a caller selected, and reports its own lifecycle and
// operational state on demand.
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/nabbar/tcpkernel/acceptctx"
	"github.com/nabbar/tcpkernel/admission"
	"github.com/nabbar/tcpkernel/bufpool"
	"github.com/nabbar/tcpkernel/catalog"
	"github.com/nabbar/tcpkernel/dispatch"
	"github.com/nabbar/tcpkernel/idlewheel"
	"github.com/nabbar/tcpkernel/pctx"
	"github.com/nabbar/tcpkernel/pktlog"
	"github.com/nabbar/tcpkernel/taskgroup"
	"github.com/nabbar/tcpkernel/tcpconn"
)

// unboundedWeight sizes a taskgroup semaphore for the per-connection process
// subgroup, where one worker runs per accepted connection for its entire
// lifetime rather than drawing from a small fixed pool.
const unboundedWeight = math.MaxInt32

// AcceptHook is called once per accepted connection, after socket options
// are applied and after the connection is registered (idle wheel and
// connection table), just before its read loop starts, letting a caller
// observe raw connections. The hook cannot replace the connection.
type AcceptHook func(conn net.Conn)

// Option configures optional collaborators a Server does not construct a
// default for unless asked.
type Option[P catalog.Packet] func(*Server[P])

// WithAdmission installs a Controller consulted before each accepted
// connection is handed to the catalog. Omitted entirely, no admission
// control is applied.
func WithAdmission[P catalog.Packet](c admission.Controller) Option[P] {
	return func(s *Server[P]) { s.admission = c }
}

// WithIdleWheel installs a caller-owned idle-timeout Wheel instead of the
// default HashedWheel the Server builds for itself when
// Config.EnableTimeout is set. The Wheel is used only while
// Config.EnableTimeout is set and Config.IdleTimeout is positive. The caller
// remains responsible for closing a Wheel it supplies.
func WithIdleWheel[P catalog.Packet](w idlewheel.Wheel) Option[P] {
	return func(s *Server[P]) { s.idle, s.ownIdle = w, false }
}

// WithAcceptHook installs an AcceptHook.
func WithAcceptHook[P catalog.Packet](fn AcceptHook) Option[P] {
	return func(s *Server[P]) { s.acceptHook = fn }
}

// WithLogger overrides the discard logger New installs by default.
func WithLogger[P catalog.Packet](log pktlog.Logger) Option[P] {
	return func(s *Server[P]) { s.log = log }
}

// WithMetricsRegisterer installs the prometheus.Registerer the buffer pool's
// class gauges are registered against when Config.EnableAnalytics is set.
// Omitted while EnableAnalytics is set, New falls back to
// prometheus.DefaultRegisterer.
func WithMetricsRegisterer[P catalog.Packet](reg prometheus.Registerer) Option[P] {
	return func(s *Server[P]) { s.metricsReg = reg }
}

// Server is the generic listener core, parameterized by the concrete packet
// type its catalog decodes into.
type Server[P catalog.Packet] struct {
	cfg      Config
	catalog  catalog.Catalog
	handlers dispatch.HandlerTable[P]
	log      pktlog.Logger

	admission  admission.Controller
	idle       idlewheel.Wheel
	ownIdle    bool
	acceptHook AcceptHook
	metricsReg prometheus.Registerer

	bufPool    *bufpool.Pool
	pctxPool   *pctx.Pool[P]
	acceptPool acceptctx.Pool
	inline     *dispatch.Inline[P]
	channel    *dispatch.DispatchChannel[P]

	state int32

	ln     net.Listener
	tg     *taskgroup.Group
	cancel context.CancelFunc
	group  string

	connMu sync.Mutex
	conns  map[string]*tcpconn.Connection
}

// New validates cfg and cat/handlers, builds every internal collaborator
// (buffer pool, packet-context pool, accept-context pool, and the selected
// dispatcher), and returns a Server ready for Activate. Construction fails
// outright rather than leaving a partially usable Server, per §7: a nil
// catalog or handler table, or a Config that fails validation, are both
// reported here instead of surfacing later as a nil-pointer panic.
func New[P catalog.Packet](cfg Config, cat catalog.Catalog, handlers dispatch.HandlerTable[P], opts ...Option[P]) (*Server[P], error) {
	if err := cfg.Validate(); err != nil {
		return nil, ErrInvalidConfig.Error(err)
	}
	if cat == nil || handlers == nil {
		return nil, ErrMissingCollaborator.Error()
	}

	s := &Server[P]{
		cfg:      cfg,
		catalog:  cat,
		handlers: handlers,
		log:      pktlog.Discard(),
		conns:    make(map[string]*tcpconn.Connection),
	}

	for _, o := range opts {
		o(s)
	}

	bpCfg, err := cfg.bufpoolConfig()
	if err != nil {
		return nil, ErrInvalidConfig.Error(err)
	}

	s.bufPool, err = bufpool.New(bpCfg, s.log)
	if err != nil {
		return nil, err
	}

	if cfg.EnableAnalytics {
		reg := s.metricsReg
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		s.bufPool.EnableAnalytics(reg)
		s.bufPool.SnapshotObserved()
	}

	s.pctxPool = pctx.NewPool[P](cfg.PacketContextPreallocate, cfg.PacketContextMaxCapacity)
	s.acceptPool = acceptctx.NewPool(cfg.MaxParallel)

	s.inline, err = dispatch.NewInline[P](cat, handlers, s.pctxPool, s.log)
	if err != nil {
		return nil, err
	}

	if cfg.UseChannelDispatch {
		var chOpts []dispatch.ChannelOption
		if cfg.DispatchDropOnFull {
			chOpts = append(chOpts, dispatch.WithDropOnFull())
		}
		s.channel = dispatch.NewDispatchChannel[P](s.inline, cfg.ChannelQueueDepth, chOpts...)
	}

	if !cfg.EnableTimeout || cfg.IdleTimeout <= 0 {
		s.idle, s.ownIdle = nil, false
	}
	if s.idle == nil && cfg.EnableTimeout && cfg.IdleTimeout > 0 {
		s.idle = idlewheel.NewHashedWheel(cfg.IdleTimeout/4, 64)
		s.ownIdle = true
	}

	return s, nil
}

// Activate binds the listener and starts every worker the Server needs.
// It is a no-op error, ErrInvalidState, when called outside StateStopped.
func (s *Server[P]) Activate(parent context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, int32(StateStopped), int32(StateStarting)) {
		return ErrInvalidState.Error()
	}

	ln, err := s.bind()
	if err != nil {
		atomic.StoreInt32(&s.state, int32(StateStopped))
		return err
	}
	s.ln = ln

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.tg = taskgroup.New(ctx)

	port := s.cfg.Port
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}
	s.group = fmt.Sprintf("tcp/%d", port)

	if s.cfg.EnableMemoryTrimming {
		if err = s.bufPool.StartTrim(s.tg, s.group+"/trim", "trim"); err != nil {
			s.log.WithFields(nil).Warn(err.Error())
		}
	}

	if s.channel != nil {
		if err = s.channel.Start(s.tg, "packet-dispatch"); err != nil {
			atomic.StoreInt32(&s.state, int32(StateStopped))
			return err
		}
	}

	for i := 0; i < s.cfg.MaxParallel; i++ {
		name := fmt.Sprintf("accept-%d", i)
		if err = s.tg.StartWeighted(name, s.group, int64(s.cfg.MaxParallel), s.acceptLoop); err != nil {
			atomic.StoreInt32(&s.state, int32(StateStopped))
			return err
		}
	}

	atomic.StoreInt32(&s.state, int32(StateRunning))
	return nil
}

// acceptLoop is the body of every accept worker: rent an accept context,
// block on it, and hand the resulting connection off to its own tracked
// worker under the process subgroup.
func (s *Server[P]) acceptLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		actx := s.acceptPool.Get()
		conn, err := actx.BeginAccept(ctx, s.ln)
		s.acceptPool.Return(actx)

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithFields(nil).Warn(err.Error())
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if s.admission != nil && !s.admission.Allow(conn.RemoteAddr()) {
			_ = conn.Close()
			time.Sleep(10 * time.Millisecond)
			continue
		}

		procGroup := s.group + "/process"
		c := conn
		if startErr := s.tg.StartWeighted("process", procGroup, unboundedWeight, func(ctx context.Context) error {
			s.handleAccepted(ctx, c)
			return nil
		}); startErr != nil {
			_ = c.Close()
		}
	}
}

// handleAccepted wraps an accepted net.Conn in a tcpconn.Connection, wires
// dispatch and idle-timeout bookkeeping, registers it, and blocks serving
// frames until the connection closes.
func (s *Server[P]) handleAccepted(_ context.Context, raw net.Conn) {
	s.configureSocket(raw)

	corrID, uerr := uuid.GenerateUUID()
	if uerr != nil {
		corrID = raw.RemoteAddr().String()
	}

	conn := tcpconn.New(raw, s.bufPool, s.log)

	var cancelIdle func()
	if s.idle != nil {
		cancelIdle = s.idle.Register(corrID, s.cfg.IdleTimeout, func() { _ = conn.Close() })
	}

	conn.OnProcess(func(c *tcpconn.Connection, lease *bufpool.Lease) {
		if s.idle != nil {
			if cancelIdle != nil {
				cancelIdle()
			}
			cancelIdle = s.idle.Register(corrID, s.cfg.IdleTimeout, func() { _ = c.Close() })
		}
		s.dispatchLease(c, lease)
	})

	conn.OnClose(func(c *tcpconn.Connection) {
		if s.admission != nil {
			s.admission.OnClose(raw.RemoteAddr())
		}
		if cancelIdle != nil {
			cancelIdle()
		}
		s.removeConn(corrID)
	})

	s.addConn(corrID, conn)

	if s.acceptHook != nil {
		s.acceptHook(raw)
	}

	s.log.WithFields(nil).Debug(fmt.Sprintf("tcpserver: connection %s accepted (%s)", corrID, conn.RemoteAddr()))

	conn.Serve(s.cfg.BufferSize)
}

// dispatchLease routes a leased frame to whichever dispatcher the Server
// was built with. The channel dispatcher processes on a different
// goroutine than the one that produced lease, so its bytes are copied and
// the lease is disposed before queuing — Span documents that its
// backing array may already be reused by another Rent once it returns, and
// that reuse would otherwise race the dispatch worker's read of it. The
// inline dispatcher runs synchronously, so it can safely hold the lease
// open for the duration of the call.
func (s *Server[P]) dispatchLease(conn *tcpconn.Connection, lease *bufpool.Lease) {
	if s.channel != nil {
		b := append([]byte(nil), lease.Span()...)
		lease.Dispose()
		if !s.channel.PushBytes(b, conn) {
			s.log.WithFields(nil).Warn(fmt.Sprintf("tcpserver: dispatch queue full, dropping frame from %s", conn.RemoteAddr()))
		}
		return
	}

	defer lease.Dispose()
	s.inline.HandleBytes(lease.Span(), conn)
}

// Deactivate tears the Server down: the listener stops accepting, every
// accept and process worker is cancelled and waited on, and every tracked
// connection is closed. The five actions are independent of each other, so
// they run concurrently via an errgroup rather than one after another.
func (s *Server[P]) Deactivate(parent context.Context) error {
	for {
		cur := atomic.LoadInt32(&s.state)
		if State(cur) != StateRunning && State(cur) != StateStarting {
			return ErrInvalidState.Error()
		}
		if atomic.CompareAndSwapInt32(&s.state, cur, int32(StateStopping)) {
			break
		}
	}

	if parent == nil {
		parent = context.Background()
	}

	var eg errgroup.Group

	eg.Go(func() error {
		s.cancel()
		return nil
	})
	eg.Go(func() error {
		return s.ln.Close()
	})
	eg.Go(func() error {
		s.tg.CancelGroup(s.group)
		return s.tg.Wait(s.group)
	})
	eg.Go(func() error {
		group := s.group + "/process"
		s.tg.CancelGroup(group)
		return s.tg.Wait(group)
	})
	eg.Go(func() error {
		s.closeAllConns()
		return nil
	})

	err := eg.Wait()

	if s.channel != nil {
		s.channel.Stop()
	}
	if s.ownIdle {
		if w, ok := s.idle.(*idlewheel.HashedWheel); ok {
			w.Close()
		}
	}

	atomic.StoreInt32(&s.state, int32(StateStopped))
	return err
}

// State returns the Server's current lifecycle state.
func (s *Server[P]) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Server[P]) addConn(id string, c *tcpconn.Connection) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[id] = c
}

func (s *Server[P]) removeConn(id string) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, id)
}

func (s *Server[P]) closeAllConns() {
	s.connMu.Lock()
	conns := make([]*tcpconn.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connMu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// Report assembles the on-demand operational snapshot described in §4.9.
func (s *Server[P]) Report() Report {
	s.connMu.Lock()
	n := len(s.conns)
	s.connMu.Unlock()

	protocol := "tcp4"
	if s.cfg.EnableIPv6 {
		protocol = "tcp"
	}

	port := s.cfg.Port
	disposed := s.State() == StateStopped
	if s.ln != nil {
		if tcpAddr, ok := s.ln.Addr().(*net.TCPAddr); ok {
			port = tcpAddr.Port
		}
	}

	return Report{
		Port:         port,
		State:        s.State().String(),
		Disposed:     disposed,
		Protocol:     protocol,
		Connections:  n,
		MaxParallel:  s.cfg.MaxParallel,
		BufferSize:   s.cfg.BufferSize,
		Backlog:      s.cfg.Backlog,
		KeepAlive:    s.cfg.KeepAlive.Enable,
		ReuseAddress: s.cfg.ReuseAddress,
		EnableIPv6:   s.cfg.EnableIPv6,
		WorkerGroup:  s.group,
	}
}
