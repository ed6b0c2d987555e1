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

package tcpserver

import (
	"context"
	"fmt"
	"net"
)

// bind opens the listening socket. EnableIPv6 requests a dual-stack bind on
// "tcp" (":port", the OS's wildcard address, which on most platforms
// accepts both families); should that fail — a host with IPv6 disabled at
// the kernel level is the common case — it falls back to IPv4-only, since
// the specification treats IPv6 as additive, never a hard requirement.
//
// Go's net package has no portable knob for the listen backlog; it always
// asks the kernel for its default (see runtime's listenerBacklog). Backlog
// is accepted on Config for documentation and forward-compatibility but is
// not enforced beyond that default on any platform.
func (s *Server[P]) bind() (net.Listener, error) {
	lc := net.ListenConfig{}
	if s.cfg.ReuseAddress {
		lc.Control = setReuseAddress
	}

	network := "tcp4"
	address := fmt.Sprintf("0.0.0.0:%d", s.cfg.Port)
	if s.cfg.EnableIPv6 {
		network = "tcp"
		address = fmt.Sprintf(":%d", s.cfg.Port)
	}

	ln, err := lc.Listen(context.Background(), network, address)
	if err != nil && s.cfg.EnableIPv6 {
		ln, err = lc.Listen(context.Background(), "tcp4", fmt.Sprintf("0.0.0.0:%d", s.cfg.Port))
	}
	if err != nil {
		return nil, ErrBind.Error(err)
	}
	return ln, nil
}

// configureSocket applies NoDelay and KeepAlive to an accepted connection
// when it is a *net.TCPConn. Go's standard library exposes only
// SetKeepAlivePeriod portably; per-platform probe interval and retry count
// (KeepAlive.Interval, KeepAlive.RetryCount) have no portable stdlib
// equivalent and are accepted on Config for documentation purposes only.
func (s *Server[P]) configureSocket(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	_ = tc.SetNoDelay(s.cfg.NoDelay)

	if s.cfg.KeepAlive.Enable {
		_ = tc.SetKeepAlive(true)
		if s.cfg.KeepAlive.Time > 0 {
			_ = tc.SetKeepAlivePeriod(s.cfg.KeepAlive.Time)
		}
	}
}
