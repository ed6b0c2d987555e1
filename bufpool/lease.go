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

package bufpool

import "sync/atomic"

// Lease is borrowed memory handed to a frame's OnProcess subscriber. After
// Dispose, no further access is permitted; the underlying bytes return to
// the pool they were rented from.
type Lease struct {
	pool     *Pool
	b        []byte
	disposed int32
}

// NewLease wraps b, rented from pool, as a disposable Lease.
func NewLease(pool *Pool, b []byte) *Lease {
	return &Lease{pool: pool, b: b}
}

// Span returns the leased bytes. Calling it after Dispose is a programming
// error; the returned slice may already be reused by another Rent.
func (l *Lease) Span() []byte {
	return l.b
}

// Length returns len(Span()).
func (l *Lease) Length() int {
	return len(l.b)
}

// Dispose returns the underlying bytes to the pool, restored to their full
// capacity so a lease over a shorter view of a rented buffer (such as the
// bytes of a partial read) still lands back in its size class. Idempotent:
// only the first call performs the return.
func (l *Lease) Dispose() {
	if !atomic.CompareAndSwapInt32(&l.disposed, 0, 1) {
		return
	}
	l.pool.Return(l.b[:cap(l.b)])
	l.b = nil
}
