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

package admission

import (
	"math"
	"net"
	"sync"
	"time"
)

// bucket is one remote key's token state: tokens refill continuously at
// rate per second up to burst, and Allow spends one token per admitted
// connection.
type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func (b *bucket) allow(rate, burst float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens = math.Min(burst, b.tokens+elapsed*rate)

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// LeakyBucket is the default Controller: each remote key accrues tokens at
// a fixed rate up to a burst cap, keyed by the remote's host (port
// stripped, so every connection from the same peer shares one bucket).
type LeakyBucket struct {
	rate    float64
	burst   float64
	buckets sync.Map
}

// NewLeakyBucket builds a Controller admitting at most rate connections
// per second per remote host, bursting up to burst. A non-positive burst
// defaults to 1.
func NewLeakyBucket(rate float64, burst int) *LeakyBucket {
	if burst < 1 {
		burst = 1
	}
	return &LeakyBucket{rate: rate, burst: float64(burst)}
}

func remoteKey(remote net.Addr) string {
	if remote == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(remote.String())
	if err != nil {
		return remote.String()
	}
	return host
}

func (l *LeakyBucket) Allow(remote net.Addr) bool {
	key := remoteKey(remote)
	v, _ := l.buckets.LoadOrStore(key, &bucket{tokens: l.burst, last: time.Now()})
	return v.(*bucket).allow(l.rate, l.burst)
}

// OnClose drops the bucket kept for remote whenever one of its connections
// closes, so a peer that reconnects starts fresh rather than accumulating
// state forever. Open connections from the same remote are not counted: the
// bucket is dropped on the first close.
func (l *LeakyBucket) OnClose(remote net.Addr) {
	l.buckets.Delete(remoteKey(remote))
}
