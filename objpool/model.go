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

package objpool

import (
	"sync"
	"sync/atomic"
	"time"
)

// New returns a Pool whose free list starts empty; newFn constructs a fresh
// T whenever Get finds the free list empty. maxCap is the soft capacity cap
// (Return drops instances once the free list reaches it); maxCap <= 0 means
// unbounded.
func New[T Poolable](newFn func() T, maxCap int) Pool[T] {
	return &pool[T]{
		newFn:   newFn,
		free:    make([]T, 0, maxOf(maxCap, 0)),
		maxCap:  maxCap,
		started: time.Now(),
	}
}

type pool[T Poolable] struct {
	mu      sync.Mutex
	free    []T
	maxCap  int
	newFn   func() T
	started time.Time

	created uint64
	gets    uint64
	returns uint64
	dropped uint64
	inUse   int64
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *pool[T]) Get() T {
	p.mu.Lock()
	n := len(p.free)
	if n > 0 {
		x := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		atomic.AddUint64(&p.gets, 1)
		atomic.AddInt64(&p.inUse, 1)
		return x
	}
	p.mu.Unlock()

	x := p.newFn()
	atomic.AddUint64(&p.created, 1)
	atomic.AddUint64(&p.gets, 1)
	atomic.AddInt64(&p.inUse, 1)
	return x
}

func (p *pool[T]) Return(x T) {
	x.PoolReset()
	atomic.AddUint64(&p.returns, 1)
	atomic.AddInt64(&p.inUse, -1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxCap > 0 && len(p.free) >= p.maxCap {
		atomic.AddUint64(&p.dropped, 1)
		return
	}
	p.free = append(p.free, x)
}

func (p *pool[T]) Prealloc(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < n; i++ {
		if p.maxCap > 0 && len(p.free) >= p.maxCap {
			return
		}
		x := p.newFn()
		atomic.AddUint64(&p.created, 1)
		p.free = append(p.free, x)
	}
}

func (p *pool[T]) SetMaxCapacity(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxCap = n
}

func (p *pool[T]) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = p.free[:0]
}

func (p *pool[T]) Trim(retainPct int) {
	if retainPct < 0 {
		retainPct = 0
	}
	if retainPct > 100 {
		retainPct = 100
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	keep := len(p.free) * retainPct / 100
	if keep >= len(p.free) {
		return
	}
	dropped := len(p.free) - keep
	p.free = p.free[:keep]
	atomic.AddUint64(&p.dropped, uint64(dropped))
}

func (p *pool[T]) Stats() Stats {
	p.mu.Lock()
	inPool := len(p.free)
	maxCap := p.maxCap
	p.mu.Unlock()

	return Stats{
		Created:   atomic.LoadUint64(&p.created),
		Gets:      atomic.LoadUint64(&p.gets),
		Returns:   atomic.LoadUint64(&p.returns),
		Dropped:   atomic.LoadUint64(&p.dropped),
		InPool:    inPool,
		InUse:     int(atomic.LoadInt64(&p.inUse)),
		MaxCap:    maxCap,
		StartedAt: p.started,
	}
}
