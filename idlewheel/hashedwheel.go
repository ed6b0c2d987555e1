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

package idlewheel

import (
	"sync"
	"time"
)

type entry struct {
	gen      uint64
	onExpire func()
}

// HashedWheel is the default Wheel: a fixed ring of buckets advanced by
// one ticker goroutine. An entry's idle deadline is rounded up to the
// nearest tick and dropped into the bucket that many ticks ahead of the
// wheel's current position; every tick, the wheel fires and discards
// whatever landed in the bucket it just reached.
type HashedWheel struct {
	tick time.Duration

	mu    sync.Mutex
	slots []map[string]*entry
	cur   int
	gen   uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewHashedWheel builds a Wheel with slots buckets advanced every tick.
// A non-positive tick defaults to one second; fewer than one slot
// defaults to one.
func NewHashedWheel(tick time.Duration, slots int) *HashedWheel {
	if tick <= 0 {
		tick = time.Second
	}
	if slots < 1 {
		slots = 1
	}

	w := &HashedWheel{
		tick: tick,
		done: make(chan struct{}),
	}
	w.slots = make([]map[string]*entry, slots)
	for i := range w.slots {
		w.slots[i] = make(map[string]*entry)
	}

	go w.run()
	return w
}

func (w *HashedWheel) run() {
	t := time.NewTicker(w.tick)
	defer t.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-t.C:
			w.advance()
		}
	}
}

func (w *HashedWheel) advance() {
	w.mu.Lock()
	idx := w.cur
	due := w.slots[idx]
	w.slots[idx] = make(map[string]*entry)
	w.cur = (w.cur + 1) % len(w.slots)
	w.mu.Unlock()

	for _, e := range due {
		e.onExpire()
	}
}

// Register implements Wheel.Register.
func (w *HashedWheel) Register(id string, idle time.Duration, onExpire func()) func() {
	ticks := int(idle / w.tick)
	if idle%w.tick != 0 {
		ticks++
	}
	if ticks < 1 {
		ticks = 1
	}

	w.mu.Lock()
	idx := (w.cur + ticks) % len(w.slots)
	w.gen++
	gen := w.gen
	w.slots[idx][id] = &entry{gen: gen, onExpire: onExpire}
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if cur, ok := w.slots[idx][id]; ok && cur.gen == gen {
			delete(w.slots[idx], id)
		}
	}
}

// Close stops the wheel's ticker goroutine. It is idempotent.
func (w *HashedWheel) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}
