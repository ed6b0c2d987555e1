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

// Package objpool provides a generic, bounded pool of reusable values, the
// C2 component of the TCP server runtime core: every other pool in this
// module (accept contexts, packet contexts) is a specialization of it.
package objpool

import "time"

// Poolable is the capability a pooled value must implement: it must be able
// to reset itself to a fresh, reusable state before being returned to the
// pool. It carries no checked-out state, and Pool.Return does not detect a
// value returned twice: each Return inserts it into the free list again.
type Poolable interface {
	// PoolReset restores the value to the state a freshly constructed value
	// would have. Called by Return before the value re-enters the free list.
	PoolReset()
}

// Stats is a point-in-time snapshot of pool activity counters.
type Stats struct {
	Created   uint64
	Gets      uint64
	Returns   uint64
	Dropped   uint64
	InPool    int
	InUse     int
	MaxCap    int
	StartedAt time.Time
}

// Pool is a bounded, generic object pool over values implementing Poolable.
type Pool[T Poolable] interface {
	// Get returns a pooled instance, or a freshly constructed one (via the
	// pool's factory) if the free list is empty.
	Get() T
	// Return resets x and inserts it into the free list if there is room
	// under the configured max capacity; otherwise x is dropped.
	Return(x T)
	// Prealloc constructs and stores n instances, up to MaxCapacity.
	Prealloc(n int)
	// SetMaxCapacity changes the soft capacity cap for future Returns.
	SetMaxCapacity(n int)
	// Clear empties the free list without affecting in-flight instances.
	Clear()
	// Trim retains only retainPct percent (0-100) of the current free list,
	// dropping the rest.
	Trim(retainPct int)
	// Stats returns a snapshot of pool counters.
	Stats() Stats
}
