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

import (
	"math"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/nabbar/tcpkernel/pktlog"
)

// ClassStats is a point-in-time snapshot of one class's counters.
type ClassStats struct {
	Size      int
	Total     int64
	Free      int64
	Hits      uint64
	Misses    uint64
	UsageRatio float64
	MissRate   float64
}

type class struct {
	size  int
	ratio float64

	mu   sync.Mutex
	free [][]byte

	total     int64
	hits      uint64
	misses    uint64
	growing   int32
	shrinking int32
	ops       int64
}

func (c *class) stats() ClassStats {
	c.mu.Lock()
	free := int64(len(c.free))
	c.mu.Unlock()

	total := atomic.LoadInt64(&c.total)
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	var usage, missRate float64
	if total > 0 {
		usage = float64(total-free) / float64(total)
	}
	if hits+misses > 0 {
		missRate = float64(misses) / float64(hits+misses)
	}

	return ClassStats{
		Size: c.size, Total: total, Free: free,
		Hits: hits, Misses: misses, UsageRatio: usage, MissRate: missRate,
	}
}

// Pool is a size-classed byte-slice pool.
type Pool struct {
	cfg      Config
	classes  []*class
	fallback sync.Pool
	log      pktlog.Logger
	budget   budget

	metricsRegistry *metrics
}

// New validates cfg and builds a Pool with one free list per declared
// class, seeded so the sum of classes' TotalBuffers matches cfg.TotalBuffers
// proportioned by ratio.
func New(cfg Config, log pktlog.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ErrInvalidConfig.Errorf("%s", err.Error())
	}
	if log == nil {
		log = pktlog.Discard()
	}

	sorted := cfg.SortedClasses()
	classes := make([]*class, 0, len(sorted))
	for _, cc := range sorted {
		classes = append(classes, &class{size: cc.Size, ratio: cc.Ratio})
	}

	p := &Pool{
		cfg:     cfg,
		classes: classes,
		log:     log,
		budget:  newBudget(cfg.MaxMemoryPercentage, cfg.MaxMemoryBytes),
	}

	for _, cl := range classes {
		n := int(float64(cfg.TotalBuffers) * cl.ratio)
		p.seed(cl, n)
	}

	return p, nil
}

func (p *Pool) seed(cl *class, n int) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i := 0; i < n; i++ {
		cl.free = append(cl.free, make([]byte, cl.size))
	}
	atomic.AddInt64(&cl.total, int64(n))
}

func (p *Pool) classFor(size int) *class {
	for _, cl := range p.classes {
		if cl.size >= size {
			return cl
		}
	}
	return nil
}

// Rent returns a buffer of length ≥ size, equal to some declared class's
// size, or drawn from the fallback pool if size exceeds every class and
// FallbackToArrayPool is enabled. It fails with ErrNoFallback if size
// exceeds every class and fallback is disabled.
func (p *Pool) Rent(size int) ([]byte, error) {
	cl := p.classFor(size)
	if cl == nil {
		if !p.cfg.FallbackToArrayPool {
			return nil, ErrNoFallback.Error()
		}
		if b, ok := p.fallback.Get().([]byte); ok && cap(b) >= size {
			atomic.AddUint64(&classFallbackHits, 1)
			return b[:size], nil
		}
		atomic.AddUint64(&classFallbackMisses, 1)
		return make([]byte, size), nil
	}

	cl.mu.Lock()
	n := len(cl.free)
	if n > 0 {
		b := cl.free[n-1]
		cl.free = cl.free[:n-1]
		cl.mu.Unlock()
		atomic.AddUint64(&cl.hits, 1)
		if p.shouldAutoTune(cl) {
			p.maybeShrink(cl)
		}
		return b[:cl.size], nil
	}
	cl.mu.Unlock()

	atomic.AddUint64(&cl.misses, 1)
	if p.shouldAutoTune(cl) {
		p.grow(cl)
	}

	return make([]byte, cl.size), nil
}

// shouldAutoTune gates how often Rent runs its grow/shrink check.
// AutoTuneOperationThreshold <= 0 means check on every call, the original
// behavior; a positive threshold amortizes the check's cost under very high
// request rates by only running it once per threshold operations on cl.
func (p *Pool) shouldAutoTune(cl *class) bool {
	if p.cfg.AutoTuneOperationThreshold <= 0 {
		return true
	}
	n := atomic.AddInt64(&cl.ops, 1)
	return n%int64(p.cfg.AutoTuneOperationThreshold) == 0
}

// Return routes b back to the class matching its length, or the fallback
// pool, applying secure-clear first when configured. A buffer matching no
// class and no enabled fallback is dropped with a logged warning.
func (p *Pool) Return(b []byte) {
	if p.cfg.SecureClear {
		for i := range b {
			b[i] = 0
		}
	}

	for _, cl := range p.classes {
		if cl.size == len(b) {
			cl.mu.Lock()
			cl.free = append(cl.free, b)
			cl.mu.Unlock()
			return
		}
	}

	if p.cfg.FallbackToArrayPool {
		p.fallback.Put(b)
		return
	}

	p.log.WithFields(nil).Warn(ErrPoolOverflow.Message())
}

// Snapshot returns a ClassStats per configured class, ascending by size.
func (p *Pool) Snapshot() []ClassStats {
	out := make([]ClassStats, 0, len(p.classes))
	for _, cl := range p.classes {
		out = append(out, cl.stats())
	}
	return out
}

func roundUpPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func clampInt(v, lo, hi int) int {
	if hi > 0 && v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// grow runs the adaptive-growth algorithm for cl, single-flighted via a
// non-blocking CAS so only the first caller observing low free actually
// allocates; a concurrent caller that loses the CAS returns at once, without
// growing and without re-checking the free count.
func (p *Pool) grow(cl *class) {
	if !atomic.CompareAndSwapInt32(&cl.growing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&cl.growing, 0)

	st := cl.stats()
	if st.Free >= int64(maxInt(1, int(st.Total)/4)) {
		return
	}

	usageFactor := 1 + st.UsageRatio
	missFactor := 1 + st.MissRate
	step := float64(roundUpPow2(maxInt(1, int(st.Total)/4))) * usageFactor * missFactor * maxFloat(p.cfg.AdaptiveGrowthFactor, 1)

	inc := clampInt(int(math.Round(step)), p.cfg.MinimumIncrease, p.cfg.MaxBufferIncreaseLimit)
	if inc <= 0 {
		return
	}

	addedBytes := int64(inc) * int64(cl.size)
	if !p.budget.allows(p.totalBytes() + addedBytes) {
		p.log.WithFields(nil).Warn(ErrBudgetExceeded.Message())
		return
	}

	p.seed(cl, inc)
}

// maybeShrink triggers the adaptive-shrink algorithm for cl when the free
// ratio is high relative to its configured target share of TotalBuffers.
func (p *Pool) maybeShrink(cl *class) {
	st := cl.stats()
	if st.Free < st.Total/2 {
		return
	}

	target := int64(float64(p.cfg.TotalBuffers) * cl.ratio)
	if st.Total <= target {
		return
	}

	if !atomic.CompareAndSwapInt32(&cl.shrinking, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&cl.shrinking, 0)

	safety := minInt(20, int(math.Sqrt(float64(st.Total)/4)))
	step := clampInt(int(st.Free-target)-safety, 0, p.cfg.MaxBufferIncreaseLimit)
	if step <= 0 {
		return
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	n := len(cl.free)
	if step > n {
		step = n
	}
	cl.free = cl.free[:n-step]
	atomic.AddInt64(&cl.total, -int64(step))
}

func (p *Pool) totalBytes() int64 {
	var sum int64
	for _, cl := range p.classes {
		sum += atomic.LoadInt64(&cl.total) * int64(cl.size)
	}
	return sum
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

var (
	classFallbackHits   uint64
	classFallbackMisses uint64
)
