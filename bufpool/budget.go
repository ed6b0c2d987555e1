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
	"github.com/shirou/gopsutil/v3/mem"
)

// budget computes the pool-wide resident memory ceiling: min(process
// available memory * MaxMemoryPercentage, MaxMemoryBytes), the latter only
// applied when non-zero.
type budget struct {
	pct   float64
	bytes int64
}

func newBudget(pct float64, maxBytes int64) budget {
	return budget{pct: pct, bytes: maxBytes}
}

// ceiling returns the current byte ceiling, reading process-available
// memory from gopsutil each call (the value changes over the process
// lifetime, so it is never cached).
func (b budget) ceiling() int64 {
	var pctCeiling int64 = -1
	if b.pct > 0 {
		if vm, err := mem.VirtualMemory(); err == nil {
			pctCeiling = int64(float64(vm.Available) * b.pct)
		}
	}

	switch {
	case pctCeiling < 0 && b.bytes <= 0:
		return -1 // no budget configured: unbounded
	case pctCeiling < 0:
		return b.bytes
	case b.bytes <= 0:
		return pctCeiling
	case b.bytes < pctCeiling:
		return b.bytes
	default:
		return pctCeiling
	}
}

// allows reports whether projectedBytes stays within the current ceiling.
// An unconfigured budget always allows growth.
func (b budget) allows(projectedBytes int64) bool {
	ceil := b.ceiling()
	if ceil < 0 {
		return true
	}
	return projectedBytes <= ceil
}
