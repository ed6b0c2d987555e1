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
	"context"
	"time"

	"github.com/nabbar/tcpkernel/taskgroup"
)

// StartTrim launches the periodic trim loop under group/name in tg, if
// EnableMemoryTrimming is set. It refuses to remove in-use buffers: only
// entries currently in a class's free list are released. Every
// deep_interval/interval-th cycle is a "deep trim" pass that visits every
// class; see trimOnce for what that does and does not change.
func (p *Pool) StartTrim(tg *taskgroup.Group, group, name string) error {
	if !p.cfg.EnableMemoryTrimming || p.cfg.TrimInterval <= 0 {
		return nil
	}

	deepEvery := 1
	if p.cfg.DeepTrimInterval > p.cfg.TrimInterval {
		deepEvery = int(p.cfg.DeepTrimInterval / p.cfg.TrimInterval)
	}

	return tg.Start(name, group, func(ctx context.Context) error {
		ticker := time.NewTicker(p.cfg.TrimInterval)
		defer ticker.Stop()

		cycle := 0
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				cycle++
				deep := deepEvery > 0 && cycle%deepEvery == 0
				p.trimOnce(deep)
				if p.cfg.EnableAnalytics {
					p.SnapshotObserved()
				}
			}
		}
	})
}

// trimOnce releases excess free entries per class. When deep is true every
// class is passed to maybeShrink; otherwise only classes with
// free >= total/2 are. maybeShrink applies its own free >= total/2 and
// over-target checks either way, so a deep pass releases no more entries
// than a shallow one; it differs in visiting (and, below, compacting) every
// class. When EnableQueueCompaction is set, every class
// visited also has its free-list backing array compacted: a long-lived pool
// that has grown and shrunk repeatedly can accumulate a free slice whose
// capacity far exceeds its length, holding onto memory the runtime would
// otherwise reclaim.
func (p *Pool) trimOnce(deep bool) {
	for _, cl := range p.classes {
		st := cl.stats()
		if !deep && st.Free < st.Total/2 {
			continue
		}
		p.maybeShrink(cl)
		if p.cfg.EnableQueueCompaction {
			cl.compact()
		}
	}
}

// compact reallocates the free-list backing array when its capacity has
// grown well beyond what's actually held, dropping the slack so the
// over-sized array can be garbage collected.
func (cl *class) compact() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if len(cl.free) == 0 || cap(cl.free) <= len(cl.free)*2 {
		return
	}
	compacted := make([][]byte, len(cl.free))
	copy(compacted, cl.free)
	cl.free = compacted
}
