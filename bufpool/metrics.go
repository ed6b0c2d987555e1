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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the prometheus gauges registered when EnableAnalytics is on,
// one gauge vector per counter, labeled by class size.
type metrics struct {
	total  *prometheus.GaugeVec
	free   *prometheus.GaugeVec
	hits   *prometheus.GaugeVec
	misses *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		total:  prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "bufpool", Name: "class_total"}, []string{"class"}),
		free:   prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "bufpool", Name: "class_free"}, []string{"class"}),
		hits:   prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "bufpool", Name: "class_hits"}, []string{"class"}),
		misses: prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "bufpool", Name: "class_misses"}, []string{"class"}),
	}

	reg.MustRegister(m.total, m.free, m.hits, m.misses)
	return m
}

func (m *metrics) observe(st ClassStats) {
	label := strconv.Itoa(st.Size)
	m.total.WithLabelValues(label).Set(float64(st.Total))
	m.free.WithLabelValues(label).Set(float64(st.Free))
	m.hits.WithLabelValues(label).Set(float64(st.Hits))
	m.misses.WithLabelValues(label).Set(float64(st.Misses))
}

// EnableAnalytics registers prometheus gauges against reg. SnapshotObserved
// pushes the latest values into them; plain Snapshot does not.
func (p *Pool) EnableAnalytics(reg prometheus.Registerer) {
	p.metricsRegistry = newMetrics(reg)
}

// SnapshotObserved is Snapshot plus a push of the resulting stats into the
// prometheus gauges registered via EnableAnalytics, if any.
func (p *Pool) SnapshotObserved() []ClassStats {
	st := p.Snapshot()
	if p.metricsRegistry != nil {
		for _, s := range st {
			p.metricsRegistry.observe(s)
		}
	}
	return st
}
