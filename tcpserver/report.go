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
	"encoding/json"
	"fmt"
)

// Report is a textual, on-demand operational snapshot (§4.9). It is not a
// stable wire format — informational only.
type Report struct {
	Port         int    `json:"port"`
	State        string `json:"state"`
	Disposed     bool   `json:"disposed"`
	Protocol     string `json:"protocol"`
	Connections  int    `json:"connections"`
	MaxParallel  int    `json:"max_parallel"`
	BufferSize   int    `json:"buffer_size"`
	Backlog      int    `json:"backlog"`
	KeepAlive    bool   `json:"keep_alive"`
	ReuseAddress bool   `json:"reuse_address"`
	EnableIPv6   bool   `json:"enable_ipv6"`
	WorkerGroup  string `json:"worker_group"`
}

func (r Report) String() string {
	return fmt.Sprintf(
		"tcpserver[port=%d state=%s disposed=%t protocol=%s connections=%d max_parallel=%d buffer_size=%d backlog=%d keep_alive=%t reuse_address=%t enable_ipv6=%t group=%s]",
		r.Port, r.State, r.Disposed, r.Protocol, r.Connections, r.MaxParallel, r.BufferSize, r.Backlog, r.KeepAlive, r.ReuseAddress, r.EnableIPv6, r.WorkerGroup,
	)
}

// MarshalJSON implements json.Marshaler explicitly, documenting that this
// shape is not a stable contract despite being machine-readable.
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(alias(r))
}
