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

// Package dispatch is the C7 Packet Dispatcher in both its inline (caller
// goroutine) and channel (worker pool) variants: it resolves a decoded
// packet's handler by opcode, invokes it, and isolates the caller from any
// panic the handler raises.
package dispatch

import (
	"github.com/nabbar/tcpkernel/catalog"
	"github.com/nabbar/tcpkernel/pctx"
)

// Handler processes one packet context. It must not retain ctx beyond its
// own return — the context is returned to its pool immediately afterward.
type Handler[P catalog.Packet] func(ctx *pctx.Context[P]) error

// HandlerTable maps an opcode to its Handler. Built once at startup and
// read-only thereafter.
type HandlerTable[P catalog.Packet] interface {
	Resolve(op catalog.OpCode) (Handler[P], bool)
}

// MapTable is the straightforward HandlerTable: a plain map, built once via
// NewMapTable and never mutated afterward — no synchronization is required
// on the read path.
type MapTable[P catalog.Packet] map[catalog.OpCode]Handler[P]

// NewMapTable returns a HandlerTable backed by m. The caller must not
// mutate m after passing it here.
func NewMapTable[P catalog.Packet](m map[catalog.OpCode]Handler[P]) MapTable[P] {
	return MapTable[P](m)
}

func (t MapTable[P]) Resolve(op catalog.OpCode) (Handler[P], bool) {
	h, ok := t[op]
	return h, ok
}
