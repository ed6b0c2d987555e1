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

package dispatch

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nabbar/tcpkernel/catalog"
	"github.com/nabbar/tcpkernel/pctx"
	"github.com/nabbar/tcpkernel/pkterr"
	"github.com/nabbar/tcpkernel/pktlog"
)

// Inline is the C7a dispatcher variant: it decodes and invokes a handler on
// the calling goroutine, blocking the caller for the duration of the
// handler (callers are expected to already run in a worker context).
type Inline[P catalog.Packet] struct {
	catalog  catalog.Catalog
	handlers HandlerTable[P]
	pool     *pctx.Pool[P]
	log      pktlog.Logger
}

// NewInline builds an Inline dispatcher. None of cat, handlers, or pool may
// be nil.
func NewInline[P catalog.Packet](cat catalog.Catalog, handlers HandlerTable[P], pool *pctx.Pool[P], log pktlog.Logger) (*Inline[P], error) {
	if cat == nil || handlers == nil || pool == nil {
		return nil, pkterr.UnknownError.Errorf("dispatch: catalog, handler table, and packet context pool are all required")
	}
	if log == nil {
		log = pktlog.Discard()
	}
	return &Inline[P]{catalog: cat, handlers: handlers, pool: pool, log: log}, nil
}

func magicOf(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b[:4])
}

// HandleBytes decodes b via the catalog and invokes the resolved handler.
// An empty payload, a deserialize failure, or an unresolved opcode is
// logged and dropped without error; a handler panic is recovered and
// logged, never propagated to the caller.
func (d *Inline[P]) HandleBytes(b []byte, conn pctx.Conn) {
	if len(b) == 0 {
		d.log.WithFields(nil).Debug("dispatch: empty payload dropped")
		return
	}

	magic := magicOf(b)

	decoded, err := d.catalog.Decode(b)
	if err != nil {
		d.log.WithFields(logrus.Fields{
			"magic":   fmt.Sprintf("0x%08X", magic),
			"length":  len(b),
			"preview": hexPreview(b, hexPreviewMax),
		}).Warn(ErrDeserialize.Message())
		return
	}

	pkt, ok := decoded.(P)
	if !ok {
		d.log.WithFields(nil).Warn("dispatch: catalog returned an unexpected packet type")
		return
	}

	d.HandlePacket(pkt, conn)
}

// HandlePacket invokes the handler resolved for pkt's opcode. Unlike
// HandleBytes it skips deserialization — the caller already has a typed
// packet.
func (d *Inline[P]) HandlePacket(pkt P, conn pctx.Conn) {
	handler, ok := d.handlers.Resolve(pkt.OpCode())
	if !ok {
		d.log.WithFields(nil).Warn(ErrNoHandler.Message())
		return
	}

	c := d.pool.Rent()
	c.Initialize(context.Background(), pkt, conn, nil)
	defer c.Return()

	d.invoke(handler, c)
}

func (d *Inline[P]) invoke(handler Handler[P], c *pctx.Context[P]) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(nil).Error(fmt.Sprintf("dispatch: handler panicked: %v", r))
		}
	}()

	if err := handler(c); err != nil {
		d.log.WithFields(nil).Error(err.Error())
	}
}
