package pctx_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/pctx"
)

type fakePacket struct {
	op uint16
}

func (p fakePacket) OpCode() uint16   { return p.op }
func (p fakePacket) TypeName() string { return "fakePacket" }

type fakeConn struct{ addr string }

func (c fakeConn) RemoteAddr() string { return c.addr }

func TestPctx(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "pctx suite")
}

var _ = Describe("Context", func() {
	It("transitions Pooled to InUse exactly once via Initialize", func() {
		pool := pctx.NewPool[fakePacket](0, 8)
		c := pool.Rent()

		c.Initialize(context.Background(), fakePacket{op: 7}, fakeConn{addr: "1.2.3.4:5"}, nil)
		Expect(c.InUse()).To(BeTrue())
		Expect(c.Packet().OpCode()).To(Equal(uint16(7)))
		Expect(c.Connection().RemoteAddr()).To(Equal("1.2.3.4:5"))

		Expect(func() { c.Initialize(context.Background(), fakePacket{}, nil, nil) }).To(Panic())
	})

	It("returns to the pool exactly once regardless of repeated Return calls", func() {
		pool := pctx.NewPool[fakePacket](0, 8)
		c := pool.Rent()
		c.Initialize(context.Background(), fakePacket{op: 1}, fakeConn{}, nil)

		c.Return()
		c.Return()
		c.Return()

		Expect(pool.Stats().InPool).To(Equal(1))
		Expect(c.InUse()).To(BeFalse())
	})

	It("cancels the invocation context on Return", func() {
		pool := pctx.NewPool[fakePacket](0, 8)
		c := pool.Rent()
		c.Initialize(context.Background(), fakePacket{op: 1}, fakeConn{}, nil)

		ctx := c.Context()
		c.Return()

		Expect(ctx.Err()).To(Equal(context.Canceled))
	})

	It("preallocates the configured count", func() {
		pool := pctx.NewPool[fakePacket](4, 16)
		Expect(pool.Stats().InPool).To(Equal(4))
	})
})
