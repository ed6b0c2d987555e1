package dispatch_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/catalog"
	"github.com/nabbar/tcpkernel/dispatch"
	"github.com/nabbar/tcpkernel/pctx"
	"github.com/nabbar/tcpkernel/pktlog"
	"github.com/nabbar/tcpkernel/taskgroup"
)

func TestDispatch(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "dispatch suite")
}

type fakePacket struct {
	op  catalog.OpCode
	tag string
}

func (p fakePacket) OpCode() catalog.OpCode { return p.op }
func (p fakePacket) TypeName() string       { return "fakePacket" }

type fakeConn struct {
	addr   string
	authed bool
}

func (c fakeConn) RemoteAddr() string   { return c.addr }
func (c fakeConn) Authenticated() bool  { return c.authed }

// fakeCatalog decodes a single leading byte as the opcode; anything empty
// or carrying opcode 0xFF is treated as malformed.
type fakeCatalog struct{}

func (fakeCatalog) Decode(b []byte) (catalog.Packet, error) {
	if len(b) == 0 || b[0] == 0xFF {
		return nil, errors.New("malformed payload")
	}
	return fakePacket{op: catalog.OpCode(b[0])}, nil
}

type atomicSlice struct {
	mu sync.Mutex
}

func (a *atomicSlice) append(dst *[]catalog.OpCode, op catalog.OpCode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	*dst = append(*dst, op)
}

var _ = Describe("Inline dispatcher", func() {
	var (
		pool *pctx.Pool[fakePacket]
		cat  fakeCatalog
	)

	BeforeEach(func() {
		pool = pctx.NewPool[fakePacket](0, 8)
	})

	It("resolves and invokes the handler for a known opcode", func() {
		var invoked int32
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{
			1: func(ctx *pctx.Context[fakePacket]) error {
				atomic.AddInt32(&invoked, 1)
				return nil
			},
		})

		d, err := dispatch.NewInline[fakePacket](cat, table, pool, pktlog.Discard())
		Expect(err).ToNot(HaveOccurred())

		d.HandleBytes([]byte{1}, fakeConn{addr: "a"})
		Expect(atomic.LoadInt32(&invoked)).To(Equal(int32(1)))
		Expect(pool.Stats().InPool).To(Equal(1))
	})

	It("drops an unknown opcode without invoking a handler", func() {
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{})
		d, err := dispatch.NewInline[fakePacket](cat, table, pool, pktlog.Discard())
		Expect(err).ToNot(HaveOccurred())

		Expect(func() { d.HandleBytes([]byte{9}, fakeConn{}) }).ToNot(Panic())
	})

	It("drops garbage input that fails to decode", func() {
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{})
		d, err := dispatch.NewInline[fakePacket](cat, table, pool, pktlog.Discard())
		Expect(err).ToNot(HaveOccurred())

		Expect(func() { d.HandleBytes([]byte{0xFF, 0x00}, fakeConn{}) }).ToNot(Panic())
		Expect(func() { d.HandleBytes(nil, fakeConn{}) }).ToNot(Panic())
	})

	It("recovers a handler panic without propagating it", func() {
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{
			1: func(ctx *pctx.Context[fakePacket]) error {
				panic("boom")
			},
		})
		d, err := dispatch.NewInline[fakePacket](cat, table, pool, pktlog.Discard())
		Expect(err).ToNot(HaveOccurred())

		Expect(func() { d.HandleBytes([]byte{1}, fakeConn{}) }).ToNot(Panic())
		Expect(pool.Stats().InPool).To(Equal(1))
	})

	It("logs a handler error without panicking", func() {
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{
			1: func(ctx *pctx.Context[fakePacket]) error {
				return errors.New("handler failed")
			},
		})
		d, err := dispatch.NewInline[fakePacket](cat, table, pool, pktlog.Discard())
		Expect(err).ToNot(HaveOccurred())

		Expect(func() { d.HandleBytes([]byte{1}, fakeConn{}) }).ToNot(Panic())
	})
})

var _ = Describe("DispatchChannel", func() {
	It("drains work pushed onto both the high and normal priority lanes", func() {
		pool := pctx.NewPool[fakePacket](0, 32)
		var order []catalog.OpCode
		var mu atomicSlice

		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{
			1: func(ctx *pctx.Context[fakePacket]) error { mu.append(&order, 1); return nil },
			2: func(ctx *pctx.Context[fakePacket]) error { mu.append(&order, 2); return nil },
		})

		inline, err := dispatch.NewInline[fakePacket](fakeCatalog{}, table, pool, pktlog.Discard())
		Expect(err).ToNot(HaveOccurred())

		ch := dispatch.NewDispatchChannel[fakePacket](inline, 16)
		tg := taskgroup.New(nil)
		Expect(ch.Start(tg, "test/dispatch")).ToNot(HaveOccurred())
		defer ch.Stop()

		Expect(ch.PushPacket(fakePacket{op: 2}, []byte{2}, fakeConn{authed: false})).To(BeTrue())
		Expect(ch.PushPacket(fakePacket{op: 1}, []byte{1}, fakeConn{authed: true})).To(BeTrue())

		Eventually(func() int { mu.mu.Lock(); defer mu.mu.Unlock(); return len(order) }, time.Second).Should(Equal(2))
	})

	It("isolates a handler panic per worker", func() {
		pool := pctx.NewPool[fakePacket](0, 8)
		var handled int32
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{
			1: func(ctx *pctx.Context[fakePacket]) error { panic("boom") },
			2: func(ctx *pctx.Context[fakePacket]) error { atomic.AddInt32(&handled, 1); return nil },
		})
		inline, err := dispatch.NewInline[fakePacket](fakeCatalog{}, table, pool, pktlog.Discard())
		Expect(err).ToNot(HaveOccurred())

		ch := dispatch.NewDispatchChannel[fakePacket](inline, 8)
		tg := taskgroup.New(nil)
		Expect(ch.Start(tg, "test/dispatch-panic")).ToNot(HaveOccurred())
		defer ch.Stop()

		Expect(ch.PushBytes([]byte{1}, fakeConn{})).To(BeTrue())
		Expect(ch.PushBytes([]byte{2}, fakeConn{})).To(BeTrue())

		Eventually(func() int32 { return atomic.LoadInt32(&handled) }, time.Second).Should(Equal(int32(1)))
	})

	It("drops a frame on a full lane only when WithDropOnFull is set", func() {
		pool := pctx.NewPool[fakePacket](0, 4)
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{})
		inline, err := dispatch.NewInline[fakePacket](fakeCatalog{}, table, pool, pktlog.Discard())
		Expect(err).ToNot(HaveOccurred())

		// No workers started: the lane's single slot stays occupied, so a
		// second push observes it full.
		ch := dispatch.NewDispatchChannel[fakePacket](inline, 1, dispatch.WithDropOnFull())

		Expect(ch.PushBytes([]byte{1}, fakeConn{})).To(BeTrue())
		Expect(ch.PushBytes([]byte{1}, fakeConn{})).To(BeFalse())
	})

	It("blocks the pusher on a full lane by default, unblocking on Stop", func() {
		pool := pctx.NewPool[fakePacket](0, 4)
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{})
		inline, err := dispatch.NewInline[fakePacket](fakeCatalog{}, table, pool, pktlog.Discard())
		Expect(err).ToNot(HaveOccurred())

		ch := dispatch.NewDispatchChannel[fakePacket](inline, 1)

		Expect(ch.PushBytes([]byte{1}, fakeConn{})).To(BeTrue())

		pushed := make(chan bool, 1)
		go func() { pushed <- ch.PushBytes([]byte{1}, fakeConn{}) }()

		Consistently(pushed, 50*time.Millisecond).ShouldNot(Receive())

		ch.Stop()
		Eventually(pushed, time.Second).Should(Receive(BeFalse()))
	})
})
