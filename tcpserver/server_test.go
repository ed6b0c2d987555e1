package tcpserver_test

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/catalog"
	"github.com/nabbar/tcpkernel/dispatch"
	"github.com/nabbar/tcpkernel/pctx"
	"github.com/nabbar/tcpkernel/tcpserver"
)

func TestTCPServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "tcpserver suite")
}

// fakePacket carries a single opcode byte and whatever trailed it.
type fakePacket struct {
	op      catalog.OpCode
	payload []byte
}

func (p fakePacket) OpCode() catalog.OpCode { return p.op }
func (p fakePacket) TypeName() string       { return "fakePacket" }

// fakeCatalog treats byte 0 as the opcode and an empty frame as malformed.
type fakeCatalog struct{}

func (fakeCatalog) Decode(b []byte) (catalog.Packet, error) {
	if len(b) == 0 {
		return nil, errors.New("empty frame")
	}
	return fakePacket{op: catalog.OpCode(b[0]), payload: append([]byte(nil), b[1:]...)}, nil
}

func baseConfig() tcpserver.Config {
	return tcpserver.Config{
		Port:        0,
		MaxParallel: 2,
		Backlog:     16,
		BufferSize:  256,
		TotalBuffers: 8,
	}
}

var _ = Describe("Server lifecycle", func() {
	It("rejects construction when MaxParallel is below 1", func() {
		cfg := baseConfig()
		cfg.MaxParallel = 0

		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{})
		_, err := tcpserver.New[fakePacket](cfg, fakeCatalog{}, table)
		Expect(err).To(HaveOccurred())
	})

	It("rejects construction with a nil catalog or handler table", func() {
		cfg := baseConfig()
		_, err := tcpserver.New[fakePacket](cfg, nil, dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{}))
		Expect(err).To(HaveOccurred())
	})

	It("moves Stopped -> Running -> Stopped and rejects a double Activate", func() {
		cfg := baseConfig()
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{})
		srv, err := tcpserver.New[fakePacket](cfg, fakeCatalog{}, table)
		Expect(err).ToNot(HaveOccurred())
		Expect(srv.State()).To(Equal(tcpserver.StateStopped))

		Expect(srv.Activate(context.Background())).To(Succeed())
		Expect(srv.State()).To(Equal(tcpserver.StateRunning))

		err = srv.Activate(context.Background())
		Expect(err).To(HaveOccurred())

		Expect(srv.Deactivate(context.Background())).To(Succeed())
		Expect(srv.State()).To(Equal(tcpserver.StateStopped))

		err = srv.Deactivate(context.Background())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Server end-to-end", func() {
	var srv *tcpserver.Server[fakePacket]

	newRunning := func(handlers map[catalog.OpCode]dispatch.Handler[fakePacket], useChannel bool) (*tcpserver.Server[fakePacket], int) {
		cfg := baseConfig()
		cfg.UseChannelDispatch = useChannel
		cfg.ChannelQueueDepth = 4

		table := dispatch.NewMapTable(handlers)
		s, err := tcpserver.New[fakePacket](cfg, fakeCatalog{}, table)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Activate(context.Background())).To(Succeed())

		port := s.Report().Port
		return s, port
	}

	AfterEach(func() {
		if srv != nil {
			_ = srv.Deactivate(context.Background())
			srv = nil
		}
	})

	It("delivers a single well-formed frame to its handler", func() {
		var got int32
		srv, port := newRunning(map[catalog.OpCode]dispatch.Handler[fakePacket]{
			7: func(c *pctx.Context[fakePacket]) error {
				atomic.AddInt32(&got, 1)
				return nil
			},
		}, false)
		_ = srv

		conn, err := net.Dial("tcp", fmtAddr(port))
		Expect(err).ToNot(HaveOccurred())
		defer conn.Close()

		_, err = conn.Write([]byte{7, 'h', 'i'})
		Expect(err).ToNot(HaveOccurred())

		Eventually(func() int32 { return atomic.LoadInt32(&got) }, time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
	})

	It("drops an unknown opcode without crashing the connection", func() {
		srv, port := newRunning(map[catalog.OpCode]dispatch.Handler[fakePacket]{}, false)
		_ = srv

		conn, err := net.Dial("tcp", fmtAddr(port))
		Expect(err).ToNot(HaveOccurred())
		defer conn.Close()

		_, err = conn.Write([]byte{99})
		Expect(err).ToNot(HaveOccurred())

		// the connection stays usable: a well-formed frame written right
		// after the unknown opcode is still accepted by the socket.
		Consistently(func() error {
			_, werr := conn.Write([]byte{1})
			return werr
		}, 100*time.Millisecond, 20*time.Millisecond).Should(Succeed())
	})

	It("keeps accepting connections after a client writes an empty frame", func() {
		srv, port := newRunning(map[catalog.OpCode]dispatch.Handler[fakePacket]{}, false)
		_ = srv

		conn, err := net.Dial("tcp", fmtAddr(port))
		Expect(err).ToNot(HaveOccurred())
		defer conn.Close()

		_, err = conn.Write([]byte{})
		Expect(err).ToNot(HaveOccurred())

		conn2, err := net.Dial("tcp", fmtAddr(port))
		Expect(err).ToNot(HaveOccurred())
		defer conn2.Close()
	})

	It("drains a backlog of frames through the channel dispatcher under load", func() {
		var processed int32
		srv, port := newRunning(map[catalog.OpCode]dispatch.Handler[fakePacket]{
			3: func(c *pctx.Context[fakePacket]) error {
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&processed, 1)
				return nil
			},
		}, true)
		_ = srv

		conn, err := net.Dial("tcp", fmtAddr(port))
		Expect(err).ToNot(HaveOccurred())
		defer conn.Close()

		for i := 0; i < 20; i++ {
			_, werr := conn.Write([]byte{3})
			Expect(werr).ToNot(HaveOccurred())
		}

		Eventually(func() int32 { return atomic.LoadInt32(&processed) }, 2*time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 15))
	})

	It("shuts down cleanly with connections still mid-accept", func() {
		cfg := baseConfig()
		cfg.MaxParallel = 4
		table := dispatch.NewMapTable(map[catalog.OpCode]dispatch.Handler[fakePacket]{
			1: func(c *pctx.Context[fakePacket]) error { return nil },
		})
		s, err := tcpserver.New[fakePacket](cfg, fakeCatalog{}, table)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Activate(context.Background())).To(Succeed())

		port := s.Report().Port
		stop := make(chan struct{})
		go func() {
			defer close(stop)
			for i := 0; i < 50; i++ {
				c, derr := net.Dial("tcp", fmtAddr(port))
				if derr != nil {
					return
				}
				_, _ = c.Write([]byte{1})
				_ = c.Close()
				time.Sleep(time.Millisecond)
			}
		}()

		time.Sleep(20 * time.Millisecond)
		Expect(s.Deactivate(context.Background())).To(Succeed())
		<-stop
	})
})

func fmtAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}
