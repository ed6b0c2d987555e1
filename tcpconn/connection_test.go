package tcpconn_test

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/bufpool"
	"github.com/nabbar/tcpkernel/pktlog"
	"github.com/nabbar/tcpkernel/tcpconn"
)

func TestTCPConn(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "tcpconn suite")
}

func testPool() *bufpool.Pool {
	cfg := bufpool.Config{
		Classes:      []bufpool.ClassConfig{{Size: 1024, Ratio: 1.0}},
		TotalBuffers: 8,
	}
	p, err := bufpool.New(cfg, nil)
	Expect(err).ToNot(HaveOccurred())
	return p
}

var _ = Describe("Connection", func() {
	var ln net.Listener

	BeforeEach(func() {
		var err error
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		_ = ln.Close()
	})

	It("delivers received frames to OnProcess then OnPostProcess", func() {
		serverSide := make(chan net.Conn, 1)
		go func() {
			c, _ := ln.Accept()
			serverSide <- c
		}()

		client, err := net.Dial("tcp", ln.Addr().String())
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = client.Close() }()

		var raw net.Conn
		Eventually(serverSide, time.Second).Should(Receive(&raw))

		conn := tcpconn.New(raw, testPool(), pktlog.Discard())

		var processed, posted int32
		conn.OnProcess(func(c *tcpconn.Connection, lease *bufpool.Lease) {
			atomic.AddInt32(&processed, 1)
			lease.Dispose()
		})
		conn.OnPostProcess(func(c *tcpconn.Connection) {
			atomic.AddInt32(&posted, 1)
		})

		go conn.Serve(1024)

		_, err = client.Write([]byte("hello"))
		Expect(err).ToNot(HaveOccurred())

		Eventually(func() int32 { return atomic.LoadInt32(&processed) }, time.Second).Should(Equal(int32(1)))
		Eventually(func() int32 { return atomic.LoadInt32(&posted) }, time.Second).Should(Equal(int32(1)))

		_ = conn.Close()
	})

	It("fires OnClose exactly once and is idempotent", func() {
		serverSide := make(chan net.Conn, 1)
		go func() {
			c, _ := ln.Accept()
			serverSide <- c
		}()

		client, err := net.Dial("tcp", ln.Addr().String())
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = client.Close() }()

		var raw net.Conn
		Eventually(serverSide, time.Second).Should(Receive(&raw))

		conn := tcpconn.New(raw, testPool(), pktlog.Discard())

		var closes int32
		conn.OnClose(func(c *tcpconn.Connection) {
			atomic.AddInt32(&closes, 1)
		})

		Expect(conn.Close()).ToNot(HaveOccurred())
		Expect(conn.Close()).ToNot(HaveOccurred())
		Expect(conn.Close()).ToNot(HaveOccurred())

		Expect(atomic.LoadInt32(&closes)).To(Equal(int32(1)))
		Expect(conn.State()).To(Equal(tcpconn.StateClosed))
	})

	It("tracks the authenticated flag used for dispatch priority", func() {
		conn := tcpconn.New(nil, testPool(), pktlog.Discard())
		Expect(conn.Authenticated()).To(BeFalse())

		conn.SetAuthenticated(true)
		Expect(conn.Authenticated()).To(BeTrue())
	})
})
