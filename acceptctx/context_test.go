package acceptctx_test

import (
	"context"
	"net"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/acceptctx"
)

func TestAcceptCtx(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "acceptctx suite")
}

var _ = Describe("Context", func() {
	var ln net.Listener

	BeforeEach(func() {
		var err error
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		_ = ln.Close()
	})

	It("accepts a connection issued against the listener", func() {
		pool := acceptctx.NewPool(4)
		c := pool.Get()

		resultCh := make(chan net.Conn, 1)
		go func() {
			conn, err := c.BeginAccept(context.Background(), ln)
			Expect(err).ToNot(HaveOccurred())
			resultCh <- conn
		}()

		client, err := net.Dial("tcp", ln.Addr().String())
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = client.Close() }()

		var accepted net.Conn
		Eventually(resultCh, time.Second).Should(Receive(&accepted))
		Expect(accepted).ToNot(BeNil())
		_ = accepted.Close()

		pool.Return(c)
		Expect(pool.Stats().InPool).To(Equal(1))
	})

	It("returns the parent's error when cancelled before any connection arrives", func() {
		pool := acceptctx.NewPool(0)
		c := pool.Get()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		conn, err := c.BeginAccept(ctx, ln)
		Expect(conn).To(BeNil())
		Expect(err).To(Equal(context.Canceled))
	})

	It("hands the same context back on the next Get after it is returned", func() {
		pool := acceptctx.NewPool(0)
		c := pool.Get()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _ = c.BeginAccept(ctx, ln)

		pool.Return(c)
		c2 := pool.Get()
		Expect(c2).To(BeIdenticalTo(c))
	})
})
