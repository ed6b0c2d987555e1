package idlewheel_test

import (
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/idlewheel"
)

func TestIdleWheel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "idlewheel suite")
}

var _ = Describe("HashedWheel", func() {
	It("fires onExpire once the idle duration elapses", func() {
		w := idlewheel.NewHashedWheel(5*time.Millisecond, 8)
		defer w.Close()

		var fired int32
		w.Register("conn-1", 10*time.Millisecond, func() {
			atomic.AddInt32(&fired, 1)
		})

		Eventually(func() int32 { return atomic.LoadInt32(&fired) }, time.Second).Should(Equal(int32(1)))
	})

	It("never fires once cancelled before expiry", func() {
		w := idlewheel.NewHashedWheel(5*time.Millisecond, 8)
		defer w.Close()

		var fired int32
		cancel := w.Register("conn-2", 20*time.Millisecond, func() {
			atomic.AddInt32(&fired, 1)
		})
		cancel()

		Consistently(func() int32 { return atomic.LoadInt32(&fired) }, 50*time.Millisecond).Should(Equal(int32(0)))
	})

	It("cancel is idempotent and safe after firing", func() {
		w := idlewheel.NewHashedWheel(5*time.Millisecond, 8)
		defer w.Close()

		var fired int32
		cancel := w.Register("conn-3", 10*time.Millisecond, func() {
			atomic.AddInt32(&fired, 1)
		})

		Eventually(func() int32 { return atomic.LoadInt32(&fired) }, time.Second).Should(Equal(int32(1)))
		Expect(func() { cancel(); cancel() }).ToNot(Panic())
	})
})
