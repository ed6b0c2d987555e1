package admission_test

import (
	"net"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/admission"
)

func TestAdmission(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "admission suite")
}

func addr(s string) net.Addr {
	a, _ := net.ResolveTCPAddr("tcp", s)
	return a
}

var _ = Describe("LeakyBucket", func() {
	It("admits up to the burst then refuses", func() {
		c := admission.NewLeakyBucket(1, 2)
		remote := addr("10.0.0.1:4000")

		Expect(c.Allow(remote)).To(BeTrue())
		Expect(c.Allow(remote)).To(BeTrue())
		Expect(c.Allow(remote)).To(BeFalse())
	})

	It("refills over time", func() {
		c := admission.NewLeakyBucket(1000, 1)
		remote := addr("10.0.0.2:4000")

		Expect(c.Allow(remote)).To(BeTrue())
		Expect(c.Allow(remote)).To(BeFalse())

		time.Sleep(5 * time.Millisecond)
		Expect(c.Allow(remote)).To(BeTrue())
	})

	It("tracks remote hosts independently of port", func() {
		c := admission.NewLeakyBucket(1, 1)

		Expect(c.Allow(addr("10.0.0.3:1111"))).To(BeTrue())
		Expect(c.Allow(addr("10.0.0.3:2222"))).To(BeFalse())
		Expect(c.Allow(addr("10.0.0.4:1111"))).To(BeTrue())
	})

	It("resets state on OnClose", func() {
		c := admission.NewLeakyBucket(1, 1)
		remote := addr("10.0.0.5:4000")

		Expect(c.Allow(remote)).To(BeTrue())
		Expect(c.Allow(remote)).To(BeFalse())

		c.OnClose(remote)
		Expect(c.Allow(remote)).To(BeTrue())
	})
})
