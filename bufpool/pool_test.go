package bufpool_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/bufpool"
)

func TestBufPool(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "bufpool suite")
}

func baseConfig() bufpool.Config {
	return bufpool.Config{
		Classes: []bufpool.ClassConfig{
			{Size: 256, Ratio: 0.5},
			{Size: 1024, Ratio: 0.5},
		},
		TotalBuffers:           64,
		MinimumIncrease:        4,
		MaxBufferIncreaseLimit: 256,
		AdaptiveGrowthFactor:   1,
	}
}

var _ = Describe("Pool", func() {
	It("rents a buffer whose length equals a declared class size", func() {
		p, err := bufpool.New(baseConfig(), nil)
		Expect(err).ToNot(HaveOccurred())

		b, err := p.Rent(100)
		Expect(err).ToNot(HaveOccurred())
		Expect(len(b)).To(Equal(256))

		b2, err := p.Rent(1000)
		Expect(err).ToNot(HaveOccurred())
		Expect(len(b2)).To(Equal(1024))
	})

	It("round-trips Rent then Return restoring the free count", func() {
		p, err := bufpool.New(baseConfig(), nil)
		Expect(err).ToNot(HaveOccurred())

		before := p.Snapshot()[0].Free

		b, err := p.Rent(100)
		Expect(err).ToNot(HaveOccurred())
		p.Return(b)

		after := p.Snapshot()[0].Free
		Expect(after).To(Equal(before))
	})

	It("rejects a configuration whose ratios sum beyond 1.1", func() {
		cfg := baseConfig()
		cfg.Classes = []bufpool.ClassConfig{
			{Size: 256, Ratio: 0.8},
			{Size: 1024, Ratio: 0.8},
		}
		_, err := bufpool.New(cfg, nil)
		Expect(err).To(HaveOccurred())
	})

	It("selects the smallest class for a zero-size rent", func() {
		p, err := bufpool.New(baseConfig(), nil)
		Expect(err).ToNot(HaveOccurred())

		b, err := p.Rent(0)
		Expect(err).ToNot(HaveOccurred())
		Expect(len(b)).To(Equal(256))
	})

	It("fails when size exceeds the largest class and fallback is disabled", func() {
		p, err := bufpool.New(baseConfig(), nil)
		Expect(err).ToNot(HaveOccurred())

		_, err = p.Rent(4096)
		Expect(err).To(HaveOccurred())
	})

	It("falls back when size exceeds the largest class and fallback is enabled", func() {
		cfg := baseConfig()
		cfg.FallbackToArrayPool = true
		p, err := bufpool.New(cfg, nil)
		Expect(err).ToNot(HaveOccurred())

		b, err := p.Rent(4096)
		Expect(err).ToNot(HaveOccurred())
		Expect(len(b)).To(Equal(4096))

		p.Return(b)
	})

	It("parses BufferAllocations idempotently", func() {
		raw := "256,0.5;1024,0.5"

		a, err := bufpool.ParseAllocations(raw)
		Expect(err).ToNot(HaveOccurred())
		b, err := bufpool.ParseAllocations(raw)
		Expect(err).ToNot(HaveOccurred())

		Expect(a).To(Equal(b))
		Expect(a[0].Size).To(Equal(256))
		Expect(a[1].Size).To(Equal(1024))
	})

	It("treats an empty BufferAllocations string as unset, not an error", func() {
		classes, err := bufpool.ParseAllocations("")
		Expect(err).ToNot(HaveOccurred())
		Expect(classes).To(BeEmpty())

		classes, err = bufpool.ParseAllocations("   ")
		Expect(err).ToNot(HaveOccurred())
		Expect(classes).To(BeEmpty())
	})

	It("accepts a single class at ratio 1.0", func() {
		cfg := bufpool.Config{Classes: []bufpool.ClassConfig{{Size: 512, Ratio: 1.0}}, TotalBuffers: 8}
		_, err := bufpool.New(cfg, nil)
		Expect(err).ToNot(HaveOccurred())
	})

	It("still serves every Rent when AutoTuneOperationThreshold amortizes the grow/shrink check", func() {
		cfg := baseConfig()
		cfg.TotalBuffers = 4
		cfg.AutoTuneOperationThreshold = 3
		p, err := bufpool.New(cfg, nil)
		Expect(err).ToNot(HaveOccurred())

		for i := 0; i < 20; i++ {
			b, rentErr := p.Rent(100)
			Expect(rentErr).ToNot(HaveOccurred())
			Expect(len(b)).To(Equal(256))
			p.Return(b)
		}
	})

	It("secure-clears returned buffers when configured", func() {
		cfg := baseConfig()
		cfg.SecureClear = true
		p, err := bufpool.New(cfg, nil)
		Expect(err).ToNot(HaveOccurred())

		b, err := p.Rent(100)
		Expect(err).ToNot(HaveOccurred())
		for i := range b {
			b[i] = 0xFF
		}
		p.Return(b)

		b2, err := p.Rent(100)
		Expect(err).ToNot(HaveOccurred())
		for _, v := range b2 {
			Expect(v).To(Equal(byte(0)))
		}
	})
})

var _ = Describe("Lease", func() {
	It("disposes exactly once, returning the bytes to the pool", func() {
		p, err := bufpool.New(baseConfig(), nil)
		Expect(err).ToNot(HaveOccurred())

		before := p.Snapshot()[0].Free
		b, err := p.Rent(100)
		Expect(err).ToNot(HaveOccurred())
		lease := bufpool.NewLease(p, b)

		lease.Dispose()
		lease.Dispose()

		Expect(p.Snapshot()[0].Free).To(Equal(before))
	})
})
