package objpool_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/objpool"
)

func TestObjPool(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "objpool suite")
}

type widget struct {
	resets int
	value  int
}

func (w *widget) PoolReset() {
	w.resets++
	w.value = 0
}

var _ = Describe("Pool", func() {
	It("constructs fresh values when the free list is empty", func() {
		created := 0
		p := objpool.New(func() *widget {
			created++
			return &widget{}
		}, 0)

		a := p.Get()
		b := p.Get()

		Expect(a).ToNot(BeIdenticalTo(b))
		Expect(created).To(Equal(2))
		Expect(p.Stats().Created).To(BeEquivalentTo(2))
		Expect(p.Stats().InUse).To(Equal(2))
	})

	It("reuses a returned value and resets it first", func() {
		p := objpool.New(func() *widget { return &widget{} }, 0)

		a := p.Get()
		a.value = 42
		p.Return(a)

		Expect(a.resets).To(Equal(1))
		Expect(a.value).To(Equal(0))

		b := p.Get()
		Expect(b).To(BeIdenticalTo(a))
		Expect(p.Stats().InPool).To(Equal(0))
	})

	It("drops returns once the soft capacity is reached", func() {
		p := objpool.New(func() *widget { return &widget{} }, 1)

		a := p.Get()
		b := p.Get()

		p.Return(a)
		p.Return(b)

		st := p.Stats()
		Expect(st.InPool).To(Equal(1))
		Expect(st.Dropped).To(BeEquivalentTo(1))
	})

	It("preallocates up to the configured capacity", func() {
		p := objpool.New(func() *widget { return &widget{} }, 3)
		p.Prealloc(5)

		Expect(p.Stats().InPool).To(Equal(3))
		Expect(p.Stats().Created).To(BeEquivalentTo(3))
	})

	It("clears the free list without affecting in-flight instances", func() {
		p := objpool.New(func() *widget { return &widget{} }, 0)
		p.Prealloc(2)
		p.Clear()

		Expect(p.Stats().InPool).To(Equal(0))
	})

	It("trims the free list down to a retained percentage", func() {
		p := objpool.New(func() *widget { return &widget{} }, 0)
		p.Prealloc(10)

		p.Trim(50)

		st := p.Stats()
		Expect(st.InPool).To(Equal(5))
		Expect(st.Dropped).To(BeEquivalentTo(5))
	})

	It("raises the cap with SetMaxCapacity for subsequent returns", func() {
		p := objpool.New(func() *widget { return &widget{} }, 1)
		p.SetMaxCapacity(2)

		a := p.Get()
		b := p.Get()
		p.Return(a)
		p.Return(b)

		Expect(p.Stats().InPool).To(Equal(2))
		Expect(p.Stats().Dropped).To(BeEquivalentTo(0))
	})
})
