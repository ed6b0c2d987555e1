package taskgroup_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/tcpkernel/taskgroup"
)

func TestTaskGroup(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "taskgroup suite")
}

var _ = Describe("Group", func() {
	It("runs workers and cancels the whole group", func() {
		g := taskgroup.New(context.Background())

		var started int32
		var finished int32

		for i := 0; i < 4; i++ {
			err := g.Start("w", "grp", func(ctx context.Context) error {
				atomic.AddInt32(&started, 1)
				<-ctx.Done()
				atomic.AddInt32(&finished, 1)
				return nil
			})
			Expect(err).ToNot(HaveOccurred())
		}

		Eventually(func() int32 { return atomic.LoadInt32(&started) }, time.Second).Should(Equal(int32(4)))

		g.CancelGroup("grp")
		Expect(g.Wait("grp")).To(Succeed())
		Expect(atomic.LoadInt32(&finished)).To(Equal(int32(4)))
	})

	It("is idempotent cancelling an unknown group", func() {
		g := taskgroup.New(context.Background())
		Expect(func() { g.CancelGroup("does-not-exist") }).ToNot(Panic())
	})
})
