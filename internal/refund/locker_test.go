package refund_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/refund-management/internal/refund"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("KeyLocker", func() {
	var locker *refund.KeyLocker

	BeforeEach(func() {
		locker = refund.NewKeyLocker()
	})

	It("should serialize holders of the same key", func() {
		var (
			wg      sync.WaitGroup
			holders int32
			maxSeen int32
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				unlock, err := locker.Lock(context.Background(), "refund:1")
				Expect(err).NotTo(HaveOccurred())
				n := atomic.AddInt32(&holders, 1)
				for {
					seen := atomic.LoadInt32(&maxSeen)
					if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&holders, -1)
				unlock()
			}()
		}
		wg.Wait()
		Expect(atomic.LoadInt32(&maxSeen)).To(Equal(int32(1)))
		Expect(locker.Len()).To(Equal(0))
	})

	It("should not block different keys", func() {
		unlockA, err := locker.Lock(context.Background(), "refund:1")
		Expect(err).NotTo(HaveOccurred())
		defer unlockA()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		unlockB, err := locker.Lock(ctx, "refund:2")
		Expect(err).NotTo(HaveOccurred())
		unlockB()
	})

	It("should give up when the context ends", func() {
		unlock, err := locker.Lock(context.Background(), "payment:9")
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(ctx, "payment:9")
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())

		unlock()
		unlock()
		Expect(locker.Len()).To(Equal(0))
	})
})
