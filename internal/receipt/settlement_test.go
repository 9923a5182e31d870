package receipt

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// hookedDB runs beforeUpdate once, just before the next UpdateReceipt reaches
// the store
type hookedDB struct {
	*BoltDB
	beforeUpdate func()
}

func (d *hookedDB) UpdateReceipt(id string, fn func(*Receipt) error) error {
	if hook := d.beforeUpdate; hook != nil {
		d.beforeUpdate = nil
		hook()
	}
	return d.BoltDB.UpdateReceipt(id, fn)
}

type sequenceIDGenerator struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("s%d", g.next)
}

var _ = Describe("Settling receipts that are being edited", func() {
	var (
		bolt    *BoltDB
		db      *hookedDB
		service *Service
	)

	BeforeEach(func() {
		var err error
		bolt, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
		db = &hookedDB{BoltDB: bolt}

		timeSrc := &mockTimeSource{now: time.Date(2025, 11, 12, 16, 0, 0, 0, time.UTC)}
		service = NewServiceWithDeps(db, newMockScanner(), newMockStorage(), newMockDirectory(), &sequenceIDGenerator{}, timeSrc)

		Expect(bolt.SaveReceipt(testReceipt("r1", "Alice"))).To(Succeed())
	})

	AfterEach(func() {
		bolt.Close()
	})

	When("a settlement lands while an item edit is in flight", func() {
		var (
			first   *Settlement
			editErr error
		)

		BeforeEach(func() {
			db.beforeUpdate = func() {
				var err error
				first, err = service.CreateSettlement([]string{"r1"})
				Expect(err).NotTo(HaveOccurred())
			}

			shared := false
			_, editErr = service.UpdateItem("r1", "1", ItemUpdate{Shared: &shared})
		})

		It("rejects the edit", func() {
			Expect(editErr).To(MatchError(ErrSettled))
		})

		It("keeps the receipt linked to its settlement", func() {
			saved, err := bolt.GetReceipt("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.SettlementID).To(Equal(first.ID))
			Expect(saved.Items[0].Shared).To(BeTrue())
		})

		It("does not settle the receipt a second time", func() {
			_, err := service.CreateSettlement([]string{"r1"})
			Expect(err).To(MatchError(ErrSettled))

			settlements, err := bolt.ListSettlements()
			Expect(err).NotTo(HaveOccurred())
			Expect(settlements).To(HaveLen(1))
		})
	})

	When("a purchaser change races a settlement", func() {
		It("rejects the change", func() {
			Expect(bolt.SaveReceipt(testReceipt("r2", "Bob"))).To(Succeed())

			db.beforeUpdate = func() {
				_, err := service.CreateSettlement([]string{"r2"})
				Expect(err).NotTo(HaveOccurred())
			}

			_, err := service.SetPurchaser("r2", "Alice")
			Expect(err).To(MatchError(ErrSettled))

			saved, err := bolt.GetReceipt("r2")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Purchaser).To(Equal("Bob"))
			Expect(saved.Settled()).To(BeTrue())
		})
	})

	When("many settlements and edits run at once", func() {
		It("settles the receipt exactly once", func() {
			var wg sync.WaitGroup
			settled := make(chan string, 8)
			for i := 0; i < 8; i++ {
				wg.Add(2)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					if s, err := service.CreateSettlement([]string{"r1"}); err == nil {
						settled <- s.ID
					}
				}()
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					qty := 2
					_, _ = service.UpdateItem("r1", "1", ItemUpdate{Quantity: &qty})
				}()
			}
			wg.Wait()
			close(settled)

			var ids []string
			for id := range settled {
				ids = append(ids, id)
			}
			Expect(ids).To(HaveLen(1))

			saved, err := bolt.GetReceipt("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.SettlementID).To(Equal(ids[0]))
		})
	})
})
