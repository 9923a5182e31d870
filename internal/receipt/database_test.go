package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			receipt = testReceipt("test-id", "Alice")
			receipt.ContentType = "image/jpeg"
			receipt.CreatedAt = time.Date(2025, 11, 12, 16, 0, 0, 0, time.UTC)
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(receipt)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should round-trip the items", func() {
				saved, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Items).To(HaveLen(2))
				Expect(saved.Items[0].UnitPrice.Equal(decimal.RequireFromString("2.00"))).To(BeTrue())
				Expect(saved.Items[1].Shared).To(BeFalse())
				Expect(saved.CreatedAt.Equal(receipt.CreatedAt)).To(BeTrue())
			})
		})

		When("the receipt already exists", func() {
			BeforeEach(func() {
				Expect(db.SaveReceipt(testReceipt("test-id", "Bob"))).To(Succeed())
			})

			It("replaces it", func() {
				saved, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Purchaser).To(Equal("Alice"))
			})
		})
	})

	Describe("GetReceipt", func() {
		var (
			receiptID string
			receipt   *Receipt
			err       error
		)

		JustBeforeEach(func() {
			receipt, err = db.GetReceipt(receiptID)
		})

		When("receipt exists", func() {
			BeforeEach(func() {
				receiptID = "existing-id"
				Expect(db.SaveReceipt(testReceipt(receiptID, "Bob"))).To(Succeed())
			})

			It("should return the receipt", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(receipt.ID).To(Equal("existing-id"))
				Expect(receipt.Purchaser).To(Equal("Bob"))
			})
		})

		When("receipt does not exist", func() {
			BeforeEach(func() {
				receiptID = "non-existent"
			})

			It("should return ErrNotFound", func() {
				Expect(err).To(MatchError(ErrNotFound))
				Expect(receipt).To(BeNil())
			})
		})
	})

	Describe("ListReceipts", func() {
		When("the database is empty", func() {
			It("returns an empty list", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).NotTo(BeNil())
				Expect(receipts).To(BeEmpty())
			})
		})

		When("receipts exist", func() {
			BeforeEach(func() {
				Expect(db.SaveReceipt(testReceipt("a", "Alice"))).To(Succeed())
				Expect(db.SaveReceipt(testReceipt("b", "Bob"))).To(Succeed())
			})

			It("returns them all", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(HaveLen(2))
			})
		})
	})

	Describe("UpdateReceipt", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(testReceipt("r1", "Alice"))).To(Succeed())
		})

		It("stores the change", func() {
			err := db.UpdateReceipt("r1", func(r *Receipt) error {
				r.Purchaser = "Bob"
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			saved, getErr := db.GetReceipt("r1")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(saved.Purchaser).To(Equal("Bob"))
		})

		It("stores nothing when the change fails", func() {
			err := db.UpdateReceipt("r1", func(r *Receipt) error {
				r.Purchaser = "Bob"
				return ErrInvalidEdit
			})
			Expect(err).To(MatchError(ErrInvalidEdit))

			saved, getErr := db.GetReceipt("r1")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(saved.Purchaser).To(Equal("Alice"))
		})

		It("returns ErrNotFound for a missing receipt", func() {
			err := db.UpdateReceipt("missing", func(*Receipt) error { return nil })
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("DeleteReceipt", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(testReceipt("doomed", "Alice"))).To(Succeed())
		})

		It("removes the receipt and returns it", func() {
			deleted, err := db.DeleteReceipt("doomed", func(*Receipt) error { return nil })
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted.Filename).To(Equal("doomed_receipt.jpg"))

			_, err = db.GetReceipt("doomed")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("keeps the receipt when the check fails", func() {
			_, err := db.DeleteReceipt("doomed", func(*Receipt) error { return ErrSettled })
			Expect(err).To(MatchError(ErrSettled))

			_, err = db.GetReceipt("doomed")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("SaveSettlement", func() {
		var (
			settlement *Settlement
			seen       []*Receipt
			fill       func([]*Receipt) error
			err        error
		)

		BeforeEach(func() {
			fill = func(receipts []*Receipt) error {
				seen = receipts
				settlement.SharedTotal = decimal.RequireFromString("4.00")
				settlement.Balances = []Balance{
					{Member: "Alice", Paid: decimal.RequireFromString("2"), Share: decimal.RequireFromString("2"), Net: decimal.Zero},
					{Member: "Bob", Paid: decimal.RequireFromString("2"), Share: decimal.RequireFromString("2"), Net: decimal.Zero},
				}
				return nil
			}
			Expect(db.SaveReceipt(testReceipt("r1", "Alice"))).To(Succeed())
			Expect(db.SaveReceipt(testReceipt("r2", "Bob"))).To(Succeed())
			settlement = &Settlement{ID: "s1", ReceiptIDs: []string{"r1", "r2"}}
			seen = nil
		})

		JustBeforeEach(func() {
			err = db.SaveSettlement(settlement, fill)
		})

		When("every receipt is open", func() {
			It("hands the stored receipts to the split", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(seen).To(HaveLen(2))
				Expect(seen[1].Purchaser).To(Equal("Bob"))
			})

			It("stores the settlement", func() {
				saved, getErr := db.GetSettlement("s1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ReceiptIDs).To(Equal([]string{"r1", "r2"}))
				Expect(saved.Balances).To(HaveLen(2))
				Expect(saved.SharedTotal.Equal(decimal.RequireFromString("4"))).To(BeTrue())
			})

			It("marks the receipts settled", func() {
				for _, id := range []string{"r1", "r2"} {
					saved, getErr := db.GetReceipt(id)
					Expect(getErr).NotTo(HaveOccurred())
					Expect(saved.SettlementID).To(Equal("s1"))
				}
			})

			It("lists the settlement", func() {
				settlements, listErr := db.ListSettlements()
				Expect(listErr).NotTo(HaveOccurred())
				Expect(settlements).To(HaveLen(1))
			})

			It("refuses to settle the same receipts again", func() {
				again := db.SaveSettlement(&Settlement{ID: "s2", ReceiptIDs: []string{"r2"}}, fill)
				Expect(again).To(MatchError(ErrSettled))

				saved, getErr := db.GetReceipt("r2")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.SettlementID).To(Equal("s1"))
				_, getErr = db.GetSettlement("s2")
				Expect(getErr).To(MatchError(ErrNotFound))
			})
		})

		When("a receipt was deleted", func() {
			BeforeEach(func() {
				_, delErr := db.DeleteReceipt("r2", func(*Receipt) error { return nil })
				Expect(delErr).NotTo(HaveOccurred())
			})

			It("returns ErrNotFound without bringing it back", func() {
				Expect(err).To(MatchError(ErrNotFound))
				_, getErr := db.GetReceipt("r2")
				Expect(getErr).To(MatchError(ErrNotFound))
				_, getErr = db.GetSettlement("s1")
				Expect(getErr).To(MatchError(ErrNotFound))
			})
		})

		When("the split fails", func() {
			BeforeEach(func() {
				fill = func([]*Receipt) error { return ErrUnknownPurchaser }
			})

			It("stores nothing", func() {
				Expect(err).To(MatchError(ErrUnknownPurchaser))
				saved, getErr := db.GetReceipt("r1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Settled()).To(BeFalse())
			})
		})
	})

	Describe("GetSettlement", func() {
		It("returns ErrNotFound for a missing settlement", func() {
			_, err := db.GetSettlement("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})
})
