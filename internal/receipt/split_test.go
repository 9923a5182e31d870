package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/shopping-tracker/internal/parser"
)

var _ = Describe("computeBalances", func() {
	var (
		receipts    []*Receipt
		members     []string
		balances    []Balance
		sharedTotal decimal.Decimal
		err         error
	)

	BeforeEach(func() {
		members = []string{"Alice", "Bob", "Carol"}
		receipts = nil
	})

	JustBeforeEach(func() {
		balances, sharedTotal, err = computeBalances(receipts, members)
	})

	When("a shared total does not divide evenly", func() {
		BeforeEach(func() {
			r := testReceipt("r1", "Alice")
			r.Items[0].UnitPrice = decimal.RequireFromString("10.00")
			receipts = []*Receipt{r}
		})

		It("gives the rounding remainder to the purchaser", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(sharedTotal).To(equalMoney("10.00"))
			Expect(balances).To(HaveLen(3))
			Expect(balances[0].Share).To(equalMoney("3.34"))
			Expect(balances[1].Share).To(equalMoney("3.33"))
			Expect(balances[2].Share).To(equalMoney("3.33"))
		})

		It("balances to zero", func() {
			sum := decimal.Zero
			for _, b := range balances {
				sum = sum.Add(b.Net)
			}
			Expect(sum.IsZero()).To(BeTrue())
		})

		It("credits the purchaser with what they paid", func() {
			Expect(balances[0].Member).To(Equal("Alice"))
			Expect(balances[0].Paid).To(equalMoney("10.00"))
			Expect(balances[0].Net).To(equalMoney("6.66"))
			Expect(balances[1].Net).To(equalMoney("-3.33"))
		})
	})

	When("only unshared items were bought", func() {
		BeforeEach(func() {
			r := testReceipt("r1", "Bob")
			r.Items[0].Shared = false
			receipts = []*Receipt{r}
		})

		It("leaves everyone at zero", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(sharedTotal.IsZero()).To(BeTrue())
			for _, b := range balances {
				Expect(b.Net.IsZero()).To(BeTrue())
			}
		})
	})

	When("the purchaser is not a listed member", func() {
		BeforeEach(func() {
			members = []string{"Alice"}
			receipts = []*Receipt{testReceipt("r1", "Dave")}
		})

		It("includes them in the split", func() {
			Expect(balances).To(HaveLen(2))
			Expect(balances[1].Member).To(Equal("Dave"))
			Expect(balances[1].Net).To(equalMoney("1.00"))
		})
	})

	When("a receipt has an unknown purchaser", func() {
		BeforeEach(func() {
			receipts = []*Receipt{testReceipt("r1", parser.Unknown)}
		})

		It("returns ErrUnknownPurchaser", func() {
			Expect(err).To(MatchError(ErrUnknownPurchaser))
		})
	})

	When("there are no receipts", func() {
		It("returns zero balances for every member", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(balances).To(HaveLen(3))
			Expect(sharedTotal.IsZero()).To(BeTrue())
		})
	})
})
