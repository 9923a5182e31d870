package parser

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("resolvePurchaser", func() {
	var (
		lines     []string
		dir       Directory
		looked    []string
		purchaser string
	)

	BeforeEach(func() {
		looked = nil
		dir = DirectoryFunc(func(suffix string) (string, bool) {
			looked = append(looked, suffix)
			switch suffix {
			case "5678":
				return "Alice", true
			case "1234":
				return "Bob", true
			}
			return "", false
		})
	})

	JustBeforeEach(func() {
		purchaser = resolvePurchaser(lines, dir)
	})

	When("the card line has spaces inside the mask", func() {
		BeforeEach(func() {
			lines = []string{"Aldi", "Card ****1234 ** **** 5678", "Total"}
		})

		It("uses the digits after the last asterisk", func() {
			Expect(looked).To(Equal([]string{"5678"}))
			Expect(purchaser).To(Equal("Alice"))
		})
	})

	When("the card line has a contiguous mask", func() {
		BeforeEach(func() {
			lines = []string{"Aldi", "************1234", "Contactless"}
		})

		It("resolves the purchaser", func() {
			Expect(purchaser).To(Equal("Bob"))
		})
	})

	When("digits follow the suffix", func() {
		BeforeEach(func() {
			lines = []string{"********567890"}
		})

		It("takes only four characters", func() {
			Expect(looked).To(Equal([]string{"5678"}))
		})
	})

	When("fewer than four characters follow the mask", func() {
		BeforeEach(func() {
			lines = []string{"************56"}
		})

		It("looks up the short suffix", func() {
			Expect(looked).To(Equal([]string{"56"}))
		})

		It("returns Unknown when the directory has no entry", func() {
			Expect(purchaser).To(Equal(Unknown))
		})
	})

	When("several card lines exist", func() {
		BeforeEach(func() {
			lines = []string{"********9999", "********5678"}
		})

		It("only considers the first", func() {
			Expect(looked).To(Equal([]string{"9999"}))
			Expect(purchaser).To(Equal(Unknown))
		})
	})

	When("no line carries a card mask", func() {
		BeforeEach(func() {
			lines = []string{"Aldi", "GBP", "Bananas", "0.89", "Total"}
		})

		It("returns Unknown without a lookup", func() {
			Expect(purchaser).To(Equal(Unknown))
			Expect(looked).To(BeEmpty())
		})
	})

	When("the directory is nil", func() {
		BeforeEach(func() {
			lines = []string{"********5678"}
			dir = nil
		})

		It("returns Unknown", func() {
			Expect(purchaser).To(Equal(Unknown))
		})
	})
})
