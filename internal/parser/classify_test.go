package parser

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("line classifier", func() {
	DescribeTable("isCurrencySectionStart",
		func(line string, expected bool) {
			Expect(isCurrencySectionStart(line, "GBP")).To(Equal(expected))
		},
		Entry("exact code", "GBP", true),
		Entry("lowercase", "gbp", false),
		Entry("padded", " GBP", false),
		Entry("embedded", "no GBP marker here", false),
	)

	DescribeTable("isSectionTerminator",
		func(line string, expected bool) {
			Expect(isSectionTerminator(line)).To(Equal(expected))
		},
		Entry("subtotal", "Subtotal", true),
		Entry("total", "Total", true),
		Entry("uppercase", "TOTAL", false),
		Entry("with amount", "Total 12.40", false),
	)

	DescribeTable("isMultiQuantityMarker",
		func(line string, expected bool) {
			Expect(isMultiQuantityMarker(line)).To(Equal(expected))
		},
		Entry("compact", "3x", true),
		Entry("spaced", "3 x", true),
		Entry("two digits", "12x", true),
		Entry("bare x", "x", false),
		Entry("item name", "Bananas", false),
		Entry("trailing text", "Eggs 6x large", false),
		Entry("capital X", "3X", false),
		Entry("leading count in a name", "6x Eggs", false),
		Entry("trailing count in a name", "Box 12x", false),
	)

	DescribeTable("isCardSuffixLine",
		func(line string, expected bool) {
			Expect(isCardSuffixLine(line)).To(Equal(expected))
		},
		Entry("contiguous mask", "************5678", true),
		Entry("exactly eight", "********1234", true),
		Entry("mask split by spaces", "Card ****1234 ** **** 5678", true),
		Entry("short mask", "****1234", false),
		Entry("no mask", "Contactless", false),
	)
})
