package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// Anchored on purpose: a substring match would take item names such as
	// "6x Eggs" or "Box 12x" for quantity markers.
	multiQuantityPattern = regexp.MustCompile(`^\d+x$`)
	datePattern          = regexp.MustCompile(`\d{2}\.\d{2}\.\d{2}\s+\d{2}:\d{2}`)
	pricePattern         = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// cardMaskLength is the number of asterisks OCR prints in place of the hidden
// digits of a payment card.
const cardMaskLength = 8

// isCurrencySectionStart reports whether line is the bare currency code that
// opens the itemised section. No trimming is applied.
func isCurrencySectionStart(line, currency string) bool {
	return line == currency
}

// isSectionTerminator reports whether line closes the itemised section.
func isSectionTerminator(line string) bool {
	return line == "Subtotal" || line == "Total"
}

// isMultiQuantityMarker matches "3x" and "3 x" style quantity lines.
func isMultiQuantityMarker(line string) bool {
	return multiQuantityPattern.MatchString(stripSpace(line))
}

// isCardSuffixLine reports whether line carries a masked card number.
// A contiguous "********" run always qualifies; OCR sometimes splits the mask
// with spaces, so asterisks are counted after whitespace is removed.
func isCardSuffixLine(line string) bool {
	return strings.Count(stripSpace(line), "*") >= cardMaskLength
}

// stripSpace removes every whitespace rune from s.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
