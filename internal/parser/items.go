package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// errBadGroup marks a line group that cannot be turned into an item.
var errBadGroup = errors.New("bad line group")

// Line strides for the two item layouts. The multi-quantity layout carries a
// fourth row with the line total, which is skipped.
const (
	singleQuantityStride = 2
	multiQuantityStride  = 4
)

// extractItems walks lines from the currency marker to the section terminator
// and returns the items it finds. truncated is true when a malformed group
// stopped the walk early; the items before it are still returned.
func extractItems(lines []string, currency string) (items []LineItem, truncated bool, err error) {
	items = make([]LineItem, 0)

	i := 0
	for i < len(lines) && !isCurrencySectionStart(lines[i], currency) {
		i++
	}
	if i == len(lines) {
		return nil, false, fmt.Errorf("%w: currency marker %q not found", ErrMalformedReceipt, currency)
	}
	i++

	for i < len(lines) {
		if isSectionTerminator(lines[i]) {
			break
		}

		var (
			item     LineItem
			stride   int
			groupErr error
		)
		if isMultiQuantityMarker(lines[i]) {
			item, groupErr = multiQuantityItem(lines, i)
			stride = multiQuantityStride
		} else {
			item, groupErr = singleQuantityItem(lines, i)
			stride = singleQuantityStride
		}
		if groupErr != nil {
			return items, true, nil
		}

		items = append(items, item)
		i += stride
	}

	return items, false, nil
}

// multiQuantityItem reads the group: quantity marker, unit price, name.
func multiQuantityItem(lines []string, i int) (LineItem, error) {
	if i+2 >= len(lines) {
		return LineItem{}, fmt.Errorf("%w: quantity group at line %d runs past end of input", errBadGroup, i)
	}

	quantity, err := parseQuantity(lines[i])
	if err != nil {
		return LineItem{}, err
	}
	price, err := parsePrice(strings.TrimSpace(lines[i+1]))
	if err != nil {
		return LineItem{}, err
	}

	return LineItem{
		Name:      lines[i+2],
		Quantity:  quantity,
		UnitPrice: price,
	}, nil
}

// singleQuantityItem reads the group: name, price line. Only the first token
// of the price line is the price; anything after it (a weight unit, a tax
// code) is ignored.
func singleQuantityItem(lines []string, i int) (LineItem, error) {
	if i+1 >= len(lines) {
		return LineItem{}, fmt.Errorf("%w: item %q has no price line", errBadGroup, lines[i])
	}

	fields := strings.Fields(lines[i+1])
	if len(fields) == 0 {
		return LineItem{}, fmt.Errorf("%w: empty price line after %q", errBadGroup, lines[i])
	}
	price, err := parsePrice(fields[0])
	if err != nil {
		return LineItem{}, err
	}

	return LineItem{
		Name:      lines[i],
		Quantity:  1,
		UnitPrice: price,
	}, nil
}

// parseQuantity turns "3x" or "3 x" into 3.
func parseQuantity(marker string) (int, error) {
	digits := strings.TrimSuffix(stripSpace(marker), "x")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: quantity %q: %v", errBadGroup, marker, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: quantity %q is below one", errBadGroup, marker)
	}
	return n, nil
}

// parsePrice parses a price that may use a comma as its decimal separator.
// Only plain unsigned decimals are prices; signs and exponents ("1e4") are not.
func parsePrice(s string) (decimal.Decimal, error) {
	normalised := strings.ReplaceAll(s, ",", ".")
	if !pricePattern.MatchString(normalised) {
		return decimal.Zero, fmt.Errorf("%w: price %q is not a plain decimal", errBadGroup, s)
	}
	d, err := decimal.NewFromString(normalised)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q: %v", errBadGroup, s, err)
	}
	return d, nil
}
