package parser

// Aldi UK receipt constants.
const (
	aldiSignature = "aldi"
	aldiStoreName = "Aldi"
	aldiCurrency  = "GBP"
)

// Aldi returns the dispatch entry for Aldi UK receipts.
//
// The itemised section starts after a bare "GBP" line and ends at "Subtotal"
// or "Total". Single items are printed as a name line followed by a price
// line; multiples as "Nx", unit price, name and a line total.
func Aldi() Merchant {
	return Merchant{
		Name:      "aldi",
		Signature: aldiSignature,
		StoreName: aldiStoreName,
		Extract: func(lines []string) ([]LineItem, bool, error) {
			return extractItems(lines, aldiCurrency)
		},
	}
}
