// Package parser turns the OCR text of a till receipt into line items, a
// transaction date and the purchaser who paid. It does no I/O; the purchaser
// directory is supplied by the caller.
package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unknown is reported for a date or purchaser the receipt does not reveal.
const Unknown = "Unknown"

// LineItem is one purchased product as printed on the receipt.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Receipt is the structured result of a successful parse.
type Receipt struct {
	StoreName       string     `json:"store_name"`
	TransactionDate string     `json:"transaction_date"` // DD.MM.YY HH:MM or Unknown
	Purchaser       string     `json:"purchaser"`
	Items           []LineItem `json:"items"`
	// Truncated is set when item extraction stopped at a line group it could
	// not read. Items holds everything before that point.
	Truncated bool `json:"truncated,omitempty"`
}

// ItemExtractor pulls the items out of a merchant's line stream.
type ItemExtractor func(lines []string) (items []LineItem, truncated bool, err error)

// Merchant is one entry of the dispatch table.
type Merchant struct {
	// Name identifies the merchant in logs.
	Name string
	// Signature is a lowercase substring that identifies the merchant anywhere
	// in the receipt text.
	Signature string
	// StoreName is recorded on every receipt instead of the OCR spelling.
	StoreName string
	Extract   ItemExtractor
}

// Registry dispatches receipts to merchant extractors by signature. Merchants
// are tried in registration order; the first match wins.
type Registry struct {
	merchants []Merchant
}

// NewRegistry creates a Registry holding the given merchants.
func NewRegistry(merchants ...Merchant) *Registry {
	r := &Registry{}
	for _, m := range merchants {
		r.Register(m)
	}
	return r
}

// DefaultRegistry returns a Registry with every supported merchant.
func DefaultRegistry() *Registry {
	return NewRegistry(Aldi())
}

// Register adds a merchant. Register must not be called concurrently with
// Parse.
func (r *Registry) Register(m Merchant) {
	m.Signature = strings.ToLower(m.Signature)
	r.merchants = append(r.merchants, m)
}

// Merchants returns the names of the registered merchants.
func (r *Registry) Merchants() []string {
	names := make([]string, 0, len(r.merchants))
	for _, m := range r.merchants {
		names = append(names, m.Name)
	}
	return names
}

// Parse selects the merchant whose signature appears in lines and assembles a
// Receipt from its items, the transaction date and the purchaser resolved
// through dir. It returns ErrUnsupportedMerchant or ErrMalformedReceipt
// (wrapped) when the receipt cannot be parsed.
func (r *Registry) Parse(lines []string, dir Directory) (*Receipt, error) {
	m, ok := r.match(lines)
	if !ok {
		return nil, fmt.Errorf("%w: no known merchant signature in receipt text (supported: %s)",
			ErrUnsupportedMerchant, strings.Join(r.Merchants(), ", "))
	}

	items, truncated, err := m.Extract(lines)
	if err != nil {
		return nil, fmt.Errorf("parsing %s receipt: %w", m.Name, err)
	}

	return &Receipt{
		StoreName:       m.StoreName,
		TransactionDate: extractDate(lines),
		Purchaser:       resolvePurchaser(lines, dir),
		Items:           items,
		Truncated:       truncated,
	}, nil
}

func (r *Registry) match(lines []string) (Merchant, bool) {
	text := strings.ToLower(strings.Join(lines, "\n"))
	for _, m := range r.merchants {
		if m.Signature != "" && strings.Contains(text, m.Signature) {
			return m, true
		}
	}
	return Merchant{}, false
}

// Parse parses lines with the default registry.
func Parse(lines []string, dir Directory) (*Receipt, error) {
	return DefaultRegistry().Parse(lines, dir)
}

// ParseText splits raw OCR text into lines and parses it with the default
// registry.
func ParseText(text string, dir Directory) (*Receipt, error) {
	return Parse(SplitLines(text), dir)
}

// SplitLines splits newline-delimited OCR text into lines, dropping the
// carriage return of CRLF line endings. Lines are otherwise left untouched.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
