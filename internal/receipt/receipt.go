package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is a parsed till receipt as stored in the database
type Receipt struct {
	ID              string    `json:"id"`
	StoreName       string    `json:"store_name"`
	TransactionDate string    `json:"transaction_date"` // DD.MM.YY HH:MM as printed, or "Unknown"
	Purchaser       string    `json:"purchaser"`        // who paid, or "Unknown"
	Items           []Item    `json:"items"`
	Truncated       bool      `json:"truncated,omitempty"` // item list stopped at an unreadable line
	Filename        string    `json:"filename"`
	ContentType     string    `json:"content_type"`
	SettlementID    string    `json:"settlement_id,omitempty"` // set once the receipt has been settled
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Item is a purchased product on a receipt
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Shared    bool            `json:"shared"` // split between the household rather than the purchaser's own
}

// Total is the line total
func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total is the sum of all line totals
func (r *Receipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Total())
	}
	return total
}

// SharedTotal is the sum of the line totals of shared items
func (r *Receipt) SharedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		if item.Shared {
			total = total.Add(item.Total())
		}
	}
	return total
}

// Settled reports whether the receipt belongs to a settlement
func (r *Receipt) Settled() bool {
	return r.SettlementID != ""
}

// Settlement squares up shared spending across a set of receipts
type Settlement struct {
	ID          string          `json:"id"`
	ReceiptIDs  []string        `json:"receipt_ids"`
	Balances    []Balance       `json:"balances"`
	SharedTotal decimal.Decimal `json:"shared_total"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Balance is one member's position in a settlement. A positive Net means the
// member is owed money; negative means they owe it.
type Balance struct {
	Member string          `json:"member"`
	Paid   decimal.Decimal `json:"paid"`
	Share  decimal.Decimal `json:"share"`
	Net    decimal.Decimal `json:"net"`
}
