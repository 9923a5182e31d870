package receipt

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zombor/shopping-tracker/internal/parser"
)

// ErrUnknownPurchaser is returned when shared costs cannot be split because a
// receipt has no known purchaser
var ErrUnknownPurchaser = errors.New("receipt has no known purchaser")

// computeBalances splits the shared items of each receipt equally between
// members. The purchaser paid for the whole receipt and takes whatever is left
// after rounding the other members' shares to pennies, so the nets of a
// settlement always sum to zero. Unshared items are the purchaser's own cost
// and do not affect balances.
func computeBalances(receipts []*Receipt, members []string) ([]Balance, decimal.Decimal, error) {
	all := make(map[string]bool)
	for _, m := range members {
		all[m] = true
	}
	for _, r := range receipts {
		if r.Purchaser == "" || r.Purchaser == parser.Unknown {
			return nil, decimal.Zero, fmt.Errorf("receipt %s: %w", r.ID, ErrUnknownPurchaser)
		}
		all[r.Purchaser] = true
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	paid := make(map[string]decimal.Decimal, len(names))
	share := make(map[string]decimal.Decimal, len(names))
	sharedTotal := decimal.Zero
	count := decimal.NewFromInt(int64(len(names)))

	for _, r := range receipts {
		shared := r.SharedTotal()
		if shared.IsZero() {
			continue
		}
		sharedTotal = sharedTotal.Add(shared)
		paid[r.Purchaser] = paid[r.Purchaser].Add(shared)

		each := shared.DivRound(count, 2)
		rest := shared
		for _, name := range names {
			if name == r.Purchaser {
				continue
			}
			share[name] = share[name].Add(each)
			rest = rest.Sub(each)
		}
		share[r.Purchaser] = share[r.Purchaser].Add(rest)
	}

	balances := make([]Balance, 0, len(names))
	for _, name := range names {
		balances = append(balances, Balance{
			Member: name,
			Paid:   paid[name],
			Share:  share[name],
			Net:    paid[name].Sub(share[name]),
		})
	}
	return balances, sharedTotal, nil
}
