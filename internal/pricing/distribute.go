// Package pricing implements the discount distribution engine: it splits an
// aggregate discount across order line items proportionally using the largest
// remainder method, honouring per-item margin caps for alcohol products.
package pricing

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	domain "github.com/dashmart/promotions/internal/domain"
)

// alcoholCapRatio limits alcohol discounts to 35% of the item subtotal when the
// purchase price leaves more margin than that (numerator/denominator to keep
// the arithmetic in integers).
const (
	alcoholCapNum   = 35
	alcoholCapDenom = 100
)

type share struct {
	itemID   string
	subtotal int64
	floor    int64
	// fraction is the remainder of (discount * subtotal) / orderSubtotal and
	// orders the leftover-cent distribution.
	fraction int64
	// cap is the alcohol margin cap; negative means uncapped.
	cap int64
}

// DistributeDiscount allocates discount minor units across items proportionally
// to their extended prices. purchasePrices maps alcohol product ids to their
// per-unit purchase price; missing entries default the margin to the full unit
// price, leaving only the percentage cap. The returned total reflects caps and
// may be below the requested discount.
//
// A negative discount is a programming error and panics.
func DistributeDiscount(logger *zap.Logger, discount int64, items []domain.OrderLineItem, purchasePrices map[string]int64) domain.DistributedDiscount {
	if discount < 0 {
		panic(fmt.Sprintf("pricing: discount must be >= 0, got %d", discount))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	orderSubtotal := domain.OrderSubtotal(items)
	if orderSubtotal == 0 {
		return domain.DistributedDiscount{}
	}

	shares := make([]*share, 0, len(items))
	for _, item := range items {
		s := &share{
			itemID:   item.ID,
			subtotal: item.Subtotal(),
			floor:    discount * item.Subtotal() / orderSubtotal,
			fraction: (discount * item.Subtotal()) % orderSubtotal,
			cap:      -1,
		}
		if item.Type == domain.ProductTypeAlcohol {
			s.cap = alcoholCap(logger, item, purchasePrices)
		}
		shares = append(shares, s)
	}

	// Hand out the cents lost to flooring, largest fractional remainder first;
	// item subtotal breaks ties.
	ordered := make([]*share, len(shares))
	copy(ordered, shares)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].fraction != ordered[j].fraction {
			return ordered[i].fraction > ordered[j].fraction
		}
		return ordered[i].subtotal > ordered[j].subtotal
	})

	remaining := discount
	for _, s := range ordered {
		remaining -= s.floor
	}
	for _, s := range ordered {
		if remaining == 0 {
			break
		}
		s.floor++
		remaining--
	}

	// Caps clamp after remainder distribution so a capped item never absorbs
	// leftover cents beyond its margin.
	result := domain.DistributedDiscount{Items: make([]domain.DistributedDiscountItem, 0, len(shares))}
	for _, s := range shares {
		allocated := s.floor
		if s.cap >= 0 && allocated > s.cap {
			allocated = s.cap
		}
		result.Items = append(result.Items, domain.DistributedDiscountItem{
			OrderItemID: s.itemID,
			Discount:    allocated,
		})
		result.Value += allocated
	}
	return result
}

// alcoholCap computes the margin cap for an alcohol item: the smaller of the
// item's margin over its purchase price and 35% of its subtotal. A purchase
// price above the selling price is a data anomaly; the item keeps its uncapped
// share.
func alcoholCap(logger *zap.Logger, item domain.OrderLineItem, purchasePrices map[string]int64) int64 {
	itemSubtotal := item.Subtotal()
	purchaseSubtotal := purchasePrices[item.ProductID] * item.Quantity

	cap := itemSubtotal - purchaseSubtotal
	if percentCap := itemSubtotal * alcoholCapNum / alcoholCapDenom; percentCap < cap {
		cap = percentCap
	}
	if cap < 0 {
		logger.Warn("purchase price exceeds selling price, skipping alcohol cap",
			zap.String("productID", item.ProductID),
			zap.Int64("unitPrice", item.UnitPrice),
			zap.Int64("purchasePrice", purchasePrices[item.ProductID]),
		)
		return -1
	}
	return cap
}
