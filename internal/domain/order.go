package domain

// ProductType classifies an order line item for promotion purposes. Tobacco items
// never receive discounts; alcohol items receive capped discounts.
type ProductType string

const (
	// ProductTypeRegular marks an unrestricted product.
	ProductTypeRegular ProductType = "regular"
	// ProductTypeTobacco marks a tobacco product, excluded from every discount.
	ProductTypeTobacco ProductType = "tobacco"
	// ProductTypeAlcohol marks an alcohol product, discounted only up to its margin cap.
	ProductTypeAlcohol ProductType = "alcohol"
)

// OrderLineItem is one priced line of an order as supplied by the order service.
// Immutable once a calculation begins.
type OrderLineItem struct {
	ID          string
	ProductID   string
	Type        ProductType
	UnitPrice   int64
	Quantity    int64
	CategoryIDs []string
}

// Subtotal returns the item's extended price in minor units.
func (i OrderLineItem) Subtotal() int64 {
	return i.UnitPrice * i.Quantity
}

// OrderSubtotal sums the extended prices of the given items.
func OrderSubtotal(items []OrderLineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

// DiscountableItems filters out tobacco items, which are excluded from coupon
// and bonus discounts alike.
func DiscountableItems(items []OrderLineItem) []OrderLineItem {
	out := make([]OrderLineItem, 0, len(items))
	for _, item := range items {
		if item.Type != ProductTypeTobacco {
			out = append(out, item)
		}
	}
	return out
}

// DeliveryMode reflects the delivery pressure the order is placed under.
// Surge mode disables happy-hour bonuses.
type DeliveryMode string

const (
	// DeliveryModeNormal is the default delivery mode.
	DeliveryModeNormal DeliveryMode = "normal"
	// DeliveryModeSurge indicates elevated demand; happy hours are suspended.
	DeliveryModeSurge DeliveryMode = "surge"
)
