package domain

// DistributedDiscountItem is one line item's share of a distributed discount.
type DistributedDiscountItem struct {
	OrderItemID string
	Discount    int64
}

// DistributedDiscount captures an aggregate discount broken into per-item cents
// allocations. Value equals the sum of the item allocations, which may fall
// short of the requested aggregate when alcohol margin caps bind.
type DistributedDiscount struct {
	Value int64
	Items []DistributedDiscountItem
}
