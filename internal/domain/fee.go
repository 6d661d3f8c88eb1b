package domain

// FeeType enumerates the fee categories the order service understands.
type FeeType string

const (
	// FeeTypeDelivery is a per-order delivery charge.
	FeeTypeDelivery FeeType = "delivery"
	// FeeTypeSmallOrder is charged below a subtotal threshold and is the only
	// fee type the fee engine ever suppresses.
	FeeTypeSmallOrder FeeType = "small_order"
	// FeeTypePackaging covers packaging costs.
	FeeTypePackaging FeeType = "packaging"
	// FeeTypeCustom is an operator-defined fee passed through unmodified.
	FeeTypeCustom FeeType = "custom"
)

// Fee is one applicable charge for an order. Value is minor units; a zeroed
// Value means the fee was waived for this calculation.
type Fee struct {
	ID          string
	Name        string
	Description string
	Type        FeeType
	Value       int64
	ImageURL    string

	// FreeAfterSubtotal waives the fee once the order subtotal reaches it;
	// zero means the fee never auto-waives.
	FreeAfterSubtotal int64

	// Global fees apply everywhere; otherwise the user/warehouse allow-lists
	// scope applicability.
	Global                bool
	PermittedUserIDs      []string
	PermittedWarehouseIDs []string
}
