package domain

import "time"

// CouponKind distinguishes percentage coupons from fixed-amount coupons.
type CouponKind string

const (
	// CouponKindPercent applies an integer percentage of the eligible subtotal.
	CouponKindPercent CouponKind = "percent"
	// CouponKindFixed subtracts a fixed number of minor units.
	CouponKindFixed CouponKind = "fixed"
)

// CouponClass separates generally available coupons from referral coupons tied
// to an issuing user.
type CouponClass string

const (
	// CouponClassGeneral marks a coupon anyone permitted may redeem.
	CouponClassGeneral CouponClass = "general"
	// CouponClassReferral marks a coupon owned by a user; the owner cannot redeem it.
	CouponClassReferral CouponClass = "referral"
)

// Coupon is the stored definition of a promotion code. Monetary fields are minor
// units; Value is minor units for fixed coupons and a 0-100 percentage otherwise.
// Empty permit sets mean "unrestricted".
type Coupon struct {
	ID          string
	Name        string
	Description string
	Active      bool
	Kind        CouponKind
	Class       CouponClass
	Value       int64

	// OwnerUserID is set for referral coupons only.
	OwnerUserID    string
	ReferralActive bool

	ValidTill          *time.Time
	Quantity           *int64
	Limit              *int64
	MinimumOrderAmount *int64
	OrdersFrom         *int64
	OrdersTo           *int64
	MaxDiscount        *int64

	PermittedUserIDs      []string
	PermittedWarehouseIDs []string
	PermittedCategoryIDs  []string

	// ValueByOrderNumber substitutes Value for the order number it keys
	// (delivered orders + 1). It never mutates the stored definition.
	ValueByOrderNumber map[int64]int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the coupon's validity window has passed at the given time.
func (c Coupon) Expired(now time.Time) bool {
	return c.ValidTill != nil && !now.Before(*c.ValidTill)
}

// EffectiveValue resolves the coupon value for the given delivered-order count,
// honouring the value-by-order-number override table.
func (c Coupon) EffectiveValue(deliveredOrders int64) int64 {
	if v, ok := c.ValueByOrderNumber[deliveredOrders+1]; ok {
		return v
	}
	return c.Value
}

// CouponUsage records one application of a coupon to an order. OrderPaid flips
// to true once the order's payment is confirmed.
type CouponUsage struct {
	ID        string
	CouponID  string
	UserID    string
	OrderID   string
	OrderPaid bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
