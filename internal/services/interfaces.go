package services

import (
	"context"

	domain "github.com/dashmart/promotions/internal/domain"
)

// Warehouse carries the warehouse facts promotions depend on: identity,
// activity, and the IANA timezone happy-hour windows are evaluated in.
type Warehouse struct {
	ID       string
	Name     string
	Active   bool
	Timezone string
}

// WarehouseDirectory resolves warehouse facts from the warehouse service.
type WarehouseDirectory interface {
	// GetWarehouse returns ErrWarehouseNotFound for unknown or inactive ids.
	GetWarehouse(ctx context.Context, warehouseID string) (Warehouse, error)
}

// PurchasePriceSource resolves per-unit purchase prices for alcohol products;
// the returned map may be incomplete.
type PurchasePriceSource interface {
	PurchasePrices(ctx context.Context, warehouseID string, productIDs []string) (map[string]int64, error)
}

// CouponDetail is the stored definition view returned by coupon lookups.
type CouponDetail struct {
	ID             string
	Name           string
	Kind           domain.CouponKind
	Value          int64
	MinOrderAmount *int64
}

// OrderCouponDetail is the priced outcome of applying or recalculating a
// coupon against an order. CartMessageArgs is set when the max-discount cap
// bound the distributed total.
type OrderCouponDetail struct {
	ID              string
	OrderID         string
	Name            string
	Kind            domain.CouponKind
	Value           int64
	DiscountAmount  int64
	MinOrderAmount  *int64
	CartMessageArgs map[string]any
	Items           []domain.DistributedDiscountItem
}

// ApplyCouponRequest carries the order facts needed to validate and price a
// coupon by name.
type ApplyCouponRequest struct {
	UserID               string
	WarehouseID          string
	CouponName           string
	OrderSubtotal        int64
	PaidOrdersCount      int64
	DeliveredOrdersCount int64
	Items                []domain.OrderLineItem
	DeviceFingerprint    string
}

// RecalculateCouponRequest re-prices an already applied coupon; no usage side
// effects are performed.
type RecalculateCouponRequest struct {
	WarehouseID          string
	OrderSubtotal        int64
	PaidOrdersCount      int64
	DeliveredOrdersCount int64
	Items                []domain.OrderLineItem
}

// CouponService validates, prices, and book-keeps coupon redemptions.
type CouponService interface {
	GetCoupon(ctx context.Context, couponID string) (CouponDetail, error)
	Apply(ctx context.Context, orderID string, req ApplyCouponRequest) (OrderCouponDetail, error)
	Recalculate(ctx context.Context, orderID, couponID string, req RecalculateCouponRequest) (OrderCouponDetail, error)
	Remove(ctx context.Context, orderID, couponID string) (OrderCouponDetail, error)
	// IssueReferralCoupon returns the user's referral code, creating it on
	// first request. Idempotent per user.
	IssueReferralCoupon(ctx context.Context, userID string) (string, error)

	// Order lifecycle transitions driven by the event intake.
	ProcessOrderPaid(ctx context.Context, orderID string) error
	ProcessOrderCancelled(ctx context.Context, orderID string) error
}

// ConditionsRequest carries the order facts the conditions endpoint composes from.
type ConditionsRequest struct {
	UserID          string
	WarehouseID     string
	UserOrdersCount int64
	CouponApplied   bool
	DeliveryMode    domain.DeliveryMode
	Items           []domain.OrderLineItem
	LegacyMode      bool
}

// ConditionsResult is the full promotion narrative for one order state.
type ConditionsResult struct {
	Fees               []domain.Fee
	BonusValue         int64
	DeliveryMode       domain.DeliveryMode
	CatalogProgressBar *domain.ProgressBar
	CartProgressBar    *domain.ProgressBar
	OrderConditions    *domain.OrderConditions
	DiscountedItems    []domain.DistributedDiscountItem
}

// ConditionsService computes fees, bonus, gift state and the progress bars.
type ConditionsService interface {
	OrderConditions(ctx context.Context, req ConditionsRequest) (ConditionsResult, error)
}

// GiftDetails lists the gift product chain a qualifying order chooses from.
type GiftDetails struct {
	SettingsID string
	Chain      []domain.GiftChoice
}

// BannerInfo is the threshold-dependent cart banner with sanitised copy and a
// signed image URL.
type BannerInfo struct {
	ID          string
	ImageURL    string
	Style       domain.BannerStyle
	Title       string
	Description string
	ButtonText  string
}

// BannerDetails wraps an optional banner; Banner is nil when the warehouse has
// no current gift promotion or the settings reference no banner.
type BannerDetails struct {
	Banner *BannerInfo
}

// GiftService resolves gift eligibility and banners.
type GiftService interface {
	CurrentGift(ctx context.Context, warehouseID string, orderSubtotal int64) (GiftDetails, error)
	Banner(ctx context.Context, warehouseID string, orderSubtotal int64) (BannerDetails, error)
}

// BonusResolver computes the applicable loyalty bonus for an order; used by the
// conditions service and exposed for composition tests.
type BonusResolver interface {
	ResolveBonus(ctx context.Context, warehouse Warehouse, subtotal int64, mode domain.DeliveryMode, items []domain.OrderLineItem, purchasePrices map[string]int64) (*domain.OrderBonus, error)
}

// FeeResolver returns the applicable fees with small-order suppression applied.
type FeeResolver interface {
	CalculateFees(ctx context.Context, userID, warehouseID string, userOrdersCount, orderSubtotal int64) ([]domain.Fee, error)
}
