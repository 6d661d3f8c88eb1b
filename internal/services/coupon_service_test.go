package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/config"
)

func testClock() time.Time {
	return time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
}

func newTestCouponService(t *testing.T, registry *stubRegistry) CouponService {
	t.Helper()
	svc, err := NewCouponService(CouponServiceDeps{
		Registry:   registry,
		Prices:     &stubPriceSource{},
		Promotions: config.PromotionConfig{MinOrderAmount: 50, MaxFreeSmallOrders: 3},
		Referral:   config.ReferralConfig{OrdersTo: 2, Value: 250},
		Antifraud:  config.AntifraudConfig{CheckEnabled: true, UsersPerFingerprint: 3},
		Clock:      testClock,
	})
	if err != nil {
		t.Fatalf("new coupon service: %v", err)
	}
	return svc
}

func regularItem(id string, unitPrice, quantity int64, categories ...string) domain.OrderLineItem {
	return domain.OrderLineItem{
		ID:          id,
		ProductID:   "product-" + id,
		Type:        domain.ProductTypeRegular,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		CategoryIDs: categories,
	}
}

func TestCouponServiceApplyPercentCoupon(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{
			ID:     "c1",
			Name:   "SAVE10",
			Active: true,
			Kind:   domain.CouponKindPercent,
			Value:  10,
		}, nil
	}
	svc := newTestCouponService(t, registry)

	detail, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:            "user-1",
		WarehouseID:       "wh-1",
		CouponName:        "SAVE10",
		OrderSubtotal:     2000,
		Items:             []domain.OrderLineItem{regularItem("a", 1000, 2)},
		DeviceFingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if detail.DiscountAmount != 200 {
		t.Fatalf("expected discount 200, got %d", detail.DiscountAmount)
	}
	if len(detail.Items) != 1 || detail.Items[0].Discount != 200 {
		t.Fatalf("unexpected distributed items: %+v", detail.Items)
	}
	if len(registry.couponUsages.inserted) != 1 {
		t.Fatalf("expected one usage record, got %d", len(registry.couponUsages.inserted))
	}
	if got := registry.couponUsages.inserted[0].OrderID; got != "order-1" {
		t.Fatalf("usage recorded for wrong order: %s", got)
	}
	if len(registry.coupons.adjustments) != 1 || registry.coupons.adjustments[0].Delta != -1 {
		t.Fatalf("expected quantity decrement, got %+v", registry.coupons.adjustments)
	}
	if len(registry.antifraud.registered) != 1 {
		t.Fatalf("expected fingerprint registration, got %d", len(registry.antifraud.registered))
	}
}

func TestCouponServiceApplyUnknownCoupon(t *testing.T) {
	registry := newStubRegistry()
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:     "user-1",
		CouponName: "NOPE",
		Items:      []domain.OrderLineItem{regularItem("a", 1000, 1)},
	})
	if !errors.Is(err, ErrCouponNotValid) {
		t.Fatalf("expected coupon_not_valid, got %v", err)
	}
}

func TestCouponServiceApplyExpiredCoupon(t *testing.T) {
	registry := newStubRegistry()
	expired := testClock().Add(-time.Hour)
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "OLD", Active: true, Kind: domain.CouponKindFixed, Value: 100, ValidTill: &expired}, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:     "user-1",
		CouponName: "OLD",
		Items:      []domain.OrderLineItem{regularItem("a", 1000, 1)},
	})
	if !errors.Is(err, ErrCouponNotValid) {
		t.Fatalf("expected coupon_not_valid for expired coupon, got %v", err)
	}
}

func TestCouponServiceApplyRejectsReferralOwner(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{
			ID:          "c1",
			Name:        "FRIEND",
			Active:      true,
			Kind:        domain.CouponKindFixed,
			Class:       domain.CouponClassReferral,
			Value:       250,
			OwnerUserID: "user-1",
		}, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:     "user-1",
		CouponName: "FRIEND",
		Items:      []domain.OrderLineItem{regularItem("a", 1000, 1)},
	})
	if !errors.Is(err, ErrReferralSelfUsage) {
		t.Fatalf("expected referral_self_usage, got %v", err)
	}
}

func TestCouponServiceApplyEnforcesMinimumOrderAmount(t *testing.T) {
	registry := newStubRegistry()
	min := int64(5000)
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "BIG", Active: true, Kind: domain.CouponKindFixed, Value: 100, MinimumOrderAmount: &min}, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:        "user-1",
		CouponName:    "BIG",
		OrderSubtotal: 2000,
		Items:         []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if !errors.Is(err, ErrCouponMinAmount) {
		t.Fatalf("expected coupon_min_amount, got %v", err)
	}
	var rule *RuleError
	if !errors.As(err, &rule) || rule.Details["min_amount"] != "50.00" {
		t.Fatalf("expected min_amount detail, got %+v", rule)
	}
}

func TestCouponServiceApplyEnforcesOrderWindow(t *testing.T) {
	registry := newStubRegistry()
	from := int64(3)
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "LOYAL", Active: true, Kind: domain.CouponKindFixed, Value: 100, OrdersFrom: &from}, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:          "user-1",
		CouponName:      "LOYAL",
		OrderSubtotal:   2000,
		PaidOrdersCount: 1,
		Items:           []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if !errors.Is(err, ErrCouponRedeemedOrdersFrom) {
		t.Fatalf("expected coupon_redeemed_orders_from, got %v", err)
	}
	var rule *RuleError
	if !errors.As(err, &rule) || rule.Details["missing_orders_amount"] != int64(2) {
		t.Fatalf("expected missing_orders_amount detail, got %+v", rule)
	}
}

func TestCouponServiceApplyReferralOrderLimit(t *testing.T) {
	registry := newStubRegistry()
	to := int64(2)
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{
			ID:          "c1",
			Name:        "FRIEND",
			Active:      true,
			Kind:        domain.CouponKindFixed,
			Class:       domain.CouponClassReferral,
			Value:       250,
			OwnerUserID: "user-2",
			OrdersTo:    &to,
		}, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:          "user-1",
		CouponName:      "FRIEND",
		OrderSubtotal:   2000,
		PaidOrdersCount: 2,
		Items:           []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if !errors.Is(err, ErrReferralLimit) {
		t.Fatalf("expected referral_limit, got %v", err)
	}
}

func TestCouponServiceApplyCategoryFilter(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{
			ID:                   "c1",
			Name:                 "SNACKS",
			Active:               true,
			Kind:                 domain.CouponKindPercent,
			Value:                10,
			PermittedCategoryIDs: []string{"cat-snacks"},
		}, nil
	}
	svc := newTestCouponService(t, registry)

	detail, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:        "user-1",
		CouponName:    "SNACKS",
		OrderSubtotal: 3000,
		Items: []domain.OrderLineItem{
			regularItem("a", 1000, 2, "cat-snacks"),
			regularItem("b", 1000, 1, "cat-dairy"),
		},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// 10% of the snacks subtotal only.
	if detail.DiscountAmount != 200 {
		t.Fatalf("expected discount 200, got %d", detail.DiscountAmount)
	}
	if len(detail.Items) != 1 {
		t.Fatalf("expected one discounted item, got %d", len(detail.Items))
	}

	_, err = svc.Apply(context.Background(), "order-2", ApplyCouponRequest{
		UserID:        "user-1",
		CouponName:    "SNACKS",
		OrderSubtotal: 1000,
		Items:         []domain.OrderLineItem{regularItem("b", 1000, 1, "cat-dairy")},
	})
	if !errors.Is(err, ErrCouponNotPermittedCat) {
		t.Fatalf("expected coupon_not_permitted_category, got %v", err)
	}
}

func TestCouponServiceApplyCapsPercentAtMaxDiscount(t *testing.T) {
	registry := newStubRegistry()
	maxDiscount := int64(300)
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{
			ID:          "c1",
			Name:        "HALF",
			Active:      true,
			Kind:        domain.CouponKindPercent,
			Value:       50,
			MaxDiscount: &maxDiscount,
		}, nil
	}
	svc := newTestCouponService(t, registry)

	detail, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:        "user-1",
		CouponName:    "HALF",
		OrderSubtotal: 2000,
		Items:         []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if detail.DiscountAmount != 300 {
		t.Fatalf("expected capped discount 300, got %d", detail.DiscountAmount)
	}
	if detail.CartMessageArgs["max_discount"] != int64(300) {
		t.Fatalf("expected max_discount cart arg, got %+v", detail.CartMessageArgs)
	}
}

func TestCouponServiceApplySharedFingerprintRejected(t *testing.T) {
	registry := newStubRegistry()
	registry.antifraud.countUsersFn = func(context.Context, string, string) (int64, error) {
		return 3, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:            "user-1",
		CouponName:        "SAVE10",
		DeviceFingerprint: "fp-shared",
		Items:             []domain.OrderLineItem{regularItem("a", 1000, 1)},
	})
	if !errors.Is(err, ErrUserNotEligible) {
		t.Fatalf("expected user_not_eligible, got %v", err)
	}
}

func TestCouponServiceApplyWhitelistBypassesFingerprintCheck(t *testing.T) {
	registry := newStubRegistry()
	registry.antifraud.countUsersFn = func(context.Context, string, string) (int64, error) {
		return 10, nil
	}
	registry.antifraud.userWhitelistedFn = func(context.Context, string) (bool, error) {
		return true, nil
	}
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "SAVE10", Active: true, Kind: domain.CouponKindPercent, Value: 10}, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:            "user-1",
		CouponName:        "SAVE10",
		OrderSubtotal:     2000,
		DeviceFingerprint: "fp-shared",
		Items:             []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if err != nil {
		t.Fatalf("apply with whitelisted user: %v", err)
	}
}

func TestCouponServiceApplyRevertsPreviousCoupon(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c2", Name: "SAVE10", Active: true, Kind: domain.CouponKindPercent, Value: 10}, nil
	}
	registry.couponUsages.findCurrentByOrderFn = func(context.Context, string) (domain.CouponUsage, error) {
		return domain.CouponUsage{CouponID: "c1", OrderID: "order-1"}, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:        "user-1",
		CouponName:    "SAVE10",
		OrderSubtotal: 2000,
		Items:         []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(registry.couponUsages.deleted) != 1 {
		t.Fatalf("expected previous usage deleted, got %d", len(registry.couponUsages.deleted))
	}
	// Old coupon restored, then the new one decremented.
	if len(registry.coupons.adjustments) != 2 {
		t.Fatalf("expected two quantity adjustments, got %+v", registry.coupons.adjustments)
	}
	if registry.coupons.adjustments[0].CouponID != "c1" || registry.coupons.adjustments[0].Delta != 1 {
		t.Fatalf("expected c1 restored first, got %+v", registry.coupons.adjustments[0])
	}
	if registry.coupons.adjustments[1].CouponID != "c2" || registry.coupons.adjustments[1].Delta != -1 {
		t.Fatalf("expected c2 decremented, got %+v", registry.coupons.adjustments[1])
	}
}

func TestCouponServiceApplyExhaustedQuantity(t *testing.T) {
	registry := newStubRegistry()
	zero := int64(0)
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "GONE", Active: true, Kind: domain.CouponKindFixed, Value: 100, Quantity: &zero}, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:        "user-1",
		CouponName:    "GONE",
		OrderSubtotal: 2000,
		Items:         []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if !errors.Is(err, ErrCouponRedeemed) {
		t.Fatalf("expected coupon_redeemed, got %v", err)
	}
}

func TestCouponServiceApplyAdjustsQuantityBeforeInsertingUsage(t *testing.T) {
	// Firestore transactions require every read to precede the first
	// buffered write, and the quantity adjustment is the only read in the
	// redemption unit of work.
	registry := newStubRegistry()
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "SAVE10", Active: true, Kind: domain.CouponKindPercent, Value: 10}, nil
	}

	var calls []string
	registry.coupons.adjustQuantityFn = func(context.Context, string, int64) error {
		calls = append(calls, "adjust_quantity")
		return nil
	}
	registry.couponUsages.insertFn = func(_ context.Context, usage domain.CouponUsage) (domain.CouponUsage, error) {
		calls = append(calls, "insert_usage")
		return usage, nil
	}

	svc := newTestCouponService(t, registry)
	_, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:        "user-1",
		WarehouseID:   "wh-1",
		CouponName:    "SAVE10",
		OrderSubtotal: 2000,
		Items:         []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(calls) != 2 || calls[0] != "adjust_quantity" || calls[1] != "insert_usage" {
		t.Fatalf("expected quantity adjustment before usage insert, got %v", calls)
	}
}

func TestCouponServiceApplyValueOverrideByOrderNumber(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{
			ID:                 "c1",
			Name:               "STEP",
			Active:             true,
			Kind:               domain.CouponKindFixed,
			Value:              100,
			ValueByOrderNumber: map[int64]int64{2: 500},
		}, nil
	}
	svc := newTestCouponService(t, registry)

	detail, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:               "user-1",
		CouponName:           "STEP",
		OrderSubtotal:        2000,
		DeliveredOrdersCount: 1,
		Items:                []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if detail.Value != 500 {
		t.Fatalf("expected overridden value 500, got %d", detail.Value)
	}
	if detail.DiscountAmount != 500 {
		t.Fatalf("expected discount 500, got %d", detail.DiscountAmount)
	}
}

func TestCouponServiceApplyFloorsDiscountAtOrderMinimum(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findActiveByNameFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "MEGA", Active: true, Kind: domain.CouponKindFixed, Value: 10_000}, nil
	}
	svc := newTestCouponService(t, registry)

	detail, err := svc.Apply(context.Background(), "order-1", ApplyCouponRequest{
		UserID:        "user-1",
		CouponName:    "MEGA",
		OrderSubtotal: 2000,
		Items:         []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Post-discount subtotal may not drop below the 50 cent order floor.
	if detail.DiscountAmount != 1950 {
		t.Fatalf("expected floored discount 1950, got %d", detail.DiscountAmount)
	}
}

func TestCouponServiceRemoveRevertsUsage(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findByIDFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "SAVE10", Kind: domain.CouponKindPercent, Value: 10}, nil
	}
	svc := newTestCouponService(t, registry)

	detail, err := svc.Remove(context.Background(), "order-1", "c1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if detail.DiscountAmount != 0 {
		t.Fatalf("expected zero discount after removal, got %d", detail.DiscountAmount)
	}
	if len(registry.coupons.adjustments) != 1 || registry.coupons.adjustments[0].Delta != 1 {
		t.Fatalf("expected quantity restored, got %+v", registry.coupons.adjustments)
	}
	if len(registry.couponUsages.deleted) != 1 {
		t.Fatalf("expected usage deleted, got %d", len(registry.couponUsages.deleted))
	}
}

func TestCouponServiceRemoveUnknownCoupon(t *testing.T) {
	registry := newStubRegistry()
	svc := newTestCouponService(t, registry)

	_, err := svc.Remove(context.Background(), "order-1", "missing")
	if !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected coupon_not_found, got %v", err)
	}
}

func TestCouponServiceIssueReferralCouponIdempotent(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findReferralByOwnerFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "AB12CD"}, nil
	}
	svc := newTestCouponService(t, registry)

	code, err := svc.IssueReferralCoupon(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue referral: %v", err)
	}
	if code != "AB12CD" {
		t.Fatalf("expected existing code, got %s", code)
	}
	if len(registry.coupons.inserted) != 0 {
		t.Fatalf("expected no new coupon, got %d", len(registry.coupons.inserted))
	}
}

func TestCouponServiceIssueReferralCouponCreatesCoupon(t *testing.T) {
	registry := newStubRegistry()
	svc := newTestCouponService(t, registry)

	code, err := svc.IssueReferralCoupon(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue referral: %v", err)
	}
	if len(code) != referralCodeLength {
		t.Fatalf("expected %d character code, got %q", referralCodeLength, code)
	}
	if len(registry.coupons.inserted) != 1 {
		t.Fatalf("expected one coupon created, got %d", len(registry.coupons.inserted))
	}
	coupon := registry.coupons.inserted[0]
	if coupon.Class != domain.CouponClassReferral || !coupon.ReferralActive {
		t.Fatalf("expected referral coupon, got %+v", coupon)
	}
	if coupon.Value != 250 {
		t.Fatalf("expected configured referral value, got %d", coupon.Value)
	}
	if coupon.OrdersTo == nil || *coupon.OrdersTo != 2 {
		t.Fatalf("expected configured orders window, got %+v", coupon.OrdersTo)
	}
	if coupon.OwnerUserID != "user-1" {
		t.Fatalf("expected owner user-1, got %s", coupon.OwnerUserID)
	}
}

func TestCouponServiceIssueReferralCouponGivesUpOnCollisions(t *testing.T) {
	registry := newStubRegistry()
	var checks int
	registry.coupons.nameTakenFn = func(context.Context, string) (bool, error) {
		checks++
		return true, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.IssueReferralCoupon(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error when every generated code collides")
	}
	if checks != referralCodeAttempts {
		t.Fatalf("expected %d collision checks, got %d", referralCodeAttempts, checks)
	}
	if len(registry.coupons.inserted) != 0 {
		t.Fatalf("expected no coupon created, got %d", len(registry.coupons.inserted))
	}
}

func TestCouponServiceProcessOrderPaid(t *testing.T) {
	registry := newStubRegistry()
	registry.couponUsages.findCurrentByOrderFn = func(context.Context, string) (domain.CouponUsage, error) {
		return domain.CouponUsage{CouponID: "c1", OrderID: "order-1"}, nil
	}
	svc := newTestCouponService(t, registry)

	if err := svc.ProcessOrderPaid(context.Background(), "order-1"); err != nil {
		t.Fatalf("process order paid: %v", err)
	}
	if len(registry.couponUsages.paid) != 1 {
		t.Fatalf("expected usage marked paid, got %d", len(registry.couponUsages.paid))
	}
}

func TestCouponServiceProcessOrderPaidWithoutUsage(t *testing.T) {
	registry := newStubRegistry()
	svc := newTestCouponService(t, registry)

	if err := svc.ProcessOrderPaid(context.Background(), "order-1"); err != nil {
		t.Fatalf("expected nil for order without coupon, got %v", err)
	}
}

func TestCouponServiceProcessOrderCancelled(t *testing.T) {
	registry := newStubRegistry()
	registry.couponUsages.findCurrentByOrderFn = func(context.Context, string) (domain.CouponUsage, error) {
		return domain.CouponUsage{CouponID: "c1", OrderID: "order-1"}, nil
	}
	svc := newTestCouponService(t, registry)

	if err := svc.ProcessOrderCancelled(context.Background(), "order-1"); err != nil {
		t.Fatalf("process order cancelled: %v", err)
	}
	if len(registry.coupons.adjustments) != 1 || registry.coupons.adjustments[0].Delta != 1 {
		t.Fatalf("expected quantity restored, got %+v", registry.coupons.adjustments)
	}
	if len(registry.couponUsages.deleted) != 1 {
		t.Fatalf("expected usage deleted, got %d", len(registry.couponUsages.deleted))
	}
}

func TestCouponServiceRecalculateChecksWarehousePermit(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findByIDFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{
			ID:                    "c1",
			Name:                  "LOCAL",
			Kind:                  domain.CouponKindFixed,
			Value:                 100,
			PermittedWarehouseIDs: []string{"wh-2"},
		}, nil
	}
	svc := newTestCouponService(t, registry)

	_, err := svc.Recalculate(context.Background(), "order-1", "c1", RecalculateCouponRequest{
		WarehouseID:   "wh-1",
		OrderSubtotal: 2000,
		Items:         []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if !errors.Is(err, ErrCouponNotPermittedWH) {
		t.Fatalf("expected coupon_not_permitted_warehouse, got %v", err)
	}
	var rule *RuleError
	if !errors.As(err, &rule) || rule.Details["coupon_name"] != "LOCAL" {
		t.Fatalf("expected coupon_name detail, got %+v", rule)
	}
}

func TestCouponServiceRecalculateHasNoSideEffects(t *testing.T) {
	registry := newStubRegistry()
	registry.coupons.findByIDFn = func(context.Context, string) (domain.Coupon, error) {
		return domain.Coupon{ID: "c1", Name: "SAVE10", Kind: domain.CouponKindPercent, Value: 10}, nil
	}
	svc := newTestCouponService(t, registry)

	detail, err := svc.Recalculate(context.Background(), "order-1", "c1", RecalculateCouponRequest{
		WarehouseID:   "wh-1",
		OrderSubtotal: 2000,
		Items:         []domain.OrderLineItem{regularItem("a", 1000, 2)},
	})
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if detail.DiscountAmount != 200 {
		t.Fatalf("expected discount 200, got %d", detail.DiscountAmount)
	}
	if len(registry.couponUsages.inserted) != 0 || len(registry.coupons.adjustments) != 0 {
		t.Fatalf("recalculate must not touch usage records")
	}
}
