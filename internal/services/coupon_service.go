package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/config"
	"github.com/dashmart/promotions/internal/pricing"
	"github.com/dashmart/promotions/internal/repositories"
)

const (
	referralCodeLength   = 6
	referralCodeCharset  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeAttempts = 5
)

var couponTracer = otel.Tracer("github.com/dashmart/promotions/internal/services/coupon")

// CouponServiceDeps bundles collaborators required to construct a coupon service.
type CouponServiceDeps struct {
	Registry   repositories.Registry
	Prices     PurchasePriceSource
	Promotions config.PromotionConfig
	Referral   config.ReferralConfig
	Antifraud  config.AntifraudConfig
	Logger     *zap.Logger
	Clock      func() time.Time
}

type couponService struct {
	registry   repositories.Registry
	prices     PurchasePriceSource
	promotions config.PromotionConfig
	referral   config.ReferralConfig
	antifraud  config.AntifraudConfig
	logger     *zap.Logger
	clock      func() time.Time
}

// NewCouponService constructs the coupon rule engine on top of the repository
// registry.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Registry == nil {
		return nil, errors.New("coupon service: registry is required")
	}
	if deps.Prices == nil {
		return nil, errors.New("coupon service: purchase price source is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &couponService{
		registry:   deps.Registry,
		prices:     deps.Prices,
		promotions: deps.Promotions,
		referral:   deps.Referral,
		antifraud:  deps.Antifraud,
		logger:     logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *couponService) GetCoupon(ctx context.Context, couponID string) (CouponDetail, error) {
	coupon, err := s.registry.Coupons().FindByID(ctx, couponID)
	if err != nil {
		if isRepoNotFound(err) {
			return CouponDetail{}, ErrCouponNotFound
		}
		return CouponDetail{}, err
	}
	return CouponDetail{
		ID:             coupon.ID,
		Name:           coupon.Name,
		Kind:           coupon.Kind,
		Value:          coupon.Value,
		MinOrderAmount: coupon.MinimumOrderAmount,
	}, nil
}

// Apply validates and prices the named coupon against the order, replacing and
// reverting any previously applied coupon. Checks run in a fixed order; the
// first failure wins.
func (s *couponService) Apply(ctx context.Context, orderID string, req ApplyCouponRequest) (OrderCouponDetail, error) {
	ctx, span := couponTracer.Start(ctx, "coupon.apply")
	span.SetAttributes(attribute.String("order.id", orderID))
	defer span.End()

	if err := s.antifraudCheck(ctx, req.UserID, req.DeviceFingerprint); err != nil {
		return OrderCouponDetail{}, err
	}

	coupon, err := s.resolveActiveCoupon(ctx, req.CouponName)
	if err != nil {
		return OrderCouponDetail{}, err
	}

	if coupon.Class == domain.CouponClassReferral && coupon.OwnerUserID == req.UserID {
		return OrderCouponDetail{}, ErrReferralSelfUsage
	}

	if !permitted(coupon.PermittedUserIDs, req.UserID) {
		s.logger.Info("coupon not permitted for user",
			zap.String("userID", req.UserID),
			zap.String("couponID", coupon.ID),
		)
		return OrderCouponDetail{}, ErrCouponNotPermittedUser
	}
	if !permitted(coupon.PermittedWarehouseIDs, req.WarehouseID) {
		s.logger.Info("coupon not permitted for warehouse",
			zap.String("warehouseID", req.WarehouseID),
			zap.String("couponID", coupon.ID),
		)
		return OrderCouponDetail{}, ErrCouponNotPermittedWH
	}

	items, err := s.eligibleItems(coupon, req.Items)
	if err != nil {
		return OrderCouponDetail{}, err
	}
	filteredSubtotal := domain.OrderSubtotal(items)

	// Minimum order amount compares against the full order subtotal, not the
	// category-filtered one.
	if coupon.MinimumOrderAmount != nil && req.OrderSubtotal < *coupon.MinimumOrderAmount {
		return OrderCouponDetail{}, NewRuleError(CodeCouponMinAmount, map[string]any{
			"min_amount": domain.DecimalFromCents(*coupon.MinimumOrderAmount),
		})
	}

	replaced, err := s.revertCurrentCoupon(ctx, orderID)
	if err != nil {
		return OrderCouponDetail{}, err
	}
	if replaced != "" {
		s.logger.Info("replaced prior order coupon",
			zap.String("orderID", orderID),
			zap.String("previousCouponID", replaced),
		)
	}

	if coupon.Limit != nil {
		usages, err := s.registry.CouponUsages().CountPaidByUserAndCoupon(ctx, req.UserID, coupon.ID)
		if err != nil {
			return OrderCouponDetail{}, err
		}
		if usages >= *coupon.Limit {
			return OrderCouponDetail{}, NewRuleError(CodeCouponRedeemedLimit, map[string]any{"limit": *coupon.Limit})
		}
	}

	if err := checkOrderWindow(coupon, req.PaidOrdersCount); err != nil {
		return OrderCouponDetail{}, err
	}

	if coupon.Quantity != nil && *coupon.Quantity == 0 {
		return OrderCouponDetail{}, ErrCouponRedeemed
	}

	effectiveValue := coupon.EffectiveValue(req.DeliveredOrdersCount)
	if effectiveValue != coupon.Value {
		s.logger.Info("coupon value overridden for order number",
			zap.String("couponID", coupon.ID),
			zap.Int64("storedValue", coupon.Value),
			zap.Int64("effectiveValue", effectiveValue),
		)
	}

	if err := s.storeUsage(ctx, coupon.ID, req.UserID, orderID, req.DeviceFingerprint); err != nil {
		return OrderCouponDetail{}, err
	}

	purchasePrices, err := s.alcoholPurchasePrices(ctx, req.WarehouseID, items)
	if err != nil {
		return OrderCouponDetail{}, err
	}

	distributed, cartArgs := s.priceCoupon(coupon, effectiveValue, filteredSubtotal, items, purchasePrices)

	return OrderCouponDetail{
		ID:              coupon.ID,
		OrderID:         orderID,
		Name:            coupon.Name,
		Kind:            coupon.Kind,
		Value:           effectiveValue,
		DiscountAmount:  distributed.Value,
		MinOrderAmount:  coupon.MinimumOrderAmount,
		CartMessageArgs: cartArgs,
		Items:           distributed.Items,
	}, nil
}

// Recalculate re-prices an applied coupon against updated order facts. It runs
// a subset of the Apply checks and has no usage side effects.
func (s *couponService) Recalculate(ctx context.Context, orderID, couponID string, req RecalculateCouponRequest) (OrderCouponDetail, error) {
	coupon, err := s.registry.Coupons().FindByID(ctx, couponID)
	if err != nil {
		if isRepoNotFound(err) {
			return OrderCouponDetail{}, ErrCouponNotFound
		}
		return OrderCouponDetail{}, err
	}

	if coupon.OrdersFrom != nil && *coupon.OrdersFrom > req.PaidOrdersCount {
		return OrderCouponDetail{}, NewRuleError(CodeCouponRedeemedOrdersFrom, map[string]any{
			"missing_orders_amount": *coupon.OrdersFrom - req.PaidOrdersCount,
			"coupon_name":           coupon.Name,
		})
	}
	if coupon.OrdersTo != nil && *coupon.OrdersTo <= req.PaidOrdersCount {
		return OrderCouponDetail{}, NewRuleError(CodeCouponRedeemedOrdersTo, map[string]any{
			"orders_amount_upper_limit": *coupon.OrdersTo,
			"coupon_name":               coupon.Name,
		})
	}
	if coupon.MinimumOrderAmount != nil && *coupon.MinimumOrderAmount > req.OrderSubtotal {
		return OrderCouponDetail{}, NewRuleError(CodeCouponMinAmount, map[string]any{
			"min_amount":  domain.DecimalFromCents(*coupon.MinimumOrderAmount),
			"coupon_name": coupon.Name,
		})
	}
	if !permitted(coupon.PermittedWarehouseIDs, req.WarehouseID) {
		return OrderCouponDetail{}, NewRuleError(CodeCouponNotPermittedWH, map[string]any{
			"coupon_name": coupon.Name,
		})
	}

	items, err := s.eligibleItems(coupon, req.Items)
	if err != nil {
		return OrderCouponDetail{}, err
	}
	filteredSubtotal := domain.OrderSubtotal(items)
	effectiveValue := coupon.EffectiveValue(req.DeliveredOrdersCount)

	purchasePrices, err := s.alcoholPurchasePrices(ctx, req.WarehouseID, items)
	if err != nil {
		return OrderCouponDetail{}, err
	}

	distributed, cartArgs := s.priceCoupon(coupon, effectiveValue, filteredSubtotal, items, purchasePrices)

	return OrderCouponDetail{
		ID:              coupon.ID,
		OrderID:         orderID,
		Name:            coupon.Name,
		Kind:            coupon.Kind,
		Value:           effectiveValue,
		DiscountAmount:  distributed.Value,
		MinOrderAmount:  coupon.MinimumOrderAmount,
		CartMessageArgs: cartArgs,
		Items:           distributed.Items,
	}, nil
}

// Remove reverts the coupon usage on the order and returns a zeroed detail.
func (s *couponService) Remove(ctx context.Context, orderID, couponID string) (OrderCouponDetail, error) {
	coupon, err := s.registry.Coupons().FindByID(ctx, couponID)
	if err != nil {
		if isRepoNotFound(err) {
			return OrderCouponDetail{}, ErrCouponNotFound
		}
		return OrderCouponDetail{}, err
	}

	if err := s.revertUsage(ctx, coupon.ID, orderID); err != nil {
		return OrderCouponDetail{}, err
	}

	return OrderCouponDetail{
		ID:             coupon.ID,
		OrderID:        orderID,
		Name:           coupon.Name,
		Kind:           coupon.Kind,
		Value:          coupon.Value,
		MinOrderAmount: coupon.MinimumOrderAmount,
		Items:          []domain.DistributedDiscountItem{},
	}, nil
}

// IssueReferralCoupon returns the user's referral code, creating the coupon on
// first request. A user with a live referral coupon always receives the same code.
func (s *couponService) IssueReferralCoupon(ctx context.Context, userID string) (string, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return "", errors.New("coupon service: user id is required")
	}

	existing, err := s.registry.Coupons().FindActiveReferralByOwner(ctx, uid)
	if err == nil {
		return existing.Name, nil
	}
	if !isRepoNotFound(err) {
		return "", err
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == referralCodeAttempts {
			return "", fmt.Errorf("coupon service: no free referral code after %d attempts", referralCodeAttempts)
		}
		code, err = generateReferralCode()
		if err != nil {
			return "", err
		}
		taken, err := s.registry.Coupons().NameTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			break
		}
	}

	now := s.clock()
	coupon := domain.Coupon{
		ID:             ulid.Make().String(),
		Name:           code,
		Active:         true,
		Kind:           domain.CouponKindFixed,
		Class:          domain.CouponClassReferral,
		Value:          s.referral.Value,
		OwnerUserID:    uid,
		ReferralActive: true,
		OrdersTo:       int64Ptr(s.referral.OrdersTo),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if s.referral.Quantity > 0 {
		coupon.Quantity = int64Ptr(s.referral.Quantity)
	}
	if s.referral.Limit > 0 {
		coupon.Limit = int64Ptr(s.referral.Limit)
	}
	if s.referral.MaxDiscount > 0 {
		coupon.MaxDiscount = int64Ptr(s.referral.MaxDiscount)
	}
	if s.referral.MinimumOrderAmount > 0 {
		coupon.MinimumOrderAmount = int64Ptr(s.referral.MinimumOrderAmount)
	}

	err = s.registry.RunInTx(ctx, func(ctx context.Context) error {
		saved, err := s.registry.Coupons().Insert(ctx, coupon)
		if err != nil {
			return err
		}
		coupon = saved
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("created referral coupon",
		zap.String("userID", uid),
		zap.String("couponID", coupon.ID),
	)
	return code, nil
}

// ProcessOrderPaid marks the order's current coupon usage as paid.
func (s *couponService) ProcessOrderPaid(ctx context.Context, orderID string) error {
	usage, err := s.registry.CouponUsages().FindCurrentByOrder(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			s.logger.Info("no coupon usage for paid order", zap.String("orderID", orderID))
			return nil
		}
		return err
	}
	return s.registry.RunInTx(ctx, func(ctx context.Context) error {
		return s.registry.CouponUsages().MarkOrderPaid(ctx, usage.CouponID, orderID, s.clock())
	})
}

// ProcessOrderCancelled reverts the order's current coupon usage.
func (s *couponService) ProcessOrderCancelled(ctx context.Context, orderID string) error {
	usage, err := s.registry.CouponUsages().FindCurrentByOrder(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			s.logger.Info("no coupon usage for cancelled order", zap.String("orderID", orderID))
			return nil
		}
		return err
	}
	return s.revertUsage(ctx, usage.CouponID, orderID)
}

func (s *couponService) antifraudCheck(ctx context.Context, userID, fingerprint string) error {
	if fingerprint == "" || !s.antifraud.CheckEnabled {
		return nil
	}

	repo := s.registry.Antifraud()
	userWhitelisted, err := repo.IsUserWhitelisted(ctx, userID)
	if err != nil {
		return err
	}
	fingerprintWhitelisted, err := repo.IsFingerprintWhitelisted(ctx, fingerprint)
	if err != nil {
		return err
	}
	if userWhitelisted || fingerprintWhitelisted {
		return nil
	}

	users, err := repo.CountUsersByFingerprint(ctx, fingerprint, userID)
	if err != nil {
		return err
	}
	if users >= s.antifraud.UsersPerFingerprint {
		s.logger.Info("fingerprint shared across too many users",
			zap.String("userID", userID),
			zap.Int64("users", users),
		)
		return ErrUserNotEligible
	}
	return nil
}

func (s *couponService) resolveActiveCoupon(ctx context.Context, name string) (domain.Coupon, error) {
	coupon, err := s.registry.Coupons().FindActiveByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Coupon{}, ErrCouponNotValid
		}
		return domain.Coupon{}, err
	}
	if coupon.Expired(s.clock()) {
		return domain.Coupon{}, ErrCouponNotValid
	}
	return coupon, nil
}

// eligibleItems drops tobacco items and, when the coupon restricts categories,
// keeps only items whose category sets intersect the permitted set.
func (s *couponService) eligibleItems(coupon domain.Coupon, items []domain.OrderLineItem) ([]domain.OrderLineItem, error) {
	discountable := domain.DiscountableItems(items)
	if len(coupon.PermittedCategoryIDs) == 0 {
		return discountable, nil
	}

	permittedSet := make(map[string]struct{}, len(coupon.PermittedCategoryIDs))
	for _, id := range coupon.PermittedCategoryIDs {
		permittedSet[id] = struct{}{}
	}

	kept := make([]domain.OrderLineItem, 0, len(discountable))
	for _, item := range discountable {
		for _, categoryID := range item.CategoryIDs {
			if _, ok := permittedSet[categoryID]; ok {
				kept = append(kept, item)
				break
			}
		}
	}
	if len(kept) == 0 {
		return nil, NewRuleError(CodeCouponNotPermittedCat, map[string]any{
			"permitted_categories_ids": append([]string(nil), coupon.PermittedCategoryIDs...),
		})
	}
	return kept, nil
}

// priceCoupon computes the base discount, distributes it, and redistributes
// under the max-discount cap when the distributed total exceeds it.
func (s *couponService) priceCoupon(
	coupon domain.Coupon,
	effectiveValue int64,
	filteredSubtotal int64,
	items []domain.OrderLineItem,
	purchasePrices map[string]int64,
) (domain.DistributedDiscount, map[string]any) {
	base := s.baseDiscount(coupon, effectiveValue, filteredSubtotal)

	distributed := pricing.DistributeDiscount(s.logger, base, items, purchasePrices)

	if coupon.Kind == domain.CouponKindPercent && coupon.MaxDiscount != nil && distributed.Value > *coupon.MaxDiscount {
		s.logger.Info("coupon discount exceeds max discount",
			zap.String("couponID", coupon.ID),
			zap.Int64("discount", distributed.Value),
			zap.Int64("maxDiscount", *coupon.MaxDiscount),
		)
		distributed = pricing.DistributeDiscount(s.logger, *coupon.MaxDiscount, items, purchasePrices)
		return distributed, map[string]any{"max_discount": distributed.Value}
	}
	return distributed, nil
}

// baseDiscount converts the coupon value into cents and floors it so the
// post-discount subtotal never drops below the configured order floor.
func (s *couponService) baseDiscount(coupon domain.Coupon, effectiveValue, subtotal int64) int64 {
	if subtotal <= 0 {
		s.logger.Error("order subtotal must be positive", zap.String("couponID", coupon.ID))
		return 0
	}

	var discount int64
	switch coupon.Kind {
	case domain.CouponKindPercent:
		discount = domain.PercentOf(subtotal, effectiveValue)
	case domain.CouponKindFixed:
		discount = effectiveValue
	default:
		s.logger.Error("unknown coupon kind",
			zap.String("couponID", coupon.ID),
			zap.String("kind", string(coupon.Kind)),
		)
		return 0
	}

	if subtotal-discount < s.promotions.MinOrderAmount {
		capped := subtotal - s.promotions.MinOrderAmount
		if capped < 0 {
			capped = 0
		}
		s.logger.Debug("coupon discount reduced to order floor",
			zap.String("couponID", coupon.ID),
			zap.Int64("discount", discount),
			zap.Int64("capped", capped),
		)
		discount = capped
	}
	return discount
}

// storeUsage decrements quantity, records the redemption, and registers the
// device fingerprint as one unit of work. The quantity adjustment goes first:
// it is the only transactional read, and Firestore rejects reads issued after
// a buffered write.
func (s *couponService) storeUsage(ctx context.Context, couponID, userID, orderID, fingerprint string) error {
	return s.registry.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.registry.Coupons().AdjustQuantity(ctx, couponID, -1); err != nil {
			return err
		}
		if _, err := s.registry.CouponUsages().Insert(ctx, domain.CouponUsage{
			ID:       ulid.Make().String(),
			CouponID: couponID,
			UserID:   userID,
			OrderID:  orderID,
		}); err != nil {
			return err
		}
		if fingerprint != "" {
			return s.registry.Antifraud().RegisterFingerprint(ctx, userID, fingerprint)
		}
		return nil
	})
}

// revertUsage restores quantity and deletes the usage record as one unit of work.
func (s *couponService) revertUsage(ctx context.Context, couponID, orderID string) error {
	return s.registry.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.registry.Coupons().AdjustQuantity(ctx, couponID, 1); err != nil {
			return err
		}
		return s.registry.CouponUsages().Delete(ctx, couponID, orderID)
	})
}

// revertCurrentCoupon reverts whatever coupon is currently attached to the
// order, returning its id, or "" when the order had none.
func (s *couponService) revertCurrentCoupon(ctx context.Context, orderID string) (string, error) {
	usage, err := s.registry.CouponUsages().FindCurrentByOrder(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if err := s.revertUsage(ctx, usage.CouponID, orderID); err != nil {
		return "", err
	}
	return usage.CouponID, nil
}

func (s *couponService) alcoholPurchasePrices(ctx context.Context, warehouseID string, items []domain.OrderLineItem) (map[string]int64, error) {
	var productIDs []string
	for _, item := range items {
		if item.Type == domain.ProductTypeAlcohol {
			productIDs = append(productIDs, item.ProductID)
		}
	}
	if len(productIDs) == 0 {
		return nil, nil
	}
	return s.prices.PurchasePrices(ctx, warehouseID, productIDs)
}

func checkOrderWindow(coupon domain.Coupon, paidOrders int64) error {
	if coupon.OrdersFrom != nil && *coupon.OrdersFrom > paidOrders {
		return NewRuleError(CodeCouponRedeemedOrdersFrom, map[string]any{
			"missing_orders_amount": *coupon.OrdersFrom - paidOrders,
		})
	}
	if coupon.OrdersTo != nil && *coupon.OrdersTo <= paidOrders {
		if coupon.Class == domain.CouponClassReferral {
			return NewRuleError(CodeReferralLimit, map[string]any{
				"initial_orders_count_permit": *coupon.OrdersTo,
			})
		}
		return NewRuleError(CodeCouponRedeemedOrdersTo, map[string]any{
			"orders_amount_upper_limit": *coupon.OrdersTo,
		})
	}
	return nil
}

func permitted(allowList []string, id string) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, candidate := range allowList {
		if candidate == id {
			return true
		}
	}
	return false
}

func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("services: generate referral code: %w", err)
	}
	code := make([]byte, referralCodeLength)
	for i, b := range buf {
		code[i] = referralCodeCharset[int(b)%len(referralCodeCharset)]
	}
	return string(code), nil
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func int64Ptr(v int64) *int64 {
	return &v
}
