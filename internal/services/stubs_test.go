package services

import (
	"context"
	"fmt"
	"time"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/repositories"
)

type stubRepoError struct {
	notFound bool
	conflict bool
}

func (e stubRepoError) Error() string {
	return fmt.Sprintf("stub repository error (notFound=%v conflict=%v)", e.notFound, e.conflict)
}

func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return false }

var errStubNotFound = stubRepoError{notFound: true}

type stubCouponRepository struct {
	insertFn              func(context.Context, domain.Coupon) (domain.Coupon, error)
	findByIDFn            func(context.Context, string) (domain.Coupon, error)
	findActiveByNameFn    func(context.Context, string) (domain.Coupon, error)
	findReferralByOwnerFn func(context.Context, string) (domain.Coupon, error)
	nameTakenFn           func(context.Context, string) (bool, error)
	adjustQuantityFn      func(context.Context, string, int64) error

	inserted    []domain.Coupon
	adjustments []quantityAdjustment
}

type quantityAdjustment struct {
	CouponID string
	Delta    int64
}

func (s *stubCouponRepository) Insert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	s.inserted = append(s.inserted, coupon)
	if s.insertFn != nil {
		return s.insertFn(ctx, coupon)
	}
	return coupon, nil
}

func (s *stubCouponRepository) FindByID(ctx context.Context, couponID string) (domain.Coupon, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, couponID)
	}
	return domain.Coupon{}, errStubNotFound
}

func (s *stubCouponRepository) FindActiveByName(ctx context.Context, name string) (domain.Coupon, error) {
	if s.findActiveByNameFn != nil {
		return s.findActiveByNameFn(ctx, name)
	}
	return domain.Coupon{}, errStubNotFound
}

func (s *stubCouponRepository) FindActiveReferralByOwner(ctx context.Context, userID string) (domain.Coupon, error) {
	if s.findReferralByOwnerFn != nil {
		return s.findReferralByOwnerFn(ctx, userID)
	}
	return domain.Coupon{}, errStubNotFound
}

func (s *stubCouponRepository) NameTaken(ctx context.Context, name string) (bool, error) {
	if s.nameTakenFn != nil {
		return s.nameTakenFn(ctx, name)
	}
	return false, nil
}

func (s *stubCouponRepository) AdjustQuantity(ctx context.Context, couponID string, delta int64) error {
	s.adjustments = append(s.adjustments, quantityAdjustment{CouponID: couponID, Delta: delta})
	if s.adjustQuantityFn != nil {
		return s.adjustQuantityFn(ctx, couponID, delta)
	}
	return nil
}

type stubCouponUsageRepository struct {
	insertFn             func(context.Context, domain.CouponUsage) (domain.CouponUsage, error)
	findCurrentByOrderFn func(context.Context, string) (domain.CouponUsage, error)
	countPaidFn          func(context.Context, string, string) (int64, error)
	markOrderPaidFn      func(context.Context, string, string, time.Time) error
	deleteFn             func(context.Context, string, string) error

	inserted []domain.CouponUsage
	deleted  []string
	paid     []string
}

func (s *stubCouponUsageRepository) Insert(ctx context.Context, usage domain.CouponUsage) (domain.CouponUsage, error) {
	s.inserted = append(s.inserted, usage)
	if s.insertFn != nil {
		return s.insertFn(ctx, usage)
	}
	return usage, nil
}

func (s *stubCouponUsageRepository) FindCurrentByOrder(ctx context.Context, orderID string) (domain.CouponUsage, error) {
	if s.findCurrentByOrderFn != nil {
		return s.findCurrentByOrderFn(ctx, orderID)
	}
	return domain.CouponUsage{}, errStubNotFound
}

func (s *stubCouponUsageRepository) CountPaidByUserAndCoupon(ctx context.Context, userID, couponID string) (int64, error) {
	if s.countPaidFn != nil {
		return s.countPaidFn(ctx, userID, couponID)
	}
	return 0, nil
}

func (s *stubCouponUsageRepository) MarkOrderPaid(ctx context.Context, couponID, orderID string, paidAt time.Time) error {
	s.paid = append(s.paid, orderID)
	if s.markOrderPaidFn != nil {
		return s.markOrderPaidFn(ctx, couponID, orderID, paidAt)
	}
	return nil
}

func (s *stubCouponUsageRepository) Delete(ctx context.Context, couponID, orderID string) error {
	s.deleted = append(s.deleted, orderID)
	if s.deleteFn != nil {
		return s.deleteFn(ctx, couponID, orderID)
	}
	return nil
}

type stubFeeRepository struct {
	listApplicableFn func(context.Context, string, string) ([]domain.Fee, error)
}

func (s *stubFeeRepository) ListApplicable(ctx context.Context, userID, warehouseID string) ([]domain.Fee, error) {
	if s.listApplicableFn != nil {
		return s.listApplicableFn(ctx, userID, warehouseID)
	}
	return nil, nil
}

type stubBonusRepository struct {
	findActiveFn func(context.Context, string) (domain.BonusSettings, error)
}

func (s *stubBonusRepository) FindActiveByWarehouse(ctx context.Context, warehouseID string) (domain.BonusSettings, error) {
	if s.findActiveFn != nil {
		return s.findActiveFn(ctx, warehouseID)
	}
	return domain.BonusSettings{}, errStubNotFound
}

type stubHappyHoursRepository struct {
	listScheduledFn func(context.Context, string) ([]domain.HappyHourWindow, error)
	findForcedFn    func(context.Context, string, time.Time) (domain.ForcedHappyHour, error)
}

func (s *stubHappyHoursRepository) ListActiveScheduled(ctx context.Context, warehouseID string) ([]domain.HappyHourWindow, error) {
	if s.listScheduledFn != nil {
		return s.listScheduledFn(ctx, warehouseID)
	}
	return nil, nil
}

func (s *stubHappyHoursRepository) FindForcedAt(ctx context.Context, warehouseID string, localNow time.Time) (domain.ForcedHappyHour, error) {
	if s.findForcedFn != nil {
		return s.findForcedFn(ctx, warehouseID, localNow)
	}
	return domain.ForcedHappyHour{}, errStubNotFound
}

type stubGiftRepository struct {
	findSettingsFn func(context.Context, string, time.Time) (domain.GiftPromotionSettings, error)
	findProductFn  func(context.Context, string) (domain.GiftProduct, error)
	findBannerFn   func(context.Context, string) (domain.CartBanner, error)
}

func (s *stubGiftRepository) FindActiveSettings(ctx context.Context, warehouseID string, now time.Time) (domain.GiftPromotionSettings, error) {
	if s.findSettingsFn != nil {
		return s.findSettingsFn(ctx, warehouseID, now)
	}
	return domain.GiftPromotionSettings{}, errStubNotFound
}

func (s *stubGiftRepository) FindGiftProduct(ctx context.Context, settingsID string) (domain.GiftProduct, error) {
	if s.findProductFn != nil {
		return s.findProductFn(ctx, settingsID)
	}
	return domain.GiftProduct{}, errStubNotFound
}

func (s *stubGiftRepository) FindBanner(ctx context.Context, bannerID string) (domain.CartBanner, error) {
	if s.findBannerFn != nil {
		return s.findBannerFn(ctx, bannerID)
	}
	return domain.CartBanner{}, errStubNotFound
}

type stubAntifraudRepository struct {
	countUsersFn             func(context.Context, string, string) (int64, error)
	userWhitelistedFn        func(context.Context, string) (bool, error)
	fingerprintWhitelistedFn func(context.Context, string) (bool, error)
	registerFn               func(context.Context, string, string) error

	registered []string
}

func (s *stubAntifraudRepository) CountUsersByFingerprint(ctx context.Context, fingerprint, userID string) (int64, error) {
	if s.countUsersFn != nil {
		return s.countUsersFn(ctx, fingerprint, userID)
	}
	return 0, nil
}

func (s *stubAntifraudRepository) IsUserWhitelisted(ctx context.Context, userID string) (bool, error) {
	if s.userWhitelistedFn != nil {
		return s.userWhitelistedFn(ctx, userID)
	}
	return false, nil
}

func (s *stubAntifraudRepository) IsFingerprintWhitelisted(ctx context.Context, fingerprint string) (bool, error) {
	if s.fingerprintWhitelistedFn != nil {
		return s.fingerprintWhitelistedFn(ctx, fingerprint)
	}
	return false, nil
}

func (s *stubAntifraudRepository) RegisterFingerprint(ctx context.Context, userID, fingerprint string) error {
	s.registered = append(s.registered, fingerprint)
	if s.registerFn != nil {
		return s.registerFn(ctx, userID, fingerprint)
	}
	return nil
}

type stubHealthRepository struct{}

func (stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{}, nil
}

// stubRegistry satisfies repositories.Registry with per-repository stubs.
// Transactions run the callback inline.
type stubRegistry struct {
	coupons      *stubCouponRepository
	couponUsages *stubCouponUsageRepository
	fees         *stubFeeRepository
	bonuses      *stubBonusRepository
	happyHours   *stubHappyHoursRepository
	gifts        *stubGiftRepository
	antifraud    *stubAntifraudRepository

	txCount int
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		coupons:      &stubCouponRepository{},
		couponUsages: &stubCouponUsageRepository{},
		fees:         &stubFeeRepository{},
		bonuses:      &stubBonusRepository{},
		happyHours:   &stubHappyHoursRepository{},
		gifts:        &stubGiftRepository{},
		antifraud:    &stubAntifraudRepository{},
	}
}

func (s *stubRegistry) Close(context.Context) error { return nil }

func (s *stubRegistry) Coupons() repositories.CouponRepository           { return s.coupons }
func (s *stubRegistry) CouponUsages() repositories.CouponUsageRepository { return s.couponUsages }
func (s *stubRegistry) Fees() repositories.FeeRepository                 { return s.fees }
func (s *stubRegistry) Bonuses() repositories.BonusRepository            { return s.bonuses }
func (s *stubRegistry) HappyHours() repositories.HappyHoursRepository    { return s.happyHours }
func (s *stubRegistry) Gifts() repositories.GiftRepository               { return s.gifts }
func (s *stubRegistry) Antifraud() repositories.AntifraudRepository      { return s.antifraud }
func (s *stubRegistry) Health() repositories.HealthRepository            { return stubHealthRepository{} }

func (s *stubRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txCount++
	return fn(ctx)
}

type stubPriceSource struct {
	pricesFn func(context.Context, string, []string) (map[string]int64, error)
}

func (s *stubPriceSource) PurchasePrices(ctx context.Context, warehouseID string, productIDs []string) (map[string]int64, error) {
	if s.pricesFn != nil {
		return s.pricesFn(ctx, warehouseID, productIDs)
	}
	return map[string]int64{}, nil
}

type stubWarehouseDirectory struct {
	getFn func(context.Context, string) (Warehouse, error)
}

func (s *stubWarehouseDirectory) GetWarehouse(ctx context.Context, warehouseID string) (Warehouse, error) {
	if s.getFn != nil {
		return s.getFn(ctx, warehouseID)
	}
	return Warehouse{ID: warehouseID, Active: true, Timezone: "UTC"}, nil
}

var (
	_ repositories.Registry = (*stubRegistry)(nil)
	_ PurchasePriceSource   = (*stubPriceSource)(nil)
	_ WarehouseDirectory    = (*stubWarehouseDirectory)(nil)
)
