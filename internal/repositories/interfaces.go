package repositories

import (
	"context"
	"time"

	domain "github.com/dashmart/promotions/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Coupons() CouponRepository
	CouponUsages() CouponUsageRepository
	Fees() FeeRepository
	Bonuses() BonusRepository
	HappyHours() HappyHoursRepository
	Gifts() GiftRepository
	Antifraud() AntifraudRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in a transactional boundary. The
// callback may be retried when the backend detects a write conflict, so it must
// be side-effect free outside repository calls.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CouponRepository persists coupon definitions, including the permit sets and the
// value-by-order-number override table.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
	FindByID(ctx context.Context, couponID string) (domain.Coupon, error)
	// FindActiveByName resolves an active coupon by its case-insensitive name.
	FindActiveByName(ctx context.Context, name string) (domain.Coupon, error)
	// FindActiveReferralByOwner returns the owner's live referral coupon, if any.
	FindActiveReferralByOwner(ctx context.Context, userID string) (domain.Coupon, error)
	// NameTaken reports whether an active coupon already claims the name.
	NameTaken(ctx context.Context, name string) (bool, error)
	// AdjustQuantity changes the remaining quantity by delta. Implementations
	// must serialise concurrent adjustments and never let quantity drop below
	// zero; a breached floor surfaces as a conflict.
	AdjustQuantity(ctx context.Context, couponID string, delta int64) error
}

// CouponUsageRepository records coupon applications per order.
type CouponUsageRepository interface {
	Insert(ctx context.Context, usage domain.CouponUsage) (domain.CouponUsage, error)
	// FindCurrentByOrder returns the most recent usage attached to the order.
	FindCurrentByOrder(ctx context.Context, orderID string) (domain.CouponUsage, error)
	// CountPaidByUserAndCoupon counts paid redemptions used for limit checks.
	CountPaidByUserAndCoupon(ctx context.Context, userID, couponID string) (int64, error)
	MarkOrderPaid(ctx context.Context, couponID, orderID string, paidAt time.Time) error
	Delete(ctx context.Context, couponID, orderID string) error
}

// FeeRepository returns the fees applicable to a user/warehouse pair: globally
// active fees plus those allow-listing either id.
type FeeRepository interface {
	ListApplicable(ctx context.Context, userID, warehouseID string) ([]domain.Fee, error)
}

// BonusRepository loads the per-warehouse loyalty bonus configuration.
type BonusRepository interface {
	// FindActiveByWarehouse returns not-found when no active settings exist.
	FindActiveByWarehouse(ctx context.Context, warehouseID string) (domain.BonusSettings, error)
}

// HappyHoursRepository loads scheduled and forced happy-hour windows.
type HappyHoursRepository interface {
	ListActiveScheduled(ctx context.Context, warehouseID string) ([]domain.HappyHourWindow, error)
	// FindForcedAt returns the forced window covering the given warehouse-local
	// instant, or not-found.
	FindForcedAt(ctx context.Context, warehouseID string, localNow time.Time) (domain.ForcedHappyHour, error)
}

// GiftRepository persists gift promotion settings, gift products and banners.
type GiftRepository interface {
	FindActiveSettings(ctx context.Context, warehouseID string, now time.Time) (domain.GiftPromotionSettings, error)
	FindGiftProduct(ctx context.Context, settingsID string) (domain.GiftProduct, error)
	FindBanner(ctx context.Context, bannerID string) (domain.CartBanner, error)
}

// AntifraudRepository tracks device fingerprints and the antifraud whitelists.
type AntifraudRepository interface {
	// CountUsersByFingerprint counts distinct users other than userID that have
	// redeemed with the fingerprint.
	CountUsersByFingerprint(ctx context.Context, fingerprint, userID string) (int64, error)
	IsUserWhitelisted(ctx context.Context, userID string) (bool, error)
	IsFingerprintWhitelisted(ctx context.Context, fingerprint string) (bool, error)
	// RegisterFingerprint associates the fingerprint with the user; repeats are no-ops.
	RegisterFingerprint(ctx context.Context, userID, fingerprint string) error
}

// HealthRepository aggregates dependency probes for readiness endpoints.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
