package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/dashmart/promotions/internal/platform/firestore"
	"github.com/dashmart/promotions/internal/repositories"
)

// Registry assembles every Firestore-backed repository behind a single handle
// and anchors transactional grouping on the shared provider.
type Registry struct {
	provider *pfirestore.Provider

	coupons      *CouponRepository
	couponUsages *CouponUsageRepository
	fees         *FeeRepository
	bonuses      *BonusRepository
	happyHours   *HappyHoursRepository
	gifts        *GiftRepository
	antifraud    *AntifraudRepository
	health       repositories.HealthRepository
}

// NewRegistry constructs the repository registry on top of the provider. The
// health repository is supplied by the caller since its dependency probes reach
// beyond Firestore.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("repository registry requires firestore provider")
	}
	if health == nil {
		return nil, errors.New("repository registry requires health repository")
	}

	coupons, err := NewCouponRepository(provider)
	if err != nil {
		return nil, err
	}
	couponUsages, err := NewCouponUsageRepository(provider)
	if err != nil {
		return nil, err
	}
	fees, err := NewFeeRepository(provider)
	if err != nil {
		return nil, err
	}
	bonuses, err := NewBonusRepository(provider)
	if err != nil {
		return nil, err
	}
	happyHours, err := NewHappyHoursRepository(provider)
	if err != nil {
		return nil, err
	}
	gifts, err := NewGiftRepository(provider)
	if err != nil {
		return nil, err
	}
	antifraud, err := NewAntifraudRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:     provider,
		coupons:      coupons,
		couponUsages: couponUsages,
		fees:         fees,
		bonuses:      bonuses,
		happyHours:   happyHours,
		gifts:        gifts,
		antifraud:    antifraud,
		health:       health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Coupons returns the coupon repository.
func (r *Registry) Coupons() repositories.CouponRepository { return r.coupons }

// CouponUsages returns the coupon usage repository.
func (r *Registry) CouponUsages() repositories.CouponUsageRepository { return r.couponUsages }

// Fees returns the fee repository.
func (r *Registry) Fees() repositories.FeeRepository { return r.fees }

// Bonuses returns the bonus settings repository.
func (r *Registry) Bonuses() repositories.BonusRepository { return r.bonuses }

// HappyHours returns the happy hours repository.
func (r *Registry) HappyHours() repositories.HappyHoursRepository { return r.happyHours }

// Gifts returns the gift repository.
func (r *Registry) Gifts() repositories.GiftRepository { return r.gifts }

// Antifraud returns the antifraud repository.
func (r *Registry) Antifraud() repositories.AntifraudRepository { return r.antifraud }

// Health returns the health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn inside a Firestore transaction. The callback context
// carries the transaction handle, so repository calls made through it join
// the transaction: reads are transactional and writes are buffered until
// commit. Firestore requires all reads before the first write, and the
// callback may be retried on contention, so it must be side-effect free
// outside repository calls.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("repository registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

var _ repositories.Registry = (*Registry)(nil)
