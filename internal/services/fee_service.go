package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/config"
	"github.com/dashmart/promotions/internal/repositories"
)

// FeeResolverDeps bundles collaborators required to construct a fee resolver.
type FeeResolverDeps struct {
	Registry   repositories.Registry
	Promotions config.PromotionConfig
	Logger     *zap.Logger
}

type feeResolver struct {
	registry   repositories.Registry
	promotions config.PromotionConfig
	logger     *zap.Logger
}

// NewFeeResolver constructs the fee engine.
func NewFeeResolver(deps FeeResolverDeps) (FeeResolver, error) {
	if deps.Registry == nil {
		return nil, errors.New("fee resolver: registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &feeResolver{
		registry:   deps.Registry,
		promotions: deps.Promotions,
		logger:     logger,
	}, nil
}

// CalculateFees returns the applicable fees with small-order fees zeroed for
// users still inside the free-order grace period or for orders above the
// fee's free-after threshold. Zeroed fees stay in the list so clients can
// render the waiver.
func (r *feeResolver) CalculateFees(ctx context.Context, userID, warehouseID string, userOrdersCount, orderSubtotal int64) ([]domain.Fee, error) {
	fees, err := r.registry.Fees().ListApplicable(ctx, userID, warehouseID)
	if err != nil {
		return nil, err
	}

	for i, fee := range fees {
		if fee.Type != domain.FeeTypeSmallOrder {
			continue
		}
		if userOrdersCount < r.promotions.MaxFreeSmallOrders ||
			(fee.FreeAfterSubtotal > 0 && orderSubtotal >= fee.FreeAfterSubtotal) {
			fees[i].Value = 0
		}
	}
	return fees, nil
}

var _ FeeResolver = (*feeResolver)(nil)

// loadLocation resolves a warehouse timezone name, falling back to UTC when
// the name is unknown.
func loadLocation(logger *zap.Logger, name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown warehouse timezone, using UTC", zap.String("timezone", name))
		return time.UTC
	}
	return loc
}
