package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/config"
	"github.com/dashmart/promotions/internal/repositories"
)

var conditionsTracer = otel.Tracer("github.com/dashmart/promotions/internal/services/conditions")

// ConditionsServiceDeps bundles collaborators required to construct a
// conditions service.
type ConditionsServiceDeps struct {
	Registry   repositories.Registry
	Fees       FeeResolver
	Bonus      BonusResolver
	Gifts      GiftService
	Warehouses WarehouseDirectory
	Prices     PurchasePriceSource
	Messages   config.MessageCatalog
	Promotions config.PromotionConfig
	Logger     *zap.Logger
	Clock      func() time.Time
}

type conditionsService struct {
	registry   repositories.Registry
	fees       FeeResolver
	bonus      BonusResolver
	gifts      GiftService
	warehouses WarehouseDirectory
	prices     PurchasePriceSource
	bars       barComposer
	chains     chainComposer
	logger     *zap.Logger
	clock      func() time.Time
}

// NewConditionsService constructs the conditions orchestrator.
func NewConditionsService(deps ConditionsServiceDeps) (ConditionsService, error) {
	if deps.Registry == nil {
		return nil, errors.New("conditions service: registry is required")
	}
	if deps.Fees == nil {
		return nil, errors.New("conditions service: fee resolver is required")
	}
	if deps.Bonus == nil {
		return nil, errors.New("conditions service: bonus resolver is required")
	}
	if deps.Gifts == nil {
		return nil, errors.New("conditions service: gift service is required")
	}
	if deps.Warehouses == nil {
		return nil, errors.New("conditions service: warehouse directory is required")
	}
	if deps.Prices == nil {
		return nil, errors.New("conditions service: purchase price source is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &conditionsService{
		registry:   deps.Registry,
		fees:       deps.Fees,
		bonus:      deps.Bonus,
		gifts:      deps.Gifts,
		warehouses: deps.Warehouses,
		prices:     deps.Prices,
		bars: barComposer{
			messages:           deps.Messages,
			maxFreeSmallOrders: deps.Promotions.MaxFreeSmallOrders,
		},
		chains: chainComposer{
			messages:           deps.Messages,
			maxFreeSmallOrders: deps.Promotions.MaxFreeSmallOrders,
		},
		logger: logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// OrderConditions computes fees, the loyalty bonus, gift state, and the
// progress narrative for one order state. An applied coupon suppresses the
// bonus entirely.
func (s *conditionsService) OrderConditions(ctx context.Context, req ConditionsRequest) (ConditionsResult, error) {
	ctx, span := conditionsTracer.Start(ctx, "conditions.order_conditions")
	span.SetAttributes(
		attribute.String("warehouse.id", req.WarehouseID),
		attribute.Bool("coupon.applied", req.CouponApplied),
	)
	defer span.End()

	bonusItems := domain.DiscountableItems(req.Items)
	bonusSubtotal := domain.OrderSubtotal(bonusItems)
	feeSubtotal := domain.OrderSubtotal(req.Items)

	fees, err := s.fees.CalculateFees(ctx, req.UserID, req.WarehouseID, req.UserOrdersCount, feeSubtotal)
	if err != nil {
		return ConditionsResult{}, err
	}

	var bonus *domain.OrderBonus
	if !req.CouponApplied {
		bonus, err = s.resolveBonus(ctx, req, bonusItems, bonusSubtotal)
		if err != nil {
			return ConditionsResult{}, err
		}
	}

	gift, err := s.activeGiftSettings(ctx, req.WarehouseID)
	if err != nil {
		return ConditionsResult{}, err
	}

	var smallOrderFee *domain.Fee
	for i := range fees {
		if fees[i].Type == domain.FeeTypeSmallOrder {
			smallOrderFee = &fees[i]
			break
		}
	}

	result := ConditionsResult{
		Fees:            fees,
		DeliveryMode:    req.DeliveryMode,
		DiscountedItems: []domain.DistributedDiscountItem{},
	}
	if bonus != nil {
		result.BonusValue = bonus.AppliedDiscount
		result.DiscountedItems = bonus.Items
	}

	if req.LegacyMode {
		result.CatalogProgressBar = s.bars.CatalogBar(smallOrderFee, bonus, feeSubtotal, bonusSubtotal, req.UserOrdersCount)
		result.CartProgressBar = s.bars.CartBar(smallOrderFee, bonus, feeSubtotal, bonusSubtotal, req.UserOrdersCount)
		result.OrderConditions = s.bars.OrderConditions(smallOrderFee, bonus, req.UserOrdersCount)
		return result, nil
	}

	bar, conditions, err := s.chains.compose(ctx, chainInput{
		fee:             smallOrderFee,
		bonus:           bonus,
		gift:            gift,
		feeSubtotal:     feeSubtotal,
		bonusSubtotal:   bonusSubtotal,
		userOrdersCount: req.UserOrdersCount,
		banner:          s.bannerLookup(req.WarehouseID),
	})
	if err != nil {
		return ConditionsResult{}, err
	}
	result.CatalogProgressBar = bar
	result.CartProgressBar = bar
	result.OrderConditions = conditions

	s.logger.Debug("composed order conditions",
		zap.String("warehouseID", req.WarehouseID),
		zap.Int64("feeSubtotal", feeSubtotal),
		zap.Int64("bonusSubtotal", bonusSubtotal),
		zap.Int64("bonusValue", result.BonusValue),
	)
	return result, nil
}

func (s *conditionsService) resolveBonus(ctx context.Context, req ConditionsRequest, bonusItems []domain.OrderLineItem, bonusSubtotal int64) (*domain.OrderBonus, error) {
	warehouse, err := s.warehouses.GetWarehouse(ctx, req.WarehouseID)
	if err != nil {
		return nil, err
	}

	var alcoholIDs []string
	for _, item := range bonusItems {
		if item.Type == domain.ProductTypeAlcohol {
			alcoholIDs = append(alcoholIDs, item.ProductID)
		}
	}
	var purchasePrices map[string]int64
	if len(alcoholIDs) > 0 {
		purchasePrices, err = s.prices.PurchasePrices(ctx, req.WarehouseID, alcoholIDs)
		if err != nil {
			return nil, err
		}
	}

	return s.bonus.ResolveBonus(ctx, warehouse, bonusSubtotal, req.DeliveryMode, bonusItems, purchasePrices)
}

func (s *conditionsService) activeGiftSettings(ctx context.Context, warehouseID string) (*domain.GiftPromotionSettings, error) {
	settings, err := s.registry.Gifts().FindActiveSettings(ctx, warehouseID, s.clock())
	if err != nil {
		if isRepoNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (s *conditionsService) bannerLookup(warehouseID string) bannerLookup {
	return func(ctx context.Context, subtotal int64) (*BannerInfo, error) {
		details, err := s.gifts.Banner(ctx, warehouseID, subtotal)
		if err != nil {
			return nil, err
		}
		return details.Banner, nil
	}
}

var _ ConditionsService = (*conditionsService)(nil)
