package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/pricing"
	"github.com/dashmart/promotions/internal/repositories"
)

// BonusResolverDeps bundles collaborators required to construct a bonus resolver.
type BonusResolverDeps struct {
	Registry repositories.Registry
	Logger   *zap.Logger
	Clock    func() time.Time
}

type bonusResolver struct {
	registry repositories.Registry
	logger   *zap.Logger
	clock    func() time.Time
}

// NewBonusResolver constructs the loyalty bonus engine.
func NewBonusResolver(deps BonusResolverDeps) (BonusResolver, error) {
	if deps.Registry == nil {
		return nil, errors.New("bonus resolver: registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &bonusResolver{
		registry: deps.Registry,
		logger:   logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// ResolveBonus resolves the warehouse's loyalty bonus against the qualifying
// subtotal. It returns nil when the warehouse has no active bonus or when a
// happy-hours-only bonus finds no current happy hour. Surge delivery suspends
// happy hours entirely.
func (r *bonusResolver) ResolveBonus(
	ctx context.Context,
	warehouse Warehouse,
	subtotal int64,
	mode domain.DeliveryMode,
	items []domain.OrderLineItem,
	purchasePrices map[string]int64,
) (*domain.OrderBonus, error) {
	settings, err := r.registry.Bonuses().FindActiveByWarehouse(ctx, warehouse.ID)
	if err != nil {
		if isRepoNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var happyHourValue int64
	if mode != domain.DeliveryModeSurge {
		happyHourValue, err = r.currentHappyHourValue(ctx, warehouse)
		if err != nil {
			return nil, err
		}
	}

	bonus := domain.OrderBonus{RequiredSubtotal: settings.RequiredSubtotal}
	switch {
	case settings.HappyHoursOnly && happyHourValue == 0:
		return nil, nil
	case settings.HappyHoursOnly:
		if settings.UsesFixed() {
			bonus.BonusFixed = happyHourValue
		} else {
			bonus.BonusPercent = happyHourValue
		}
		bonus.Increased = true
	case settings.UsesFixed():
		bonus.BonusFixed = settings.BonusFixed
		if happyHourValue > settings.BonusFixed {
			bonus.BonusFixed = happyHourValue
			bonus.Increased = true
		}
	default:
		bonus.BonusPercent = settings.BonusPercent
		if happyHourValue > settings.BonusPercent {
			bonus.BonusPercent = happyHourValue
			bonus.Increased = true
		}
	}

	if subtotal < settings.RequiredSubtotal {
		return &bonus, nil
	}

	base := bonus.BonusFixed
	if bonus.UsesPercent() {
		base = subtotal * bonus.BonusPercent / 100
	}
	distributed := pricing.DistributeDiscount(r.logger, base, items, purchasePrices)
	bonus.AppliedDiscount = distributed.Value
	bonus.Items = distributed.Items
	return &bonus, nil
}

// currentHappyHourValue finds the happy-hour value in effect at the warehouse's
// local wall-clock time. Forced windows take precedence over the weekly schedule.
func (r *bonusResolver) currentHappyHourValue(ctx context.Context, warehouse Warehouse) (int64, error) {
	localNow := r.clock().In(loadLocation(r.logger, warehouse.Timezone))

	forced, err := r.registry.HappyHours().FindForcedAt(ctx, warehouse.ID, localNow)
	if err == nil {
		return forced.Value, nil
	}
	if !isRepoNotFound(err) {
		return 0, err
	}

	windows, err := r.registry.HappyHours().ListActiveScheduled(ctx, warehouse.ID)
	if err != nil {
		return 0, err
	}

	nowClock := domain.ClockTimeOf(localNow)
	today := localNow.Weekday()
	yesterday := (today + 6) % 7

	for _, window := range windows {
		// A window started yesterday evening still covers the early hours of
		// today when it wraps past midnight.
		if window.Weekday == yesterday && window.Overnight() && !window.End.Before(nowClock) {
			return window.Value, nil
		}
	}
	for _, window := range windows {
		if window.Weekday != today {
			continue
		}
		if window.Overnight() {
			if window.Start.Before(nowClock) {
				return window.Value, nil
			}
			continue
		}
		if !nowClock.Before(window.Start) && !nowClock.After(window.End) {
			return window.Value, nil
		}
	}
	return 0, nil
}

var _ BonusResolver = (*bonusResolver)(nil)

// bonusPretty renders the bonus rate for user-facing copy: "10%" for percentage
// bonuses, "$2.50" for fixed ones.
func bonusPretty(bonus domain.OrderBonus) string {
	if bonus.UsesPercent() {
		return moneyPrinter.Sprintf("%d%%", bonus.BonusPercent)
	}
	return formatCents(bonus.BonusFixed)
}
