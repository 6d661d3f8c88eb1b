// Package di assembles the service layer from its repository and client
// collaborators for runtime use and integration tests.
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dashmart/promotions/internal/platform/config"
	"github.com/dashmart/promotions/internal/repositories"
	"github.com/dashmart/promotions/internal/services"
)

// Services bundles the service-layer contracts the handlers and the event
// intake rely upon.
type Services struct {
	Coupons    services.CouponService
	Conditions services.ConditionsService
	Gifts      services.GiftService
	Bonus      services.BonusResolver
	Fees       services.FeeResolver
	System     services.SystemService
}

// Deps lists the external collaborators the container cannot build itself.
type Deps struct {
	Config     config.Config
	Registry   repositories.Registry
	Warehouses services.WarehouseDirectory
	Prices     services.PurchasePriceSource
	Images     services.ImageSigner
	Build      services.BuildInfo
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests can supply stub
// registries and directories through Deps.
func NewContainer(deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Warehouses == nil {
		return nil, errors.New("warehouse directory is required")
	}
	if deps.Prices == nil {
		return nil, errors.New("purchase price source is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	svc, err := buildServices(deps, logger, clock)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases repository resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps Deps, logger *zap.Logger, clock func() time.Time) (Services, error) {
	var svc Services
	cfg := deps.Config

	coupons, err := services.NewCouponService(services.CouponServiceDeps{
		Registry:   deps.Registry,
		Prices:     deps.Prices,
		Promotions: cfg.Promotions,
		Referral:   cfg.Referral,
		Antifraud:  cfg.Antifraud,
		Logger:     logger.Named("coupons"),
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}
	svc.Coupons = coupons

	fees, err := services.NewFeeResolver(services.FeeResolverDeps{
		Registry:   deps.Registry,
		Promotions: cfg.Promotions,
		Logger:     logger.Named("fees"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build fee resolver: %w", err)
	}
	svc.Fees = fees

	bonus, err := services.NewBonusResolver(services.BonusResolverDeps{
		Registry: deps.Registry,
		Logger:   logger.Named("bonus"),
		Clock:    clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build bonus resolver: %w", err)
	}
	svc.Bonus = bonus

	gifts, err := services.NewGiftService(services.GiftServiceDeps{
		Registry: deps.Registry,
		Images:   deps.Images,
		Logger:   logger.Named("gifts"),
		Clock:    clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build gift service: %w", err)
	}
	svc.Gifts = gifts

	conditions, err := services.NewConditionsService(services.ConditionsServiceDeps{
		Registry:   deps.Registry,
		Fees:       fees,
		Bonus:      bonus,
		Gifts:      gifts,
		Warehouses: deps.Warehouses,
		Prices:     deps.Prices,
		Messages:   cfg.Messages,
		Promotions: cfg.Promotions,
		Logger:     logger.Named("conditions"),
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build conditions service: %w", err)
	}
	svc.Conditions = conditions

	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: deps.Registry.Health(),
		Clock:            clock,
		Build:            deps.Build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = system

	return svc, nil
}
