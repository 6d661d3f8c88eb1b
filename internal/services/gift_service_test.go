package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/dashmart/promotions/internal/domain"
)

func activeGiftSettings() domain.GiftPromotionSettings {
	return domain.GiftPromotionSettings{
		ID:                 "gift-1",
		WarehouseID:        "wh-1",
		Active:             true,
		DateFrom:           testClock().Add(-24 * time.Hour),
		DateTill:           testClock().Add(24 * time.Hour),
		MinSum:             3000,
		LessSumBannerID:    "banner-less",
		GreaterSumBannerID: "banner-more",
	}
}

func newTestGiftService(t *testing.T, registry *stubRegistry) GiftService {
	t.Helper()
	svc, err := NewGiftService(GiftServiceDeps{Registry: registry, Clock: testClock})
	if err != nil {
		t.Fatalf("new gift service: %v", err)
	}
	return svc
}

func TestGiftServiceCurrentGift(t *testing.T) {
	registry := newStubRegistry()
	registry.gifts.findSettingsFn = func(context.Context, string, time.Time) (domain.GiftPromotionSettings, error) {
		return activeGiftSettings(), nil
	}
	registry.gifts.findProductFn = func(context.Context, string) (domain.GiftProduct, error) {
		return domain.GiftProduct{
			ID:         "gp-1",
			SettingsID: "gift-1",
			Chain:      []domain.GiftChoice{{ProductID: "p-1", Quantity: 1}, {ProductID: "p-2", Quantity: 2}},
		}, nil
	}
	svc := newTestGiftService(t, registry)

	details, err := svc.CurrentGift(context.Background(), "wh-1", 4000)
	if err != nil {
		t.Fatalf("current gift: %v", err)
	}
	if details.SettingsID != "gift-1" {
		t.Fatalf("unexpected settings id %s", details.SettingsID)
	}
	if len(details.Chain) != 2 {
		t.Fatalf("expected two gift choices, got %d", len(details.Chain))
	}
}

func TestGiftServiceCurrentGiftEmptyChain(t *testing.T) {
	registry := newStubRegistry()
	registry.gifts.findSettingsFn = func(context.Context, string, time.Time) (domain.GiftPromotionSettings, error) {
		return activeGiftSettings(), nil
	}
	svc := newTestGiftService(t, registry)

	details, err := svc.CurrentGift(context.Background(), "wh-1", 4000)
	if err != nil {
		t.Fatalf("current gift: %v", err)
	}
	if details.Chain == nil || len(details.Chain) != 0 {
		t.Fatalf("expected empty chain, got %+v", details.Chain)
	}
}

func TestGiftServiceCurrentGiftNoSettings(t *testing.T) {
	registry := newStubRegistry()
	svc := newTestGiftService(t, registry)

	_, err := svc.CurrentGift(context.Background(), "wh-1", 4000)
	if !errors.Is(err, ErrGiftSettingsNotFound) {
		t.Fatalf("expected gift_settings_not_found, got %v", err)
	}
}

func TestGiftServiceCurrentGiftBelowMinimum(t *testing.T) {
	registry := newStubRegistry()
	registry.gifts.findSettingsFn = func(context.Context, string, time.Time) (domain.GiftPromotionSettings, error) {
		return activeGiftSettings(), nil
	}
	svc := newTestGiftService(t, registry)

	_, err := svc.CurrentGift(context.Background(), "wh-1", 1000)
	if !errors.Is(err, ErrGiftMinSum) {
		t.Fatalf("expected gift_min_sum, got %v", err)
	}
}

func TestGiftServiceBannerBelowThreshold(t *testing.T) {
	registry := newStubRegistry()
	registry.gifts.findSettingsFn = func(context.Context, string, time.Time) (domain.GiftPromotionSettings, error) {
		return activeGiftSettings(), nil
	}
	registry.gifts.findBannerFn = func(_ context.Context, bannerID string) (domain.CartBanner, error) {
		if bannerID != "banner-less" {
			t.Fatalf("expected less-sum banner, got %s", bannerID)
		}
		return domain.CartBanner{
			ID:          "banner-less",
			Title:       "Almost there",
			Description: "<b>Keep going</b>",
			ButtonText:  "Add {remaining_amount} more",
		}, nil
	}
	svc := newTestGiftService(t, registry)

	details, err := svc.Banner(context.Background(), "wh-1", 2000)
	if err != nil {
		t.Fatalf("banner: %v", err)
	}
	if details.Banner == nil {
		t.Fatal("expected banner")
	}
	if details.Banner.Style != domain.BannerStyleInfo {
		t.Fatalf("expected info style, got %s", details.Banner.Style)
	}
	if details.Banner.ButtonText != "Add $10.00 more" {
		t.Fatalf("unexpected button text %q", details.Banner.ButtonText)
	}
	if details.Banner.Description != "Keep going" {
		t.Fatalf("expected sanitised description, got %q", details.Banner.Description)
	}
}

func TestGiftServiceBannerAboveThreshold(t *testing.T) {
	registry := newStubRegistry()
	registry.gifts.findSettingsFn = func(context.Context, string, time.Time) (domain.GiftPromotionSettings, error) {
		return activeGiftSettings(), nil
	}
	registry.gifts.findBannerFn = func(_ context.Context, bannerID string) (domain.CartBanner, error) {
		if bannerID != "banner-more" {
			t.Fatalf("expected greater-sum banner, got %s", bannerID)
		}
		return domain.CartBanner{ID: "banner-more", Title: "Gift unlocked"}, nil
	}
	svc := newTestGiftService(t, registry)

	details, err := svc.Banner(context.Background(), "wh-1", 5000)
	if err != nil {
		t.Fatalf("banner: %v", err)
	}
	if details.Banner == nil || details.Banner.Style != domain.BannerStyleDone {
		t.Fatalf("expected done style banner, got %+v", details.Banner)
	}
}

func TestGiftServiceBannerWithoutPromotion(t *testing.T) {
	registry := newStubRegistry()
	svc := newTestGiftService(t, registry)

	details, err := svc.Banner(context.Background(), "wh-1", 5000)
	if err != nil {
		t.Fatalf("banner: %v", err)
	}
	if details.Banner != nil {
		t.Fatalf("expected nil banner, got %+v", details.Banner)
	}
}

func TestGiftServiceBannerMissingBannerDocument(t *testing.T) {
	registry := newStubRegistry()
	registry.gifts.findSettingsFn = func(context.Context, string, time.Time) (domain.GiftPromotionSettings, error) {
		return activeGiftSettings(), nil
	}
	svc := newTestGiftService(t, registry)

	details, err := svc.Banner(context.Background(), "wh-1", 5000)
	if err != nil {
		t.Fatalf("banner: %v", err)
	}
	if details.Banner != nil {
		t.Fatalf("expected nil banner when document is missing, got %+v", details.Banner)
	}
}
