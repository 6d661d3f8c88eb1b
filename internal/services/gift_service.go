package services

import (
	"context"
	"errors"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/storage"
	"github.com/dashmart/promotions/internal/repositories"
)

// ImageSigner generates time-limited URLs for CMS-managed banner images.
type ImageSigner interface {
	SignedImageURL(ctx context.Context, object string, query map[string]string) (storage.SignedURLResult, error)
}

// GiftServiceDeps bundles collaborators required to construct a gift service.
// Images is optional; without it banner image paths pass through unsigned.
type GiftServiceDeps struct {
	Registry repositories.Registry
	Images   ImageSigner
	Logger   *zap.Logger
	Clock    func() time.Time
}

type giftService struct {
	registry  repositories.Registry
	images    ImageSigner
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
	clock     func() time.Time
}

// NewGiftService constructs the gift promotion service. Banner copy is
// CMS-authored and sanitised before it leaves the service.
func NewGiftService(deps GiftServiceDeps) (GiftService, error) {
	if deps.Registry == nil {
		return nil, errors.New("gift service: registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &giftService{
		registry:  deps.Registry,
		images:    deps.Images,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// CurrentGift returns the gift chain a qualifying order chooses from.
func (s *giftService) CurrentGift(ctx context.Context, warehouseID string, orderSubtotal int64) (GiftDetails, error) {
	settings, err := s.activeSettings(ctx, warehouseID)
	if err != nil {
		return GiftDetails{}, err
	}
	if settings == nil {
		s.logger.Info("no gift settings for warehouse", zap.String("warehouseID", warehouseID))
		return GiftDetails{}, ErrGiftSettingsNotFound
	}
	if settings.MinSum > orderSubtotal {
		s.logger.Info("order subtotal below gift minimum",
			zap.String("settingsID", settings.ID),
			zap.Int64("subtotal", orderSubtotal),
			zap.Int64("minSum", settings.MinSum),
		)
		return GiftDetails{}, ErrGiftMinSum
	}

	details := GiftDetails{SettingsID: settings.ID, Chain: []domain.GiftChoice{}}
	product, err := s.registry.Gifts().FindGiftProduct(ctx, settings.ID)
	if err != nil {
		if isRepoNotFound(err) {
			return details, nil
		}
		return GiftDetails{}, err
	}
	details.Chain = append(details.Chain, product.Chain...)
	return details, nil
}

// Banner returns the threshold-dependent cart banner, or a nil banner when the
// warehouse has no current gift promotion or the settings reference no banner.
func (s *giftService) Banner(ctx context.Context, warehouseID string, orderSubtotal int64) (BannerDetails, error) {
	settings, err := s.activeSettings(ctx, warehouseID)
	if err != nil {
		return BannerDetails{}, err
	}
	if settings == nil {
		return BannerDetails{}, nil
	}

	var (
		bannerID  string
		remaining int64
		style     domain.BannerStyle
	)
	if orderSubtotal < settings.MinSum {
		bannerID = settings.LessSumBannerID
		remaining = settings.MinSum - orderSubtotal
		style = domain.BannerStyleInfo
	} else {
		bannerID = settings.GreaterSumBannerID
		style = domain.BannerStyleDone
	}
	if bannerID == "" {
		s.logger.Debug("gift settings reference no banner",
			zap.String("warehouseID", warehouseID),
			zap.String("settingsID", settings.ID),
		)
		return BannerDetails{}, nil
	}

	banner, err := s.registry.Gifts().FindBanner(ctx, bannerID)
	if err != nil {
		if isRepoNotFound(err) {
			s.logger.Debug("cart banner not found",
				zap.String("warehouseID", warehouseID),
				zap.String("bannerID", bannerID),
			)
			return BannerDetails{}, nil
		}
		return BannerDetails{}, err
	}

	info := BannerInfo{
		ID:          banner.ID,
		ImageURL:    s.bannerImageURL(ctx, banner),
		Style:       style,
		Title:       s.sanitizer.Sanitize(banner.Title),
		Description: s.sanitizer.Sanitize(banner.Description),
	}
	if banner.ButtonText != "" {
		info.ButtonText = renderTemplate(banner.ButtonText, map[string]string{
			"remaining_amount": formatCents(remaining),
		})
	}
	return BannerDetails{Banner: &info}, nil
}

// activeSettings resolves the warehouse's current gift promotion; nil means none.
func (s *giftService) activeSettings(ctx context.Context, warehouseID string) (*domain.GiftPromotionSettings, error) {
	settings, err := s.registry.Gifts().FindActiveSettings(ctx, warehouseID, s.clock())
	if err != nil {
		if isRepoNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (s *giftService) bannerImageURL(ctx context.Context, banner domain.CartBanner) string {
	if banner.ImagePath == "" {
		return ""
	}
	if s.images == nil {
		return banner.ImagePath
	}
	signed, err := s.images.SignedImageURL(ctx, banner.ImagePath, nil)
	if err != nil {
		s.logger.Warn("failed to sign banner image url",
			zap.String("bannerID", banner.ID),
			zap.Error(err),
		)
		return banner.ImagePath
	}
	return signed.URL
}

var _ GiftService = (*giftService)(nil)
