package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/dashmart/promotions/internal/domain"
	pfirestore "github.com/dashmart/promotions/internal/platform/firestore"
	"github.com/dashmart/promotions/internal/repositories"
)

const (
	giftSettingsCollection = "giftSettings"
	giftProductCollection  = "giftProducts"
	cartBannerCollection   = "cartBanners"
)

type giftSettingsDocument struct {
	WarehouseID string    `firestore:"warehouseId"`
	Name        string    `firestore:"name"`
	Active      bool      `firestore:"active"`
	DateFrom    time.Time `firestore:"dateFrom"`
	DateTill    time.Time `firestore:"dateTill"`
	MinSum      int64     `firestore:"minSum"`

	LessSumBannerID    string `firestore:"lessSumBannerId,omitempty"`
	GreaterSumBannerID string `firestore:"greaterSumBannerId,omitempty"`
}

type giftChoiceDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int64  `firestore:"quantity"`
}

type giftProductDocument struct {
	SettingsID string               `firestore:"settingsId"`
	Chain      []giftChoiceDocument `firestore:"chain"`
}

type cartBannerDocument struct {
	ImagePath   string `firestore:"imagePath,omitempty"`
	Title       string `firestore:"title"`
	Description string `firestore:"description,omitempty"`
	ButtonText  string `firestore:"buttonText,omitempty"`
}

// GiftRepository loads gift promotion settings, gift products and cart banners
// from Firestore.
type GiftRepository struct {
	settings *pfirestore.BaseRepository[giftSettingsDocument]
	products *pfirestore.BaseRepository[giftProductDocument]
	banners  *pfirestore.BaseRepository[cartBannerDocument]
}

// NewGiftRepository constructs a Firestore-backed gift repository.
func NewGiftRepository(provider *pfirestore.Provider) (*GiftRepository, error) {
	if provider == nil {
		return nil, errors.New("gift repository requires firestore provider")
	}
	return &GiftRepository{
		settings: pfirestore.NewBaseRepository[giftSettingsDocument](provider, giftSettingsCollection, nil, nil),
		products: pfirestore.NewBaseRepository[giftProductDocument](provider, giftProductCollection, nil, nil),
		banners:  pfirestore.NewBaseRepository[cartBannerDocument](provider, cartBannerCollection, nil, nil),
	}, nil
}

// FindActiveSettings returns the warehouse's gift promotion currently inside its
// validity interval, or not-found. The date bounds are checked in memory since
// Firestore range filters are limited to a single field.
func (r *GiftRepository) FindActiveSettings(ctx context.Context, warehouseID string, now time.Time) (domain.GiftPromotionSettings, error) {
	if r == nil || r.settings == nil {
		return domain.GiftPromotionSettings{}, errors.New("gift repository not initialised")
	}
	wid := strings.TrimSpace(warehouseID)
	if wid == "" {
		return domain.GiftPromotionSettings{}, errors.New("gift repository: warehouse id is required")
	}

	docs, err := r.settings.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("warehouseId", "==", wid).
			Where("active", "==", true)
	})
	if err != nil {
		return domain.GiftPromotionSettings{}, err
	}

	for _, doc := range docs {
		settings := domain.GiftPromotionSettings{
			ID:                 doc.ID,
			WarehouseID:        doc.Data.WarehouseID,
			Name:               doc.Data.Name,
			Active:             doc.Data.Active,
			DateFrom:           doc.Data.DateFrom,
			DateTill:           doc.Data.DateTill,
			MinSum:             doc.Data.MinSum,
			LessSumBannerID:    doc.Data.LessSumBannerID,
			GreaterSumBannerID: doc.Data.GreaterSumBannerID,
		}
		if settings.CurrentAt(now) {
			return settings, nil
		}
	}
	return domain.GiftPromotionSettings{}, pfirestore.WrapError("gift_settings.find_active",
		status.Errorf(codes.NotFound, "no current gift promotion for warehouse %s", wid))
}

// FindGiftProduct returns the gift product chain attached to the settings.
func (r *GiftRepository) FindGiftProduct(ctx context.Context, settingsID string) (domain.GiftProduct, error) {
	if r == nil || r.products == nil {
		return domain.GiftProduct{}, errors.New("gift repository not initialised")
	}
	sid := strings.TrimSpace(settingsID)
	if sid == "" {
		return domain.GiftProduct{}, errors.New("gift repository: settings id is required")
	}

	docs, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("settingsId", "==", sid).Limit(1)
	})
	if err != nil {
		return domain.GiftProduct{}, err
	}
	if len(docs) == 0 {
		return domain.GiftProduct{}, pfirestore.WrapError("gift_products.find",
			status.Errorf(codes.NotFound, "no gift product for settings %s", sid))
	}

	doc := docs[0]
	chain := make([]domain.GiftChoice, 0, len(doc.Data.Chain))
	for _, choice := range doc.Data.Chain {
		chain = append(chain, domain.GiftChoice{
			ProductID: choice.ProductID,
			Quantity:  choice.Quantity,
		})
	}
	return domain.GiftProduct{
		ID:         doc.ID,
		SettingsID: doc.Data.SettingsID,
		Chain:      chain,
	}, nil
}

// FindBanner loads CMS-authored banner copy by identifier.
func (r *GiftRepository) FindBanner(ctx context.Context, bannerID string) (domain.CartBanner, error) {
	if r == nil || r.banners == nil {
		return domain.CartBanner{}, errors.New("gift repository not initialised")
	}
	bid := strings.TrimSpace(bannerID)
	if bid == "" {
		return domain.CartBanner{}, errors.New("gift repository: banner id is required")
	}

	doc, err := r.banners.Get(ctx, bid)
	if err != nil {
		return domain.CartBanner{}, err
	}
	return domain.CartBanner{
		ID:          doc.ID,
		ImagePath:   doc.Data.ImagePath,
		Title:       doc.Data.Title,
		Description: doc.Data.Description,
		ButtonText:  doc.Data.ButtonText,
	}, nil
}

var _ repositories.GiftRepository = (*GiftRepository)(nil)
