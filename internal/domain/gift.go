package domain

import "time"

// GiftPromotionSettings configures a gift-with-purchase promotion for a warehouse.
type GiftPromotionSettings struct {
	ID          string
	WarehouseID string
	Name        string
	Active      bool
	DateFrom    time.Time
	DateTill    time.Time
	MinSum      int64

	// Banner shown while the subtotal is below / at-or-above MinSum.
	LessSumBannerID    string
	GreaterSumBannerID string
}

// CurrentAt reports whether the promotion is active and inside its validity interval.
func (g GiftPromotionSettings) CurrentAt(now time.Time) bool {
	return g.Active && now.After(g.DateFrom) && now.Before(g.DateTill)
}

// GiftChoice is one product option in the gift chain.
type GiftChoice struct {
	ProductID string
	Quantity  int64
}

// GiftProduct lists the products a qualifying customer chooses a gift from.
type GiftProduct struct {
	ID         string
	SettingsID string
	Chain      []GiftChoice
}

// BannerStyle selects the visual treatment of a cart banner.
type BannerStyle string

const (
	// BannerStyleInfo renders the "keep going" treatment below the threshold.
	BannerStyleInfo BannerStyle = "info"
	// BannerStyleDone renders the completed treatment at or above the threshold.
	BannerStyleDone BannerStyle = "done"
)

// CartBanner is CMS-authored banner copy referenced from gift settings.
// Title and description may contain markup and must be sanitised before
// leaving the service.
type CartBanner struct {
	ID          string
	ImagePath   string
	Title       string
	Description string
	ButtonText  string
}
