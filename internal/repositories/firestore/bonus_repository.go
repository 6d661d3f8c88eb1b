package firestore

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/dashmart/promotions/internal/domain"
	pfirestore "github.com/dashmart/promotions/internal/platform/firestore"
	"github.com/dashmart/promotions/internal/repositories"
)

const bonusSettingsCollection = "bonusSettings"

type bonusSettingsDocument struct {
	Active           bool  `firestore:"active"`
	RequiredSubtotal int64 `firestore:"requiredSubtotal"`
	BonusFixed       int64 `firestore:"bonusFixed,omitempty"`
	BonusPercent     int64 `firestore:"bonusPercent,omitempty"`
	HappyHoursOnly   bool  `firestore:"happyHoursOnly,omitempty"`
}

// BonusRepository loads per-warehouse loyalty bonus settings. Settings are keyed
// by warehouse ID, one document per warehouse.
type BonusRepository struct {
	base *pfirestore.BaseRepository[bonusSettingsDocument]
}

// NewBonusRepository constructs a Firestore-backed bonus settings repository.
func NewBonusRepository(provider *pfirestore.Provider) (*BonusRepository, error) {
	if provider == nil {
		return nil, errors.New("bonus repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[bonusSettingsDocument](provider, bonusSettingsCollection, nil, nil)
	return &BonusRepository{base: base}, nil
}

// FindActiveByWarehouse returns the warehouse's bonus settings, or not-found
// when the warehouse has none or they are switched off.
func (r *BonusRepository) FindActiveByWarehouse(ctx context.Context, warehouseID string) (domain.BonusSettings, error) {
	if r == nil || r.base == nil {
		return domain.BonusSettings{}, errors.New("bonus repository not initialised")
	}
	wid := strings.TrimSpace(warehouseID)
	if wid == "" {
		return domain.BonusSettings{}, errors.New("bonus repository: warehouse id is required")
	}

	doc, err := r.base.Get(ctx, wid)
	if err != nil {
		return domain.BonusSettings{}, err
	}
	if !doc.Data.Active {
		return domain.BonusSettings{}, pfirestore.WrapError("bonus_settings.find_active",
			status.Errorf(codes.NotFound, "bonus settings disabled for warehouse %s", wid))
	}

	return domain.BonusSettings{
		WarehouseID:      doc.ID,
		Active:           doc.Data.Active,
		RequiredSubtotal: doc.Data.RequiredSubtotal,
		BonusFixed:       doc.Data.BonusFixed,
		BonusPercent:     doc.Data.BonusPercent,
		HappyHoursOnly:   doc.Data.HappyHoursOnly,
	}, nil
}

var _ repositories.BonusRepository = (*BonusRepository)(nil)
