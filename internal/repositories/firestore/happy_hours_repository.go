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
	happyHourCollection       = "happyHours"
	forcedHappyHourCollection = "forcedHappyHours"
)

type happyHourDocument struct {
	WarehouseID string `firestore:"warehouseId"`
	Weekday     int    `firestore:"weekday"`
	StartHour   int    `firestore:"startHour"`
	StartMinute int    `firestore:"startMinute"`
	EndHour     int    `firestore:"endHour"`
	EndMinute   int    `firestore:"endMinute"`
	Value       int64  `firestore:"value"`
	Active      bool   `firestore:"active"`
}

type forcedHappyHourDocument struct {
	WarehouseID string    `firestore:"warehouseId"`
	Start       time.Time `firestore:"start"`
	End         time.Time `firestore:"end"`
	Value       int64     `firestore:"value"`
}

// HappyHoursRepository loads scheduled weekly windows and forced one-off
// overrides from Firestore.
type HappyHoursRepository struct {
	scheduled *pfirestore.BaseRepository[happyHourDocument]
	forced    *pfirestore.BaseRepository[forcedHappyHourDocument]
}

// NewHappyHoursRepository constructs a Firestore-backed happy hours repository.
func NewHappyHoursRepository(provider *pfirestore.Provider) (*HappyHoursRepository, error) {
	if provider == nil {
		return nil, errors.New("happy hours repository requires firestore provider")
	}
	return &HappyHoursRepository{
		scheduled: pfirestore.NewBaseRepository[happyHourDocument](provider, happyHourCollection, nil, nil),
		forced:    pfirestore.NewBaseRepository[forcedHappyHourDocument](provider, forcedHappyHourCollection, nil, nil),
	}, nil
}

// ListActiveScheduled returns the warehouse's active weekly windows.
func (r *HappyHoursRepository) ListActiveScheduled(ctx context.Context, warehouseID string) ([]domain.HappyHourWindow, error) {
	if r == nil || r.scheduled == nil {
		return nil, errors.New("happy hours repository not initialised")
	}
	wid := strings.TrimSpace(warehouseID)
	if wid == "" {
		return nil, errors.New("happy hours repository: warehouse id is required")
	}

	docs, err := r.scheduled.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("warehouseId", "==", wid).
			Where("active", "==", true)
	})
	if err != nil {
		return nil, err
	}

	windows := make([]domain.HappyHourWindow, 0, len(docs))
	for _, doc := range docs {
		windows = append(windows, domain.HappyHourWindow{
			WarehouseID: doc.Data.WarehouseID,
			Weekday:     time.Weekday(doc.Data.Weekday),
			Start:       domain.ClockTime{Hour: doc.Data.StartHour, Minute: doc.Data.StartMinute},
			End:         domain.ClockTime{Hour: doc.Data.EndHour, Minute: doc.Data.EndMinute},
			Value:       doc.Data.Value,
			Active:      doc.Data.Active,
		})
	}
	return windows, nil
}

// FindForcedAt returns the forced window covering the given warehouse-local
// instant, or not-found. Firestore permits range filters on a single field, so
// the end bound is checked in memory.
func (r *HappyHoursRepository) FindForcedAt(ctx context.Context, warehouseID string, localNow time.Time) (domain.ForcedHappyHour, error) {
	if r == nil || r.forced == nil {
		return domain.ForcedHappyHour{}, errors.New("happy hours repository not initialised")
	}
	wid := strings.TrimSpace(warehouseID)
	if wid == "" {
		return domain.ForcedHappyHour{}, errors.New("happy hours repository: warehouse id is required")
	}

	docs, err := r.forced.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("warehouseId", "==", wid).
			Where("start", "<=", localNow).
			OrderBy("start", firestore.Desc).
			Limit(5)
	})
	if err != nil {
		return domain.ForcedHappyHour{}, err
	}

	for _, doc := range docs {
		window := domain.ForcedHappyHour{
			WarehouseID: doc.Data.WarehouseID,
			Start:       doc.Data.Start,
			End:         doc.Data.End,
			Value:       doc.Data.Value,
		}
		if window.Contains(localNow) {
			return window, nil
		}
	}
	return domain.ForcedHappyHour{}, pfirestore.WrapError("forced_happy_hours.find_at",
		status.Errorf(codes.NotFound, "no forced happy hour for warehouse %s", wid))
}

var _ repositories.HappyHoursRepository = (*HappyHoursRepository)(nil)
