package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/dashmart/promotions/internal/domain"
	pfirestore "github.com/dashmart/promotions/internal/platform/firestore"
	"github.com/dashmart/promotions/internal/repositories"
)

const feeCollection = "fees"

type feeDocument struct {
	Name        string `firestore:"name"`
	Description string `firestore:"description,omitempty"`
	Type        string `firestore:"type"`
	Value       int64  `firestore:"value"`
	ImageURL    string `firestore:"imageUrl,omitempty"`

	FreeAfterSubtotal int64 `firestore:"freeAfterSubtotal,omitempty"`

	Active                bool     `firestore:"active"`
	Global                bool     `firestore:"global"`
	PermittedUserIDs      []string `firestore:"permittedUserIds,omitempty"`
	PermittedWarehouseIDs []string `firestore:"permittedWarehouseIds,omitempty"`
}

// FeeRepository loads applicable order fees from Firestore.
type FeeRepository struct {
	base *pfirestore.BaseRepository[feeDocument]
}

// NewFeeRepository constructs a Firestore-backed fee repository.
func NewFeeRepository(provider *pfirestore.Provider) (*FeeRepository, error) {
	if provider == nil {
		return nil, errors.New("fee repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[feeDocument](provider, feeCollection, nil, nil)
	return &FeeRepository{base: base}, nil
}

// ListApplicable returns active fees that are global or allow-list either the
// user or the warehouse. Results are deduplicated and ordered by name for
// stable downstream rendering.
func (r *FeeRepository) ListApplicable(ctx context.Context, userID, warehouseID string) ([]domain.Fee, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("fee repository not initialised")
	}

	uid := strings.TrimSpace(userID)
	wid := strings.TrimSpace(warehouseID)

	builders := []pfirestore.QueryBuilder{
		func(query firestore.Query) firestore.Query {
			return query.Where("active", "==", true).Where("global", "==", true)
		},
	}
	if uid != "" {
		builders = append(builders, func(query firestore.Query) firestore.Query {
			return query.Where("active", "==", true).Where("permittedUserIds", "array-contains", uid)
		})
	}
	if wid != "" {
		builders = append(builders, func(query firestore.Query) firestore.Query {
			return query.Where("active", "==", true).Where("permittedWarehouseIds", "array-contains", wid)
		})
	}

	seen := make(map[string]struct{})
	var fees []domain.Fee
	for _, build := range builders {
		docs, err := r.base.Query(ctx, build)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if _, ok := seen[doc.ID]; ok {
				continue
			}
			seen[doc.ID] = struct{}{}
			fees = append(fees, decodeFee(doc.ID, doc.Data))
		}
	}

	sort.Slice(fees, func(i, j int) bool {
		if fees[i].Name != fees[j].Name {
			return fees[i].Name < fees[j].Name
		}
		return fees[i].ID < fees[j].ID
	})
	return fees, nil
}

func decodeFee(id string, doc feeDocument) domain.Fee {
	return domain.Fee{
		ID:                    id,
		Name:                  doc.Name,
		Description:           doc.Description,
		Type:                  domain.FeeType(doc.Type),
		Value:                 doc.Value,
		ImageURL:              doc.ImageURL,
		FreeAfterSubtotal:     doc.FreeAfterSubtotal,
		Global:                doc.Global,
		PermittedUserIDs:      cloneStrings(doc.PermittedUserIDs),
		PermittedWarehouseIDs: cloneStrings(doc.PermittedWarehouseIDs),
	}
}

var _ repositories.FeeRepository = (*FeeRepository)(nil)
