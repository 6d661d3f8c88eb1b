package firestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/dashmart/promotions/internal/domain"
	pfirestore "github.com/dashmart/promotions/internal/platform/firestore"
	"github.com/dashmart/promotions/internal/repositories"
)

const couponCollection = "coupons"

type couponDocument struct {
	Name        string `firestore:"name"`
	NameLower   string `firestore:"nameLower"`
	Description string `firestore:"description,omitempty"`
	Active      bool   `firestore:"active"`
	Kind        string `firestore:"kind"`
	Class       string `firestore:"class"`
	Value       int64  `firestore:"value"`

	OwnerUserID    string `firestore:"ownerUserId,omitempty"`
	ReferralActive bool   `firestore:"referralActive,omitempty"`

	ValidTill          *time.Time `firestore:"validTill,omitempty"`
	Quantity           *int64     `firestore:"quantity,omitempty"`
	Limit              *int64     `firestore:"limit,omitempty"`
	MinimumOrderAmount *int64     `firestore:"minimumOrderAmount,omitempty"`
	OrdersFrom         *int64     `firestore:"ordersFrom,omitempty"`
	OrdersTo           *int64     `firestore:"ordersTo,omitempty"`
	MaxDiscount        *int64     `firestore:"maxDiscount,omitempty"`

	PermittedUserIDs      []string `firestore:"permittedUserIds,omitempty"`
	PermittedWarehouseIDs []string `firestore:"permittedWarehouseIds,omitempty"`
	PermittedCategoryIDs  []string `firestore:"permittedCategoryIds,omitempty"`

	// Firestore map keys must be strings, so order numbers are serialised
	// in decimal form.
	ValueByOrderNumber map[string]int64 `firestore:"valueByOrderNumber,omitempty"`

	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CouponRepository persists coupon definitions within Firestore.
type CouponRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[couponDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[couponDocument](provider, couponCollection, nil, nil)
	return &CouponRepository{provider: provider, base: base}, nil
}

// Insert stores a new coupon definition. The coupon ID is generated when empty.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}

	name := strings.TrimSpace(coupon.Name)
	if name == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon name is required")
	}

	id := strings.TrimSpace(coupon.ID)
	if id == "" {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return domain.Coupon{}, err
		}
		id = client.Collection(couponCollection).NewDoc().ID
	}

	now := time.Now().UTC()
	createdAt := coupon.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := encodeCoupon(coupon)
	doc.Name = name
	doc.NameLower = strings.ToLower(name)
	doc.CreatedAt = createdAt
	doc.UpdatedAt = now

	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Coupon{}, err
	}

	saved := coupon
	saved.ID = id
	saved.Name = name
	saved.CreatedAt = createdAt
	saved.UpdatedAt = result.UpdateTime
	if saved.UpdatedAt.IsZero() {
		// Transactional writes commit later and carry no update time yet.
		saved.UpdatedAt = now
	}
	return saved, nil
}

// FindByID loads a coupon definition by its document identifier.
func (r *CouponRepository) FindByID(ctx context.Context, couponID string) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	id := strings.TrimSpace(couponID)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Coupon{}, err
	}
	return decodeCoupon(doc.ID, doc.Data), nil
}

// FindActiveByName resolves an active coupon by its case-insensitive name.
func (r *CouponRepository) FindActiveByName(ctx context.Context, name string) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	lowered := strings.ToLower(strings.TrimSpace(name))
	if lowered == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon name is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("nameLower", "==", lowered).
			Where("active", "==", true).
			Limit(1)
	})
	if err != nil {
		return domain.Coupon{}, err
	}
	if len(docs) == 0 {
		return domain.Coupon{}, pfirestore.WrapError("coupons.find_active_by_name",
			status.Errorf(codes.NotFound, "no active coupon named %q", lowered))
	}
	return decodeCoupon(docs[0].ID, docs[0].Data), nil
}

// FindActiveReferralByOwner returns the owner's live referral coupon, if any.
func (r *CouponRepository) FindActiveReferralByOwner(ctx context.Context, userID string) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Coupon{}, errors.New("coupon repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("class", "==", string(domain.CouponClassReferral)).
			Where("ownerUserId", "==", uid).
			Where("referralActive", "==", true).
			Limit(1)
	})
	if err != nil {
		return domain.Coupon{}, err
	}
	if len(docs) == 0 {
		return domain.Coupon{}, pfirestore.WrapError("coupons.find_active_referral",
			status.Errorf(codes.NotFound, "no active referral coupon for user %s", uid))
	}
	return decodeCoupon(docs[0].ID, docs[0].Data), nil
}

// NameTaken reports whether an active coupon already claims the name.
func (r *CouponRepository) NameTaken(ctx context.Context, name string) (bool, error) {
	if r == nil || r.base == nil {
		return false, errors.New("coupon repository not initialised")
	}
	lowered := strings.ToLower(strings.TrimSpace(name))
	if lowered == "" {
		return false, errors.New("coupon repository: coupon name is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("nameLower", "==", lowered).
			Where("active", "==", true).
			Limit(1)
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// AdjustQuantity changes the remaining quantity by delta via read-check-write.
// It joins the ambient transaction when the context carries one, otherwise it
// opens its own. Unlimited coupons (nil quantity) are left untouched; driving
// the quantity below zero surfaces as a conflict.
//
// Inside a shared transaction the read here must run before any buffered
// write, so callers grouping this with inserts or deletes call it first.
func (r *CouponRepository) AdjustQuantity(ctx context.Context, couponID string, delta int64) error {
	if r == nil || r.provider == nil {
		return errors.New("coupon repository not initialised")
	}
	id := strings.TrimSpace(couponID)
	if id == "" {
		return errors.New("coupon repository: coupon id is required")
	}
	if delta == 0 {
		return nil
	}

	var err error
	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		err = r.adjustQuantityInTx(ctx, tx, id, delta)
	} else {
		err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			return r.adjustQuantityInTx(ctx, tx, id, delta)
		})
	}
	if err != nil {
		return pfirestore.WrapError("coupons.adjust_quantity", err)
	}
	return nil
}

func (r *CouponRepository) adjustQuantityInTx(ctx context.Context, tx *firestore.Transaction, id string, delta int64) error {
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}

	snapshot, err := tx.Get(ref)
	if err != nil {
		return err
	}

	var doc couponDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return fmt.Errorf("firestore coupons decode %s: %w", id, err)
	}
	if doc.Quantity == nil {
		return nil
	}

	remaining := *doc.Quantity + delta
	if remaining < 0 {
		return status.Errorf(codes.FailedPrecondition, "coupon %s quantity exhausted", id)
	}

	return tx.Update(ref, []firestore.Update{
		{Path: "quantity", Value: remaining},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
}

func encodeCoupon(coupon domain.Coupon) couponDocument {
	doc := couponDocument{
		Name:                  strings.TrimSpace(coupon.Name),
		NameLower:             strings.ToLower(strings.TrimSpace(coupon.Name)),
		Description:           strings.TrimSpace(coupon.Description),
		Active:                coupon.Active,
		Kind:                  string(coupon.Kind),
		Class:                 string(coupon.Class),
		Value:                 coupon.Value,
		OwnerUserID:           strings.TrimSpace(coupon.OwnerUserID),
		ReferralActive:        coupon.ReferralActive,
		Quantity:              cloneInt64Ptr(coupon.Quantity),
		Limit:                 cloneInt64Ptr(coupon.Limit),
		MinimumOrderAmount:    cloneInt64Ptr(coupon.MinimumOrderAmount),
		OrdersFrom:            cloneInt64Ptr(coupon.OrdersFrom),
		OrdersTo:              cloneInt64Ptr(coupon.OrdersTo),
		MaxDiscount:           cloneInt64Ptr(coupon.MaxDiscount),
		PermittedUserIDs:      cloneStrings(coupon.PermittedUserIDs),
		PermittedWarehouseIDs: cloneStrings(coupon.PermittedWarehouseIDs),
		PermittedCategoryIDs:  cloneStrings(coupon.PermittedCategoryIDs),
		CreatedAt:             coupon.CreatedAt.UTC(),
		UpdatedAt:             coupon.UpdatedAt.UTC(),
	}
	if coupon.ValidTill != nil {
		till := coupon.ValidTill.UTC()
		doc.ValidTill = &till
	}
	if len(coupon.ValueByOrderNumber) > 0 {
		doc.ValueByOrderNumber = make(map[string]int64, len(coupon.ValueByOrderNumber))
		for number, value := range coupon.ValueByOrderNumber {
			doc.ValueByOrderNumber[strconv.FormatInt(number, 10)] = value
		}
	}
	return doc
}

func decodeCoupon(id string, doc couponDocument) domain.Coupon {
	coupon := domain.Coupon{
		ID:                    id,
		Name:                  doc.Name,
		Description:           doc.Description,
		Active:                doc.Active,
		Kind:                  domain.CouponKind(doc.Kind),
		Class:                 domain.CouponClass(doc.Class),
		Value:                 doc.Value,
		OwnerUserID:           doc.OwnerUserID,
		ReferralActive:        doc.ReferralActive,
		Quantity:              cloneInt64Ptr(doc.Quantity),
		Limit:                 cloneInt64Ptr(doc.Limit),
		MinimumOrderAmount:    cloneInt64Ptr(doc.MinimumOrderAmount),
		OrdersFrom:            cloneInt64Ptr(doc.OrdersFrom),
		OrdersTo:              cloneInt64Ptr(doc.OrdersTo),
		MaxDiscount:           cloneInt64Ptr(doc.MaxDiscount),
		PermittedUserIDs:      cloneStrings(doc.PermittedUserIDs),
		PermittedWarehouseIDs: cloneStrings(doc.PermittedWarehouseIDs),
		PermittedCategoryIDs:  cloneStrings(doc.PermittedCategoryIDs),
		CreatedAt:             doc.CreatedAt,
		UpdatedAt:             doc.UpdatedAt,
	}
	if doc.ValidTill != nil {
		till := doc.ValidTill.UTC()
		coupon.ValidTill = &till
	}
	if len(doc.ValueByOrderNumber) > 0 {
		coupon.ValueByOrderNumber = make(map[int64]int64, len(doc.ValueByOrderNumber))
		for key, value := range doc.ValueByOrderNumber {
			number, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			coupon.ValueByOrderNumber[number] = value
		}
	}
	return coupon
}

func cloneInt64Ptr(value *int64) *int64 {
	if value == nil {
		return nil
	}
	dup := *value
	return &dup
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)
