package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/dashmart/promotions/internal/domain"
	pfirestore "github.com/dashmart/promotions/internal/platform/firestore"
	"github.com/dashmart/promotions/internal/repositories"
)

const couponUsageCollection = "couponUsages"

type couponUsageDocument struct {
	CouponID  string    `firestore:"couponId"`
	UserID    string    `firestore:"userId"`
	OrderID   string    `firestore:"orderId"`
	OrderPaid bool      `firestore:"orderPaid"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CouponUsageRepository records coupon applications per order within Firestore.
// Usages are keyed by coupon and order so repeated applications of the same
// coupon to the same order overwrite rather than accumulate.
type CouponUsageRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[couponUsageDocument]
}

// NewCouponUsageRepository constructs a Firestore-backed coupon usage repository.
func NewCouponUsageRepository(provider *pfirestore.Provider) (*CouponUsageRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon usage repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[couponUsageDocument](provider, couponUsageCollection, nil, nil)
	return &CouponUsageRepository{provider: provider, base: base}, nil
}

// Insert stores a usage record for the coupon/order pair.
func (r *CouponUsageRepository) Insert(ctx context.Context, usage domain.CouponUsage) (domain.CouponUsage, error) {
	if r == nil || r.base == nil {
		return domain.CouponUsage{}, errors.New("coupon usage repository not initialised")
	}

	id, err := couponUsageDocID(usage.CouponID, usage.OrderID)
	if err != nil {
		return domain.CouponUsage{}, err
	}
	if strings.TrimSpace(usage.UserID) == "" {
		return domain.CouponUsage{}, errors.New("coupon usage repository: user id is required")
	}

	now := time.Now().UTC()
	createdAt := usage.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := couponUsageDocument{
		CouponID:  strings.TrimSpace(usage.CouponID),
		UserID:    strings.TrimSpace(usage.UserID),
		OrderID:   strings.TrimSpace(usage.OrderID),
		OrderPaid: usage.OrderPaid,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}

	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.CouponUsage{}, err
	}

	saved := usage
	saved.ID = id
	saved.CreatedAt = createdAt
	saved.UpdatedAt = result.UpdateTime
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = now
	}
	return saved, nil
}

// FindCurrentByOrder returns the most recent usage attached to the order.
func (r *CouponUsageRepository) FindCurrentByOrder(ctx context.Context, orderID string) (domain.CouponUsage, error) {
	if r == nil || r.base == nil {
		return domain.CouponUsage{}, errors.New("coupon usage repository not initialised")
	}
	oid := strings.TrimSpace(orderID)
	if oid == "" {
		return domain.CouponUsage{}, errors.New("coupon usage repository: order id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("orderId", "==", oid).
			OrderBy("createdAt", firestore.Desc).
			Limit(1)
	})
	if err != nil {
		return domain.CouponUsage{}, err
	}
	if len(docs) == 0 {
		return domain.CouponUsage{}, pfirestore.WrapError("coupon_usages.find_current",
			status.Errorf(codes.NotFound, "no coupon usage for order %s", oid))
	}

	doc := docs[0]
	return domain.CouponUsage{
		ID:        doc.ID,
		CouponID:  doc.Data.CouponID,
		UserID:    doc.Data.UserID,
		OrderID:   doc.Data.OrderID,
		OrderPaid: doc.Data.OrderPaid,
		CreatedAt: doc.Data.CreatedAt,
		UpdatedAt: doc.UpdateTime,
	}, nil
}

// CountPaidByUserAndCoupon counts paid redemptions used for limit checks.
func (r *CouponUsageRepository) CountPaidByUserAndCoupon(ctx context.Context, userID, couponID string) (int64, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("coupon usage repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	cid := strings.TrimSpace(couponID)
	if uid == "" || cid == "" {
		return 0, errors.New("coupon usage repository: user id and coupon id are required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("userId", "==", uid).
			Where("couponId", "==", cid).
			Where("orderPaid", "==", true)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// MarkOrderPaid flips the usage's paid flag once the order's payment confirms.
func (r *CouponUsageRepository) MarkOrderPaid(ctx context.Context, couponID, orderID string, paidAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("coupon usage repository not initialised")
	}
	id, err := couponUsageDocID(couponID, orderID)
	if err != nil {
		return err
	}

	_, err = r.base.Update(ctx, id, []firestore.Update{
		{Path: "orderPaid", Value: true},
		{Path: "updatedAt", Value: paidAt.UTC()},
	})
	return err
}

// Delete removes the usage record for the coupon/order pair.
func (r *CouponUsageRepository) Delete(ctx context.Context, couponID, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("coupon usage repository not initialised")
	}
	id, err := couponUsageDocID(couponID, orderID)
	if err != nil {
		return err
	}

	return r.base.Delete(ctx, id, firestore.Exists)
}

func couponUsageDocID(couponID, orderID string) (string, error) {
	cid := strings.TrimSpace(couponID)
	oid := strings.TrimSpace(orderID)
	if cid == "" || oid == "" {
		return "", errors.New("coupon usage repository: coupon id and order id are required")
	}
	return fmt.Sprintf("%s_%s", cid, oid), nil
}

var _ repositories.CouponUsageRepository = (*CouponUsageRepository)(nil)
