package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/services"
)

type stubCouponService struct {
	getFn         func(ctx context.Context, couponID string) (services.CouponDetail, error)
	applyFn       func(ctx context.Context, orderID string, req services.ApplyCouponRequest) (services.OrderCouponDetail, error)
	recalculateFn func(ctx context.Context, orderID, couponID string, req services.RecalculateCouponRequest) (services.OrderCouponDetail, error)
	removeFn      func(ctx context.Context, orderID, couponID string) (services.OrderCouponDetail, error)
	referralFn    func(ctx context.Context, userID string) (string, error)
}

func (s *stubCouponService) GetCoupon(ctx context.Context, couponID string) (services.CouponDetail, error) {
	if s.getFn == nil {
		return services.CouponDetail{}, nil
	}
	return s.getFn(ctx, couponID)
}

func (s *stubCouponService) Apply(ctx context.Context, orderID string, req services.ApplyCouponRequest) (services.OrderCouponDetail, error) {
	if s.applyFn == nil {
		return services.OrderCouponDetail{}, nil
	}
	return s.applyFn(ctx, orderID, req)
}

func (s *stubCouponService) Recalculate(ctx context.Context, orderID, couponID string, req services.RecalculateCouponRequest) (services.OrderCouponDetail, error) {
	if s.recalculateFn == nil {
		return services.OrderCouponDetail{}, nil
	}
	return s.recalculateFn(ctx, orderID, couponID, req)
}

func (s *stubCouponService) Remove(ctx context.Context, orderID, couponID string) (services.OrderCouponDetail, error) {
	if s.removeFn == nil {
		return services.OrderCouponDetail{}, nil
	}
	return s.removeFn(ctx, orderID, couponID)
}

func (s *stubCouponService) IssueReferralCoupon(ctx context.Context, userID string) (string, error) {
	if s.referralFn == nil {
		return "", nil
	}
	return s.referralFn(ctx, userID)
}

func (s *stubCouponService) ProcessOrderPaid(context.Context, string) error      { return nil }
func (s *stubCouponService) ProcessOrderCancelled(context.Context, string) error { return nil }

var _ services.CouponService = (*stubCouponService)(nil)

func newCouponRouter(svc services.CouponService) chi.Router {
	handlers := NewCouponHandlers(svc)
	return NewRouter(WithInternalRoutes(handlers.Routes))
}

func TestGetCoupon(t *testing.T) {
	minAmount := int64(500)
	svc := &stubCouponService{
		getFn: func(_ context.Context, couponID string) (services.CouponDetail, error) {
			if couponID != "coupon-1" {
				t.Fatalf("unexpected coupon id %q", couponID)
			}
			return services.CouponDetail{
				ID:             "coupon-1",
				Name:           "SPRING10",
				Kind:           domain.CouponKindPercent,
				Value:          10,
				MinOrderAmount: &minAmount,
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/coupons/coupon-1", nil)
	newCouponRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var body couponDetailResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.ID != "coupon-1" || body.Name != "SPRING10" || body.Kind != "percent" || body.Value != 10 {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if body.MinOrderAmount == nil || *body.MinOrderAmount != 500 {
		t.Fatalf("expected min_order_amount 500, got %v", body.MinOrderAmount)
	}
}

func TestGetCouponNotFound(t *testing.T) {
	svc := &stubCouponService{
		getFn: func(context.Context, string) (services.CouponDetail, error) {
			return services.CouponDetail{}, services.ErrCouponNotFound
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/coupons/missing", nil)
	newCouponRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != services.CodeCouponNotFound {
		t.Fatalf("expected code %s, got %v", services.CodeCouponNotFound, body["error"])
	}
}

func TestAddOrderCoupon(t *testing.T) {
	var captured services.ApplyCouponRequest
	svc := &stubCouponService{
		applyFn: func(_ context.Context, orderID string, req services.ApplyCouponRequest) (services.OrderCouponDetail, error) {
			if orderID != "order-1" {
				t.Fatalf("unexpected order id %q", orderID)
			}
			captured = req
			return services.OrderCouponDetail{
				ID:             "coupon-1",
				OrderID:        orderID,
				Name:           req.CouponName,
				Kind:           domain.CouponKindPercent,
				Value:          10,
				DiscountAmount: 200,
				Items: []domain.DistributedDiscountItem{
					{OrderItemID: "item-1", Discount: 200},
				},
			}, nil
		},
	}

	payload := `{
		"user_id": "user-1",
		"warehouse_id": "wh-1",
		"name": "SPRING10",
		"order_subtotal": 2000,
		"paid_orders_count": 4,
		"delivered_orders_count": 3,
		"unique_identifier": "device-1",
		"order_items": [
			{"id": "item-1", "product_id": "prod-1", "product_type": "regular", "actual_price": 1000, "quantity": 2, "categories_ids": ["cat-1"]}
		]
	}`

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/coupons/orders/order-1", strings.NewReader(payload))
	newCouponRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	if captured.UserID != "user-1" || captured.WarehouseID != "wh-1" || captured.CouponName != "SPRING10" {
		t.Fatalf("unexpected request mapping: %+v", captured)
	}
	if captured.DeviceFingerprint != "device-1" {
		t.Fatalf("expected fingerprint device-1, got %q", captured.DeviceFingerprint)
	}
	if len(captured.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(captured.Items))
	}
	item := captured.Items[0]
	if item.ID != "item-1" || item.ProductID != "prod-1" || item.Type != domain.ProductTypeRegular {
		t.Fatalf("unexpected item mapping: %+v", item)
	}
	if item.UnitPrice != 1000 || item.Quantity != 2 || len(item.CategoryIDs) != 1 {
		t.Fatalf("unexpected item values: %+v", item)
	}

	var body orderCouponDetailResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.OrderID != "order-1" || body.DiscountAmount != 200 {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if len(body.DistributedDiscountItems) != 1 || body.DistributedDiscountItems[0].OrderItemID != "item-1" {
		t.Fatalf("unexpected discount items: %+v", body.DistributedDiscountItems)
	}
}

func TestAddOrderCouponRuleViolation(t *testing.T) {
	svc := &stubCouponService{
		applyFn: func(context.Context, string, services.ApplyCouponRequest) (services.OrderCouponDetail, error) {
			return services.OrderCouponDetail{}, services.NewRuleError(services.CodeCouponMinAmount, map[string]any{"min_amount": "50.00"})
		},
	}

	payload := `{"user_id": "user-1", "warehouse_id": "wh-1", "name": "SPRING10", "order_items": []}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/coupons/orders/order-1", strings.NewReader(payload))
	newCouponRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != services.CodeCouponMinAmount {
		t.Fatalf("expected code %s, got %v", services.CodeCouponMinAmount, body["error"])
	}
	if body["min_amount"] != "50.00" {
		t.Fatalf("expected min_amount detail, got %v", body["min_amount"])
	}
}

func TestAddOrderCouponRejectsMissingFields(t *testing.T) {
	svc := &stubCouponService{
		applyFn: func(context.Context, string, services.ApplyCouponRequest) (services.OrderCouponDetail, error) {
			t.Fatal("apply should not be called")
			return services.OrderCouponDetail{}, nil
		},
	}

	payload := `{"user_id": "user-1", "order_items": []}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/coupons/orders/order-1", strings.NewReader(payload))
	newCouponRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestRecalculateOrderCoupon(t *testing.T) {
	svc := &stubCouponService{
		recalculateFn: func(_ context.Context, orderID, couponID string, req services.RecalculateCouponRequest) (services.OrderCouponDetail, error) {
			if orderID != "order-1" || couponID != "coupon-1" {
				t.Fatalf("unexpected ids order=%q coupon=%q", orderID, couponID)
			}
			if req.WarehouseID != "wh-1" || req.OrderSubtotal != 3000 {
				t.Fatalf("unexpected request: %+v", req)
			}
			return services.OrderCouponDetail{ID: couponID, OrderID: orderID, DiscountAmount: 300}, nil
		},
	}

	payload := `{"warehouse_id": "wh-1", "order_subtotal": 3000, "paid_orders_count": 1, "delivered_orders_count": 1, "order_items": []}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/coupons/coupon-1/orders/order-1", strings.NewReader(payload))
	newCouponRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var body orderCouponDetailResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.DiscountAmount != 300 {
		t.Fatalf("expected discount 300, got %d", body.DiscountAmount)
	}
}

func TestDeleteOrderCoupon(t *testing.T) {
	svc := &stubCouponService{
		removeFn: func(_ context.Context, orderID, couponID string) (services.OrderCouponDetail, error) {
			if orderID != "order-1" || couponID != "coupon-1" {
				t.Fatalf("unexpected ids order=%q coupon=%q", orderID, couponID)
			}
			return services.OrderCouponDetail{ID: couponID, OrderID: orderID, Items: []domain.DistributedDiscountItem{}}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/internal/coupons/coupon-1/orders/order-1", nil)
	newCouponRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var body orderCouponDetailResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.DiscountAmount != 0 || len(body.DistributedDiscountItems) != 0 {
		t.Fatalf("expected cleared discount, got %+v", body)
	}
}

func TestCreateReferralCoupon(t *testing.T) {
	svc := &stubCouponService{
		referralFn: func(_ context.Context, userID string) (string, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return "AB12CD", nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/coupons/referral", strings.NewReader(`{"user_id": "user-1"}`))
	newCouponRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var body referralCouponResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Name != "AB12CD" {
		t.Fatalf("expected referral name AB12CD, got %q", body.Name)
	}
}
