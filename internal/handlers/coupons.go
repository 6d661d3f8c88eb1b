package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/httpx"
	"github.com/dashmart/promotions/internal/services"
)

type orderItemPayload struct {
	ID          string   `json:"id"`
	ProductID   string   `json:"product_id"`
	ProductType string   `json:"product_type"`
	ActualPrice int64    `json:"actual_price"`
	Quantity    int64    `json:"quantity"`
	CategoryIDs []string `json:"categories_ids"`
}

type addOrderCouponRequest struct {
	UserID               string             `json:"user_id"`
	WarehouseID          string             `json:"warehouse_id"`
	Name                 string             `json:"name"`
	OrderSubtotal        int64              `json:"order_subtotal"`
	PaidOrdersCount      int64              `json:"paid_orders_count"`
	DeliveredOrdersCount int64              `json:"delivered_orders_count"`
	OrderItems           []orderItemPayload `json:"order_items"`
	UniqueIdentifier     string             `json:"unique_identifier"`
}

type recalculateOrderCouponRequest struct {
	WarehouseID          string             `json:"warehouse_id"`
	OrderSubtotal        int64              `json:"order_subtotal"`
	PaidOrdersCount      int64              `json:"paid_orders_count"`
	DeliveredOrdersCount int64              `json:"delivered_orders_count"`
	OrderItems           []orderItemPayload `json:"order_items"`
}

type createReferralCouponRequest struct {
	UserID string `json:"user_id"`
}

type couponDetailResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Value          int64  `json:"value"`
	MinOrderAmount *int64 `json:"min_order_amount"`
}

type distributedDiscountItemPayload struct {
	OrderItemID         string `json:"order_item_id"`
	DistributedDiscount int64  `json:"distributed_discount"`
}

type orderCouponDetailResponse struct {
	couponDetailResponse
	OrderID                  string                           `json:"order_id,omitempty"`
	DiscountAmount           int64                            `json:"discount_amount"`
	CartMessageArgs          map[string]any                   `json:"cart_message_args,omitempty"`
	DistributedDiscountItems []distributedDiscountItemPayload `json:"distributed_discount_items"`
}

type referralCouponResponse struct {
	Name string `json:"name"`
}

// CouponHandlers exposes the coupon lifecycle endpoints used by the order service.
type CouponHandlers struct {
	coupons services.CouponService
}

// NewCouponHandlers constructs a new CouponHandlers instance.
func NewCouponHandlers(coupons services.CouponService) *CouponHandlers {
	return &CouponHandlers{coupons: coupons}
}

// Routes registers the /coupons endpoints.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/coupons/{couponID}", h.getCoupon)
	r.Post("/coupons/orders/{orderID}", h.addOrderCoupon)
	r.Post("/coupons/{couponID}/orders/{orderID}", h.recalculateOrderCoupon)
	r.Delete("/coupons/{couponID}/orders/{orderID}", h.deleteOrderCoupon)
	r.Post("/coupons/referral", h.createReferralCoupon)
}

func (h *CouponHandlers) getCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	couponID := strings.TrimSpace(chi.URLParam(r, "couponID"))
	if couponID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon id is required", http.StatusBadRequest))
		return
	}

	detail, err := h.coupons.GetCoupon(ctx, couponID)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCouponDetail(detail))
}

func (h *CouponHandlers) addOrderCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req addOrderCouponRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.WarehouseID) == "" || strings.TrimSpace(req.Name) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id, warehouse_id and name are required", http.StatusBadRequest))
		return
	}

	detail, err := h.coupons.Apply(ctx, orderID, services.ApplyCouponRequest{
		UserID:               strings.TrimSpace(req.UserID),
		WarehouseID:          strings.TrimSpace(req.WarehouseID),
		CouponName:           strings.TrimSpace(req.Name),
		OrderSubtotal:        req.OrderSubtotal,
		PaidOrdersCount:      req.PaidOrdersCount,
		DeliveredOrdersCount: req.DeliveredOrdersCount,
		Items:                buildOrderLineItems(req.OrderItems),
		DeviceFingerprint:    strings.TrimSpace(req.UniqueIdentifier),
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderCouponDetail(detail))
}

func (h *CouponHandlers) recalculateOrderCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	couponID := strings.TrimSpace(chi.URLParam(r, "couponID"))
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if couponID == "" || orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon id and order id are required", http.StatusBadRequest))
		return
	}

	var req recalculateOrderCouponRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.WarehouseID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "warehouse_id is required", http.StatusBadRequest))
		return
	}

	detail, err := h.coupons.Recalculate(ctx, orderID, couponID, services.RecalculateCouponRequest{
		WarehouseID:          strings.TrimSpace(req.WarehouseID),
		OrderSubtotal:        req.OrderSubtotal,
		PaidOrdersCount:      req.PaidOrdersCount,
		DeliveredOrdersCount: req.DeliveredOrdersCount,
		Items:                buildOrderLineItems(req.OrderItems),
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderCouponDetail(detail))
}

func (h *CouponHandlers) deleteOrderCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	couponID := strings.TrimSpace(chi.URLParam(r, "couponID"))
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if couponID == "" || orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon id and order id are required", http.StatusBadRequest))
		return
	}

	detail, err := h.coupons.Remove(ctx, orderID, couponID)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderCouponDetail(detail))
}

func (h *CouponHandlers) createReferralCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createReferralCouponRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id is required", http.StatusBadRequest))
		return
	}

	name, err := h.coupons.IssueReferralCoupon(ctx, strings.TrimSpace(req.UserID))
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, referralCouponResponse{Name: name})
}

func buildOrderLineItems(items []orderItemPayload) []domain.OrderLineItem {
	result := make([]domain.OrderLineItem, 0, len(items))
	for _, item := range items {
		result = append(result, domain.OrderLineItem{
			ID:          strings.TrimSpace(item.ID),
			ProductID:   strings.TrimSpace(item.ProductID),
			Type:        domain.ProductType(strings.TrimSpace(item.ProductType)),
			UnitPrice:   item.ActualPrice,
			Quantity:    item.Quantity,
			CategoryIDs: item.CategoryIDs,
		})
	}
	return result
}

func buildCouponDetail(detail services.CouponDetail) couponDetailResponse {
	return couponDetailResponse{
		ID:             detail.ID,
		Name:           detail.Name,
		Kind:           string(detail.Kind),
		Value:          detail.Value,
		MinOrderAmount: detail.MinOrderAmount,
	}
}

func buildOrderCouponDetail(detail services.OrderCouponDetail) orderCouponDetailResponse {
	items := make([]distributedDiscountItemPayload, 0, len(detail.Items))
	for _, item := range detail.Items {
		items = append(items, distributedDiscountItemPayload{
			OrderItemID:         item.OrderItemID,
			DistributedDiscount: item.Discount,
		})
	}
	return orderCouponDetailResponse{
		couponDetailResponse: couponDetailResponse{
			ID:             detail.ID,
			Name:           detail.Name,
			Kind:           string(detail.Kind),
			Value:          detail.Value,
			MinOrderAmount: detail.MinOrderAmount,
		},
		OrderID:                  detail.OrderID,
		DiscountAmount:           detail.DiscountAmount,
		CartMessageArgs:          detail.CartMessageArgs,
		DistributedDiscountItems: items,
	}
}
