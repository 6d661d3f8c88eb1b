package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/httpx"
	"github.com/dashmart/promotions/internal/services"
)

type orderConditionsRequest struct {
	UserID         string             `json:"user_id"`
	WarehouseID    string             `json:"warehouse_id"`
	UserOrderCount int64              `json:"user_order_count"`
	CouponApplied  bool               `json:"coupon_applied"`
	DeliveryMode   string             `json:"delivery_mode"`
	OrderItems     []orderItemPayload `json:"order_items"`
	LegacyMode     *bool              `json:"legacy_mode"`
}

type feePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       int64  `json:"value"`
	FeeType     string `json:"fee_type"`
	Image       string `json:"image,omitempty"`
}

type bonusPayload struct {
	Value int64 `json:"value"`
}

type deliveryPromisePayload struct {
	DeliveryMode string `json:"delivery_mode"`
	Text         string `json:"text,omitempty"`
}

type progressBarItemPayload struct {
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle,omitempty"`
	TotalValue int64  `json:"total_value"`
	Type       string `json:"type"`
}

type placeholderItemPayload struct {
	Title string `json:"title"`
}

type progressBarPayload struct {
	CurrentValue int64                    `json:"current_value"`
	Image        string                   `json:"image,omitempty"`
	Placeholders []placeholderItemPayload `json:"placeholders,omitempty"`
	Items        []progressBarItemPayload `json:"items"`
}

type conditionsItemPayload struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Image    string `json:"image,omitempty"`
	Color    string `json:"color,omitempty"`
}

type orderConditionsPayload struct {
	Image string                  `json:"image,omitempty"`
	Items []conditionsItemPayload `json:"items"`
}

type orderConditionsResponse struct {
	Fees                     []feePayload                     `json:"fees"`
	Bonus                    bonusPayload                     `json:"bonus"`
	DeliveryPromise          deliveryPromisePayload           `json:"delivery_promise"`
	CatalogProgressBar       *progressBarPayload              `json:"catalog_progress_bar"`
	CartProgressBar          *progressBarPayload              `json:"cart_progress_bar"`
	OrderConditions          *orderConditionsPayload          `json:"order_conditions"`
	DistributedDiscountItems []distributedDiscountItemPayload `json:"distributed_discount_items"`
}

// ConditionsHandlers exposes the order conditions calculation endpoint.
type ConditionsHandlers struct {
	conditions services.ConditionsService
}

// NewConditionsHandlers constructs a new ConditionsHandlers instance.
func NewConditionsHandlers(conditions services.ConditionsService) *ConditionsHandlers {
	return &ConditionsHandlers{conditions: conditions}
}

// Routes registers the conditions endpoints.
func (h *ConditionsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders/conditions/calculate", h.calculateOrderConditions)
}

func (h *ConditionsHandlers) calculateOrderConditions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.conditions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("conditions_service_unavailable", "conditions service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req orderConditionsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.WarehouseID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id and warehouse_id are required", http.StatusBadRequest))
		return
	}

	mode := domain.DeliveryModeNormal
	if trimmed := strings.TrimSpace(req.DeliveryMode); trimmed != "" {
		mode = domain.DeliveryMode(trimmed)
	}
	legacy := true
	if req.LegacyMode != nil {
		legacy = *req.LegacyMode
	}

	result, err := h.conditions.OrderConditions(ctx, services.ConditionsRequest{
		UserID:          strings.TrimSpace(req.UserID),
		WarehouseID:     strings.TrimSpace(req.WarehouseID),
		UserOrdersCount: req.UserOrderCount,
		CouponApplied:   req.CouponApplied,
		DeliveryMode:    mode,
		Items:           buildOrderLineItems(req.OrderItems),
		LegacyMode:      legacy,
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderConditionsResponse(result))
}

func buildOrderConditionsResponse(result services.ConditionsResult) orderConditionsResponse {
	fees := make([]feePayload, 0, len(result.Fees))
	for _, fee := range result.Fees {
		fees = append(fees, feePayload{
			ID:          fee.ID,
			Name:        fee.Name,
			Description: fee.Description,
			Value:       fee.Value,
			FeeType:     string(fee.Type),
			Image:       fee.ImageURL,
		})
	}

	discounts := make([]distributedDiscountItemPayload, 0, len(result.DiscountedItems))
	for _, item := range result.DiscountedItems {
		discounts = append(discounts, distributedDiscountItemPayload{
			OrderItemID:         item.OrderItemID,
			DistributedDiscount: item.Discount,
		})
	}

	return orderConditionsResponse{
		Fees:                     fees,
		Bonus:                    bonusPayload{Value: result.BonusValue},
		DeliveryPromise:          deliveryPromisePayload{DeliveryMode: string(result.DeliveryMode)},
		CatalogProgressBar:       buildProgressBar(result.CatalogProgressBar),
		CartProgressBar:          buildProgressBar(result.CartProgressBar),
		OrderConditions:          buildOrderConditions(result.OrderConditions),
		DistributedDiscountItems: discounts,
	}
}

func buildProgressBar(bar *domain.ProgressBar) *progressBarPayload {
	if bar == nil {
		return nil
	}
	items := make([]progressBarItemPayload, 0, len(bar.Items))
	for _, item := range bar.Items {
		items = append(items, progressBarItemPayload{
			Title:      item.Title,
			Subtitle:   item.Subtitle,
			TotalValue: item.TotalValue,
			Type:       string(item.Type),
		})
	}
	var placeholders []placeholderItemPayload
	for _, placeholder := range bar.Placeholders {
		placeholders = append(placeholders, placeholderItemPayload{Title: placeholder.Title})
	}
	return &progressBarPayload{
		CurrentValue: bar.CurrentValue,
		Image:        bar.ImageURL,
		Placeholders: placeholders,
		Items:        items,
	}
}

func buildOrderConditions(conditions *domain.OrderConditions) *orderConditionsPayload {
	if conditions == nil {
		return nil
	}
	items := make([]conditionsItemPayload, 0, len(conditions.Items))
	for _, item := range conditions.Items {
		items = append(items, conditionsItemPayload{
			Title:    item.Title,
			Subtitle: item.Subtitle,
			Image:    item.ImageURL,
			Color:    item.Color,
		})
	}
	return &orderConditionsPayload{
		Image: conditions.ImageURL,
		Items: items,
	}
}
