package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dashmart/promotions/internal/platform/httpx"
	"github.com/dashmart/promotions/internal/services"
)

type giftLookupRequest struct {
	WarehouseID   string `json:"warehouse_id"`
	OrderSubtotal int64  `json:"order_subtotal"`
}

type giftItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type giftDetailsResponse struct {
	GiftsChain     []giftItemPayload `json:"gifts_chain"`
	GiftSettingsID string            `json:"gift_settings_id,omitempty"`
}

type bannerInfoPayload struct {
	ID          string `json:"id"`
	ImgURL      string `json:"img_url"`
	Style       string `json:"style"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	BtnText     string `json:"btn_text,omitempty"`
}

type bannerDetailsResponse struct {
	Banner *bannerInfoPayload `json:"banner"`
}

// GiftHandlers exposes the gift chain and cart banner endpoints.
type GiftHandlers struct {
	gifts services.GiftService
}

// NewGiftHandlers constructs a new GiftHandlers instance.
func NewGiftHandlers(gifts services.GiftService) *GiftHandlers {
	return &GiftHandlers{gifts: gifts}
}

// Routes registers the gift endpoints.
func (h *GiftHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/gifts", h.getGiftChoices)
	r.Post("/banner", h.getBanner)
}

func (h *GiftHandlers) getGiftChoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.gifts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("gift_service_unavailable", "gift service unavailable", http.StatusServiceUnavailable))
		return
	}

	req, ok := decodeGiftLookup(w, r)
	if !ok {
		return
	}

	details, err := h.gifts.CurrentGift(ctx, req.WarehouseID, req.OrderSubtotal)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}

	chain := make([]giftItemPayload, 0, len(details.Chain))
	for _, choice := range details.Chain {
		chain = append(chain, giftItemPayload{
			ProductID: choice.ProductID,
			Quantity:  choice.Quantity,
		})
	}
	writeJSONResponse(w, http.StatusOK, giftDetailsResponse{
		GiftsChain:     chain,
		GiftSettingsID: details.SettingsID,
	})
}

func (h *GiftHandlers) getBanner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.gifts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("gift_service_unavailable", "gift service unavailable", http.StatusServiceUnavailable))
		return
	}

	req, ok := decodeGiftLookup(w, r)
	if !ok {
		return
	}

	details, err := h.gifts.Banner(ctx, req.WarehouseID, req.OrderSubtotal)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}

	response := bannerDetailsResponse{}
	if details.Banner != nil {
		response.Banner = &bannerInfoPayload{
			ID:          details.Banner.ID,
			ImgURL:      details.Banner.ImageURL,
			Style:       string(details.Banner.Style),
			Title:       details.Banner.Title,
			Description: details.Banner.Description,
			BtnText:     details.Banner.ButtonText,
		}
	}
	writeJSONResponse(w, http.StatusOK, response)
}

func decodeGiftLookup(w http.ResponseWriter, r *http.Request) (giftLookupRequest, bool) {
	ctx := r.Context()
	var req giftLookupRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return req, false
	}
	req.WarehouseID = strings.TrimSpace(req.WarehouseID)
	if req.WarehouseID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "warehouse_id is required", http.StatusBadRequest))
		return req, false
	}
	if req.OrderSubtotal < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_subtotal must be non-negative", http.StatusBadRequest))
		return req, false
	}
	return req, true
}
