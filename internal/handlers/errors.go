package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dashmart/promotions/internal/platform/httpx"
	"github.com/dashmart/promotions/internal/services"
)

// ruleStatuses maps the rule codes that denote missing entities to 404; every
// other rule violation is a client error on the submitted order state.
var ruleStatuses = map[string]int{
	services.CodeCouponNotFound:       http.StatusNotFound,
	services.CodeGiftSettingsNotFound: http.StatusNotFound,
	services.CodeWarehouseNotFound:    http.StatusNotFound,
}

func writePromotionError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var rule *services.RuleError
	if errors.As(err, &rule) {
		status, ok := ruleStatuses[rule.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		apiErr := httpx.NewError(rule.Code, rule.Error(), status)
		if len(rule.Details) > 0 {
			apiErr = apiErr.WithDetails(rule.Details)
		}
		httpx.WriteError(ctx, w, apiErr)
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process promotion request", http.StatusInternalServerError))
}
