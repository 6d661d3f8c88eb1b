package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPricingClientPurchasePrices(t *testing.T) {
	var requested [][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v2/internal/prices/purchase" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req purchasePricesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.WarehouseID != "wh-1" {
			t.Fatalf("unexpected warehouse %q", req.WarehouseID)
		}
		requested = append(requested, req.ProductIDs)

		items := make([]map[string]any, 0, len(req.ProductIDs))
		for _, productID := range req.ProductIDs {
			if productID == "prod-unknown" {
				continue
			}
			items = append(items, map[string]any{"product_id": productID, "purchase_price": 750})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"items": items}})
	}))
	defer server.Close()

	client, err := NewPricingClient(PricingClientDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	prices, err := client.PurchasePrices(context.Background(), "wh-1", []string{"prod-1", "prod-2", "prod-unknown"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 2 || prices["prod-1"] != 750 || prices["prod-2"] != 750 {
		t.Fatalf("unexpected prices: %v", prices)
	}
	if _, ok := prices["prod-unknown"]; ok {
		t.Fatal("unknown product must be absent from the result")
	}

	// prod-1 and prod-2 are cached now; only the unknown product goes back out.
	prices, err = client.PurchasePrices(context.Background(), "wh-1", []string{"prod-1", "prod-2", "prod-unknown"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("unexpected prices on second call: %v", prices)
	}
	if len(requested) != 2 {
		t.Fatalf("expected 2 upstream requests, got %d", len(requested))
	}
	if len(requested[1]) != 1 || requested[1][0] != "prod-unknown" {
		t.Fatalf("expected only the cache miss on the wire, got %v", requested[1])
	}
}

func TestPricingClientEmptyInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	}))
	defer server.Close()

	client, err := NewPricingClient(PricingClientDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	prices, err := client.PurchasePrices(context.Background(), "wh-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 0 {
		t.Fatalf("expected empty map, got %v", prices)
	}
}

func TestPricingClientUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": "invalid_request"}}`))
	}))
	defer server.Close()

	client, err := NewPricingClient(PricingClientDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	_, err = client.PurchasePrices(context.Background(), "wh-1", []string{"prod-1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Code != "invalid_request" {
		t.Fatalf("unexpected code %q", apiErr.Code)
	}
}
