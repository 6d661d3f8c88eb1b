package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dashmart/promotions/internal/services"
)

func TestWarehouseClientGetWarehouse(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/api/v1/internal/warehouses/wh-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": {"id": "wh-1", "name": "Central", "active": true, "tz": "America/New_York"}}`))
	}))
	defer server.Close()

	client, err := NewWarehouseClient(WarehouseClientDeps{
		BaseURL:   server.URL,
		AuthToken: "token-1",
	})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	warehouse, err := client.GetWarehouse(context.Background(), "wh-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warehouse.ID != "wh-1" || warehouse.Name != "Central" || warehouse.Timezone != "America/New_York" {
		t.Fatalf("unexpected warehouse: %+v", warehouse)
	}
	if !warehouse.Active {
		t.Fatal("expected active warehouse")
	}

	// Second lookup must come from the cache.
	if _, err := client.GetWarehouse(context.Background(), "wh-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected 1 upstream request, got %d", requests)
	}
}

func TestWarehouseClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"code": "warehouse_not_found"}}`))
	}))
	defer server.Close()

	client, err := NewWarehouseClient(WarehouseClientDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if _, err := client.GetWarehouse(context.Background(), "wh-404"); !errors.Is(err, services.ErrWarehouseNotFound) {
		t.Fatalf("expected warehouse not found, got %v", err)
	}
}

func TestWarehouseClientInactiveTreatedAsMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": {"id": "wh-2", "active": false, "tz": "UTC"}}`))
	}))
	defer server.Close()

	client, err := NewWarehouseClient(WarehouseClientDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if _, err := client.GetWarehouse(context.Background(), "wh-2"); !errors.Is(err, services.ErrWarehouseNotFound) {
		t.Fatalf("expected warehouse not found, got %v", err)
	}
}

func TestWarehouseClientUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewWarehouseClient(WarehouseClientDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	_, err = client.GetWarehouse(context.Background(), "wh-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", apiErr.Status)
	}
}

func TestNewWarehouseClientRequiresBaseURL(t *testing.T) {
	if _, err := NewWarehouseClient(WarehouseClientDeps{}); err == nil {
		t.Fatal("expected error for missing base url")
	}
}
