package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dashmart/promotions/internal/platform/cache"
	"github.com/dashmart/promotions/internal/services"
)

const warehouseNotFoundCode = "warehouse_not_found"

// WarehouseClientDeps bundles collaborators for the warehouse client.
type WarehouseClientDeps struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
	CacheTTL   time.Duration
	Logger     *zap.Logger
	Clock      func() time.Time
}

// WarehouseClient resolves warehouse facts from the warehouse service with a
// TTL cache in front; warehouse metadata changes rarely.
type WarehouseClient struct {
	baseURL string
	token   string
	client  *http.Client
	cache   *cache.TTL[services.Warehouse]
	logger  *zap.Logger
}

var _ services.WarehouseDirectory = (*WarehouseClient)(nil)

// NewWarehouseClient constructs a warehouse client for the configured base URL.
func NewWarehouseClient(deps WarehouseClientDeps) (*WarehouseClient, error) {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil, errors.New("warehouse client: base url is required")
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	var opts []cache.Option[services.Warehouse]
	if deps.Clock != nil {
		opts = append(opts, cache.WithClock[services.Warehouse](deps.Clock))
	}

	return &WarehouseClient{
		baseURL: base,
		token:   deps.AuthToken,
		client:  httpClient,
		cache:   cache.NewTTL(ttl, opts...),
		logger:  logger,
	}, nil
}

type warehousePayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Timezone string `json:"tz"`
}

// GetWarehouse returns the warehouse facts for the given id. Unknown and
// inactive warehouses both surface as ErrWarehouseNotFound.
func (c *WarehouseClient) GetWarehouse(ctx context.Context, warehouseID string) (services.Warehouse, error) {
	id := strings.TrimSpace(warehouseID)
	if id == "" {
		return services.Warehouse{}, services.ErrWarehouseNotFound
	}

	if warehouse, ok := c.cache.Get(id); ok {
		return warehouse, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/internal/warehouses/%s", c.baseURL, url.PathEscape(id))
	result, err := doJSON(ctx, c.client, "warehouse", http.MethodGet, endpoint, c.token, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == warehouseNotFoundCode || apiErr.Status == http.StatusNotFound) {
			return services.Warehouse{}, services.ErrWarehouseNotFound
		}
		return services.Warehouse{}, err
	}
	if len(result) == 0 {
		return services.Warehouse{}, services.ErrWarehouseNotFound
	}

	var payload warehousePayload
	if err := json.Unmarshal(result, &payload); err != nil {
		return services.Warehouse{}, fmt.Errorf("warehouse client: decode warehouse: %w", err)
	}
	if !payload.Active {
		return services.Warehouse{}, services.ErrWarehouseNotFound
	}

	warehouse := services.Warehouse{
		ID:       payload.ID,
		Name:     payload.Name,
		Active:   payload.Active,
		Timezone: payload.Timezone,
	}
	c.cache.Set(id, warehouse)
	return warehouse, nil
}
