package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dashmart/promotions/internal/platform/cache"
	"github.com/dashmart/promotions/internal/services"
)

// PricingClientDeps bundles collaborators for the pricing client.
type PricingClientDeps struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
	CacheTTL   time.Duration
	Logger     *zap.Logger
	Clock      func() time.Time
}

// PricingClient resolves per-unit purchase prices from the pricing service.
// Prices are cached per warehouse and product; only cache misses hit the wire.
type PricingClient struct {
	baseURL string
	token   string
	client  *http.Client
	cache   *cache.TTL[int64]
	logger  *zap.Logger
}

var _ services.PurchasePriceSource = (*PricingClient)(nil)

// NewPricingClient constructs a pricing client for the configured base URL.
func NewPricingClient(deps PricingClientDeps) (*PricingClient, error) {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil, errors.New("pricing client: base url is required")
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
		ttl = 10 * time.Minute
	}
	var opts []cache.Option[int64]
	if deps.Clock != nil {
		opts = append(opts, cache.WithClock[int64](deps.Clock))
	}

	return &PricingClient{
		baseURL: base,
		token:   deps.AuthToken,
		client:  httpClient,
		cache:   cache.NewTTL(ttl, opts...),
		logger:  logger,
	}, nil
}

type purchasePricesRequest struct {
	WarehouseID string   `json:"warehouse_id"`
	ProductIDs  []string `json:"product_ids"`
}

type purchasePricesPayload struct {
	Items []struct {
		ProductID     string `json:"product_id"`
		PurchasePrice int64  `json:"purchase_price"`
	} `json:"items"`
}

// PurchasePrices returns a product id to purchase price map. Products the
// pricing service does not know stay absent from the result.
func (c *PricingClient) PurchasePrices(ctx context.Context, warehouseID string, productIDs []string) (map[string]int64, error) {
	prices := make(map[string]int64, len(productIDs))
	if len(productIDs) == 0 {
		return prices, nil
	}

	misses := make([]string, 0, len(productIDs))
	for _, productID := range productIDs {
		if price, ok := c.cache.Get(priceCacheKey(warehouseID, productID)); ok {
			prices[productID] = price
			continue
		}
		misses = append(misses, productID)
	}
	if len(misses) == 0 {
		return prices, nil
	}

	endpoint := c.baseURL + "/api/v2/internal/prices/purchase"
	result, err := doJSON(ctx, c.client, "pricing", http.MethodPost, endpoint, c.token, purchasePricesRequest{
		WarehouseID: warehouseID,
		ProductIDs:  misses,
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return prices, nil
	}

	var payload purchasePricesPayload
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("pricing client: decode prices: %w", err)
	}

	for _, item := range payload.Items {
		prices[item.ProductID] = item.PurchasePrice
		c.cache.Set(priceCacheKey(warehouseID, item.ProductID), item.PurchasePrice)
	}
	return prices, nil
}

func priceCacheKey(warehouseID, productID string) string {
	return warehouseID + "/" + productID
}
