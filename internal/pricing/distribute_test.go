package pricing

import (
	"testing"

	"go.uber.org/zap"

	domain "github.com/dashmart/promotions/internal/domain"
)

func regularItem(id string, price, qty int64) domain.OrderLineItem {
	return domain.OrderLineItem{ID: id, ProductID: "p-" + id, Type: domain.ProductTypeRegular, UnitPrice: price, Quantity: qty}
}

func alcoholItem(id string, price, qty int64) domain.OrderLineItem {
	return domain.OrderLineItem{ID: id, ProductID: "p-" + id, Type: domain.ProductTypeAlcohol, UnitPrice: price, Quantity: qty}
}

func itemDiscount(t *testing.T, dist domain.DistributedDiscount, itemID string) int64 {
	t.Helper()
	for _, item := range dist.Items {
		if item.OrderItemID == itemID {
			return item.Discount
		}
	}
	t.Fatalf("no allocation for item %s in %#v", itemID, dist.Items)
	return 0
}

func TestDistributeDiscountCapsAlcoholByPurchasePrice(t *testing.T) {
	items := []domain.OrderLineItem{
		regularItem("reg", 100, 4),
		alcoholItem("alc", 100, 4),
	}
	prices := map[string]int64{"p-alc": 90}

	dist := DistributeDiscount(zap.NewNop(), 400, items, prices)

	if dist.Value != 240 {
		t.Fatalf("expected effective total 240, got %d", dist.Value)
	}
	if got := itemDiscount(t, dist, "reg"); got != 200 {
		t.Fatalf("expected regular allocation 200, got %d", got)
	}
	if got := itemDiscount(t, dist, "alc"); got != 40 {
		t.Fatalf("expected alcohol allocation capped at 40, got %d", got)
	}
}

func TestDistributeDiscountDefaultsAlcoholCapWithoutPurchasePrice(t *testing.T) {
	items := []domain.OrderLineItem{
		regularItem("reg", 100, 4),
		alcoholItem("alc", 100, 4),
	}

	dist := DistributeDiscount(zap.NewNop(), 400, items, nil)

	if dist.Value != 340 {
		t.Fatalf("expected effective total 340, got %d", dist.Value)
	}
	if got := itemDiscount(t, dist, "alc"); got != 140 {
		t.Fatalf("expected alcohol allocation capped at 35%% = 140, got %d", got)
	}
}

func TestDistributeDiscountWideMarginUsesPercentCap(t *testing.T) {
	items := []domain.OrderLineItem{
		regularItem("reg", 100, 4),
		alcoholItem("alc", 100, 4),
	}
	prices := map[string]int64{"p-alc": 50}

	dist := DistributeDiscount(zap.NewNop(), 400, items, prices)

	if dist.Value != 340 {
		t.Fatalf("expected effective total 340, got %d", dist.Value)
	}
	if got := itemDiscount(t, dist, "alc"); got != 140 {
		t.Fatalf("expected alcohol allocation 140, got %d", got)
	}
}

func TestDistributeDiscountAllAlcohol(t *testing.T) {
	items := []domain.OrderLineItem{
		alcoholItem("a1", 100, 4),
		alcoholItem("a2", 100, 4),
	}
	prices := map[string]int64{"p-a1": 90, "p-a2": 80}

	dist := DistributeDiscount(zap.NewNop(), 400, items, prices)

	if dist.Value != 120 {
		t.Fatalf("expected effective total 120, got %d", dist.Value)
	}
	if got := itemDiscount(t, dist, "a1"); got != 40 {
		t.Fatalf("expected allocation 40, got %d", got)
	}
	if got := itemDiscount(t, dist, "a2"); got != 80 {
		t.Fatalf("expected allocation 80, got %d", got)
	}
}

func TestDistributeDiscountConservesTotalWithoutCaps(t *testing.T) {
	items := []domain.OrderLineItem{
		regularItem("a", 333, 1),
		regularItem("b", 333, 1),
		regularItem("c", 334, 1),
	}

	dist := DistributeDiscount(zap.NewNop(), 100, items, nil)

	if dist.Value != 100 {
		t.Fatalf("expected exact conservation of 100, got %d", dist.Value)
	}
	var sum int64
	for _, item := range dist.Items {
		if item.Discount > 334 {
			t.Fatalf("item %s over-allocated: %d", item.OrderItemID, item.Discount)
		}
		sum += item.Discount
	}
	if sum != dist.Value {
		t.Fatalf("item sum %d does not match reported value %d", sum, dist.Value)
	}
}

func TestDistributeDiscountLeftoverGoesToLargestRemainder(t *testing.T) {
	// Shares: 100*1/3 -> 33 rem 1/3, 100*2/3 -> 66 rem 2/3; the leftover cent
	// belongs to the larger remainder.
	items := []domain.OrderLineItem{
		regularItem("small", 100, 1),
		regularItem("large", 200, 1),
	}

	dist := DistributeDiscount(zap.NewNop(), 100, items, nil)

	if got := itemDiscount(t, dist, "small"); got != 33 {
		t.Fatalf("expected 33 for the smaller item, got %d", got)
	}
	if got := itemDiscount(t, dist, "large"); got != 67 {
		t.Fatalf("expected 67 for the larger item, got %d", got)
	}
}

func TestDistributeDiscountSingleItem(t *testing.T) {
	items := []domain.OrderLineItem{regularItem("only", 250, 2)}

	dist := DistributeDiscount(zap.NewNop(), 120, items, nil)

	if dist.Value != 120 {
		t.Fatalf("expected the single item to absorb 120, got %d", dist.Value)
	}
}

func TestDistributeDiscountEmptySubtotal(t *testing.T) {
	dist := DistributeDiscount(zap.NewNop(), 100, nil, nil)
	if dist.Value != 0 || len(dist.Items) != 0 {
		t.Fatalf("expected empty distribution, got %#v", dist)
	}
}

func TestDistributeDiscountNegativeMarginKeepsUncappedShare(t *testing.T) {
	items := []domain.OrderLineItem{
		regularItem("reg", 100, 1),
		alcoholItem("alc", 100, 1),
	}
	// Purchase price above selling price: anomaly, the cap is skipped entirely
	// and the percentage cap does not bind either.
	prices := map[string]int64{"p-alc": 150}

	dist := DistributeDiscount(zap.NewNop(), 100, items, prices)

	if got := itemDiscount(t, dist, "alc"); got != 50 {
		t.Fatalf("expected uncapped share 50, got %d", got)
	}
	if dist.Value != 100 {
		t.Fatalf("expected total 100, got %d", dist.Value)
	}
}

func TestDistributeDiscountNegativeTotalPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for negative discount")
		}
	}()
	DistributeDiscount(zap.NewNop(), -1, []domain.OrderLineItem{regularItem("x", 100, 1)}, nil)
}
