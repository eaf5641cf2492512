package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/reconcile"
	"github.com/vladislavdragonenkov/catalog-oms/internal/storage/memory"
)

type fixture struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	ledger   domain.LedgerRepository
	checker  *reconcile.Checker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := memory.NewProductRepository()
	orders := memory.NewOrderRepository()
	ledger := memory.NewLedgerRepository()

	return &fixture{
		products: products,
		orders:   orders,
		ledger:   ledger,
		checker:  reconcile.NewChecker(products, orders, ledger, reconcile.WithInterval(time.Hour)),
	}
}

func (f *fixture) seedProduct(t *testing.T, id string, quantity int32) {
	t.Helper()
	if err := f.products.Create(domain.Product{ID: id, SKU: "sku-" + id, Name: id, PriceMinor: 1000, Quantity: quantity}); err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func TestCheckOnceCleanState(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 10)
	f.seedProduct(t, "p2", 0)

	report, err := f.checker.CheckOnce(context.Background())
	if err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if report.ProductsChecked != 2 {
		t.Fatalf("products checked = %d, want 2", report.ProductsChecked)
	}
	if len(report.Violations) != 0 {
		t.Fatalf("unexpected violations: %+v", report.Violations)
	}
}

func TestCheckOnceConsistentReservation(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 7)

	order := domain.Order{
		ID:         "o1",
		CustomerID: "c1",
		Lines:      []domain.OrderLine{{ProductID: "p1", Qty: 3, PriceMinor: 1000, TotalMinor: 3000}},
	}
	if err := f.orders.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := f.ledger.Append(domain.StockMovement{OrderID: "o1", ProductID: "p1", Qty: 3, Kind: domain.MovementReserve, Occurred: time.Now()}); err != nil {
		t.Fatalf("append movement: %v", err)
	}

	report, err := f.checker.CheckOnce(context.Background())
	if err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if len(report.Violations) != 0 {
		t.Fatalf("unexpected violations: %+v", report.Violations)
	}
}

func TestCheckOnceDetectsLedgerDrift(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 5)

	// Резерв в журнале без соответствующего заказа.
	if err := f.ledger.Append(domain.StockMovement{OrderID: "ghost", ProductID: "p1", Qty: 2, Kind: domain.MovementReserve, Occurred: time.Now()}); err != nil {
		t.Fatalf("append movement: %v", err)
	}

	report, err := f.checker.CheckOnce(context.Background())
	if err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if len(report.Violations) != 1 {
		t.Fatalf("violations = %+v, want exactly one", report.Violations)
	}
	if report.Violations[0].Kind != "ledger_drift" {
		t.Fatalf("violation kind = %q, want ledger_drift", report.Violations[0].Kind)
	}
	if report.Violations[0].ProductID != "p1" {
		t.Fatalf("violation product = %q, want p1", report.Violations[0].ProductID)
	}
}

func TestCheckOnceDetectsNegativeStock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 4)

	product, err := f.products.Get("p1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	product.Quantity = -1
	if err := f.products.Save(product); err != nil {
		t.Fatalf("save product: %v", err)
	}

	report, err := f.checker.CheckOnce(context.Background())
	if err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}

	found := false
	for _, v := range report.Violations {
		if v.Kind == "negative_stock" && v.ProductID == "p1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("negative_stock violation not reported: %+v", report.Violations)
	}
}

func TestCheckOnceCancelledContext(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.checker.CheckOnce(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.checker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
