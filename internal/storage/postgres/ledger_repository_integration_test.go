package postgres

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

func TestLedgerRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewLedgerRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	movements := []domain.StockMovement{
		{OrderID: "order-1", ProductID: "product-1", Qty: 3, Kind: domain.MovementReserve, Occurred: now.Add(-2 * time.Second)},
		{OrderID: "order-1", ProductID: "product-2", Qty: 1, Kind: domain.MovementReserve, Occurred: now.Add(-time.Second)},
		{OrderID: "order-2", ProductID: "product-1", Qty: 2, Kind: domain.MovementRelease, Occurred: now},
	}
	for _, m := range movements {
		if err := repo.Append(m); err != nil {
			t.Fatalf("append movement: %v", err)
		}
	}

	byProduct, err := repo.ListByProduct("product-1")
	if err != nil {
		t.Fatalf("list by product: %v", err)
	}
	if len(byProduct) != 2 {
		t.Fatalf("expected 2 movements for product-1, got %d", len(byProduct))
	}
	if byProduct[0].Kind != domain.MovementReserve || byProduct[1].Kind != domain.MovementRelease {
		t.Fatalf("unexpected movement order: %+v", byProduct)
	}

	byOrder, err := repo.ListByOrder("order-1")
	if err != nil {
		t.Fatalf("list by order: %v", err)
	}
	if len(byOrder) != 2 {
		t.Fatalf("expected 2 movements for order-1, got %d", len(byOrder))
	}

	empty, err := repo.ListByOrder("missing-order")
	if err != nil {
		t.Fatalf("list missing order: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no movements for missing order, got %d", len(empty))
	}
}

func TestLedgerRepository_PostgresDefaultsOccurred(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewLedgerRepository(store)

	if err := repo.Append(domain.StockMovement{
		OrderID:   "order-3",
		ProductID: "product-3",
		Qty:       1,
		Kind:      domain.MovementReserve,
	}); err != nil {
		t.Fatalf("append movement without timestamp: %v", err)
	}

	listed, err := repo.ListByOrder("order-3")
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(listed))
	}
	if listed[0].Occurred.IsZero() {
		t.Fatal("expected occurred timestamp to be set")
	}
}
