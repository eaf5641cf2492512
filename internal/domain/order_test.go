package domain

import (
	"errors"
	"testing"
)

func validOrder() Order {
	return Order{
		ID:         "order-1",
		CustomerID: "customer-1",
		Lines: []OrderLine{
			{ProductID: "product-1", Qty: 3, PriceMinor: 500},
			{ProductID: "product-2", Qty: 1, PriceMinor: 1200},
		},
	}
}

func TestOrderValidateInput_OK(t *testing.T) {
	order := validOrder()
	if err := order.ValidateInput(); err != nil {
		t.Fatalf("expected valid order, got %v", err)
	}
}

func TestOrderValidateInput_CustomerRequired(t *testing.T) {
	order := validOrder()
	order.CustomerID = ""
	if err := order.ValidateInput(); !errors.Is(err, ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}
}

func TestOrderValidateInput_NoLines(t *testing.T) {
	order := validOrder()
	order.Lines = nil
	if err := order.ValidateInput(); !errors.Is(err, ErrNoLineItems) {
		t.Fatalf("expected ErrNoLineItems, got %v", err)
	}
}

func TestOrderValidateInput_ProductIDRequired(t *testing.T) {
	order := validOrder()
	order.Lines[1].ProductID = ""
	if err := order.ValidateInput(); !errors.Is(err, ErrProductIDRequired) {
		t.Fatalf("expected ErrProductIDRequired, got %v", err)
	}
}

func TestOrderValidateInput_ZeroQty(t *testing.T) {
	order := validOrder()
	order.Lines[0].Qty = 0
	err := order.ValidateInput()
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	// Нулевое количество — ошибка входных данных, а не нехватка остатка.
	if errors.Is(err, ErrInsufficientStock) {
		t.Fatal("zero qty must not be reported as insufficient stock")
	}
}

func TestRecomputeTotals(t *testing.T) {
	order := validOrder()
	RecomputeTotals(&order)

	if order.TotalQty != 4 {
		t.Fatalf("expected total qty 4, got %d", order.TotalQty)
	}
	if order.AmountMinor != 3*500+1200 {
		t.Fatalf("expected amount 2700, got %d", order.AmountMinor)
	}
	if order.Lines[0].TotalMinor != 1500 {
		t.Fatalf("expected line total 1500, got %d", order.Lines[0].TotalMinor)
	}
}

func TestRecomputeTotals_Idempotent(t *testing.T) {
	order := validOrder()
	RecomputeTotals(&order)
	qty, amount := order.TotalQty, order.AmountMinor

	RecomputeTotals(&order)
	if order.TotalQty != qty || order.AmountMinor != amount {
		t.Fatalf("recompute drifted: qty %d -> %d, amount %d -> %d", qty, order.TotalQty, amount, order.AmountMinor)
	}
}

func TestRecomputeTotals_OverwritesStaleTotals(t *testing.T) {
	order := validOrder()
	order.Lines[0].TotalMinor = 999999
	order.AmountMinor = -1
	order.TotalQty = 42

	RecomputeTotals(&order)
	if order.Lines[0].TotalMinor != 1500 || order.AmountMinor != 2700 || order.TotalQty != 4 {
		t.Fatalf("stale derived fields survived recompute: %+v", order)
	}
}
