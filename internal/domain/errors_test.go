package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestProductError_WrapsKind(t *testing.T) {
	err := ProductError(ErrInsufficientStock, "product-7")

	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected errors.Is match for kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "product-7") {
		t.Fatalf("expected product id in message, got %q", err.Error())
	}
}

func TestIsVersionConflict(t *testing.T) {
	if !IsVersionConflict(ErrProductVersionConflict) {
		t.Fatal("product version conflict not detected")
	}
	if !IsVersionConflict(ErrOrderVersionConflict) {
		t.Fatal("order version conflict not detected")
	}
	if IsVersionConflict(ErrOrderNotFound) {
		t.Fatal("unrelated error reported as version conflict")
	}
}

func TestIsClientError(t *testing.T) {
	clientKinds := []error{
		ErrNoLineItems,
		ErrInvalidQuantity,
		ErrProductNotFound,
		ErrPriceMismatch,
		ErrInsufficientStock,
		ErrOrderNotFound,
		ErrProductAlreadyExists,
		ErrOrderAlreadyExists,
		ProductError(ErrPriceMismatch, "product-1"),
	}
	for _, err := range clientKinds {
		if !IsClientError(err) {
			t.Fatalf("expected client error for %v", err)
		}
	}

	serverKinds := []error{
		ErrConsistency,
		ErrOutboxPublish,
		ErrProductVersionConflict,
		errors.New("unexpected"),
	}
	for _, err := range serverKinds {
		if IsClientError(err) {
			t.Fatalf("expected server error for %v", err)
		}
	}
}
