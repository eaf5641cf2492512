package domain

import (
	"errors"
	"testing"
)

func TestProductValidateInvariants_OK(t *testing.T) {
	product := Product{ID: "product-1", SKU: "sku-1", Name: "Funko Batman", PriceMinor: 1999, Quantity: 10}
	if errs := product.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestProductValidateInvariants_Violations(t *testing.T) {
	product := Product{ID: "product-1", PriceMinor: -1, Quantity: -5}
	errs := product.ValidateInvariants()
	if len(errs) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(errs), errs)
	}

	found := map[error]bool{}
	for _, err := range errs {
		for _, kind := range []error{ErrProductNameRequired, ErrPriceNegative, ErrQuantityNegative} {
			if errors.Is(err, kind) {
				found[kind] = true
			}
		}
	}
	if len(found) != 3 {
		t.Fatalf("expected all three kinds, got %v", errs)
	}
}
