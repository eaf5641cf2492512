package validation_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/validation"
	"github.com/vladislavdragonenkov/catalog-oms/internal/storage/memory"
)

func newCatalog(t *testing.T) domain.ProductRepository {
	t.Helper()
	repo := memory.NewProductRepository()
	if err := repo.Create(domain.Product{ID: "product-1", Name: "Funko Batman", PriceMinor: 500, Quantity: 10}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return repo
}

func TestValidator_OK(t *testing.T) {
	v := validation.NewValidator(newCatalog(t), nil)

	err := v.ValidateLines([]domain.OrderLine{{ProductID: "product-1", Qty: 3}})
	if err != nil {
		t.Fatalf("expected valid lines, got %v", err)
	}
}

func TestValidator_AssertedPriceAccepted(t *testing.T) {
	v := validation.NewValidator(newCatalog(t), nil)

	err := v.ValidateLines([]domain.OrderLine{{ProductID: "product-1", Qty: 3, PriceMinor: 500}})
	if err != nil {
		t.Fatalf("expected matching asserted price to pass, got %v", err)
	}
}

func TestValidator_NoLines(t *testing.T) {
	v := validation.NewValidator(newCatalog(t), nil)

	if err := v.ValidateLines(nil); !errors.Is(err, domain.ErrNoLineItems) {
		t.Fatalf("expected ErrNoLineItems, got %v", err)
	}
}

func TestValidator_ProductNotFound(t *testing.T) {
	v := validation.NewValidator(newCatalog(t), nil)

	err := v.ValidateLines([]domain.OrderLine{{ProductID: "missing", Qty: 1}})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestValidator_PriceMismatch(t *testing.T) {
	v := validation.NewValidator(newCatalog(t), nil)

	err := v.ValidateLines([]domain.OrderLine{{ProductID: "product-1", Qty: 1, PriceMinor: 499}})
	if !errors.Is(err, domain.ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch, got %v", err)
	}
}

func TestValidator_InsufficientStock(t *testing.T) {
	v := validation.NewValidator(newCatalog(t), nil)

	err := v.ValidateLines([]domain.OrderLine{{ProductID: "product-1", Qty: 11}})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestValidator_InvalidQuantityDistinctKind(t *testing.T) {
	v := validation.NewValidator(newCatalog(t), nil)

	err := v.ValidateLines([]domain.OrderLine{{ProductID: "product-1", Qty: 0}})
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatal("zero qty must not map to insufficient stock")
	}
}

func TestValidator_ShortCircuitsOnFirstFailure(t *testing.T) {
	v := validation.NewValidator(newCatalog(t), nil)

	err := v.ValidateLines([]domain.OrderLine{
		{ProductID: "missing", Qty: 1},
		{ProductID: "product-1", Qty: 9999},
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected first failure to win, got %v", err)
	}
}

func TestValidator_DoesNotMutateCatalog(t *testing.T) {
	repo := newCatalog(t)
	v := validation.NewValidator(repo, nil)

	_ = v.ValidateLines([]domain.OrderLine{{ProductID: "product-1", Qty: 3}})

	product, err := repo.Get("product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 10 || product.Version != 0 {
		t.Fatalf("validator mutated catalog: %+v", product)
	}
}

// brokenProductRepository имитирует недоступное хранилище каталога.
type brokenProductRepository struct {
	err error
}

func (r *brokenProductRepository) Create(domain.Product) error         { return r.err }
func (r *brokenProductRepository) Get(string) (domain.Product, error)  { return domain.Product{}, r.err }
func (r *brokenProductRepository) List(int) ([]domain.Product, error)  { return nil, r.err }
func (r *brokenProductRepository) Save(domain.Product) error           { return r.err }
func (r *brokenProductRepository) Delete(string) error                 { return r.err }

func TestValidator_StorageFailurePropagatedAsIs(t *testing.T) {
	errStorage := errors.New("pg: connection refused")
	v := validation.NewValidator(&brokenProductRepository{err: errStorage}, nil)

	err := v.ValidateLines([]domain.OrderLine{{ProductID: "product-1", Qty: 1}})
	if err == nil {
		t.Fatal("expected error from broken storage")
	}
	if errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("storage failure must not look like a missing product: %v", err)
	}
	if !errors.Is(err, errStorage) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestValidator_AssertedZeroPriceMismatch(t *testing.T) {
	v := validation.NewValidator(newCatalog(t), nil)

	err := v.ValidateLines([]domain.OrderLine{{ProductID: "product-1", Qty: 1, PriceMinor: 0, PriceAsserted: true}})
	if !errors.Is(err, domain.ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch for asserted zero price, got %v", err)
	}
}

func TestValidator_AssertedZeroPriceOnFreeProduct(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(domain.Product{ID: "freebie", Name: "Sticker", PriceMinor: 0, Quantity: 5}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	v := validation.NewValidator(repo, nil)

	err := v.ValidateLines([]domain.OrderLine{{ProductID: "freebie", Qty: 1, PriceMinor: 0, PriceAsserted: true}})
	if err != nil {
		t.Fatalf("expected asserted zero price to match a free product, got %v", err)
	}
}
