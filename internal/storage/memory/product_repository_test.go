package memory_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
	"github.com/vladislavdragonenkov/catalog-oms/internal/storage/memory"
)

func newProduct() domain.Product {
	now := time.Now().UTC()
	return domain.Product{
		ID:         "product-1",
		SKU:        "sku-1",
		Name:       "Funko Batman",
		PriceMinor: 1999,
		Quantity:   10,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestProductRepository_CreateGet(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()

	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.PriceMinor != product.PriceMinor || stored.Quantity != product.Quantity {
		t.Fatalf("unexpected product: %+v", stored)
	}
}

func TestProductRepository_CreateDuplicate(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()

	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(product); !errors.Is(err, domain.ErrProductAlreadyExists) {
		t.Fatalf("expected ErrProductAlreadyExists, got %v", err)
	}
}

func TestProductRepository_GetMissing(t *testing.T) {
	repo := memory.NewProductRepository()
	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_SaveIncrementsVersion(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()
	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	stored.Quantity = 7
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", updated.Quantity)
	}
	if updated.Version != stored.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}
}

func TestProductRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()
	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	product.Version = 42
	if err := repo.Save(product); !errors.Is(err, domain.ErrProductVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestProductRepository_Delete(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()
	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Delete(product.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.Get(product.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound after delete, got %v", err)
	}
	if err := repo.Delete(product.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on second delete, got %v", err)
	}
}

// Конкурентные CAS-сохранения: ровно одно из двух параллельных списаний выигрывает.
func TestProductRepository_ConcurrentSaveSingleWinner(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()
	product.Quantity = 2
	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	base, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			candidate := base
			candidate.Quantity = 0
			results[i] = repo.Save(candidate)
		}(i)
	}
	wg.Wait()

	conflicts := 0
	for _, err := range results {
		if errors.Is(err, domain.ErrProductVersionConflict) {
			conflicts++
		} else if err != nil {
			t.Fatalf("unexpected save error: %v", err)
		}
	}
	if conflicts != 1 {
		t.Fatalf("expected exactly one conflict, got %d", conflicts)
	}
}
