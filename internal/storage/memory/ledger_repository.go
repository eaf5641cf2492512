package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

// ledgerRepositoryInMemory хранит журнал движений остатков в памяти (для разработки/тестов).
type ledgerRepositoryInMemory struct {
	mu        sync.RWMutex
	byProduct map[string][]domain.StockMovement
	byOrder   map[string][]domain.StockMovement
}

// NewLedgerRepository создаёт in-memory реализацию LedgerRepository.
func NewLedgerRepository() domain.LedgerRepository {
	return &ledgerRepositoryInMemory{
		byProduct: make(map[string][]domain.StockMovement),
		byOrder:   make(map[string][]domain.StockMovement),
	}
}

// Append добавляет движение в журнал.
func (r *ledgerRepositoryInMemory) Append(movement domain.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byProduct[movement.ProductID] = append(r.byProduct[movement.ProductID], movement)
	r.byOrder[movement.OrderID] = append(r.byOrder[movement.OrderID], movement)
	return nil
}

// ListByProduct возвращает движения по товару в хронологическом порядке.
func (r *ledgerRepositoryInMemory) ListByProduct(productID string) ([]domain.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedCopy(r.byProduct[productID]), nil
}

// ListByOrder возвращает движения по заказу в хронологическом порядке.
func (r *ledgerRepositoryInMemory) ListByOrder(orderID string) ([]domain.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedCopy(r.byOrder[orderID]), nil
}

func sortedCopy(movements []domain.StockMovement) []domain.StockMovement {
	result := make([]domain.StockMovement, len(movements))
	copy(result, movements)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Occurred.Before(result[j].Occurred)
	})
	return result
}

var _ domain.LedgerRepository = (*ledgerRepositoryInMemory)(nil)
