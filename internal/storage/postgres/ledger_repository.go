package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

type ledgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository создаёт PostgreSQL-реализацию журнала движений остатков.
func NewLedgerRepository(store *Store) domain.LedgerRepository {
	return &ledgerRepository{db: store.DB()}
}

func (r *ledgerRepository) Append(movement domain.StockMovement) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if movement.Occurred.IsZero() {
		movement.Occurred = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_movements (order_id, product_id, qty, kind, occurred)
		VALUES ($1,$2,$3,$4,$5)
	`, movement.OrderID, movement.ProductID, movement.Qty, string(movement.Kind), movement.Occurred); err != nil {
		return fmt.Errorf("append stock movement: %w", err)
	}

	return nil
}

func (r *ledgerRepository) ListByProduct(productID string) ([]domain.StockMovement, error) {
	return r.list(`
		SELECT order_id, product_id, qty, kind, occurred
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY occurred ASC, id ASC
	`, productID)
}

func (r *ledgerRepository) ListByOrder(orderID string) ([]domain.StockMovement, error) {
	return r.list(`
		SELECT order_id, product_id, qty, kind, occurred
		FROM stock_movements
		WHERE order_id = $1
		ORDER BY occurred ASC, id ASC
	`, orderID)
}

func (r *ledgerRepository) list(query string, arg any) ([]domain.StockMovement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0)
	for rows.Next() {
		var (
			movement domain.StockMovement
			kind     string
		)
		if err := rows.Scan(&movement.OrderID, &movement.ProductID, &movement.Qty, &kind, &movement.Occurred); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movement.Kind = domain.MovementKind(kind)
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock movements: %w", err)
	}

	return movements, nil
}

var _ domain.LedgerRepository = (*ledgerRepository)(nil)
