package reservation

import (
	"errors"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
	"github.com/vladislavdragonenkov/catalog-oms/internal/metrics"
)

const (
	defaultMaxAttempts = 8
	defaultBaseDelay   = 2 * time.Millisecond
	maxBackoffDelay    = 250 * time.Millisecond
)

// Coordinator — единственная точка, мутирующая остатки каталога. Списание и возврат
// выполняются через optimistic compare-and-swap по версии товара: проигравший
// конкурентный writer получает конфликт версии, перечитывает товар и повторяет попытку.
// Достаточность остатка перепроверяется на каждой попытке, поэтому остаток не уходит
// в минус даже если между валидацией и резервированием состояние каталога изменилось.
type Coordinator struct {
	products domain.ProductRepository
	ledger   domain.LedgerRepository
	logger   *log.Entry
	metrics  *metrics.EngineMetrics

	maxAttempts int
	baseDelay   time.Duration
}

// NewCoordinator создаёт рабочий экземпляр координатора.
func NewCoordinator(products domain.ProductRepository, ledger domain.LedgerRepository, logger *log.Entry) *Coordinator {
	c := newCoordinator(products, ledger, logger)
	c.metrics = metrics.NewEngineMetrics()
	return c
}

// NewCoordinatorWithoutMetrics создаёт координатор без метрик (для тестов).
func NewCoordinatorWithoutMetrics(products domain.ProductRepository, ledger domain.LedgerRepository, logger *log.Entry) *Coordinator {
	return newCoordinator(products, ledger, logger)
}

func newCoordinator(products domain.ProductRepository, ledger domain.LedgerRepository, logger *log.Entry) *Coordinator {
	if logger == nil {
		logger = log.New().WithField("component", "reservation")
	}
	return &Coordinator{
		products:    products,
		ledger:      ledger,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// Reserve списывает остатки под все позиции заказа, проставляет snapshot цены каждой
// позиции из каталога и пересчитывает итоги заказа целиком. Позиции применяются в
// порядке возрастания ProductID — фиксированный глобальный порядок исключает
// взаимную блокировку двух заказов, пересекающихся по товарам. Если какая-либо
// позиция не проходит, уже списанные остатки возвращаются и заказ остаётся
// нетронутым: операция атомарна с точки зрения каталога.
func (c *Coordinator) Reserve(order *domain.Order) error {
	if len(order.Lines) == 0 {
		return domain.ErrNoLineItems
	}

	indexes := lineIndexesByProduct(order.Lines)

	applied := make([]int, 0, len(indexes))
	for _, idx := range indexes {
		line := &order.Lines[idx]

		product, err := c.adjustStock(line.ProductID, -line.Qty)
		if err != nil {
			c.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": line.ProductID,
			}).Warn("reserve line failed, rolling back applied lines")
			c.rollback(order, applied)
			return err
		}

		line.PriceMinor = product.PriceMinor
		applied = append(applied, idx)
	}

	domain.RecomputeTotals(order)

	now := time.Now().UTC()
	for _, idx := range indexes {
		line := order.Lines[idx]
		c.appendMovement(domain.StockMovement{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Qty:       line.Qty,
			Kind:      domain.MovementReserve,
			Occurred:  now,
		})
	}
	if c.metrics != nil {
		c.metrics.RecordReservation()
	}

	return nil
}

// Release возвращает остатки по позициям заказа. Отсутствие товара по одной позиции —
// зафиксированная несогласованность, но она не должна мешать возврату остатков по
// остальным товарам: ошибки собираются и возвращаются одним агрегатом после того,
// как обработаны все позиции.
func (c *Coordinator) Release(orderID string, lines []domain.OrderLine) error {
	indexes := lineIndexesByProduct(lines)

	var failures []error
	now := time.Now().UTC()
	for _, idx := range indexes {
		line := lines[idx]

		if _, err := c.adjustStock(line.ProductID, line.Qty); err != nil {
			c.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.ProductID,
			}).Warn("release line failed, continuing with remaining lines")
			failures = append(failures, err)
			continue
		}

		c.appendMovement(domain.StockMovement{
			OrderID:   orderID,
			ProductID: line.ProductID,
			Qty:       line.Qty,
			Kind:      domain.MovementRelease,
			Occurred:  now,
		})
	}

	if c.metrics != nil {
		c.metrics.RecordRelease()
	}

	return errors.Join(failures...)
}

// rollback возвращает уже списанные в рамках неудавшегося Reserve остатки.
// Применённые позиции откатываются в обратном порядке.
func (c *Coordinator) rollback(order *domain.Order, applied []int) {
	for i := len(applied) - 1; i >= 0; i-- {
		line := order.Lines[applied[i]]
		if _, err := c.adjustStock(line.ProductID, line.Qty); err != nil {
			// Откат не смог вернуть остаток — это уже не клиентская ситуация.
			c.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": line.ProductID,
			}).Error("rollback of reserved stock failed")
		}
	}
	if c.metrics != nil && len(applied) > 0 {
		c.metrics.RecordRollback()
	}
}

// adjustStock выполняет одно CAS-изменение остатка товара на delta единиц.
// Отрицательный delta — списание: достаточность проверяется на каждой попытке.
func (c *Coordinator) adjustStock(productID string, delta int32) (domain.Product, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		product, err := c.products.Get(productID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return domain.Product{}, domain.ProductError(domain.ErrProductNotFound, productID)
			}
			return domain.Product{}, err
		}

		next := product.Quantity + delta
		if next < 0 {
			return domain.Product{}, domain.ProductError(domain.ErrInsufficientStock, productID)
		}

		product.Quantity = next
		product.UpdatedAt = time.Now().UTC()

		saveErr := c.products.Save(product)
		if saveErr == nil {
			return product, nil
		}
		if !errors.Is(saveErr, domain.ErrProductVersionConflict) {
			return domain.Product{}, saveErr
		}

		lastErr = saveErr
		if c.metrics != nil {
			c.metrics.RecordCASConflict()
		}
		c.logger.WithFields(log.Fields{
			"product_id": productID,
			"attempt":    attempt + 1,
		}).Debug("stock version conflict, retrying")

		delay := c.baseDelay * time.Duration(1<<uint(attempt))
		if delay > maxBackoffDelay {
			delay = maxBackoffDelay
		}
		time.Sleep(delay)
	}

	return domain.Product{}, lastErr
}

func (c *Coordinator) appendMovement(movement domain.StockMovement) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.Append(movement); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"order_id":   movement.OrderID,
			"product_id": movement.ProductID,
		}).Warn("append stock movement failed")
		return
	}
	if c.metrics != nil {
		c.metrics.RecordLedgerEvent()
	}
}

// lineIndexesByProduct возвращает индексы позиций, упорядоченные по ProductID.
// Исходный порядок позиций заказа при этом не меняется.
func lineIndexesByProduct(lines []domain.OrderLine) []int {
	indexes := make([]int, len(lines))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		return lines[indexes[a]].ProductID < lines[indexes[b]].ProductID
	})
	return indexes
}

var _ domain.StockCoordinator = (*Coordinator)(nil)
