package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/catalog"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/order"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/reconcile"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/reservation"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/validation"
	"github.com/vladislavdragonenkov/catalog-oms/internal/storage/memory"
)

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказов
// вместе с резервированием остатков, журналом движений и outbox.
type OrderLifecycleTestSuite struct {
	suite.Suite
	products domain.ProductRepository
	orders   domain.OrderRepository
	ledger   domain.LedgerRepository
	outbox   domain.OutboxRepository
	service  *order.Service
	catalog  *catalog.Service
	checker  *reconcile.Checker
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.products = memory.NewProductRepository()
	suite.orders = memory.NewOrderRepository()
	suite.ledger = memory.NewLedgerRepository()
	suite.outbox = memory.NewOutboxRepository()

	validator := validation.NewValidator(suite.products, logger)
	coordinator := reservation.NewCoordinatorWithoutMetrics(suite.products, suite.ledger, logger)

	suite.service = order.NewServiceWithoutMetrics(suite.orders, validator, coordinator, suite.outbox, logger)
	suite.catalog = catalog.NewService(suite.products, logger)
	suite.checker = reconcile.NewChecker(suite.products, suite.orders, suite.ledger, reconcile.WithLogger(logger))
}

func (suite *OrderLifecycleTestSuite) seedProduct(name string, priceMinor int64, quantity int32) domain.Product {
	created, err := suite.catalog.Create(domain.Product{
		SKU:        fmt.Sprintf("SKU-%s", name),
		Name:       name,
		PriceMinor: priceMinor,
		Quantity:   quantity,
	})
	require.NoError(suite.T(), err)
	return created
}

func (suite *OrderLifecycleTestSuite) requireStock(productID string, want int32) {
	product, err := suite.products.Get(productID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), want, product.Quantity)
}

func (suite *OrderLifecycleTestSuite) requireConsistent() {
	report, err := suite.checker.CheckOnce(context.Background())
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), report.Violations)
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	laptop := suite.seedProduct("laptop-pro", 199900, 5)
	mouse := suite.seedProduct("mouse-wireless", 4999, 10)

	// 1. Создаём заказ из двух позиций
	created, err := suite.service.Create("customer-123", []domain.OrderLine{
		{ProductID: laptop.ID, Qty: 1},
		{ProductID: mouse.ID, Qty: 2},
	})
	require.NoError(suite.T(), err)
	require.NotEmpty(suite.T(), created.ID)
	require.Equal(suite.T(), int32(3), created.TotalQty)
	require.Equal(suite.T(), int64(209898), created.AmountMinor) // 1999.00 + 2*49.99

	suite.requireStock(laptop.ID, 4)
	suite.requireStock(mouse.ID, 8)
	suite.requireConsistent()

	// 2. Проверяем журнал движений
	movements, err := suite.ledger.ListByOrder(created.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), movements, 2)
	for _, movement := range movements {
		require.Equal(suite.T(), domain.MovementReserve, movement.Kind)
	}

	// 3. Обновляем заказ: позиции заменяются целиком
	updated, err := suite.service.Update(created.ID, []domain.OrderLine{
		{ProductID: mouse.ID, Qty: 5},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(5), updated.TotalQty)
	require.Equal(suite.T(), int64(24995), updated.AmountMinor)
	require.Greater(suite.T(), updated.Version, created.Version)

	suite.requireStock(laptop.ID, 5)
	suite.requireStock(mouse.ID, 5)
	suite.requireConsistent()

	// 4. Удаляем заказ — резерв возвращается
	require.NoError(suite.T(), suite.service.Delete(created.ID))
	suite.requireStock(laptop.ID, 5)
	suite.requireStock(mouse.ID, 10)
	suite.requireConsistent()

	_, err = suite.service.Get(created.ID)
	require.ErrorIs(suite.T(), err, domain.ErrOrderNotFound)

	// 5. Все события жизненного цикла попали в outbox
	pending, err := suite.outbox.PullPending(100)
	require.NoError(suite.T(), err)
	eventTypes := make([]string, 0, len(pending))
	for _, msg := range pending {
		require.Equal(suite.T(), "order", msg.AggregateType)
		require.Equal(suite.T(), created.ID, msg.AggregateID)
		eventTypes = append(eventTypes, msg.EventType)
	}
	require.ElementsMatch(suite.T(), []string{"OrderCreated", "OrderUpdated", "OrderDeleted"}, eventTypes)
}

func (suite *OrderLifecycleTestSuite) TestInsufficientStockLeavesCatalogUntouched() {
	laptop := suite.seedProduct("laptop-pro", 199900, 5)
	mouse := suite.seedProduct("mouse-wireless", 4999, 1)

	_, err := suite.service.Create("customer-456", []domain.OrderLine{
		{ProductID: laptop.ID, Qty: 2},
		{ProductID: mouse.ID, Qty: 3},
	})
	require.ErrorIs(suite.T(), err, domain.ErrInsufficientStock)

	// Частичный резерв откатился
	suite.requireStock(laptop.ID, 5)
	suite.requireStock(mouse.ID, 1)
	suite.requireConsistent()

	pending, pullErr := suite.outbox.PullPending(100)
	require.NoError(suite.T(), pullErr)
	require.Empty(suite.T(), pending)
}

func (suite *OrderLifecycleTestSuite) TestPriceMismatchRejected() {
	laptop := suite.seedProduct("laptop-pro", 199900, 5)

	_, err := suite.service.Create("customer-789", []domain.OrderLine{
		{ProductID: laptop.ID, Qty: 1, PriceMinor: 100},
	})
	require.ErrorIs(suite.T(), err, domain.ErrPriceMismatch)

	suite.requireStock(laptop.ID, 5)
	suite.requireConsistent()
}

func (suite *OrderLifecycleTestSuite) TestConcurrentCreatesNeverOversell() {
	const (
		workers = 20
		stock   = int32(10)
	)
	product := suite.seedProduct("limited-drop", 9900, stock)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(customer int) {
			defer wg.Done()
			_, err := suite.service.Create(fmt.Sprintf("customer-%d", customer), []domain.OrderLine{
				{ProductID: product.ID, Qty: 1},
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(suite.T(), err, domain.ErrInsufficientStock)
		}
	}
	require.Equal(suite.T(), int(stock), succeeded)

	suite.requireStock(product.ID, 0)
	suite.requireConsistent()
}

func (suite *OrderLifecycleTestSuite) TestUpdateWithStaleDataRecovers() {
	product := suite.seedProduct("keyboard", 12900, 10)

	created, err := suite.service.Create("customer-1", []domain.OrderLine{
		{ProductID: product.ID, Qty: 2},
	})
	require.NoError(suite.T(), err)

	// Конкурирующее обновление каталога поднимает версию товара;
	// координатор перечитывает состояние и завершает операцию.
	_, err = suite.catalog.Update(product.ID, "keyboard", product.SKU, 13900, 8)
	require.NoError(suite.T(), err)

	updated, err := suite.service.Update(created.ID, []domain.OrderLine{
		{ProductID: product.ID, Qty: 4},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(4), updated.TotalQty)

	suite.requireStock(product.ID, 6)
	suite.requireConsistent()
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
