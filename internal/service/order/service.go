package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
	"github.com/vladislavdragonenkov/catalog-oms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/catalog-oms/internal/metrics"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// EventPublisher публикует события сервиса во внешнюю шину. Реализация по
// умолчанию — Kafka producer; в тестах подменяется записывающей заглушкой.
type EventPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// Service оркестрирует валидатор, координатор резервирования и хранилище заказов.
// Последовательность шагов на создание: Unvalidated → Validated → Reserved → Persisted;
// на обновление: Persisted → Released → Validated → Reserved → Persisted';
// на удаление: Persisted → Released → Deleted. Любой сбой перехода обязан оставить
// остатки каталога ровно такими, какими они были до начала операции.
type Service struct {
	orders    domain.OrderRepository
	validator domain.OrderValidator
	stock     domain.StockCoordinator
	outbox    domain.OutboxRepository
	logger    *log.Entry
	metrics   *metrics.EngineMetrics
	producer  EventPublisher // опциональный Kafka producer для event-driven архитектуры
}

// NewService создаёт рабочий экземпляр сервиса жизненного цикла заказов.
func NewService(
	orders domain.OrderRepository,
	validator domain.OrderValidator,
	stock domain.StockCoordinator,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	s := newService(orders, validator, stock, outbox, logger)
	s.metrics = metrics.NewEngineMetrics()
	return s
}

// NewServiceWithKafka создаёт сервис с Kafka producer для event-driven архитектуры.
func NewServiceWithKafka(
	orders domain.OrderRepository,
	validator domain.OrderValidator,
	stock domain.StockCoordinator,
	outbox domain.OutboxRepository,
	producer EventPublisher,
	logger *log.Entry,
) *Service {
	s := newService(orders, validator, stock, outbox, logger)
	s.metrics = metrics.NewEngineMetrics()
	s.producer = producer
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	validator domain.OrderValidator,
	stock domain.StockCoordinator,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	return newService(orders, validator, stock, outbox, logger)
}

// NewServiceWithPublisher создаёт сервис без метрик, но с шиной событий (для тестов).
func NewServiceWithPublisher(
	orders domain.OrderRepository,
	validator domain.OrderValidator,
	stock domain.StockCoordinator,
	outbox domain.OutboxRepository,
	producer EventPublisher,
	logger *log.Entry,
) *Service {
	s := newService(orders, validator, stock, outbox, logger)
	s.producer = producer
	return s
}

func newService(
	orders domain.OrderRepository,
	validator domain.OrderValidator,
	stock domain.StockCoordinator,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		orders:    orders,
		validator: validator,
		stock:     stock,
		outbox:    outbox,
		logger:    logger,
	}
}

// Create строит заказ из клиентских позиций, валидирует их против каталога,
// резервирует остатки и сохраняет заказ. Если валидация не прошла — каталог не
// тронут; если сохранение не удалось — резерв возвращается, так что операция
// атомарна с точки зрения остатков.
func (s *Service) Create(customerID string, lines []domain.OrderLine) (domain.Order, error) {
	finish := s.beginOperation(opCreate)
	defer finish()

	now := time.Now().UTC()
	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Lines:      append([]domain.OrderLine(nil), lines...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := order.ValidateInput(); err != nil {
		return domain.Order{}, s.fail(opCreate, order.ID, err)
	}
	if err := s.validator.ValidateLines(order.Lines); err != nil {
		return domain.Order{}, s.fail(opCreate, order.ID, err)
	}

	if err := s.stock.Reserve(&order); err != nil {
		return domain.Order{}, s.fail(opCreate, order.ID, err)
	}

	if err := s.orders.Create(order); err != nil {
		// Резерв уже применён — возвращаем остатки, прежде чем отдать ошибку.
		if relErr := s.stock.Release(order.ID, order.Lines); relErr != nil {
			s.logger.WithError(relErr).WithField("order_id", order.ID).Error("release after failed persist")
			return domain.Order{}, s.fail(opCreate, order.ID, fmt.Errorf("%w: persist failed and release incomplete: %v", domain.ErrConsistency, errors.Join(err, relErr)))
		}
		return domain.Order{}, s.fail(opCreate, order.ID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"amount_minor": order.AmountMinor,
	}).Info("order created")

	s.emitEvent(&order, "OrderCreated", map[string]interface{}{
		"amount_minor": order.AmountMinor,
		"total_qty":    order.TotalQty,
	})
	s.publishOrderEvent(kafka.EventTypeOrderCreated, &order)
	s.publishStockEvents(kafka.EventTypeStockReserved, order.ID, order.Lines)

	return order, nil
}

// Get возвращает сохранённый заказ без каких-либо мутаций.
func (s *Service) Get(id string) (domain.Order, error) {
	return s.orders.Get(id)
}

// ListByCustomer возвращает заказы клиента.
func (s *Service) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	return s.orders.ListByCustomer(customerID, limit)
}

// Update заменяет позиции существующего заказа. Старый резерв сначала снимается,
// затем новые позиции валидируются и резервируются. Если новый резерв не удался,
// старый обязан быть восстановлен (компенсирующее ре-резервирование): нетто-эффект
// неудачного обновления — «заказ не изменился», а не «остатки освобождены».
func (s *Service) Update(id string, lines []domain.OrderLine) (domain.Order, error) {
	finish := s.beginOperation(opUpdate)
	defer finish()

	existing, err := s.orders.Get(id)
	if err != nil {
		return domain.Order{}, s.fail(opUpdate, id, err)
	}

	candidate := existing
	candidate.Lines = append([]domain.OrderLine(nil), lines...)
	if err := candidate.ValidateInput(); err != nil {
		return domain.Order{}, s.fail(opUpdate, id, err)
	}

	// Снимаем старый резерв, чтобы валидация нового состава видела реально
	// доступные остатки (включая те, что держал сам этот заказ).
	if relErr := s.stock.Release(existing.ID, existing.Lines); relErr != nil {
		// Частичные сбои возврата собраны в агрегат; остальные позиции уже
		// возвращены, поэтому продолжаем, зафиксировав проблему.
		s.logger.WithError(relErr).WithField("order_id", id).Warn("partial release before update")
	}

	if err := s.validator.ValidateLines(candidate.Lines); err != nil {
		return domain.Order{}, s.compensate(opUpdate, &existing, err)
	}
	if err := s.stock.Reserve(&candidate); err != nil {
		return domain.Order{}, s.compensate(opUpdate, &existing, err)
	}

	candidate.UpdatedAt = time.Now().UTC()
	if err := s.orders.Save(candidate); err != nil {
		// Новый резерв применён, но заказ не сохранился: снимаем новый резерв
		// и восстанавливаем старый.
		if relErr := s.stock.Release(candidate.ID, candidate.Lines); relErr != nil {
			s.logger.WithError(relErr).WithField("order_id", id).Error("release of new reservation after failed save")
		}
		return domain.Order{}, s.compensate(opUpdate, &existing, err)
	}
	candidate.Version++

	if s.metrics != nil {
		s.metrics.RecordOrderUpdated()
	}
	s.logger.WithFields(log.Fields{
		"order_id":     candidate.ID,
		"amount_minor": candidate.AmountMinor,
	}).Info("order updated")

	s.emitEvent(&candidate, "OrderUpdated", map[string]interface{}{
		"amount_minor": candidate.AmountMinor,
		"total_qty":    candidate.TotalQty,
	})
	s.publishOrderEvent(kafka.EventTypeOrderUpdated, &candidate)
	s.publishStockEvents(kafka.EventTypeStockReleased, existing.ID, existing.Lines)
	s.publishStockEvents(kafka.EventTypeStockReserved, candidate.ID, candidate.Lines)

	return candidate, nil
}

// Delete снимает резерв заказа и удаляет запись. Проигравший гонку удалений
// возвращает свой резерв обратно и получает ErrOrderNotFound. Если же удаление
// сорвалось по неизвестной причине после снятия резерва, наружу уходит ошибка
// согласованности: остатки освобождены, а заказ всё ещё существует —
// замалчивать такое нельзя.
func (s *Service) Delete(id string) error {
	finish := s.beginOperation(opDelete)
	defer finish()

	existing, err := s.orders.Get(id)
	if err != nil {
		return s.fail(opDelete, id, err)
	}

	if relErr := s.stock.Release(existing.ID, existing.Lines); relErr != nil {
		s.logger.WithError(relErr).WithField("order_id", id).Warn("partial release on delete")
	}

	if err := s.orders.Delete(id); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			// Конкурирующее удаление успело снять запись первым: его Release уже
			// вернул остаток, наш получился вторым. Резервируем обратно, иначе
			// количество вырастет на размер заказа.
			return s.compensate(opDelete, &existing, err)
		}
		s.logger.WithError(err).WithField("order_id", id).Error("order removal failed after release")
		return s.fail(opDelete, id, fmt.Errorf("%w: reservation released but order removal failed: %v", domain.ErrConsistency, err))
	}

	if s.metrics != nil {
		s.metrics.RecordOrderDeleted()
	}
	s.logger.WithField("order_id", id).Info("order deleted")

	s.emitEvent(&existing, "OrderDeleted", nil)
	s.publishOrderEvent(kafka.EventTypeOrderDeleted, &existing)
	s.publishStockEvents(kafka.EventTypeStockReleased, existing.ID, existing.Lines)

	return nil
}

// compensate восстанавливает снятый резерв после неудачной операции и
// возвращает исходную ошибку. Невозможность восстановить резерв — нарушение
// согласованности, которое перекрывает исходную ошибку.
func (s *Service) compensate(operation string, previous *domain.Order, cause error) error {
	restored := *previous
	restored.Lines = append([]domain.OrderLine(nil), previous.Lines...)
	if err := s.stock.Reserve(&restored); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": previous.ID,
			"cause":    cause.Error(),
		}).Error("compensating re-reservation failed, stock leaked")
		return s.fail(operation, previous.ID, fmt.Errorf("%w: compensating re-reservation failed: %v", domain.ErrConsistency, errors.Join(cause, err)))
	}
	return s.fail(operation, previous.ID, cause)
}

func (s *Service) fail(operation, orderID string, err error) error {
	if s.metrics != nil {
		s.metrics.RecordOrderFailed(operation)
	}
	level := s.logger.WithError(err).WithFields(log.Fields{
		"order_id":  orderID,
		"operation": operation,
	})
	if domain.IsClientError(err) {
		level.Debug("operation rejected")
	} else {
		level.Error("operation failed")
	}
	return err
}

func (s *Service) beginOperation(operation string) func() {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordOperationStarted()
	}
	return func() {
		if s.metrics != nil {
			s.metrics.RecordOperationFinished()
			s.metrics.RecordOperationDuration(operation, time.Since(start))
		}
	}
}

func (s *Service) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if s.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

// publishOrderEvent публикует событие заказа в Kafka (если producer настроен).
func (s *Service) publishOrderEvent(eventType kafka.EventType, order *domain.Order) {
	if s.producer == nil {
		return // Kafka не настроен, пропускаем
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.CustomerID, map[string]interface{}{
		"amount_minor": order.AmountMinor,
		"total_qty":    order.TotalQty,
	})
	if err := s.producer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		// Логируем ошибку, но не прерываем операцию — Kafka опциональный.
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

// publishStockEvents публикует по одному событию движения остатка на каждую
// позицию заказа. Ключ партиционирования — product_id, чтобы движения одного
// товара читались в порядке записи.
func (s *Service) publishStockEvents(eventType kafka.EventType, orderID string, lines []domain.OrderLine) {
	if s.producer == nil {
		return
	}

	for _, line := range lines {
		event := kafka.NewStockEvent(eventType, orderID, line.ProductID, line.Qty)
		if err := s.producer.PublishEvent(kafka.TopicStockEvents, line.ProductID, event); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"event_type": eventType,
				"order_id":   orderID,
				"product_id": line.ProductID,
			}).Warn("failed to publish stock event to kafka")
		}
	}
}
