package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrNoLineItems = errors.New("order must contain at least one line item")
	// Ошибка при некорректном количестве товара в позиции (<= 0).
	ErrInvalidQuantity = errors.New("line item qty must be greater than zero")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrProductIDRequired = errors.New("line item product_id is required")
	// Ошибка отрицательной цены товара.
	ErrPriceNegative = errors.New("price_minor must be non-negative")
	// Ошибка отрицательного остатка товара.
	ErrQuantityNegative = errors.New("product quantity must be non-negative")
	// Ошибка отсутствующего имени товара.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductAlreadyExists — товар с таким ID уже есть в каталоге.
	ErrProductAlreadyExists = errors.New("product already exists")
	// ErrOrderAlreadyExists — заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrPriceMismatch — цена, заявленная клиентом, расходится с актуальной ценой товара.
	ErrPriceMismatch = errors.New("line item price does not match product price")
	// ErrInsufficientStock — запрошенное количество превышает доступный остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductVersionConflict сигнализирует о конфликте версий при сохранении товара.
	ErrProductVersionConflict = errors.New("product version conflict")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrConsistency — нарушен внутренний инвариант (например, резерв снят, а заказ не удалён).
	ErrConsistency = errors.New("consistency violation")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой hash тела запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован с тем же hash.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency request hash mismatch")
	// ErrIdempotencyKeyNotFound — запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// ProductError привязывает ошибку к конкретному товару, сохраняя совместимость с errors.Is.
func ProductError(kind error, productID string) error {
	return fmt.Errorf("%w: product %s", kind, productID)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий товара или заказа.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrProductVersionConflict) || errors.Is(err, ErrOrderVersionConflict)
}

// IsClientError сообщает, относится ли ошибка к классу клиентских (4xx) ошибок движка.
func IsClientError(err error) bool {
	for _, kind := range []error{
		ErrCustomerRequired,
		ErrNoLineItems,
		ErrInvalidQuantity,
		ErrProductIDRequired,
		ErrPriceNegative,
		ErrQuantityNegative,
		ErrProductNameRequired,
		ErrProductNotFound,
		ErrOrderNotFound,
		ErrProductAlreadyExists,
		ErrOrderAlreadyExists,
		ErrPriceMismatch,
		ErrInsufficientStock,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
