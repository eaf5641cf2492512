package validation

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

// Validator выполняет read-only проверку позиций заказа против текущего состояния каталога.
// Никаких мутаций: все побочные эффекты остаются за координатором резервирования.
type Validator struct {
	products domain.ProductRepository
	logger   *log.Entry
}

// NewValidator создаёт валидатор поверх каталога товаров.
func NewValidator(products domain.ProductRepository, logger *log.Entry) *Validator {
	if logger == nil {
		logger = log.New().WithField("component", "validation")
	}
	return &Validator{products: products, logger: logger}
}

// ValidateLines проверяет позиции по порядку и возвращает первую обнаруженную ошибку.
// Последовательность проверок на позицию: существование товара, совпадение цены
// (если клиент её заявил), достаточность остатка. Нулевые и отрицательные количества
// отсекаются входной валидацией заказа до обращения сюда, но на всякий случай
// проверяются и здесь как отдельный вид ошибки.
func (v *Validator) ValidateLines(lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return domain.ErrNoLineItems
	}

	for _, line := range lines {
		if line.Qty <= 0 {
			return domain.ProductError(domain.ErrInvalidQuantity, line.ProductID)
		}

		product, err := v.products.Get(line.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return domain.ProductError(domain.ErrProductNotFound, line.ProductID)
			}
			// Сбой хранилища — не клиентская ошибка, наружу уходит как есть.
			v.logger.WithError(err).WithField("product_id", line.ProductID).Error("product lookup failed")
			return fmt.Errorf("lookup product %s: %w", line.ProductID, err)
		}

		// Клиент может заявить ожидаемую цену; расхождение с каталогом — ошибка,
		// защищающая от устаревших и подделанных клиентских цен. Дальше по конвейеру
		// всегда используется цена каталога, а не заявленная. Ненулевой PriceMinor
		// без флага тоже считается заявкой: сервисные вызовы передают цену напрямую.
		if (line.PriceAsserted || line.PriceMinor != 0) && line.PriceMinor != product.PriceMinor {
			return domain.ProductError(domain.ErrPriceMismatch, line.ProductID)
		}

		if line.Qty > product.Quantity {
			return domain.ProductError(domain.ErrInsufficientStock, line.ProductID)
		}
	}

	return nil
}

var _ domain.OrderValidator = (*Validator)(nil)
