package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

// Service управляет справочником товаров: создание, чтение, обновление карточки
// и удаление. Остатки отсюда меняются только административно (завоз товара);
// резервирование под заказы остаётся за координатором.
type Service struct {
	products domain.ProductRepository
	logger   *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{products: products, logger: logger}
}

// Create валидирует и сохраняет новый товар.
func (s *Service) Create(product domain.Product) (domain.Product, error) {
	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.Version = 0
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Create(product); err != nil {
		s.logger.WithError(err).WithField("product_id", product.ID).Error("create product failed")
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id":  product.ID,
		"sku":         product.SKU,
		"price_minor": product.PriceMinor,
	}).Info("product created")
	return product, nil
}

// Get возвращает товар по идентификатору.
func (s *Service) Get(id string) (domain.Product, error) {
	return s.products.Get(id)
}

// List возвращает товары каталога.
func (s *Service) List(limit int) ([]domain.Product, error) {
	return s.products.List(limit)
}

// Update меняет карточку товара: имя, артикул, цену и административную корректировку
// остатка. Повторяет попытку при конфликте версии с конкурентным резервированием.
func (s *Service) Update(id string, name, sku string, priceMinor int64, quantity int32) (domain.Product, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		product, err := s.products.Get(id)
		if err != nil {
			return domain.Product{}, err
		}

		product.Name = name
		product.SKU = sku
		product.PriceMinor = priceMinor
		product.Quantity = quantity
		product.UpdatedAt = time.Now().UTC()

		if errs := product.ValidateInvariants(); len(errs) > 0 {
			return domain.Product{}, errors.Join(errs...)
		}

		saveErr := s.products.Save(product)
		if saveErr == nil {
			product.Version++
			s.logger.WithField("product_id", id).Info("product updated")
			return product, nil
		}
		if !errors.Is(saveErr, domain.ErrProductVersionConflict) {
			return domain.Product{}, saveErr
		}
		lastErr = saveErr
		s.logger.WithFields(log.Fields{
			"product_id": id,
			"attempt":    attempt + 1,
		}).Warn("product version conflict, retrying")
	}

	return domain.Product{}, lastErr
}

// Delete удаляет товар из каталога.
func (s *Service) Delete(id string) error {
	if err := s.products.Delete(id); err != nil {
		return err
	}
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}
