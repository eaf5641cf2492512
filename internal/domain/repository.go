package domain

// ProductRepository описывает требования к хранилищу каталога товаров.
// Координатор резервирования выполняет через него read-modify-write остатков,
// полагаясь на optimistic locking по полю Version.
type ProductRepository interface {
	// Create сохраняет новый товар. Возвращает ошибку, если запись с таким ID уже существует.
	Create(product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound, если его нет.
	Get(id string) (Product, error)
	// List возвращает товары каталога с опциональным ограничением на количество.
	List(limit int) ([]Product, error)
	// Save применяет обновления к товару с учётом optimistic locking.
	// При расхождении версии возвращает ErrProductVersionConflict.
	Save(product Product) error
	// Delete удаляет товар или возвращает ErrProductNotFound.
	Delete(id string) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// List возвращает заказы с опциональным ограничением на количество.
	List(limit int) ([]Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным ограничением на количество.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// Delete удаляет заказ или возвращает ErrOrderNotFound.
	Delete(id string) error
}
