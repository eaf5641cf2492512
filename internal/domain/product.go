package domain

import "time"

// Product описывает товар каталога с ценой и доступным остатком.
type Product struct {
	// ID — opaque-идентификатор товара (UUID в строковом виде).
	ID string
	// SKU — внешний артикул товара.
	SKU string
	// Name — человекочитаемое название товара.
	Name string
	// PriceMinor — цена за единицу в минимальных денежных единицах (например, копейки).
	PriceMinor int64
	// Quantity — доступный остаток. После любой зафиксированной операции не бывает отрицательным.
	Quantity int32
	// Version используется для optimistic locking при read-modify-write остатка.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты товара и возвращает список замечаний.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if p.Quantity < 0 {
		errs = append(errs, ErrQuantityNegative)
	}

	return errs
}
