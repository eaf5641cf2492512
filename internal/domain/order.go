package domain

import "time"

// OrderLine представляет одну позицию заказа: ссылку на товар и его количество.
// Цена позиции никогда не задаётся клиентом напрямую — она фиксируется из каталога
// в момент резервирования (snapshot), а TotalMinor всегда пересчитывается из Qty и цены.
type OrderLine struct {
	// ProductID — слабая ссылка на товар каталога (только lookup, без владения).
	ProductID string
	// Qty — запрошенное количество единиц товара (>= 1).
	Qty int32
	// PriceMinor — snapshot цены за единицу из каталога на момент резервирования.
	PriceMinor int64
	// PriceAsserted отмечает, что клиент явно заявил ожидаемую цену (в том числе
	// нулевую). Входной флаг для валидации; после резервирования смысла не имеет
	// и не сохраняется.
	PriceAsserted bool
	// TotalMinor — производное поле: Qty * PriceMinor. Самостоятельной достоверности не имеет.
	TotalMinor int64
}

// Order агрегирует позиции заказа и производные итоги.
type Order struct {
	ID         string
	CustomerID string
	// Lines — упорядоченный непустой (для сохранённого заказа) список позиций.
	Lines []OrderLine
	// TotalQty — сумма количеств по всем позициям. Задаётся только пересчётом.
	TotalQty int32
	// AmountMinor — сумма TotalMinor по всем позициям. Задаётся только пересчётом.
	AmountMinor int64
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateInput проверяет пришедшие от клиента позиции до обращения к каталогу.
// Порядок проверок фиксирован: пустой список, затем построчно product_id и qty.
func (o *Order) ValidateInput() error {
	if o.CustomerID == "" {
		return ErrCustomerRequired
	}
	if len(o.Lines) == 0 {
		return ErrNoLineItems
	}
	for _, line := range o.Lines {
		if line.ProductID == "" {
			return ErrProductIDRequired
		}
		if line.Qty <= 0 {
			return ProductError(ErrInvalidQuantity, line.ProductID)
		}
	}
	return nil
}

// RecomputeTotals пересчитывает производные поля заказа целиком из текущих позиций.
// Итоги никогда не корректируются инкрементально, чтобы исключить накопление расхождений
// при повторных обновлениях. Функция идемпотентна.
func RecomputeTotals(o *Order) {
	var qty int32
	var amount int64
	for i := range o.Lines {
		line := &o.Lines[i]
		line.TotalMinor = int64(line.Qty) * line.PriceMinor
		qty += line.Qty
		amount += line.TotalMinor
	}
	o.TotalQty = qty
	o.AmountMinor = amount
}
