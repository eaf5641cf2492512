package domain

import "time"

// MovementKind различает направление движения остатка.
type MovementKind string

const (
	// MovementReserve — остаток уменьшен под заказ.
	MovementReserve MovementKind = "reserve"
	// MovementRelease — остаток возвращён (отмена, обновление или компенсация).
	MovementRelease MovementKind = "release"
)

// StockMovement описывает одно зафиксированное изменение остатка товара.
// Журнал движений append-only и служит опорой для сверки сохранности остатков.
type StockMovement struct {
	OrderID   string
	ProductID string
	Qty       int32
	Kind      MovementKind
	Occurred  time.Time
}
