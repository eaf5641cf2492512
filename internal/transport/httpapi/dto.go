package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

// Денежные суммы передаются в минорных единицах валюты (копейки, центы).

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
	// Указатель различает «цена не заявлена» (nil) и «клиент ожидает ровно
	// такую цену», включая нулевую.
	PriceMinor *int64 `json:"price_minor,omitempty"`
}

type createOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	Lines      []orderLineRequest `json:"lines"`
}

type updateOrderRequest struct {
	Lines []orderLineRequest `json:"lines"`
}

type orderLineResponse struct {
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
	TotalMinor int64  `json:"total_minor"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	CustomerID  string              `json:"customer_id"`
	Lines       []orderLineResponse `json:"lines"`
	TotalQty    int32               `json:"total_qty"`
	AmountMinor int64               `json:"amount_minor"`
	Version     int64               `json:"version"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type productRequest struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
	Quantity   int32  `json:"quantity"`
}

type productResponse struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price_minor"`
	Quantity   int32     `json:"quantity"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toDomainLines(lines []orderLineRequest) []domain.OrderLine {
	result := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		converted := domain.OrderLine{
			ProductID: line.ProductID,
			Qty:       line.Qty,
		}
		if line.PriceMinor != nil {
			converted.PriceMinor = *line.PriceMinor
			converted.PriceAsserted = true
		}
		result = append(result, converted)
	}
	return result
}

func toOrderResponse(order domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
			TotalMinor: line.TotalMinor,
		})
	}
	return orderResponse{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		Lines:       lines,
		TotalQty:    order.TotalQty,
		AmountMinor: order.AmountMinor,
		Version:     order.Version,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func toProductResponse(product domain.Product) productResponse {
	return productResponse{
		ID:         product.ID,
		SKU:        product.SKU,
		Name:       product.Name,
		PriceMinor: product.PriceMinor,
		Quantity:   product.Quantity,
		Version:    product.Version,
		CreatedAt:  product.CreatedAt,
		UpdatedAt:  product.UpdatedAt,
	}
}
