package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/catalog"
	"github.com/vladislavdragonenkov/catalog-oms/internal/service/order"
)

const defaultListLimit = 100

// Handler обслуживает REST API каталога и заказов.
type Handler struct {
	orders   *order.Service
	products *catalog.Service
	idem     domain.IdempotencyRepository
	logger   *log.Entry
}

// NewHandler создаёт HTTP-обработчик. idem может быть nil: тогда
// Idempotency-Key на создании заказа не поддерживается.
func NewHandler(orders *order.Service, products *catalog.Service, idem domain.IdempotencyRepository, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http_api")
	}
	return &Handler{
		orders:   orders,
		products: products,
		idem:     idem,
		logger:   logger,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	created, err := h.orders.Create(req.CustomerID, toDomainLines(req.Lines))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(created))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	found, err := h.orders.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(found))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "customer_id query parameter is required"})
		return
	}

	orders, err := h.orders.ListByCustomer(customerID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, toOrderResponse(o))
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	updated, err := h.orders.Update(chi.URLParam(r, "id"), toDomainLines(req.Lines))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	created, err := h.products.Create(domain.Product{
		SKU:        req.SKU,
		Name:       req.Name,
		PriceMinor: req.PriceMinor,
		Quantity:   req.Quantity,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toProductResponse(created))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	found, err := h.products.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toProductResponse(found))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		h.writeError(w, err)
		return
	}

	result := make([]productResponse, 0, len(products))
	for _, p := range products {
		result = append(result, toProductResponse(p))
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	updated, err := h.products.Update(chi.URLParam(r, "id"), req.Name, req.SKU, req.PriceMinor, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toProductResponse(updated))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError переводит доменную ошибку в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
		h.writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrPriceMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProductAlreadyExists), errors.Is(err, domain.ErrOrderAlreadyExists):
		return http.StatusConflict
	case domain.IsVersionConflict(err):
		return http.StatusConflict
	case domain.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Warn("failed to encode response body")
	}
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}
