package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

// withIdempotency добавляет повтор ответа по Idempotency-Key: успешный и
// неуспешный ответы кэшируются, повторный запрос с тем же ключом и телом
// получает сохранённый ответ без повторного выполнения операции.
func (h *Handler) withIdempotency(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(idempotencyKeyHeader)
		if key == "" || h.idem == nil {
			next(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		record, createErr := h.idem.CreateProcessing(key, requestHash(r.Method, r.URL.Path, body), time.Now().UTC().Add(idempotencyTTL))
		if createErr != nil {
			h.replayIdempotency(w, record, createErr)
			return
		}

		recorder := &responseRecorder{header: make(http.Header)}
		next(recorder, r)

		if recorder.status >= http.StatusOK && recorder.status < http.StatusMultipleChoices {
			if markErr := h.idem.MarkDone(key, recorder.body.Bytes(), recorder.status); markErr != nil {
				h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
			}
		} else {
			if markErr := h.idem.MarkFailed(key, recorder.body.Bytes(), recorder.status); markErr != nil {
				h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent failure response")
			}
		}

		recorder.flushTo(w)
	}
}

func (h *Handler) replayIdempotency(w http.ResponseWriter, record domain.IdempotencyRecord, createErr error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: "idempotency key is already used with different request payload"})
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if record.HTTPStatus == 0 || len(record.ResponseBody) == 0 {
				h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "idempotency cache is empty"})
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(record.HTTPStatus)
			if _, err := w.Write(record.ResponseBody); err != nil {
				h.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to replay cached response")
			}
		case domain.IdempotencyStatusProcessing:
			h.writeJSON(w, http.StatusConflict, errorResponse{Error: "request with the same idempotency key is already processing"})
		default:
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "unknown idempotency record status"})
		}
	default:
		h.logger.WithError(createErr).Warn("failed to create idempotency record")
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to initialize idempotency request"})
	}
}

func requestHash(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{0})
	sum.Write([]byte(path))
	sum.Write([]byte{0})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

// responseRecorder буферизует ответ обработчика, чтобы его можно было
// сохранить в idempotency-хранилище до отправки клиенту.
type responseRecorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(p)
}

func (r *responseRecorder) flushTo(w http.ResponseWriter) {
	for key, values := range r.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	// Клиент мог закрыть соединение; ответ уже зафиксирован в хранилище.
	_, _ = w.Write(r.body.Bytes())
}
