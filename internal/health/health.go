package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Health-эндпоинты сервиса каталога: /healthz отдаёт разбивку по зависимостям
// (postgres, redis), /livez и /readyz предназначены для оркестратора.

// Status — состояние сервиса либо отдельной зависимости.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Check — результат одной проверки зависимости.
type Check struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Response — агрегированный ответ /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker выполняет одну проверку зависимости.
type Checker interface {
	CheckHealth() Check
}

// Handler собирает результаты зарегистрированных проверок и отвечает на
// health-запросы. Худший статус зависимости определяет статус сервиса.
type Handler struct {
	mu      sync.RWMutex
	deps    map[string]Checker
	version string
	started time.Time
}

// NewHandler создаёт handler без зарегистрированных проверок.
func NewHandler(version string) *Handler {
	return &Handler{
		deps:    make(map[string]Checker),
		version: version,
		started: time.Now(),
	}
}

// RegisterChecker добавляет проверку зависимости под заданным именем.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps[name] = checker
}

// RegisterFunc регистрирует проверку-функцию: nil — healthy, ошибка — unhealthy.
func (h *Handler) RegisterFunc(name string, fn func() error) {
	h.RegisterChecker(name, funcChecker{name: name, fn: fn})
}

// evaluate прогоняет все проверки и сводит их к общему статусу.
// Проверки выполняются вне блокировки: медленный ping БД не должен
// задерживать регистрацию других проверок.
func (h *Handler) evaluate() (Response, int) {
	h.mu.RLock()
	deps := make(map[string]Checker, len(h.deps))
	for name, checker := range h.deps {
		deps[name] = checker
	}
	h.mu.RUnlock()

	overall := StatusHealthy
	checks := make(map[string]Check, len(deps))
	for name, checker := range deps {
		check := checker.CheckHealth()
		checks[name] = check
		if check.Status.rank() > overall.rank() {
			overall = check.Status
		}
	}

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	return Response{
		Status:        overall,
		Timestamp:     time.Now(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}, code
}

// ServeHTTP отвечает на /healthz полной разбивкой по зависимостям.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	response, code := h.evaluate()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

// ReadinessHandler отвечает на /readyz: готов, пока ни одна зависимость
// не unhealthy.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	if _, code := h.evaluate(); code != http.StatusOK {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler отвечает на /livez: процесс жив, пока отвечает HTTP.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type funcChecker struct {
	name string
	fn   func() error
}

func (c funcChecker) CheckHealth() Check {
	started := time.Now()
	err := c.fn()

	check := Check{
		Name:      c.name,
		Status:    StatusHealthy,
		ElapsedMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}
