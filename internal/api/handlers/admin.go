// admin.go — административные endpoints модерации.
// Все маршруты доступны только с валидным JWT администратора.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/capystore/internal/api/errors"
	"github.com/bigkaa/capystore/internal/api/middleware"
	"github.com/bigkaa/capystore/internal/service"
)

// AdminHandler — обработчик /api/admin.
type AdminHandler struct {
	moderator  Moderator
	sweeper    Sweeper
	subscriber Subscriber
	logger     *slog.Logger
}

// NewAdminHandler создаёт обработчик административных endpoints.
func NewAdminHandler(moderator Moderator, sweeper Sweeper, subscriber Subscriber, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		moderator:  moderator,
		sweeper:    sweeper,
		subscriber: subscriber,
		logger:     logger.With(slog.String("component", "admin_handler")),
	}
}

// decisionResponse — состояние капибары после одобрения.
type decisionResponse struct {
	ID       string    `json:"_id"`
	Name     string    `json:"name"`
	Approved bool      `json:"approved"`
	Created  time.Time `json:"created"`
}

// ListPending — GET /api/admin/approval?limit=N.
// Случайная выборка капибар, ожидающих решения (по умолчанию 5).
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultSampleSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			apierrors.ValidationError(w, "Параметр limit должен быть неотрицательным целым числом")
			return
		}
		limit = n
	}

	items, err := h.moderator.SampleForModeration(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Approve — POST /api/admin/approval/{id}?changeName=true.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rename := r.URL.Query().Get("changeName") == "true"

	rec, err := h.moderator.Approve(r.Context(), id, rename)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Решение модератора",
		slog.String("id", id),
		slog.String("decision", "approve"),
		slog.String("admin", middleware.SubjectFromContext(r.Context())),
	)
	writeJSON(w, http.StatusOK, decisionResponse{
		ID:       rec.ID,
		Name:     rec.Name,
		Approved: rec.Approved,
		Created:  rec.Created,
	})
}

// Reject — DELETE /api/admin/approval/{id}.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.moderator.Reject(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Решение модератора",
		slog.String("id", id),
		slog.String("decision", "reject"),
		slog.String("admin", middleware.SubjectFromContext(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

// Remaining — GET /api/admin/remaining.
func (h *AdminHandler) Remaining(w http.ResponseWriter, r *http.Request) {
	counts, err := h.moderator.Counts(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Sweep — POST /api/admin/sweep. Синхронный запуск очистки.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result := h.sweeper.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, result)
}

// Subscribe — GET /api/admin/ws?channel=admin_approval.
// Переводит соединение в WebSocket и держит его до отключения клиента.
func (h *AdminHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = service.ApprovalChannel
	}
	if channel != service.ApprovalChannel {
		apierrors.ValidationError(w, "Неизвестный канал "+strconv.Quote(channel))
		return
	}

	// Ответ об ошибке upgrade уже записан upgrader'ом
	if err := h.subscriber.ServeWS(w, r, channel); err != nil {
		h.logger.Warn("WebSocket не установлен", slog.String("error", err.Error()))
	}
}
