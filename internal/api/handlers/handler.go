// handler.go — общие интерфейсы и вспомогательные функции обработчиков API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/capystore/internal/api/errors"
	"github.com/bigkaa/capystore/internal/domain/model"
	"github.com/bigkaa/capystore/internal/service"
)

// Submitter — приём новых капибар.
type Submitter interface {
	Submit(ctx context.Context, p service.SubmitParams) (string, error)
}

// ImageProvider — выдача изображений.
type ImageProvider interface {
	Image(ctx context.Context, id string) (*service.Image, error)
}

// Moderator — операции модерации.
type Moderator interface {
	Approve(ctx context.Context, id string, rename bool) (*model.Capybara, error)
	Reject(ctx context.Context, id string) error
	SampleForModeration(ctx context.Context, n int) ([]model.ModerationItem, error)
	Counts(ctx context.Context) (model.Counts, error)
}

// Sweeper — ручной запуск очистки.
type Sweeper interface {
	RunOnce(ctx context.Context) *service.SweepResult
}

// Subscriber — подписка на WebSocket-канал.
type Subscriber interface {
	ServeWS(w http.ResponseWriter, r *http.Request, channel string) error
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и отдаются как 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrMissingField):
		apierrors.MissingField(w, err.Error())
	case errors.Is(err, service.ErrDecode):
		apierrors.DecodeError(w, "Не удалось декодировать изображение")
	case errors.Is(err, service.ErrDuplicateImage):
		apierrors.DuplicateImage(w, "Похожее изображение уже загружено")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Капибара не найдена")
	case errors.Is(err, service.ErrAlreadyProcessed):
		apierrors.AlreadyProcessed(w, "Решение по капибаре уже принято")
	default:
		logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
