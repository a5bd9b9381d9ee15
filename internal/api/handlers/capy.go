// capy.go — публичные endpoints: отправка капибары и выдача изображения.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/capystore/internal/api/errors"
	"github.com/bigkaa/capystore/internal/service"
)

// multipartOverhead — запас на заголовки и текстовые поля формы.
const multipartOverhead = 64 * 1024

// CapyHandler — обработчик /api/capy.
type CapyHandler struct {
	submitter     Submitter
	images        ImageProvider
	maxUploadSize int64
	logger        *slog.Logger
}

// NewCapyHandler создаёт обработчик. maxUploadSize — лимит размера изображения.
func NewCapyHandler(submitter Submitter, images ImageProvider, maxUploadSize int64, logger *slog.Logger) *CapyHandler {
	return &CapyHandler{
		submitter:     submitter,
		images:        images,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "capy_handler")),
	}
}

// submitResponse — ответ на успешную отправку.
type submitResponse struct {
	ID string `json:"_id"`
}

// Submit — POST /api/capy. Multipart-форма: file (обязательно), name, email.
func (h *CapyHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.PayloadTooLarge(w, "Изображение превышает допустимый размер")
			return
		}
		apierrors.ValidationError(w, "Ожидается multipart/form-data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			apierrors.MissingField(w, "Поле 'file' обязательно")
			return
		}
		apierrors.ValidationError(w, "Некорректное поле 'file'")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		apierrors.PayloadTooLarge(w, "Изображение превышает допустимый размер")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	id, err := h.submitter.Submit(r.Context(), service.SubmitParams{
		Image:       data,
		ContentType: header.Header.Get("Content-Type"),
		Name:        r.FormValue("name"),
		Email:       r.FormValue("email"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{ID: id})
}

// GetImage — GET /api/capy/{id}. Отдаёт оригинал изображения.
func (h *CapyHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	img, err := h.images.Image(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
