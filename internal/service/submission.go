// submission.go — приём новых капибар.
//
// Порядок: проверка полей → отпечаток → поиск дубликата → id →
// запись в БД → сохранение изображения. Изображение никогда не пишется
// раньше записи; при ошибке записи файла запись остаётся сиротой
// и позже удаляется SweepService.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/capystore/internal/domain/model"
	"github.com/bigkaa/capystore/internal/phash"
	"github.com/bigkaa/capystore/internal/repository"
)

// submissionsTotal — отправки по результату.
var submissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "capy_submissions_total",
		Help: "Общее количество отправленных капибар по результату",
	},
	[]string{"result"},
)

var validName = regexp.MustCompile(`^[A-Za-z]+$`)

// SubmitParams — данные отправки.
type SubmitParams struct {
	// Image — байты изображения (обязательно)
	Image []byte
	// ContentType — MIME-тип из загрузки; пустой — определяется по содержимому
	ContentType string
	// Name — желаемое имя; невалидное заменяется сгенерированным
	Name string
	// Email — адрес для уведомления; невалидный молча отбрасывается
	Email string
}

// SubmissionService — приём капибар.
type SubmissionService struct {
	repo     repository.CapybaraRepository
	store    ArtifactStore
	hasher   Hasher
	ids      IDGenerator
	names    NameGenerator
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSubmissionService создаёт сервис приёма капибар.
func NewSubmissionService(
	repo repository.CapybaraRepository,
	store ArtifactStore,
	hasher Hasher,
	ids IDGenerator,
	names NameGenerator,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		repo:     repo,
		store:    store,
		hasher:   hasher,
		ids:      ids,
		names:    names,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With(slog.String("component", "submission")),
	}
}

// Submit принимает изображение и возвращает id новой капибары.
func (s *SubmissionService) Submit(ctx context.Context, p SubmitParams) (string, error) {
	if len(p.Image) == 0 {
		submissionsTotal.WithLabelValues("missing_field").Inc()
		return "", fmt.Errorf("%w: file", ErrMissingField)
	}

	name := s.normalizeName(p.Name)
	email := s.normalizeEmail(p.Email)

	fingerprint, err := s.hasher.Hash(p.Image)
	if err != nil {
		submissionsTotal.WithLabelValues("decode_error").Inc()
		if errors.Is(err, phash.ErrDecode) {
			return "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return "", fmt.Errorf("ошибка вычисления отпечатка: %w", err)
	}

	_, err = s.repo.FindByFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		submissionsTotal.WithLabelValues("duplicate").Inc()
		return "", ErrDuplicateImage
	case !errors.Is(err, repository.ErrNotFound):
		submissionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("ошибка поиска дубликата: %w", err)
	}

	id, err := s.ids.NewID()
	if err != nil {
		submissionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("ошибка генерации id: %w", err)
	}

	rec := &model.Capybara{
		ID:          id,
		Name:        name,
		Fingerprint: fingerprint,
		Email:       email,
		ContentType: detectContentType(p.ContentType, p.Image),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		// Параллельная отправка того же изображения упирается в уникальный индекс
		if errors.Is(err, repository.ErrConflict) {
			submissionsTotal.WithLabelValues("duplicate").Inc()
			return "", ErrDuplicateImage
		}
		submissionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("ошибка сохранения записи: %w", err)
	}

	saved, err := s.store.Save(id, bytes.NewReader(p.Image))
	if err != nil {
		submissionsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Запись создана, но изображение не сохранено",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}

	submissionsTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("Капибара принята на модерацию",
		slog.String("id", id),
		slog.String("fingerprint", fingerprint),
		slog.String("content_type", rec.ContentType),
		slog.Int64("size", saved.Size),
		slog.Bool("has_email", email != nil),
	)
	return id, nil
}

// normalizeName возвращает имя с заглавной буквы или сгенерированное.
func (s *SubmissionService) normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if !validName.MatchString(name) {
		return s.names.Name()
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}

// normalizeEmail возвращает адрес или nil, если он пуст или невалиден.
func (s *SubmissionService) normalizeEmail(email string) *string {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if err := s.validate.Var(email, "email"); err != nil {
		s.logger.Debug("Невалидный email отброшен")
		return nil
	}
	return &email
}

// detectContentType берёт тип из загрузки или определяет по содержимому.
func detectContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}
