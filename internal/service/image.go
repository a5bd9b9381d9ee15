// image.go — выдача изображений капибар с LRU-кэшем.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/capystore/internal/domain/model"
	"github.com/bigkaa/capystore/internal/repository"
	"github.com/bigkaa/capystore/internal/storage/filestore"
)

// Prometheus-метрики кэша изображений.
var (
	imageCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capy_image_cache_hits_total",
		Help: "Общее количество попаданий в кэш изображений.",
	})
	imageCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capy_image_cache_misses_total",
		Help: "Общее количество промахов кэша изображений.",
	})
)

// Image — изображение и его MIME-тип.
type Image struct {
	Data        []byte
	ContentType string
}

// ImageService — чтение изображений и метаданных капибар.
type ImageService struct {
	repo   repository.CapybaraRepository
	store  ArtifactStore
	cache  *expirable.LRU[string, *Image]
	logger *slog.Logger
}

// NewImageService создаёт сервис с кэшем на maxSize изображений и временем жизни ttl.
func NewImageService(
	repo repository.CapybaraRepository,
	store ArtifactStore,
	maxSize int,
	ttl time.Duration,
	logger *slog.Logger,
) *ImageService {
	return &ImageService{
		repo:   repo,
		store:  store,
		cache:  expirable.NewLRU[string, *Image](maxSize, nil, ttl),
		logger: logger.With(slog.String("component", "image")),
	}
}

// Image возвращает изображение по id.
// Нет записи или нет файла → ErrNotFound.
func (s *ImageService) Image(ctx context.Context, id string) (*Image, error) {
	if img, ok := s.cache.Get(id); ok {
		imageCacheHitsTotal.Inc()
		return img, nil
	}
	imageCacheMissesTotal.Inc()

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Read(id)
	if err != nil {
		if errors.Is(err, filestore.ErrNotExist) || errors.Is(err, filestore.ErrInvalidID) {
			s.logger.Warn("Запись есть, изображения нет", slog.String("id", id))
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения изображения: %w", err)
	}

	img := &Image{Data: data, ContentType: rec.ContentType}
	s.cache.Add(id, img)
	return img, nil
}

// Get возвращает метаданные капибары.
func (s *ImageService) Get(ctx context.Context, id string) (*model.Capybara, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения капибары: %w", err)
	}
	return rec, nil
}

// Forget удаляет изображение из кэша.
func (s *ImageService) Forget(id string) {
	s.cache.Remove(id)
}
