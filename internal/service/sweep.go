// sweep.go — фоновая очистка осиротевших данных.
//
// Sweep выполняет две задачи:
//  1. Удаляет изображения, для которых нет записи в БД
//     (например, запись удалена, а файл удалить не удалось)
//  2. Удаляет pending-записи без изображения
//     (отправка упала между вставкой записи и записью файла)
//
// Обе фазы трогают только объекты старше grace, чтобы не задеть
// отправку, которая ещё выполняется.
// Запускается как горутина с периодическим тикером (CAPY_SWEEP_INTERVAL)
// и вручную через POST /api/admin/sweep.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/capystore/internal/repository"
)

// Prometheus метрики очистки
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capy_sweep_runs_total",
		Help: "Общее количество запусков очистки",
	})

	sweepArtifactsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capy_sweep_artifacts_deleted_total",
		Help: "Общее количество удалённых изображений без записи",
	})

	sweepRecordsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capy_sweep_records_deleted_total",
		Help: "Общее количество удалённых записей без изображения",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "capy_sweep_duration_seconds",
		Help:    "Длительность очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	// ArtifactsDeleted — удалено изображений без записи
	ArtifactsDeleted int `json:"artifacts_deleted"`
	// RecordsDeleted — удалено записей без изображения
	RecordsDeleted int `json:"records_deleted"`
	// Errors — количество ошибок
	Errors int `json:"errors"`
	// Duration — длительность выполнения
	Duration time.Duration `json:"-"`
}

// SweepService — фоновая очистка осиротевших изображений и записей.
type SweepService struct {
	repo     repository.CapybaraRepository
	store    ArtifactStore
	cache    ImageCache
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweepService создаёт сервис очистки. cache может быть nil.
func NewSweepService(
	repo repository.CapybaraRepository,
	store ArtifactStore,
	cache ImageCache,
	interval, grace time.Duration,
	logger *slog.Logger,
) *SweepService {
	return &SweepService{
		repo:     repo,
		store:    store,
		cache:    cache,
		interval: interval,
		grace:    grace,
		logger:   logger.With(slog.String("component", "sweep")),
	}
}

// Start запускает фоновую горутину очистки.
func (s *SweepService) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx)

	s.logger.Info("Очистка запущена",
		slog.String("interval", s.interval.String()),
		slog.String("grace", s.grace.String()),
	)
}

// Stop останавливает фоновую очистку и ждёт завершения текущего прохода.
func (s *SweepService) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	s.logger.Info("Очистка остановлена")
}

func (s *SweepService) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: параллельные вызовы выполняются по очереди.
func (s *SweepService) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}
	cutoff := start.Add(-s.grace)

	s.logger.Debug("Очистка начата")

	deleted, errs := s.sweepArtifacts(ctx, cutoff)
	result.ArtifactsDeleted = deleted
	result.Errors += errs

	deleted, errs = s.sweepRecords(ctx, cutoff)
	result.RecordsDeleted = deleted
	result.Errors += errs

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepArtifactsDeletedTotal.Add(float64(result.ArtifactsDeleted))
	sweepRecordsDeletedTotal.Add(float64(result.RecordsDeleted))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	s.logger.Info("Очистка завершена",
		slog.Int("artifacts_deleted", result.ArtifactsDeleted),
		slog.Int("records_deleted", result.RecordsDeleted),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
	return result
}

// sweepArtifacts удаляет изображения старше cutoff без записи в БД.
func (s *SweepService) sweepArtifacts(ctx context.Context, cutoff time.Time) (deleted, errs int) {
	entries, err := s.store.List()
	if err != nil {
		s.logger.Error("Sweep: ошибка чтения хранилища", slog.String("error", err.Error()))
		return 0, 1
	}

	var candidates []string
	for _, e := range entries {
		if e.ModTime.Before(cutoff) {
			candidates = append(candidates, e.ID)
		}
	}
	if len(candidates) == 0 {
		return 0, 0
	}

	existing, err := s.repo.ExistingIDs(ctx, candidates)
	if err != nil {
		s.logger.Error("Sweep: ошибка проверки записей", slog.String("error", err.Error()))
		return 0, 1
	}

	for _, id := range candidates {
		if existing[id] {
			continue
		}
		if err := s.store.Delete(id); err != nil {
			s.logger.Error("Sweep: ошибка удаления изображения",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			errs++
			continue
		}
		s.forget(id)
		s.logger.Debug("Sweep: удалено изображение без записи", slog.String("id", id))
		deleted++
	}
	return deleted, errs
}

// sweepRecords удаляет pending-записи старше cutoff без изображения.
func (s *SweepService) sweepRecords(ctx context.Context, cutoff time.Time) (deleted, errs int) {
	ids, err := s.repo.ListPendingBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Sweep: ошибка получения pending-записей", slog.String("error", err.Error()))
		return 0, 1
	}

	for _, id := range ids {
		exists, err := s.store.Exists(id)
		if err != nil {
			s.logger.Error("Sweep: ошибка проверки изображения",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			errs++
			continue
		}
		if exists {
			continue
		}

		err = s.repo.DeletePending(ctx, id)
		switch {
		case err == nil:
			s.forget(id)
			s.logger.Debug("Sweep: удалена запись без изображения", slog.String("id", id))
			deleted++
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrStateChanged):
			// Запись удалена или одобрена параллельно
		default:
			s.logger.Error("Sweep: ошибка удаления записи",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			errs++
		}
	}
	return deleted, errs
}

func (s *SweepService) forget(id string) {
	if s.cache != nil {
		s.cache.Forget(id)
	}
}
