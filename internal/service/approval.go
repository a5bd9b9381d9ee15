// approval.go — модерация капибар: одобрение, отклонение, выборка, счётчики.
//
// Переходы проверяются по таблице approval и выполняются условным
// запросом к БД (approved = false), поэтому из двух параллельных
// решений по одной капибаре успешно только одно.
// Уведомления ставятся в TaskQueue только после успешной записи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/capystore/internal/domain/approval"
	"github.com/bigkaa/capystore/internal/domain/model"
	"github.com/bigkaa/capystore/internal/repository"
)

const (
	// ApprovalChannel — канал WebSocket для модераторов.
	ApprovalChannel = "admin_approval"
	// EventApprovalUpdate — событие об изменении очереди модерации.
	EventApprovalUpdate = "approval_update"

	// DefaultSampleSize — размер выборки на модерацию по умолчанию.
	DefaultSampleSize = 5
	// MaxSampleSize — максимальный размер выборки.
	MaxSampleSize = 50

	// renameAttempts — сколько раз перевыбирать имя, совпавшее с текущим.
	renameAttempts = 8
	// fallbackName, altFallbackName — имена на случай, если генератор
	// упорно повторяет текущее.
	fallbackName    = "Capybara"
	altFallbackName = "Capy"
)

// Тексты писем.
const (
	approvedSubject = "Your capybara has been approved!"
	approvedBody    = "Thanks for submitting your capybara, we appreciate it!"
	renamedNote     = " However our admins flagged the name as inappropriate & has been changed to %q"
	viewLink        = "\n\nYou can view your capybara here: %s"
	deniedSubject   = "Your image has been denied."
	deniedBody      = "Thank you for attempting to support us, however admins have decided to deny your image."
)

// decisionsTotal — решения модераторов.
var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "capy_moderation_decisions_total",
		Help: "Общее количество решений модераторов",
	},
	[]string{"decision"},
)

// ImageCache — инвалидация кэша изображений.
type ImageCache interface {
	Forget(id string)
}

// ApprovalService — модерация капибар.
type ApprovalService struct {
	repo      repository.CapybaraRepository
	store     ArtifactStore
	names     NameGenerator
	notifier  Notifier
	tasks     TaskQueue
	cache     ImageCache
	publicURL string
	logger    *slog.Logger
}

// NewApprovalService создаёт сервис модерации.
// cache может быть nil.
func NewApprovalService(
	repo repository.CapybaraRepository,
	store ArtifactStore,
	names NameGenerator,
	notifier Notifier,
	tasks TaskQueue,
	cache ImageCache,
	publicURL string,
	logger *slog.Logger,
) *ApprovalService {
	return &ApprovalService{
		repo:      repo,
		store:     store,
		names:     names,
		notifier:  notifier,
		tasks:     tasks,
		cache:     cache,
		publicURL: publicURL,
		logger:    logger.With(slog.String("component", "approval")),
	}
}

// Approve одобряет капибару. rename — заменить имя сгенерированным.
// Email стирается той же записью, что фиксирует одобрение.
func (s *ApprovalService) Approve(ctx context.Context, id string, rename bool) (*model.Capybara, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := approval.Check(rec, approval.StateApproved); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlreadyProcessed, err)
	}

	name := rec.Name
	if rename {
		name = s.replacementName(rec.Name)
	}

	updated, err := s.repo.Approve(ctx, id, name)
	if err != nil {
		return nil, s.mapDecisionError(err)
	}

	decisionsTotal.WithLabelValues(string(approval.StateApproved)).Inc()
	s.logger.Info("Капибара одобрена",
		slog.String("id", id),
		slog.Bool("renamed", rename),
	)

	s.broadcastUpdate(id)
	if rec.Email != nil {
		body := approvedBody
		if rename {
			body += fmt.Sprintf(renamedNote, name)
		}
		body += fmt.Sprintf(viewLink, s.previewURL(id))
		s.sendEmail("email_approved", *rec.Email, approvedSubject, body)
	}
	return updated, nil
}

// Reject отклоняет капибару: удаляет запись, затем изображение.
// Отсутствие изображения — не ошибка; прочие ошибки удаления файла
// только логируются, файл подберёт SweepService.
func (s *ApprovalService) Reject(ctx context.Context, id string) error {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if err := approval.Check(rec, approval.StateRejected); err != nil {
		return fmt.Errorf("%w: %v", ErrAlreadyProcessed, err)
	}

	if err := s.repo.DeletePending(ctx, id); err != nil {
		return s.mapDecisionError(err)
	}

	if err := s.store.Delete(id); err != nil {
		s.logger.Error("Ошибка удаления изображения отклонённой капибары",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
	if s.cache != nil {
		s.cache.Forget(id)
	}

	decisionsTotal.WithLabelValues(string(approval.StateRejected)).Inc()
	s.logger.Info("Капибара отклонена", slog.String("id", id))

	s.broadcastUpdate(id)
	if rec.Email != nil {
		s.sendEmail("email_denied", *rec.Email, deniedSubject, deniedBody)
	}
	return nil
}

// SampleForModeration возвращает до n случайных капибар, ожидающих решения.
// n > MaxSampleSize урезается; при n <= 0 выборка пустая.
func (s *ApprovalService) SampleForModeration(ctx context.Context, n int) ([]model.ModerationItem, error) {
	n = clampSample(n)
	if n == 0 {
		return []model.ModerationItem{}, nil
	}

	recs, err := s.repo.SamplePending(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки на модерацию: %w", err)
	}

	items := make([]model.ModerationItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, model.ModerationItem{
			ID:         rec.ID,
			Name:       rec.Name,
			PreviewURL: s.previewURL(rec.ID),
		})
	}
	return items, nil
}

// Counts возвращает число оставшихся и всех одобренных капибар.
// Оба счётчика запрашиваются параллельно.
func (s *ApprovalService) Counts(ctx context.Context) (model.Counts, error) {
	var counts model.Counts

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountRemaining(gctx)
		counts.Remaining = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountApproved(gctx)
		counts.Total = n
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Counts{}, fmt.Errorf("ошибка подсчёта капибар: %w", err)
	}
	return counts, nil
}

func (s *ApprovalService) lookup(ctx context.Context, id string) (*model.Capybara, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения капибары: %w", err)
	}
	return rec, nil
}

// mapDecisionError переводит ошибки условного обновления в ошибки сервиса.
func (s *ApprovalService) mapDecisionError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStateChanged):
		return ErrAlreadyProcessed
	default:
		return fmt.Errorf("ошибка сохранения решения: %w", err)
	}
}

func (s *ApprovalService) broadcastUpdate(id string) {
	s.tasks.Enqueue("broadcast_approval", func(ctx context.Context) error {
		return s.notifier.Broadcast(ctx, ApprovalChannel, EventApprovalUpdate, map[string]string{"_id": id})
	})
}

func (s *ApprovalService) sendEmail(task, to, subject, body string) {
	if !s.notifier.EmailEnabled() {
		return
	}
	s.tasks.Enqueue(task, func(ctx context.Context) error {
		return s.notifier.SendEmail(ctx, to, subject, body)
	})
}

func (s *ApprovalService) previewURL(id string) string {
	return s.publicURL + "/api/capy/" + id
}

// replacementName выбирает новое имя, отличное от current.
func (s *ApprovalService) replacementName(current string) string {
	for range renameAttempts {
		if name := s.names.Name(); !strings.EqualFold(name, current) {
			return name
		}
	}
	if strings.EqualFold(current, fallbackName) {
		return altFallbackName
	}
	return fallbackName
}

func clampSample(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxSampleSize:
		return MaxSampleSize
	default:
		return n
	}
}
