// queue.go — очередь фоновых задач (fire-and-forget).
//
// Фиксированный пул воркеров читает задачи из ограниченного канала.
// Каждая задача выполняется с таймаутом, без повторов и без гарантии порядка.
// При переполнении очереди задача отбрасывается с предупреждением.
// Stop() дожидается выполнения уже поставленных задач.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики очереди задач
var (
	// tasksTotal — задачи по результату: ok, failed, dropped.
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capy_tasks_total",
			Help: "Общее количество фоновых задач по результату",
		},
		[]string{"task", "result"},
	)

	// taskDuration — длительность выполнения задачи.
	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capy_task_duration_seconds",
			Help:    "Длительность выполнения фоновых задач в секундах",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"task"},
	)

	// tasksQueued — текущая длина очереди.
	tasksQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "capy_tasks_queued",
		Help: "Количество задач, ожидающих выполнения",
	})
)

type task struct {
	id   string
	name string
	fn   func(ctx context.Context) error
}

// TaskQueue — ограниченная очередь фоновых задач с пулом воркеров.
type TaskQueue struct {
	queue   chan task
	timeout time.Duration
	logger  *slog.Logger

	wg      sync.WaitGroup
	mu      sync.RWMutex // защищает stopped и закрытие queue
	stopped bool
}

// NewTaskQueue создаёт очередь и запускает workers воркеров.
func NewTaskQueue(workers, size int, timeout time.Duration, logger *slog.Logger) *TaskQueue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}

	q := &TaskQueue{
		queue:   make(chan task, size),
		timeout: timeout,
		logger:  logger.With(slog.String("component", "task_queue")),
	}

	for range workers {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue ставит задачу в очередь и сразу возвращает управление.
// Возвращает false, если очередь остановлена или переполнена.
func (q *TaskQueue) Enqueue(name string, fn func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		q.logger.Warn("Очередь остановлена, задача отброшена", slog.String("task", name))
		tasksTotal.WithLabelValues(name, "dropped").Inc()
		return false
	}

	t := task{id: uuid.New().String(), name: name, fn: fn}
	select {
	case q.queue <- t:
		tasksQueued.Inc()
		return true
	default:
		q.logger.Warn("Очередь задач переполнена, задача отброшена",
			slog.String("task", name),
			slog.String("task_id", t.id),
		)
		tasksTotal.WithLabelValues(name, "dropped").Inc()
		return false
	}
}

// Stop прекращает приём задач и ждёт завершения уже поставленных.
// Повторный вызов безопасен.
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.queue)
	}
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *TaskQueue) worker() {
	defer q.wg.Done()
	for t := range q.queue {
		tasksQueued.Dec()
		q.run(t)
	}
}

// run выполняет задачу с таймаутом. Паника задачи не роняет воркер.
func (q *TaskQueue) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("паника в задаче: %v", r)
			}
		}()
		return t.fn(ctx)
	}()
	taskDuration.WithLabelValues(t.name).Observe(time.Since(start).Seconds())

	if err != nil {
		tasksTotal.WithLabelValues(t.name, "failed").Inc()
		q.logger.Warn("Фоновая задача завершилась с ошибкой",
			slog.String("task", t.name),
			slog.String("task_id", t.id),
			slog.String("error", err.Error()),
		)
		return
	}
	tasksTotal.WithLabelValues(t.name, "ok").Inc()
	q.logger.Debug("Фоновая задача выполнена",
		slog.String("task", t.name),
		slog.String("task_id", t.id),
		slog.Duration("duration", time.Since(start)),
	)
}
