// Пакет server — HTTP-сервер сервиса капибар с graceful shutdown.
// Без TLS — TLS termination на внешнем прокси.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/capystore/internal/api/handlers"
	"github.com/bigkaa/capystore/internal/api/middleware"
	"github.com/bigkaa/capystore/internal/config"
)

// Handlers — обработчики, из которых собираются маршруты.
type Handlers struct {
	Health *handlers.HealthHandler
	Capy   *handlers.CapyHandler
	Admin  *handlers.AdminHandler
}

// Server — HTTP-сервер сервиса.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	h Handlers,
	jwtAuth *middleware.JWTAuth,
	submitLimiter *middleware.RateLimiter,
) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(logger, h, jwtAuth, submitLimiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер:
//   - /health/*, /metrics — без аутентификации
//   - POST /api/capy — с лимитом частоты на клиента
//   - /api/admin/* — только с JWT администратора
func NewRouter(
	logger *slog.Logger,
	h Handlers,
	jwtAuth *middleware.JWTAuth,
	submitLimiter *middleware.RateLimiter,
) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	router.Route("/api/capy", func(r chi.Router) {
		r.With(submitLimiter.Middleware()).Post("/", h.Capy.Submit)
		r.Get("/{id}", h.Capy.GetImage)
	})

	router.Route("/api/admin", func(r chi.Router) {
		r.Use(jwtAuth.Middleware())

		r.Get("/approval", h.Admin.ListPending)
		r.Post("/approval/{id}", h.Admin.Approve)
		r.Delete("/approval/{id}", h.Admin.Reject)
		r.Get("/remaining", h.Admin.Remaining)
		r.Post("/sweep", h.Admin.Sweep)
		r.Get("/ws", h.Admin.Subscribe)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
