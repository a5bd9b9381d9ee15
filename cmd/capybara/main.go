// Точка входа сервиса капибар.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// собирает хранилище изображений, уведомления и сервисный слой,
// запускает фоновую очистку и topologymetrics,
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/capystore/internal/api/handlers"
	"github.com/bigkaa/capystore/internal/api/middleware"
	"github.com/bigkaa/capystore/internal/config"
	"github.com/bigkaa/capystore/internal/database"
	"github.com/bigkaa/capystore/internal/idgen"
	"github.com/bigkaa/capystore/internal/namegen"
	"github.com/bigkaa/capystore/internal/notify"
	"github.com/bigkaa/capystore/internal/phash"
	"github.com/bigkaa/capystore/internal/repository"
	"github.com/bigkaa/capystore/internal/server"
	"github.com/bigkaa/capystore/internal/service"
	"github.com/bigkaa/capystore/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Сервис капибар запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("public_url", cfg.PublicURL),
	)

	if !cfg.SMTPEnabled() {
		logger.Warn("CAPY_SMTP_HOST не задан, письма отправляться не будут")
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище изображений
	store, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Хранилище изображений готово", slog.String("data_dir", cfg.DataDir))

	// 6. Repository
	capyRepo := repository.NewCapybaraRepository(pool)

	// 7. Уведомления: очередь фоновых задач, WebSocket hub, почта
	tasks := notify.NewTaskQueue(cfg.TaskWorkers, cfg.TaskQueueSize, cfg.TaskTimeout, logger)
	hub := notify.NewHub(logger)
	mailer := notify.NewMailer(notify.MailerConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
	notifier := notify.NewNotifier(hub, mailer)

	// 8. Services
	names := namegen.New()
	imageSvc := service.NewImageService(capyRepo, store, cfg.ImageCacheSize, cfg.ImageCacheTTL, logger)
	submissionSvc := service.NewSubmissionService(
		capyRepo, store,
		phash.Hasher{}, idgen.New(cfg.IDLength), names,
		logger,
	)
	approvalSvc := service.NewApprovalService(
		capyRepo, store, names,
		notifier, tasks, imageSvc,
		cfg.PublicURL,
		logger,
	)
	sweepSvc := service.NewSweepService(
		capyRepo, store, imageSvc,
		cfg.SweepInterval, cfg.SweepGrace,
		logger,
	)

	// 9. Фоновая очистка сирот
	sweepSvc.Start(ctx)

	// 9.1 topologymetrics: доступность хранилища записей
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "capystore",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PGURL:         cfg.DatabaseURL(),
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 10. HTTP handlers и middleware
	h := server.Handlers{
		Health: handlers.NewHealthHandler(database.NewReadinessChecker(pool), store),
		Capy:   handlers.NewCapyHandler(submissionSvc, imageSvc, cfg.MaxUploadSize, logger),
		Admin:  handlers.NewAdminHandler(approvalSvc, sweepSvc, hub, logger),
	}
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.JWTLeeway, logger)
	submitLimiter := middleware.NewRateLimiter(cfg.SubmitRatePerMinute, logger)

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, jwtAuth, submitLimiter)
	runErr := srv.Run()
	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
	}

	// 12. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	sweepSvc.Stop()
	// Очередь дорабатывает уже принятые уведомления
	tasks.Stop()
	hub.Close()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Сервис капибар остановлен")
	if runErr != nil {
		os.Exit(1)
	}
}
