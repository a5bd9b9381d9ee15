// dephealth.go — topologymetrics: состояние PostgreSQL как зависимости
// сервиса капибар. Проверка идёт через тот же pgxpool, что и запросы
// к таблице capybaras, поэтому метрика отражает реальную доступность
// хранилища записей.
//
// Метрики SDK (app_dependency_*) отдаются на /metrics вместе с capy_*.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// recordStoreDependency — имя зависимости в метриках.
const recordStoreDependency = "capybara-records"

// DephealthConfig — параметры мониторинга зависимостей.
// PGURL не содержит пароля и идёт в лейблы метрик.
// Registerer == nil означает глобальный registry.
type DephealthConfig struct {
	ServiceID     string
	Group         string
	DB            *sql.DB
	PGURL         string
	CheckInterval time.Duration
	Registerer    prometheus.Registerer
}

// DephealthService — мониторинг хранилища записей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService настраивает проверку PostgreSQL (critical).
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency(recordStoreDependency, dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PGURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
	}
	if cfg.Registerer != nil {
		opts = append(opts, dephealth.WithRegisterer(cfg.Registerer))
	}

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг хранилища записей запущен",
		slog.String("dependency", recordStoreDependency),
	)
	return ds.dh.Start(ctx)
}

// Stop останавливает проверку.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг хранилища записей остановлен")
}
