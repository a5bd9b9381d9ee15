// Пакет config — загрузка и валидация конфигурации сервиса капибар
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Внешний базовый URL сервиса (для ссылок на превью и в письмах)
	PublicURL string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Хранилище изображений ---

	// Директория хранения оригиналов изображений
	DataDir string
	// Максимальный размер загружаемого изображения в байтах
	MaxUploadSize int64
	// Длина идентификатора капибары
	IDLength int

	// --- Администрирование ---

	// Секрет HS256 для проверки токенов администраторов
	JWTSecret string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Лимит отправок капибар в минуту с одного адреса
	SubmitRatePerMinute int

	// --- SMTP (опционально) ---

	// Хост SMTP; пустое значение отключает отправку писем
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// --- Фоновые задачи ---

	// Количество воркеров очереди уведомлений
	TaskWorkers int
	// Размер очереди уведомлений
	TaskQueueSize int
	// Таймаут одной фоновой задачи
	TaskTimeout time.Duration

	// --- Очистка сирот ---

	// Интервал фоновой очистки
	SweepInterval time.Duration
	// Минимальный возраст сироты перед удалением
	SweepGrace time.Duration

	// --- Кэш изображений ---

	ImageCacheSize int
	ImageCacheTTL  time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CAPY_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("CAPY_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("CAPY_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CAPY_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CAPY_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CAPY_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("CAPY_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CAPY_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// CAPY_PUBLIC_URL — внешний URL (по умолчанию http://127.0.0.1:8000)
	cfg.PublicURL = strings.TrimRight(getEnvDefault("CAPY_PUBLIC_URL", "http://127.0.0.1:8000"), "/")
	if u, parseErr := url.Parse(cfg.PublicURL); parseErr != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("CAPY_PUBLIC_URL: некорректный URL %q", cfg.PublicURL)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("CAPY_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("CAPY_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("CAPY_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("CAPY_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("CAPY_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("CAPY_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("CAPY_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("CAPY_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Хранилище изображений ---

	// CAPY_DATA_DIR — директория оригиналов (по умолчанию ./capybaras)
	cfg.DataDir = getEnvDefault("CAPY_DATA_DIR", "./capybaras")

	// CAPY_MAX_UPLOAD_SIZE — максимальный размер изображения (по умолчанию 10 MiB)
	cfg.MaxUploadSize, err = getEnvInt64("CAPY_MAX_UPLOAD_SIZE", 10*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("CAPY_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("CAPY_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// CAPY_ID_LENGTH — длина идентификатора (по умолчанию 21)
	cfg.IDLength, err = getEnvInt("CAPY_ID_LENGTH", 21)
	if err != nil {
		return nil, fmt.Errorf("CAPY_ID_LENGTH: %w", err)
	}
	if cfg.IDLength < 21 || cfg.IDLength > 64 {
		return nil, fmt.Errorf("CAPY_ID_LENGTH: значение %d вне допустимого диапазона 21-64", cfg.IDLength)
	}

	// --- Администрирование ---

	cfg.JWTSecret, err = getEnvRequired("CAPY_JWT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.JWTLeeway, err = getEnvDuration("CAPY_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CAPY_JWT_LEEWAY: %w", err)
	}

	cfg.SubmitRatePerMinute, err = getEnvInt("CAPY_SUBMIT_RATE_PER_MINUTE", 20)
	if err != nil {
		return nil, fmt.Errorf("CAPY_SUBMIT_RATE_PER_MINUTE: %w", err)
	}
	if cfg.SubmitRatePerMinute < 1 {
		return nil, fmt.Errorf("CAPY_SUBMIT_RATE_PER_MINUTE: значение должно быть не меньше 1")
	}

	// --- SMTP ---

	cfg.SMTPHost = getEnvDefault("CAPY_SMTP_HOST", "")
	cfg.SMTPPort, err = getEnvInt("CAPY_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("CAPY_SMTP_PORT: %w", err)
	}
	cfg.SMTPUser = getEnvDefault("CAPY_SMTP_USER", "")
	cfg.SMTPPassword = getEnvDefault("CAPY_SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnvDefault("CAPY_SMTP_FROM", cfg.SMTPUser)
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("CAPY_SMTP_FROM: обязателен, если задан CAPY_SMTP_HOST")
	}

	// --- Фоновые задачи ---

	cfg.TaskWorkers, err = getEnvInt("CAPY_TASK_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("CAPY_TASK_WORKERS: %w", err)
	}
	if cfg.TaskWorkers < 1 || cfg.TaskWorkers > 64 {
		return nil, fmt.Errorf("CAPY_TASK_WORKERS: значение %d вне допустимого диапазона 1-64", cfg.TaskWorkers)
	}

	cfg.TaskQueueSize, err = getEnvInt("CAPY_TASK_QUEUE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("CAPY_TASK_QUEUE_SIZE: %w", err)
	}
	if cfg.TaskQueueSize < 1 {
		return nil, fmt.Errorf("CAPY_TASK_QUEUE_SIZE: значение должно быть не меньше 1")
	}

	cfg.TaskTimeout, err = getEnvDuration("CAPY_TASK_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CAPY_TASK_TIMEOUT: %w", err)
	}

	// --- Очистка сирот ---

	cfg.SweepInterval, err = getEnvDuration("CAPY_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CAPY_SWEEP_INTERVAL: %w", err)
	}

	cfg.SweepGrace, err = getEnvDuration("CAPY_SWEEP_GRACE", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CAPY_SWEEP_GRACE: %w", err)
	}

	// --- Кэш изображений ---

	cfg.ImageCacheSize, err = getEnvInt("CAPY_IMAGE_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("CAPY_IMAGE_CACHE_SIZE: %w", err)
	}
	if cfg.ImageCacheSize < 1 {
		return nil, fmt.Errorf("CAPY_IMAGE_CACHE_SIZE: значение должно быть не меньше 1")
	}

	cfg.ImageCacheTTL, err = getEnvDuration("CAPY_IMAGE_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CAPY_IMAGE_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("CAPY_DEPHEALTH_GROUP", "capystore")
	cfg.DephealthCheckInterval, err = getEnvDuration("CAPY_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CAPY_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("CAPY_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CAPY_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SMTPEnabled — true, если отправка писем настроена.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("длительность должна быть положительной: %q", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
