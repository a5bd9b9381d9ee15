// ratelimit.go — ограничение частоты запросов с одного клиента.
// Token bucket (golang.org/x/time/rate) на каждый IP; лимитеры хранятся
// в expirable LRU и вытесняются по TTL.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	apierrors "github.com/bigkaa/capystore/internal/api/errors"
)

const (
	// maxTrackedClients — максимум одновременно отслеживаемых клиентов.
	maxTrackedClients = 10000
	// limiterIdleTTL — время жизни лимитера клиента.
	limiterIdleTTL = 10 * time.Minute
)

// RateLimiter — лимит запросов в минуту на клиентский IP.
type RateLimiter struct {
	limit rate.Limit
	burst int
	// retryAfter — секунд до появления следующего токена
	retryAfter int
	logger     *slog.Logger

	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter создаёт лимитер на perMinute запросов в минуту.
// Всплеск допускается на весь минутный объём.
func NewRateLimiter(perMinute int, logger *slog.Logger) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{
		limit:      rate.Limit(float64(perMinute) / 60),
		burst:      perMinute,
		retryAfter: (60 + perMinute - 1) / perMinute,
		limiters:   expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, limiterIdleTTL),
		logger:     logger.With(slog.String("component", "rate_limit")),
	}
}

// Middleware возвращает HTTP middleware, отвечающий 429 при превышении лимита.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.limiter(ip).Allow() {
				rl.logger.Debug("Превышен лимит запросов", slog.String("client", ip))
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter))
				apierrors.RateLimited(w, "Слишком много запросов, попробуйте позже")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limiter возвращает лимитер клиента, создавая его при первом обращении.
func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters.Get(ip); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Add(ip, l)
	return l
}

// clientIP извлекает IP из RemoteAddr (без порта).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
