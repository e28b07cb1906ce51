package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter ограничивает частоту запросов по ключу (обычно IP адрес)
// с помощью token bucket из golang.org/x/time/rate
type RateLimiter struct {
	visitors map[string]*visitor
	logger   *slog.Logger
	stopC    chan struct{}
	now      func() time.Time
	limit    rate.Limit
	interval time.Duration
	burst    int
	ttl      time.Duration
	mu       sync.Mutex
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создает limiter на perMinute запросов в минуту с burst равным perMinute
func NewRateLimiter(perMinute int, logger *slog.Logger) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	interval := time.Minute / time.Duration(perMinute)
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		logger:   logger,
		stopC:    make(chan struct{}),
		now:      time.Now,
		limit:    rate.Every(interval),
		interval: interval,
		burst:    perMinute,
		ttl:      3 * time.Minute,
	}

	go rl.cleanup()

	return rl
}

// cleanup периодически удаляет давно неактивных клиентов
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evict()
		case <-rl.stopC:
			return
		}
	}
}

func (rl *RateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, key)
		}
	}
}

// Stop останавливает cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopC) })
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	now := rl.now()
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Middleware отклоняет запросы сверх лимита с 429
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.admit(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// admit пишет 429 и возвращает false, если лимит исчерпан
func (rl *RateLimiter) admit(w http.ResponseWriter, r *http.Request) bool {
	key := ClientIP(r)
	if rl.Allow(key) {
		return true
	}

	rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
		slog.String("ip", key),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.interval.Seconds()))))
	writeError(w, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded, please try again later")
	return false
}

// RateLimitByPath применяет strict к путям с одним из префиксов (например /auth/),
// остальные запросы ограничивает general
func RateLimitByPath(strict, general *RateLimiter, strictPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := general
			for _, prefix := range strictPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					limiter = strict
					break
				}
			}

			if !limiter.admit(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP извлекает IP адрес клиента из запроса
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
