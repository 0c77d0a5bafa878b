package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"case-console/internal/model"
)

type rateClass int

const (
	classExempt rateClass = iota
	classGeneral
	// classCredential covers login and refresh, which get a much smaller
	// budget so passwords and refresh tokens cannot be guessed quickly.
	classCredential
)

func classify(r *http.Request) rateClass {
	path := strings.ToLower(r.URL.Path)
	switch {
	case path == "/health", path == "/metrics", strings.HasPrefix(path, model.UploadsPrefix):
		return classExempt
	case r.Method == http.MethodPost && (path == "/api/v1/auth/login" || path == "/api/v1/auth/refresh"):
		return classCredential
	default:
		return classGeneral
	}
}

type visitor struct {
	general    *rate.Limiter
	credential *rate.Limiter
	lastSeen   time.Time
}

// RateLimitMiddleware keeps per-client token buckets, one per rate class.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	idleTTL    time.Duration

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if generalRPM <= 0 {
		generalRPM = 100
	}
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		idleTTL:    10 * time.Minute,
		visitors:   map[string]*visitor{},
		lastSweep:  time.Now(),
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := classify(r)
		if class == classExempt {
			next.ServeHTTP(w, r)
			return
		}

		limiter := m.limiterFor(clientIP(r), class)

		reservation := limiter.Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) limiterFor(ip string, class rateClass) *rate.Limiter {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) > m.idleTTL {
		m.sweepLocked(now)
	}

	v, ok := m.visitors[ip]
	if !ok {
		v = &visitor{
			general:    perMinute(m.generalRPM),
			credential: perMinute(m.authRPM),
		}
		m.visitors[ip] = v
	}
	v.lastSeen = now

	if class == classCredential {
		return v.credential
	}
	return v.general
}

func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	for ip, v := range m.visitors {
		if now.Sub(v.lastSeen) > m.idleTTL {
			delete(m.visitors, ip)
		}
	}
	m.lastSweep = now
}

// perMinute allows rpm requests per minute with a burst of rpm.
func perMinute(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}
