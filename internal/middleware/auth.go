// Package middleware holds the HTTP middleware of the alert API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

type contextKey string

const UserContextKey contextKey = "user"

// publicPaths are served without a token. Login lives in the admin app.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

type AuthMiddleware struct {
	authService *auth.Service
}

func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate requires a valid bearer token and stores its claims in the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		token, err := m.authService.ExtractTokenFromHeader(header)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			writeError(w, http.StatusUnauthorized, "Token expired")
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, claims)))
	})
}

// RequirePermission rejects callers whose role may not perform action.
func (m *AuthMiddleware) RequirePermission(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "User context not found")
				return
			}
			if !models.HasPermission(claims.Role, action) {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RateLimitMiddleware is a per-client sliding window held in memory.
// Forwarding headers are honoured only when trustProxy is set.
type RateLimitMiddleware struct {
	mu         sync.Mutex
	hits       map[string][]time.Time
	now        func() time.Time
	trustProxy bool
	lastSweep  time.Time
}

func NewRateLimitMiddleware(trustProxy bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		hits:       make(map[string][]time.Time),
		now:        time.Now,
		trustProxy: trustProxy,
	}
}

// RateLimit allows maxRequests per client within windowSeconds.
func (m *RateLimitMiddleware) RateLimit(maxRequests int, windowSeconds int) func(http.Handler) http.Handler {
	window := time.Duration(windowSeconds) * time.Second
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.allow(m.clientIP(r), maxRequests, window) {
				w.Header().Set("Retry-After", strconv.Itoa(windowSeconds))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *RateLimitMiddleware) allow(client string, limit int, window time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-window)
	if now.Sub(m.lastSweep) >= window {
		m.sweep(cutoff)
		m.lastSweep = now
	}

	recent := prune(m.hits[client], cutoff)
	if len(recent) >= limit {
		m.hits[client] = recent
		return false
	}
	m.hits[client] = append(recent, now)
	return true
}

// sweep drops clients with no hit after cutoff.
func (m *RateLimitMiddleware) sweep(cutoff time.Time) {
	for client, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(m.hits, client)
		}
	}
}

// tracked is the number of clients currently held.
func (m *RateLimitMiddleware) tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	recent := hits[:0]
	for _, at := range hits {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	return recent
}

func (m *RateLimitMiddleware) clientIP(r *http.Request) string {
	if m.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
