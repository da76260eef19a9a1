package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/erazemk/locallend/internal/auth"
	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
)

type contextKey string

const claimsKey contextKey = "claims"

// UserIDHeader optionally repeats the authenticated user's ID. When sent it
// must match the token.
const UserIDHeader = "X-User-Id"

// AuthMiddleware validates the bearer token, rejects revoked tokens and
// deleted users, and adds the claims to the context.
func AuthMiddleware(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			claims, err := auth.Verify(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			revoked, err := store.IsTokenRevoked(r.Context(), db, claims.ID)
			if err != nil {
				slog.Error("checking token revocation", "error", err)
				jsonError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if revoked {
				jsonError(w, http.StatusUnauthorized, "token has been revoked")
				return
			}

			id, _ := claims.UserID()
			user, err := store.GetUser(r.Context(), db, id)
			if err != nil {
				slog.Error("loading token user", "error", err)
				jsonError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if user == nil || user.DeletedAt != nil {
				jsonError(w, http.StatusUnauthorized, "account no longer exists")
				return
			}
			// Role changes take effect without a new token.
			claims.Role = user.Role

			if v := r.Header.Get(UserIDHeader); v != "" && v != strconv.FormatInt(id, 10) {
				slog.Warn("user id header mismatch", "user", claims.Username, "header", v)
				jsonError(w, http.StatusForbidden, "X-User-Id does not match token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that checks if the user has at least the given role.
func RequireRole(minimum string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !model.RoleAtLeast(claims.Role, minimum) {
				jsonError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims retrieves the JWT claims from the context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// caller returns the authenticated user's ID and whether they are an admin.
func caller(r *http.Request) (int64, bool) {
	claims := GetClaims(r.Context())
	if claims == nil {
		return 0, false
	}
	id, _ := claims.UserID()
	return id, claims.Role == model.RoleAdmin
}

// limiterIdleTTL is how long an address keeps its limiter after its last
// request.
const limiterIdleTTL = 10 * time.Minute

type addrLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ipLimiter throttles requests per client address.
type ipLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*addrLimiter
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

// newIPLimiter allows perMinute requests per address, refilled evenly.
// A non-positive perMinute disables limiting.
func newIPLimiter(perMinute int) *ipLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &ipLimiter{
		limiters: make(map[string]*addrLimiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		now:      time.Now,
	}
}

func (l *ipLimiter) allow(addr string) bool {
	if l == nil {
		return true
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= limiterIdleTTL {
		l.evictIdle(now)
		l.lastSweep = now
	}
	entry, ok := l.limiters[host]
	if !ok {
		entry = &addrLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[host] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	return entry.lim.AllowN(now, 1)
}

// evictIdle drops limiters unused for limiterIdleTTL. l.mu must be held.
func (l *ipLimiter) evictIdle(now time.Time) {
	for host, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= limiterIdleTTL {
			delete(l.limiters, host)
		}
	}
}

// Limit rejects requests beyond the address's allowance with 429. The address
// is r.RemoteAddr, which only reflects forwarding headers when the router
// trusts a proxy.
func (l *ipLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r.RemoteAddr) {
			slog.Warn("rate limit exceeded", "remote", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			jsonError(w, http.StatusTooManyRequests, "too many attempts, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs each request with its chi request ID.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
