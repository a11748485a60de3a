package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/common/tenant"
	"github.com/nourish-clinic/platform/pkg/gateway/auth"
)

const (
	RequestIDHeader = "X-Request-ID"
	TenantHeader    = "X-Tenant-ID"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// Ensure a request ID exists
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		r.Header.Set(RequestIDHeader, reqID)
		w.Header().Set(RequestIDHeader, reqID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"request_id":  reqID,
			"status":      rec.status,
			"duration":    time.Since(start).Milliseconds(),
		}
		if scope, ok := tenant.FromContext(r.Context()); ok {
			fields["tenant_id"] = scope.TenantID
		}
		logger.Log.WithFields(fields).Info("HTTP request")
	})
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Log.WithField("error", err).WithField("request_id", r.Header.Get(RequestIDHeader)).Error("Panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Authenticate tries each authenticator in order and stores the first
// resolved principal in the request context. Nil authenticators are skipped.
func Authenticate(authenticators ...auth.Authenticator) func(http.Handler) http.Handler {
	chain := make([]auth.Authenticator, 0, len(authenticators))
	for _, a := range authenticators {
		if a != nil {
			chain = append(chain, a)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			var lastErr error
			for _, a := range chain {
				principal, err := a.Authenticate(r.Context(), token)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), principal)))
					return
				}
				lastErr = err
			}

			if lastErr != nil {
				logger.Log.WithError(lastErr).WithField("request_id", r.Header.Get(RequestIDHeader)).Debug("authentication failed")
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

// Tenant resolves the request's tenant scope from the authenticated
// principal's claim, then the X-Tenant-ID header, then defaultTenant. A header
// that contradicts the claim is rejected.
func Tenant(defaultTenant string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get(TenantHeader))

			tenantID := defaultTenant
			if principal, ok := auth.FromContext(r.Context()); ok && principal.TenantID != "" {
				if header != "" && header != principal.TenantID {
					http.Error(w, "tenant mismatch", http.StatusForbidden)
					return
				}
				tenantID = principal.TenantID
			} else if header != "" {
				tenantID = header
			}

			scope, err := tenant.New(tenantID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(tenant.NewContext(r.Context(), scope)))
		})
	}
}

// Simple token-bucket rate limiter middleware (per-process)
func RateLimit(rps int, burst int) func(http.Handler) http.Handler {
	if burst <= 0 {
		burst = 1
	}
	type bucket struct {
		tokens float64
		last   time.Time
		mu     sync.Mutex
	}
	b := &bucket{tokens: float64(burst), last: time.Now()}
	refill := func() {
		now := time.Now()
		b.tokens += now.Sub(b.last).Seconds() * float64(rps)
		if b.tokens > float64(burst) {
			b.tokens = float64(burst)
		}
		b.last = now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			refill()
			if b.tokens < 1 {
				b.mu.Unlock()
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			b.tokens--
			b.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS middleware (allow basic dev flows)
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Tenant-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
