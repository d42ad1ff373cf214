package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/adamspd/DesignQuizBot/utils"
	"golang.org/x/time/rate"
)

// extractToken gets the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// tokenMiddleware checks the bearer token against a bcrypt hash
func tokenMiddleware(tokenHash string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				http.Error(w, "Missing token", http.StatusUnauthorized)
				return
			}
			if !utils.CheckToken(tokenHash, token) {
				utils.LogHTTP("Rejected token for %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}

// rateLimitMiddleware caps the request rate across all clients.
func rateLimitMiddleware(limit rate.Limit, burst int) func(http.HandlerFunc) http.HandlerFunc {
	limiter := rate.NewLimiter(limit, burst)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer that captures status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		utils.LogHTTP("%s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
