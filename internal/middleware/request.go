package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"portal-agent/internal/domain"
	"portal-agent/pkg/errors"
	"portal-agent/pkg/logger"

	"github.com/google/uuid"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// SessionContextKey is the key for the active session in context
	SessionContextKey ContextKey = "session"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// RequestID tags every request with an id, reusing an inbound X-Request-ID
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id stored by RequestID
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// RequireSession rejects requests while the agent's session is expired and
// otherwise stores the session in the request context
func RequireSession(current func() *domain.Session, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := current()
			if session == nil {
				WriteError(w, r, errors.NewAuthenticationError("No active session"), logger)
				return
			}
			if session.Expired(time.Now()) {
				WriteError(w, r, errors.NewAuthenticationError("Session token has expired"), logger)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCurrentToken guards session management: the caller must present
// the token the agent currently holds as a bearer token. Expiry is not
// checked so an expired token can still be replaced.
func RequireCurrentToken(current func() *domain.Session, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteError(w, r, errors.NewAuthenticationError("Authorization header is required"), logger)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				WriteError(w, r, errors.NewAuthenticationError("Invalid authorization header format"), logger)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			session := current()
			if session == nil || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(session.Token)) != 1 {
				WriteError(w, r, errors.NewAuthenticationError("Token does not match the active session"), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetSession returns the session stored by RequireSession
func GetSession(ctx context.Context) *domain.Session {
	if session, ok := ctx.Value(SessionContextKey).(*domain.Session); ok {
		return session
	}
	return nil
}

// WriteError renders an AppError as the standard JSON error body
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *logger.Logger) {
	appErr := errors.As(err)

	log := logger.WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	})
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Debug("Request rejected")
	}

	response := &errors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.RequestID = GetRequestID(r.Context())
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		logger.WithError(encErr).Error("Failed to encode error response")
	}
}
