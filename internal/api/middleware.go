package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/auth"
)

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("request_id", requestID(r)))
	})
}

// tokenFromRequest prefers the session cookie over the Authorization header
func (s *Server) tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(s.opts.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// authenticate validates a token and checks the denylist
func (s *Server) authenticate(r *http.Request, token string) (*auth.Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	if _, err := claims.UserUUID(); err != nil {
		return nil, auth.ErrTokenInvalid
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			// a Redis outage must not lock everyone out
			s.logger.Warn("Revocation check failed", zap.String("request_id", requestID(r)), zap.Error(err))
		} else if revoked {
			return nil, auth.ErrTokenRevoked
		}
	}
	return claims, nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.tokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}

		claims, err := s.authenticate(r, token)
		if errors.Is(err, auth.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, "Token expired", nil)
			return
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// optionalAuth attaches claims when a valid token is present
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := s.tokenFromRequest(r); token != "" {
			if claims, err := s.authenticate(r, token); err == nil {
				r = r.WithContext(auth.WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			if !slices.Contains(roles, claims.Role) {
				writeError(w, http.StatusForbidden, "Access denied", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// currentUserID is only valid behind requireAuth
func currentUserID(r *http.Request) uuid.UUID {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return uuid.Nil
	}
	id, _ := claims.UserUUID()
	return id
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, "*") || slices.Contains(s.opts.AllowedOrigins, origin)
}
