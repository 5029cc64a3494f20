package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/smukkama/sentinel-server/internal/auth"
	"github.com/smukkama/sentinel-server/internal/database"
	"github.com/smukkama/sentinel-server/internal/service"
	"github.com/smukkama/sentinel-server/internal/validation"
)

type sessionResponse struct {
	User  *database.User `json:"user"`
	Token string         `json:"token"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Sentinel API is running",
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req validation.Signup
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := s.auth.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	}, r.RemoteAddr)
	if errors.Is(err, service.ErrUserExists) {
		writeError(w, http.StatusBadRequest, "User already exists", nil)
		return
	}
	if err != nil {
		s.internalError(w, r, "Signup failed", err)
		return
	}

	s.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusCreated, sessionResponse{User: session.User, Token: session.Token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req validation.Login
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := s.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, r.RemoteAddr)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if err != nil {
		s.internalError(w, r, "Login failed", err)
		return
	}

	s.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, sessionResponse{User: session.User, Token: session.Token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		if err := s.auth.Logout(r.Context(), claims, r.RemoteAddr); err != nil {
			s.internalError(w, r, "Logout failed", err)
			return
		}
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.CurrentUser(r.Context(), currentUserID(r))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if err != nil {
		s.internalError(w, r, "Failed to load user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.opts.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
