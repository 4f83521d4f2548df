package httpapi

import (
	"errors"
	"net"
	"net/http"

	"github.com/lancehub/lancehub/internal/domain/account"
	"github.com/lancehub/lancehub/internal/domain/bid"
)

type registerRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Role     bid.Role `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	u, err := s.authSvc.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, account.ErrUsernameTaken) {
			respondError(w, http.StatusConflict, "CONFLICT", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, userResponse{
		UserID:   u.UserID.String(),
		Username: u.Username,
		Role:     string(u.Role),
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	ua := r.UserAgent()
	var uaPtr *string
	if ua != "" {
		uaPtr = &ua
	}
	var ipPtr *string
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		ipPtr = &host
	}
	res, err := s.authSvc.Login(r.Context(), req.Username, req.Password, uaPtr, ipPtr)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid username or password")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.sessionCookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.sessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": res.Token,
		"user": userResponse{
			UserID:   res.User.UserID.String(),
			Username: res.User.Username,
			Role:     string(res.User.Role),
		},
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r, s.sessionCookieName)
	if err := s.authSvc.Logout(r.Context(), token); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.sessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	au := authUserFrom(r.Context())
	respondJSON(w, http.StatusOK, userResponse{
		UserID:   au.UserID.String(),
		Username: au.Username,
		Role:     string(au.Role),
	})
}
