// Package api exposes the gate flows over HTTP and protects the host
// application behind them.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/econtool/authgate/gate"
	"github.com/econtool/authgate/internal/logutil"
	"github.com/julienschmidt/httprouter"
)

type (
	Service struct {
		gate           *gate.Gate
		insecureCookie bool
	}

	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	registerRequest struct {
		Username string `json:"username"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	forgotRequest struct {
		Username string `json:"username"`
	}

	resetRequest struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}

	updateRequest struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	identityResponse struct {
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username,omitempty"`
		Name          string `json:"name,omitempty"`
		Role          string `json:"role,omitempty"`
	}

	errorResponse struct {
		Authenticated bool   `json:"authenticated"`
		Error         string `json:"error"`
	}
)

// AsHandler wires the auth endpoints into a router. Everything lives
// under /auth/ so the host application keeps the rest of the path space.
func AsHandler(g *gate.Gate, allowHTTPCookie bool) http.Handler {
	s := &Service{gate: g, insecureCookie: allowHTTPCookie}
	router := httprouter.New()
	router.HandlerFunc("POST", "/auth/login", s.login)
	router.HandlerFunc("POST", "/auth/register", s.register)
	router.HandlerFunc("POST", "/auth/forgot", s.forgot)
	router.HandlerFunc("POST", "/auth/reset", s.reset)
	router.HandlerFunc("POST", "/auth/update", s.update)
	router.HandlerFunc("POST", "/auth/logout", s.logout)
	router.HandlerFunc("GET", "/auth/whoami", s.whoami)
	return router
}

func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	password := gate.PlainText(req.Password)
	defer password.Zero()
	token, id, err := s.gate.Login(r.Context(), req.Username, password)
	switch err.(type) {
	case nil:
	case gate.UserNotFound, gate.WrongPassword:
		// do not reveal which of the two was wrong
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "username/password is incorrect"})
		return
	default:
		s.fail(w, r, err)
		return
	}
	http.SetCookie(w, s.sessionCookie(token, s.gate.SessionTTL()))
	writeJSON(w, http.StatusOK, identityResponse{
		Authenticated: true,
		Username:      id.Username,
		Name:          id.Name,
		Role:          id.Role,
	})
}

func (s *Service) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	password := gate.PlainText(req.Password)
	defer password.Zero()
	err := s.gate.Register(r.Context(), gate.NewUser{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: password,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"registered": true})
}

func (s *Service) forgot(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if !decode(w, r, &req) {
		return
	}
	newPassword, err := s.gate.ForgotPassword(r.Context(), req.Username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// shown exactly once, the store only keeps the hash
	writeJSON(w, http.StatusOK, map[string]string{
		"username":     req.Username,
		"new_password": newPassword,
	})
}

func (s *Service) reset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	oldPassword := gate.PlainText(req.OldPassword)
	newPassword := gate.PlainText(req.NewPassword)
	defer oldPassword.Zero()
	defer newPassword.Zero()
	if err := s.gate.ResetPassword(r.Context(), id.Username, oldPassword, newPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func (s *Service) update(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.gate.UpdateDetails(r.Context(), id.Username, req.Name, req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Service) logout(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r, s.gate.CookieName())
	if token != "" {
		if err := s.gate.Logout(r.Context(), token); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	expired := s.sessionCookie("", 0)
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	writeJSON(w, http.StatusOK, identityResponse{Authenticated: false})
}

func (s *Service) whoami(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{
		Authenticated: true,
		Username:      id.Username,
		Name:          id.Name,
		Role:          id.Role,
	})
}

func (s *Service) requireSession(w http.ResponseWriter, r *http.Request) (gate.Identity, bool) {
	token := tokenFromRequest(r, s.gate.CookieName())
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return gate.Identity{}, false
	}
	id, err := s.gate.Authenticate(r.Context(), token)
	if err != nil {
		if errors.Is(err, gate.ErrInvalidSession) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		} else {
			s.fail(w, r, err)
		}
		return gate.Identity{}, false
	}
	return id, true
}

func (s *Service) sessionCookie(token string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     s.gate.CookieName(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !s.insecureCookie,
	}
	if ttl > 0 {
		c.Expires = time.Now().Add(ttl)
	}
	return c
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Auth operation failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch err.(type) {
	case gate.DuplicateUsername:
		return http.StatusConflict
	case gate.UserNotFound:
		return http.StatusNotFound
	case gate.WrongPassword:
		return http.StatusUnauthorized
	case gate.EmailNotPreauthorized:
		return http.StatusForbidden
	case gate.MalformedInput:
		return http.StatusBadRequest
	}
	if errors.Is(err, gate.ErrInvalidSession) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
