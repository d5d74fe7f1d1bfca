package api

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/econtool/authgate/gate"
	"github.com/econtool/authgate/internal/logutil"
)

type (
	// SecurityRealm gates an http.Handler behind the auth flows. Callers
	// present either the session cookie or the same token as a bearer
	// token (useful for non-browser clients of the host app).
	SecurityRealm struct {
		gate *gate.Gate
	}
)

// Identity headers injected for the host application. Anything the
// client sent under these names is dropped before authentication.
const (
	HeaderUsername = "X-Auth-Username"
	HeaderName     = "X-Auth-Name"
	HeaderRole     = "X-Auth-Role"
)

var (
	bearerTokenRE = regexp.MustCompile(`^Bearer ([^\s]+)$`)
)

func NewRealm(g *gate.Gate) *SecurityRealm {
	return &SecurityRealm{gate: g}
}

// Protect rejects unauthenticated requests with 401 and forwards the
// rest to sensitive with the caller's identity in the X-Auth-* headers.
func (s *SecurityRealm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(HeaderUsername)
		r.Header.Del(HeaderName)
		r.Header.Del(HeaderRole)
		id, ok := s.checkToken(r)
		if !ok {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		r.Header.Set(HeaderUsername, id.Username)
		r.Header.Set(HeaderName, id.Name)
		if id.Role != "" {
			r.Header.Set(HeaderRole, id.Role)
		}
		sensitive.ServeHTTP(w, r)
	})
}

func (s *SecurityRealm) checkToken(r *http.Request) (gate.Identity, bool) {
	ctx := r.Context()
	token := tokenFromRequest(r, s.gate.CookieName())
	if token == "" {
		return gate.Identity{}, false
	}
	id, err := s.gate.Authenticate(ctx, token)
	if errors.Is(err, gate.ErrInvalidSession) {
		return gate.Identity{}, false
	} else if err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Msg("Unexpected error when checking session token")
		return gate.Identity{}, false
	}
	return id, true
}

// tokenFromRequest prefers the session cookie and falls back to the
// Authorization header.
func tokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	groups := bearerTokenRE.FindStringSubmatch(r.Header.Get("Authorization"))
	if len(groups) == 0 {
		return ""
	}
	return groups[1]
}
