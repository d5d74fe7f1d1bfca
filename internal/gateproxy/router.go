// Package gateproxy joins the auth endpoints and the protected host
// application into a single handler: /auth/* is answered locally, every
// other path is reverse-proxied to the upstream once the caller holds a
// valid session.
package gateproxy

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/econtool/authgate/gate/api"
	"github.com/julienschmidt/httprouter"
)

var (
	methods = []string{
		"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD",
	}
)

func AsHandler(ctx context.Context, authHandler http.Handler, realm *api.SecurityRealm, upstream *url.URL) http.Handler {
	router := httprouter.New()

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	protected := realm.Protect(proxy)

	for _, m := range methods {
		router.Handler(m, "/auth/*rest", authHandler)
	}

	// anything that is not an auth call belongs to the host app
	router.NotFound = protected

	return router
}
