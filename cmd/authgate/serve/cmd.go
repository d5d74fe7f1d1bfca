package serve

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/econtool/authgate/credstore"
	"github.com/econtool/authgate/gate"
	"github.com/econtool/authgate/gate/api"
	"github.com/econtool/authgate/internal/cmdflags"
	"github.com/econtool/authgate/internal/gateproxy"
	"github.com/econtool/authgate/internal/httpserver"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	bindAddr := "localhost:7009"
	var credfile string
	var upstream string
	var sessionDB string
	var insecureCookie bool
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the auth gate in front of the host application",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to bind the gate to",
				Value:       bindAddr,
				Destination: &bindAddr,
			},
			cmdflags.CredentialFile(&credfile),
			&cli.StringFlag{
				Name:        "upstream",
				Usage:       "Base URL of the host application the gate protects",
				Destination: &upstream,
				Required:    true,
			},
			cmdflags.SessionDB(&sessionDB),
			&cli.BoolFlag{
				Name:        "insecure-cookie",
				Usage:       "Allow the session cookie over plain HTTP (local development only)",
				Destination: &insecureCookie,
			},
		},
		Action: func(ctx *cli.Context) error {
			store := credstore.NewStore(credfile)
			cfg, err := store.Snapshot()
			if err != nil {
				return err
			}
			ttl := sessionTTL(cfg.Cookie)

			var tokens gate.TokenStore
			if sessionDB != "" {
				st, err := gate.OpenSQLiteTokenStore(ctx.Context, sessionDB, ttl)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.PurgeExpired(ctx.Context); err != nil {
					return fmt.Errorf("unable to purge expired sessions, cause %w", err)
				}
				tokens = st
			} else {
				tokens = gate.InMemoryTokenStore(ttl)
			}

			g, err := gate.New(store, cfg.Cookie, tokens)
			if err != nil {
				return err
			}

			upstreamURL, err := url.Parse(upstream)
			if err != nil {
				return fmt.Errorf("invalid upstream url %v, cause %w", upstream, err)
			}
			if upstreamURL.Scheme == "" || upstreamURL.Host == "" {
				return errors.New("upstream url must be absolute (e.g. http://localhost:8501)")
			}

			authHandler := api.AsHandler(g, insecureCookie)
			handler := gateproxy.AsHandler(ctx.Context, authHandler, api.NewRealm(g), upstreamURL)
			return httpserver.Serve(ctx.Context, bindAddr, handler)
		},
	}
}

func sessionTTL(cookie credstore.Cookie) time.Duration {
	days := cookie.ExpiryDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}
