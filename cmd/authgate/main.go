package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/econtool/authgate/cmd/authgate/hashpw"
	"github.com/econtool/authgate/cmd/authgate/initcfg"
	"github.com/econtool/authgate/cmd/authgate/serve"
	"github.com/econtool/authgate/cmd/authgate/user"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "authgate",
		Usage: "Credential-file login gate for the econtool web app",
		Commands: []*cli.Command{
			initcfg.Cmd(),
			hashpw.Cmd(),
			user.Cmd(),
			serve.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
	}
}
