package initcfg

import (
	"github.com/econtool/authgate/credstore"
	"github.com/econtool/authgate/internal/cmdflags"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var credfile string
	cookieName := "authgate_session"
	expiryDays := 30
	return &cli.Command{
		Name:  "init",
		Usage: "Scaffold a fresh credential file with a random cookie signing key",
		Flags: []cli.Flag{
			cmdflags.CredentialFile(&credfile),
			&cli.StringFlag{
				Name:        "cookie-name",
				Usage:       "Name of the session cookie",
				Value:       cookieName,
				Destination: &cookieName,
			},
			&cli.IntFlag{
				Name:        "expiry-days",
				Usage:       "How many days a session stays valid",
				Value:       expiryDays,
				Destination: &expiryDays,
			},
		},
		Action: func(ctx *cli.Context) error {
			store := credstore.NewStore(credfile)
			if err := store.Ensure(cookieName, expiryDays); err != nil {
				return err
			}
			log.Info().Str("path", credfile).Msg("Credential file created")
			return nil
		},
	}
}
