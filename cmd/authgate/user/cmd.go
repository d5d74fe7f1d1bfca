package user

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/econtool/authgate/credstore"
	"github.com/econtool/authgate/gate"
	"github.com/econtool/authgate/internal/cmdflags"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var credfile string
	return &cli.Command{
		Name:  "user",
		Usage: "Administrator-side user operations on the credential file",
		Flags: []cli.Flag{
			cmdflags.CredentialFile(&credfile),
		},
		Subcommands: []*cli.Command{
			registerCmd(&credfile),
			forgotCmd(&credfile),
		},
	}
}

// registerCmd is the administrator path: it writes straight into the
// credential file, so the pre-authorized email policy does not apply.
func registerCmd(credfile *string) *cli.Command {
	var username string
	var name string
	var email string
	var role string
	return &cli.Command{
		Name:  "register",
		Usage: "Add a user to the credential file (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u", "user"},
				Usage:       "Name of the user to register",
				Destination: &username,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "name",
				Usage:       "Display name (defaults to the username)",
				Destination: &name,
			},
			&cli.StringFlag{
				Name:        "email",
				Usage:       "Contact address, used by the password-reset lookup",
				Destination: &email,
			},
			&cli.StringFlag{
				Name:        "role",
				Usage:       "Informational role label (not enforced anywhere)",
				Destination: &role,
			},
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(os.Stdin)
			if !sc.Scan() {
				return sc.Err()
			}
			password := strings.TrimSpace(sc.Text())
			if len(password) == 0 {
				return errors.New("missing password from stdin")
			}
			hash, err := gate.HashPassword(gate.PlainText(password))
			if err != nil {
				return err
			}
			if name == "" {
				name = username
			}
			store := credstore.NewStore(*credfile)
			return store.Update(func(cfg *credstore.Config) error {
				if _, exists := cfg.User(username); exists {
					return gate.DuplicateUsername{Username: username}
				}
				cfg.SetUser(username, credstore.User{
					Name:     name,
					Email:    email,
					Password: hash,
					Role:     role,
				})
				return nil
			})
		},
	}
}

func forgotCmd(credfile *string) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "forgot",
		Usage: "Replace a user's password with a random one and print it once",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u", "user"},
				Usage:       "User whose password is replaced",
				Destination: &username,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			store := credstore.NewStore(*credfile)
			cfg, err := store.Snapshot()
			if err != nil {
				return err
			}
			g, err := gate.New(store, cfg.Cookie, gate.InMemoryTokenStore(gateTTL(cfg)))
			if err != nil {
				return err
			}
			newPassword, err := g.ForgotPassword(ctx.Context, username)
			if err != nil {
				return err
			}
			// stdout on purpose: the plaintext is shown once, never logged
			fmt.Println(newPassword)
			return nil
		},
	}
}

func gateTTL(cfg *credstore.Config) time.Duration {
	days := cfg.Cookie.ExpiryDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}
