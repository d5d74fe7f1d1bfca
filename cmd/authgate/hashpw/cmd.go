package hashpw

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/econtool/authgate/credstore"
	"github.com/econtool/authgate/gate"
	"github.com/econtool/authgate/internal/cmdflags"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// Cmd is the hash generator: it takes plaintext passwords keyed by
// username and writes bcrypt hashes into the credential file. Keying by
// username (instead of a bare ordered list) means there is no way to
// associate a password with the wrong user.
func Cmd() *cli.Command {
	var credfile string
	var username string
	var fromStdin bool
	var create bool
	return &cli.Command{
		Name:      "hashpw",
		Usage:     "Hash plaintext passwords into the credential file",
		ArgsUsage: "[username=password ...]",
		Description: strings.TrimSpace(`
Passwords are given as username=password arguments, as username=password
lines on stdin (--stdin), or as a single password read from stdin for one
user (--user). Only the hash ever reaches the credential file.`),
		Flags: []cli.Flag{
			cmdflags.CredentialFile(&credfile),
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "Update a single user, reading the password from stdin",
				Destination: &username,
			},
			&cli.BoolFlag{
				Name:        "stdin",
				Usage:       "Read username=password lines from stdin",
				Destination: &fromStdin,
			},
			&cli.BoolFlag{
				Name:        "create",
				Usage:       "Create records for usernames missing from the file",
				Destination: &create,
			},
		},
		Action: func(ctx *cli.Context) error {
			passwords, err := collect(ctx.Args().Slice(), username, fromStdin)
			if err != nil {
				return err
			}
			if len(passwords) == 0 {
				return errors.New("no passwords given")
			}
			hashes := make(map[string]string, len(passwords))
			for user, plain := range passwords {
				h, err := gate.HashPassword(gate.PlainText(plain))
				if err != nil {
					return err
				}
				hashes[user] = h
			}
			store := credstore.NewStore(credfile)
			err = store.Update(func(cfg *credstore.Config) error {
				for user, hash := range hashes {
					rec, ok := cfg.User(user)
					if !ok {
						if !create {
							return gate.UserNotFound{Username: user}
						}
						rec.Name = user
					}
					rec.Password = hash
					cfg.SetUser(user, rec)
				}
				return nil
			})
			if err != nil {
				return err
			}
			for user := range hashes {
				log.Info().Str("username", user).Msg("Password updated")
			}
			return nil
		},
	}
}

func collect(args []string, username string, fromStdin bool) (map[string]string, error) {
	out := map[string]string{}
	for _, a := range args {
		user, pass, err := splitPair(a)
		if err != nil {
			return nil, err
		}
		out[user] = pass
	}
	if username != "" {
		pass, err := readLine()
		if err != nil {
			return nil, err
		}
		out[username] = pass
		return out, nil
	}
	if fromStdin {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			user, pass, err := splitPair(line)
			if err != nil {
				return nil, err
			}
			out[user] = pass
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func splitPair(s string) (string, string, error) {
	idx := strings.Index(s, "=")
	if idx <= 0 || idx == len(s)-1 {
		return "", "", fmt.Errorf("hashpw: %q is not a username=password pair", s)
	}
	return s[:idx], s[idx+1:], nil
}

func readLine() (string, error) {
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("missing password from stdin")
	}
	pass := strings.TrimSpace(sc.Text())
	if len(pass) == 0 {
		return "", errors.New("missing password from stdin")
	}
	return pass, nil
}
