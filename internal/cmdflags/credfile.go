package cmdflags

import (
	"github.com/urfave/cli/v2"
)

func CredentialFile(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "config.yaml"
	}
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to the credential file",
		Destination: out,
		Value:       *out,
	}
}

func SessionDB(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "session-db",
		Usage:       "Path to a sqlite file holding live sessions (empty keeps sessions in memory)",
		Destination: out,
		Value:       *out,
	}
}
