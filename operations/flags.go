package operations

import (
	witsml "github.com/nilsbenson/witsml-server"
	"github.com/urfave/cli"
)

const confFlagName = "conf"

func serviceConfigFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  confFlagName + ", c, config",
		Usage: "path to the service configuration file",
		Value: witsml.DefaultConfigPath,
	})
}
