package operations

import (
	"fmt"

	witsml "github.com/nilsbenson/witsml-server"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	yaml "gopkg.in/yaml.v2"
)

// Conf returns the configuration inspection command tree.
func Conf() cli.Command {
	return cli.Command{
		Name:  "conf",
		Usage: "inspect service configuration",
		Subcommands: []cli.Command{
			showConf(),
		},
	}
}

func showConf() cli.Command {
	return cli.Command{
		Name:  "show",
		Usage: "print the effective settings, defaults applied",
		Flags: serviceConfigFlags(),
		Action: func(c *cli.Context) error {
			settings, err := witsml.NewSettings(c.String(confFlagName))
			if err != nil {
				return errors.Wrap(err, "loading configuration")
			}
			if err = settings.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}

			out, err := yaml.Marshal(settings)
			if err != nil {
				return errors.Wrap(err, "marshalling settings")
			}
			fmt.Print(string(out))

			return nil
		},
	}
}
