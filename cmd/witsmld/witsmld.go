package main

import (
	"os"

	"github.com/mongodb/grip"
	witsml "github.com/nilsbenson/witsml-server"
	"github.com/nilsbenson/witsml-server/operations"
	"github.com/urfave/cli"
)

func main() {
	app := buildApp()
	grip.EmergencyFatal(app.Run(os.Args))
}

func buildApp() *cli.App {
	app := cli.NewApp()
	app.Name = "witsmld"
	app.Usage = "WITSML channel-data store server"
	app.Version = witsml.ClientVersion

	app.Commands = []cli.Command{
		operations.Service(),
		operations.Conf(),
	}

	return app
}
