package operations

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/send"
	witsml "github.com/nilsbenson/witsml-server"
	"github.com/nilsbenson/witsml-server/service"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Service returns the service command tree.
func Service() cli.Command {
	return cli.Command{
		Name:  "service",
		Usage: "run witsmld services",
		Subcommands: []cli.Command{
			startWebService(),
		},
	}
}

func startWebService() cli.Command {
	return cli.Command{
		Name:  "web",
		Usage: "start the store web service",
		Flags: serviceConfigFlags(),
		Action: func(c *cli.Context) error {
			settings, err := witsml.NewSettings(c.String(confFlagName))
			if err != nil {
				return errors.Wrap(err, "loading configuration")
			}
			if err = settings.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}
			if err = setupLogging(settings); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := witsml.NewEnvironment(ctx, settings)
			if err != nil {
				return errors.Wrap(err, "building environment")
			}
			witsml.SetEnvironment(env)

			handler, err := service.NewAPIServer(env).GetApp().Handler()
			if err != nil {
				return errors.Wrap(err, "resolving routes")
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", settings.HTTPPort),
				Handler:           handler,
				ReadHeaderTimeout: 30 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				grip.Error(errors.Wrap(srv.Shutdown(shutdownCtx), "shutting down web service"))
			}()

			grip.Info(message.Fields{
				"message": "starting web service",
				"port":    settings.HTTPPort,
				"db":      settings.Database.DB,
			})
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return errors.Wrap(err, "running web service")
			}

			return nil
		},
	}
}

func setupLogging(settings *witsml.Settings) error {
	grip.SetName("witsmld")
	if settings.LogPath == "" {
		return nil
	}

	sender, err := send.MakeFileLogger(settings.LogPath)
	if err != nil {
		return errors.Wrapf(err, "opening log file '%s'", settings.LogPath)
	}

	return errors.Wrap(grip.SetSender(sender), "setting log sender")
}
