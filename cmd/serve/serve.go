package serve

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchidlab/labpredict/internal/app"
	"github.com/orchidlab/labpredict/internal/buildinfo"
	"github.com/orchidlab/labpredict/internal/conf"
)

const shutdownTimeout = 10 * time.Second

// Command returns a command that serves the HTTP API
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions, record intake, health and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(cmd.Context(), a, settings.Server.Listen)
		},
	}

	cmd.Flags().String("listen", "", "Listen address (default from server.listen)")
	if err := conf.BindFlagKey(cmd.Flags(), "listen", "server.listen"); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// serve runs the server until ctx is done, then shuts it down gracefully
func serve(ctx context.Context, a *app.App, addr string) error {
	log := GetLogger()
	srv := a.HTTPServer()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
