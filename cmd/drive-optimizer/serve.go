package driveoptimizer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/httpapi"
)

func newServeCommand(app *application) *cobra.Command {
	command := &cobra.Command{
		Use:   serveCommandUse,
		Short: serveCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.serve(ctx)
		},
	}
	command.Flags().String(listenFlagName, "", listenFlagUsage)
	_ = app.settings.BindPFlag(listenAddressKey, command.Flags().Lookup(listenFlagName))
	return command
}

// serve blocks until ctx is cancelled, then drains in-flight requests.
func (app *application) serve(ctx context.Context) error {
	logger := app.log()
	service := app.buildService()
	server := &http.Server{
		Addr:              app.root.Common.Server.ListenAddress,
		Handler:           httpapi.NewServer(service, app.planOptions(), logger).Handler(),
		ReadHeaderTimeout: serverReadHeaderTimeout,
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("address", server.Addr), zap.Bool("workflow", service.HasWorkflow()))
		serveErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
