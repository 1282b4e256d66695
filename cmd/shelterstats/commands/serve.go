package commands

import (
	"context"
	"errors"
	"net/http"

	httpadapter "github.com/couchcryptid/trail-shelter-stats/internal/adapter/http"
	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Aggregate once, then serve the results over HTTP until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, true)
			if err != nil {
				return err
			}
			table, ids, err := a.loadInputs()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p, closeSinks, err := a.newPipeline(ctx)
			if err != nil {
				return err
			}
			defer closeSinks()

			srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, a.logger)
			srvErr := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					srvErr <- err
				}
			}()

			summary, err := p.Run(ctx, ids, table)
			var ioErr *domain.IOWriteError
			switch {
			case err == nil:
				logSummary(a.logger, summary, table)
			case errors.As(err, &ioErr):
				// The snapshot is still served; only the report sinks failed.
				logSummary(a.logger, summary, table)
				a.logger.Error("report not written", "error", err)
			case ctx.Err() == nil:
				a.logger.Error("aggregation failed", "error", err)
			}

			var runErr error
			select {
			case <-ctx.Done():
				a.logger.Info("shutting down")
			case runErr = <-srvErr:
				a.logger.Error("http server error", "error", runErr)
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("http server shutdown error", "error", err)
			}
			a.logger.Info("shutdown complete")
			return runErr
		},
	}
}
