package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// Run serves HTTP and runs the job queue until ctx is cancelled or either
// fails, then shuts both down and releases the app's resources.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	servers := []*http.Server{a.newServer(a.Config.HTTP.Address, a.handler)}
	if addr := a.Config.Observability.MetricsAddress; addr != "" {
		servers = append(servers, a.newServer(addr, MetricsHandler(a.Registry)))
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := a.Queue.Start(gctx); err != nil {
		return err
	}

	for _, srv := range servers {
		g.Go(func() error {
			a.Logger.InfoContext(gctx, "Starting HTTP server", attr.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("http server on %s: %w", srv.Addr, err))
			}
		}
		if err := a.Queue.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	if err != nil {
		a.Logger.Error("Application stopped with error", attr.Error(err))
		return err
	}
	a.Logger.Info("Application stopped")
	return nil
}

func (a *App) newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}
