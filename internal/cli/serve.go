package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mamadbah2/kisaan/internal/metrics"
	"github.com/mamadbah2/kisaan/internal/scheduler"
	"github.com/mamadbah2/kisaan/internal/server/handlers"
	"github.com/mamadbah2/kisaan/internal/server/router"
	"github.com/mamadbah2/kisaan/internal/service/listings"
	"github.com/mamadbah2/kisaan/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the report scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Log.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	listingSvc := listings.NewService(a.listings, a.users, a.images, listings.Options{
		TTL:           a.cfg.Listings.TTL,
		PublicBaseURL: a.cfg.Server.PublicBaseURL,
		MaxImages:     a.cfg.Images.MaxFiles,
		Observer:      m,
	}, logger.Named(a.logger, "svc.listings"))

	engine := router.New(router.Dependencies{
		Listings: handlers.NewListingHandler(listingSvc, handlers.UploadLimits{
			MaxBytes: a.cfg.Images.MaxBytes,
			MaxFiles: a.cfg.Images.MaxFiles,
		}, logger.Named(a.logger, "handlers.listings")),
		Health:    handlers.NewHealthHandler(a.pinger(), logger.Named(a.logger, "handlers.health")),
		JWTSecret: a.cfg.Auth.JWTSecret,
		Metrics:   m,
		Logger:    logger.Named(a.logger, "router"),
	})

	reportingSvc, err := a.reportingService(ctx)
	if err != nil {
		return err
	}
	sched, err := scheduler.NewScheduler(a.cfg.Reporting.CronSchedule, a.cfg.Reporting.Timezone, reportingSvc, logger.Named(a.logger, "scheduler"))
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("port", a.cfg.Server.Port), zap.String("storage", a.cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.logger.Error("http server crashed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
