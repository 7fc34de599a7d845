package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/kisaan/internal/config"
	"github.com/mamadbah2/kisaan/internal/repository/memory"
	"github.com/mamadbah2/kisaan/internal/repository/mongodb"
	"github.com/mamadbah2/kisaan/internal/repository/sheets"
	"github.com/mamadbah2/kisaan/internal/server/handlers"
	"github.com/mamadbah2/kisaan/internal/service/listings"
	"github.com/mamadbah2/kisaan/internal/service/reporting"
	"github.com/mamadbah2/kisaan/pkg/clients/webhook"
	"github.com/mamadbah2/kisaan/pkg/logger"
)

// listingStore is what both the listing and reporting services need from storage.
type listingStore interface {
	listings.Repository
	reporting.ListingSource
}

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	mongo    *mongodb.Store
	listings listingStore
	users    listings.UserDirectory
	images   listings.ImageStore
	reports  reporting.ReportStore
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	baseLogger, err := logger.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(baseLogger)

	a := &app{cfg: cfg, logger: baseLogger}

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		baseLogger.Warn("using in-memory storage, data is lost on exit")
		a.listings = memory.NewListingRepository()
		a.users = memory.NewUserDirectory()
		a.images = memory.NewImageStore()
		a.reports = memory.NewReportStore()
	default:
		store, err := mongodb.Connect(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, logger.Named(baseLogger, "repo.mongodb"))
		if err != nil {
			return nil, err
		}
		images, err := store.Images()
		if err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}
		a.mongo = store
		a.listings = store.Listings()
		a.users = store.Users()
		a.images = images
		a.reports = store
	}

	return a, nil
}

func (a *app) close() {
	if a.mongo != nil {
		if err := a.mongo.Close(context.Background()); err != nil {
			a.logger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// pinger is nil when there is no external store to check.
func (a *app) pinger() handlers.Pinger {
	if a.mongo == nil {
		return nil
	}
	return a.mongo
}

// reportingService wires the report job with every configured publisher.
func (a *app) reportingService(ctx context.Context) (*reporting.Service, error) {
	var publishers []reporting.Publisher

	if a.cfg.Reporting.WebhookURL != "" {
		publishers = append(publishers, webhook.NewClient(a.cfg.Reporting.WebhookURL, a.cfg.Reporting.WebhookToken))
		a.logger.Info("inventory report webhook enabled")
	}

	if a.cfg.Sheets.Enabled() {
		repo, err := sheets.NewGoogleSheetRepository(ctx, a.cfg.Sheets, logger.Named(a.logger, "repo.sheets"))
		if err != nil {
			return nil, fmt.Errorf("failed to init sheets repository: %w", err)
		}
		publishers = append(publishers, sheets.NewReportExporter(repo, a.cfg.Sheets.ReportRange))
		a.logger.Info("inventory report sheet export enabled", zap.String("range", a.cfg.Sheets.ReportRange))
	}

	return reporting.NewService(a.listings, a.reports, logger.Named(a.logger, "svc.reporting"), publishers...), nil
}
