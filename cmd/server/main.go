package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/campcheck/internal/attendance"
	"github.com/mamadbah2/campcheck/internal/config"
	"github.com/mamadbah2/campcheck/internal/repository/mongodb"
	"github.com/mamadbah2/campcheck/internal/repository/sheets"
	"github.com/mamadbah2/campcheck/internal/scheduler"
	"github.com/mamadbah2/campcheck/internal/server/handlers"
	"github.com/mamadbah2/campcheck/internal/server/router"
	checkinsvc "github.com/mamadbah2/campcheck/internal/service/checkin"
	commandsvc "github.com/mamadbah2/campcheck/internal/service/commands"
	reportingsvc "github.com/mamadbah2/campcheck/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/campcheck/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/campcheck/pkg/clients/whatsapp"
	"github.com/mamadbah2/campcheck/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()

	loc := cfg.Reporting.Location()
	var deps checkinsvc.Dependencies

	if cfg.MongoDB.Enabled() {
		mongoRepo, err := mongodb.NewMongoDBRepository(bootCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		deps.Store = mongoRepo
	} else {
		baseLogger.Warn("mongodb not configured, state lives in memory only")
	}

	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(bootCtx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		deps.Exporter = sheets.NewExporter(sheetsRepo, loc)
	}

	var messagingSvc *whatsappsvc.MetaWhatsAppService
	if cfg.WhatsApp.Enabled() {
		// The dispatcher is attached below once the check-in service exists.
		messagingSvc = whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsappclient.NewClient(cfg.WhatsApp), nil, logger.Named(baseLogger, "svc.whatsapp"))
		deps.Notifier = messagingSvc
	} else {
		baseLogger.Warn("whatsapp token missing, counselor messaging disabled")
	}

	checkinSvc := checkinsvc.NewService(checkinsvc.Options{
		Ages:            attendance.AgeRange{Min: cfg.Camp.MinAge, Max: cfg.Camp.MaxAge},
		DefaultLocation: cfg.Camp.DefaultLocation,
		DefaultOperator: cfg.Camp.DefaultOperator,
		DirectorNumber:  cfg.WhatsApp.DirectorNumber,
	}, deps, logger.Named(baseLogger, "svc.checkin"))
	defer checkinSvc.Stop()

	reportingSvc := reportingsvc.NewService(checkinSvc, loc, logger.Named(baseLogger, "svc.reporting"))
	checkinSvc.SetFormatter(reportingSvc)

	if err := checkinSvc.Restore(bootCtx); err != nil {
		baseLogger.Fatal("failed to restore state", zap.Error(err))
	}

	var webhookHandler *handlers.WebhookHandler
	var notifier scheduler.Notifier
	if messagingSvc != nil {
		commandDispatcher := commandsvc.NewService(checkinSvc, reportingSvc, logger.Named(baseLogger, "svc.commands"))
		messagingSvc.SetDispatcher(commandDispatcher)
		webhookHandler = handlers.NewWebhookHandler(messagingSvc, logger.Named(baseLogger, "handlers.whatsapp"))
		notifier = messagingSvc
	}

	attendanceHandler := handlers.NewAttendanceHandler(checkinSvc, logger.Named(baseLogger, "handlers.attendance"))
	engine := router.New(attendanceHandler, webhookHandler, logger.Named(baseLogger, "router"))

	sched := scheduler.NewScheduler(*cfg, checkinSvc, reportingSvc, notifier, logger.Named(baseLogger, "scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
