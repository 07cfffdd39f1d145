package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"campus-bus-backend/config"
	"campus-bus-backend/internal/account"
	"campus-bus-backend/internal/api"
	"campus-bus-backend/internal/booking"
	"campus-bus-backend/internal/db"
	"campus-bus-backend/internal/events"
	"campus-bus-backend/internal/fleet"
	"campus-bus-backend/internal/logger"
	"campus-bus-backend/internal/metrics"
	"campus-bus-backend/internal/notification"
	"campus-bus-backend/internal/reconciler"
	"campus-bus-backend/internal/report"
	"campus-bus-backend/internal/store"
	"campus-bus-backend/internal/window"
)

func main() {
	log := logger.New(os.Getenv("DEBUG") != "")
	defer log.Sync()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("failed to load configuration", "path", configPath, "error", err)
	}
	log.Info("configuration loaded", "path", configPath)

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be configured")
	}
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		log.Warn("VAPID keys are not configured, push notifications are disabled")
	}

	// Initialize database
	gormDB, err := db.Open(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	appStore := store.NewGormStore(gormDB)
	log.Info("database initialized", "driver", cfg.Database.Driver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	loc := window.LoadLocation(cfg.Schedule.Timezone)
	eval := window.NewEvaluator(window.SystemClock{}, loc)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled && len(cfg.Events.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		log.Info("publishing booking events", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	var mailer notification.Mailer
	smtpMailer, err := notification.NewSMTPMailer(cfg.SMTP)
	if err != nil {
		log.Fatal("failed to configure SMTP", "error", err)
	}
	if smtpMailer != nil {
		mailer = smtpMailer
	} else {
		log.Warn("SMTP is not configured, email notifications are disabled")
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, mailer, webpushOptions, log, m)
	pool.Start(ctx)

	tokens := account.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	bookings := booking.NewService(appStore, eval, pool, publisher, m, log, cfg.Notify.ServiceName)

	// The reconciler gets its own context so it can be stopped before the
	// booking service is drained.
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeperDone := make(chan struct{})
	if cfg.Reconciler.Enabled {
		sweeper := reconciler.NewService(appStore, eval, bookings, cfg.Reconciler.Interval, log)
		go func() {
			defer close(sweeperDone)
			sweeper.Run(sweepCtx)
		}()
	} else {
		close(sweeperDone)
	}

	fleetRegistry := fleet.NewRegistry(appStore, eval, publisher, bookings, log)

	handler := api.NewHandler(api.Services{
		Store:    appStore,
		Accounts: account.NewService(appStore, tokens, cfg.Auth, log),
		Bookings: bookings,
		Fleet:    fleetRegistry,
		Reports:  report.NewGenerator(appStore, loc),
		Window:   eval,
		WebPush:  webpushOptions,
		Log:      log,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		Server:   cfg.Server,
		Tokens:   tokens,
		Metrics:  m,
		Gatherer: reg,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe", "error", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	log.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server Shutdown", "error", err)
	}

	// No new promotions once the reconciler is gone. Background promotions
	// may still queue notifications, so drain them before stopping the
	// workers.
	stopSweeper()
	<-sweeperDone
	bookings.Drain()
	fleetRegistry.Drain()
	cancel()
	pool.Wait()

	if err := publisher.Close(); err != nil {
		log.Error("failed to close event publisher", "error", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info("server gracefully stopped")
}
