// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Kinbank HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and run migrations (idempotent).
//  4. Connect to Redis, or fall back to in-process sessions.
//  5. Connect to MongoDB and ensure its indexes.
//  6. Open the image store (S3 or local disk) and the mail sender.
//  7. Wire services and HTTP handlers.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/kinbank/internal/api"
	"github.com/taibuivan/kinbank/internal/banking"
	"github.com/taibuivan/kinbank/internal/banking/rates"
	"github.com/taibuivan/kinbank/internal/notify"
	"github.com/taibuivan/kinbank/internal/platform/config"
	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/mail"
	"github.com/taibuivan/kinbank/internal/platform/migration"
	mongostore "github.com/taibuivan/kinbank/internal/platform/mongo"
	"github.com/taibuivan/kinbank/internal/platform/objectstore"
	pgstore "github.com/taibuivan/kinbank/internal/platform/postgres"
	redisstore "github.com/taibuivan/kinbank/internal/platform/redis"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/internal/users/auth"
	"github.com/taibuivan/kinbank/internal/users/profile"
)

// sessionSweepInterval paces the cleanup of the in-process session fallback.
const sessionSweepInterval = time.Minute

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("[Kinbank] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	timeouts := dberr.Timeouts{Call: cfg.StoreTimeout}

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Background work stops with the process.
	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 4. Sessions (Redis or memory) ─────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")

	var sessionStore auth.SessionStore
	var checkSessions api.Check
	if rdb != nil {
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
		sessionStore = auth.NewRedisSessionStore(rdb, timeouts)
		checkSessions = func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }
	} else {
		log.Warn("redis_not_configured", slog.String("fallback", "memory"))
		memoryStore := auth.NewMemorySessionStore(nil)
		go sweepSessions(runCtx, memoryStore, log)
		sessionStore = memoryStore
	}

	// ── 5. MongoDB ────────────────────────────────────────────────────────
	mongoClient, err := mongostore.NewClient(startupCtx, cfg.MongoURL, log)
	must(log, err, "connect to mongo")
	defer func() {
		log.Info("closing mongo client")
		if cerr := mongoClient.Disconnect(context.Background()); cerr != nil {
			log.Error("mongo disconnect error", slog.Any("error", cerr))
		}
	}()

	documents := mongoClient.Database(cfg.MongoDatabase)
	must(log, mongostore.EnsureIndexes(startupCtx, documents, log), "ensure mongo indexes")

	// ── 6. Images & Mail ──────────────────────────────────────────────────
	var images objectstore.Store
	if cfg.S3Bucket != "" {
		images, err = objectstore.NewS3Store(startupCtx, objectstore.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		must(log, err, "initialize s3 store")
	} else {
		log.Warn("s3_not_configured", slog.String("upload_dir", cfg.UploadDir))
		images, err = objectstore.NewDiskStore(cfg.UploadDir)
		must(log, err, "initialize disk store")
	}

	var sender mail.Sender
	if cfg.SMTPHost != "" {
		sender, err = mail.NewSMTPSender(mail.SMTPOptions{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		must(log, err, "initialize smtp sender")
	} else {
		log.Warn("smtp_not_configured", slog.String("fallback", "log"))
		sender = mail.NewLogSender(log)
	}

	mailer, err := notify.NewMailer(sender, cfg.PublicBaseURL)
	must(log, err, "parse mail templates")

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	signer, err := sec.NewSessionSigner(cfg.SessionSecret, constants.AuthIssuer)
	must(log, err, "initialize session signer")

	hasher := sec.NewHasher(cfg.HashIterations)
	sessions := auth.NewSessionManager(sessionStore, signer, cfg.SessionTTL, nil)

	profileService := profile.NewService(profile.NewMongoRepository(documents, timeouts), images, hasher, nil)

	authService := auth.NewService(auth.Dependencies{
		Users:       auth.NewUserRepository(pool, timeouts),
		Activations: auth.NewActivationRepository(documents, timeouts),
		Security:    auth.NewSecurityRepository(documents, timeouts),
		Sessions:    sessions,
		Hasher:      hasher,
		Notifier:    mailer,
		Hook:        profileService,
	}, auth.Config{
		ActivationTTL:   cfg.ActivationTTL,
		RecoveryCodeTTL: cfg.RecoveryCodeTTL,
		ResetWindow:     cfg.ResetWindow,
	})

	bankingService := banking.NewService(banking.NewRepository(pool, timeouts), authService, nil)
	ratesService := rates.NewService(rates.NewMongoRepository(documents, timeouts), nil)

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase:  func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		CheckSessions:  checkSessions,
		CheckDocuments: func(ctx context.Context) error { return mongostore.Ping(ctx, mongoClient) },
	}, log)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, cfg.IsProduction()),
		Profile:   profile.NewHandler(profileService),
		Banking:   banking.NewHandler(bankingService),
		Rates:     rates.NewHandler(ratesService),
	}

	server := api.NewServer(cfg, log, sessions, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", "kinbank"))
}

// sweepSessions drops expired in-process sessions until ctx ends.
func sweepSessions(ctx context.Context, store *auth.MemorySessionStore, log *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.Sweep(); removed > 0 {
				log.Debug("sessions_swept", slog.Int("removed", removed))
			}
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
