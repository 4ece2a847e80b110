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

	"intake/internal/config"
	"intake/internal/domain"
	"intake/internal/observability/logging"
	"intake/internal/observability/metrics"
	"intake/internal/scheduler"
	impl "intake/internal/service/impl"
	"intake/internal/store"
	httpx "intake/internal/transport/http"
	"intake/internal/transport/ws"
	"intake/pkg/db"
)

func main() {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "intake",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	slog.SetDefault(logger)
	logger.Info("starting service")

	cfg := config.Load()
	metrics.MustRegister("intake")

	// 1) DB
	gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}
	if err := gdb.AutoMigrate(
		&domain.User{}, &domain.OTPRecord{}, &domain.Session{},
		&domain.Ticket{}, &domain.Task{},
	); err != nil {
		logger.Error("automigrate", "error", err)
		os.Exit(1)
	}
	st := store.New(gdb)

	// 2) Services
	otp := impl.NewOTPServiceImpl(st)
	pw := impl.NewPasswordServiceArgon2id()
	mig := impl.NewMigrationServiceImpl(st)
	auth := impl.NewAuthServiceImpl(st, otp, pw, mig)
	auth.EchoOTP = cfg.EchoOTP && env != "production"

	sessions, err := impl.NewSessionServiceHS256(impl.SessionConfig{
		Issuer:     cfg.Issuer,
		TTL:        cfg.SessionTTL,
		SigningKey: []byte(cfg.SigningKey),
	}, st)
	if err != nil {
		logger.Error("session service", "error", err)
		os.Exit(1)
	}

	// 3) Notification gateway + liveness sweep
	gateway := ws.NewGateway(sessions, st.Tickets(), cfg.CookieName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go gateway.Run(ctx)

	// 4) Timer-driven jobs: migration reminders and deletions daily, OTP
	// purge hourly in place of a document-store TTL index.
	jobs := scheduler.New(
		scheduler.Job{Name: "migration-reminders", Interval: 24 * time.Hour, Run: mig.RunReminderJob},
		scheduler.Job{Name: "migration-deletions", Interval: 24 * time.Hour, Run: mig.RunDeletionJob},
		scheduler.Job{Name: "otp-purge", Interval: time.Hour, Run: func(ctx context.Context) error {
			n, err := st.OTPs().PurgeExpired(ctx, time.Now().UTC())
			if n > 0 {
				slog.Info("purged expired otp records", "count", n)
			}
			return err
		}},
	)
	jobs.Start(ctx)

	// 5) HTTP
	router := httpx.NewRouter(httpx.Deps{
		Auth:          auth,
		Sessions:      sessions,
		Migration:     mig,
		Gateway:       gateway,
		CookieName:    cfg.CookieName,
		SecureCookies: env == "production",
		CORSOrigins:   cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("intake service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
