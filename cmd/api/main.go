package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mailmerge-backend/internal/bootstrap"
	"mailmerge-backend/internal/shared/config"
	"mailmerge-backend/internal/shared/server"
	"mailmerge-backend/internal/shared/telemetry"
)

const (
	mailCheckTimeout = 30 * time.Second
	shutdownTimeout  = 15 * time.Second
)

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.SentryDSN, cfg.Env); err != nil {
		telemetry.Warn("sentry.init_failed", map[string]any{"err": err})
	}
	defer telemetry.Flush(2 * time.Second)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("bootstrap.failed", map[string]any{"err": err})
		telemetry.Flush(2 * time.Second)
		os.Exit(1)
	}

	checkMail(app, cfg)

	addr := server.Addr(cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		telemetry.Info("server.start", map[string]any{"addr": addr, "env": cfg.Env, "store": cfg.ObjectStoreType})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			telemetry.Error("server.error", map[string]any{"err": err})
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Error("server.shutdown_failed", map[string]any{"err": err})
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
	telemetry.Info("server.stopped", nil)
}

// checkMail verifies the transport once at startup. Failures are logged and
// exposed by the health endpoint; the server still starts.
func checkMail(app *bootstrap.App, cfg config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), mailCheckTimeout)
	defer cancel()

	if err := app.Dispatcher.Check(ctx); err != nil || !cfg.Mail.SelfTest {
		return
	}
	msgID, err := app.Dispatcher.SelfTest(ctx)
	if err != nil {
		telemetry.Error("mail.self_test_failed", map[string]any{"err": err})
		return
	}
	telemetry.Info("mail.self_test_sent", map[string]any{"message_id": msgID})
}
