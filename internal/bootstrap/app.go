package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"mailmerge-backend/internal/batches"
	"mailmerge-backend/internal/files"
	"mailmerge-backend/internal/mailer"
	resendmail "mailmerge-backend/internal/mailer/resend"
	smtpmail "mailmerge-backend/internal/mailer/smtp"
	"mailmerge-backend/internal/services/health"
	"mailmerge-backend/internal/shared/config"
	"mailmerge-backend/internal/shared/server"
	"mailmerge-backend/internal/shared/storage/db"
	"mailmerge-backend/internal/shared/storage/object"
	localstore "mailmerge-backend/internal/shared/storage/object/local"
	s3store "mailmerge-backend/internal/shared/storage/object/s3"
	"mailmerge-backend/internal/shared/telemetry"
	"mailmerge-backend/merge/letter"
)

// App holds shared dependencies.
type App struct {
	Config        config.Config
	Router        *gin.Engine
	DB            *sql.DB
	Store         object.ObjectStore
	Dispatcher    *mailer.Dispatcher
	BatchesRepo   batches.Repo
	BatchService  *batches.Service
	FileService   *files.Service
	HealthService *health.Service
}

// Options overrides dependencies, mainly for tests.
type Options struct {
	// Sender replaces the transport selected from configuration.
	Sender mailer.Sender
}

// Build prepares shared dependencies and the router. Transport problems do
// not fail the build; they surface through the dispatcher's status.
func Build(cfg config.Config, opts ...Options) (*App, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sender := o.Sender
	if sender == nil {
		sender = buildSender(cfg)
	}
	dispatcher, err := mailer.NewDispatcher(sender, mailer.Config{Timeout: cfg.DeliveryTimeout})
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	app := &App{
		Config:     cfg,
		DB:         sqlDB,
		Store:      store,
		Dispatcher: dispatcher,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:        app.Config,
		BatchHandler:  batches.NewHandler(app.BatchService, cfg.MaxUploadBytes),
		FileHandler:   files.NewHandler(app.FileService),
		HealthService: app.HealthService,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.db_memory", map[string]any{"reason": "DATABASE_URL empty"})
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_memory", map[string]any{"reason": "connect failed", "err": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_memory", map[string]any{"reason": "migrations failed", "err": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildSender selects the mail transport. A transport that cannot be
// constructed is logged and replaced with mailer.Disabled.
func buildSender(cfg config.Config) mailer.Sender {
	m := cfg.Mail
	switch m.Provider {
	case "smtp":
		sender, err := smtpmail.New(smtpmail.Config{
			Host:              m.Host,
			Port:              m.Port,
			SSL:               m.SSL,
			Username:          m.User,
			Password:          m.Password,
			FromName:          m.FromName,
			Timeout:           cfg.DeliveryTimeout,
			OAuthClientID:     m.OAuthClientID,
			OAuthClientSecret: m.OAuthClientSecret,
			OAuthRefreshToken: m.OAuthRefreshToken,
		})
		if err != nil {
			telemetry.Error("bootstrap.mail_config_invalid", map[string]any{"provider": "smtp", "err": err})
			return mailer.Disabled{}
		}
		return sender
	case "resend":
		return resendmail.New(resendmail.Config{
			APIKey:      m.ResendAPIKey,
			SenderEmail: m.User,
			SenderName:  m.FromName,
		})
	default:
		return mailer.Disabled{}
	}
}

func buildServices(app *App) {
	var repo batches.Repo
	if app.DB != nil {
		repo = &batches.PGRepo{DB: app.DB}
	} else {
		repo = batches.NewMemoryRepo()
	}

	letterOpts := letter.DefaultOptions()
	if sig := strings.TrimSpace(app.Config.Letter.Signature); sig != "" {
		letterOpts.Signature = sig
	}

	app.BatchesRepo = repo
	app.BatchService = &batches.Service{
		Store:         app.Store,
		Repo:          repo,
		Mailer:        app.Dispatcher,
		Letter:        letterOpts,
		RenderTimeout: app.Config.RenderTimeout,
	}
	app.FileService = &files.Service{Store: app.Store}
	app.HealthService = health.NewService(app.Dispatcher, app.DB)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
