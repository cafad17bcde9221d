package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	app "github.com/mohammadpnp/energy-crm/internal/application/importing"
	"github.com/mohammadpnp/energy-crm/internal/config"
	infrafile "github.com/mohammadpnp/energy-crm/internal/infrastructure/file"
	"github.com/mohammadpnp/energy-crm/internal/infrastructure/notify"
	"github.com/mohammadpnp/energy-crm/internal/infrastructure/repository"
	"github.com/mohammadpnp/energy-crm/internal/infrastructure/spreadsheet"
	httpecho "github.com/mohammadpnp/energy-crm/internal/interfaces/http/echo"
)

type App struct {
	Server *echo.Echo
	Worker *app.Worker

	db   *gorm.DB
	pool *pgxpool.Pool
}

func NewApp(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*App, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	importRepo := repository.NewImportRepository(db, cfg.MaxAttempts)
	taskRepo := repository.NewImportTaskRepository(pool)
	crmRepo := repository.NewCRMRepository(db)
	files := infrafile.NewLocalStorage(cfg.ImportDir, cfg.MaxFileBytes)
	reader := spreadsheet.NewExcelReader()
	normalizer := app.NewNormalizer(log.Named("normalizer"))

	var notifier app.Notifier = notify.NewLogNotifier(log.Named("notify"))
	if cfg.SMTP.Addr != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Addr:     cfg.SMTP.Addr,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}, crmRepo, log.Named("notify"))
	}

	analyzer := app.NewAnalyzer(importRepo, crmRepo, reader, files, normalizer, cfg.BatchSize, log.Named("analyzer"))
	processor := app.NewProcessor(importRepo, crmRepo, reader, files, normalizer, log.Named("processor"))
	service := app.NewService(importRepo, files, notifier, analyzer, processor, app.ServiceConfig{BatchSize: cfg.BatchSize}, log.Named("imports"))
	worker := app.NewWorker(taskRepo, service, app.WorkerConfig{
		Workers:       cfg.Workers,
		LeaseDuration: cfg.LeaseDuration(),
	}, log.Named("worker"))

	server := NewHTTPServer(httpecho.NewImportHandler(service, log.Named("http")), cfg.MaxFileBytes)

	return &App{Server: server, Worker: worker, db: db, pool: pool}, nil
}

func (a *App) Close() {
	a.pool.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func NewHTTPServer(importHandler *httpecho.ImportHandler, maxUploadBytes int64) *echo.Echo {
	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit(bodyLimit(maxUploadBytes)))

	httpecho.RegisterRoutes(server, importHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return server
}

// bodyLimit leaves room for the multipart envelope around the file.
func bodyLimit(maxUploadBytes int64) string {
	if maxUploadBytes <= 0 {
		return "25M"
	}
	return strconv.FormatInt(maxUploadBytes>>20+1, 10) + "M"
}
