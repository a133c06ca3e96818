package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prperemyshlev/clavis-auth/internal/config"
	"github.com/prperemyshlev/clavis-auth/migrations"
	"github.com/prperemyshlev/clavis-auth/pkg/database"
	"github.com/prperemyshlev/clavis-auth/pkg/messaging"
	"github.com/prperemyshlev/clavis-auth/pkg/observability"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const serviceName = "clavis-auth"

type Infrastructure interface {
	Postgres() *database.Postgres
	Redis() *database.Redis
	// Kafka is nil when no brokers are configured
	Kafka() *messaging.Kafka
	Logger() *zap.Logger
	MetricsHandler() http.Handler
	MeterProvider() *metric.MeterProvider

	Shutdown(ctx context.Context) error
}

type infrastructure struct {
	postgres       *database.Postgres
	redis          *database.Redis
	kafka          *messaging.Kafka
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
}

var _ Infrastructure = &infrastructure{}

func NewInfrastructure(ctx context.Context, cfg config.Config) (*infrastructure, error) {
	i := &infrastructure{}

	logger, err := observability.InitLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	i.logger = logger

	if cfg.Postgres.AutoMigrate {
		if err := migrate(cfg.Postgres.URL(), logger); err != nil {
			return nil, err
		}
	}

	postgres, err := database.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	i.postgres = postgres

	redis, err := database.NewRedis(ctx, database.RedisOptions{
		Addr:      cfg.Redis.Address(),
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		_ = i.postgres.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	i.redis = redis

	if cfg.Kafka.Enabled() {
		kafka, err := messaging.NewKafka(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, serviceName)
		if err != nil {
			_ = i.postgres.Close()
			_ = i.redis.Close()
			return nil, fmt.Errorf("failed to connect to Kafka: %w", err)
		}
		i.kafka = kafka
	}

	meterProvider, metricsHandler, err := observability.InitTelemetry(serviceName)
	if err != nil {
		_ = i.close(ctx)
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	i.meterProvider = meterProvider
	i.metricsHandler = metricsHandler

	return i, nil
}

func migrate(databaseURL string, logger *zap.Logger) error {
	migrator, err := database.NewMigrator(migrations.FS, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Database schema up to date", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (i *infrastructure) Postgres() *database.Postgres {
	return i.postgres
}

func (i *infrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *infrastructure) Kafka() *messaging.Kafka {
	return i.kafka
}

func (i *infrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *infrastructure) MetricsHandler() http.Handler {
	return i.metricsHandler
}

func (i *infrastructure) MeterProvider() *metric.MeterProvider {
	return i.meterProvider
}

// close releases the connections without touching telemetry
func (i *infrastructure) close(ctx context.Context) error {
	errs := make(chan error, 3)

	go func() { errs <- i.postgres.Close() }()
	go func() { errs <- i.redis.Close() }()
	go func() {
		if i.kafka == nil {
			errs <- nil
			return
		}
		errs <- i.kafka.Close(ctx)
	}()

	return errors.Join(<-errs, <-errs, <-errs)
}

func (i *infrastructure) Shutdown(ctx context.Context) error {
	errs := make(chan error, 2)

	go func() { errs <- i.close(ctx) }()
	go func() { errs <- observability.Shutdown(ctx, i.meterProvider, i.logger) }()

	return errors.Join(<-errs, <-errs)
}
