// Package app composes the application with fx and drives one job run
// from launch to terminal status.
package app

import (
	"context"

	"go.uber.org/fx"

	appconfig "github.com/tigerroll/passbatch/internal/config"
	appjob "github.com/tigerroll/passbatch/internal/job"
	"github.com/tigerroll/passbatch/internal/notification"
	"github.com/tigerroll/passbatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/passbatch/pkg/batch/adapter/database/gorm"
	gormmysql "github.com/tigerroll/passbatch/pkg/batch/adapter/database/gorm/mysql"
	gormpostgres "github.com/tigerroll/passbatch/pkg/batch/adapter/database/gorm/postgres"
	gormsqlite "github.com/tigerroll/passbatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/passbatch/pkg/batch/adapter/storage"
	storageconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/storage/config"
	storagegcs "github.com/tigerroll/passbatch/pkg/batch/adapter/storage/gcs"
	storagelocal "github.com/tigerroll/passbatch/pkg/batch/adapter/storage/local"
	coreadapter "github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/usecase"
	coreconfig "github.com/tigerroll/passbatch/pkg/batch/core/config"
	"github.com/tigerroll/passbatch/pkg/batch/core/domain/repository"
	coremetrics "github.com/tigerroll/passbatch/pkg/batch/core/metrics"
	coretx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	inframetrics "github.com/tigerroll/passbatch/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/passbatch/pkg/batch/infrastructure/repository/inmemory"
	supportjob "github.com/tigerroll/passbatch/pkg/batch/support/job"
)

// Module wires the framework and application components.
var Module = fx.Options(
	fx.Provide(
		appconfig.Load,
		provideDatabaseConfigs,
		provideStorageConfigs,

		fx.Annotate(providePostgresProvider, fx.ResultTags(`group:"db_providers"`)),
		fx.Annotate(provideMySQLProvider, fx.ResultTags(`group:"db_providers"`)),
		fx.Annotate(provideSQLiteProvider, fx.ResultTags(`group:"db_providers"`)),
		fx.Annotate(database.NewConnectionResolver, fx.ParamTags(`group:"db_providers"`)),

		fx.Annotate(provideLocalStorageProvider, fx.ResultTags(`group:"storage_providers"`)),
		fx.Annotate(provideGCSStorageProvider, fx.ResultTags(`group:"storage_providers"`)),
		fx.Annotate(storage.NewConnectionResolver, fx.ParamTags(`group:"storage_providers"`)),

		fx.Annotate(inmemory.NewInMemoryJobRepository, fx.As(new(repository.JobRepository))),
		fx.Annotate(gormadapter.NewGormTransactionManagerFactory, fx.As(new(coretx.TransactionManagerFactory))),
		fx.Annotate(notification.NewLogSender, fx.As(new(notification.Sender))),

		provideObservability,
		appjob.NewFactory,
		provideRegistry,
		usecase.NewJobLauncher,
	),
)

func provideDatabaseConfigs(cfg *coreconfig.Config) (map[string]dbconfig.DatabaseConfig, error) {
	return cfg.DatabaseConfigs()
}

func provideStorageConfigs(cfg *coreconfig.Config) (map[string]storageconfig.StorageConfig, error) {
	return cfg.StorageConfigs()
}

func providePostgresProvider(configs map[string]dbconfig.DatabaseConfig) coreadapter.DBProvider {
	return gormpostgres.NewProvider(configs)
}

func provideMySQLProvider(configs map[string]dbconfig.DatabaseConfig) coreadapter.DBProvider {
	return gormmysql.NewProvider(configs)
}

func provideSQLiteProvider(configs map[string]dbconfig.DatabaseConfig) coreadapter.DBProvider {
	return gormsqlite.NewProvider(configs)
}

func provideLocalStorageProvider(configs map[string]storageconfig.StorageConfig) storage.StorageProvider {
	return storagelocal.NewProvider(configs)
}

func provideGCSStorageProvider(configs map[string]storageconfig.StorageConfig) storage.StorageProvider {
	return storagegcs.NewProvider(configs)
}

func provideRegistry(factory *appjob.Factory) (*supportjob.Registry, error) {
	return supportjob.NewRegistry(factory.Registrations())
}

// provideObservability selects the metric recorder and tracer from the
// configuration, tying exporter lifecycles to the fx application.
func provideObservability(lc fx.Lifecycle, cfg *coreconfig.Config) (coremetrics.MetricRecorder, coremetrics.Tracer, error) {
	var recorder coremetrics.MetricRecorder = coremetrics.NewNoOpMetricRecorder()
	if cfg.PassBatch.Metrics.Enabled {
		promRecorder := inframetrics.NewPrometheusRecorder()
		server := inframetrics.NewMetricsServer(cfg.PassBatch.Metrics.Port, promRecorder.Handler())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				server.Start()
				return nil
			},
			OnStop: server.Stop,
		})
		recorder = promRecorder
	}

	var tracer coremetrics.Tracer = coremetrics.NewNoOpTracer()
	if cfg.PassBatch.Tracing.Enabled {
		// The otel globals delegate, so instruments created here bind to
		// the SDK providers installed in OnStart.
		otelTracer, err := inframetrics.NewOtelTracer()
		if err != nil {
			return nil, nil, err
		}
		tracer = otelTracer

		tracing := cfg.PassBatch.Tracing
		var shutdowns []inframetrics.ShutdownFunc
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				_, stopTraces, err := inframetrics.NewTracerProvider(ctx, tracing)
				if err != nil {
					return err
				}
				shutdowns = append(shutdowns, stopTraces)
				_, stopMetrics, err := inframetrics.NewMeterProvider(ctx, tracing)
				if err != nil {
					return err
				}
				shutdowns = append(shutdowns, stopMetrics)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				var firstErr error
				for i := len(shutdowns) - 1; i >= 0; i-- {
					if err := shutdowns[i](ctx); err != nil && firstErr == nil {
						firstErr = err
					}
				}
				return firstErr
			},
		})
	}
	return recorder, tracer, nil
}
