package app

import (
	"context"
	"io/fs"
	"time"

	"go.uber.org/fx"

	appconfig "github.com/tigerroll/passbatch/internal/config"
	"github.com/tigerroll/passbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/passbatch/pkg/batch/adapter/database/migration"
	"github.com/tigerroll/passbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/usecase"
	coreconfig "github.com/tigerroll/passbatch/pkg/batch/core/config"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

const moduleName = "app"

// Options carries the entrypoint's inputs into the application.
type Options struct {
	// JobName selects the job to launch.
	JobName string
	// Params are the job parameters from the command line.
	Params model.JobParameters
	// EnvFilePath is an optional .env file applied before config loading.
	EnvFilePath string
	// EmbeddedConfig is the raw application.yaml.
	EmbeddedConfig coreconfig.EmbeddedConfig
	// Migrations holds the migrations/<dbType>/ SQL trees.
	Migrations fs.FS
}

// Run loads the configuration, composes the application, migrates the
// schema, launches the requested job and polls it to a terminal status.
// It returns the finished JobExecution.
func Run(ctx context.Context, opts Options) (*model.JobExecution, error) {
	cfg, err := coreconfig.LoadConfig(opts.EnvFilePath, opts.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	var (
		launcher        *usecase.JobLauncher
		repo            repository.JobRepository
		dbResolver      *database.ConnectionResolver
		storageResolver *storage.ConnectionResolver
		appCfg          *appconfig.AppConfig
	)
	fxApp := fx.New(
		fx.Supply(cfg, opts.EmbeddedConfig),
		Module,
		fx.Populate(&launcher, &repo, &dbResolver, &storageResolver, &appCfg),
		fx.NopLogger,
	)
	if err := fxApp.Err(); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to compose application", err, false, false)
	}
	if err := fxApp.Start(ctx); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to start application", err, false, false)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fxApp.Stop(stopCtx); err != nil {
			logger.Errorf("failed to stop application cleanly: %v", err)
		}
		if err := dbResolver.CloseAll(); err != nil {
			logger.Errorf("failed to close database connections: %v", err)
		}
		if err := storageResolver.CloseAll(); err != nil {
			logger.Errorf("failed to close storage connections: %v", err)
		}
	}()

	if err := migrate(dbResolver, appCfg, opts.Migrations); err != nil {
		return nil, err
	}

	jobExecution, err := launcher.Launch(ctx, opts.JobName, opts.Params)
	if err != nil {
		return nil, err
	}
	logger.Infof("job '%s' launched, execution %s", opts.JobName, jobExecution.ID)

	return waitForCompletion(ctx, repo, jobExecution.ID, cfg.PassBatch.Batch.PollingIntervalSeconds)
}

func migrate(dbResolver *database.ConnectionResolver, appCfg *appconfig.AppConfig, migrations fs.FS) error {
	if migrations == nil {
		return nil
	}
	conn, err := dbResolver.Resolve(appCfg.Jobs.Database)
	if err != nil {
		return err
	}
	return migration.NewMigrator(conn, migrations, "migrations/"+conn.Type()).Up()
}

// waitForCompletion polls the repository until the execution finishes or
// ctx is cancelled.
func waitForCompletion(ctx context.Context, repo repository.JobRepository, executionID string, pollingIntervalSeconds int) (*model.JobExecution, error) {
	if pollingIntervalSeconds <= 0 {
		pollingIntervalSeconds = 1
	}
	ticker := time.NewTicker(time.Duration(pollingIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		je, err := repo.FindJobExecutionByID(ctx, executionID)
		if err != nil {
			return nil, err
		}
		if je.Status.IsFinished() {
			logger.Infof("job execution %s finished: status=%s exit=%s", je.ID, je.Status, je.ExitStatus)
			return je, nil
		}
		select {
		case <-ctx.Done():
			// Cancellation propagates into the running job through its own
			// context; report the last observed state.
			return je, ctx.Err()
		case <-ticker.C:
		}
	}
}
