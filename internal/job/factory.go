// Package job assembles the four application jobs from the framework
// engine and the application components.
package job

import (
	"database/sql"

	"github.com/tigerroll/passbatch/internal/component/processor"
	appreader "github.com/tigerroll/passbatch/internal/component/reader"
	apptasklet "github.com/tigerroll/passbatch/internal/component/tasklet"
	appwriter "github.com/tigerroll/passbatch/internal/component/writer"
	appconfig "github.com/tigerroll/passbatch/internal/config"
	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/internal/notification"
	"github.com/tigerroll/passbatch/internal/params"
	"github.com/tigerroll/passbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/passbatch/pkg/batch/adapter/storage"
	fwwriter "github.com/tigerroll/passbatch/pkg/batch/component/step/writer"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/passbatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/passbatch/pkg/batch/core/job/split"
	"github.com/tigerroll/passbatch/pkg/batch/core/metrics"
	coretx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	itemstep "github.com/tigerroll/passbatch/pkg/batch/engine/step/item"
	taskletstep "github.com/tigerroll/passbatch/pkg/batch/engine/step/tasklet"
	supportjob "github.com/tigerroll/passbatch/pkg/batch/support/job"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "job_factory"

// Job names.
const (
	AddPassesJobName                = "addPassesJob"
	ExpirePassesJobName             = "expirePassesJob"
	SendNotificationBeforeClassName = "sendNotificationBeforeClassJob"
	MakeStatisticsJobName           = "makeStatisticsJob"
)

// Factory builds job instances from shared infrastructure. A fresh job is
// built per launch so stateful components (cursors, buffers) are never
// shared between runs.
type Factory struct {
	cfg             *appconfig.AppConfig
	repo            repository.JobRepository
	dbResolver      *database.ConnectionResolver
	txFactory       coretx.TransactionManagerFactory
	storageResolver *storage.ConnectionResolver
	sender          notification.Sender
	recorder        metrics.MetricRecorder
	tracer          metrics.Tracer
}

// NewFactory wires a factory.
func NewFactory(
	cfg *appconfig.AppConfig,
	repo repository.JobRepository,
	dbResolver *database.ConnectionResolver,
	txFactory coretx.TransactionManagerFactory,
	storageResolver *storage.ConnectionResolver,
	sender notification.Sender,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Factory {
	return &Factory{
		cfg:             cfg,
		repo:            repo,
		dbResolver:      dbResolver,
		txFactory:       txFactory,
		storageResolver: storageResolver,
		sender:          sender,
		recorder:        recorder,
		tracer:          tracer,
	}
}

// Registrations lists every application job for the registry.
func (f *Factory) Registrations() []supportjob.Registration {
	return []supportjob.Registration{
		{Name: AddPassesJobName, Build: f.BuildAddPassesJob},
		{Name: ExpirePassesJobName, Build: f.BuildExpirePassesJob},
		{Name: SendNotificationBeforeClassName, Build: f.BuildSendNotificationBeforeClassJob},
		{Name: MakeStatisticsJobName, Build: f.BuildMakeStatisticsJob},
	}
}

// connection resolves the configured database connection and a
// transaction manager plus raw sql.DB handle for the readers.
func (f *Factory) connection() (coretx.TransactionManager, *sql.DB, string, error) {
	conn, err := f.dbResolver.Resolve(f.cfg.Jobs.Database)
	if err != nil {
		return nil, nil, "", exception.NewBatchErrorf(moduleName, "failed to resolve database connection '%s': %w", f.cfg.Jobs.Database, err)
	}
	txManager, err := f.txFactory.NewTransactionManager(conn)
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := conn.GetSQLDB()
	if err != nil {
		return nil, nil, "", err
	}
	return txManager, sqlDB, conn.Type(), nil
}

// BuildAddPassesJob composes the bulk pass issuance job: one tasklet step
// expanding READY orders in a single transaction.
func (f *Factory) BuildAddPassesJob() (port.Job, error) {
	txManager, _, _, err := f.connection()
	if err != nil {
		return nil, err
	}

	step := taskletstep.NewTaskletStep("addPasses", apptasklet.NewAddPassesTasklet(nil),
		f.repo, txManager, nil, f.recorder, f.tracer)

	flow := singleStepFlow("addPasses", step)
	return runner.NewFlowJob(AddPassesJobName, flow, f.repo, nil, f.recorder, f.tracer, nil), nil
}

// BuildExpirePassesJob composes the pass expiry job: one chunk step over
// elapsed IN_PROGRESS passes.
func (f *Factory) BuildExpirePassesJob() (port.Job, error) {
	txManager, sqlDB, driverType, err := f.connection()
	if err != nil {
		return nil, err
	}

	step := itemstep.NewChunkStep[entity.Pass, *entity.Pass](
		"expirePasses",
		appreader.NewExpiringPassReader(sqlDB, driverType, nil),
		processor.NewPassExpiryProcessor(nil),
		appwriter.NewExpiredPassWriter(),
		f.cfg.Jobs.ExpireChunkSize,
		f.repo, txManager, nil, f.recorder, f.tracer,
	)

	flow := singleStepFlow("expirePasses", step)
	return runner.NewFlowJob(ExpirePassesJobName, flow, f.repo, nil, f.recorder, f.tracer, nil), nil
}

// BuildSendNotificationBeforeClassJob composes the two-step notification
// job: derive BEFORE_CLASS notifications from upcoming bookings, then
// dispatch the unsent ones.
func (f *Factory) BuildSendNotificationBeforeClassJob() (port.Job, error) {
	txManager, sqlDB, driverType, err := f.connection()
	if err != nil {
		return nil, err
	}

	addStep := itemstep.NewChunkStep[entity.Booking, *entity.Notification](
		"addNotification",
		appreader.NewUpcomingBookingReader(sqlDB, driverType, f.cfg.NotificationLeadWindow(), f.cfg.Jobs.NotificationChunkSize, nil),
		processor.NewBookingNotificationProcessor(nil),
		appwriter.NewNotificationUpsertWriter(),
		f.cfg.Jobs.NotificationChunkSize,
		f.repo, txManager, nil, f.recorder, f.tracer,
	)

	sendStep := itemstep.NewChunkStep[entity.Notification, entity.Notification](
		"sendNotification",
		appreader.NewUnsentNotificationReader(sqlDB, driverType, entity.NotificationEventBeforeClass),
		nil,
		appwriter.NewNotificationSendWriter(f.sender, nil),
		f.cfg.Jobs.NotificationChunkSize,
		f.repo, txManager, nil, f.recorder, f.tracer,
	)

	flow := model.NewFlowDefinition("addNotification")
	flow.AddElement("addNotification", addStep)
	flow.AddElement("sendNotification", sendStep)
	flow.AddTransitionRule(model.TransitionRule{From: "addNotification", On: model.ExitStatusCompleted, To: "sendNotification"})
	flow.AddTransitionRule(model.TransitionRule{From: "addNotification", On: "*", Fail: true})
	flow.AddTransitionRule(model.TransitionRule{From: "sendNotification", On: model.ExitStatusCompleted, End: true})
	flow.AddTransitionRule(model.TransitionRule{From: "sendNotification", On: "*", Fail: true})

	return runner.NewFlowJob(SendNotificationBeforeClassName, flow, f.repo, nil, f.recorder, f.tracer, nil), nil
}

// BuildMakeStatisticsJob composes the statistics job: an aggregating
// chunk step over the bookings of the [from, to) window, then a parallel
// split exporting the daily and weekly Parquet reports.
func (f *Factory) BuildMakeStatisticsJob() (port.Job, error) {
	txManager, sqlDB, driverType, err := f.connection()
	if err != nil {
		return nil, err
	}

	addStep := itemstep.NewChunkStep[entity.Booking, entity.Booking](
		"addStatistics",
		appreader.NewBookingRangeReader(sqlDB, driverType),
		nil,
		appwriter.NewStatisticsWriter(nil),
		f.cfg.Jobs.StatisticsChunkSize,
		f.repo, txManager, nil, f.recorder, f.tracer,
	)

	writerConfig := fwwriter.ParquetWriterConfig{
		StorageRef:      f.cfg.Report.StorageRef,
		OutputBaseDir:   f.cfg.Report.OutputBaseDir,
		CompressionType: f.cfg.Report.Compression,
	}
	dailyStep := taskletstep.NewTaskletStep("makeDailyStatistics",
		apptasklet.NewDailyStatisticsTasklet(f.storageResolver, dailyConfig(writerConfig)),
		f.repo, txManager, nil, f.recorder, f.tracer)
	weeklyStep := taskletstep.NewTaskletStep("makeWeeklyStatistics",
		apptasklet.NewWeeklyStatisticsTasklet(f.storageResolver, weeklyConfig(writerConfig)),
		f.repo, txManager, nil, f.recorder, f.tracer)
	reportSplit := split.NewSplit("makeReports", dailyStep, weeklyStep)

	flow := model.NewFlowDefinition("addStatistics")
	flow.AddElement("addStatistics", addStep)
	flow.AddElement("makeReports", reportSplit)
	flow.AddTransitionRule(model.TransitionRule{From: "addStatistics", On: model.ExitStatusCompleted, To: "makeReports"})
	flow.AddTransitionRule(model.TransitionRule{From: "addStatistics", On: "*", Fail: true})
	flow.AddTransitionRule(model.TransitionRule{From: "makeReports", On: model.ExitStatusCompleted, End: true})
	flow.AddTransitionRule(model.TransitionRule{From: "makeReports", On: "*", Fail: true})

	return runner.NewFlowJob(MakeStatisticsJobName, flow, f.repo, nil, f.recorder, f.tracer,
		params.ValidateTimeRange), nil
}

func singleStepFlow(name string, step port.Step) *model.FlowDefinition {
	flow := model.NewFlowDefinition(name)
	flow.AddElement(name, step)
	flow.AddTransitionRule(model.TransitionRule{From: name, On: model.ExitStatusCompleted, End: true})
	flow.AddTransitionRule(model.TransitionRule{From: name, On: "*", Fail: true})
	return flow
}

func dailyConfig(base fwwriter.ParquetWriterConfig) fwwriter.ParquetWriterConfig {
	base.OutputBaseDir = base.OutputBaseDir + "/daily"
	return base
}

func weeklyConfig(base fwwriter.ParquetWriterConfig) fwwriter.ParquetWriterConfig {
	base.OutputBaseDir = base.OutputBaseDir + "/weekly"
	return base
}
