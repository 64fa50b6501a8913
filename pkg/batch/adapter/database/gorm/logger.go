package gorm

import (
	"context"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

// gormLogBridge routes GORM's logging into the framework logger so SQL
// diagnostics follow the configured log level.
type gormLogBridge struct {
	slowThreshold time.Duration
}

// NewGormLogger returns a gorm logger.Interface backed by the framework
// logger.
func NewGormLogger() gormlogger.Interface {
	return &gormLogBridge{slowThreshold: 200 * time.Millisecond}
}

func (l *gormLogBridge) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	// Level filtering is delegated to the framework logger.
	return l
}

func (l *gormLogBridge) Info(ctx context.Context, format string, args ...interface{}) {
	logger.Debugf("gorm: "+format, args...)
}

func (l *gormLogBridge) Warn(ctx context.Context, format string, args ...interface{}) {
	logger.Warnf("gorm: "+format, args...)
}

func (l *gormLogBridge) Error(ctx context.Context, format string, args ...interface{}) {
	logger.Errorf("gorm: "+format, args...)
}

func (l *gormLogBridge) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	switch {
	case err != nil && err != gormlogger.ErrRecordNotFound:
		logger.Errorf("gorm: %s [%d rows, %s]: %v", sql, rows, elapsed, err)
	case elapsed > l.slowThreshold:
		logger.Warnf("gorm: slow query %s [%d rows, %s]", sql, rows, elapsed)
	default:
		logger.Debugf("gorm: %s [%d rows, %s]", sql, rows, elapsed)
	}
}
