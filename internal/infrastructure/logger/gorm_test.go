package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level), recorded
}

func invoiceQuery() (string, int64) {
	return "SELECT * FROM invoice_lines WHERE invoice_date <= $1", 42
}

func TestGormLogger_LogMode(t *testing.T) {
	gormLog, _ := newObservedGormLogger(gormlogger.Info)
	newLogger := gormLog.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel, "original logger keeps its level")

	newGormLog, ok := newLogger.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, newGormLog.logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("query logged at debug with sql and row count", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Info)

		gormLog.Trace(context.Background(), time.Now(), invoiceQuery, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
		assert.Equal(t, "SQL Query", logs[0].Message)
		fields := logs[0].ContextMap()
		assert.Contains(t, fields["sql"], "invoice_lines")
		assert.EqualValues(t, 42, fields["rows"])
	})

	t.Run("request id from the context is carried on the query log", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Info)
		ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-fulfillment-7")

		gormLog.Trace(ctx, time.Now(), invoiceQuery, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "req-fulfillment-7", logs[0].ContextMap()["request_id"])
	})

	t.Run("error logged with the failing statement", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Error)

		gormLog.Trace(context.Background(), time.Now(), invoiceQuery, errors.New("connection reset"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
		assert.Equal(t, "SQL Error", logs[0].Message)
		assert.Equal(t, "connection reset", logs[0].ContextMap()["error"])
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Error)

		gormLog.Trace(context.Background(), time.Now(), invoiceQuery, gormlogger.ErrRecordNotFound)

		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("slow query warned past the threshold", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Warn)
		gormLog.slowThreshold = time.Nanosecond

		gormLog.Trace(context.Background(), time.Now().Add(-time.Second), invoiceQuery, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
		assert.Contains(t, logs[0].Message, "SLOW SQL")
	})

	t.Run("silent level logs nothing", func(t *testing.T) {
		gormLog, recorded := newObservedGormLogger(gormlogger.Silent)

		gormLog.Trace(context.Background(), time.Now(), invoiceQuery, errors.New("connection reset"))

		assert.Equal(t, 0, recorded.Len())
	})
}

func TestGormLogger_LevelGates(t *testing.T) {
	gormLog, recorded := newObservedGormLogger(gormlogger.Warn)

	gormLog.Info(context.Background(), "migration step %d", 1)
	assert.Equal(t, 0, recorded.Len(), "info suppressed below Info level")

	gormLog.Warn(context.Background(), "retrying connect %d", 2)
	gormLog.Error(context.Background(), "connect failed after %d tries", 3)
	require.Equal(t, 2, recorded.Len())
	assert.Equal(t, "retrying connect 2", recorded.All()[0].Message)
	assert.Equal(t, "connect failed after 3 tries", recorded.All()[1].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
