package sync

import (
	"go.uber.org/zap"
)

const runLogName = "ldap_users_synchronization"

// runLogger tags every line of one run with the job name and the run id, so a
// whole run can be pulled out of the logs with a single uuid.
type runLogger struct {
	logger *zap.Logger
}

func newRunLogger(base *zap.Logger, runID string) *runLogger {
	return &runLogger{
		logger: base.With(zap.String("name", runLogName), zap.String("uuid", runID)),
	}
}

func (l *runLogger) fields(action string, fields []zap.Field) []zap.Field {
	return append([]zap.Field{zap.String("action", action)}, fields...)
}

func (l *runLogger) info(action string, fields ...zap.Field) {
	l.logger.Info(action, l.fields(action, fields)...)
}

func (l *runLogger) warn(action string, fields ...zap.Field) {
	l.logger.Warn(action, l.fields(action, fields)...)
}

func (l *runLogger) error(action string, err error, fields ...zap.Field) {
	l.logger.Error(action, l.fields(action, append(fields, zap.Error(err)))...)
}
