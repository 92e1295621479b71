package badger

import (
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// storeLogger routes badger's printf-style output into the archive's zap
// logger under the "badger-archive" name, tagged with the database path.
type storeLogger struct {
	logger *zap.SugaredLogger
}

var _ badgerdb.Logger = (*storeLogger)(nil)

func newStoreLogger(logger *zap.Logger, path string) *storeLogger {
	return &storeLogger{logger: logger.Named("badger-archive").Sugar().With("path", path)}
}

// badger terminates most messages with a newline
func message(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}

func (l *storeLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(message(format, args))
}

func (l *storeLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(message(format, args))
}

// Infof is demoted to debug; badger reports every compaction and flush at info.
func (l *storeLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(message(format, args))
}

func (l *storeLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(message(format, args))
}
