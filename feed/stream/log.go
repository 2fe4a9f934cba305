package stream

import (
	"log"
	"os"
)

// Logger is the printf-style logging interface used by the stream client.
// zap's SugaredLogger satisfies it directly.
type Logger interface {
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

type stdLog struct {
	logger *log.Logger
}

var _ Logger = (*stdLog)(nil)

func (s *stdLog) Infof(format string, v ...interface{}) {
	// NOTE: there is no concept of levels in the stdlib log package.
	// For less noise, this default implementation will not print any non-error messages.
	// To see these, pass a proper logger, e.g. a zap.SugaredLogger.
}

func (s *stdLog) Warnf(format string, v ...interface{}) {
	// See Infof.
}

func (s *stdLog) Errorf(format string, v ...interface{}) {
	s.logger.Printf(format, v...)
}

func newStdLog() Logger {
	return &stdLog{logger: log.New(os.Stderr, "", log.LstdFlags)}
}

// NewStdLog returns the default errors-only logger backed by the stdlib
// log package.
func NewStdLog() Logger {
	return newStdLog()
}
