package ulogger

import (
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// VerboseTestLogger writes through t.Logf, so output only shows for failing
// tests or with -v. Child loggers share the test and prefix their service.
// Nothing is written once the test's cleanup has started.
type VerboseTestLogger struct {
	t       *testing.T
	shared  *verboseShared
	service string
	level   zerolog.Level
}

type verboseShared struct {
	mu       sync.Mutex
	shutdown bool
}

func NewVerboseTestLogger(t *testing.T) *VerboseTestLogger {
	shared := &verboseShared{}

	t.Cleanup(func() {
		shared.mu.Lock()
		shared.shutdown = true
		shared.mu.Unlock()
	})

	return &VerboseTestLogger{t: t, shared: shared, level: zerolog.DebugLevel}
}

func (l *VerboseTestLogger) LogLevel() int {
	return gocoreLevel(l.level)
}

func (l *VerboseTestLogger) SetLogLevel(level string) {
	l.level = parseLevel(level)
}

func (l *VerboseTestLogger) New(service string, _ ...Option) Logger {
	return &VerboseTestLogger{t: l.t, shared: l.shared, service: service, level: l.level}
}

func (l *VerboseTestLogger) Duplicate(_ ...Option) Logger {
	return l.New(l.service)
}

func (l *VerboseTestLogger) Debugf(format string, args ...interface{}) {
	l.logf(zerolog.DebugLevel, format, args...)
}

func (l *VerboseTestLogger) Infof(format string, args ...interface{}) {
	l.logf(zerolog.InfoLevel, format, args...)
}

func (l *VerboseTestLogger) Warnf(format string, args ...interface{}) {
	l.logf(zerolog.WarnLevel, format, args...)
}

func (l *VerboseTestLogger) Errorf(format string, args ...interface{}) {
	l.logf(zerolog.ErrorLevel, format, args...)
}

func (l *VerboseTestLogger) Fatalf(format string, args ...interface{}) {
	l.t.Fatalf("[FATAL] "+format, args...)
}

func (l *VerboseTestLogger) logf(level zerolog.Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()

	if l.shared.shutdown {
		return
	}

	prefix := "[" + strings.ToUpper(level.String()) + "] "
	if l.service != "" {
		prefix += "[" + l.service + "] "
	}

	l.t.Logf(prefix+format, args...)
}
