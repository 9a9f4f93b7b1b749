package ulogger

import (
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/atomic"
)

type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
	Logf(format string, args ...any)
}

type tHelper = interface {
	Helper()
}

// ErrorTestLogger swallows debug/info/warn output and records every error
// line so a test can assert on what went wrong inside a goroutine.
type ErrorTestLogger struct {
	t        TestingT
	mu       sync.Mutex
	errs     []string
	shutdown atomic.Bool // Prevents logging after test cleanup
}

func NewErrorTestLogger(t TestingT) *ErrorTestLogger {
	return &ErrorTestLogger{t: t}
}

// Shutdown marks the logger as shutdown, preventing further access to testing.T
// This should be called before test cleanup to avoid race conditions
func (l *ErrorTestLogger) Shutdown() {
	l.shutdown.Store(true)
}

// Errors returns a copy of the recorded error lines.
func (l *ErrorTestLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.errs...)
}

func (l *ErrorTestLogger) LogLevel() int {
	return 0
}

func (l *ErrorTestLogger) SetLogLevel(level string) {}

func (l *ErrorTestLogger) New(service string, options ...Option) Logger {
	return l
}

func (l *ErrorTestLogger) Duplicate(options ...Option) Logger {
	return l
}

func (l *ErrorTestLogger) Debugf(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Infof(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Warnf(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Errorf(format string, args ...interface{}) {
	l.record("ERR_LEVEL", format, args...)
}

func (l *ErrorTestLogger) Fatalf(format string, args ...interface{}) {
	l.record("FATAL_LEVEL", format, args...)
}

func (l *ErrorTestLogger) record(level string, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()

	// Don't access testing.T if logger is shutdown (test is cleaning up)
	if l.shutdown.Load() {
		return
	}

	if h, ok := l.t.(tHelper); ok {
		h.Helper()
	}

	_, file, line, _ := runtime.Caller(2)

	l.t.Logf("%s:%d: %s %s", file, line, level, msg)
}
