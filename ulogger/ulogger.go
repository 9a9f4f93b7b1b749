// Package ulogger is the logging interface shared by every component, with
// a zerolog backend, a gocore backend and loggers for tests.
package ulogger

// ANSI codes used by the console layout.
const (
	colorBold   = 1
	colorRed    = 31
	colorGreen  = 32
	colorYellow = 33
	colorBlue   = 34
)

type Logger interface {
	LogLevel() int
	SetLogLevel(level string)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	New(service string, options ...Option) Logger
	Duplicate(options ...Option) Logger
}

// New returns a logger for service. WithLoggerType("gocore") selects the
// gocore backend; anything else gets zerolog.
func New(service string, options ...Option) Logger {
	opts := DefaultOptions()
	for _, o := range options {
		o(opts)
	}

	if opts.loggerType == "gocore" {
		return NewGoCoreLogger(service, options...)
	}

	return NewZeroLogger(service, options...)
}
