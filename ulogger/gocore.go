package ulogger

import (
	"github.com/ordishs/gocore"
)

// GoCoreLogger logs through gocore, for deployments that collect gocore
// output. The level is fixed when the logger is created.
type GoCoreLogger struct {
	*gocore.Logger
}

func NewGoCoreLogger(service string, options ...Option) *GoCoreLogger {
	if service == "" {
		service = defaultService
	}

	opts := DefaultOptions()
	for _, o := range options {
		o(opts)
	}

	return &GoCoreLogger{gocore.Log(service, gocore.NewLogLevelFromString(opts.logLevel))}
}

// New returns a gocore logger for service at the parent's level.
func (g *GoCoreLogger) New(service string, _ ...Option) Logger {
	return &GoCoreLogger{gocore.Log(service, g.Logger.GetLogLevel())}
}

func (g *GoCoreLogger) Duplicate(_ ...Option) Logger {
	return &GoCoreLogger{g.Logger}
}

func (g *GoCoreLogger) SetLogLevel(_ string) {}
