package ulogger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ordishs/gocore"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const (
	defaultService = "cfpeer"
	callerWidth    = 32
)

var levelColors = map[string]int{
	"debug": colorBlue,
	"info":  colorGreen,
	"warn":  colorYellow,
	"error": colorRed,
	"fatal": colorRed,
	"panic": colorRed,
}

// gocoreLevels maps zerolog levels onto the gocore levels LogLevel reports,
// so callers can compare against gocore.DEBUG whatever the backend.
var gocoreLevels = map[zerolog.Level]int{
	zerolog.DebugLevel: int(gocore.DEBUG),
	zerolog.InfoLevel:  int(gocore.INFO),
	zerolog.WarnLevel:  int(gocore.WARN),
	zerolog.ErrorLevel: int(gocore.ERROR),
	zerolog.FatalLevel: int(gocore.FATAL),
}

func gocoreLevel(level zerolog.Level) int {
	if l, ok := gocoreLevels[level]; ok {
		return l
	}

	return int(gocore.INFO)
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return parsed
}

// ZLoggerWrapper is the default Logger. Output is JSON, or a console
// layout when PRETTY_LOGS (or WithPrettyLogs) asks for it.
type ZLoggerWrapper struct {
	zerolog.Logger
	service string
	w       io.Writer
	pretty  *bool
}

func NewZeroLogger(service string, options ...Option) *ZLoggerWrapper {
	if service == "" {
		service = defaultService
	}

	opts := DefaultOptions()
	for _, o := range options {
		o(opts)
	}

	pretty := gocore.Config().GetBool("PRETTY_LOGS", true)
	if opts.pretty != nil {
		pretty = *opts.pretty
	}

	var base zerolog.Logger

	if pretty {
		base = zerolog.New(consoleWriter(opts.writer, service)).With().
			CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 1 + opts.skip).
			Timestamp().
			Logger()
	} else {
		base = zerolog.New(opts.writer).With().
			Str("service", service).
			CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 1 + opts.skip).
			Timestamp().
			Logger()
	}

	return &ZLoggerWrapper{
		Logger:  base.Level(parseLevel(opts.logLevel)),
		service: service,
		w:       opts.writer,
		pretty:  opts.pretty,
	}
}

// consoleWriter lays lines out as "time | LEVEL | service | message" with
// the caller trimmed to its last path elements.
func consoleWriter(w io.Writer, service string) zerolog.ConsoleWriter {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
	}

	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: "15:04:05",
		FormatLevel: func(i interface{}) string {
			level, _ := i.(string)
			return "| " + colorize(strings.ToUpper(fmt.Sprintf("%-6s", level)), levelColors[level], noColor) + "|"
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("| %-8s| %s", service, i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s=", i)
		},
		FormatCaller: func(i interface{}) string {
			caller, _ := i.(string)
			if caller == "" {
				return ""
			}

			return colorize(fmt.Sprintf("%-*s", callerWidth, shortCaller(caller)), colorBold, noColor)
		},
		FormatTimestamp: func(i interface{}) string {
			if s, ok := i.(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					return t.Format("15:04:05")
				}

				return s
			}

			return fmt.Sprint(i)
		},
	}
}

// shortCaller keeps as many trailing path elements of file:line as fit in
// callerWidth.
func shortCaller(caller string) string {
	parts := strings.Split(caller, "/")
	short := parts[len(parts)-1]

	for i := len(parts) - 2; i >= 0; i-- {
		if len(short)+len(parts[i])+1 > callerWidth {
			break
		}

		short = parts[i] + "/" + short
	}

	return short
}

// New returns a logger for service that keeps the parent's writer, level
// and layout unless options say otherwise.
func (z *ZLoggerWrapper) New(service string, options ...Option) Logger {
	inherited := []Option{
		WithWriter(z.w),
		WithLevel(z.Logger.GetLevel().String()),
	}

	if z.pretty != nil {
		inherited = append(inherited, WithPrettyLogs(*z.pretty))
	}

	return NewZeroLogger(service, append(inherited, options...)...)
}

func (z *ZLoggerWrapper) Duplicate(options ...Option) Logger {
	return z.New(z.service, options...)
}

func (z *ZLoggerWrapper) SetLogLevel(level string) {
	z.Logger = z.Logger.Level(parseLevel(level))
}

func (z *ZLoggerWrapper) LogLevel() int {
	return gocoreLevel(z.Logger.GetLevel())
}

func (z *ZLoggerWrapper) Debugf(format string, args ...interface{}) {
	z.Logger.Debug().Msgf(format, args...)
}

func (z *ZLoggerWrapper) Infof(format string, args ...interface{}) {
	z.Logger.Info().Msgf(format, args...)
}

func (z *ZLoggerWrapper) Warnf(format string, args ...interface{}) {
	z.Logger.Warn().Msgf(format, args...)
}

func (z *ZLoggerWrapper) Errorf(format string, args ...interface{}) {
	z.Logger.Error().Msgf(format, args...)
}

func (z *ZLoggerWrapper) Fatalf(format string, args ...interface{}) {
	z.Logger.Fatal().Msgf(format, args...)
}

// colorize wraps s in ANSI code c unless disabled, NO_COLOR is set or c is 0.
func colorize(s string, c int, disabled bool) string {
	if disabled || c == 0 || os.Getenv("NO_COLOR") != "" {
		return s
	}

	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", c, s)
}
