package ulogger

// TestLogger discards everything. Handy as a zero-value default in tests.
type TestLogger struct{}

func (l TestLogger) LogLevel() int { return 0 }

func (l TestLogger) SetLogLevel(string) {}

func (l TestLogger) Debugf(string, ...interface{}) {}

func (l TestLogger) Infof(string, ...interface{}) {}

func (l TestLogger) Warnf(string, ...interface{}) {}

func (l TestLogger) Errorf(string, ...interface{}) {}

func (l TestLogger) Fatalf(string, ...interface{}) {}

func (l TestLogger) New(_ string, _ ...Option) Logger { return l }

func (l TestLogger) Duplicate(_ ...Option) Logger { return l }
