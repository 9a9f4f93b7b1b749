package ulogger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bsv-blockchain/cfpeer/ulogger"
	"github.com/ordishs/gocore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level           string
		expectedOutputs map[string]bool
	}{
		{
			level:           "DEBUG",
			expectedOutputs: map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true},
		},
		{
			level:           "INFO",
			expectedOutputs: map[string]bool{"DEBUG": false, "INFO": true, "WARN": true, "ERROR": true},
		},
		{
			level:           "WARN",
			expectedOutputs: map[string]bool{"DEBUG": false, "INFO": false, "WARN": true, "ERROR": true},
		},
		{
			level:           "ERROR",
			expectedOutputs: map[string]bool{"DEBUG": false, "INFO": false, "WARN": false, "ERROR": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer

			logger := ulogger.New("test-service",
				ulogger.WithLevel(tt.level),
				ulogger.WithWriter(&buf),
				ulogger.WithPrettyLogs(false),
			)

			logger.Debugf("DEBUG message")
			logger.Infof("INFO message")
			logger.Warnf("WARN message")
			logger.Errorf("ERROR message")

			output := buf.String()

			for level, expected := range tt.expectedOutputs {
				assert.Equal(t, expected, strings.Contains(output, level+" message"), "level %s", level)
			}
		})
	}
}

func TestJSONOutputCarriesService(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("peer", ulogger.WithWriter(&buf), ulogger.WithPrettyLogs(false))
	logger.Infof("handshake complete with %s", "127.0.0.1:18333")

	output := buf.String()
	assert.Contains(t, output, `"service":"peer"`)
	assert.Contains(t, output, "handshake complete with 127.0.0.1:18333")
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("connmgr", ulogger.WithWriter(&buf), ulogger.WithPrettyLogs(true))
	logger.Warnf("dial failed")

	output := buf.String()
	assert.Contains(t, output, "connmgr")
	assert.Contains(t, output, "dial failed")
	assert.Contains(t, output, "WARN")
}

func TestChildLoggerInheritsWriterAndLevel(t *testing.T) {
	var buf bytes.Buffer

	parent := ulogger.New("parent",
		ulogger.WithLevel("WARN"),
		ulogger.WithWriter(&buf),
		ulogger.WithPrettyLogs(false),
	)

	child := parent.New("child")
	child.Infof("hidden")
	child.Warnf("visible")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "visible")
	assert.Contains(t, output, `"service":"child"`)

	dup := parent.Duplicate(ulogger.WithLevel("DEBUG"))
	dup.Debugf("now shown")
	assert.Contains(t, buf.String(), "now shown")
}

func TestGoCoreLogger(t *testing.T) {
	logger := ulogger.New("gocore-test", ulogger.WithLoggerType("gocore"), ulogger.WithLevel("DEBUG"))
	require.IsType(t, &ulogger.GoCoreLogger{}, logger)

	dup := logger.Duplicate()
	require.NotNil(t, dup)

	child := logger.New("gocore-child")
	assert.Equal(t, logger.LogLevel(), child.LogLevel())
}

func TestErrorTestLogger(t *testing.T) {
	logger := ulogger.NewErrorTestLogger(t)

	logger.Infof("ignored")
	logger.Errorf("peer %s misbehaved", "p1")

	assert.Equal(t, []string{"peer p1 misbehaved"}, logger.Errors())
	assert.Same(t, logger, logger.New("x"))
}

func TestTestLogger(t *testing.T) {
	var logger ulogger.Logger = ulogger.TestLogger{}
	logger.Errorf("nothing happens")
	assert.Equal(t, 0, logger.LogLevel())
}

func TestVerboseTestLogger(t *testing.T) {
	var child ulogger.Logger

	t.Run("logs while the test runs", func(t *testing.T) {
		logger := ulogger.NewVerboseTestLogger(t)
		logger.SetLogLevel("WARN")
		assert.Equal(t, int(gocore.WARN), logger.LogLevel())

		child = logger.New("peer")
		assert.Equal(t, int(gocore.WARN), child.LogLevel())

		child.Warnf("peer %d slow", 1)
	})

	// the subtest is over: late log lines from stray goroutines are dropped
	assert.NotPanics(t, func() {
		child.Errorf("too late")
	})
}
