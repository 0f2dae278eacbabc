package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithLevel() {
	logger, err := NewLoggerWithLevel("debug")
	suite.Require().NoError(err)
	suite.True(logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLoggerWithLevel("error")
	suite.Require().NoError(err)
	suite.False(logger.Core().Enabled(zapcore.WarnLevel))
}

func (suite *LoggerTestSuite) TestParseLevel() {
	tests := []struct {
		name     string
		input    string
		expected zapcore.Level
	}{
		{name: "debug", input: "debug", expected: zapcore.DebugLevel},
		{name: "trace maps to debug", input: "Trace", expected: zapcore.DebugLevel},
		{name: "warning alias", input: "WARNING", expected: zapcore.WarnLevel},
		{name: "error", input: " error ", expected: zapcore.ErrorLevel},
		{name: "unknown falls back to info", input: "loud", expected: zapcore.InfoLevel},
		{name: "empty falls back to info", input: "", expected: zapcore.InfoLevel},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, ParseLevel(tc.input))
		})
	}
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	err := logger.Sync()
	suite.NoError(err)
}

func (suite *LoggerTestSuite) TestLoggerLogging() {
	logger := NewNop()

	// These should not panic
	logger.Info("test info message")
	logger.Debug("test debug message")
	logger.Warn("test warn message")
	logger.Error("test error message")
	logger.WithCorrelationID("abcd1234").Info("test message with correlation id")
}

func (suite *LoggerTestSuite) TestNewCorrelationID() {
	first := NewCorrelationID()
	second := NewCorrelationID()
	suite.Len(first, 8)
	suite.NotEqual(first, second)
}

func (suite *LoggerTestSuite) TestIsSensitiveKey() {
	suite.True(IsSensitiveKey("IB_PASSWORD"))
	suite.True(IsSensitiveKey("polygon_api_key"))
	suite.True(IsSensitiveKey("Username"))
	suite.True(IsSensitiveKey("ib_account"))
	suite.False(IsSensitiveKey("symbol"))
	suite.False(IsSensitiveKey("gateway_port"))
}

func (suite *LoggerTestSuite) TestSensitiveField() {
	field := Sensitive("token", "abc")
	suite.Equal(RedactedValue, field.String)

	field = Sensitive("symbol", "AAPL")
	suite.Equal("AAPL", field.String)
}

func (suite *LoggerTestSuite) TestRedact() {
	input := map[string]string{
		"IB_USERNAME":  "alice",
		"GATEWAY_HOST": "127.0.0.1",
	}

	redacted := Redact(input)
	suite.Equal(RedactedValue, redacted["IB_USERNAME"])
	suite.Equal("127.0.0.1", redacted["GATEWAY_HOST"])
	suite.Equal("alice", input["IB_USERNAME"])
}
