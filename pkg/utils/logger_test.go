package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger, err := NewLogger(debug)
		if err != nil {
			t.Fatalf("NewLogger(%v) error: %v", debug, err)
		}
		if got := logger.Core().Enabled(zapcore.DebugLevel); got != debug {
			t.Errorf("NewLogger(%v): debug enabled = %v", debug, got)
		}
		_ = logger.Sync()
	}
}

func TestNewCLILogger(t *testing.T) {
	logger, err := NewCLILogger(false)
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("quiet CLI logger should not log info")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("quiet CLI logger should log warnings")
	}

	debug, err := NewCLILogger(true)
	if err != nil {
		t.Fatal(err)
	}
	if !debug.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug CLI logger should log debug")
	}
}
