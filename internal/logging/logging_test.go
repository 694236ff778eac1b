package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	debug, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if !debug.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger should enable debug level")
	}

	prod, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Error("production logger should not enable debug level")
	}
}

func TestMust(t *testing.T) {
	if Must(false) == nil {
		t.Error("Must() returned nil")
	}
}
