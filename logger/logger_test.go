package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	log, err := New(false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be off by default")
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be on")
	}

	log, err = New(true)
	if err != nil {
		t.Fatalf("New(debug): %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be on")
	}
}
