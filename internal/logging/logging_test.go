package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"info":    zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		" warn ":  zapcore.WarnLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := ParseLevel("chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewReplacesGlobal(t *testing.T) {
	before := zap.L()

	logger, restore, err := New("warn", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if zap.L() != logger {
		t.Error("expected logger to be installed globally")
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}

	restore()
	if zap.L() != before {
		t.Error("expected previous global to be restored")
	}
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	logger, restore, err := New("error", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer restore()

	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("verbose logger should enable debug")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New("loud", false); err == nil {
		t.Error("expected error")
	}
}
