package main

import (
	"log/slog"
	"testing"
)

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"random", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isTruthy(tt.input); got != tt.want {
				t.Errorf("isTruthy(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDetermineLogLevel(t *testing.T) {
	origQuiet, origVerbose, origDebug := quietFlag, verboseFlag, debugFlag
	defer func() {
		quietFlag, verboseFlag, debugFlag = origQuiet, origVerbose, origDebug
	}()

	quietFlag, verboseFlag, debugFlag = false, false, true
	if got := determineLogLevel(); got != slog.LevelDebug {
		t.Errorf("debug flag: got %v, want LevelDebug", got)
	}

	quietFlag, verboseFlag, debugFlag = false, true, false
	if got := determineLogLevel(); got != slog.LevelInfo {
		t.Errorf("verbose flag: got %v, want LevelInfo", got)
	}

	quietFlag, verboseFlag, debugFlag = true, false, false
	if got := determineLogLevel(); got != slog.LevelError {
		t.Errorf("quiet flag: got %v, want LevelError", got)
	}

	quietFlag, verboseFlag, debugFlag = false, false, false
	if got := determineLogLevel(); got != slog.LevelWarn {
		t.Errorf("no flags: got %v, want LevelWarn", got)
	}
}
