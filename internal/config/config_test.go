package config

import (
	"testing"
	"time"
)

func TestGetAPITimeout_Default(t *testing.T) {
	t.Setenv(EnvAPITimeout, "")
	if got := GetAPITimeout(); got != DefaultAPITimeout {
		t.Errorf("GetAPITimeout() = %v, want %v", got, DefaultAPITimeout)
	}
}

func TestGetAPITimeout_Valid(t *testing.T) {
	t.Setenv(EnvAPITimeout, "45s")
	if got := GetAPITimeout(); got != 45*time.Second {
		t.Errorf("GetAPITimeout() = %v, want 45s", got)
	}
}

func TestGetAPITimeout_ClampsLow(t *testing.T) {
	t.Setenv(EnvAPITimeout, "10ms")
	if got := GetAPITimeout(); got != time.Second {
		t.Errorf("GetAPITimeout() = %v, want clamp to 1s", got)
	}
}

func TestGetAPITimeout_ClampsHigh(t *testing.T) {
	t.Setenv(EnvAPITimeout, "1h")
	if got := GetAPITimeout(); got != 10*time.Minute {
		t.Errorf("GetAPITimeout() = %v, want clamp to 10m", got)
	}
}

func TestGetAPITimeout_Invalid(t *testing.T) {
	t.Setenv(EnvAPITimeout, "not-a-duration")
	if got := GetAPITimeout(); got != DefaultAPITimeout {
		t.Errorf("GetAPITimeout() = %v, want default on invalid input", got)
	}
}

func TestGetFetchRetries(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"", DefaultFetchRetries},
		{"5", 5},
		{"0", 1},
		{"100", 10},
		{"nope", DefaultFetchRetries},
	}
	for _, tt := range tests {
		t.Setenv(EnvFetchRetries, tt.env)
		if got := GetFetchRetries(); got != tt.want {
			t.Errorf("GetFetchRetries() with env=%q = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestGetFetchRetryInterval_Default(t *testing.T) {
	t.Setenv(EnvFetchRetryInterval, "")
	if got := GetFetchRetryInterval(); got != DefaultFetchRetryInterval {
		t.Errorf("GetFetchRetryInterval() = %v, want %v", got, DefaultFetchRetryInterval)
	}
}

func TestGetCacheTTL_Default(t *testing.T) {
	t.Setenv(EnvCacheTTL, "")
	if got := GetCacheTTL(); got != DefaultCacheTTL {
		t.Errorf("GetCacheTTL() = %v, want %v", got, DefaultCacheTTL)
	}
}
