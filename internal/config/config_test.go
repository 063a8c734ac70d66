package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	os.Setenv("HTTP_ADDRESS", "")
	os.Setenv("INTERVIEW_SERVER_HOST", "")
	os.Setenv("SILENCE_THRESHOLD_MS", "")
	os.Setenv("DEEPGRAM_MODEL", "")
	cfg := Load()
	if cfg.HTTPAddress == "" {
		t.Fatalf("expected default http address")
	}
	if cfg.ServerHost == "" {
		t.Fatalf("expected default interview server host")
	}
	if cfg.SilenceThreshold != 5000*time.Millisecond {
		t.Fatalf("expected default silence threshold, got %v", cfg.SilenceThreshold)
	}
	if cfg.DeepgramModel == "" {
		t.Fatalf("expected default deepgram model")
	}
}

func TestLoad_SilenceThresholdOverride(t *testing.T) {
	os.Setenv("SILENCE_THRESHOLD_MS", "1200")
	defer os.Unsetenv("SILENCE_THRESHOLD_MS")
	cfg := Load()
	if cfg.SilenceThreshold != 1200*time.Millisecond {
		t.Fatalf("expected 1.2s threshold, got %v", cfg.SilenceThreshold)
	}
}

func TestLoad_IgnoresBadSilenceThreshold(t *testing.T) {
	os.Setenv("SILENCE_THRESHOLD_MS", "not-a-number")
	defer os.Unsetenv("SILENCE_THRESHOLD_MS")
	cfg := Load()
	if cfg.SilenceThreshold != 5000*time.Millisecond {
		t.Fatalf("expected fallback to default, got %v", cfg.SilenceThreshold)
	}
}
