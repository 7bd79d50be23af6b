package pausectl

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.ResyncInterval != 60*time.Second {
		t.Fatalf("unexpected default resync interval %v", cfg.ResyncInterval)
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResyncInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero interval")
	}

	cfg = DefaultConfig()
	cfg.JitterRatio = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for jitter ratio > 1")
	}
}
