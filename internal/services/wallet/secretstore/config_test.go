package secretstore

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Backend != BackendMemory {
		t.Fatalf("backend = %q, want %q", cfg.Backend, BackendMemory)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("sweep interval = %v", cfg.SweepInterval)
	}
}

func TestLoadConfigFromEnvRejectsUnknownBackend(t *testing.T) {
	t.Setenv("PASSWALLET_SECRET_STORE", "memcached")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
