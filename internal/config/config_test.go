package config_test

import (
	"testing"
	"time"

	"github.com/toolbridge/toolbridge/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != config.DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, config.DefaultPort)
	}
	if cfg.MaxReconnectAttempts != config.DefaultMaxReconnectAttempts {
		t.Errorf("MaxReconnectAttempts = %d, want %d", cfg.MaxReconnectAttempts, config.DefaultMaxReconnectAttempts)
	}
	if cfg.SweepInterval != config.DefaultSweepInterval {
		t.Errorf("SweepInterval = %v, want %v", cfg.SweepInterval, config.DefaultSweepInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOOLBRIDGE_PORT", "9001")
	t.Setenv("MAX_CONVERSATIONS", "42")
	t.Setenv("CONVERSATION_MAX_AGE", "12h")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("TOOL_WORKER_CMD", "toolworker --verbose")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Port)
	}
	if cfg.MaxConversations != 42 {
		t.Errorf("MaxConversations = %d, want 42", cfg.MaxConversations)
	}
	if cfg.ConversationMaxAge != 12*time.Hour {
		t.Errorf("ConversationMaxAge = %v, want 12h", cfg.ConversationMaxAge)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.SweepInterval)
	}
	if cfg.WorkerCommand != "toolworker" || len(cfg.WorkerArgs) != 1 || cfg.WorkerArgs[0] != "--verbose" {
		t.Errorf("worker command = %q %v", cfg.WorkerCommand, cfg.WorkerArgs)
	}
}
