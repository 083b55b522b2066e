package internal

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Upstream.BaseURL = "https://cms.example.com/api"
	cfg.Session.Secret = strings.Repeat("k", 32)
	return cfg
}

func TestDefaultConfig_NeedsUpstreamAndSecret(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err == nil {
		t.Fatal("defaults without base URL and secret should fail")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestUpstreamConfig_BadURL(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.BaseURL = "not a url"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("bad base URL should fail")
	}
	if !strings.HasPrefix(err.Error(), "upstream:") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSessionConfig_ShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Session.Secret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("short secret should fail")
	}
}

func TestSessionConfig_EmptyStoreDefaultsMemory(t *testing.T) {
	cfg := validConfig()
	cfg.Session.Store = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty store should default to memory: %v", err)
	}
	if cfg.Session.Store != SessionStoreMemory {
		t.Errorf("store = %q, want %q", cfg.Session.Store, SessionStoreMemory)
	}
}

func TestSessionConfig_SQLiteNeedsPath(t *testing.T) {
	cfg := validConfig()
	cfg.Session.Store = SessionStoreSQLite
	cfg.Session.SQLitePath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("sqlite store without path should fail")
	}
	cfg.Session.SQLitePath = "/tmp/sessions.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sqlite store with path: %v", err)
	}
}

func TestSessionConfig_InvalidStore(t *testing.T) {
	cfg := validConfig()
	cfg.Session.Store = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown store should fail")
	}
}

func TestSessionConfig_TTLTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Session.TTL = time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("ttl below a minute should fail")
	}
}

func TestHTTPConfig_Address(t *testing.T) {
	cfg := HTTPConfig{Port: 9090}
	if got := cfg.Address(); got != ":9090" {
		t.Errorf("address = %q", got)
	}
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("port 0 should fail")
	}
}

func TestUploadConfig_MaxBytes(t *testing.T) {
	cfg := validConfig()
	cfg.Upload.MaxBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero upload limit should fail")
	}
}
