package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
	Port    int           `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "panel")
	path := writeFile(t, "name: ${SAMPLE_NAME}\ntimeout: ${SAMPLE_TIMEOUT:-3s}\n")

	cfg := sample{Port: 8080}
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "panel" || cfg.Timeout != 3*time.Second || cfg.Port != 8080 {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	cfg := sample{}
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "port: 1\nprot: 2\n")
	cfg := sample{}
	if err := Load(path, &cfg); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, "")
	cfg := sample{Port: 1}
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := sample{}
	if err := Load(filepath.Join(t.TempDir(), "none.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("SET_VAR", "x")
	t.Setenv("EMPTY_VAR", "")
	tests := map[string]string{
		"${SET_VAR}":             "x",
		"$SET_VAR/y":             "x/y",
		"${EMPTY_VAR:-fallback}": "fallback",
		"${UNSET_VAR_Q:-a:b}":    "a:b",
		"${UNSET_VAR_Q}":         "",
	}
	for in, want := range tests {
		if got := Expand(in); got != want {
			t.Errorf("Expand(%q) = %q, want %q", in, got, want)
		}
	}
}
