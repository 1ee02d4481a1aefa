package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_APP_NAME", "arbor")
	path := writeFile(t, "name: ${TEST_APP_NAME}\nport: 9000\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "arbor" || cfg.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadEnvFallback(t *testing.T) {
	path := writeFile(t, "name: ${TEST_UNSET_VAR:fallback}\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "fallback" {
		t.Errorf("name = %q, want fallback", cfg.Name)
	}
}

func TestLoadEnvOverridesFallback(t *testing.T) {
	t.Setenv("TEST_SET_VAR", "real")
	path := writeFile(t, "name: ${TEST_SET_VAR:fallback}\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "real" {
		t.Errorf("name = %q, want real", cfg.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load("/nonexistent/config.yaml", &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithDefaultsFallsBack(t *testing.T) {
	defaultPath := writeFile(t, "name: default\n")

	var cfg testConfig
	if err := LoadWithDefaults("/nonexistent/config.yaml", defaultPath, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" {
		t.Errorf("name = %q, want default", cfg.Name)
	}
}
