package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestHostConfig_SourcesMutuallyExclusive(t *testing.T) {
	cfg := HostConfig{DevToolsURL: "ws://127.0.0.1:9222", PageFile: "snapshot.html"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("both host sources should fail validation")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHostConfig_DefaultsLocationPoll(t *testing.T) {
	cfg := HostConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty host config should pass: %v", err)
	}
	if cfg.LocationPoll != time.Second {
		t.Errorf("location poll = %v, want 1s", cfg.LocationPoll)
	}
}

func TestHostConfig_RejectsTightPoll(t *testing.T) {
	cfg := HostConfig{LocationPoll: 10 * time.Millisecond}
	if err := cfg.Validate(); err == nil {
		t.Fatal("sub-100ms poll should fail validation")
	}
}

func TestRemoteConfig_RejectsMalformedURL(t *testing.T) {
	cfg := RemoteConfig{URL: "::not-a-url"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("malformed url should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
