package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() with no file: %v", err)
	}

	if cfg.Server.Port != 8085 {
		t.Errorf("default port = %d, want 8085", cfg.Server.Port)
	}
	if cfg.Executor.DefaultTimeoutSeconds != 300 {
		t.Errorf("default timeout = %d, want 300", cfg.Executor.DefaultTimeoutSeconds)
	}
	if cfg.Executor.LineTimeoutSeconds != 5 {
		t.Errorf("default line timeout = %d, want 5", cfg.Executor.LineTimeoutSeconds)
	}
	if cfg.Limits.MaxScreenshots != 10 {
		t.Errorf("default max screenshots = %d, want 10", cfg.Limits.MaxScreenshots)
	}
	if cfg.Auth.RequestsPerMinute != 60 {
		t.Errorf("default rate limit = %d, want 60", cfg.Auth.RequestsPerMinute)
	}
	if cfg.Auth.InferencePerSecond != 5 || cfg.Auth.InferenceBurst != 10 {
		t.Errorf("default inference limit = %v/%d, want 5/10",
			cfg.Auth.InferencePerSecond, cfg.Auth.InferenceBurst)
	}
}

func TestLoad_JSONCWithComments(t *testing.T) {
	dir := t.TempDir()
	content := `{
  // Switchboard configuration
  "server": {
    "host": "0.0.0.0",
    "port": 9090 /* custom port */
  },
  "auth": {
    "enabled": true,
    "tokens": ["swb_test"]
  },
  "executor": {
    "mock_mode": true
  }
}`
	if err := os.WriteFile(filepath.Join(dir, "switchboard.jsonc"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("server = %s:%d, want 0.0.0.0:9090", cfg.Server.Host, cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || len(cfg.Auth.Tokens) != 1 {
		t.Errorf("auth section not parsed: %+v", cfg.Auth)
	}
	if !cfg.Executor.MockMode {
		t.Error("executor.mock_mode should be true")
	}
	// Unset fields still get defaults.
	if cfg.Executor.MaxConcurrentSessions != 10 {
		t.Errorf("max concurrent = %d, want default 10", cfg.Executor.MaxConcurrentSessions)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "switchboard.jsonc"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("Load() should fail on malformed config")
	}
}

func TestValidate_TLSRequiresCertAndKey(t *testing.T) {
	cfg := Default()
	cfg.Server.TLS.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail when TLS enabled without cert/key")
	}

	cfg.Server.TLS.CertFile = "cert.pem"
	cfg.Server.TLS.KeyFile = "key.pem"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with cert and key: %v", err)
	}
}

func TestAddress(t *testing.T) {
	cfg := Default()
	if got := cfg.Address(); got != "127.0.0.1:8085" {
		t.Errorf("Address() = %q", got)
	}
}

func TestStripComments_PreservesStrings(t *testing.T) {
	in := []byte(`{"url": "https://example.com/path"} // trailing`)
	out := string(stripComments(in))
	if out != `{"url": "https://example.com/path"} ` {
		t.Errorf("stripComments() = %q", out)
	}
}

func TestStripComments_EscapedQuotes(t *testing.T) {
	in := []byte(`{"note": "a \"//\" b"} /* gone */`)
	out := string(stripComments(in))
	if out != `{"note": "a \"//\" b"} ` {
		t.Errorf("stripComments() = %q", out)
	}
}
