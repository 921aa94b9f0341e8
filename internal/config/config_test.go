package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMinimal(t *testing.T) {
	path := writeConfig(t, `
signing_key_file: ./keys/signing.pem
concurrency: 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SigningKeyFile != "./keys/signing.pem" {
		t.Errorf("SigningKeyFile = %q", cfg.SigningKeyFile)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", cfg.Concurrency)
	}
}

func TestLoadGroups(t *testing.T) {
	path := writeConfig(t, `
groups:
  core:
    - com.example.one
    - com.example.two
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Groups["core"]) != 2 {
		t.Errorf("group core has %d members, want 2", len(cfg.Groups["core"]))
	}
}

func TestLoadRejectsInvalidGroupMember(t *testing.T) {
	path := writeConfig(t, `
groups:
  core:
    - "not a package name"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid package name in group")
	}
}

func TestLoadRejectsNegativeConcurrency(t *testing.T) {
	path := writeConfig(t, `concurrency: -1`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative concurrency")
	}
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{BaseDir: "/etc/aaus"}
	if got := cfg.ResolvePath("key.pem"); got != "/etc/aaus/key.pem" {
		t.Errorf("ResolvePath(relative) = %q", got)
	}
	if got := cfg.ResolvePath("/abs/key.pem"); got != "/abs/key.pem" {
		t.Errorf("ResolvePath(absolute) = %q", got)
	}
	if got := cfg.ResolvePath(""); got != "" {
		t.Errorf("ResolvePath(empty) = %q", got)
	}
}
