package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret-at-least-16-chars!!")
	t.Setenv("SHEET_API_URL", "https://sheets.internal.normaq.com.br")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.CacheTTL)
	}
	if cfg.TableID != "Página1" {
		t.Errorf("TableID = %q", cfg.TableID)
	}
	if cfg.PlaintextHistory {
		t.Error("PlaintextHistory must default to off")
	}
}

func TestLoadRequiresTokenSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")
	t.Setenv("SHEET_API_URL", "https://sheets.internal.normaq.com.br")

	if _, err := Load(); err == nil {
		t.Error("Load() accepted an empty TOKEN_SECRET")
	}
}

func TestLoadSqliteSourceNeedsNoURL(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret-at-least-16-chars!!")
	t.Setenv("SHEET_API_URL", "")
	t.Setenv("SOURCE", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SourceKind != "sqlite" {
		t.Errorf("SourceKind = %q", cfg.SourceKind)
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clientbook.yaml")
	seed := `
provisional_password: "P@ss1"
allowed_domain: normaq.com.br
allow_list:
  - email: maria@normaq.com.br
    login: maria.silva
  - email: joao@normaq.com.br
    login: joao.lima
admins:
  - name: suporte
    secret_hash: "$2a$12$abcdefghijklmnopqrstuvabcdefghijklmnopqrstuvabcdefghi"
`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("writing seed: %v", err)
	}

	got, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	if got.ProvisionalPassword != "P@ss1" {
		t.Errorf("ProvisionalPassword = %q", got.ProvisionalPassword)
	}
	if len(got.AllowList) != 2 || got.AllowList[0].Login != "maria.silva" {
		t.Errorf("AllowList = %+v", got.AllowList)
	}
	if len(got.Admins) != 1 || got.Admins[0].Name != "suporte" {
		t.Errorf("Admins = %+v", got.Admins)
	}
}

func TestLoadSeedRejectsIncompleteEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clientbook.yaml")
	seed := `
provisional_password: "P@ss1"
allow_list:
  - email: maria@normaq.com.br
`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("writing seed: %v", err)
	}

	if _, err := LoadSeed(path); err == nil {
		t.Error("LoadSeed() accepted an allow-list entry without a login")
	}
}
