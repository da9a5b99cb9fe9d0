package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.UI.Theme != ThemeLight {
		t.Fatalf("expected light default theme, got %q", cfg.UI.Theme)
	}
	if cfg.Server.Addr == "" || cfg.Server.BasePath == "" {
		t.Fatal("default server settings incomplete")
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	raw := "server:\n  addr: 127.0.0.1:9999\nui:\n  theme: dark\n"
	if err := os.WriteFile(filepath.Join(dir, "careboard.yml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" || cfg.UI.Theme != ThemeDark {
		t.Fatalf("workspace values not applied: %+v", cfg)
	}
	if cfg.Server.BasePath != "/v0" {
		t.Fatal("unset keys should keep defaults")
	}
}

func TestFromYAMLRejectsBadTheme(t *testing.T) {
	if _, err := FromYAML([]byte("ui:\n  theme: sepia\n")); err == nil {
		t.Fatal("expected validation error for unknown theme")
	}
}

func TestFromYAMLRejectsMalformedYAML(t *testing.T) {
	if _, err := FromYAML([]byte("ui: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestKnowsExpertise(t *testing.T) {
	cfg := Default()
	if !cfg.KnowsExpertise("cardiology") {
		t.Fatal("catalog label rejected")
	}
	if cfg.KnowsExpertise("alchemy") {
		t.Fatal("unknown label accepted")
	}
	cfg.Expertise.Catalog = nil
	if !cfg.KnowsExpertise("anything") {
		t.Fatal("empty catalog must accept any label")
	}
}

func TestWriteDefaultDoesNotClobber(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDefault(dir); err != nil {
		t.Fatalf("write default: %v", err)
	}
	custom := "server:\n  addr: 127.0.0.1:7777\nui:\n  theme: dark\n"
	if err := os.WriteFile(Path(dir), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteDefault(dir); err != nil {
		t.Fatalf("second write default: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != "127.0.0.1:7777" {
		t.Fatal("existing config was overwritten")
	}
}
