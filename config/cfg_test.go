package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}

	if !cfg.Viewer.IncludeIndex || !cfg.Viewer.InjectNavigation {
		t.Error("Index and navigation should be on by default")
	}

	if cfg.Library.MaxBooks != 0 || cfg.Library.MaxBytes != 0 {
		t.Error("Library limits should be disabled by default")
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `version: 1
viewer:
  default_browser: firefox
  include_index: false
  default_stylesheets: ["night"]
library:
  max_books: 5
  max_bytes: 1048576
stylesheets:
  night:
    text_color: { value: "#dcdcdc", override_book: true }
    background_color: { value: "#1e1e1e", override_book: true }
    limit_images_to_viewport: { value: true }
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Viewer.DefaultBrowser != "firefox" {
		t.Errorf("DefaultBrowser = %q, want firefox", cfg.Viewer.DefaultBrowser)
	}

	if cfg.Viewer.IncludeIndex {
		t.Error("Expected IncludeIndex to be false from config file")
	}

	// unspecified field keeps its default
	if !cfg.Viewer.InjectNavigation {
		t.Error("InjectNavigation should keep default value")
	}

	if cfg.Library.MaxBooks != 5 || cfg.Library.MaxBytes != 1048576 {
		t.Errorf("Library limits = %d/%d, want 5/1048576", cfg.Library.MaxBooks, cfg.Library.MaxBytes)
	}

	sheet, ok := cfg.Stylesheets["night"]
	if !ok {
		t.Fatal("Stylesheet night not loaded")
	}
	if sheet.TextColor == nil || sheet.TextColor.Value != "#dcdcdc" || !sheet.TextColor.OverrideBook {
		t.Errorf("TextColor = %+v, want #dcdcdc with override", sheet.TextColor)
	}
	if sheet.LimitImages == nil || !sheet.LimitImages.Value || sheet.LimitImages.OverrideBook {
		t.Errorf("LimitImages = %+v, want set without override", sheet.LimitImages)
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_UnknownFields(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "unknown.yaml")

	configWithUnknown := `version: 1
unknown_field: value
`

	if err := os.WriteFile(configPath, []byte(configWithUnknown), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfiguration(configPath); err == nil {
		t.Error("Expected error for unknown fields")
	}
}

func TestLoadConfiguration_UnknownStyleProperty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "style.yaml")

	configContent := `version: 1
stylesheets:
  bad:
    font_weight: { value: "bold" }
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfiguration(configPath); err == nil {
		t.Error("Expected error for unknown style property")
	}
}

func TestLoadConfiguration_BadStyleValue(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "style.yaml")

	// declaration smuggled into a single property value
	configContent := `version: 1
stylesheets:
  bad:
    text_color: { value: "red} body{display:none" }
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfiguration(configPath); err == nil {
		t.Error("Expected error for unparseable style value")
	}
}

func TestLoadConfiguration_UndefinedDefaultStylesheet(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "defaults.yaml")

	configContent := `version: 1
viewer:
  default_stylesheets: ["missing"]
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfiguration(configPath); err == nil {
		t.Error("Expected error for undefined default stylesheet")
	}
}

func TestLoadConfiguration_ValidationError(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid_values.yaml")

	configWithInvalidVersion := `version: 2
`

	if err := os.WriteFile(configPath, []byte(configWithInvalidVersion), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfiguration(configPath); err == nil {
		t.Error("Expected validation error for invalid version")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Prepare() returned empty data")
	}

	// Verify it's valid YAML by trying to unmarshal
	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Viewer.DefaultBrowser = "chromium"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	// Verify we can load it back
	cfg2, err := unmarshalConfig(data, &Config{}, false)
	if err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v", err)
	}
	if cfg2.Viewer.DefaultBrowser != "chromium" {
		t.Errorf("DefaultBrowser mismatch after dump/load: got %q", cfg2.Viewer.DefaultBrowser)
	}
}
