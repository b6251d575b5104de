package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"rib/misc"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	ViewerConfig struct {
		DefaultBrowser     string   `yaml:"default_browser"`
		IncludeIndex       bool     `yaml:"include_index"`
		InjectNavigation   bool     `yaml:"inject_navigation"`
		DefaultStylesheets []string `yaml:"default_stylesheets" validate:"dive,required"`
	}

	LibraryConfig struct {
		// Path is the library root, one subdirectory per materialized book
		// plus the index file. Empty means per-user cache directory.
		Path string `yaml:"path" sanitize:"path_clean"`
		// Zero disables the corresponding limit, independently of the other.
		MaxBooks int   `yaml:"max_books" validate:"gte=0"`
		MaxBytes int64 `yaml:"max_bytes" validate:"gte=0"`
	}

	Config struct {
		Version     int                   `yaml:"version" validate:"eq=1"`
		Viewer      ViewerConfig          `yaml:"viewer"`
		Library     LibraryConfig         `yaml:"library"`
		Stylesheets map[string]Stylesheet `yaml:"stylesheets"`
		Logging     LoggingConfig         `yaml:"logging"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation. Stylesheet values are checked here,
// before any book is touched - a bad style property affects every book opened
// in the run and must not fail half way through materialization.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if haveFile {
		// overwrite cfg values with values from the file
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = unmarshalConfig(data, cfg, haveFile)
		if err != nil {
			return nil, fmt.Errorf("failed to process configuration file: %w", err)
		}
	}
	for name, sheet := range cfg.Stylesheets {
		if err := sheet.Validate(); err != nil {
			return nil, fmt.Errorf("bad stylesheet %q: %w", name, err)
		}
	}
	for _, name := range cfg.Viewer.DefaultStylesheets {
		if _, ok := cfg.Stylesheets[name]; !ok {
			return nil, fmt.Errorf("default stylesheet %q is not defined", name)
		}
	}
	return cfg, nil
}

// LibraryPath returns the configured library root falling back on the
// per-user cache directory when not set.
func (cfg *Config) LibraryPath() (string, error) {
	if len(cfg.Library.Path) > 0 {
		return cfg.Library.Path, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to locate user cache directory: %w", err)
	}
	return filepath.Join(dir, misc.GetAppName(), "library"), nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
