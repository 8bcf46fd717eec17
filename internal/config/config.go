// Package config loads the optional retoucher.yaml file. Values left out of
// the file fall back to the environment, then to built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	Temperature   float64       `yaml:"temperature"`
	MaxSide       int           `yaml:"max_side"`
	BrushSize     float64       `yaml:"brush_size"`
	AutosaveDelay time.Duration `yaml:"autosave_delay"`
	Addr          string        `yaml:"addr"`
	DB            string        `yaml:"db"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{
		Provider:      os.Getenv("RETOUCHER_PROVIDER"),
		Temperature:   0.4,
		MaxSide:       maxSideFromEnv(),
		BrushSize:     30,
		AutosaveDelay: 500 * time.Millisecond,
		Addr:          ":8888",
		DB:            "retoucher.db",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case "", "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("unsupported provider %q", c.Provider))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0, 2]", c.Temperature))
	}
	if c.MaxSide <= 0 {
		errs = append(errs, fmt.Errorf("max_side must be positive"))
	}
	if c.BrushSize <= 0 {
		errs = append(errs, fmt.Errorf("brush_size must be positive"))
	}
	if c.AutosaveDelay < 0 {
		errs = append(errs, fmt.Errorf("autosave_delay must not be negative"))
	}
	return errors.Join(errs...)
}

func maxSideFromEnv() int {
	if n, err := strconv.Atoi(os.Getenv("RETOUCHER_MAX_SIDE")); err == nil && n > 0 {
		return n
	}
	return 2048
}
