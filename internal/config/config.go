// Package config loads the process configuration once at startup. The
// resulting struct is passed explicitly into constructors; nothing in
// the tree reads configuration globals after boot.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "24h" parse.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config models taskdesk.yml plus TASKDESK_* environment overrides.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		// Secret signs every credential. Required; env-only in most
		// deployments (TASKDESK_AUTH_SECRET).
		Secret     string   `yaml:"secret"`
		TokenTTL   Duration `yaml:"token_ttl"`
		BcryptCost int      `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Storage struct {
		DataDir   string `yaml:"data_dir"`
		UploadDir string `yaml:"upload_dir"`
	} `yaml:"storage"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/api"
	cfg.Auth.TokenTTL = Duration(24 * time.Hour)
	cfg.Auth.BcryptCost = 12
	cfg.Storage.DataDir = ".taskdesk"
	cfg.Storage.UploadDir = ".taskdesk/uploads"
	return &cfg
}

// Load reads the optional YAML file and applies environment overrides.
// A missing file is not an error; a missing auth secret is.
func Load(path string, v *viper.Viper) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("invalid config yaml %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(v *viper.Viper) {
	if v == nil {
		return
	}
	if s := v.GetString("auth-secret"); s != "" {
		c.Auth.Secret = s
	}
	if s := v.GetString("addr"); s != "" {
		c.Server.Addr = s
	}
	if s := v.GetString("base-path"); s != "" {
		c.Server.BasePath = s
	}
	if s := v.GetString("data-dir"); s != "" {
		c.Storage.DataDir = s
	}
	if s := v.GetString("upload-dir"); s != "" {
		c.Storage.UploadDir = s
	}
	if d := v.GetDuration("token-ttl"); d > 0 {
		c.Auth.TokenTTL = Duration(d)
	}
}

// Validate ensures the config is usable for serving.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required (set TASKDESK_AUTH_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	return nil
}
