package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings like "30s" or "2h" into a
// time.Duration; yaml.v3 has no native support for duration syntax.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config holds configuration for the chatadmin portal.
type Config struct {
	Addr           string   `yaml:"addr"`            // Listen address
	BackendURL     string   `yaml:"backend_url"`     // Chat backend admin API base URL
	Domain         string   `yaml:"domain"`          // Service domain, appended to bare localparts at login
	DBPath         string   `yaml:"db_path"`         // SQLite session store path (":memory:" for testing)
	LogLevel       string   `yaml:"log_level"`       // debug, info, warn, error
	LogFormat      string   `yaml:"log_format"`      // text, json
	SecureCookies  bool     `yaml:"secure_cookies"`  // Set Secure on session cookies (HTTPS deployments)
	RequestTimeout Duration `yaml:"request_timeout"` // Per-call timeout on backend requests
	SessionTTL     Duration `yaml:"session_ttl"`     // Maximum web session lifetime
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Addr:           ":8090",
		BackendURL:     "http://localhost:5280",
		DBPath:         "",
		LogLevel:       "info",
		LogFormat:      "text",
		RequestTimeout: Duration(30 * time.Second),
		SessionTTL:     Duration(24 * time.Hour),
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Domain == "" {
		return cfg, fmt.Errorf("config %s: domain must be set", path)
	}
	return cfg, nil
}
