// Package config loads the HLR's runtime configuration: an optional YAML
// file overlaid with the environment variables listed in the GSUP
// front-end's external interface, the same env-first posture the Python
// prototype used (os.getenv with defaults baked into the struct).
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Provisioner ProvisionerConfig `yaml:"provisioner"`
	UpdateLoc   UpdateLocationConfig `yaml:"update_location"`
	Log         LogConfig         `yaml:"log"`
	Admin       AdminConfig       `yaml:"admin"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds the GSUP/IPA listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ProvisionerConfig holds the external auth/provisioning HTTP client settings.
type ProvisionerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// UpdateLocationConfig holds the nested Insert Subscriber Data wait bound.
type UpdateLocationConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// AdminConfig holds the admin/status HTTP+WS surface settings. The admin
// server is disabled entirely when JWTSecret is empty.
type AdminConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

// AuditConfig holds the optional Postgres-backed audit trail settings. The
// audit writer is a no-op sink when DSN is empty.
type AuditConfig struct {
	DSN string `yaml:"dsn"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// defaults mirrors spec.md §6.4 / §6.6.
func defaults() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 4222},
		Provisioner: ProvisionerConfig{
			URL:     "",
			Timeout: 30 * time.Second,
		},
		UpdateLoc: UpdateLocationConfig{Timeout: 30 * time.Second},
		Log:       LogConfig{Level: "INFO", Format: "json"},
		Admin: AdminConfig{
			Host: "127.0.0.1",
			Port: 8081,
		},
		Metrics: MetricsConfig{Namespace: "hlr_gsup"},
	}
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Load builds a Config starting from defaults, optionally overlaid by a
// YAML file at path (ignored if path is empty or the file does not exist;
// any other read error is returned), and finally
// overlaid by environment variables. Environment variables always win,
// matching the Python prototype's settings precedence.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnv(&cfg)

	configMu.Lock()
	globalConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HLR_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HLR_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("AUTH_SERVICE_URL"); v != "" {
		cfg.Provisioner.URL = v
	}
	if v := os.Getenv("AUTH_SERVICE_TIMEOUT"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.Provisioner.Timeout = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("UPDATE_LOCATION_TIMEOUT"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.UpdateLoc.Timeout = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ADMIN_HOST"); v != "" {
		cfg.Admin.Host = v
	}
	if v := os.Getenv("ADMIN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Admin.Port = p
		}
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if v := os.Getenv("AUDIT_DB_DSN"); v != "" {
		cfg.Audit.DSN = v
	}
	if v := os.Getenv("METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
}

// Get returns the most recently Loaded configuration, or nil if Load has
// never been called.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Validate checks invariants that would otherwise surface as confusing
// runtime errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Provisioner.URL == "" {
		return fmt.Errorf("AUTH_SERVICE_URL is required")
	}
	if c.Provisioner.Timeout <= 0 {
		return fmt.Errorf("invalid provisioner timeout: %v", c.Provisioner.Timeout)
	}
	if c.UpdateLoc.Timeout <= 0 {
		return fmt.Errorf("invalid update location timeout: %v", c.UpdateLoc.Timeout)
	}
	return nil
}

// GetAddr returns the GSUP listener address in host:port form.
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetAdminAddr returns the admin server address in host:port form.
func (c *Config) GetAdminAddr() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}
