package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Surface modes
const (
	SurfaceWeb = "web"
	SurfaceTUI = "tui"
	SurfaceLog = "log"
)

// Config holds the application configuration
type Config struct {
	// UPS status server
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Subprotocol    string        `yaml:"subprotocol"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// Display
	Surface    string `yaml:"surface"` // "web", "tui" or "log"
	ListenAddr string `yaml:"listen_addr"`

	// Observability
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`

	// Power transition notifications, disabled unless both are set
	PushoverToken string `yaml:"pushover_token"`
	PushoverUser  string `yaml:"pushover_user"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Host:           "localhost",
		Port:           10024,
		Subprotocol:    "broadcast",
		ReconnectDelay: 10 * time.Second,
		Surface:        SurfaceWeb,
		ListenAddr:     ":8080",
		LogLevel:       "info",
		LogFile:        "ups-dashboard.log",
		MetricsPort:    9090,
		HealthPort:     8081,
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order. The result is not validated; callers
// apply their own overrides first and then call Validate
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	ApplyEnvOverrides(cfg)
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides overwrites fields whose environment variable is set
func ApplyEnvOverrides(cfg *Config) {
	cfg.Host = getEnvOrDefault("UPS_HOST", cfg.Host)
	cfg.Port = parseInt(os.Getenv("UPS_PORT"), cfg.Port)
	cfg.Subprotocol = getEnvOrDefault("UPS_SUBPROTOCOL", cfg.Subprotocol)
	cfg.ReconnectDelay = parseDuration(os.Getenv("RECONNECT_DELAY"), cfg.ReconnectDelay)
	cfg.Surface = getEnvOrDefault("SURFACE", cfg.Surface)
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnvOrDefault("LOG_FILE", cfg.LogFile)
	cfg.MetricsPort = parseInt(os.Getenv("METRICS_PORT"), cfg.MetricsPort)
	cfg.HealthPort = parseInt(os.Getenv("HEALTH_PORT"), cfg.HealthPort)
	cfg.PushoverToken = getEnvOrDefault("PUSHOVER_TOKEN", cfg.PushoverToken)
	cfg.PushoverUser = getEnvOrDefault("PUSHOVER_USER", cfg.PushoverUser)
}

// Validate checks the configuration for values the dashboard cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if !validPort(c.Port) {
		errs = append(errs, fmt.Errorf("port must be 1-65535, got: %d", c.Port))
	}
	if c.Subprotocol == "" {
		errs = append(errs, errors.New("subprotocol is required"))
	}
	if c.ReconnectDelay <= 0 {
		errs = append(errs, fmt.Errorf("reconnect_delay must be positive, got: %s", c.ReconnectDelay))
	}
	switch c.Surface {
	case SurfaceWeb, SurfaceTUI, SurfaceLog:
	default:
		errs = append(errs, fmt.Errorf("surface must be one of 'web', 'tui' or 'log', got: %s", c.Surface))
	}
	if c.Surface == SurfaceWeb {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			errs = append(errs, fmt.Errorf("listen_addr is invalid: %w", err))
		}
	}
	if !validPort(c.MetricsPort) {
		errs = append(errs, fmt.Errorf("metrics_port must be 1-65535, got: %d", c.MetricsPort))
	}
	if !validPort(c.HealthPort) {
		errs = append(errs, fmt.Errorf("health_port must be 1-65535, got: %d", c.HealthPort))
	}

	if (c.PushoverToken == "") != (c.PushoverUser == "") {
		errs = append(errs, errors.New("pushover_token and pushover_user must be set together"))
	}

	return errors.Join(errs...)
}

// NotificationsEnabled reports whether power notifications are configured
func (c *Config) NotificationsEnabled() bool {
	return c.PushoverToken != "" && c.PushoverUser != ""
}

// ServerURL returns the websocket address of the UPS status server
func (c *Config) ServerURL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/",
	}
	return u.String()
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil || result == 0 {
		return defaultValue
	}
	return result
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
