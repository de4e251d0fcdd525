package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for busmapd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Bus       BusConfig       `yaml:"bus"`
	Records   []RecordConfig  `yaml:"records"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// BusConfig contains register access settings and the memory windows that
// become bus devices.
type BusConfig struct {
	// ShadowPolicy is custom_first, builtin_first or reject.
	ShadowPolicy string `yaml:"shadow_policy"`

	// LockUnmaskedWrites orders unmasked writes against masked
	// read-modify-write updates on the same device.
	LockUnmaskedWrites bool `yaml:"lock_unmasked_writes"`

	Windows []WindowConfig `yaml:"windows"`
}

// Window backends.
const (
	BackendAnonymous = "anonymous"
	BackendDevMem    = "devmem"
	BackendUIO       = "uio"
)

// WindowConfig maps one memory window and registers it as a device.
type WindowConfig struct {
	Name    string `yaml:"name"`
	Backend string `yaml:"backend"`

	// Path is the device node; defaults to /dev/mem for devmem.
	Path string `yaml:"path"`

	// Physical is the bus address for devmem windows.
	Physical uint64 `yaml:"physical"`

	// Index is the UIO map number for uio windows.
	Index int `yaml:"index"`

	Size int `yaml:"size"`
}

// RecordConfig describes one input or output record.
type RecordConfig struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Kind        string        `yaml:"kind"`
	Link        string        `yaml:"link"`
	Instance    uint32        `yaml:"instance"`
	Shift       uint          `yaml:"shift"`
	Mask        uint32        `yaml:"mask"`
	PINI        bool          `yaml:"pini"`
	Scan        time.Duration `yaml:"scan"`
	Signed      bool          `yaml:"signed"`
}

// DatabaseConfig contains SQLite database settings for the write audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection delays in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for value history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT settings. An empty secret leaves record writes
// over HTTP unauthenticated.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BUSMAP_SECTION_KEY
// For example: BUSMAP_DATABASE_PATH, BUSMAP_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "busmap",
		},
		Bus: BusConfig{
			ShadowPolicy:       "custom_first",
			LockUnmaskedWrites: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/busmap.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "busmapd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BUSMAP_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("BUSMAP_BUS_SHADOW_POLICY"); v != "" {
		cfg.Bus.ShadowPolicy = v
	}
	if v, err := strconv.ParseBool(os.Getenv("BUSMAP_BUS_LOCK_UNMASKED_WRITES")); err == nil {
		cfg.Bus.LockUnmaskedWrites = v
	}

	if v, err := strconv.ParseBool(os.Getenv("BUSMAP_MQTT_ENABLED")); err == nil {
		cfg.MQTT.Enabled = v
	}
	if v := os.Getenv("BUSMAP_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BUSMAP_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BUSMAP_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("BUSMAP_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, err := strconv.Atoi(os.Getenv("BUSMAP_API_PORT")); err == nil {
		cfg.API.Port = v
	}

	if v := os.Getenv("BUSMAP_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("BUSMAP_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	if v := os.Getenv("BUSMAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	switch strings.ToLower(c.Bus.ShadowPolicy) {
	case "", "custom_first", "builtin_first", "reject":
	default:
		errs = append(errs, fmt.Sprintf("bus.shadow_policy %q must be custom_first, builtin_first or reject", c.Bus.ShadowPolicy))
	}

	windows := make(map[string]bool, len(c.Bus.Windows))
	for i, w := range c.Bus.Windows {
		errs = append(errs, w.validate(i)...)
		if windows[w.Name] {
			errs = append(errs, fmt.Sprintf("bus.windows[%d]: duplicate name %q", i, w.Name))
		}
		windows[w.Name] = true
	}

	records := make(map[string]bool, len(c.Records))
	for i, r := range c.Records {
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("records[%d].name is required", i))
		} else if records[r.Name] {
			errs = append(errs, fmt.Sprintf("records[%d]: duplicate name %q", i, r.Name))
		}
		records[r.Name] = true
		if r.Kind != "input" && r.Kind != "output" {
			errs = append(errs, fmt.Sprintf("records[%d].kind must be input or output", i))
		}
		if r.Scan < 0 {
			errs = append(errs, fmt.Sprintf("records[%d].scan must not be negative", i))
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	// The secret is optional; a short one is rejected.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (w WindowConfig) validate(i int) []string {
	var errs []string
	if w.Name == "" {
		errs = append(errs, fmt.Sprintf("bus.windows[%d].name is required", i))
	}
	if w.Size <= 0 {
		errs = append(errs, fmt.Sprintf("bus.windows[%d].size must be positive", i))
	}
	switch w.Backend {
	case BackendAnonymous, BackendDevMem:
	case BackendUIO:
		if w.Path == "" {
			errs = append(errs, fmt.Sprintf("bus.windows[%d].path is required for uio", i))
		}
		if w.Index < 0 {
			errs = append(errs, fmt.Sprintf("bus.windows[%d].index must not be negative", i))
		}
	default:
		errs = append(errs, fmt.Sprintf("bus.windows[%d].backend %q must be anonymous, devmem or uio", i, w.Backend))
	}
	return errs
}

// DevicePath returns the device node for the window.
func (w WindowConfig) DevicePath() string {
	if w.Path == "" && w.Backend == BackendDevMem {
		return "/dev/mem"
	}
	return w.Path
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetAccessTokenTTL returns the JWT lifetime.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
