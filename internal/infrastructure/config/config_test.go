package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "busmap.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "lab-crate-3"
bus:
  shadow_policy: builtin_first
  lock_unmasked_writes: false
  windows:
    - name: adc
      backend: devmem
      physical: 0x43c00000
      size: 4096
    - name: sim
      backend: anonymous
      size: 8192
records:
  - name: temp1
    kind: input
    link: "@adc+0x10,le16"
    scan: 500ms
    signed: true
  - name: relays
    kind: output
    link: "#C1 S8 @adc+4"
    mask: 0xff00
database:
  path: "/tmp/test.db"
api:
  port: 9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "lab-crate-3" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "lab-crate-3")
	}
	if cfg.Bus.ShadowPolicy != "builtin_first" || cfg.Bus.LockUnmaskedWrites {
		t.Errorf("Bus = %+v", cfg.Bus)
	}
	if len(cfg.Bus.Windows) != 2 {
		t.Fatalf("len(Bus.Windows) = %d, want 2", len(cfg.Bus.Windows))
	}
	if w := cfg.Bus.Windows[0]; w.Physical != 0x43c00000 || w.DevicePath() != "/dev/mem" {
		t.Errorf("Windows[0] = %+v, DevicePath() = %q", w, w.DevicePath())
	}
	if len(cfg.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(cfg.Records))
	}
	if r := cfg.Records[0]; r.Scan != 500*time.Millisecond || !r.Signed {
		t.Errorf("Records[0] = %+v", r)
	}
	if r := cfg.Records[1]; r.Mask != 0xff00 || r.Link != "#C1 S8 @adc+4" {
		t.Errorf("Records[1] = %+v", r)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	// untouched sections keep their defaults
	if cfg.MQTT.Broker.ClientID != "busmapd" {
		t.Errorf("MQTT.Broker.ClientID = %q, want busmapd", cfg.MQTT.Broker.ClientID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/busmap.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
bus:
  windows:
    - name: adc
      backend: pci
      size: 0
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"site.id", "bus.windows[0].size", "bus.windows[0].backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Bus.Windows = []WindowConfig{{Name: "adc", Backend: BackendAnonymous, Size: 4096}}
		cfg.Records = []RecordConfig{{Name: "temp1", Kind: "input", Link: "@adc"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, true},
		{"bad shadow policy", func(c *Config) { c.Bus.ShadowPolicy = "sometimes" }, true},
		{"duplicate window", func(c *Config) {
			c.Bus.Windows = append(c.Bus.Windows, c.Bus.Windows[0])
		}, true},
		{"uio without path", func(c *Config) {
			c.Bus.Windows[0].Backend = BackendUIO
		}, true},
		{"uio with path", func(c *Config) {
			c.Bus.Windows[0].Backend = BackendUIO
			c.Bus.Windows[0].Path = "/dev/uio0"
		}, false},
		{"record without name", func(c *Config) { c.Records[0].Name = "" }, true},
		{"duplicate record", func(c *Config) {
			c.Records = append(c.Records, c.Records[0])
		}, true},
		{"record bad kind", func(c *Config) { c.Records[0].Kind = "both" }, true},
		{"negative scan", func(c *Config) { c.Records[0].Scan = -time.Second }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"no JWT secret", func(c *Config) { c.Security.JWT.Secret = "" }, false},
		{"JWT secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, true},
		{"JWT secret long enough", func(c *Config) {
			c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
		Security: SecurityConfig{JWT: JWTConfig{AccessTokenTTL: 15}},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 45*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 45s", got)
	}
	if got := cfg.GetIdleTimeout(); got != time.Minute {
		t.Errorf("GetIdleTimeout() = %v, want 1m", got)
	}
	if got := cfg.GetAccessTokenTTL(); got != 15*time.Minute {
		t.Errorf("GetAccessTokenTTL() = %v, want 15m", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("BUSMAP_DATABASE_PATH", "/custom/path.db")
	t.Setenv("BUSMAP_BUS_SHADOW_POLICY", "reject")
	t.Setenv("BUSMAP_BUS_LOCK_UNMASKED_WRITES", "false")
	t.Setenv("BUSMAP_MQTT_ENABLED", "true")
	t.Setenv("BUSMAP_MQTT_HOST", "mqtt.example.com")
	t.Setenv("BUSMAP_MQTT_USERNAME", "testuser")
	t.Setenv("BUSMAP_MQTT_PASSWORD", "testpass")
	t.Setenv("BUSMAP_API_HOST", "192.168.1.1")
	t.Setenv("BUSMAP_API_PORT", "9000")
	t.Setenv("BUSMAP_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("BUSMAP_JWT_SECRET", "jwt-secret")
	t.Setenv("BUSMAP_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   any
		want  any
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"Bus.ShadowPolicy", cfg.Bus.ShadowPolicy, "reject"},
		{"Bus.LockUnmaskedWrites", cfg.Bus.LockUnmaskedWrites, false},
		{"MQTT.Enabled", cfg.MQTT.Enabled, true},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"API.Port", cfg.API.Port, 9000},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.field, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_IgnoresMalformed(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("BUSMAP_API_PORT", "eighty")
	t.Setenv("BUSMAP_BUS_LOCK_UNMASKED_WRITES", "perhaps")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
	if !cfg.Bus.LockUnmaskedWrites {
		t.Error("Bus.LockUnmaskedWrites changed by malformed value")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.Bus.ShadowPolicy != "custom_first" {
		t.Errorf("defaultConfig Bus.ShadowPolicy = %q, want custom_first", cfg.Bus.ShadowPolicy)
	}
	if !cfg.Bus.LockUnmaskedWrites {
		t.Error("defaultConfig should lock unmasked writes")
	}
	if cfg.MQTT.Enabled {
		t.Error("defaultConfig should leave MQTT disabled")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig does not validate: %v", err)
	}
}
