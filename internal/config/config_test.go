// v1
// internal/config/config_test.go
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/swapsCAPS/bme680-exporter/internal/bme680"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BME680_PROPERTIES_PATH", filepath.Join(dir, "absent.properties"))
	for _, k := range envKeys {
		if _, ok := os.LookupEnv(k.env); ok {
			t.Setenv(k.env, "")
			os.Unsetenv(k.env)
		}
	}
	for _, k := range []string{"KAFKA_BROKERS", "BME680_KAFKA_BROKERS"} {
		if _, ok := os.LookupEnv(k); ok {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":4242" || cfg.I2CDevice != "/dev/i2c-1" || cfg.I2CAddress != bme680.AddrPrimary {
		t.Fatalf("unexpected bus/listen defaults: %+v", cfg)
	}
	if cfg.PollInterval != 5*time.Second || cfg.OutputMode != ModeText || cfg.StaleAfter != 0 {
		t.Fatalf("unexpected loop defaults: %+v", cfg)
	}
	s := cfg.Sensor
	if s.HumidityOversampling != 2 || s.PressureOversampling != 4 || s.TemperatureOversampling != 8 || s.FilterSize != 3 {
		t.Fatalf("unexpected sensor defaults: %+v", s)
	}
	if s.HeaterTempC != 320 || s.HeaterDuration != 1500*time.Millisecond || s.AmbientTempC != 25 || !s.RunGas {
		t.Fatalf("unexpected heater defaults: %+v", s)
	}
	if cfg.KafkaTopic != "" || cfg.MQTTBroker != "" {
		t.Fatalf("forwarding must be off by default: %+v", cfg)
	}
}

func TestPropertiesThenEnv(t *testing.T) {
	dir := isolate(t)
	props := filepath.Join(dir, "bme680.properties")
	content := strings.Join([]string{
		"# local overrides",
		"listen_address = :9100",
		"i2c_address = secondary",
		"poll_interval_ms = 1000",
		"output_mode = metrics",
		"filter_size = 7",
		"log_level = debug",
		"unknown_key = ignored",
	}, "\n")
	if err := os.WriteFile(props, []byte(content), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	t.Setenv("BME680_PROPERTIES_PATH", props)
	t.Setenv("BME680_LISTEN_ADDRESS", ":9200")
	t.Setenv("BME680_STALE_AFTER_MS", "30000")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("BME680_KAFKA_TOPIC", "sensors.bme680")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9200" {
		t.Fatalf("env must override properties, got %q", cfg.ListenAddress)
	}
	if cfg.I2CAddress != bme680.AddrSecondary || cfg.PollInterval != time.Second || cfg.OutputMode != ModeMetrics {
		t.Fatalf("properties not applied: %+v", cfg)
	}
	if cfg.Sensor.FilterSize != 7 || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("properties not applied: %+v", cfg)
	}
	if cfg.StaleAfter != 30*time.Second {
		t.Fatalf("stale_after: got %s", cfg.StaleAfter)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" || cfg.KafkaTopic != "sensors.bme680" {
		t.Fatalf("kafka settings: %+v", cfg)
	}
	if cfg.PropertiesPath != props {
		t.Fatalf("properties path: got %q", cfg.PropertiesPath)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{name: "zero interval", env: "BME680_POLL_INTERVAL_MS", val: "0"},
		{name: "bad mode", env: "BME680_OUTPUT_MODE", val: "json"},
		{name: "bad driver", env: "BME680_SENSOR_DRIVER", val: "bme280"},
		{name: "bad address", env: "BME680_I2C_ADDRESS", val: "0x40"},
		{name: "bad oversampling", env: "BME680_HUMIDITY_OVERSAMPLING", val: "3"},
		{name: "bad filter", env: "BME680_FILTER_SIZE", val: "5"},
		{name: "heater too hot", env: "BME680_HEATER_TEMP_C", val: "450"},
		{name: "negative stale", env: "BME680_STALE_AFTER_MS", val: "-1"},
		{name: "bad qos", env: "BME680_MQTT_QOS", val: "2"},
		{name: "bad level", env: "BME680_LOG_LEVEL", val: "loud"},
		{name: "empty listen", env: "BME680_LISTEN_ADDRESS", val: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tc.env, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.env, tc.val)
			}
		})
	}
}

func TestMalformedPropertiesFile(t *testing.T) {
	dir := isolate(t)
	props := filepath.Join(dir, "broken.properties")
	if err := os.WriteFile(props, []byte("listen_address\n"), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	t.Setenv("BME680_PROPERTIES_PATH", props)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed line")
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{in: "primary", want: 0x76},
		{in: "SECONDARY", want: 0x77},
		{in: "0x77", want: 0x77},
		{in: "118", want: 0x76},
		{in: "0x29", wantErr: true},
		{in: "zz", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseAddress(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseAddress(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseAddress(%q) = %#x, %v", tc.in, got, err)
		}
	}
}

func TestOversamplingSuffix(t *testing.T) {
	o, err := parseOversampling("16x")
	if err != nil || o != 16 {
		t.Fatalf("got %v, %v", o, err)
	}
}
