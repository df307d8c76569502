// v1
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/swapsCAPS/bme680-exporter/internal/bme680"
	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
)

// Output modes served on the catch-all route.
const (
	ModeText    = "text"
	ModeMetrics = "metrics"
)

// Sensor drivers.
const (
	DriverBME680    = "bme680"
	DriverSimulator = "sim"
)

// Config captures all runtime settings of the exporter. Values can be
// provided by environment variables, a properties file, or fall back to
// defaults matching a BME680 breakout on the first I²C bus.
type Config struct {
	// ListenAddress defines the TCP address used by the HTTP server.
	ListenAddress string
	// I2CDevice names the bus, either /dev/i2c-N or a periph bus name.
	I2CDevice string
	// I2CAddress is the 7-bit sensor address (0x76 or 0x77).
	I2CAddress uint16
	// SensorDriver selects the hardware driver or the simulator.
	SensorDriver string
	// PollInterval is the wait between two measurement cycles.
	PollInterval time.Duration
	// OutputMode selects text or Prometheus rendering.
	OutputMode string
	// StaleAfter is the maximum age of a served reading; zero disables it.
	StaleAfter time.Duration
	// Sensor is the oversampling, filter and heater profile.
	Sensor sensor.Settings

	LogFilePath string
	LogLevel    slog.Level

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration

	// PropertiesPath records the path used to load property values.
	PropertiesPath string

	// DeviceID identifies this exporter in forwarded payloads. Empty means
	// the application generates one.
	DeviceID string
	// KafkaBrokers lists the bootstrap brokers; forwarding to Kafka is
	// enabled only when KafkaTopic is set.
	KafkaBrokers []string
	KafkaTopic   string
	// MQTTBroker enables MQTT forwarding when non-empty (tcp://host:1883).
	MQTTBroker     string
	MQTTTopic      string
	MQTTQoS        byte
	PublishTimeout time.Duration
}

const (
	defaultListenAddress  = ":4242"
	defaultI2CDevice      = "/dev/i2c-1"
	defaultPollInterval   = 5 * time.Second
	defaultLogFile        = "logs/bme680-exporter.log"
	defaultReadTimeout    = 5 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	defaultShutdown       = 5 * time.Second
	defaultPropsPath      = "bme680-exporter.properties"
	defaultKafkaBrokers   = "kafka:9092"
	defaultMQTTTopic      = "sensors/bme680"
	defaultPublishTimeout = 3 * time.Second
)

// envKeys maps each property key to its environment variable.
var envKeys = []struct{ prop, env string }{
	{"listen_address", "BME680_LISTEN_ADDRESS"},
	{"i2c_device", "BME680_I2C_DEVICE"},
	{"i2c_address", "BME680_I2C_ADDRESS"},
	{"sensor_driver", "BME680_SENSOR_DRIVER"},
	{"poll_interval_ms", "BME680_POLL_INTERVAL_MS"},
	{"output_mode", "BME680_OUTPUT_MODE"},
	{"stale_after_ms", "BME680_STALE_AFTER_MS"},
	{"humidity_oversampling", "BME680_HUMIDITY_OVERSAMPLING"},
	{"pressure_oversampling", "BME680_PRESSURE_OVERSAMPLING"},
	{"temperature_oversampling", "BME680_TEMPERATURE_OVERSAMPLING"},
	{"filter_size", "BME680_FILTER_SIZE"},
	{"run_gas", "BME680_RUN_GAS"},
	{"heater_temp_c", "BME680_HEATER_TEMP_C"},
	{"heater_duration_ms", "BME680_HEATER_DURATION_MS"},
	{"ambient_temp_c", "BME680_AMBIENT_TEMP_C"},
	{"log_path", "BME680_LOG_PATH"},
	{"log_level", "BME680_LOG_LEVEL"},
	{"http_read_timeout_ms", "BME680_HTTP_READ_TIMEOUT_MS"},
	{"http_write_timeout_ms", "BME680_HTTP_WRITE_TIMEOUT_MS"},
	{"shutdown_timeout_ms", "BME680_SHUTDOWN_TIMEOUT_MS"},
	{"device_id", "BME680_DEVICE_ID"},
	{"kafka_topic", "BME680_KAFKA_TOPIC"},
	{"mqtt_broker", "BME680_MQTT_BROKER"},
	{"mqtt_topic", "BME680_MQTT_TOPIC"},
	{"mqtt_qos", "BME680_MQTT_QOS"},
	{"publish_timeout_ms", "BME680_PUBLISH_TIMEOUT_MS"},
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		ListenAddress:    defaultListenAddress,
		I2CDevice:        defaultI2CDevice,
		I2CAddress:       bme680.AddrPrimary,
		SensorDriver:     DriverBME680,
		PollInterval:     defaultPollInterval,
		OutputMode:       ModeText,
		Sensor:           sensor.DefaultSettings(),
		LogFilePath:      filepath.Clean(defaultLogFile),
		LogLevel:         slog.LevelInfo,
		HTTPReadTimeout:  defaultReadTimeout,
		HTTPWriteTimeout: defaultWriteTimeout,
		ShutdownTimeout:  defaultShutdown,
		KafkaBrokers:     splitAndTrim(defaultKafkaBrokers),
		MQTTTopic:        defaultMQTTTopic,
		PublishTimeout:   defaultPublishTimeout,
	}
}

// Load resolves configuration by layering defaults, an optional
// properties file, and finally environment variables. The properties
// file location can be overridden with BME680_PROPERTIES_PATH.
func Load() (Config, error) {
	cfg := Default()

	propsPath := strings.TrimSpace(os.Getenv("BME680_PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that single keys cannot.
func (c Config) Validate() error {
	switch c.OutputMode {
	case ModeText, ModeMetrics:
	default:
		return fmt.Errorf("output_mode %q: want %s or %s", c.OutputMode, ModeText, ModeMetrics)
	}
	switch c.SensorDriver {
	case DriverBME680, DriverSimulator:
	default:
		return fmt.Errorf("sensor_driver %q: want %s or %s", c.SensorDriver, DriverBME680, DriverSimulator)
	}
	if c.KafkaTopic != "" && len(c.KafkaBrokers) == 0 {
		return errors.New("kafka_topic set but no kafka_brokers")
	}
	if err := c.Sensor.Validate(); err != nil {
		return fmt.Errorf("sensor settings: %w", err)
	}
	return nil
}

func applyProperties(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := setProperty(cfg, key, value); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read properties: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	for _, k := range envKeys {
		v, ok := lookupEnvTrimmed(k.env)
		if !ok {
			continue
		}
		if err := setProperty(cfg, k.prop, v); err != nil {
			return fmt.Errorf("%s: %w", k.env, err)
		}
	}
	if v, ok := lookupEnvTrimmed("BME680_KAFKA_BROKERS"); ok {
		if err := setProperty(cfg, "kafka_brokers", v); err != nil {
			return fmt.Errorf("BME680_KAFKA_BROKERS: %w", err)
		}
	} else if v, ok := lookupEnvTrimmed("KAFKA_BROKERS"); ok {
		if err := setProperty(cfg, "kafka_brokers", v); err != nil {
			return fmt.Errorf("KAFKA_BROKERS: %w", err)
		}
	}
	return nil
}

func setProperty(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "listen_address":
		cfg.ListenAddress, err = nonEmpty(value)
	case "i2c_device":
		cfg.I2CDevice, err = nonEmpty(value)
	case "i2c_address":
		cfg.I2CAddress, err = ParseAddress(value)
	case "sensor_driver":
		cfg.SensorDriver = strings.ToLower(value)
	case "poll_interval_ms":
		cfg.PollInterval, err = parsePositiveMillis(value)
	case "output_mode":
		cfg.OutputMode = strings.ToLower(value)
	case "stale_after_ms":
		cfg.StaleAfter, err = parseNonNegativeMillis(value)
	case "humidity_oversampling":
		cfg.Sensor.HumidityOversampling, err = parseOversampling(value)
	case "pressure_oversampling":
		cfg.Sensor.PressureOversampling, err = parseOversampling(value)
	case "temperature_oversampling":
		cfg.Sensor.TemperatureOversampling, err = parseOversampling(value)
	case "filter_size":
		cfg.Sensor.FilterSize, err = strconv.Atoi(value)
	case "run_gas":
		cfg.Sensor.RunGas, err = strconv.ParseBool(value)
	case "heater_temp_c":
		cfg.Sensor.HeaterTempC, err = strconv.Atoi(value)
	case "heater_duration_ms":
		cfg.Sensor.HeaterDuration, err = parsePositiveMillis(value)
	case "ambient_temp_c":
		cfg.Sensor.AmbientTempC, err = strconv.Atoi(value)
	case "log_path":
		var p string
		p, err = nonEmpty(value)
		cfg.LogFilePath = filepath.Clean(p)
	case "log_level":
		err = cfg.LogLevel.UnmarshalText([]byte(value))
	case "http_read_timeout_ms":
		cfg.HTTPReadTimeout, err = parsePositiveMillis(value)
	case "http_write_timeout_ms":
		cfg.HTTPWriteTimeout, err = parsePositiveMillis(value)
	case "shutdown_timeout_ms":
		cfg.ShutdownTimeout, err = parsePositiveMillis(value)
	case "device_id":
		cfg.DeviceID = value
	case "kafka_brokers":
		cfg.KafkaBrokers = splitAndTrim(value)
		if len(cfg.KafkaBrokers) == 0 {
			err = errors.New("kafka_brokers cannot be empty")
		}
	case "kafka_topic":
		cfg.KafkaTopic = value
	case "mqtt_broker":
		cfg.MQTTBroker = value
	case "mqtt_topic":
		cfg.MQTTTopic, err = nonEmpty(value)
	case "mqtt_qos":
		cfg.MQTTQoS, err = parseQoS(value)
	case "publish_timeout_ms":
		cfg.PublishTimeout, err = parsePositiveMillis(value)
	default:
		// Unknown keys are ignored to keep the loader forward-compatible.
	}
	return err
}

// ParseAddress accepts "primary", "secondary" or the hex address itself.
func ParseAddress(v string) (uint16, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "primary", "":
		return bme680.AddrPrimary, nil
	case "secondary":
		return bme680.AddrSecondary, nil
	}
	n, err := strconv.ParseUint(v, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid i2c address %q: %w", v, err)
	}
	addr := uint16(n)
	if addr != bme680.AddrPrimary && addr != bme680.AddrSecondary {
		return 0, fmt.Errorf("i2c address %#x is not a BME680 address", addr)
	}
	return addr, nil
}

func parseOversampling(v string) (sensor.Oversampling, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(v), "x"))
	if err != nil {
		return 0, fmt.Errorf("invalid oversampling: %w", err)
	}
	o := sensor.Oversampling(n)
	if !o.Valid() {
		return 0, fmt.Errorf("oversampling %d not one of 0, 1, 2, 4, 8, 16", n)
	}
	return o, nil
}

func parseQoS(v string) (byte, error) {
	switch v {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, fmt.Errorf("mqtt qos %q: want 0 or 1", v)
}

func nonEmpty(v string) (string, error) {
	if v == "" {
		return "", errors.New("value cannot be empty")
	}
	return v, nil
}

func lookupEnvTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePositiveMillis(v string) (time.Duration, error) {
	d, err := parseNonNegativeMillis(v)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return d, nil
}

func parseNonNegativeMillis(v string) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return 0, errors.New("value cannot be empty")
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if ms < 0 {
		return 0, errors.New("value must not be negative")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
