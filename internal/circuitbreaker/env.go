// v1
// internal/circuitbreaker/env.go
package circuitbreaker

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigFromEnv overlays DefaultConfig with the following keys:
//   - CB_FAILURE_THRESHOLD (default: 5)
//   - CB_SUCCESS_THRESHOLD (default: 2)
//   - CB_OPEN_SECONDS (default: 30)
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	failures, err := parseEnvInt("CB_FAILURE_THRESHOLD", cfg.MaxFailures)
	if err != nil {
		return Config{}, err
	}
	successes, err := parseEnvInt("CB_SUCCESS_THRESHOLD", cfg.SuccessesToClose)
	if err != nil {
		return Config{}, err
	}
	openSeconds, err := parseEnvFloat("CB_OPEN_SECONDS", cfg.ResetTimeout.Seconds())
	if err != nil {
		return Config{}, err
	}

	if failures < 1 {
		return Config{}, fmt.Errorf("CB_FAILURE_THRESHOLD must be >= 1")
	}
	if successes < 1 {
		return Config{}, fmt.Errorf("CB_SUCCESS_THRESHOLD must be >= 1")
	}
	if openSeconds <= 0 {
		return Config{}, fmt.Errorf("CB_OPEN_SECONDS must be > 0")
	}

	cfg.MaxFailures = failures
	cfg.SuccessesToClose = successes
	cfg.ResetTimeout = time.Duration(openSeconds * float64(time.Second))
	return cfg, nil
}

func parseEnvInt(key string, def int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseEnvFloat(key string, def float64) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
