// v0
// internal/sensor/sensor.go

// Package sensor defines the reading model and the capability the
// acquisition loop needs from an environmental sensor.
package sensor

import (
	"context"
	"errors"
	"time"

	"periph.io/x/conn/v3/physic"
)

// ErrNotReady is returned by Read when the sensor has not finished the
// measurement cycle started by the last Trigger.
var ErrNotReady = errors.New("sensor: measurement not ready")

// Reading is one complete sample. It is a value type: a new Reading replaces
// the previous one, fields are never updated in place.
type Reading struct {
	TemperatureCelsius float64   `json:"temperatureC"`
	PressureHPa        float64   `json:"pressureHPa"`
	HumidityPercent    float64   `json:"humidityPct"`
	GasResistanceOhm   float64   `json:"gasResistanceOhm"`
	ObservedAt         time.Time `json:"timestamp"`

	// Chip diagnostics. Not rendered by the exposer.
	GasValid     bool `json:"-"`
	HeaterStable bool `json:"-"`
}

// Env converts the climate part of the reading into periph units, which
// format themselves with SI prefixes in logs.
func (r Reading) Env() physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(r.TemperatureCelsius*float64(physic.Kelvin)),
		Pressure:    physic.Pressure(r.PressureHPa * 100 * float64(physic.Pascal)),
		Humidity:    physic.RelativeHumidity(r.HumidityPercent * float64(physic.PercentRH)),
	}
}

// Port is the capability consumed by the poller and the supervisor. A Port
// is owned by a single goroutine; implementations need not be safe for
// concurrent use.
type Port interface {
	// Configure applies the settings profile. Called once before polling.
	Configure(s Settings) error
	// Trigger starts one single-shot (forced mode) measurement cycle.
	Trigger(ctx context.Context) error
	// Read waits for the cycle started by Trigger and returns its result.
	Read(ctx context.Context) (Reading, error)
	Close() error
}
