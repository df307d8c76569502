// v0
// internal/sensor/settings.go
package sensor

import (
	"fmt"
	"time"
)

// Oversampling is an oversampling ratio: 0 (skipped), 1, 2, 4, 8 or 16.
type Oversampling int

// Valid reports whether the ratio is one the chip supports.
func (o Oversampling) Valid() bool {
	switch o {
	case 0, 1, 2, 4, 8, 16:
		return true
	}
	return false
}

func (o Oversampling) String() string {
	if o == 0 {
		return "skipped"
	}
	return fmt.Sprintf("%dx", int(o))
}

// Settings is the configuration profile applied once before polling starts.
type Settings struct {
	HumidityOversampling    Oversampling
	PressureOversampling    Oversampling
	TemperatureOversampling Oversampling
	// FilterSize is the IIR filter coefficient: 0, 1, 3, 7, 15, 31, 63 or 127.
	FilterSize int

	RunGas         bool
	HeaterTempC    int
	HeaterDuration time.Duration
	AmbientTempC   int
}

// DefaultSettings returns humidity 2x, pressure 4x, temperature 8x, IIR
// size 3 and a 320°C gas heater profile held for 1500ms at 25°C ambient.
func DefaultSettings() Settings {
	return Settings{
		HumidityOversampling:    2,
		PressureOversampling:    4,
		TemperatureOversampling: 8,
		FilterSize:              3,
		RunGas:                  true,
		HeaterTempC:             320,
		HeaterDuration:          1500 * time.Millisecond,
		AmbientTempC:            25,
	}
}

// Validate checks every field against the ranges the chip accepts.
func (s Settings) Validate() error {
	if !s.HumidityOversampling.Valid() {
		return fmt.Errorf("invalid humidity oversampling %d", s.HumidityOversampling)
	}
	if !s.PressureOversampling.Valid() {
		return fmt.Errorf("invalid pressure oversampling %d", s.PressureOversampling)
	}
	if !s.TemperatureOversampling.Valid() {
		return fmt.Errorf("invalid temperature oversampling %d", s.TemperatureOversampling)
	}
	switch s.FilterSize {
	case 0, 1, 3, 7, 15, 31, 63, 127:
	default:
		return fmt.Errorf("invalid filter size %d", s.FilterSize)
	}
	if s.RunGas {
		if s.HeaterTempC < 200 || s.HeaterTempC > 400 {
			return fmt.Errorf("heater temperature %d°C outside 200..400", s.HeaterTempC)
		}
		if s.HeaterDuration <= 0 || s.HeaterDuration > 4032*time.Millisecond {
			return fmt.Errorf("heater duration %s outside (0, 4032ms]", s.HeaterDuration)
		}
	}
	return nil
}
