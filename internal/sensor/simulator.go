// v0
// internal/sensor/simulator.go
package sensor

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

var errNotTriggered = errors.New("sensor: read without trigger")

// Simulator is a Port producing a bounded random walk around indoor
// conditions. It lets the daemon run on hosts without an I²C bus.
type Simulator struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	now       func() time.Time
	settings  Settings
	triggered bool

	tempC    float64
	pressure float64
	humidity float64
	gasOhm   float64
}

// NewSimulator returns a simulator seeded with seed. The same seed yields
// the same sequence of readings.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rnd:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
		tempC:    22,
		pressure: 1013.25,
		humidity: 45,
		gasOhm:   50000,
	}
}

func (s *Simulator) Configure(st Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = st
	s.mu.Unlock()
	return nil
}

func (s *Simulator) Trigger(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.triggered = true
	s.mu.Unlock()
	return nil
}

func (s *Simulator) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.triggered {
		return Reading{}, errNotTriggered
	}
	s.triggered = false

	s.tempC = walk(s.rnd, s.tempC, 0.2, 15, 30)
	s.pressure = walk(s.rnd, s.pressure, 0.5, 980, 1040)
	s.humidity = walk(s.rnd, s.humidity, 1, 20, 80)
	s.gasOhm = walk(s.rnd, s.gasOhm, 500, 5000, 200000)

	r := Reading{
		TemperatureCelsius: s.tempC,
		PressureHPa:        s.pressure,
		HumidityPercent:    s.humidity,
		ObservedAt:         s.now(),
		HeaterStable:       s.settings.RunGas,
		GasValid:           s.settings.RunGas,
	}
	if s.settings.RunGas {
		r.GasResistanceOhm = s.gasOhm
	}
	return r, nil
}

func (s *Simulator) Close() error { return nil }

func walk(rnd *rand.Rand, v, step, lo, hi float64) float64 {
	v += (rnd.Float64()*2 - 1) * step
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
