// v1
// internal/sensor/sensortest/scripted.go

// Package sensortest provides a sensor.Port whose results are scripted per
// cycle, for tests of the acquisition loop and the HTTP surface.
package sensortest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
)

// ErrScripted is the failure returned for cycles scripted with Fail.
var ErrScripted = errors.New("sensortest: scripted failure")

// Step is the outcome of one Trigger/Read cycle.
type Step struct {
	TriggerErr error
	ReadErr    error
	Reading    sensor.Reading
}

// OK returns a successful step with the four values.
func OK(tempC, pressureHPa, humidityPct, gasOhm float64) Step {
	return Step{Reading: sensor.Reading{
		TemperatureCelsius: tempC,
		PressureHPa:        pressureHPa,
		HumidityPercent:    humidityPct,
		GasResistanceOhm:   gasOhm,
	}}
}

// Fail returns a step whose Read fails.
func Fail() Step { return Step{ReadErr: ErrScripted} }

// Port replays Steps in order; once they run out the last step repeats.
type Port struct {
	mu           sync.Mutex
	steps        []Step
	cycle        int
	Now          func() time.Time
	ConfigureErr error
	Configured   *sensor.Settings
	Closed       bool
	Cycled       chan int
}

func New(steps ...Step) *Port {
	return &Port{steps: steps, Now: time.Now, Cycled: make(chan int, 64)}
}

func (p *Port) Configure(s sensor.Settings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConfigureErr != nil {
		return p.ConfigureErr
	}
	p.Configured = &s
	return nil
}

func (p *Port) current() Step {
	if len(p.steps) == 0 {
		return Fail()
	}
	if p.cycle >= len(p.steps) {
		return p.steps[len(p.steps)-1]
	}
	return p.steps[p.cycle]
}

func (p *Port) Trigger(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.current().TriggerErr; err != nil {
		p.advance()
		return err
	}
	return nil
}

func (p *Port) Read(ctx context.Context) (sensor.Reading, error) {
	if err := ctx.Err(); err != nil {
		return sensor.Reading{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.current()
	p.advance()
	if st.ReadErr != nil {
		return sensor.Reading{}, st.ReadErr
	}
	r := st.Reading
	r.ObservedAt = p.Now()
	return r, nil
}

// advance must be called with mu held.
func (p *Port) advance() {
	p.cycle++
	select {
	case p.Cycled <- p.cycle:
	default:
	}
}

// Cycles reports how many cycles have completed.
func (p *Port) Cycles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycle
}

func (p *Port) Close() error {
	p.mu.Lock()
	p.Closed = true
	p.mu.Unlock()
	return nil
}
