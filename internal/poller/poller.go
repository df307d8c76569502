// v1
// internal/poller/poller.go

// Package poller runs the acquisition loop: every interval it starts a
// forced-mode measurement, reads the result and publishes it.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/swapsCAPS/bme680-exporter/internal/observability"
	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
)

// Store receives accepted readings.
type Store interface {
	Set(r sensor.Reading)
}

// Recorder is the metrics surface the poller reports to.
type Recorder interface {
	PollSucceeded()
	PollFailed(stage string)
}

// Offerer hands readings to the forwarder without blocking.
type Offerer interface {
	Offer(r sensor.Reading)
}

// Poller owns the sensor port and feeds the store with accepted readings.
type Poller struct {
	port     sensor.Port
	store    Store
	interval time.Duration
	log      *slog.Logger
	metrics  Recorder
	forward  Offerer
}

// New builds a poller. metrics and forward may be nil.
func New(port sensor.Port, st Store, interval time.Duration, log *slog.Logger, metrics Recorder, forward Offerer) *Poller {
	return &Poller{
		port:     port,
		store:    st,
		interval: interval,
		log:      log.With(slog.String("component", "poller")),
		metrics:  metrics,
		forward:  forward,
	}
}

// Run samples until ctx is cancelled, waiting a full interval between the
// end of one cycle and the next trigger. The first sample is taken one
// interval after start. Failed cycles are logged and skipped; the
// previously stored reading stays in place.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTimer(p.interval)
	defer t.Stop()
	p.log.Info("poller started", "interval", p.interval.String())
	for {
		select {
		case <-t.C:
			_ = p.Cycle(ctx)
			t.Reset(p.interval)
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return nil
		}
	}
}

// Cycle performs one trigger and read.
func (p *Poller) Cycle(ctx context.Context) error {
	if err := p.port.Trigger(ctx); err != nil {
		return p.fail(ctx, observability.StageTrigger, err)
	}
	r, err := p.port.Read(ctx)
	if err != nil {
		return p.fail(ctx, observability.StageRead, err)
	}

	p.store.Set(r)
	if p.metrics != nil {
		p.metrics.PollSucceeded()
	}
	env := r.Env()
	p.log.Info("reading",
		slog.String("temperature", env.Temperature.String()),
		slog.String("pressure", env.Pressure.String()),
		slog.String("humidity", env.Humidity.String()),
		slog.Float64("gas_ohm", r.GasResistanceOhm),
	)
	if p.forward != nil {
		p.forward.Offer(r)
	}
	return nil
}

func (p *Poller) fail(ctx context.Context, stage string, err error) error {
	err = fmt.Errorf("%s: %w", stage, err)
	if ctx.Err() != nil {
		// Shutdown interrupted the cycle; not a sensor failure.
		return err
	}
	if p.metrics != nil {
		p.metrics.PollFailed(stage)
	}
	p.log.Error("poll failed", slog.String("stage", stage), slog.Any("err", err))
	return err
}
