// v1
// internal/publish/forwarder.go

// Package publish forwards accepted readings to optional message brokers.
// Sampling never waits on a broker: the poller hands readings to a
// single-slot mailbox and one goroutine drains it.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/swapsCAPS/bme680-exporter/internal/circuitbreaker"
	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
)

// Sink delivers one encoded reading to a downstream system.
type Sink interface {
	Name() string
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// Recorder is the metrics surface the forwarder reports to.
type Recorder interface {
	ForwardDropped()
	SinkPublished(sink string)
	SinkError(sink string)
	SetBreakerState(sink string, state float64)
}

type guardedSink struct {
	sink    Sink
	breaker *circuitbreaker.Breaker
}

// Forwarder delivers the most recent offered reading to every sink.
type Forwarder struct {
	deviceID string
	sinks    []guardedSink
	timeout  time.Duration
	log      *slog.Logger
	metrics  Recorder

	mu      sync.Mutex
	pending *sensor.Reading
	notify  chan struct{}
}

// NewForwarder wraps every sink in its own circuit breaker built from cfg.
// With no sinks the forwarder accepts offers and discards them.
func NewForwarder(deviceID string, sinks []Sink, cfg circuitbreaker.Config, timeout time.Duration, log *slog.Logger, metrics Recorder) (*Forwarder, error) {
	f := &Forwarder{
		deviceID: deviceID,
		timeout:  timeout,
		log:      log.With(slog.String("component", "forwarder")),
		metrics:  metrics,
		notify:   make(chan struct{}, 1),
	}
	for _, s := range sinks {
		b, err := circuitbreaker.New(s.Name(), cfg, log)
		if err != nil {
			return nil, err
		}
		if metrics != nil {
			b.OnStateChange(func(name string, st circuitbreaker.State) {
				metrics.SetBreakerState(name, breakerGauge(st))
			})
		}
		f.sinks = append(f.sinks, guardedSink{sink: s, breaker: b})
	}
	return f, nil
}

// Enabled reports whether any sink is configured.
func (f *Forwarder) Enabled() bool {
	return f != nil && len(f.sinks) > 0
}

// Offer places r in the mailbox, replacing any reading not yet delivered.
// It never blocks.
func (f *Forwarder) Offer(r sensor.Reading) {
	if !f.Enabled() {
		return
	}
	f.mu.Lock()
	if f.pending != nil && f.metrics != nil {
		f.metrics.ForwardDropped()
	}
	f.pending = &r
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *Forwarder) take() (sensor.Reading, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return sensor.Reading{}, false
	}
	r := *f.pending
	f.pending = nil
	return r, true
}

// Run delivers mailbox contents until ctx is cancelled. A reading still in
// the mailbox at cancellation is discarded.
func (f *Forwarder) Run(ctx context.Context) error {
	if !f.Enabled() {
		<-ctx.Done()
		return nil
	}
	f.log.Info("forwarder_started", slog.Int("sinks", len(f.sinks)))
	for {
		select {
		case <-ctx.Done():
			f.log.Info("forwarder_stopped")
			return nil
		case <-f.notify:
		}
		r, ok := f.take()
		if !ok {
			continue
		}
		f.deliver(ctx, r)
	}
}

func (f *Forwarder) deliver(ctx context.Context, r sensor.Reading) {
	body, err := Encode(f.deviceID, r)
	if err != nil {
		f.log.Error("encode_failed", slog.Any("err", err))
		return
	}
	for _, gs := range f.sinks {
		name := gs.sink.Name()
		err := gs.breaker.Execute(ctx, func(ctx context.Context) error {
			sendCtx, cancel := f.withTimeout(ctx)
			defer cancel()
			return gs.sink.Publish(sendCtx, body)
		})
		if err != nil {
			if f.metrics != nil {
				f.metrics.SinkError(name)
			}
			if !errors.Is(err, circuitbreaker.ErrOpen) {
				f.log.Warn("publish_failed", slog.String("sink", name), slog.Any("err", err))
			}
			continue
		}
		if f.metrics != nil {
			f.metrics.SinkPublished(name)
		}
	}
}

func (f *Forwarder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, f.timeout)
}

// Close releases every sink.
func (f *Forwarder) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, gs := range f.sinks {
		if err := gs.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", gs.sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func breakerGauge(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.HalfOpen:
		return 1
	case circuitbreaker.Open:
		return 2
	default:
		return 0
	}
}

type payload struct {
	DeviceID string `json:"deviceId"`
	sensor.Reading
}

// Encode renders the broker payload for r.
func Encode(deviceID string, r sensor.Reading) ([]byte, error) {
	return json.Marshal(payload{DeviceID: deviceID, Reading: r})
}
