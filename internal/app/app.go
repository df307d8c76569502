// v1
// internal/app/app.go

// Package app wires the sensor, store, poller, forwarder and HTTP server
// and supervises them until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/swapsCAPS/bme680-exporter/internal/bme680"
	"github.com/swapsCAPS/bme680-exporter/internal/circuitbreaker"
	"github.com/swapsCAPS/bme680-exporter/internal/config"
	"github.com/swapsCAPS/bme680-exporter/internal/httpserver"
	"github.com/swapsCAPS/bme680-exporter/internal/logging"
	"github.com/swapsCAPS/bme680-exporter/internal/observability"
	"github.com/swapsCAPS/bme680-exporter/internal/poller"
	"github.com/swapsCAPS/bme680-exporter/internal/publish"
	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
	"github.com/swapsCAPS/bme680-exporter/internal/store"
)

// Application owns every long-lived component of the exporter.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	logCloser *logging.Logger
	port      sensor.Port
	store     *store.Store
	metrics   *observability.Metrics
	poller    *poller.Poller
	forwarder *publish.Forwarder
	server    *httpserver.Server
	health    *httpserver.HealthState
}

// Option adjusts construction, mainly for tests.
type Option func(*options)

type options struct {
	port   sensor.Port
	logger *slog.Logger
}

// WithPort uses p instead of opening the configured driver.
func WithPort(p sensor.Port) Option {
	return func(o *options) { o.port = p }
}

// WithLogger uses l instead of opening the configured log file.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New opens and configures the sensor, then builds the rest of the
// pipeline. Any failure here is fatal for the process; resources opened
// so far are released before returning.
func New(cfg config.Config, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	mode, err := httpserver.ParseMode(cfg.OutputMode)
	if err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: o.logger}
	if a.logger == nil {
		lg, err := logging.Open(cfg.LogFilePath, os.Stdout, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		a.logCloser = lg
		a.logger = lg.Logger
	}

	if err := a.initSensor(o.port); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.store = store.New()
	a.metrics = observability.New(a.store, cfg.StaleAfter)

	if err := a.initForwarder(); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.poller = poller.New(a.port, a.store, cfg.PollInterval, a.logger, a.metrics, a.forwarder)

	exposer, err := httpserver.NewExposer(mode, a.store, cfg.StaleAfter, a.metrics.Handler(), a.logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.health = httpserver.NewHealthState()
	router := httpserver.NewRouter(a.health, exposer)
	handler := httpserver.WrapWithLogging(a.logger, router)
	a.server = httpserver.NewServer(cfg.ListenAddress, handler, cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout, a.logger)

	a.logger.Info("application_configured",
		slog.String("output_mode", mode.String()),
		slog.String("poll_interval", cfg.PollInterval.String()),
		slog.String("stale_after", cfg.StaleAfter.String()),
	)
	return a, nil
}

func (a *Application) initSensor(p sensor.Port) error {
	if p == nil {
		switch a.cfg.SensorDriver {
		case config.DriverSimulator:
			p = sensor.NewSimulator(time.Now().UnixNano())
		default:
			dev, err := bme680.Open(a.cfg.I2CDevice, a.cfg.I2CAddress)
			if err != nil {
				return fmt.Errorf("open sensor on %s at %#x: %w", a.cfg.I2CDevice, a.cfg.I2CAddress, err)
			}
			p = dev
		}
	}
	a.port = p
	if err := p.Configure(a.cfg.Sensor); err != nil {
		return fmt.Errorf("configure sensor: %w", err)
	}
	s := a.cfg.Sensor
	a.logger.Info("sensor_settings",
		slog.String("driver", a.cfg.SensorDriver),
		slog.String("humidity_oversampling", s.HumidityOversampling.String()),
		slog.String("pressure_oversampling", s.PressureOversampling.String()),
		slog.String("temperature_oversampling", s.TemperatureOversampling.String()),
		slog.Int("filter_size", s.FilterSize),
		slog.Bool("run_gas", s.RunGas),
		slog.Int("heater_temp_c", s.HeaterTempC),
		slog.String("heater_duration", s.HeaterDuration.String()),
		slog.Int("ambient_temp_c", s.AmbientTempC),
	)
	return nil
}

func (a *Application) initForwarder() error {
	deviceID := a.cfg.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	var sinks []publish.Sink
	if a.cfg.KafkaTopic != "" {
		sinks = append(sinks, publish.NewKafkaSink(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, deviceID))
		a.logger.Info("kafka_forwarding_enabled",
			slog.String("topic", a.cfg.KafkaTopic),
			slog.String("brokers", strings.Join(a.cfg.KafkaBrokers, ",")),
		)
	}
	if a.cfg.MQTTBroker != "" {
		m, err := publish.NewMQTTSink(a.cfg.MQTTBroker, "bme680-"+deviceID, a.cfg.MQTTTopic, a.cfg.MQTTQoS, a.logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, m)
		a.logger.Info("mqtt_forwarding_enabled", slog.String("broker", a.cfg.MQTTBroker), slog.String("topic", a.cfg.MQTTTopic))
	}
	closeSinks := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}
	cbCfg := circuitbreaker.DefaultConfig()
	if len(sinks) > 0 {
		var err error
		if cbCfg, err = circuitbreaker.ConfigFromEnv(); err != nil {
			closeSinks()
			return err
		}
	}
	f, err := publish.NewForwarder(deviceID, sinks, cbCfg, a.cfg.PublishTimeout, a.logger, a.metrics)
	if err != nil {
		closeSinks()
		return err
	}
	a.forwarder = f
	return nil
}

// Logger exposes the configured logger so main can log after init.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Addr returns the bound HTTP address once Run has started listening.
func (a *Application) Addr() net.Addr {
	return a.server.Addr()
}

// Health exposes the readiness tracker.
func (a *Application) Health() *httpserver.HealthState {
	return a.health
}

// Run binds the listener, starts the poller and forwarder, and blocks
// until ctx is cancelled or a component stops on its own. A bind failure
// is returned immediately.
func (a *Application) Run(ctx context.Context) error {
	if err := a.server.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpCh := make(chan error, 1)
	go func() {
		httpCh <- a.server.Serve()
	}()
	a.health.SetReady(true)

	pollCh := make(chan error, 1)
	go func() {
		pollCh <- a.poller.Run(ctx)
	}()

	fwdCh := make(chan error, 1)
	go func() {
		fwdCh <- a.forwarder.Run(ctx)
	}()

	var httpErr error
	select {
	case err := <-httpCh:
		httpErr = err
		httpCh = nil
		if err != nil {
			a.logger.Error("http_server_error", slog.Any("err", err))
		} else {
			a.logger.Info("server_closed")
		}
	case err := <-pollCh:
		pollCh = nil
		a.logger.Warn("poller_exited", slog.Any("err", err))
	case <-ctx.Done():
		a.logger.Info("shutdown_signal")
	}

	a.health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	if err := a.server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("server_shutdown_failed", slog.Any("err", err))
		if httpErr == nil {
			httpErr = fmt.Errorf("shutdown: %w", err)
		}
	}
	shutdownCancel()
	cancel()

	if httpCh != nil {
		if err := <-httpCh; err != nil && httpErr == nil {
			httpErr = err
		}
	}
	if pollCh != nil {
		<-pollCh
	}
	<-fwdCh

	if httpErr != nil {
		return httpErr
	}
	a.logger.Info("shutdown_complete")
	return nil
}

// Close releases the forwarder sinks, the sensor and the log file.
func (a *Application) Close() error {
	var errs []error
	if a.forwarder != nil {
		if err := a.forwarder.Close(); err != nil {
			errs = append(errs, err)
		}
		a.forwarder = nil
	}
	if a.port != nil {
		if err := a.port.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor: %w", err))
		}
		a.port = nil
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, err)
		}
		a.logCloser = nil
	}
	return errors.Join(errs...)
}
