// v1
// internal/httpserver/render.go
package httpserver

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
	"github.com/swapsCAPS/bme680-exporter/internal/store"
)

// Mode selects how the latest reading is rendered.
type Mode int

const (
	ModeText Mode = iota
	ModeMetrics
)

// ParseMode maps the configured output_mode onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return ModeText, nil
	case "metrics":
		return ModeMetrics, nil
	}
	return 0, fmt.Errorf("unknown output mode %q", s)
}

func (m Mode) String() string {
	if m == ModeMetrics {
		return "metrics"
	}
	return "text"
}

const (
	noDataText = "No data yet\n"
	staleText  = "No data (last reading is stale)\n"
)

// Snapshotter is the read side of the sample store.
type Snapshotter interface {
	Snapshot(now time.Time, maxAge time.Duration) (sensor.Reading, store.Status)
}

// RenderText formats a snapshot for the plain-text mode with two decimals
// per quantity.
func RenderText(r sensor.Reading, status store.Status) string {
	switch status {
	case store.Empty:
		return noDataText
	case store.Stale:
		return staleText
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Temperature %.2f°C\n", r.TemperatureCelsius)
	fmt.Fprintf(&b, "Pressure %.2fhPa\n", r.PressureHPa)
	fmt.Fprintf(&b, "Humidity %.2f%%\n", r.HumidityPercent)
	fmt.Fprintf(&b, "Gas Resistance %.2fΩ\n", r.GasResistanceOhm)
	return b.String()
}

// Exposer serves the latest stored reading. It only reads the store; the
// sensor is never touched on the request path.
type Exposer struct {
	mode       Mode
	src        Snapshotter
	staleAfter time.Duration
	metrics    http.Handler
	log        *slog.Logger
	now        func() time.Time
}

// NewExposer builds the catch-all handler. metrics is required in
// ModeMetrics and ignored otherwise.
func NewExposer(mode Mode, src Snapshotter, staleAfter time.Duration, metrics http.Handler, log *slog.Logger) (*Exposer, error) {
	if mode == ModeMetrics && metrics == nil {
		return nil, fmt.Errorf("metrics mode needs a metrics handler")
	}
	return &Exposer{
		mode:       mode,
		src:        src,
		staleAfter: staleAfter,
		metrics:    metrics,
		log:        log.With(slog.String("component", "exposer")),
		now:        time.Now,
	}, nil
}

func (e *Exposer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reading, status := e.src.Snapshot(e.now(), e.staleAfter)
	e.log.Debug("render",
		slog.String("mode", e.mode.String()),
		slog.String("status", status.String()),
		slog.String("remote", r.RemoteAddr),
	)
	if e.mode == ModeMetrics {
		e.metrics.ServeHTTP(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, RenderText(reading, status)); err != nil {
		e.log.Error("write_response_failed", slog.Any("err", err))
	}
}
