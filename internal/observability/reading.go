// v1
// internal/observability/reading.go
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/swapsCAPS/bme680-exporter/internal/store"
)

// readingCollector turns one store snapshot per scrape into const gauges,
// so a single exposition never mixes two readings.
type readingCollector struct {
	src        Snapshotter
	staleAfter time.Duration
	now        func() time.Time

	temp        *prometheus.Desc
	pressure    *prometheus.Desc
	humidity    *prometheus.Desc
	gas         *prometheus.Desc
	lastSuccess *prometheus.Desc
}

func newReadingCollector(src Snapshotter, staleAfter time.Duration) *readingCollector {
	return &readingCollector{
		src:         src,
		staleAfter:  staleAfter,
		now:         time.Now,
		temp:        prometheus.NewDesc("bme680_temp", "Temperature in degrees Celsius.", nil, nil),
		pressure:    prometheus.NewDesc("bme680_pressure", "Barometric pressure in hectopascal.", nil, nil),
		humidity:    prometheus.NewDesc("bme680_humidity", "Relative humidity in percent.", nil, nil),
		gas:         prometheus.NewDesc("bme680_gas", "Gas resistance in ohm.", nil, nil),
		lastSuccess: prometheus.NewDesc("bme680_last_success_timestamp_seconds", "Unix time of the stored reading.", nil, nil),
	}
}

func (c *readingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.temp
	ch <- c.pressure
	ch <- c.humidity
	ch <- c.gas
	ch <- c.lastSuccess
}

func (c *readingCollector) Collect(ch chan<- prometheus.Metric) {
	r, status := c.src.Snapshot(c.now(), c.staleAfter)
	if status == store.Empty {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.lastSuccess, prometheus.GaugeValue, float64(r.ObservedAt.UnixNano())/1e9)
	if status == store.Stale {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.temp, prometheus.GaugeValue, r.TemperatureCelsius)
	ch <- prometheus.MustNewConstMetric(c.pressure, prometheus.GaugeValue, r.PressureHPa)
	ch <- prometheus.MustNewConstMetric(c.humidity, prometheus.GaugeValue, r.HumidityPercent)
	ch <- prometheus.MustNewConstMetric(c.gas, prometheus.GaugeValue, r.GasResistanceOhm)
}
