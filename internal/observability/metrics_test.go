// v1
// internal/observability/metrics_test.go
package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
	"github.com/swapsCAPS/bme680-exporter/internal/store"
)

var observedAt = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

func sample() sensor.Reading {
	return sensor.Reading{TemperatureCelsius: 22.5, PressureHPa: 1013.2, HumidityPercent: 45, GasResistanceOhm: 12000, ObservedAt: observedAt}
}

const readingGauges = `
# HELP bme680_gas Gas resistance in ohm.
# TYPE bme680_gas gauge
bme680_gas 12000
# HELP bme680_humidity Relative humidity in percent.
# TYPE bme680_humidity gauge
bme680_humidity 45
# HELP bme680_pressure Barometric pressure in hectopascal.
# TYPE bme680_pressure gauge
bme680_pressure 1013.2
# HELP bme680_temp Temperature in degrees Celsius.
# TYPE bme680_temp gauge
bme680_temp 22.5
`

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestReadingGaugesFromStore(t *testing.T) {
	s := store.New()
	s.Set(sample())
	m := New(s, 0)

	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(readingGauges),
		"bme680_temp", "bme680_pressure", "bme680_humidity", "bme680_gas"); err != nil {
		t.Fatalf("unexpected gauges: %v", err)
	}
}

func TestEmptyStoreOmitsGauges(t *testing.T) {
	m := New(store.New(), 0)
	body := scrape(t, m.Handler())

	for _, name := range []string{"bme680_temp ", "bme680_pressure ", "bme680_humidity ", "bme680_gas ", "bme680_last_success_timestamp_seconds "} {
		if strings.Contains(body, name) {
			t.Fatalf("empty store must not expose %q:\n%s", name, body)
		}
	}
	if !strings.Contains(body, `bme680_poll_failure_total{stage="read"} 0`) {
		t.Fatalf("counters must still be exposed:\n%s", body)
	}
}

func TestStaleReadingOmitsGauges(t *testing.T) {
	s := store.New()
	s.Set(sample())
	rc := newReadingCollector(s, time.Minute)
	rc.now = func() time.Time { return observedAt.Add(2 * time.Minute) }
	if n := testutil.CollectAndCount(rc); n != 1 {
		t.Fatalf("stale reading should only expose the timestamp, got %d metrics", n)
	}
	rc.now = func() time.Time { return observedAt.Add(30 * time.Second) }
	if n := testutil.CollectAndCount(rc); n != 5 {
		t.Fatalf("fresh reading should expose 5 metrics, got %d", n)
	}
}

func TestRenderingIsIdempotent(t *testing.T) {
	s := store.New()
	s.Set(sample())
	m := New(s, 0)
	m.PollSucceeded()

	first := scrape(t, m.Handler())
	second := scrape(t, m.Handler())
	if first != second {
		t.Fatalf("two scrapes differ:\n%s\n---\n%s", first, second)
	}
}

func TestPollCounters(t *testing.T) {
	m := New(store.New(), 0)
	m.PollFailed(StageTrigger)
	m.PollFailed(StageRead)
	m.PollFailed(StageRead)

	if got := testutil.ToFloat64(m.consecutive); got != 3 {
		t.Fatalf("consecutive failures: got %v", got)
	}
	if got := testutil.ToFloat64(m.pollFailure.WithLabelValues(StageRead)); got != 2 {
		t.Fatalf("read failures: got %v", got)
	}

	m.PollSucceeded()
	if got := testutil.ToFloat64(m.consecutive); got != 0 {
		t.Fatalf("success must reset consecutive failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.pollSuccess); got != 1 {
		t.Fatalf("successes: got %v", got)
	}
}

func TestSinkMetrics(t *testing.T) {
	m := New(store.New(), 0)
	m.SinkPublished("kafka")
	m.SinkError("mqtt")
	m.SetBreakerState("mqtt", 2)
	m.ForwardDropped()

	if got := testutil.ToFloat64(m.sinkPublished.WithLabelValues("kafka")); got != 1 {
		t.Fatalf("published: got %v", got)
	}
	if got := testutil.ToFloat64(m.sinkErrors.WithLabelValues("mqtt")); got != 1 {
		t.Fatalf("errors: got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("mqtt")); got != 2 {
		t.Fatalf("breaker state: got %v", got)
	}
	if got := testutil.ToFloat64(m.forwardDropped); got != 1 {
		t.Fatalf("dropped: got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.PollSucceeded()
	m.PollFailed(StageRead)
	m.SinkError("kafka")
	m.SinkPublished("kafka")
	m.SetBreakerState("kafka", 0)
	m.ForwardDropped()
}
