// v0
// internal/bme680/bme680_test.go
package bme680

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
)

// fakeBus emulates the register file: a one-byte write selects a register
// for a burst read, a two-byte write stores a value.
type fakeBus struct {
	regs   [256]byte
	writes [][2]byte
	err    error
}

func (f *fakeBus) Tx(w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	switch {
	case len(w) == 2 && len(r) == 0:
		f.regs[w[0]] = w[1]
		f.writes = append(f.writes, [2]byte{w[0], w[1]})
	case len(w) == 1:
		copy(r, f.regs[int(w[0]):])
	default:
		return errors.New("unsupported transaction")
	}
	return nil
}

func newFakeBus() *fakeBus {
	f := &fakeBus{}
	f.regs[regChipID] = chipID
	// t2 = 5120, every other coefficient zero: T = adc/16384.
	f.regs[regCoeff1+1] = 0x00
	f.regs[regCoeff1+2] = 0x14
	return f
}

// newTestDev returns a Dev on f whose sleeps return immediately. The write
// log is reset so tests only see their own writes.
func newTestDev(t *testing.T, f *fakeBus) *Dev {
	t.Helper()
	d, err := newDev(f)
	if err != nil {
		t.Fatalf("newDev: %v", err)
	}
	d.sleep = func(context.Context, time.Duration) error { return nil }
	f.writes = nil
	return d
}

func TestNewDevResetsChip(t *testing.T) {
	f := newFakeBus()
	if _, err := newDev(f); err != nil {
		t.Fatalf("newDev: %v", err)
	}
	if len(f.writes) != 1 || f.writes[0] != [2]byte{regReset, softResetCmd} {
		t.Fatalf("expected a single soft reset write, got %v", f.writes)
	}
}

func TestNewDevRejectsWrongChip(t *testing.T) {
	f := newFakeBus()
	f.regs[regChipID] = 0x60
	_, err := newDev(f)
	if !errors.Is(err, ErrChipID) {
		t.Fatalf("expected ErrChipID, got %v", err)
	}
}

func TestNewDevPropagatesBusError(t *testing.T) {
	f := newFakeBus()
	f.err = errors.New("bus gone")
	if _, err := newDev(f); err == nil {
		t.Fatalf("expected error from failing bus")
	}
}

func TestConfigureWritesDefaultProfile(t *testing.T) {
	f := newFakeBus()
	d := newTestDev(t, f)
	if err := d.Configure(sensor.DefaultSettings()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if got := f.regs[regCtrlHum]; got != 0x02 {
		t.Fatalf("ctrl_hum: got %#04x want 0x02", got)
	}
	// osrs_t 8x (4) << 5 | osrs_p 4x (3) << 2 | sleep
	if got := f.regs[regCtrlMeas]; got != 0x8C {
		t.Fatalf("ctrl_meas: got %#04x want 0x8c", got)
	}
	if got := f.regs[regConfig]; got != 0x08 {
		t.Fatalf("config: got %#04x want 0x08", got)
	}
	if got := f.regs[regGasWait0]; got != 0xD7 {
		t.Fatalf("gas_wait_0: got %#04x want 0xd7", got)
	}
	if got := f.regs[regCtrlGas1]; got != runGasBit {
		t.Fatalf("ctrl_gas_1: got %#04x want %#04x", got, runGasBit)
	}
	if got := f.writes[len(f.writes)-1]; got != [2]byte{regCtrlGas1, runGasBit} {
		t.Fatalf("last write: got %v", got)
	}
}

func TestConfigureRejectsInvalidSettings(t *testing.T) {
	f := newFakeBus()
	d := newTestDev(t, f)
	s := sensor.DefaultSettings()
	s.FilterSize = 4
	if err := d.Configure(s); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(f.writes) != 0 {
		t.Fatalf("invalid settings must not touch the chip, got %d writes", len(f.writes))
	}
}

func TestTriggerSetsForcedMode(t *testing.T) {
	f := newFakeBus()
	d := newTestDev(t, f)
	if err := d.Configure(sensor.DefaultSettings()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := d.Trigger(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if got := f.regs[regCtrlMeas]; got != 0x8D {
		t.Fatalf("ctrl_meas after trigger: got %#04x want 0x8d", got)
	}
}

func TestReadDecodesField(t *testing.T) {
	f := newFakeBus()
	d := newTestDev(t, f)
	if err := d.Configure(sensor.DefaultSettings()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	// temperature adc 409600 = 0x64000 -> 25°C with t2 = 5120.
	f.regs[regField0] = statusNewData
	f.regs[regField0+5] = 0x64
	f.regs[regField0+6] = 0x00
	f.regs[regField0+7] = 0x00
	f.regs[regField0+14] = gasValidMask | heatStableMask

	if err := d.Trigger(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	r, err := d.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if math.Abs(r.TemperatureCelsius-25) > 1e-9 {
		t.Fatalf("temperature: got %v want 25", r.TemperatureCelsius)
	}
	if r.PressureHPa != 0 {
		t.Fatalf("pressure with p1 = 0 must be 0, got %v", r.PressureHPa)
	}
	if r.HumidityPercent != 0 {
		t.Fatalf("humidity with zero coefficients must be 0, got %v", r.HumidityPercent)
	}
	if !r.GasValid || !r.HeaterStable {
		t.Fatalf("status bits lost: %+v", r)
	}
	if !r.ObservedAt.Equal(fixed) {
		t.Fatalf("timestamp: got %v", r.ObservedAt)
	}
}

func TestReadNotReady(t *testing.T) {
	f := newFakeBus()
	d := newTestDev(t, f)
	if err := d.Configure(sensor.DefaultSettings()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := d.Trigger(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if _, err := d.Read(context.Background()); !errors.Is(err, sensor.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestParseField(t *testing.T) {
	b := make([]byte, fieldLen)
	b[2], b[3], b[4] = 0x12, 0x34, 0x50
	b[8], b[9] = 0xAB, 0xCD
	b[13], b[14] = 0xFF, 0xC0|gasValidMask|0x05
	f := parseField(b)
	if f.pressure != 0x12345 {
		t.Fatalf("pressure adc: got %#x", f.pressure)
	}
	if f.humidity != 0xABCD {
		t.Fatalf("humidity adc: got %#x", f.humidity)
	}
	if f.gas != 0x3FF {
		t.Fatalf("gas adc: got %#x", f.gas)
	}
	if f.gasRange != 5 || !f.gasValid || f.heatStable {
		t.Fatalf("gas flags: %+v", f)
	}
}

func TestGasWaitEncoding(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want uint8
	}{
		{in: 63 * time.Millisecond, want: 63},
		{in: 100 * time.Millisecond, want: 0x59},
		{in: 1500 * time.Millisecond, want: 0xD7},
		{in: 4032 * time.Millisecond, want: 0xFF},
	}
	for _, tc := range tests {
		if got := gasWait(tc.in); got != tc.want {
			t.Fatalf("gasWait(%s)=%#04x want %#04x", tc.in, got, tc.want)
		}
	}
}

func TestCodes(t *testing.T) {
	if got := oversamplingCode(16); got != 5 {
		t.Fatalf("oversampling 16x code %d", got)
	}
	if got := oversamplingCode(0); got != 0 {
		t.Fatalf("oversampling skipped code %d", got)
	}
	if got := filterCode(127); got != 7 {
		t.Fatalf("filter 127 code %d", got)
	}
}

func TestParseCalibrationSplitsHumidityNibbles(t *testing.T) {
	c := make([]byte, coeff1Len+coeff2Len)
	c[25], c[26], c[27] = 0x3E, 0xA7, 0x2B
	cal, err := parseCalibration(c, 0x10, 0xFE, 0xF0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cal.h1 != 0x2B7 {
		t.Fatalf("h1: got %#x want 0x2b7", cal.h1)
	}
	if cal.h2 != 0x3EA {
		t.Fatalf("h2: got %#x want 0x3ea", cal.h2)
	}
	if cal.resHeatRange != 1 || cal.resHeatVal != -2 || cal.rangeSwErr != -1 {
		t.Fatalf("heater fields: %+v", cal)
	}
	if _, err := parseCalibration(c[:10], 0, 0, 0); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestGasResistanceRange(t *testing.T) {
	var cal calibration
	// adc 512 makes the ratio term 1: R = 1 / (0.000000125 * 2^range).
	if got := cal.gasResistance(512, 0); math.Abs(got-8e6) > 1e-3 {
		t.Fatalf("range 0: got %v", got)
	}
	if got := cal.gasResistance(512, 3); math.Abs(got-1e6) > 1e-3 {
		t.Fatalf("range 3: got %v", got)
	}
}

func TestBusName(t *testing.T) {
	if got := busName("/dev/i2c-1"); got != "1" {
		t.Fatalf("got %q", got)
	}
	if got := busName("I2C2"); got != "I2C2" {
		t.Fatalf("got %q", got)
	}
}
