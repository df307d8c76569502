// v0
// internal/bme680/bme680.go

// Package bme680 drives a Bosch BME680 over I²C and implements
// sensor.Port. Measurements are taken in forced mode: each Trigger starts a
// single cycle, after which the chip returns to sleep.
package bme680

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
)

// ErrChipID is returned when the device at the address is not a BME680.
var ErrChipID = errors.New("bme680: unexpected chip id")

// txer is the subset of i2c.Dev the driver needs.
type txer interface {
	Tx(w, r []byte) error
}

// Dev is a BME680 bound to one bus address.
type Dev struct {
	c     txer
	bus   i2c.BusCloser
	calib calibration

	settings    sensor.Settings
	measureTime time.Duration
	triggeredAt time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Open initialises the host drivers, opens the I²C bus named by device
// (a /dev/i2c-N path or a periph bus name) and binds the sensor at addr.
func Open(device string, addr uint16) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName(device))
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %s: %w", device, err)
	}
	d, err := newDev(&i2c.Dev{Bus: bus, Addr: addr})
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	d.bus = bus
	return d, nil
}

func newDev(c txer) (*Dev, error) {
	d := &Dev{c: c, now: time.Now, sleep: sleepCtx}
	id, err := d.readReg(regChipID)
	if err != nil {
		return nil, fmt.Errorf("read chip id: %w", err)
	}
	if id != chipID {
		return nil, fmt.Errorf("%w: got %#04x want %#04x", ErrChipID, id, chipID)
	}
	if err := d.writeReg(regReset, softResetCmd); err != nil {
		return nil, fmt.Errorf("soft reset: %w", err)
	}
	if err := d.sleep(context.Background(), 10*time.Millisecond); err != nil {
		return nil, err
	}
	if err := d.loadCalibration(); err != nil {
		return nil, err
	}
	return d, nil
}

// busName maps "/dev/i2c-1" to periph's bus alias "1"; other names pass
// through unchanged.
func busName(device string) string {
	if n, ok := strings.CutPrefix(device, "/dev/i2c-"); ok && n != "" {
		return n
	}
	return device
}

func (d *Dev) loadCalibration() error {
	buf := make([]byte, coeff1Len+coeff2Len)
	if err := d.c.Tx([]byte{regCoeff1}, buf[:coeff1Len]); err != nil {
		return fmt.Errorf("read calibration block 1: %w", err)
	}
	if err := d.c.Tx([]byte{regCoeff2}, buf[coeff1Len:]); err != nil {
		return fmt.Errorf("read calibration block 2: %w", err)
	}
	var extra [3]byte
	for i, reg := range []byte{regResHeatRng, regResHeatVal, regRangeSwErr} {
		v, err := d.readReg(reg)
		if err != nil {
			return fmt.Errorf("read calibration register %#04x: %w", reg, err)
		}
		extra[i] = v
	}
	c, err := parseCalibration(buf, extra[0], extra[1], extra[2])
	if err != nil {
		return err
	}
	d.calib = c
	return nil
}

// Configure programs oversampling, filter and the heater profile. The chip
// is left in sleep mode.
func (d *Dev) Configure(s sensor.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	// ctrl_hum only takes effect after the following ctrl_meas write.
	writes := []regWrite{
		{regCtrlMeas, ctrlMeas(s, modeSleep)},
		{regCtrlHum, oversamplingCode(s.HumidityOversampling)},
		{regConfig, filterCode(s.FilterSize) << 2},
		{regCtrlMeas, ctrlMeas(s, modeSleep)},
	}
	if s.RunGas {
		writes = append(writes,
			regWrite{regResHeat0, d.calib.heaterResistance(s.HeaterTempC, s.AmbientTempC)},
			regWrite{regGasWait0, gasWait(s.HeaterDuration)},
			regWrite{regCtrlGas0, 0},
			regWrite{regCtrlGas1, runGasBit},
		)
	} else {
		writes = append(writes,
			regWrite{regCtrlGas0, heatOffBit},
			regWrite{regCtrlGas1, 0},
		)
	}
	for _, w := range writes {
		if err := d.writeReg(w.reg, w.val); err != nil {
			return fmt.Errorf("write register %#04x: %w", w.reg, err)
		}
	}
	d.settings = s
	d.measureTime = measurementDuration(s)
	return nil
}

// Trigger enters forced mode, starting one measurement cycle.
func (d *Dev) Trigger(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.writeReg(regCtrlMeas, ctrlMeas(d.settings, modeForced)); err != nil {
		return fmt.Errorf("set forced mode: %w", err)
	}
	d.triggeredAt = d.now()
	return nil
}

// Read waits out the expected cycle duration, then polls the status
// register until new data is flagged.
func (d *Dev) Read(ctx context.Context) (sensor.Reading, error) {
	if wait := d.measureTime - d.now().Sub(d.triggeredAt); wait > 0 {
		if err := d.sleep(ctx, wait); err != nil {
			return sensor.Reading{}, err
		}
	}
	buf := make([]byte, fieldLen)
	for attempt := 0; attempt < 10; attempt++ {
		if err := d.c.Tx([]byte{regField0}, buf); err != nil {
			return sensor.Reading{}, fmt.Errorf("read data field: %w", err)
		}
		if buf[0]&statusNewData != 0 {
			return d.decode(buf), nil
		}
		if err := d.sleep(ctx, 10*time.Millisecond); err != nil {
			return sensor.Reading{}, err
		}
	}
	return sensor.Reading{}, sensor.ErrNotReady
}

func (d *Dev) Close() error {
	if d.bus == nil {
		return nil
	}
	return d.bus.Close()
}

type regWrite struct {
	reg, val byte
}

type rawField struct {
	pressure    uint32
	temperature uint32
	humidity    uint16
	gas         uint16
	gasRange    uint8
	gasValid    bool
	heatStable  bool
}

func parseField(b []byte) rawField {
	return rawField{
		pressure:    uint32(b[2])<<12 | uint32(b[3])<<4 | uint32(b[4])>>4,
		temperature: uint32(b[5])<<12 | uint32(b[6])<<4 | uint32(b[7])>>4,
		humidity:    uint16(b[8])<<8 | uint16(b[9]),
		gas:         uint16(b[13])<<2 | uint16(b[14])>>6,
		gasRange:    b[14] & 0x0F,
		gasValid:    b[14]&gasValidMask != 0,
		heatStable:  b[14]&heatStableMask != 0,
	}
}

func (d *Dev) decode(b []byte) sensor.Reading {
	f := parseField(b)
	t, tFine := d.calib.temperature(f.temperature)
	r := sensor.Reading{
		TemperatureCelsius: t,
		PressureHPa:        d.calib.pressure(f.pressure, tFine) / 100,
		HumidityPercent:    d.calib.humidity(f.humidity, tFine),
		ObservedAt:         d.now(),
		GasValid:           f.gasValid,
		HeaterStable:       f.heatStable,
	}
	if d.settings.RunGas {
		r.GasResistanceOhm = d.calib.gasResistance(f.gas, f.gasRange)
	}
	return r
}

func (d *Dev) readReg(reg byte) (byte, error) {
	var b [1]byte
	if err := d.c.Tx([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Dev) writeReg(reg, val byte) error {
	return d.c.Tx([]byte{reg, val}, nil)
}

func oversamplingCode(o sensor.Oversampling) byte {
	switch o {
	case 1:
		return 1
	case 2:
		return 2
	case 4:
		return 3
	case 8:
		return 4
	case 16:
		return 5
	}
	return 0
}

func filterCode(size int) byte {
	switch size {
	case 1:
		return 1
	case 3:
		return 2
	case 7:
		return 3
	case 15:
		return 4
	case 31:
		return 5
	case 63:
		return 6
	case 127:
		return 7
	}
	return 0
}

func ctrlMeas(s sensor.Settings, mode byte) byte {
	return oversamplingCode(s.TemperatureOversampling)<<5 | oversamplingCode(s.PressureOversampling)<<2 | mode
}

// measurementDuration estimates one forced-mode cycle: conversion time for
// the three oversampled channels, switching overhead, and the heater phase.
func measurementDuration(s sensor.Settings) time.Duration {
	cycles := int(s.TemperatureOversampling) + int(s.PressureOversampling) + int(s.HumidityOversampling)
	us := cycles*1963 + 477*4 + 477*5 + 500
	d := time.Duration(us/1000+1) * time.Millisecond
	if s.RunGas {
		d += s.HeaterDuration
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
