// v0
// internal/bme680/compensate.go
package bme680

import (
	"fmt"
	"time"
)

// calibration holds the factory trimming parameters read once from NVM.
type calibration struct {
	t1 uint16
	t2 int16
	t3 int8

	p1  uint16
	p2  int16
	p3  int8
	p4  int16
	p5  int16
	p6  int8
	p7  int8
	p8  int16
	p9  int16
	p10 uint8

	h1 uint16
	h2 uint16
	h3 int8
	h4 int8
	h5 int8
	h6 uint8
	h7 int8

	gh1 int8
	gh2 int16
	gh3 int8

	resHeatRange uint8
	resHeatVal   int8
	rangeSwErr   int8
}

func le16(lsb, msb byte) uint16 { return uint16(msb)<<8 | uint16(lsb) }

// parseCalibration decodes the 41 coefficient bytes (0x89..0xA1 followed by
// 0xE1..0xF0) and the three heater/range registers.
func parseCalibration(c []byte, heatRange, heatVal, swErr byte) (calibration, error) {
	if len(c) != coeff1Len+coeff2Len {
		return calibration{}, fmt.Errorf("calibration block has %d bytes, want %d", len(c), coeff1Len+coeff2Len)
	}
	return calibration{
		t1: le16(c[33], c[34]),
		t2: int16(le16(c[1], c[2])),
		t3: int8(c[3]),

		p1:  le16(c[5], c[6]),
		p2:  int16(le16(c[7], c[8])),
		p3:  int8(c[9]),
		p4:  int16(le16(c[11], c[12])),
		p5:  int16(le16(c[13], c[14])),
		p6:  int8(c[16]),
		p7:  int8(c[15]),
		p8:  int16(le16(c[19], c[20])),
		p9:  int16(le16(c[21], c[22])),
		p10: c[23],

		h1: uint16(c[27])<<4 | uint16(c[26]&0x0F),
		h2: uint16(c[25])<<4 | uint16(c[26]>>4),
		h3: int8(c[28]),
		h4: int8(c[29]),
		h5: int8(c[30]),
		h6: c[31],
		h7: int8(c[32]),

		gh1: int8(c[37]),
		gh2: int16(le16(c[35], c[36])),
		gh3: int8(c[38]),

		resHeatRange: (heatRange & 0x30) >> 4,
		resHeatVal:   int8(heatVal),
		rangeSwErr:   int8(swErr&0xF0) / 16,
	}, nil
}

// temperature returns °C and the fine temperature used by the other
// compensations.
func (c *calibration) temperature(adc uint32) (celsius, tFine float64) {
	a := float64(adc)
	var1 := (a/16384.0 - float64(c.t1)/1024.0) * float64(c.t2)
	d := a/131072.0 - float64(c.t1)/8192.0
	var2 := d * d * float64(c.t3) * 16.0
	tFine = var1 + var2
	return tFine / 5120.0, tFine
}

// pressure returns Pa.
func (c *calibration) pressure(adc uint32, tFine float64) float64 {
	var1 := tFine/2.0 - 64000.0
	var2 := var1 * var1 * (float64(c.p6) / 131072.0)
	var2 += var1 * float64(c.p5) * 2.0
	var2 = var2/4.0 + float64(c.p4)*65536.0
	var1 = (float64(c.p3)*var1*var1/16384.0 + float64(c.p2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.p1)
	if var1 == 0 {
		return 0
	}
	p := 1048576.0 - float64(adc)
	p = (p - var2/4096.0) * 6250.0 / var1
	var1 = float64(c.p9) * p * p / 2147483648.0
	var2 = p * (float64(c.p8) / 32768.0)
	s := p / 256.0
	var3 := s * s * s * (float64(c.p10) / 131072.0)
	return p + (var1+var2+var3+float64(c.p7)*128.0)/16.0
}

// humidity returns %RH clamped to [0, 100].
func (c *calibration) humidity(adc uint16, tFine float64) float64 {
	tc := tFine / 5120.0
	var1 := float64(adc) - (float64(c.h1)*16.0 + float64(c.h3)/2.0*tc)
	var2 := var1 * (float64(c.h2) / 262144.0 * (1.0 + float64(c.h4)/16384.0*tc + float64(c.h5)/1048576.0*tc*tc))
	var3 := float64(c.h6) / 16384.0
	var4 := float64(c.h7) / 2097152.0
	h := var2 + (var3+var4*tc)*var2*var2
	switch {
	case h > 100:
		return 100
	case h < 0:
		return 0
	}
	return h
}

var (
	gasRangeK1 = [16]float64{0, 0, 0, 0, 0, -1, 0, -0.8, 0, 0, -0.2, -0.5, 0, -1, 0, 0}
	gasRangeK2 = [16]float64{0, 0, 0, 0, 0.1, 0.7, 0, -0.8, -0.1, 0, 0, 0, 0, 0, 0, 0}
)

// gasResistance returns Ω for the raw ADC value and its range.
func (c *calibration) gasResistance(adc uint16, gasRange uint8) float64 {
	r := gasRange & 0x0F
	var1 := 1340.0 + 5.0*float64(c.rangeSwErr)
	var2 := var1 * (1.0 + gasRangeK1[r]/100.0)
	var3 := 1.0 + gasRangeK2[r]/100.0
	return 1.0 / (var3 * 0.000000125 * float64(uint32(1)<<r) * ((float64(adc)-512.0)/var2 + 1.0))
}

// heaterResistance converts a target heater temperature into the res_heat
// register value.
func (c *calibration) heaterResistance(targetC, ambientC int) uint8 {
	if targetC > 400 {
		targetC = 400
	}
	var1 := float64(c.gh1)/16.0 + 49.0
	var2 := float64(c.gh2)/32768.0*0.0005 + 0.00235
	var3 := float64(c.gh3) / 1024.0
	var4 := var1 * (1.0 + var2*float64(targetC))
	var5 := var4 + var3*float64(ambientC)
	res := 3.4 * (var5*(4.0/(4.0+float64(c.resHeatRange)))*(1.0/(1.0+float64(c.resHeatVal)*0.002)) - 25)
	if res < 0 {
		return 0
	}
	if res > 255 {
		return 255
	}
	return uint8(res)
}

// gasWait encodes a heating duration as a 6-bit mantissa with a 2-bit x4
// multiplier. Durations at or above 4032ms saturate.
func gasWait(d time.Duration) uint8 {
	ms := d.Milliseconds()
	if ms >= 0xFC0 {
		return 0xFF
	}
	var factor uint8
	for ms > 0x3F {
		ms /= 4
		factor++
	}
	return uint8(ms) + factor*64
}
