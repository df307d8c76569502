// v0
// internal/bme680/registers.go
package bme680

// Register map of the BME680 (datasheet section 5.2).
const (
	regChipID     = 0xD0
	regReset      = 0xE0
	regCtrlHum    = 0x72
	regCtrlMeas   = 0x74
	regConfig     = 0x75
	regCtrlGas0   = 0x70
	regCtrlGas1   = 0x71
	regResHeat0   = 0x5A
	regGasWait0   = 0x64
	regField0     = 0x1D
	regCoeff1     = 0x89
	regCoeff2     = 0xE1
	regResHeatVal = 0x00
	regResHeatRng = 0x02
	regRangeSwErr = 0x04
)

const (
	chipID       = 0x61
	softResetCmd = 0xB6

	coeff1Len = 25
	coeff2Len = 16
	fieldLen  = 15

	modeSleep  = 0x00
	modeForced = 0x01

	statusNewData  = 0x80
	gasValidMask   = 0x20
	heatStableMask = 0x10
	runGasBit      = 0x10
	heatOffBit     = 0x08
)

// Bus addresses selectable by the SDO pin.
const (
	AddrPrimary   uint16 = 0x76
	AddrSecondary uint16 = 0x77
)
