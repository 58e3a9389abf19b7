package message

import (
	"fmt"
)

// EnumOutOfRange is returned when a decoded enum byte does not match any
// known variant.
type EnumOutOfRange struct {
	EnumName string
	Value    uint8
}

func (e EnumOutOfRange) Error() string {
	return fmt.Sprintf("enum value out of range: %s: %d", e.EnumName, e.Value)
}

// Celsius is a temperature value represented on the wire as decidegrees
// Celsius in a 16-bit Variable.
type Celsius uint16

// CelsiusFromFloat rounds a floating-point Celsius value to the nearest
// decidegree.
func CelsiusFromFloat(f float64) Celsius {
	return Celsius(int16FromFloat(f))
}

func int16FromFloat(f float64) uint16 {
	if f < 0 {
		f = -f
	}
	return uint16(f*10 + 0.5)
}

// AsFloat returns the temperature in degrees Celsius (decidegrees / 10).
func (c Celsius) AsFloat() float64 {
	return float64(c) / 10.0
}

func (c Celsius) String() string {
	return fmt.Sprintf("%.1f °C", c.AsFloat())
}

// ToRepr implements ValueType[uint16].
func (c Celsius) ToRepr() uint16 { return uint16(c) }

func celsiusFromRepr(repr uint16) (Celsius, error) {
	return Celsius(repr), nil
}

// CelsiusLvar is a Celsius value carried in the high 16 bits of a
// 32-bit long variable, as some registers on the bus do for historical
// reasons.
type CelsiusLvar uint16

func (c CelsiusLvar) AsFloat() float64 { return float64(c) / 10.0 }
func (c CelsiusLvar) String() string   { return fmt.Sprintf("%.1f °C", c.AsFloat()) }

// ToRepr implements ValueType[uint32] by placing the decidegree value in
// the high 16 bits.
func (c CelsiusLvar) ToRepr() uint32 { return uint32(c) << 16 }

func celsiusLvarFromRepr(repr uint32) (CelsiusLvar, error) {
	return CelsiusLvar(repr >> 16), nil
}

// PowerSetting is the ENUM_IN_OPERATION_POWER register value.
type PowerSetting uint8

const (
	PowerOff PowerSetting = 0
	PowerOn  PowerSetting = 1
	PowerOn2 PowerSetting = 2
)

func (p PowerSetting) String() string {
	switch p {
	case PowerOff:
		return "Off"
	case PowerOn:
		return "On"
	case PowerOn2:
		return "On2"
	default:
		return fmt.Sprintf("PowerSetting(%d)", uint8(p))
	}
}

func (p PowerSetting) ToRepr() uint8 { return uint8(p) }

func powerSettingFromRepr(repr uint8) (PowerSetting, error) {
	switch PowerSetting(repr) {
	case PowerOff, PowerOn, PowerOn2:
		return PowerSetting(repr), nil
	default:
		return 0, EnumOutOfRange{EnumName: "PowerSetting", Value: repr}
	}
}

// OperationMode is the ENUM_IN_OPERATION_MODE register value.
type OperationMode uint8

const (
	ModeAuto     OperationMode = 0
	ModeCool     OperationMode = 1
	ModeDry      OperationMode = 2
	ModeFan      OperationMode = 3
	ModeHeat     OperationMode = 4
	ModeAutoCool OperationMode = 11
	ModeAutoDry  OperationMode = 12
	ModeAutoFan  OperationMode = 13
	ModeAutoHeat OperationMode = 14
)

func (m OperationMode) String() string {
	switch m {
	case ModeAuto:
		return "Auto"
	case ModeCool:
		return "Cool"
	case ModeDry:
		return "Dry"
	case ModeFan:
		return "Fan"
	case ModeHeat:
		return "Heat"
	case ModeAutoCool:
		return "AutoCool"
	case ModeAutoDry:
		return "AutoDry"
	case ModeAutoFan:
		return "AutoFan"
	case ModeAutoHeat:
		return "AutoHeat"
	default:
		return fmt.Sprintf("OperationMode(%d)", uint8(m))
	}
}

func (m OperationMode) ToRepr() uint8 { return uint8(m) }

func operationModeFromRepr(repr uint8) (OperationMode, error) {
	switch OperationMode(repr) {
	case ModeAuto, ModeCool, ModeDry, ModeFan, ModeHeat, ModeAutoCool, ModeAutoDry, ModeAutoFan, ModeAutoHeat:
		return OperationMode(repr), nil
	default:
		return 0, EnumOutOfRange{EnumName: "OperationMode", Value: repr}
	}
}

// Bool is a 1-byte boolean register, distinct from Go's bool so it can
// implement ValueType (a named type is required for the method set).
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (b Bool) ToRepr() uint8 {
	if b {
		return 1
	}
	return 0
}

func boolFromRepr(repr uint8) (Bool, error) {
	switch repr {
	case 0:
		return Bool(false), nil
	case 1:
		return Bool(true), nil
	default:
		return Bool(false), EnumOutOfRange{EnumName: "Bool", Value: repr}
	}
}
