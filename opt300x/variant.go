package opt300x

import (
	"fmt"
	"strings"
)

// Variant identifies a part number of the OPT300x family. All variants share
// the register layout but differ in scaling and in the range table they accept.
type Variant byte

const (
	OPT3001 Variant = 0x01
	OPT3002 Variant = 0x02
	OPT3004 Variant = 0x04
	OPT3005 Variant = 0x05
	OPT3006 Variant = 0x06
	OPT3007 Variant = 0x07
)

// Unit is the physical unit a variant reports in.
type Unit int

const (
	UnitLux Unit = iota
	UnitNanowattPerCm2
)

func (u Unit) String() string {
	switch u {
	case UnitLux:
		return "lux"
	case UnitNanowattPerCm2:
		return "nW/cm2"
	default:
		return "unknown"
	}
}

type capability uint8

const (
	capLux capability = 1 << iota
	capRadiometric
	capGenericRange
	capOPT3002Range
	capOPT3005Range
)

type variantInfo struct {
	name  string
	scale float64
	unit  Unit
	caps  capability
}

var variants = map[Variant]variantInfo{
	OPT3001: {name: "OPT3001", scale: 0.01, unit: UnitLux, caps: capLux | capGenericRange},
	OPT3002: {name: "OPT3002", scale: 1.2, unit: UnitNanowattPerCm2, caps: capRadiometric | capOPT3002Range},
	OPT3004: {name: "OPT3004", scale: 0.01, unit: UnitLux, caps: capLux | capGenericRange},
	OPT3005: {name: "OPT3005", scale: 0.02, unit: UnitLux, caps: capLux | capOPT3005Range},
	OPT3006: {name: "OPT3006", scale: 0.01, unit: UnitLux, caps: capLux | capGenericRange},
	OPT3007: {name: "OPT3007", scale: 0.01, unit: UnitLux, caps: capLux | capGenericRange},
}

// Variants lists the supported part numbers in ascending order.
func Variants() []Variant {
	return []Variant{OPT3001, OPT3002, OPT3004, OPT3005, OPT3006, OPT3007}
}

// ParseVariant accepts a part number such as "OPT3001" or "3001".
func ParseVariant(s string) (Variant, error) {
	s = strings.ToUpper(s)
	for _, v := range Variants() {
		name := variants[v].name
		if s == name || s == name[3:] {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown variant %q", s)
}

// Known reports whether v is one of the supported part numbers.
func (v Variant) Known() bool {
	_, ok := variants[v]
	return ok
}

// Scale is the value of one mantissa step at exponent 0.
func (v Variant) Scale() float64 {
	return variants[v].scale
}

func (v Variant) Unit() Unit {
	return variants[v].unit
}

func (v Variant) String() string {
	info, ok := variants[v]
	if !ok {
		return fmt.Sprintf("Variant(%#02x)", byte(v))
	}
	return info.name
}

func (v Variant) has(c capability) bool {
	return variants[v].caps&c == c
}

// AddrPin is the 8-bit bus address selected by the ADDR pin strap.
type AddrPin byte

const (
	AddrGND AddrPin = 0x88
	AddrVCC AddrPin = 0x8A
	AddrSDA AddrPin = 0x8C
	AddrSCL AddrPin = 0x8E
)

// BusAddr returns the 7-bit address used on the wire.
func (a AddrPin) BusAddr() byte {
	return byte(a) >> 1
}

func (a AddrPin) String() string {
	switch a {
	case AddrGND:
		return "GND"
	case AddrVCC:
		return "VCC"
	case AddrSDA:
		return "SDA"
	case AddrSCL:
		return "SCL"
	default:
		return fmt.Sprintf("AddrPin(%#02x)", byte(a))
	}
}

// ParseAddrPin accepts the pin the ADDR line is tied to: GND, VCC, SDA or SCL.
func ParseAddrPin(s string) (AddrPin, error) {
	s = strings.ToUpper(s)
	for _, a := range []AddrPin{AddrGND, AddrVCC, AddrSDA, AddrSCL} {
		if s == a.String() {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown address pin %q", s)
}

// ChipInfo describes the chip family and this driver.
type ChipInfo struct {
	ChipName         string  `yaml:"chip_name"`
	ManufacturerName string  `yaml:"manufacturer_name"`
	Interface        string  `yaml:"interface"`
	SupplyVoltageMin float32 `yaml:"supply_voltage_min_v"`
	SupplyVoltageMax float32 `yaml:"supply_voltage_max_v"`
	MaxCurrent       float32 `yaml:"max_current_ma"`
	TemperatureMin   float32 `yaml:"temperature_min"`
	TemperatureMax   float32 `yaml:"temperature_max"`
	DriverVersion    uint32  `yaml:"driver_version"`
}

const driverVersion = 1000

func Info() ChipInfo {
	return ChipInfo{
		ChipName:         "Texas Instruments OPT300X",
		ManufacturerName: "Texas Instruments",
		Interface:        "IIC",
		SupplyVoltageMin: 1.6,
		SupplyVoltageMax: 3.6,
		MaxCurrent:       0.01,
		TemperatureMin:   -40.0,
		TemperatureMax:   85.0,
		DriverVersion:    driverVersion,
	}
}
