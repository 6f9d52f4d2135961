package opt300x

import (
	"fmt"
	"time"
)

const (
	regResult         = 0x00
	regConfiguration  = 0x01
	regLowLimit       = 0x02
	regHighLimit      = 0x03
	regManufacturerID = 0x7E
	regDeviceID       = 0x7F
)

const (
	manufacturerID = 0x5449
	deviceID       = 0x3001
)

// field is a bit-field of the configuration register: mask is right aligned.
type field struct {
	shift uint
	mask  uint16
}

var (
	fieldRange          = field{shift: 12, mask: 0xF}
	fieldConversionTime = field{shift: 11, mask: 0x1}
	fieldMode           = field{shift: 9, mask: 0x3}
	fieldOverflow       = field{shift: 8, mask: 0x1}
	fieldReady          = field{shift: 7, mask: 0x1}
	fieldFlagHigh       = field{shift: 6, mask: 0x1}
	fieldFlagLow        = field{shift: 5, mask: 0x1}
	fieldLatch          = field{shift: 4, mask: 0x1}
	fieldPolarity       = field{shift: 3, mask: 0x1}
	fieldMaskExponent   = field{shift: 2, mask: 0x1}
	fieldFaultCount     = field{shift: 0, mask: 0x3}
)

func (f field) get(word uint16) uint16 {
	return (word >> f.shift) & f.mask
}

func (f field) set(word uint16, value uint16) uint16 {
	return word&^(f.mask<<f.shift) | (value&f.mask)<<f.shift
}

// Configuration is a snapshot of the configuration register.
type Configuration uint16

func (c Configuration) RangeCode() byte {
	return byte(fieldRange.get(uint16(c)))
}

func (c Configuration) ConversionTime() ConversionTime {
	return ConversionTime(fieldConversionTime.get(uint16(c)))
}

func (c Configuration) Mode() Mode {
	return Mode(fieldMode.get(uint16(c)))
}

func (c Configuration) Overflow() bool {
	return fieldOverflow.get(uint16(c)) == 1
}

func (c Configuration) Ready() bool {
	return fieldReady.get(uint16(c)) == 1
}

func (c Configuration) FlagHigh() bool {
	return fieldFlagHigh.get(uint16(c)) == 1
}

func (c Configuration) FlagLow() bool {
	return fieldFlagLow.get(uint16(c)) == 1
}

func (c Configuration) Latch() bool {
	return fieldLatch.get(uint16(c)) == 1
}

func (c Configuration) Polarity() Polarity {
	return Polarity(fieldPolarity.get(uint16(c)))
}

func (c Configuration) MaskExponent() bool {
	return fieldMaskExponent.get(uint16(c)) == 1
}

func (c Configuration) FaultCount() FaultCount {
	return FaultCount(fieldFaultCount.get(uint16(c)))
}

// ConfigurationFields is a printable view of a configuration word.
type ConfigurationFields struct {
	Raw            string `yaml:"raw"`
	Range          byte   `yaml:"range"`
	ConversionTime string `yaml:"conversion_time"`
	Mode           string `yaml:"mode"`
	Overflow       bool   `yaml:"overflow"`
	Ready          bool   `yaml:"ready"`
	FlagHigh       bool   `yaml:"flag_high"`
	FlagLow        bool   `yaml:"flag_low"`
	Latch          bool   `yaml:"latch"`
	Polarity       string `yaml:"polarity"`
	MaskExponent   bool   `yaml:"mask_exponent"`
	FaultCount     int    `yaml:"fault_count"`
}

func (c Configuration) Fields() ConfigurationFields {
	return ConfigurationFields{
		Raw:            fmt.Sprintf("%#04x", uint16(c)),
		Range:          c.RangeCode(),
		ConversionTime: c.ConversionTime().String(),
		Mode:           c.Mode().String(),
		Overflow:       c.Overflow(),
		Ready:          c.Ready(),
		FlagHigh:       c.FlagHigh(),
		FlagLow:        c.FlagLow(),
		Latch:          c.Latch(),
		Polarity:       c.Polarity().String(),
		MaskExponent:   c.MaskExponent(),
		FaultCount:     c.FaultCount().Count(),
	}
}

// Mode is the conversion mode field. Both 2 and 3 mean continuous conversions.
type Mode byte

const (
	ModeShutdown   Mode = 0x00
	ModeSingle     Mode = 0x01
	ModeContinuous Mode = 0x02
)

func (m Mode) String() string {
	switch m {
	case ModeShutdown:
		return "shutdown"
	case ModeSingle:
		return "single"
	default:
		return "continuous"
	}
}

type ConversionTime byte

const (
	ConversionTime100ms ConversionTime = 0x00
	ConversionTime800ms ConversionTime = 0x01
)

func (t ConversionTime) Duration() time.Duration {
	if t == ConversionTime800ms {
		return 800 * time.Millisecond
	}
	return 100 * time.Millisecond
}

func (t ConversionTime) String() string {
	return t.Duration().String()
}

type Polarity byte

const (
	PolarityLow  Polarity = 0x00
	PolarityHigh Polarity = 0x01
)

func (p Polarity) String() string {
	if p == PolarityHigh {
		return "high"
	}
	return "low"
}

// FaultCount is the number of consecutive faults needed to raise an interrupt.
type FaultCount byte

const (
	FaultCountOne   FaultCount = 0x00
	FaultCountTwo   FaultCount = 0x01
	FaultCountFour  FaultCount = 0x02
	FaultCountEight FaultCount = 0x03
)

func (f FaultCount) Count() int {
	return 1 << (f & 0x3)
}

// Interrupt tags the condition passed to the interrupt callback.
type Interrupt byte

const (
	InterruptHighLimit Interrupt = 0x00
	InterruptLowLimit  Interrupt = 0x01
)

func (i Interrupt) String() string {
	switch i {
	case InterruptHighLimit:
		return "high limit"
	case InterruptLowLimit:
		return "low limit"
	default:
		return fmt.Sprintf("Interrupt(%d)", byte(i))
	}
}

// rangeAuto selects automatic full-scale in every range table.
const rangeAuto = 0x0C

// Range is the full-scale setting of OPT3001, OPT3004, OPT3006 and OPT3007.
type Range byte

const (
	Range40p95Lux Range = iota
	Range81p90Lux
	Range163p80Lux
	Range327p60Lux
	Range655p20Lux
	Range1310p40Lux
	Range2620p80Lux
	Range5241p60Lux
	Range10483p20Lux
	Range20966p40Lux
	Range41932p80Lux
	Range83865p60Lux
	RangeAuto
)

// FullScale returns the upper bound of the range in lux, 0 for auto range.
func (r Range) FullScale() float64 {
	return fullScale(byte(r), 40.95)
}

func (r Range) String() string {
	return rangeString(byte(r), r.FullScale(), UnitLux)
}

// OPT3002Range is the full-scale setting of OPT3002.
type OPT3002Range byte

const (
	OPT3002Range4914nWcm2 OPT3002Range = iota
	OPT3002Range9828nWcm2
	OPT3002Range19656nWcm2
	OPT3002Range39312nWcm2
	OPT3002Range78624nWcm2
	OPT3002Range157248nWcm2
	OPT3002Range314496nWcm2
	OPT3002Range628992nWcm2
	OPT3002Range1257984nWcm2
	OPT3002Range2515968nWcm2
	OPT3002Range5031936nWcm2
	OPT3002Range10063872nWcm2
	OPT3002RangeAuto
)

// FullScale returns the upper bound of the range in nW/cm2, 0 for auto range.
func (r OPT3002Range) FullScale() float64 {
	return fullScale(byte(r), 4914)
}

func (r OPT3002Range) String() string {
	return rangeString(byte(r), r.FullScale(), UnitNanowattPerCm2)
}

// OPT3005Range is the full-scale setting of OPT3005.
type OPT3005Range byte

const (
	OPT3005Range81p90Lux OPT3005Range = iota
	OPT3005Range163p80Lux
	OPT3005Range327p60Lux
	OPT3005Range655p20Lux
	OPT3005Range1310p40Lux
	OPT3005Range2620p80Lux
	OPT3005Range5241p60Lux
	OPT3005Range10483p20Lux
	OPT3005Range20966p40Lux
	OPT3005Range41932p80Lux
	OPT3005Range83865p60Lux
	OPT3005Range167731p20Lux
	OPT3005RangeAuto
)

// FullScale returns the upper bound of the range in lux, 0 for auto range.
func (r OPT3005Range) FullScale() float64 {
	return fullScale(byte(r), 81.90)
}

func (r OPT3005Range) String() string {
	return rangeString(byte(r), r.FullScale(), UnitLux)
}

func fullScale(code byte, base float64) float64 {
	if code >= rangeAuto {
		return 0
	}
	return base * float64(uint32(1)<<code)
}

func rangeString(code byte, scale float64, unit Unit) string {
	if code == rangeAuto {
		return "auto"
	}
	if code > rangeAuto {
		return fmt.Sprintf("reserved(%#x)", code)
	}
	return fmt.Sprintf("%.2f %s", scale, unit)
}
