package opt300x

import (
	"context"
	"fmt"
)

// LightBehaviorFunc returns the light level seen by a simulated chip, in the
// unit of the simulated variant (lux, or nW/cm2 for OPT3002).
type LightBehaviorFunc func() float64

// writable bits of the configuration register: everything but the status flags.
const configWritableMask = 0xFE1F

// defaultConfiguration is the power-up value: auto range, 800ms, shutdown, latch on.
const defaultConfiguration = 0xC810

// Simulator is an in-memory OPT300x that implements Transport. Conversions
// take as long as the configured conversion time measured in 10ms polls of
// the configuration register, comparator flags follow the limit registers.
// It can be used in tests or to run tools without hardware:
//
//	sim := NewSimulator(OPT3001, func() float64 { return 320.5 })
//	dev := New(sim, WithCallback(func(Interrupt) {}))
type Simulator struct {
	variant Variant
	address byte
	light   LightBehaviorFunc

	regs    map[byte]uint16
	pending int
	stall   bool
	over    bool
	open    bool

	opens, closes int
	reads, writes map[byte]int

	openErr, closeErr   error
	readErrs, writeErrs map[byte]error
}

type SimulatorOpt func(*Simulator)

// WithSimulatorAddrPin makes the simulator answer on another strap address.
func WithSimulatorAddrPin(a AddrPin) SimulatorOpt {
	return func(s *Simulator) {
		s.address = a.BusAddr()
	}
}

// WithStalledConversions makes single-shot conversions never complete.
func WithStalledConversions() SimulatorOpt {
	return func(s *Simulator) {
		s.stall = true
	}
}

// WithIdentity overrides the manufacturer and device id registers.
func WithIdentity(manufacturer, device uint16) SimulatorOpt {
	return func(s *Simulator) {
		s.regs[regManufacturerID] = manufacturer
		s.regs[regDeviceID] = device
	}
}

func NewSimulator(variant Variant, light LightBehaviorFunc, opts ...SimulatorOpt) *Simulator {
	s := &Simulator{
		variant: variant,
		address: AddrGND.BusAddr(),
		light:   light,
		regs: map[byte]uint16{
			regResult:         0,
			regConfiguration:  defaultConfiguration,
			regLowLimit:       0x0000,
			regHighLimit:      0xBFFF,
			regManufacturerID: manufacturerID,
			regDeviceID:       deviceID,
		},
		reads:     map[byte]int{},
		writes:    map[byte]int{},
		readErrs:  map[byte]error{},
		writeErrs: map[byte]error{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Open(ctx context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opens++
	s.open = true
	return nil
}

func (s *Simulator) Close(ctx context.Context) error {
	if s.closeErr != nil {
		return s.closeErr
	}
	s.closes++
	s.open = false
	return nil
}

func (s *Simulator) ReadRegister(ctx context.Context, address byte, reg byte) (uint16, error) {
	if err := s.check(ctx, address); err != nil {
		return 0, err
	}
	s.reads[reg]++
	if err := s.readErrs[reg]; err != nil {
		return 0, err
	}
	if reg != regConfiguration {
		return s.regs[reg], nil
	}
	s.advance()
	value := s.regs[regConfiguration]
	// reading clears the conversion ready flag and, in latched mode, the comparator flags
	after := fieldReady.set(value, 0)
	if fieldLatch.get(value) == 1 {
		after = fieldFlagHigh.set(fieldFlagLow.set(after, 0), 0)
	}
	s.regs[regConfiguration] = after
	return value, nil
}

func (s *Simulator) WriteRegister(ctx context.Context, address byte, reg byte, value uint16) error {
	if err := s.check(ctx, address); err != nil {
		return err
	}
	s.writes[reg]++
	if err := s.writeErrs[reg]; err != nil {
		return err
	}
	switch reg {
	case regConfiguration:
		prev := s.regs[regConfiguration]
		next := prev&^configWritableMask | value&configWritableMask
		next = fieldReady.set(next, 0)
		s.regs[regConfiguration] = next
		if Mode(fieldMode.get(next)) == ModeSingle {
			s.pending = int(ConversionTime(fieldConversionTime.get(next)).Duration() / pollInterval)
		}
	case regLowLimit, regHighLimit:
		s.regs[reg] = value
	case regResult, regManufacturerID, regDeviceID:
		// read only
	default:
		s.regs[reg] = value
	}
	return nil
}

func (s *Simulator) check(ctx context.Context, address byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.open {
		return fmt.Errorf("simulator: bus is closed")
	}
	if address != s.address {
		return fmt.Errorf("simulator: no device at %#02x", address)
	}
	return nil
}

func (s *Simulator) advance() {
	conf := s.regs[regConfiguration]
	switch Mode(fieldMode.get(conf)) {
	case ModeShutdown:
		return
	case ModeSingle:
		if s.stall {
			return
		}
		s.pending--
		if s.pending > 0 {
			return
		}
		s.convert()
		s.regs[regConfiguration] = fieldMode.set(s.regs[regConfiguration], uint16(ModeShutdown))
	default:
		s.convert()
	}
}

func (s *Simulator) convert() {
	conf := s.regs[regConfiguration]
	if s.over {
		s.regs[regConfiguration] = fieldOverflow.set(conf, 1)
		return
	}
	conf = fieldOverflow.set(conf, 0)
	scale := s.variant.Scale()
	var value float64
	if s.light != nil {
		value = s.light()
	}
	result := EncodeLimit(value, scale)
	if fieldMaskExponent.get(conf) == 1 {
		result &= maxMantissa
	}
	s.regs[regResult] = result
	measured := Decode(result, scale)
	high := measured > Decode(s.regs[regHighLimit], scale)
	low := measured < Decode(s.regs[regLowLimit], scale)
	if fieldLatch.get(conf) == 1 {
		// latched flags stay set until the configuration register is read
		high = high || fieldFlagHigh.get(conf) == 1
		low = low || fieldFlagLow.get(conf) == 1
	}
	conf = fieldFlagHigh.set(conf, boolBit(high))
	conf = fieldFlagLow.set(conf, boolBit(low))
	s.regs[regConfiguration] = fieldReady.set(conf, 1)
}

// Level reports the level of the INT pin, so the simulator can stand in for
// the interrupt line too. The pin is asserted while a comparator flag is set,
// the polarity bit selects the active level. In continuous mode a conversion
// completes after each observation of the pin.
func (s *Simulator) Level(ctx context.Context) (bool, error) {
	conf := s.regs[regConfiguration]
	asserted := fieldFlagHigh.get(conf) == 1 || fieldFlagLow.get(conf) == 1
	activeHigh := fieldPolarity.get(conf) == 1
	if Mode(fieldMode.get(conf)) >= ModeContinuous {
		s.advance()
	}
	return asserted == activeHigh, nil
}

// SetOverflow makes the following conversions report an analog overflow.
func (s *Simulator) SetOverflow(overflow bool) {
	s.over = overflow
}

// Poke sets a register bypassing the write rules, flags included.
func (s *Simulator) Poke(reg byte, value uint16) {
	s.regs[reg] = value
}

// Peek returns a register without side effects.
func (s *Simulator) Peek(reg byte) uint16 {
	return s.regs[reg]
}

func (s *Simulator) FailOpen(err error) {
	s.openErr = err
}

func (s *Simulator) FailClose(err error) {
	s.closeErr = err
}

// FailRead makes reads of reg return err, nil clears the failure.
func (s *Simulator) FailRead(reg byte, err error) {
	s.readErrs[reg] = err
}

// FailWrite makes writes of reg return err, nil clears the failure.
func (s *Simulator) FailWrite(reg byte, err error) {
	s.writeErrs[reg] = err
}

func (s *Simulator) Opens() int {
	return s.opens
}

func (s *Simulator) Closes() int {
	return s.closes
}

func (s *Simulator) IsOpen() bool {
	return s.open
}

// Reads returns how many times reg was read.
func (s *Simulator) Reads(reg byte) int {
	return s.reads[reg]
}

// Writes returns how many times reg was written.
func (s *Simulator) Writes(reg byte) int {
	return s.writes[reg]
}
