// Package opt300x drives the Texas Instruments OPT300x family of ambient light
// sensors (OPT3001, OPT3002, OPT3004, OPT3005, OPT3006, OPT3007).
//
// The chip exposes a result register, a configuration register and two
// interrupt limit registers. Results and limits share a 4-bit exponent /
// 12-bit mantissa encoding, see Decode and EncodeLimit.
//
// Usage:
//
//	dev := opt300x.New(transport,
//		opt300x.WithVariant(opt300x.OPT3001),
//		opt300x.WithAddrPin(opt300x.AddrGND),
//		opt300x.WithCallback(func(i opt300x.Interrupt) { ... }),
//	)
//	if err := dev.Init(ctx); err != nil { ... }
//	defer dev.Deinit(ctx)
//	raw, lux, err := dev.SingleRead(ctx)
//
// A Device is not safe for concurrent use.
package opt300x

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrNilDevice           = errors.New("opt300x: device is nil")
	ErrNotInitialized      = errors.New("opt300x: device not initialized")
	ErrTransport           = errors.New("opt300x: transport failure")
	ErrIdentityInvalid     = errors.New("opt300x: identity invalid")
	ErrWrongVariant        = errors.New("opt300x: operation not supported by variant")
	ErrOverflow            = errors.New("opt300x: data overflow")
	ErrTimeout             = errors.New("opt300x: read timeout")
	ErrMissingCollaborator = errors.New("opt300x: missing collaborator")
)

// Transport moves 16-bit register words to and from the device. Words travel
// MSB first. Open and Close are called once per Init/Deinit cycle.
type Transport interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	ReadRegister(ctx context.Context, address byte, reg byte) (uint16, error)
	WriteRegister(ctx context.Context, address byte, reg byte, value uint16) error
}

// InterruptHandler receives the conditions found by HandleInterrupt.
type InterruptHandler func(Interrupt)

// Device is the handle of a single OPT300x chip.
type Device struct {
	transport   Transport
	variant     Variant
	addrPin     AddrPin
	sleep       func(time.Duration)
	log         *slog.Logger
	callback    InterruptHandler
	initialized bool
}

type Opt func(*Device)

func WithVariant(v Variant) Opt {
	return func(d *Device) {
		d.variant = v
	}
}

func WithAddrPin(a AddrPin) Opt {
	return func(d *Device) {
		d.addrPin = a
	}
}

// WithSleep replaces the delay used between single-shot polls.
func WithSleep(sleep func(time.Duration)) Opt {
	return func(d *Device) {
		d.sleep = sleep
	}
}

func WithLogger(log *slog.Logger) Opt {
	return func(d *Device) {
		if log != nil {
			d.log = log
		}
	}
}

// WithCallback registers the interrupt handler. Init refuses to run without one.
func WithCallback(cb InterruptHandler) Opt {
	return func(d *Device) {
		d.callback = cb
	}
}

// New creates an uninitialized device. Defaults: OPT3001, ADDR tied to GND,
// time.Sleep and slog.Default().
func New(transport Transport, opts ...Opt) *Device {
	d := &Device{
		transport: transport,
		variant:   OPT3001,
		addrPin:   AddrGND,
		sleep:     time.Sleep,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) SetVariant(v Variant) error {
	if d == nil {
		return ErrNilDevice
	}
	d.variant = v
	return nil
}

func (d *Device) GetVariant() (Variant, error) {
	if d == nil {
		return 0, ErrNilDevice
	}
	return d.variant, nil
}

func (d *Device) SetAddrPin(a AddrPin) error {
	if d == nil {
		return ErrNilDevice
	}
	d.addrPin = a
	return nil
}

func (d *Device) GetAddrPin() (AddrPin, error) {
	if d == nil {
		return 0, ErrNilDevice
	}
	return d.addrPin, nil
}

// Initialized reports whether Init succeeded and Deinit has not been called since.
func (d *Device) Initialized() bool {
	return d != nil && d.initialized
}

// Init opens the transport and verifies the manufacturer and device ids.
// On identity failure the transport is closed again before returning.
func (d *Device) Init(ctx context.Context) error {
	if d == nil {
		return ErrNilDevice
	}
	if d.initialized {
		return nil
	}
	switch {
	case d.transport == nil:
		return d.missing("transport")
	case d.sleep == nil:
		return d.missing("sleep")
	case d.callback == nil:
		return d.missing("callback")
	}
	if !d.variant.Known() {
		d.logError("unknown variant", ErrWrongVariant)
		return fmt.Errorf("%w: %s", ErrWrongVariant, d.variant)
	}
	err := d.transport.Open(ctx)
	if err != nil {
		d.logError("transport open failed", err)
		return fmt.Errorf("%w: could not open transport: %w", ErrTransport, err)
	}
	err = d.checkID(ctx, regManufacturerID, manufacturerID, "manufacturer")
	if err == nil {
		err = d.checkID(ctx, regDeviceID, deviceID, "device")
	}
	if err != nil {
		closeErr := d.transport.Close(ctx)
		if closeErr != nil {
			d.logError("transport close failed", closeErr)
			closeErr = fmt.Errorf("%w: could not close transport: %w", ErrTransport, closeErr)
		}
		return errors.Join(err, closeErr)
	}
	d.initialized = true
	d.logger().Debug("opt300x initialized", "variant", d.variant, "addr", d.addrPin)
	return nil
}

func (d *Device) checkID(ctx context.Context, reg byte, expected uint16, name string) error {
	id, err := d.transport.ReadRegister(ctx, d.addrPin.BusAddr(), reg)
	if err != nil {
		d.logError("read id failed", err)
		return fmt.Errorf("%w: could not read %s id: %w: %w", ErrIdentityInvalid, name, ErrTransport, err)
	}
	if id != expected {
		d.logger().Error("opt300x: id is invalid", "id", name, "expected", fmt.Sprintf("%#04x", expected), "got", fmt.Sprintf("%#04x", id))
		return fmt.Errorf("%w: %s id %#04x, expected %#04x", ErrIdentityInvalid, name, id, expected)
	}
	return nil
}

func (d *Device) missing(name string) error {
	d.logger().Error("opt300x: collaborator is missing", "collaborator", name)
	return fmt.Errorf("%w: %s", ErrMissingCollaborator, name)
}

// Deinit puts the device into shutdown mode and closes the transport. When a
// register transfer or the close fails the device stays initialized and the
// transport is left as is.
func (d *Device) Deinit(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}
	err := d.updateField(ctx, fieldMode, uint16(ModeShutdown))
	if err != nil {
		return err
	}
	err = d.transport.Close(ctx)
	if err != nil {
		d.logError("transport close failed", err)
		return fmt.Errorf("%w: could not close transport: %w", ErrTransport, err)
	}
	d.initialized = false
	return nil
}

func (d *Device) ready() error {
	if d == nil {
		return ErrNilDevice
	}
	if !d.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (d *Device) require(c capability, op string) error {
	if d.variant.has(c) {
		return nil
	}
	d.logger().Error("opt300x: variant can't use this function", "variant", d.variant, "op", op)
	return fmt.Errorf("%w: %s can't use %s", ErrWrongVariant, d.variant, op)
}

// logger falls back to the default logger for devices not built with New.
func (d *Device) logger() *slog.Logger {
	if d.log == nil {
		return slog.Default()
	}
	return d.log
}

func (d *Device) logError(msg string, err error) {
	d.logger().Error("opt300x: "+msg, "variant", d.variant, "addr", d.addrPin, "error", err)
}

func (d *Device) read(ctx context.Context, reg byte, name string) (uint16, error) {
	value, err := d.transport.ReadRegister(ctx, d.addrPin.BusAddr(), reg)
	if err != nil {
		d.logError("read "+name+" failed", err)
		return 0, fmt.Errorf("%w: could not read %s: %w", ErrTransport, name, err)
	}
	return value, nil
}

func (d *Device) write(ctx context.Context, reg byte, value uint16, name string) error {
	err := d.transport.WriteRegister(ctx, d.addrPin.BusAddr(), reg, value)
	if err != nil {
		d.logError("write "+name+" failed", err)
		return fmt.Errorf("%w: could not write %s: %w", ErrTransport, name, err)
	}
	return nil
}

func (d *Device) readConfig(ctx context.Context) (uint16, error) {
	return d.read(ctx, regConfiguration, "configuration")
}

func (d *Device) updateField(ctx context.Context, f field, value uint16) error {
	prev, err := d.readConfig(ctx)
	if err != nil {
		return err
	}
	return d.write(ctx, regConfiguration, f.set(prev, value), "configuration")
}

func (d *Device) readField(ctx context.Context, f field) (uint16, error) {
	prev, err := d.readConfig(ctx)
	if err != nil {
		return 0, err
	}
	return f.get(prev), nil
}
